package web

import (
	"errors"
	"log"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	odiff "github.com/r3labs/diff/v3"

	"payflo/db/db"
	"payflo/libs/diff"
	"payflo/llm"
	mqt "payflo/mq/mq"
	"payflo/settle"
)

// Handler carries the collaborators every route needs.
type Handler struct {
	store    db.PayFloDBWrapper
	mq       mqt.GroupMessageQueueWrapper
	analyzer llm.BillAnalyzer
	differ   *odiff.Differ
}

func NewHandler(store db.PayFloDBWrapper, wrapper mqt.GroupMessageQueueWrapper, analyzer llm.BillAnalyzer) *Handler {
	return &Handler{
		store:    store,
		mq:       wrapper,
		analyzer: analyzer,
		differ:   diff.GetCustomDiffer(),
	}
}

func groupLoader(c *gin.Context) *db.GroupDataLoader {
	return c.MustGet(string(db.DataLoaderKeyGroupData)).(*db.GroupDataLoader)
}

// --- wire types, field names match the mobile client ---

type userResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ProfilePicture *string `json:"profilePicture"`
}

type groupResponse struct {
	ID           string         `json:"id"`
	InviteCode   string         `json:"inviteCode"`
	Name         string         `json:"name"`
	Photo        *string        `json:"photo"`
	TotalAmount  float64        `json:"totalAmount"`
	CreatorID    string         `json:"creatorId"`
	Participants []userResponse `json:"participants"`
}

type expenseResponse struct {
	ID                string             `json:"id"`
	GroupID           string             `json:"groupId"`
	Name              string             `json:"name"`
	Amount            float64            `json:"amount"`
	PaidByID          string             `json:"paidById"`
	ParticipantIDs    []string           `json:"participantIds"`
	IsBillAttached    bool               `json:"isBillAttached"`
	BillImage         *string            `json:"billImage"`
	BillStatus        string             `json:"billStatus"`
	ParticipantShares map[string]float64 `json:"participantShares"`
}

type billItemResponse struct {
	ID                string   `json:"id"`
	ExpenseID         string   `json:"expenseId"`
	Name              string   `json:"name"`
	Price             float64  `json:"price"`
	Quantity          int      `json:"quantity"`
	TotalPrice        float64  `json:"totalPrice"`
	AssignedToUserIDs []string `json:"assignedToUserIds"`
}

func toUserResponse(u db.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
}

func toUserResponses(users []db.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toGroupResponse(info *db.GroupInfo, members []db.User) groupResponse {
	return groupResponse{
		ID:           info.ID,
		InviteCode:   info.InviteCode,
		Name:         info.Name,
		Photo:        info.Photo,
		TotalAmount:  info.TotalAmount,
		CreatorID:    info.CreatorID,
		Participants: toUserResponses(members),
	}
}

func toBillItemResponse(item db.BillItem) billItemResponse {
	assigned := item.AssignedToUserIDs
	if assigned == nil {
		assigned = []string{}
	}
	return billItemResponse{
		ID:                item.ID,
		ExpenseID:         item.ExpenseID,
		Name:              item.Name,
		Price:             item.Price,
		Quantity:          item.Quantity,
		TotalPrice:        item.TotalPrice,
		AssignedToUserIDs: assigned,
	}
}

func toSettleItems(items []db.BillItem) []settle.BillItem {
	out := make([]settle.BillItem, 0, len(items))
	for _, item := range items {
		out = append(out, settle.BillItem{
			ID:         item.ID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
			AssignedTo: item.AssignedToUserIDs,
		})
	}
	return out
}

// expenseShares resolves the shares the API serves. Itemized expenses never
// trust the stored stand-ins: the real shares are recomputed from the current
// item assignments on every read.
func expenseShares(expense db.Expense, items []db.BillItem) (participantIDs []string, shares map[string]float64) {
	if expense.IsBillAttached {
		settleItems := toSettleItems(items)
		participantIDs = settle.DeriveParticipants(settleItems)
		raw := settle.ItemizedShares(settleItems, participantIDs)
		shares = make(map[string]float64, len(raw))
		for userID, share := range raw {
			shares[userID] = settle.TruncateCents(share)
		}
		return participantIDs, shares
	}

	shares = expense.Shares
	if shares == nil {
		shares = map[string]float64{}
	}
	participantIDs = make([]string, 0, len(shares))
	for userID := range shares {
		participantIDs = append(participantIDs, userID)
	}
	sort.Strings(participantIDs)
	return participantIDs, shares
}

func toExpenseResponse(expense db.Expense, items []db.BillItem) expenseResponse {
	participantIDs, shares := expenseShares(expense, items)
	return expenseResponse{
		ID:                expense.ID,
		GroupID:           expense.GroupID,
		Name:              expense.Name,
		Amount:            expense.Amount,
		PaidByID:          expense.PaidByID,
		ParticipantIDs:    participantIDs,
		IsBillAttached:    expense.IsBillAttached,
		BillImage:         expense.BillImage,
		BillStatus:        string(expense.BillStatus),
		ParticipantShares: shares,
	}
}

func abortNotFoundOr500(c *gin.Context, err error) {
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handler) publishExpense(action mqt.Action, msg mqt.ExpenseMessage) {
	q := h.mq.GetExpenseMessageQueue(action)
	if q == nil {
		return
	}
	if err := q.Publish(msg); err != nil {
		log.Printf("failed to publish expense %s event: %v", action, err)
	}
}

func (h *Handler) publishBillItems(action mqt.Action, msg mqt.BillItemsMessage) {
	q := h.mq.GetBillItemsMessageQueue(action)
	if q == nil {
		return
	}
	if err := q.Publish(msg); err != nil {
		log.Printf("failed to publish bill items %s event: %v", action, err)
	}
}

// --- users ---

func (h *Handler) CreateUser(c *gin.Context) {
	var body struct {
		Name           string  `json:"name"`
		ProfilePicture *string `json:"profilePicture"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	user := db.User{
		ID:             uuid.NewString(),
		Name:           body.Name,
		ProfilePicture: body.ProfilePicture,
	}
	if err := h.store.CreateUser(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": user.ID})
}

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.store.GetUser(c.Param("id"))
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var body struct {
		Name           *string `json:"name"`
		ProfilePicture *string `json:"profilePicture"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	user, err := h.store.UpdateUser(c.Param("id"), body.Name, body.ProfilePicture)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

// --- contacts ---

func (h *Handler) AddFriend(c *gin.Context) {
	var body struct {
		FriendID string `json:"friendId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.FriendID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "friendId is required"})
		return
	}

	userID := c.Param("id")
	if _, err := h.store.GetUser(userID); err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	if _, err := h.store.GetUser(body.FriendID); err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	if err := h.store.AddFriend(userID, body.FriendID); err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) GetFriends(c *gin.Context) {
	friends, err := h.store.GetFriends(c.Param("id"))
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponses(friends))
}

// --- groups ---

type createGroupRequest struct {
	Name        string   `json:"name"`
	CreatorID   string   `json:"creatorId"`
	MemberIDs   []string `json:"memberIds"`
	Photo       *string  `json:"photo"`
	TotalAmount float64  `json:"totalAmount"`
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var body createGroupRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" || body.CreatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and creatorId are required"})
		return
	}

	inviteCode, err := settle.NewInviteCode(h.store.InviteCodeTaken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	info := db.GroupInfo{
		ID:          uuid.NewString(),
		InviteCode:  inviteCode,
		Name:        body.Name,
		Photo:       body.Photo,
		TotalAmount: body.TotalAmount,
		CreatorID:   body.CreatorID,
	}
	if err := h.store.CreateGroup(&info, body.MemberIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": info.ID})
}

func (h *Handler) GetGroup(c *gin.Context) {
	id := c.Param("id")
	loader := groupLoader(c)

	info, err := loader.GetGroupInfoList.Load(c.Request.Context(), id)
	if err != nil || info == nil {
		abortNotFoundOr500(c, db.ErrNotFound)
		return
	}
	members, err := loader.GetMemberList.Load(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(info, members))
}

func (h *Handler) GetGroupByInviteCode(c *gin.Context) {
	info, err := h.store.GetGroupInfoByInviteCode(c.Param("code"))
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	members, err := h.store.GetGroupMembers(info.ID)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(info, members))
}

func (h *Handler) GetUserGroups(c *gin.Context) {
	userID := c.Param("id")
	groups, err := h.store.GetUserGroups(userID)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	loader := groupLoader(c)
	out := make([]groupResponse, 0, len(groups))
	for i := range groups {
		members, err := loader.GetMemberList.Load(c.Request.Context(), groups[i].ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, toGroupResponse(&groups[i], members))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) JoinGroup(c *gin.Context) {
	var body struct {
		InviteCode string `json:"inviteCode"`
		UserID     string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.InviteCode == "" || body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inviteCode and userId are required"})
		return
	}

	info, err := h.store.GetGroupInfoByInviteCode(body.InviteCode)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	if err := h.store.AddGroupMember(info.ID, body.UserID); err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groupId": info.ID})
}

func (h *Handler) UpdateGroup(c *gin.Context) {
	var body struct {
		Name  *string `json:"name"`
		Photo *string `json:"photo"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	id := c.Param("id")
	info, err := h.store.GetGroupInfo(id)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	updated := *info
	if body.Name != nil {
		updated.Name = *body.Name
	}
	if body.Photo != nil {
		updated.Photo = body.Photo
	}

	// A no-op update writes and publishes nothing.
	changes, err := h.differ.Diff(*info, updated)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(changes) > 0 {
		if err := h.store.UpdateGroupInfo(&updated); err != nil {
			abortNotFoundOr500(c, err)
			return
		}
	}

	members, err := h.store.GetGroupMembers(id)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(&updated, members))
}

// --- expenses ---

type createExpenseRequest struct {
	GroupID        string   `json:"groupId"`
	Name           string   `json:"name"`
	Amount         float64  `json:"amount"`
	CreatorID      string   `json:"creatorId"`
	ParticipantIDs []string `json:"participantIds"`
	IsBillAttached bool     `json:"isBillAttached"`
	BillImage      *string  `json:"billImage"`
}

func (h *Handler) CreateExpense(c *gin.Context) {
	var body createExpenseRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.GroupID == "" || body.Name == "" || body.CreatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "groupId, name and creatorId are required"})
		return
	}

	if _, err := h.store.GetGroupInfo(body.GroupID); err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	shares := map[string]float64{}
	billStatus := db.BillStatusNone
	if body.IsBillAttached {
		// Stand-in zero shares; the real shares come from item assignments
		// once the scan finishes.
		for _, participantID := range body.ParticipantIDs {
			shares[participantID] = 0
		}
		billStatus = db.BillStatusProcessing
	} else {
		split, err := settle.EvenSplit(body.Amount, body.ParticipantIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for participantID, share := range split {
			shares[participantID] = settle.TruncateCents(share)
		}
	}

	expense := db.Expense{
		ID:             uuid.NewString(),
		GroupID:        body.GroupID,
		Name:           body.Name,
		Amount:         body.Amount,
		PaidByID:       body.CreatorID,
		IsBillAttached: body.IsBillAttached,
		BillImage:      body.BillImage,
		BillStatus:     billStatus,
		Shares:         shares,
	}
	if err := h.store.CreateExpense(&expense); err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	h.publishExpense(mqt.ActionCreate, mqt.ExpenseMessage{
		GroupID:    expense.GroupID,
		ExpenseID:  expense.ID,
		Name:       expense.Name,
		Amount:     expense.Amount,
		PaidByID:   expense.PaidByID,
		BillStatus: expense.BillStatus,
	})

	if body.IsBillAttached && body.BillImage != nil {
		go h.processBill(expense.ID, expense.GroupID, *body.BillImage)
	}

	c.JSON(http.StatusCreated, gin.H{"expenseId": expense.ID})
}

func (h *Handler) GetGroupExpenses(c *gin.Context) {
	groupID := c.Param("id")
	loader := groupLoader(c)

	if info, err := loader.GetGroupInfoList.Load(c.Request.Context(), groupID); err != nil || info == nil {
		abortNotFoundOr500(c, db.ErrNotFound)
		return
	}

	expenses, err := loader.GetExpenseList.Load(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]expenseResponse, 0, len(expenses))
	for _, expense := range expenses {
		var items []db.BillItem
		if expense.IsBillAttached {
			items, err = loader.GetBillItemList.Load(c.Request.Context(), expense.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		out = append(out, toExpenseResponse(expense, items))
	}
	c.JSON(http.StatusOK, out)
}

// --- bill items ---

func (h *Handler) GetExpenseItems(c *gin.Context) {
	items, err := h.store.GetBillItems(c.Param("id"))
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}
	out := make([]billItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toBillItemResponse(item))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ToggleAssignment(c *gin.Context) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	itemID := c.Param("id")
	item, err := h.store.GetBillItem(itemID)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	if err := h.store.ToggleAssignments(body.UserID, []string{itemID}); err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	h.publishItemsUpdate(item.ExpenseID)
	c.Status(http.StatusOK)
}

// publishItemsUpdate pushes the fresh item list of an expense to the group
// feed after an assignment change.
func (h *Handler) publishItemsUpdate(expenseID string) {
	expense, err := h.store.GetExpense(expenseID)
	if err != nil {
		log.Printf("failed to load expense %s for items event: %v", expenseID, err)
		return
	}
	items, err := h.store.GetBillItems(expenseID)
	if err != nil {
		log.Printf("failed to load items of expense %s for items event: %v", expenseID, err)
		return
	}
	h.publishBillItems(mqt.ActionUpdate, mqt.BillItemsMessage{
		GroupID:   expense.GroupID,
		ExpenseID: expenseID,
		Items:     items,
	})
}

// --- order analysis ---

type orderAnalysisRequest struct {
	UserID           string     `json:"userId"`
	OrderDescription string     `json:"orderDescription"`
	BillItems        []billItem `json:"billItems"`
}

type billItem struct {
	ID                string   `json:"id"`
	ExpenseID         string   `json:"expenseId"`
	Name              string   `json:"name"`
	Price             float64  `json:"price"`
	Quantity          int      `json:"quantity"`
	TotalPrice        float64  `json:"totalPrice"`
	AssignedToUserIDs []string `json:"assignedToUserIds"`
}

// AnalyzeOrder matches a free-text order against the given bill items. When
// userId is set, the matched toggles are applied in one batch: either the
// whole claim lands or none of it does.
func (h *Handler) AnalyzeOrder(c *gin.Context) {
	var body orderAnalysisRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.OrderDescription == "" || len(body.BillItems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderDescription and billItems are required"})
		return
	}

	items := make([]db.BillItem, 0, len(body.BillItems))
	for _, item := range body.BillItems {
		items = append(items, db.BillItem{
			ID:                item.ID,
			ExpenseID:         item.ExpenseID,
			Name:              item.Name,
			Price:             item.Price,
			Quantity:          item.Quantity,
			TotalPrice:        item.TotalPrice,
			AssignedToUserIDs: item.AssignedToUserIDs,
		})
	}

	matchedItemIDs, err := h.analyzer.AnalyzeOrder(c.Request.Context(), body.OrderDescription, items)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if body.UserID != "" && len(matchedItemIDs) > 0 {
		if err := h.store.ToggleAssignments(body.UserID, matchedItemIDs); err != nil {
			abortNotFoundOr500(c, err)
			return
		}
		if item, err := h.store.GetBillItem(matchedItemIDs[0]); err == nil {
			h.publishItemsUpdate(item.ExpenseID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"matchedItemIds": matchedItemIDs})
}

// --- settlement ---

type settlementResponse struct {
	Name      string             `json:"name"`
	Transfers []transferResponse `json:"transfers"`
	Unsettled float64            `json:"unsettled"`
}

type transferResponse struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// GetGroupSettlement nets every expense of the group into a minimal transfer
// plan. Itemized shares are derived from the current assignments, so the plan
// always reflects what is claimed right now.
func (h *Handler) GetGroupSettlement(c *gin.Context) {
	groupID := c.Param("id")
	info, err := h.store.GetGroupInfo(groupID)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	expenses, err := h.store.GetGroupExpenses(groupID)
	if err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	payments := make([]settle.Payment, 0, len(expenses))
	for _, expense := range expenses {
		var items []db.BillItem
		if expense.IsBillAttached {
			items, err = h.store.GetBillItems(expense.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		_, shares := expenseShares(expense, items)
		payments = append(payments, settle.Payment{
			Name:   expense.Name,
			Amount: expense.Amount,
			PaidBy: expense.PaidByID,
			Shares: shares,
		})
	}

	plan, unsettled, err := settle.SharePayments(payments, info.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	transfers := make([]transferResponse, 0, len(plan.Transfers))
	for _, t := range plan.Transfers {
		transfers = append(transfers, transferResponse{
			From:   t.From,
			To:     t.To,
			Amount: settle.TruncateCents(t.Amount),
		})
	}
	c.JSON(http.StatusOK, settlementResponse{
		Name:      plan.Name,
		Transfers: transfers,
		Unsettled: settle.TruncateCents(unsettled),
	})
}
