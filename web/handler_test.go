package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflo/db/db"
	"payflo/db/mem"
	"payflo/llm"
	"payflo/mq/goch"
)

type stubAnalyzer struct {
	billData *llm.BillData
	matched  []string
	err      error
}

func (s *stubAnalyzer) ProcessBillImage(_ context.Context, _ string) (*llm.BillData, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.billData, nil
}

func (s *stubAnalyzer) AnalyzeOrder(_ context.Context, _ string, _ []db.BillItem) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matched, nil
}

func newTestRouter(analyzer llm.BillAnalyzer) (*gin.Engine, db.PayFloDBWrapper) {
	gin.SetMode(gin.TestMode)
	store := mem.NewInMemoryPayFloDBWrapper()
	handler := NewHandler(store, goch.NewGoChanGroupMessageQueueWrapper(), analyzer)

	r := gin.New()
	r.Use(GroupDataLoaderInjectionMiddleware(store))
	registerRoutes(r, handler)
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func createTestUser(t *testing.T, r *gin.Engine, name string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/users", gin.H{"name": name})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		UserID string `json:"userId"`
	}
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.UserID)
	return resp.UserID
}

func createTestGroup(t *testing.T, r *gin.Engine, creatorID string, memberIDs ...string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/groups", gin.H{
		"name":      "trip",
		"creatorId": creatorID,
		"memberIds": memberIDs,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestUserLifecycle(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})

	userID := createTestUser(t, r, "alice")

	w := doJSON(t, r, http.MethodGet, "/users/"+userID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user userResponse
	decodeBody(t, w, &user)
	assert.Equal(t, "alice", user.Name)
	assert.Nil(t, user.ProfilePicture)

	w = doJSON(t, r, http.MethodPut, "/users/"+userID, gin.H{"name": "alicia"})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &user)
	assert.Equal(t, "alicia", user.Name)

	w = doJSON(t, r, http.MethodGet, "/users/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateUserRequiresName(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	w := doJSON(t, r, http.MethodPost, "/users", gin.H{"profilePicture": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFriends(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	alice := createTestUser(t, r, "alice")
	bob := createTestUser(t, r, "bob")

	w := doJSON(t, r, http.MethodPost, "/users/"+alice+"/friends", gin.H{"friendId": bob})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/users/"+alice+"/friends", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var friends []userResponse
	decodeBody(t, w, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, bob, friends[0].ID)

	// The relation is directed.
	w = doJSON(t, r, http.MethodGet, "/users/"+bob+"/friends", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &friends)
	assert.Empty(t, friends)
}

func TestGroupCreateJoinAndFetch(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	alice := createTestUser(t, r, "alice")
	bob := createTestUser(t, r, "bob")
	groupID := createTestGroup(t, r, alice)

	w := doJSON(t, r, http.MethodGet, "/groups/"+groupID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var group groupResponse
	decodeBody(t, w, &group)
	assert.Equal(t, alice, group.CreatorID)
	assert.Len(t, group.InviteCode, 6)
	require.Len(t, group.Participants, 1)

	w = doJSON(t, r, http.MethodGet, "/groups/by-invite-code/"+group.InviteCode, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/groups/join", gin.H{"inviteCode": group.InviteCode, "userId": bob})
	require.Equal(t, http.StatusOK, w.Code)

	// Joining twice is a no-op.
	w = doJSON(t, r, http.MethodPost, "/groups/join", gin.H{"inviteCode": group.InviteCode, "userId": bob})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/groups/"+groupID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &group)
	assert.Len(t, group.Participants, 2)

	w = doJSON(t, r, http.MethodGet, "/users/"+bob+"/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups []groupResponse
	decodeBody(t, w, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, groupID, groups[0].ID)

	w = doJSON(t, r, http.MethodPost, "/groups/join", gin.H{"inviteCode": "000000", "userId": bob})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateGroup(t *testing.T) {
	r, store := newTestRouter(&stubAnalyzer{})
	alice := createTestUser(t, r, "alice")
	groupID := createTestGroup(t, r, alice)

	w := doJSON(t, r, http.MethodPut, "/groups/"+groupID, gin.H{"name": "holiday"})
	require.Equal(t, http.StatusOK, w.Code)
	var group groupResponse
	decodeBody(t, w, &group)
	assert.Equal(t, "holiday", group.Name)

	info, err := store.GetGroupInfo(groupID)
	require.NoError(t, err)
	assert.Equal(t, "holiday", info.Name)

	// No-op update still returns the group.
	w = doJSON(t, r, http.MethodPut, "/groups/"+groupID, gin.H{"name": "holiday"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateEvenExpense(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	alice := createTestUser(t, r, "alice")
	bob := createTestUser(t, r, "bob")
	groupID := createTestGroup(t, r, alice, bob)

	w := doJSON(t, r, http.MethodPost, "/expenses", gin.H{
		"groupId":        groupID,
		"name":           "dinner",
		"amount":         10.0,
		"creatorId":      alice,
		"participantIds": []string{alice, bob},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/groups/"+groupID+"/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var expenses []expenseResponse
	decodeBody(t, w, &expenses)
	require.Len(t, expenses, 1)

	assert.Equal(t, "dinner", expenses[0].Name)
	assert.Equal(t, alice, expenses[0].PaidByID)
	assert.Equal(t, "", expenses[0].BillStatus)
	assert.InDelta(t, 5.0, expenses[0].ParticipantShares[alice], 1e-9)
	assert.InDelta(t, 5.0, expenses[0].ParticipantShares[bob], 1e-9)
	assert.ElementsMatch(t, []string{alice, bob}, expenses[0].ParticipantIDs)
}

func TestCreateExpenseWithoutParticipants(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	alice := createTestUser(t, r, "alice")
	groupID := createTestGroup(t, r, alice)

	w := doJSON(t, r, http.MethodPost, "/expenses", gin.H{
		"groupId":        groupID,
		"name":           "dinner",
		"amount":         10.0,
		"creatorId":      alice,
		"participantIds": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func createBillExpense(t *testing.T, r *gin.Engine, groupID, creatorID string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/expenses", gin.H{
		"groupId":        groupID,
		"name":           "restaurant",
		"amount":         0.0,
		"creatorId":      creatorID,
		"participantIds": []string{creatorID},
		"isBillAttached": true,
		"billImage":      "aGVsbG8=",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ExpenseID string `json:"expenseId"`
	}
	decodeBody(t, w, &resp)
	return resp.ExpenseID
}

func waitForBillStatus(t *testing.T, store db.PayFloDBWrapper, expenseID string, status db.BillStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		expense, err := store.GetExpense(expenseID)
		return err == nil && expense.BillStatus == status
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBillExpenseScan(t *testing.T) {
	analyzer := &stubAnalyzer{
		billData: &llm.BillData{
			Total: 30.0,
			Items: []llm.BillDataItem{
				{Name: "pizza", Price: 10, Quantity: 2, TotalPrice: 20},
				{Name: "coke", Price: 10, Quantity: 1, TotalPrice: 10},
			},
		},
	}
	r, store := newTestRouter(analyzer)
	alice := createTestUser(t, r, "alice")
	groupID := createTestGroup(t, r, alice)
	expenseID := createBillExpense(t, r, groupID, alice)

	waitForBillStatus(t, store, expenseID, db.BillStatusReady)

	expense, err := store.GetExpense(expenseID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, expense.Amount)

	w := doJSON(t, r, http.MethodGet, "/expenses/"+expenseID+"/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []billItemResponse
	decodeBody(t, w, &items)
	require.Len(t, items, 2)
	assert.Empty(t, items[0].AssignedToUserIDs)
}

func TestBillExpenseScanFailure(t *testing.T) {
	r, store := newTestRouter(&stubAnalyzer{err: errors.New("model unavailable")})
	alice := createTestUser(t, r, "alice")
	groupID := createTestGroup(t, r, alice)
	expenseID := createBillExpense(t, r, groupID, alice)

	waitForBillStatus(t, store, expenseID, db.BillStatusFailed)
}

func TestToggleAssignmentAndDerivedShares(t *testing.T) {
	analyzer := &stubAnalyzer{
		billData: &llm.BillData{
			Total: 30.0,
			Items: []llm.BillDataItem{
				{Name: "pizza", Price: 20, Quantity: 1, TotalPrice: 20},
				{Name: "coke", Price: 10, Quantity: 1, TotalPrice: 10},
			},
		},
	}
	r, store := newTestRouter(analyzer)
	alice := createTestUser(t, r, "alice")
	bob := createTestUser(t, r, "bob")
	groupID := createTestGroup(t, r, alice, bob)
	expenseID := createBillExpense(t, r, groupID, alice)
	waitForBillStatus(t, store, expenseID, db.BillStatusReady)

	items, err := store.GetBillItems(expenseID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	pizza := items[0].ID

	// Both claim the pizza.
	w := doJSON(t, r, http.MethodPut, "/bill-items/"+pizza+"/assignments/toggle", gin.H{"userId": alice})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPut, "/bill-items/"+pizza+"/assignments/toggle", gin.H{"userId": bob})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/groups/"+groupID+"/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var expenses []expenseResponse
	decodeBody(t, w, &expenses)
	require.Len(t, expenses, 1)
	assert.InDelta(t, 10.0, expenses[0].ParticipantShares[alice], 1e-9)
	assert.InDelta(t, 10.0, expenses[0].ParticipantShares[bob], 1e-9)
	assert.ElementsMatch(t, []string{alice, bob}, expenses[0].ParticipantIDs)

	// Bob un-claims; his share disappears from the derived view.
	w = doJSON(t, r, http.MethodPut, "/bill-items/"+pizza+"/assignments/toggle", gin.H{"userId": bob})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/groups/"+groupID+"/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// Reset before re-decoding: json.Unmarshal merges into maps left over in
	// the reused slice elements, which would leak bob's old share into this
	// response.
	expenses = nil
	decodeBody(t, w, &expenses)
	assert.InDelta(t, 20.0, expenses[0].ParticipantShares[alice], 1e-9)
	assert.NotContains(t, expenses[0].ParticipantShares, bob)
}

func TestAnalyzeOrderAppliesTogglesAtomically(t *testing.T) {
	analyzer := &stubAnalyzer{
		billData: &llm.BillData{
			Total: 30.0,
			Items: []llm.BillDataItem{
				{Name: "pizza", Price: 20, Quantity: 1, TotalPrice: 20},
				{Name: "coke", Price: 10, Quantity: 1, TotalPrice: 10},
			},
		},
	}
	r, store := newTestRouter(analyzer)
	alice := createTestUser(t, r, "alice")
	groupID := createTestGroup(t, r, alice)
	expenseID := createBillExpense(t, r, groupID, alice)
	waitForBillStatus(t, store, expenseID, db.BillStatusReady)

	items, err := store.GetBillItems(expenseID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	reqItems := make([]gin.H, 0, len(items))
	for _, item := range items {
		reqItems = append(reqItems, gin.H{
			"id":         item.ID,
			"expenseId":  item.ExpenseID,
			"name":       item.Name,
			"price":      item.Price,
			"quantity":   item.Quantity,
			"totalPrice": item.TotalPrice,
		})
	}

	analyzer.matched = []string{items[0].ID, items[1].ID}
	w := doJSON(t, r, http.MethodPost, "/analyze-order", gin.H{
		"userId":           alice,
		"orderDescription": "I had the pizza and a coke",
		"billItems":        reqItems,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		MatchedItemIDs []string `json:"matchedItemIds"`
	}
	decodeBody(t, w, &resp)
	assert.Len(t, resp.MatchedItemIDs, 2)

	after, err := store.GetBillItems(expenseID)
	require.NoError(t, err)
	for _, item := range after {
		assert.Contains(t, item.AssignedToUserIDs, alice)
	}

	// A match containing an unknown item id must not apply anything.
	analyzer.matched = []string{items[0].ID, "no-such-item"}
	w = doJSON(t, r, http.MethodPost, "/analyze-order", gin.H{
		"userId":           alice,
		"orderDescription": "pizza again",
		"billItems":        reqItems,
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	after, err = store.GetBillItems(expenseID)
	require.NoError(t, err)
	for _, item := range after {
		// Still assigned from the first call, not toggled off by the failed one.
		assert.Contains(t, item.AssignedToUserIDs, alice)
	}
}

func TestAnalyzeOrderWithoutUserOnlyMatches(t *testing.T) {
	analyzer := &stubAnalyzer{matched: []string{"item-1"}}
	r, _ := newTestRouter(analyzer)

	w := doJSON(t, r, http.MethodPost, "/analyze-order", gin.H{
		"orderDescription": "pizza",
		"billItems": []gin.H{
			{"id": "item-1", "name": "pizza", "price": 10.0, "quantity": 1, "totalPrice": 10.0},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		MatchedItemIDs []string `json:"matchedItemIds"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, []string{"item-1"}, resp.MatchedItemIDs)
}

func TestGroupSettlement(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	alice := createTestUser(t, r, "alice")
	bob := createTestUser(t, r, "bob")
	groupID := createTestGroup(t, r, alice, bob)

	// Alice fronts 10 split both ways, bob fronts 6 split both ways.
	w := doJSON(t, r, http.MethodPost, "/expenses", gin.H{
		"groupId": groupID, "name": "lunch", "amount": 10.0,
		"creatorId": alice, "participantIds": []string{alice, bob},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, r, http.MethodPost, "/expenses", gin.H{
		"groupId": groupID, "name": "taxi", "amount": 6.0,
		"creatorId": bob, "participantIds": []string{alice, bob},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/groups/"+groupID+"/settlement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var settlement settlementResponse
	decodeBody(t, w, &settlement)

	require.Len(t, settlement.Transfers, 1)
	assert.Equal(t, bob, settlement.Transfers[0].From)
	assert.Equal(t, alice, settlement.Transfers[0].To)
	assert.InDelta(t, 2.0, settlement.Transfers[0].Amount, 1e-9)
	assert.InDelta(t, 0.0, settlement.Unsettled, 1e-9)
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(&stubAnalyzer{})
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
