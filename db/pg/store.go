package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	dbt "payflo/db/db"
)

// GORMPayFloDBWrapper is a GORM-based PostgreSQL implementation of
// dbt.PayFloDBWrapper.
type GORMPayFloDBWrapper struct {
	db *gorm.DB
}

func NewGORMPayFloDBWrapper(db *gorm.DB) dbt.PayFloDBWrapper {
	return &GORMPayFloDBWrapper{
		db: db,
	}
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func userFromModel(m *UserModel) dbt.User {
	return dbt.User{
		ID:             m.ID,
		Name:           m.Name,
		ProfilePicture: m.ProfilePicture,
	}
}

func groupInfoFromModel(m *GroupModel) *dbt.GroupInfo {
	return &dbt.GroupInfo{
		ID:          m.ID,
		InviteCode:  m.InviteCode,
		Name:        m.Name,
		Photo:       m.Photo,
		TotalAmount: m.TotalAmount,
		CreatorID:   m.CreatorID,
	}
}

func expenseFromModel(m *ExpenseModel, shares map[string]float64) dbt.Expense {
	return dbt.Expense{
		ID:             m.ID,
		GroupID:        m.GroupID,
		Name:           m.Name,
		Amount:         m.Amount,
		PaidByID:       m.CreatorID,
		IsBillAttached: m.IsBillAttached,
		BillImage:      m.BillPhoto,
		BillStatus:     dbt.BillStatus(m.BillStatus),
		Shares:         shares,
	}
}

// CreateUser inserts a new user row.
func (pgdb *GORMPayFloDBWrapper) CreateUser(user *dbt.User) error {
	model := UserModel{
		ID:             user.ID,
		Name:           user.Name,
		ProfilePicture: user.ProfilePicture,
	}
	result := pgdb.db.Create(&model)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return fmt.Errorf("user with ID %s already exists: %w", user.ID, result.Error)
		}
		return fmt.Errorf("failed to create user: %w", result.Error)
	}
	return nil
}

func (pgdb *GORMPayFloDBWrapper) GetUser(id string) (*dbt.User, error) {
	var model UserModel
	result := pgdb.db.First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, result.Error)
	}
	user := userFromModel(&model)
	return &user, nil
}

// UpdateUser applies the non-nil fields and returns the fresh row.
func (pgdb *GORMPayFloDBWrapper) UpdateUser(id string, name *string, profilePicture *string) (*dbt.User, error) {
	updates := map[string]interface{}{}
	if name != nil {
		updates["name"] = *name
	}
	if profilePicture != nil {
		updates["profile_picture"] = *profilePicture
	}
	if len(updates) > 0 {
		result := pgdb.db.Model(&UserModel{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update user %s: %w", id, result.Error)
		}
	}
	return pgdb.GetUser(id)
}

func (pgdb *GORMPayFloDBWrapper) AddFriend(userID, friendID string) error {
	model := ContactModel{
		UserID:   userID,
		FriendID: friendID,
	}
	result := pgdb.db.Create(&model)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return nil // edge already present
		}
		if strings.Contains(result.Error.Error(), "violates foreign key constraint") {
			return fmt.Errorf("user %s or %s: %w", userID, friendID, dbt.ErrNotFound)
		}
		return fmt.Errorf("failed to add friend: %w", result.Error)
	}
	return nil
}

func (pgdb *GORMPayFloDBWrapper) GetFriends(userID string) ([]dbt.User, error) {
	var models []UserModel
	result := pgdb.db.
		Joins("JOIN contacts ON contacts.friend_id = users.id").
		Where("contacts.user_id = ?", userID).
		Order("contacts.created_at").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get friends of %s: %w", userID, result.Error)
	}

	friends := make([]dbt.User, 0, len(models))
	for i := range models {
		friends = append(friends, userFromModel(&models[i]))
	}
	return friends, nil
}

// CreateGroup inserts the group and its initial membership in one
// transaction. The creator is always a member, exactly once.
func (pgdb *GORMPayFloDBWrapper) CreateGroup(info *dbt.GroupInfo, memberIDs []string) error {
	return pgdb.db.Transaction(func(tx *gorm.DB) error {
		groupModel := GroupModel{
			ID:          info.ID,
			InviteCode:  info.InviteCode,
			Name:        info.Name,
			Photo:       info.Photo,
			TotalAmount: info.TotalAmount,
			CreatorID:   info.CreatorID,
		}
		if err := tx.Create(&groupModel).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("group %s or invite code %s already exists: %w", info.ID, info.InviteCode, err)
			}
			return fmt.Errorf("failed to create group: %w", err)
		}

		members := []string{info.CreatorID}
		seen := map[string]struct{}{info.CreatorID: {}}
		for _, memberID := range memberIDs {
			if _, ok := seen[memberID]; ok {
				continue
			}
			seen[memberID] = struct{}{}
			members = append(members, memberID)
		}

		memberModels := make([]GroupMemberModel, 0, len(members))
		for _, memberID := range members {
			memberModels = append(memberModels, GroupMemberModel{
				GroupID: info.ID,
				UserID:  memberID,
			})
		}
		if err := tx.Create(&memberModels).Error; err != nil {
			return fmt.Errorf("failed to add members to group %s: %w", info.ID, err)
		}
		return nil
	})
}

func (pgdb *GORMPayFloDBWrapper) GetGroupInfo(id string) (*dbt.GroupInfo, error) {
	var model GroupModel
	result := pgdb.db.First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get group %s: %w", id, result.Error)
	}
	return groupInfoFromModel(&model), nil
}

func (pgdb *GORMPayFloDBWrapper) GetGroupInfoByInviteCode(code string) (*dbt.GroupInfo, error) {
	var model GroupModel
	result := pgdb.db.First(&model, "invite_code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invite code %s: %w", code, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get group by invite code: %w", result.Error)
	}
	return groupInfoFromModel(&model), nil
}

func (pgdb *GORMPayFloDBWrapper) GetGroupMembers(groupID string) ([]dbt.User, error) {
	if _, err := pgdb.GetGroupInfo(groupID); err != nil {
		return nil, err
	}

	var models []UserModel
	result := pgdb.db.
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id = ?", groupID).
		Order("group_members.created_at").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get members of group %s: %w", groupID, result.Error)
	}

	members := make([]dbt.User, 0, len(models))
	for i := range models {
		members = append(members, userFromModel(&models[i]))
	}
	return members, nil
}

func (pgdb *GORMPayFloDBWrapper) GetUserGroups(userID string) ([]dbt.GroupInfo, error) {
	var models []GroupModel
	result := pgdb.db.
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.created_at").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get groups of user %s: %w", userID, result.Error)
	}

	groups := make([]dbt.GroupInfo, 0, len(models))
	for i := range models {
		groups = append(groups, *groupInfoFromModel(&models[i]))
	}
	return groups, nil
}

// UpdateGroupInfo updates the mutable group fields (name, photo).
func (pgdb *GORMPayFloDBWrapper) UpdateGroupInfo(info *dbt.GroupInfo) error {
	updates := map[string]interface{}{"name": info.Name}
	if info.Photo != nil {
		updates["photo"] = *info.Photo
	}
	result := pgdb.db.Model(&GroupModel{}).Where("id = ?", info.ID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update group %s: %w", info.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("group %s: %w", info.ID, dbt.ErrNotFound)
	}
	return nil
}

func (pgdb *GORMPayFloDBWrapper) AddGroupMember(groupID, userID string) error {
	model := GroupMemberModel{
		GroupID: groupID,
		UserID:  userID,
	}
	result := pgdb.db.Create(&model)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return nil // membership never shrinks, re-join is a no-op
		}
		if strings.Contains(result.Error.Error(), "violates foreign key constraint") {
			return fmt.Errorf("group %s or user %s: %w", groupID, userID, dbt.ErrNotFound)
		}
		return fmt.Errorf("failed to add member %s to group %s: %w", userID, groupID, result.Error)
	}
	return nil
}

func (pgdb *GORMPayFloDBWrapper) IsGroupMember(groupID, userID string) (bool, error) {
	var count int64
	result := pgdb.db.Model(&GroupMemberModel{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check membership: %w", result.Error)
	}
	return count > 0, nil
}

func (pgdb *GORMPayFloDBWrapper) InviteCodeTaken(code string) (bool, error) {
	var count int64
	result := pgdb.db.Model(&GroupModel{}).Where("invite_code = ?", code).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check invite code: %w", result.Error)
	}
	return count > 0, nil
}

// CreateExpense inserts the expense and its participant shares in one
// transaction.
func (pgdb *GORMPayFloDBWrapper) CreateExpense(expense *dbt.Expense) error {
	return pgdb.db.Transaction(func(tx *gorm.DB) error {
		model := ExpenseModel{
			ID:             expense.ID,
			GroupID:        expense.GroupID,
			Name:           expense.Name,
			Amount:         expense.Amount,
			CreatorID:      expense.PaidByID,
			IsBillAttached: expense.IsBillAttached,
			BillPhoto:      expense.BillImage,
			BillStatus:     string(expense.BillStatus),
		}
		if err := tx.Create(&model).Error; err != nil {
			if strings.Contains(err.Error(), "violates foreign key constraint") {
				return fmt.Errorf("group %s: %w", expense.GroupID, dbt.ErrNotFound)
			}
			return fmt.Errorf("failed to create expense: %w", err)
		}

		if len(expense.Shares) == 0 {
			return nil
		}
		participants := make([]ExpenseParticipantModel, 0, len(expense.Shares))
		for userID, share := range expense.Shares {
			participants = append(participants, ExpenseParticipantModel{
				ExpenseID: expense.ID,
				UserID:    userID,
				Share:     share,
			})
		}
		if err := tx.Create(&participants).Error; err != nil {
			return fmt.Errorf("failed to add participants to expense %s: %w", expense.ID, err)
		}
		return nil
	})
}

func (pgdb *GORMPayFloDBWrapper) getExpenseShares(tx *gorm.DB, expenseID string) (map[string]float64, error) {
	var participantModels []ExpenseParticipantModel
	if err := tx.Where("expense_id = ?", expenseID).Find(&participantModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get participants of expense %s: %w", expenseID, err)
	}
	shares := make(map[string]float64, len(participantModels))
	for _, pm := range participantModels {
		shares[pm.UserID] = pm.Share
	}
	return shares, nil
}

func (pgdb *GORMPayFloDBWrapper) GetExpense(id string) (*dbt.Expense, error) {
	var model ExpenseModel
	result := pgdb.db.First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("expense %s: %w", id, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get expense %s: %w", id, result.Error)
	}
	shares, err := pgdb.getExpenseShares(pgdb.db, id)
	if err != nil {
		return nil, err
	}
	expense := expenseFromModel(&model, shares)
	return &expense, nil
}

func (pgdb *GORMPayFloDBWrapper) GetGroupExpenses(groupID string) ([]dbt.Expense, error) {
	if _, err := pgdb.GetGroupInfo(groupID); err != nil {
		return nil, err
	}

	var models []ExpenseModel
	result := pgdb.db.Where("group_id = ?", groupID).Order("created_at").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get expenses of group %s: %w", groupID, result.Error)
	}

	expenses := make([]dbt.Expense, 0, len(models))
	for i := range models {
		shares, err := pgdb.getExpenseShares(pgdb.db, models[i].ID)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expenseFromModel(&models[i], shares))
	}
	return expenses, nil
}

func (pgdb *GORMPayFloDBWrapper) SetExpenseBillResult(expenseID string, total float64, items []dbt.BillItem) error {
	return pgdb.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExpenseModel{}).Where("id = ?", expenseID).Updates(map[string]interface{}{
			"amount":      total,
			"bill_status": string(dbt.BillStatusReady),
		})
		if result.Error != nil {
			return fmt.Errorf("failed to update expense %s: %w", expenseID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("expense %s: %w", expenseID, dbt.ErrNotFound)
		}

		if len(items) == 0 {
			return nil
		}
		itemModels := make([]BillItemModel, 0, len(items))
		for _, item := range items {
			itemModels = append(itemModels, BillItemModel{
				ID:         item.ID,
				ExpenseID:  expenseID,
				Name:       item.Name,
				Price:      item.Price,
				Quantity:   item.Quantity,
				TotalPrice: item.TotalPrice,
			})
		}
		if err := tx.Create(&itemModels).Error; err != nil {
			return fmt.Errorf("failed to create bill items for expense %s: %w", expenseID, err)
		}
		return nil
	})
}

func (pgdb *GORMPayFloDBWrapper) SetExpenseBillStatus(expenseID string, status dbt.BillStatus) error {
	result := pgdb.db.Model(&ExpenseModel{}).Where("id = ?", expenseID).
		Update("bill_status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update bill status of expense %s: %w", expenseID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, dbt.ErrNotFound)
	}
	return nil
}

func (pgdb *GORMPayFloDBWrapper) getItemAssignments(tx *gorm.DB, itemIDs []string) (map[string][]string, error) {
	var assignmentModels []BillItemAssignmentModel
	if err := tx.Where("bill_item_id IN ?", itemIDs).Order("created_at").Find(&assignmentModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get item assignments: %w", err)
	}
	assignments := make(map[string][]string)
	for _, am := range assignmentModels {
		assignments[am.BillItemID] = append(assignments[am.BillItemID], am.UserID)
	}
	return assignments, nil
}

func (pgdb *GORMPayFloDBWrapper) GetBillItems(expenseID string) ([]dbt.BillItem, error) {
	if _, err := pgdb.GetExpense(expenseID); err != nil {
		return nil, err
	}

	var models []BillItemModel
	result := pgdb.db.Where("expense_id = ?", expenseID).Order("created_at").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get bill items of expense %s: %w", expenseID, result.Error)
	}

	itemIDs := make([]string, 0, len(models))
	for i := range models {
		itemIDs = append(itemIDs, models[i].ID)
	}
	assignments := map[string][]string{}
	if len(itemIDs) > 0 {
		var err error
		assignments, err = pgdb.getItemAssignments(pgdb.db, itemIDs)
		if err != nil {
			return nil, err
		}
	}

	items := make([]dbt.BillItem, 0, len(models))
	for i := range models {
		items = append(items, dbt.BillItem{
			ID:                models[i].ID,
			ExpenseID:         models[i].ExpenseID,
			Name:              models[i].Name,
			Price:             models[i].Price,
			Quantity:          models[i].Quantity,
			TotalPrice:        models[i].TotalPrice,
			AssignedToUserIDs: assignments[models[i].ID],
		})
	}
	return items, nil
}

func (pgdb *GORMPayFloDBWrapper) GetBillItem(itemID string) (*dbt.BillItem, error) {
	var model BillItemModel
	result := pgdb.db.First(&model, "id = ?", itemID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("bill item %s: %w", itemID, dbt.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bill item %s: %w", itemID, result.Error)
	}

	assignments, err := pgdb.getItemAssignments(pgdb.db, []string{itemID})
	if err != nil {
		return nil, err
	}
	return &dbt.BillItem{
		ID:                model.ID,
		ExpenseID:         model.ExpenseID,
		Name:              model.Name,
		Price:             model.Price,
		Quantity:          model.Quantity,
		TotalPrice:        model.TotalPrice,
		AssignedToUserIDs: assignments[itemID],
	}, nil
}

// ToggleAssignments runs the whole batch in a single transaction, so either
// every toggle lands or none does.
func (pgdb *GORMPayFloDBWrapper) ToggleAssignments(userID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return pgdb.db.Transaction(func(tx *gorm.DB) error {
		var itemModels []BillItemModel
		if err := tx.Where("id IN ?", itemIDs).Find(&itemModels).Error; err != nil {
			return fmt.Errorf("failed to load bill items: %w", err)
		}
		if len(itemModels) != len(itemIDs) {
			return fmt.Errorf("some bill items are missing: %w", dbt.ErrNotFound)
		}
		expenseID := itemModels[0].ExpenseID
		for i := range itemModels {
			if itemModels[i].ExpenseID != expenseID {
				return fmt.Errorf("bill items span expenses %s and %s", expenseID, itemModels[i].ExpenseID)
			}
		}

		for i := range itemModels {
			if err := toggleOne(tx, &itemModels[i], userID); err != nil {
				return err
			}
		}
		return nil
	})
}

// toggleOne flips one assignment and maintains the participant rows: first
// claim inserts the participant with the item price as a stand-in share, and
// the last dropped claim in the expense removes the participant row.
func toggleOne(tx *gorm.DB, item *BillItemModel, userID string) error {
	var existing int64
	if err := tx.Model(&BillItemAssignmentModel{}).
		Where("bill_item_id = ? AND user_id = ?", item.ID, userID).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to check assignment: %w", err)
	}

	if existing > 0 {
		if err := tx.Where("bill_item_id = ? AND user_id = ?", item.ID, userID).
			Delete(&BillItemAssignmentModel{}).Error; err != nil {
			return fmt.Errorf("failed to remove assignment: %w", err)
		}

		var remaining int64
		if err := tx.Model(&BillItemAssignmentModel{}).
			Joins("JOIN bill_items ON bill_items.id = bill_item_assignments.bill_item_id").
			Where("bill_items.expense_id = ? AND bill_item_assignments.user_id = ?", item.ExpenseID, userID).
			Count(&remaining).Error; err != nil {
			return fmt.Errorf("failed to count remaining assignments: %w", err)
		}
		if remaining == 0 {
			if err := tx.Where("expense_id = ? AND user_id = ?", item.ExpenseID, userID).
				Delete(&ExpenseParticipantModel{}).Error; err != nil {
				return fmt.Errorf("failed to remove participant: %w", err)
			}
		}
		return nil
	}

	if err := tx.Create(&BillItemAssignmentModel{BillItemID: item.ID, UserID: userID}).Error; err != nil {
		return fmt.Errorf("failed to add assignment: %w", err)
	}

	var isParticipant int64
	if err := tx.Model(&ExpenseParticipantModel{}).
		Where("expense_id = ? AND user_id = ?", item.ExpenseID, userID).
		Count(&isParticipant).Error; err != nil {
		return fmt.Errorf("failed to check participant: %w", err)
	}
	if isParticipant == 0 {
		if err := tx.Create(&ExpenseParticipantModel{
			ExpenseID: item.ExpenseID,
			UserID:    userID,
			Share:     item.Price,
		}).Error; err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}
	return nil
}

func (pgdb *GORMPayFloDBWrapper) DataLoaderGetGroupInfoList(ctx context.Context, groupIDs []string) (map[string]*dbt.GroupInfo, error) {
	var models []GroupModel
	result := pgdb.db.WithContext(ctx).Where("id IN ?", groupIDs).Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to batch load groups: %w", result.Error)
	}
	infos := make(map[string]*dbt.GroupInfo, len(models))
	for i := range models {
		infos[models[i].ID] = groupInfoFromModel(&models[i])
	}
	return infos, nil
}

func (pgdb *GORMPayFloDBWrapper) DataLoaderGetMemberList(ctx context.Context, groupIDs []string) (map[string][]dbt.User, error) {
	rows := []struct {
		UserModel
		GroupID string
	}{}
	result := pgdb.db.WithContext(ctx).Model(&UserModel{}).
		Select("users.*, group_members.group_id").
		Joins("JOIN group_members ON group_members.user_id = users.id").
		Where("group_members.group_id IN ?", groupIDs).
		Order("group_members.created_at").
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to batch load members: %w", result.Error)
	}

	members := make(map[string][]dbt.User, len(groupIDs))
	for i := range rows {
		members[rows[i].GroupID] = append(members[rows[i].GroupID], userFromModel(&rows[i].UserModel))
	}
	return members, nil
}

func (pgdb *GORMPayFloDBWrapper) DataLoaderGetExpenseList(ctx context.Context, groupIDs []string) (map[string][]dbt.Expense, error) {
	var models []ExpenseModel
	result := pgdb.db.WithContext(ctx).Where("group_id IN ?", groupIDs).Order("created_at").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to batch load expenses: %w", result.Error)
	}

	expenseIDs := make([]string, 0, len(models))
	for i := range models {
		expenseIDs = append(expenseIDs, models[i].ID)
	}
	shares := make(map[string]map[string]float64)
	if len(expenseIDs) > 0 {
		var participantModels []ExpenseParticipantModel
		if err := pgdb.db.WithContext(ctx).Where("expense_id IN ?", expenseIDs).Find(&participantModels).Error; err != nil {
			return nil, fmt.Errorf("failed to batch load participants: %w", err)
		}
		for _, pm := range participantModels {
			if shares[pm.ExpenseID] == nil {
				shares[pm.ExpenseID] = make(map[string]float64)
			}
			shares[pm.ExpenseID][pm.UserID] = pm.Share
		}
	}

	expenses := make(map[string][]dbt.Expense, len(groupIDs))
	for i := range models {
		expenseShares := shares[models[i].ID]
		if expenseShares == nil {
			expenseShares = map[string]float64{}
		}
		expenses[models[i].GroupID] = append(expenses[models[i].GroupID], expenseFromModel(&models[i], expenseShares))
	}
	return expenses, nil
}

func (pgdb *GORMPayFloDBWrapper) DataLoaderGetBillItemList(ctx context.Context, expenseIDs []string) (map[string][]dbt.BillItem, error) {
	var models []BillItemModel
	result := pgdb.db.WithContext(ctx).Where("expense_id IN ?", expenseIDs).Order("created_at").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to batch load bill items: %w", result.Error)
	}

	itemIDs := make([]string, 0, len(models))
	for i := range models {
		itemIDs = append(itemIDs, models[i].ID)
	}
	assignments := map[string][]string{}
	if len(itemIDs) > 0 {
		var err error
		assignments, err = pgdb.getItemAssignments(pgdb.db.WithContext(ctx), itemIDs)
		if err != nil {
			return nil, err
		}
	}

	items := make(map[string][]dbt.BillItem, len(expenseIDs))
	for i := range models {
		items[models[i].ExpenseID] = append(items[models[i].ExpenseID], dbt.BillItem{
			ID:                models[i].ID,
			ExpenseID:         models[i].ExpenseID,
			Name:              models[i].Name,
			Price:             models[i].Price,
			Quantity:          models[i].Quantity,
			TotalPrice:        models[i].TotalPrice,
			AssignedToUserIDs: assignments[models[i].ID],
		})
	}
	return items, nil
}
