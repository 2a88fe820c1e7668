package mem

import (
	"context"
	"fmt"
	"sync"

	dbt "payflo/db/db"
)

// inMemoryPayFloDBWrapper is an in-memory implementation of
// dbt.PayFloDBWrapper, used by tests and dev mode. All reads hand out copies
// so callers cannot mutate stored state behind the lock.
type inMemoryPayFloDBWrapper struct {
	users   map[string]*dbt.User
	friends map[string][]string // userID -> friend ids, insertion order

	groups         map[string]*dbt.GroupInfo
	groupsByInvite map[string]string   // invite code -> group id
	groupMembers   map[string][]string // groupID -> member ids, insertion order

	expenses      map[string]*dbt.Expense
	groupExpenses map[string][]string // groupID -> expense ids, insertion order

	billItems    map[string]*dbt.BillItem
	expenseItems map[string][]string // expenseID -> item ids, insertion order

	mu sync.RWMutex
}

func NewInMemoryPayFloDBWrapper() dbt.PayFloDBWrapper {
	return &inMemoryPayFloDBWrapper{
		users:          make(map[string]*dbt.User),
		friends:        make(map[string][]string),
		groups:         make(map[string]*dbt.GroupInfo),
		groupsByInvite: make(map[string]string),
		groupMembers:   make(map[string][]string),
		expenses:       make(map[string]*dbt.Expense),
		groupExpenses:  make(map[string][]string),
		billItems:      make(map[string]*dbt.BillItem),
		expenseItems:   make(map[string][]string),
	}
}

func copyUser(u *dbt.User) *dbt.User {
	userCopy := *u
	if u.ProfilePicture != nil {
		pic := *u.ProfilePicture
		userCopy.ProfilePicture = &pic
	}
	return &userCopy
}

func copyGroupInfo(g *dbt.GroupInfo) *dbt.GroupInfo {
	groupCopy := *g
	if g.Photo != nil {
		photo := *g.Photo
		groupCopy.Photo = &photo
	}
	return &groupCopy
}

func copyExpense(e *dbt.Expense) *dbt.Expense {
	expenseCopy := *e
	if e.BillImage != nil {
		img := *e.BillImage
		expenseCopy.BillImage = &img
	}
	expenseCopy.Shares = make(map[string]float64, len(e.Shares))
	for id, share := range e.Shares {
		expenseCopy.Shares[id] = share
	}
	return &expenseCopy
}

func copyBillItem(item *dbt.BillItem) *dbt.BillItem {
	itemCopy := *item
	itemCopy.AssignedToUserIDs = append([]string{}, item.AssignedToUserIDs...)
	return &itemCopy
}

func (m *inMemoryPayFloDBWrapper) CreateUser(user *dbt.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ID]; exists {
		return fmt.Errorf("user with ID %s already exists", user.ID)
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *inMemoryPayFloDBWrapper) GetUser(id string) (*dbt.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, dbt.ErrNotFound)
	}
	return copyUser(user), nil
}

func (m *inMemoryPayFloDBWrapper) UpdateUser(id string, name *string, profilePicture *string) (*dbt.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, dbt.ErrNotFound)
	}
	if name != nil {
		user.Name = *name
	}
	if profilePicture != nil {
		pic := *profilePicture
		user.ProfilePicture = &pic
	}
	return copyUser(user), nil
}

func (m *inMemoryPayFloDBWrapper) AddFriend(userID, friendID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[userID]; !exists {
		return fmt.Errorf("user %s: %w", userID, dbt.ErrNotFound)
	}
	if _, exists := m.users[friendID]; !exists {
		return fmt.Errorf("user %s: %w", friendID, dbt.ErrNotFound)
	}
	for _, id := range m.friends[userID] {
		if id == friendID {
			return nil // edge already present
		}
	}
	m.friends[userID] = append(m.friends[userID], friendID)
	return nil
}

func (m *inMemoryPayFloDBWrapper) GetFriends(userID string) ([]dbt.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	friends := make([]dbt.User, 0, len(m.friends[userID]))
	for _, friendID := range m.friends[userID] {
		if friend, exists := m.users[friendID]; exists {
			friends = append(friends, *copyUser(friend))
		}
	}
	return friends, nil
}

func (m *inMemoryPayFloDBWrapper) CreateGroup(info *dbt.GroupInfo, memberIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.groups[info.ID]; exists {
		return fmt.Errorf("group with ID %s already exists", info.ID)
	}
	if _, exists := m.groupsByInvite[info.InviteCode]; exists {
		return fmt.Errorf("invite code %s already in use", info.InviteCode)
	}

	m.groups[info.ID] = copyGroupInfo(info)
	m.groupsByInvite[info.InviteCode] = info.ID

	// Creator joins first, remaining members follow in request order.
	members := []string{info.CreatorID}
	seen := map[string]struct{}{info.CreatorID: {}}
	for _, memberID := range memberIDs {
		if _, ok := seen[memberID]; ok {
			continue
		}
		seen[memberID] = struct{}{}
		members = append(members, memberID)
	}
	m.groupMembers[info.ID] = members
	return nil
}

func (m *inMemoryPayFloDBWrapper) GetGroupInfo(id string) (*dbt.GroupInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.groups[id]
	if !exists {
		return nil, fmt.Errorf("group %s: %w", id, dbt.ErrNotFound)
	}
	return copyGroupInfo(info), nil
}

func (m *inMemoryPayFloDBWrapper) GetGroupInfoByInviteCode(code string) (*dbt.GroupInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groupID, exists := m.groupsByInvite[code]
	if !exists {
		return nil, fmt.Errorf("invite code %s: %w", code, dbt.ErrNotFound)
	}
	return copyGroupInfo(m.groups[groupID]), nil
}

func (m *inMemoryPayFloDBWrapper) GetGroupMembers(groupID string) ([]dbt.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	memberIDs, exists := m.groupMembers[groupID]
	if !exists {
		return nil, fmt.Errorf("group %s: %w", groupID, dbt.ErrNotFound)
	}
	members := make([]dbt.User, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		if user, ok := m.users[memberID]; ok {
			members = append(members, *copyUser(user))
		}
	}
	return members, nil
}

func (m *inMemoryPayFloDBWrapper) GetUserGroups(userID string) ([]dbt.GroupInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var groups []dbt.GroupInfo
	for groupID, memberIDs := range m.groupMembers {
		for _, memberID := range memberIDs {
			if memberID == userID {
				groups = append(groups, *copyGroupInfo(m.groups[groupID]))
				break
			}
		}
	}
	return groups, nil
}

func (m *inMemoryPayFloDBWrapper) UpdateGroupInfo(info *dbt.GroupInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.groups[info.ID]
	if !exists {
		return fmt.Errorf("group %s: %w", info.ID, dbt.ErrNotFound)
	}
	stored.Name = info.Name
	if info.Photo != nil {
		photo := *info.Photo
		stored.Photo = &photo
	}
	return nil
}

func (m *inMemoryPayFloDBWrapper) AddGroupMember(groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	memberIDs, exists := m.groupMembers[groupID]
	if !exists {
		return fmt.Errorf("group %s: %w", groupID, dbt.ErrNotFound)
	}
	for _, memberID := range memberIDs {
		if memberID == userID {
			return nil // membership never shrinks, re-join is a no-op
		}
	}
	m.groupMembers[groupID] = append(memberIDs, userID)
	return nil
}

func (m *inMemoryPayFloDBWrapper) IsGroupMember(groupID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	memberIDs, exists := m.groupMembers[groupID]
	if !exists {
		return false, fmt.Errorf("group %s: %w", groupID, dbt.ErrNotFound)
	}
	for _, memberID := range memberIDs {
		if memberID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *inMemoryPayFloDBWrapper) InviteCodeTaken(code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, taken := m.groupsByInvite[code]
	return taken, nil
}

func (m *inMemoryPayFloDBWrapper) CreateExpense(expense *dbt.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.groups[expense.GroupID]; !exists {
		return fmt.Errorf("group %s: %w", expense.GroupID, dbt.ErrNotFound)
	}
	if _, exists := m.expenses[expense.ID]; exists {
		return fmt.Errorf("expense with ID %s already exists", expense.ID)
	}
	m.expenses[expense.ID] = copyExpense(expense)
	m.groupExpenses[expense.GroupID] = append(m.groupExpenses[expense.GroupID], expense.ID)
	m.expenseItems[expense.ID] = []string{}
	return nil
}

func (m *inMemoryPayFloDBWrapper) GetExpense(id string) (*dbt.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expense, exists := m.expenses[id]
	if !exists {
		return nil, fmt.Errorf("expense %s: %w", id, dbt.ErrNotFound)
	}
	return copyExpense(expense), nil
}

func (m *inMemoryPayFloDBWrapper) GetGroupExpenses(groupID string) ([]dbt.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.groups[groupID]; !exists {
		return nil, fmt.Errorf("group %s: %w", groupID, dbt.ErrNotFound)
	}
	expenses := make([]dbt.Expense, 0, len(m.groupExpenses[groupID]))
	for _, expenseID := range m.groupExpenses[groupID] {
		expenses = append(expenses, *copyExpense(m.expenses[expenseID]))
	}
	return expenses, nil
}

func (m *inMemoryPayFloDBWrapper) SetExpenseBillResult(expenseID string, total float64, items []dbt.BillItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expense, exists := m.expenses[expenseID]
	if !exists {
		return fmt.Errorf("expense %s: %w", expenseID, dbt.ErrNotFound)
	}
	expense.Amount = total
	expense.BillStatus = dbt.BillStatusReady
	for i := range items {
		item := copyBillItem(&items[i])
		item.ExpenseID = expenseID
		m.billItems[item.ID] = item
		m.expenseItems[expenseID] = append(m.expenseItems[expenseID], item.ID)
	}
	return nil
}

func (m *inMemoryPayFloDBWrapper) SetExpenseBillStatus(expenseID string, status dbt.BillStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expense, exists := m.expenses[expenseID]
	if !exists {
		return fmt.Errorf("expense %s: %w", expenseID, dbt.ErrNotFound)
	}
	expense.BillStatus = status
	return nil
}

func (m *inMemoryPayFloDBWrapper) GetBillItems(expenseID string) ([]dbt.BillItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	itemIDs, exists := m.expenseItems[expenseID]
	if !exists {
		return nil, fmt.Errorf("expense %s: %w", expenseID, dbt.ErrNotFound)
	}
	items := make([]dbt.BillItem, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		items = append(items, *copyBillItem(m.billItems[itemID]))
	}
	return items, nil
}

func (m *inMemoryPayFloDBWrapper) GetBillItem(itemID string) (*dbt.BillItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.billItems[itemID]
	if !exists {
		return nil, fmt.Errorf("bill item %s: %w", itemID, dbt.ErrNotFound)
	}
	return copyBillItem(item), nil
}

// ToggleAssignments validates every item before mutating anything, so a
// missing id leaves the store untouched.
func (m *inMemoryPayFloDBWrapper) ToggleAssignments(userID string, itemIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]*dbt.BillItem, 0, len(itemIDs))
	expenseID := ""
	for _, itemID := range itemIDs {
		item, exists := m.billItems[itemID]
		if !exists {
			return fmt.Errorf("bill item %s: %w", itemID, dbt.ErrNotFound)
		}
		if expenseID == "" {
			expenseID = item.ExpenseID
		} else if item.ExpenseID != expenseID {
			return fmt.Errorf("bill items span expenses %s and %s", expenseID, item.ExpenseID)
		}
		items = append(items, item)
	}

	for _, item := range items {
		m.toggleLocked(item, userID)
	}
	return nil
}

// toggleLocked flips one assignment and keeps the expense participant rows in
// step: a user joins the participants with the item price as a stand-in share
// on their first claim, and leaves when their last claim in the expense goes.
func (m *inMemoryPayFloDBWrapper) toggleLocked(item *dbt.BillItem, userID string) {
	expense := m.expenses[item.ExpenseID]

	assigned := false
	for i, id := range item.AssignedToUserIDs {
		if id == userID {
			item.AssignedToUserIDs = append(item.AssignedToUserIDs[:i], item.AssignedToUserIDs[i+1:]...)
			assigned = true
			break
		}
	}
	if assigned {
		if m.assignmentCountLocked(item.ExpenseID, userID) == 0 {
			delete(expense.Shares, userID)
		}
		return
	}

	item.AssignedToUserIDs = append(item.AssignedToUserIDs, userID)
	if _, isParticipant := expense.Shares[userID]; !isParticipant {
		expense.Shares[userID] = item.Price
	}
}

func (m *inMemoryPayFloDBWrapper) assignmentCountLocked(expenseID, userID string) int {
	count := 0
	for _, itemID := range m.expenseItems[expenseID] {
		for _, id := range m.billItems[itemID].AssignedToUserIDs {
			if id == userID {
				count++
			}
		}
	}
	return count
}

func (m *inMemoryPayFloDBWrapper) DataLoaderGetGroupInfoList(_ context.Context, groupIDs []string) (map[string]*dbt.GroupInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*dbt.GroupInfo, len(groupIDs))
	for _, groupID := range groupIDs {
		if info, exists := m.groups[groupID]; exists {
			result[groupID] = copyGroupInfo(info)
		}
	}
	return result, nil
}

func (m *inMemoryPayFloDBWrapper) DataLoaderGetMemberList(_ context.Context, groupIDs []string) (map[string][]dbt.User, error) {
	result := make(map[string][]dbt.User, len(groupIDs))
	for _, groupID := range groupIDs {
		members, err := m.GetGroupMembers(groupID)
		if err != nil {
			continue
		}
		result[groupID] = members
	}
	return result, nil
}

func (m *inMemoryPayFloDBWrapper) DataLoaderGetExpenseList(_ context.Context, groupIDs []string) (map[string][]dbt.Expense, error) {
	result := make(map[string][]dbt.Expense, len(groupIDs))
	for _, groupID := range groupIDs {
		expenses, err := m.GetGroupExpenses(groupID)
		if err != nil {
			continue
		}
		result[groupID] = expenses
	}
	return result, nil
}

func (m *inMemoryPayFloDBWrapper) DataLoaderGetBillItemList(_ context.Context, expenseIDs []string) (map[string][]dbt.BillItem, error) {
	result := make(map[string][]dbt.BillItem, len(expenseIDs))
	for _, expenseID := range expenseIDs {
		items, err := m.GetBillItems(expenseID)
		if err != nil {
			continue
		}
		result[expenseID] = items
	}
	return result, nil
}
