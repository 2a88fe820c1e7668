package db

import (
	"context"
	"errors"
)

// ErrNotFound is returned for unknown ids and propagated unchanged up to the
// HTTP layer.
var ErrNotFound = errors.New("not found")

type PayFloDBWrapper interface {
	// Users
	CreateUser(user *User) error
	GetUser(id string) (*User, error)
	UpdateUser(id string, name *string, profilePicture *string) (*User, error)

	// Contacts. The relation is directed: adding a friend does not make the
	// inverse edge.
	AddFriend(userID, friendID string) error
	GetFriends(userID string) ([]User, error)

	// Groups
	CreateGroup(info *GroupInfo, memberIDs []string) error
	GetGroupInfo(id string) (*GroupInfo, error)
	GetGroupInfoByInviteCode(code string) (*GroupInfo, error)
	GetGroupMembers(groupID string) ([]User, error)
	GetUserGroups(userID string) ([]GroupInfo, error)
	UpdateGroupInfo(info *GroupInfo) error
	AddGroupMember(groupID, userID string) error
	IsGroupMember(groupID, userID string) (bool, error)
	InviteCodeTaken(code string) (bool, error)

	// Expenses
	CreateExpense(expense *Expense) error
	GetExpense(id string) (*Expense, error)
	GetGroupExpenses(groupID string) ([]Expense, error)
	// SetExpenseBillResult stores the scanned line items and the corrected
	// total, and flips the bill status to ready, in one transaction.
	SetExpenseBillResult(expenseID string, total float64, items []BillItem) error
	SetExpenseBillStatus(expenseID string, status BillStatus) error

	// Bill items
	GetBillItems(expenseID string) ([]BillItem, error)
	GetBillItem(itemID string) (*BillItem, error)
	// ToggleAssignments flips the user's claim on each listed item of one
	// expense, maintaining the expense participant rows as a side effect.
	// Application is atomic: either every toggle lands or none does.
	ToggleAssignments(userID string, itemIDs []string) error

	// Data Loader
	DataLoaderGetGroupInfoList(ctx context.Context, groupIDs []string) (map[string]*GroupInfo, error)
	DataLoaderGetMemberList(ctx context.Context, groupIDs []string) (map[string][]User, error)
	DataLoaderGetExpenseList(ctx context.Context, groupIDs []string) (map[string][]Expense, error)
	DataLoaderGetBillItemList(ctx context.Context, expenseIDs []string) (map[string][]BillItem, error)
}
