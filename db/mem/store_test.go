package mem_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbt "payflo/db/db"
	"payflo/db/mem"
)

func setupTest() dbt.PayFloDBWrapper {
	return mem.NewInMemoryPayFloDBWrapper()
}

func createUser(t *testing.T, store dbt.PayFloDBWrapper, name string) *dbt.User {
	t.Helper()
	user := &dbt.User{ID: uuid.NewString(), Name: name}
	require.NoError(t, store.CreateUser(user))
	return user
}

func createGroup(t *testing.T, store dbt.PayFloDBWrapper, creatorID string, memberIDs ...string) *dbt.GroupInfo {
	t.Helper()
	info := &dbt.GroupInfo{
		ID:         uuid.NewString(),
		InviteCode: uuid.NewString()[:6],
		Name:       "Test Group",
		CreatorID:  creatorID,
	}
	require.NoError(t, store.CreateGroup(info, memberIDs))
	return info
}

func TestCreateAndGetUser(t *testing.T) {
	store := setupTest()

	user := createUser(t, store, "Alice")

	retrieved, err := store.GetUser(user.ID)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, retrieved.ID)
	assert.Equal(t, "Alice", retrieved.Name)
	assert.Nil(t, retrieved.ProfilePicture)

	err = store.CreateUser(user)
	assert.Error(t, err, "duplicate user ID must be rejected")
	assert.Contains(t, err.Error(), "already exists")

	_, err = store.GetUser("missing")
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	store := setupTest()
	user := createUser(t, store, "Alice")

	newName := "Alicia"
	pic := "base64data"
	updated, err := store.UpdateUser(user.ID, &newName, &pic)
	assert.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	require.NotNil(t, updated.ProfilePicture)
	assert.Equal(t, "base64data", *updated.ProfilePicture)

	// Nil fields leave existing values alone.
	updated, err = store.UpdateUser(user.ID, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.NotNil(t, updated.ProfilePicture)

	_, err = store.UpdateUser("missing", &newName, nil)
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestFriendsAreDirected(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	bob := createUser(t, store, "Bob")

	require.NoError(t, store.AddFriend(alice.ID, bob.ID))

	aliceFriends, err := store.GetFriends(alice.ID)
	assert.NoError(t, err)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, bob.ID, aliceFriends[0].ID)

	// The edge is one-way.
	bobFriends, err := store.GetFriends(bob.ID)
	assert.NoError(t, err)
	assert.Empty(t, bobFriends)

	// Re-adding is a no-op, not a duplicate.
	require.NoError(t, store.AddFriend(alice.ID, bob.ID))
	aliceFriends, _ = store.GetFriends(alice.ID)
	assert.Len(t, aliceFriends, 1)
}

func TestCreateGroupMembership(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	bob := createUser(t, store, "Bob")

	// Creator listed in memberIDs too: must not be duplicated.
	group := createGroup(t, store, alice.ID, bob.ID, alice.ID)

	members, err := store.GetGroupMembers(group.ID)
	assert.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, alice.ID, members[0].ID, "creator joins first")
	assert.Equal(t, bob.ID, members[1].ID)

	groups, err := store.GetUserGroups(bob.ID)
	assert.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, group.ID, groups[0].ID)
}

func TestInviteCodeLookupAndJoin(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	carol := createUser(t, store, "Carol")
	group := createGroup(t, store, alice.ID)

	taken, err := store.InviteCodeTaken(group.InviteCode)
	assert.NoError(t, err)
	assert.True(t, taken)
	taken, err = store.InviteCodeTaken("000000")
	assert.NoError(t, err)
	assert.False(t, taken)

	found, err := store.GetGroupInfoByInviteCode(group.InviteCode)
	assert.NoError(t, err)
	assert.Equal(t, group.ID, found.ID)

	_, err = store.GetGroupInfoByInviteCode("999999")
	assert.ErrorIs(t, err, dbt.ErrNotFound)

	require.NoError(t, store.AddGroupMember(group.ID, carol.ID))
	require.NoError(t, store.AddGroupMember(group.ID, carol.ID)) // idempotent
	members, _ := store.GetGroupMembers(group.ID)
	assert.Len(t, members, 2)

	isMember, err := store.IsGroupMember(group.ID, carol.ID)
	assert.NoError(t, err)
	assert.True(t, isMember)
}

func TestCreateExpenseAndList(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	bob := createUser(t, store, "Bob")
	group := createGroup(t, store, alice.ID, bob.ID)

	expense := &dbt.Expense{
		ID:       uuid.NewString(),
		GroupID:  group.ID,
		Name:     "Dinner",
		Amount:   40,
		PaidByID: alice.ID,
		Shares:   map[string]float64{alice.ID: 20, bob.ID: 20},
	}
	require.NoError(t, store.CreateExpense(expense))

	expenses, err := store.GetGroupExpenses(group.ID)
	assert.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Dinner", expenses[0].Name)
	assert.Equal(t, 20.0, expenses[0].Shares[bob.ID])

	err = store.CreateExpense(&dbt.Expense{ID: uuid.NewString(), GroupID: "missing"})
	assert.ErrorIs(t, err, dbt.ErrNotFound)
}

func TestSetExpenseBillResult(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	group := createGroup(t, store, alice.ID)

	img := "base64bill"
	expense := &dbt.Expense{
		ID:             uuid.NewString(),
		GroupID:        group.ID,
		Name:           "Restaurant",
		Amount:         0,
		PaidByID:       alice.ID,
		IsBillAttached: true,
		BillImage:      &img,
		BillStatus:     dbt.BillStatusProcessing,
		Shares:         map[string]float64{},
	}
	require.NoError(t, store.CreateExpense(expense))

	items := []dbt.BillItem{
		{ID: uuid.NewString(), Name: "Pizza", Price: 12, Quantity: 1, TotalPrice: 12},
		{ID: uuid.NewString(), Name: "Cola", Price: 3, Quantity: 2, TotalPrice: 6},
	}
	require.NoError(t, store.SetExpenseBillResult(expense.ID, 18, items))

	updated, err := store.GetExpense(expense.ID)
	assert.NoError(t, err)
	assert.Equal(t, 18.0, updated.Amount)
	assert.Equal(t, dbt.BillStatusReady, updated.BillStatus)

	stored, err := store.GetBillItems(expense.ID)
	assert.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, expense.ID, stored[0].ExpenseID)
	assert.Empty(t, stored[0].AssignedToUserIDs)
}

func TestToggleAssignmentsSideEffects(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	bob := createUser(t, store, "Bob")
	group := createGroup(t, store, alice.ID, bob.ID)

	expense := &dbt.Expense{
		ID:             uuid.NewString(),
		GroupID:        group.ID,
		Name:           "Bar",
		PaidByID:       alice.ID,
		IsBillAttached: true,
		BillStatus:     dbt.BillStatusProcessing,
		Shares:         map[string]float64{},
	}
	require.NoError(t, store.CreateExpense(expense))
	items := []dbt.BillItem{
		{ID: uuid.NewString(), Name: "Beer", Price: 5, Quantity: 2, TotalPrice: 10},
		{ID: uuid.NewString(), Name: "Wine", Price: 8, Quantity: 1, TotalPrice: 8},
	}
	require.NoError(t, store.SetExpenseBillResult(expense.ID, 18, items))

	// First claim makes bob a participant with the item price as stand-in.
	require.NoError(t, store.ToggleAssignments(bob.ID, []string{items[0].ID}))
	updated, _ := store.GetExpense(expense.ID)
	assert.Equal(t, 5.0, updated.Shares[bob.ID])
	item, _ := store.GetBillItem(items[0].ID)
	assert.Equal(t, []string{bob.ID}, item.AssignedToUserIDs)

	// Claiming a second item does not reset the stand-in share.
	require.NoError(t, store.ToggleAssignments(bob.ID, []string{items[1].ID}))
	updated, _ = store.GetExpense(expense.ID)
	assert.Equal(t, 5.0, updated.Shares[bob.ID])

	// Dropping one claim keeps bob a participant, dropping the last removes him.
	require.NoError(t, store.ToggleAssignments(bob.ID, []string{items[1].ID}))
	updated, _ = store.GetExpense(expense.ID)
	_, stillParticipant := updated.Shares[bob.ID]
	assert.True(t, stillParticipant)

	require.NoError(t, store.ToggleAssignments(bob.ID, []string{items[0].ID}))
	updated, _ = store.GetExpense(expense.ID)
	_, stillParticipant = updated.Shares[bob.ID]
	assert.False(t, stillParticipant)
}

func TestToggleAssignmentsAtomicity(t *testing.T) {
	store := setupTest()
	alice := createUser(t, store, "Alice")
	group := createGroup(t, store, alice.ID)

	expense := &dbt.Expense{
		ID:             uuid.NewString(),
		GroupID:        group.ID,
		PaidByID:       alice.ID,
		IsBillAttached: true,
		Shares:         map[string]float64{},
	}
	require.NoError(t, store.CreateExpense(expense))
	items := []dbt.BillItem{
		{ID: uuid.NewString(), Name: "Soup", Price: 4, Quantity: 1, TotalPrice: 4},
	}
	require.NoError(t, store.SetExpenseBillResult(expense.ID, 4, items))

	// One good id plus one bad id: nothing may be applied.
	err := store.ToggleAssignments(alice.ID, []string{items[0].ID, "missing"})
	assert.ErrorIs(t, err, dbt.ErrNotFound)

	item, _ := store.GetBillItem(items[0].ID)
	assert.Empty(t, item.AssignedToUserIDs, "failed batch must not partially apply")
	updated, _ := store.GetExpense(expense.ID)
	assert.Empty(t, updated.Shares)
}
