package settle

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sortedBalances(balances []Balance) []Balance {
	sorted := append([]Balance{}, balances...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })
	return sorted
}

func TestNormalizeBalances(t *testing.T) {
	tests := []struct {
		name     string
		input    []Balance
		expected []Balance
	}{
		{
			name: "owes and receives cancel",
			input: []Balance{
				{UserID: "alice", Owes: 30, Receives: 100},
				{UserID: "bob", Owes: 70, Receives: 0},
			},
			expected: []Balance{
				{UserID: "alice", Owes: 0, Receives: 70},
				{UserID: "bob", Owes: 70, Receives: 0},
			},
		},
		{
			name: "duplicate entries are merged",
			input: []Balance{
				{UserID: "alice", Owes: 10},
				{UserID: "alice", Owes: 5, Receives: 20},
			},
			expected: []Balance{
				{UserID: "alice", Owes: 0, Receives: 5},
			},
		},
		{
			name: "even position zeroes out",
			input: []Balance{
				{UserID: "alice", Owes: 50, Receives: 50},
			},
			expected: []Balance{
				{UserID: "alice", Owes: 0, Receives: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeBalances(tt.input)
			assert.Equal(t, sortedBalances(tt.expected), sortedBalances(got))
		})
	}
}

func TestBalancesFromPayments(t *testing.T) {
	payments := []Payment{
		{
			Name:   "dinner",
			Amount: 90,
			PaidBy: "alice",
			Shares: map[string]float64{"alice": 30, "bob": 30, "carol": 30},
		},
		{
			Name:   "taxi",
			Amount: 30,
			PaidBy: "bob",
			Shares: map[string]float64{"alice": 15, "bob": 15},
		},
	}

	got := sortedBalances(BalancesFromPayments(payments))
	expected := []Balance{
		{UserID: "alice", Owes: 0, Receives: 45},  // paid 90, owes 45
		{UserID: "bob", Owes: 15, Receives: 0},    // paid 30, owes 45
		{UserID: "carol", Owes: 30, Receives: 0},  // owes 30
	}
	assert.Equal(t, expected, got)
}

func TestBuildPlanSettlesExactly(t *testing.T) {
	balances := []Balance{
		{UserID: "alice", Receives: 45},
		{UserID: "bob", Owes: 15},
		{UserID: "carol", Owes: 30},
	}
	plan, unsettled, err := BuildPlan(balances, "weekend")
	assert.NoError(t, err)
	assert.InDelta(t, 0, unsettled, epsilon)

	// Every creditor is made whole, every debtor pays exactly their debt.
	paid := make(map[string]float64)
	received := make(map[string]float64)
	for _, tr := range plan.Transfers {
		assert.Greater(t, tr.Amount, 0.0)
		paid[tr.From] += tr.Amount
		received[tr.To] += tr.Amount
	}
	assert.InDelta(t, 15, paid["bob"], epsilon)
	assert.InDelta(t, 30, paid["carol"], epsilon)
	assert.InDelta(t, 45, received["alice"], epsilon)
}

func TestBuildPlanSplitsLargeDebtAcrossCreditors(t *testing.T) {
	balances := []Balance{
		{UserID: "alice", Receives: 60},
		{UserID: "bob", Receives: 40},
		{UserID: "carol", Owes: 100},
	}
	plan, unsettled, err := BuildPlan(balances, "split")
	assert.NoError(t, err)
	assert.InDelta(t, 0, unsettled, epsilon)
	assert.Len(t, plan.Transfers, 2)
	// Largest creditor is served first.
	assert.Equal(t, Transfer{From: "carol", To: "alice", Amount: 60}, plan.Transfers[0])
	assert.Equal(t, Transfer{From: "carol", To: "bob", Amount: 40}, plan.Transfers[1])
}

func TestBuildPlanReportsUnsettledCredit(t *testing.T) {
	// The payer of an itemized expense with unclaimed items is owed more
	// than participants owe in total. The gap comes back as unsettled.
	balances := []Balance{
		{UserID: "alice", Receives: 20},
		{UserID: "bob", Owes: 12},
	}
	plan, unsettled, err := BuildPlan(balances, "partial")
	assert.NoError(t, err)
	assert.InDelta(t, 8, unsettled, epsilon)
	assert.Len(t, plan.Transfers, 1)
	assert.Equal(t, "bob", plan.Transfers[0].From)
	assert.InDelta(t, 12, plan.Transfers[0].Amount, epsilon)
}

func TestSharePaymentsEndToEnd(t *testing.T) {
	payments := []Payment{
		{Name: "ktv", Amount: 100, PaidBy: "a", Shares: map[string]float64{"a": 50, "b": 50}},
		{Name: "drinks", Amount: 60, PaidBy: "b", Shares: map[string]float64{"a": 20, "b": 20, "c": 20}},
	}
	plan, unsettled, err := SharePayments(payments, "trip")
	assert.NoError(t, err)
	assert.InDelta(t, 0, unsettled, epsilon)

	// Net: a paid 100 owes 70 -> +30; b paid 60 owes 70 -> -10; c -> -20.
	net := map[string]float64{}
	for _, tr := range plan.Transfers {
		net[tr.From] -= tr.Amount
		net[tr.To] += tr.Amount
	}
	assert.True(t, math.Abs(net["a"]-30) < epsilon, "a should end up +30, got %v", net["a"])
	assert.True(t, math.Abs(net["b"]+10) < epsilon, "b should end up -10, got %v", net["b"])
	assert.True(t, math.Abs(net["c"]+20) < epsilon, "c should end up -20, got %v", net["c"])
}
