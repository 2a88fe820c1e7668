package settle

import (
	"math"
	"reflect"
	"sort"
	"testing"
)

func TestEvenSplit(t *testing.T) {
	tests := []struct {
		name           string
		amount         float64
		participantIDs []string
		expected       map[string]float64
		expectErr      bool
	}{
		{
			name:           "two participants",
			amount:         10.0,
			participantIDs: []string{"alice", "bob"},
			expected:       map[string]float64{"alice": 5.0, "bob": 5.0},
		},
		{
			name:           "single participant gets everything",
			amount:         42.5,
			participantIDs: []string{"alice"},
			expected:       map[string]float64{"alice": 42.5},
		},
		{
			name:           "non-terminating division is not pre-rounded",
			amount:         10.0,
			participantIDs: []string{"a", "b", "c"},
			expected:       map[string]float64{"a": 10.0 / 3, "b": 10.0 / 3, "c": 10.0 / 3},
		},
		{
			name:           "empty participants is a precondition violation",
			amount:         10.0,
			participantIDs: nil,
			expectErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := EvenSplit(tt.amount, tt.participantIDs)
			if tt.expectErr {
				if err != ErrNoParticipants {
					t.Fatalf("expected ErrNoParticipants, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(shares, tt.expected) {
				t.Errorf("EvenSplit() = %v, want %v", shares, tt.expected)
			}
		})
	}
}

func TestEvenSplitEntriesEqualAmountOverCount(t *testing.T) {
	// Property check over a few sizes: n entries, each amount/n.
	for _, n := range []int{1, 2, 3, 7, 50} {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i%26)) // ids may repeat past 26, size stays n via index suffix below
		}
		for i := range ids {
			ids[i] = ids[i] + string(rune('0'+i/26))
		}
		shares, err := EvenSplit(99.99, ids)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(shares) != n {
			t.Fatalf("n=%d: got %d entries", n, len(shares))
		}
		want := 99.99 / float64(n)
		for id, share := range shares {
			if math.Abs(share-want) > 1e-12 {
				t.Errorf("n=%d id=%s: share %v, want %v", n, id, share, want)
			}
		}
	}
}

func TestTruncateCents(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{3.339, 3.33},
		{3.331, 3.33},
		{10.0 / 3, 3.33},
		{5.0, 5.0},
		{0.005, 0.0},
		{0.0, 0.0},
	}
	for _, tt := range tests {
		if got := TruncateCents(tt.in); got != tt.expected {
			t.Errorf("TruncateCents(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestItemizedShares(t *testing.T) {
	tests := []struct {
		name           string
		items          []BillItem
		participantIDs []string
		expected       map[string]float64
	}{
		{
			name: "shares aggregate across items",
			items: []BillItem{
				{ID: "i1", TotalPrice: 10.0, AssignedTo: []string{"alice", "bob"}},
				{ID: "i2", TotalPrice: 6.0, AssignedTo: []string{"alice", "bob", "carol"}},
			},
			participantIDs: []string{"alice", "bob", "carol"},
			// alice: 10/2 + 6/3 = 7.0
			expected: map[string]float64{"alice": 7.0, "bob": 7.0, "carol": 2.0},
		},
		{
			name: "participant with no claimed items owes zero",
			items: []BillItem{
				{ID: "i1", TotalPrice: 12.0, AssignedTo: []string{"alice"}},
			},
			participantIDs: []string{"alice", "bob"},
			expected:       map[string]float64{"alice": 12.0, "bob": 0.0},
		},
		{
			name: "fully unassigned bill yields all-zero shares",
			items: []BillItem{
				{ID: "i1", TotalPrice: 20.0},
			},
			participantIDs: []string{"alice", "bob"},
			expected:       map[string]float64{"alice": 0.0, "bob": 0.0},
		},
		{
			name:           "no items no participants",
			items:          nil,
			participantIDs: nil,
			expected:       map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ItemizedShares(tt.items, tt.participantIDs)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ItemizedShares() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestItemizedSharesUnassignedCostStaysUnsettled(t *testing.T) {
	// An expense of $20 whose single $20 item nobody claimed sums to $0.
	// That is the intended meaning of an unclaimed item, not a bug.
	items := []BillItem{{ID: "i1", TotalPrice: 20.0}}
	shares := ItemizedShares(items, []string{"alice", "bob"})
	var sum float64
	for _, s := range shares {
		sum += s
	}
	if sum != 0 {
		t.Errorf("shares sum = %v, want 0", sum)
	}
}

func TestToggle(t *testing.T) {
	tests := []struct {
		name         string
		assigned     []string
		userID       string
		expected     []string
		expectedFlag bool
	}{
		{"assign to empty set", nil, "alice", []string{"alice"}, true},
		{"assign new user", []string{"bob"}, "alice", []string{"bob", "alice"}, true},
		{"unassign present user", []string{"bob", "alice"}, "alice", []string{"bob"}, false},
		{"unassign only user", []string{"alice"}, "alice", []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, assigned := Toggle(tt.assigned, tt.userID)
			if assigned != tt.expectedFlag {
				t.Errorf("Toggle() assigned = %v, want %v", assigned, tt.expectedFlag)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Toggle() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Toggle() = %v, want %v", got, tt.expected)
				}
			}
		})
	}
}

func TestToggleTwiceRestoresOriginal(t *testing.T) {
	original := []string{"alice", "bob"}
	once, _ := Toggle(original, "carol")
	twice, _ := Toggle(once, "carol")

	a := append([]string{}, original...)
	b := append([]string{}, twice...)
	sort.Strings(a)
	sort.Strings(b)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("double toggle changed the set: %v -> %v", original, twice)
	}

	// Toggle must not mutate its input.
	if !reflect.DeepEqual(original, []string{"alice", "bob"}) {
		t.Errorf("input slice was mutated: %v", original)
	}
}

func TestDeriveParticipants(t *testing.T) {
	items := []BillItem{
		{ID: "i1", AssignedTo: []string{"bob", "alice"}},
		{ID: "i2", AssignedTo: []string{"alice", "carol"}},
		{ID: "i3"},
	}
	got := DeriveParticipants(items)
	expected := []string{"bob", "alice", "carol"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("DeriveParticipants() = %v, want %v", got, expected)
	}
}

func TestDeriveParticipantsFollowsAssignments(t *testing.T) {
	// Assigning a new user makes them a participant; removing their last
	// assignment removes them.
	items := []BillItem{
		{ID: "i1", TotalPrice: 8.0, AssignedTo: []string{"alice"}},
		{ID: "i2", TotalPrice: 4.0, AssignedTo: []string{"alice"}},
	}

	items[0].AssignedTo, _ = Toggle(items[0].AssignedTo, "bob")
	got := DeriveParticipants(items)
	if !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("after assign: %v", got)
	}

	items[0].AssignedTo, _ = Toggle(items[0].AssignedTo, "bob")
	got = DeriveParticipants(items)
	if !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("after unassign: %v", got)
	}
}
