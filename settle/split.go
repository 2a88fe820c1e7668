package settle

import "math"

// EvenSplit divides amount evenly among the given participants. The result is
// not rounded; rounding happens at display time via TruncateCents.
func EvenSplit(amount float64, participantIDs []string) (map[string]float64, error) {
	if len(participantIDs) == 0 {
		return nil, ErrNoParticipants
	}
	share := amount / float64(len(participantIDs))
	shares := make(map[string]float64, len(participantIDs))
	for _, id := range participantIDs {
		shares[id] = share
	}
	return shares, nil
}

// TruncateCents cuts a monetary value to two decimals. This is truncation,
// not rounding: 3.339 becomes 3.33. The client has always displayed shares
// this way, so the behavior is kept for compatibility.
func TruncateCents(x float64) float64 {
	return math.Floor(x*100) / 100
}

// ItemizedShares computes what each participant owes for an itemized expense:
// for every item a participant claims, they owe an even share of that item's
// total price among however many people currently claim it.
//
// A participant with no assigned items owes 0. Unassigned items contribute to
// nobody's share, so the shares need not sum to the expense total — an
// unassigned item is unsettled cost, not an error.
func ItemizedShares(items []BillItem, participantIDs []string) map[string]float64 {
	shares := make(map[string]float64, len(participantIDs))
	for _, id := range participantIDs {
		shares[id] = 0
	}
	for _, item := range items {
		if len(item.AssignedTo) == 0 {
			continue
		}
		perClaimer := item.TotalPrice / float64(len(item.AssignedTo))
		for _, userID := range item.AssignedTo {
			shares[userID] += perClaimer
		}
	}
	return shares
}

// Toggle flips one user's claim on an item's assignee set: present means
// remove, absent means add. There are no separate assign/unassign entry
// points. The second return value reports whether the user ended up assigned.
func Toggle(assigned []string, userID string) ([]string, bool) {
	for i, id := range assigned {
		if id == userID {
			return append(assigned[:i:i], assigned[i+1:]...), false
		}
	}
	return append(assigned[:len(assigned):len(assigned)], userID), true
}

// DeriveParticipants recomputes the participant set of an itemized expense
// from its item assignments, in first-seen order. Participant membership is a
// derived view, never maintained incrementally, so it cannot drift from the
// assignments.
func DeriveParticipants(items []BillItem) []string {
	seen := make(map[string]struct{})
	var participants []string
	for _, item := range items {
		for _, userID := range item.AssignedTo {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			participants = append(participants, userID)
		}
	}
	return participants
}
