package settle

import (
	"container/list"
	"fmt"
	"sort"
)

// BalancesFromPayments nets out a list of settled payments into one balance
// per member: the payer of each expense is owed the full amount, every
// participant owes their share.
func BalancesFromPayments(payments []Payment) []Balance {
	balanceMap := make(map[string]*Balance)

	getEntry := func(userID string) *Balance {
		if entry, ok := balanceMap[userID]; ok {
			return entry
		}
		entry := &Balance{UserID: userID}
		balanceMap[userID] = entry
		return entry
	}

	for _, p := range payments {
		getEntry(p.PaidBy).Receives += p.Amount
		for userID, share := range p.Shares {
			getEntry(userID).Owes += share
		}
	}

	balances := make([]Balance, 0, len(balanceMap))
	for _, entry := range balanceMap {
		balances = append(balances, *entry)
	}
	return NormalizeBalances(balances)
}

// NormalizeBalances merges duplicate entries and cancels Owes against
// Receives so every balance carries at most one non-zero side.
func NormalizeBalances(balances []Balance) []Balance {
	merged := make(map[string]*Balance)
	for _, b := range balances {
		if entry, ok := merged[b.UserID]; ok {
			entry.Owes += b.Owes
			entry.Receives += b.Receives
		} else {
			merged[b.UserID] = &Balance{UserID: b.UserID, Owes: b.Owes, Receives: b.Receives}
		}
	}

	result := make([]Balance, 0, len(merged))
	for _, entry := range merged {
		if entry.Owes > entry.Receives {
			entry.Owes -= entry.Receives
			entry.Receives = 0
		} else {
			entry.Receives -= entry.Owes
			entry.Owes = 0
		}
		if entry.Owes < epsilon {
			entry.Owes = 0
		}
		if entry.Receives < epsilon {
			entry.Receives = 0
		}
		result = append(result, *entry)
	}
	return result
}

// generateQueues splits normalized balances into two queues, debtors and
// creditors, both sorted by amount descending with user id as tie-breaker so
// plan generation is deterministic.
func generateQueues(balances []Balance) (*list.List, *list.List) {
	var debtors []Balance
	var creditors []Balance
	for _, b := range balances {
		if b.Owes > epsilon {
			debtors = append(debtors, b)
		} else if b.Receives > epsilon {
			creditors = append(creditors, b)
		}
	}

	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].Owes == debtors[j].Owes {
			return debtors[i].UserID < debtors[j].UserID
		}
		return debtors[i].Owes > debtors[j].Owes
	})
	sort.SliceStable(creditors, func(i, j int) bool {
		if creditors[i].Receives == creditors[j].Receives {
			return creditors[i].UserID < creditors[j].UserID
		}
		return creditors[i].Receives > creditors[j].Receives
	})

	debtorQueue := list.New()
	for _, b := range debtors {
		debtorQueue.PushBack(b)
	}
	creditorQueue := list.New()
	for _, b := range creditors {
		creditorQueue.PushBack(b)
	}
	return debtorQueue, creditorQueue
}

// BuildPlan turns normalized balances into a minimal transfer plan by pairing
// the largest debtor with the largest creditor until one side is exhausted.
//
// The returned unsettled amount is the credit no debtor covers. It is only
// non-zero when shares do not add up to the amounts paid, which for an
// itemized expense simply means some items are still unclaimed.
func BuildPlan(balances []Balance, name string) (Plan, float64, error) {
	plan := Plan{Name: name}
	debtorQueue, creditorQueue := generateQueues(balances)

	for debtorQueue.Len() > 0 && creditorQueue.Len() > 0 {
		debtorElem := debtorQueue.Front()
		creditorElem := creditorQueue.Front()
		debtor := debtorElem.Value.(Balance)
		creditor := creditorElem.Value.(Balance)

		amount := debtor.Owes
		if creditor.Receives < amount {
			amount = creditor.Receives
		}
		if amount <= epsilon {
			return plan, 0, fmt.Errorf("unexpected non-positive transfer between %s and %s", debtor.UserID, creditor.UserID)
		}

		plan.Transfers = append(plan.Transfers, Transfer{
			From:   debtor.UserID,
			To:     creditor.UserID,
			Amount: amount,
		})

		debtor.Owes -= amount
		creditor.Receives -= amount

		debtorQueue.Remove(debtorElem)
		creditorQueue.Remove(creditorElem)
		if debtor.Owes > epsilon {
			debtorQueue.PushFront(debtor)
		}
		if creditor.Receives > epsilon {
			creditorQueue.PushFront(creditor)
		}
	}

	var unsettled float64
	for creditorQueue.Len() > 0 {
		elem := creditorQueue.Front()
		creditorQueue.Remove(elem)
		unsettled += elem.Value.(Balance).Receives
	}
	// Leftover debt means shares exceed what was paid, which the store's
	// invariants rule out; report it instead of folding it into the plan.
	for debtorQueue.Len() > 0 {
		elem := debtorQueue.Front()
		debtorQueue.Remove(elem)
		leftover := elem.Value.(Balance)
		if leftover.Owes > epsilon {
			return plan, unsettled, fmt.Errorf("debtor %s owes %.2f with no creditor left", leftover.UserID, leftover.Owes)
		}
	}

	return plan, unsettled, nil
}

// SharePayments is the one-call settlement: net balances from payments, then
// a transfer plan.
func SharePayments(payments []Payment, name string) (Plan, float64, error) {
	return BuildPlan(BalancesFromPayments(payments), name)
}

func (p *Plan) String() string {
	result := "Plan: " + p.Name + "\n"
	for _, t := range p.Transfers {
		result += fmt.Sprintf("  %s -> %s: %.2f\n", t.From, t.To, t.Amount)
	}
	return result
}
