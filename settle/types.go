package settle

import "errors"

// Threshold for float comparisons
const epsilon = 1e-9

// ErrNoParticipants is returned when a split is requested for an empty
// participant list. Callers must guard before invoking.
var ErrNoParticipants = errors.New("expense has no participants")

// BillItem is one line item of an itemized receipt, claimable by zero or more
// participants. TotalPrice is price × quantity, or whatever the receipt
// scanner extracted directly.
type BillItem struct {
	ID         string
	Name       string
	Price      float64
	Quantity   int
	TotalPrice float64
	AssignedTo []string // user ids currently claiming this item
}

// Payment represents a settled expense from the transfer plan's point of
// view: who fronted the money and what share each participant owes.
type Payment struct {
	Name   string
	Amount float64
	PaidBy string
	Shares map[string]float64 // participant id -> owed amount
}

// Balance is the net financial position of one group member after
// normalization: at most one of Owes and Receives is non-zero.
type Balance struct {
	UserID   string
	Owes     float64 // member still has to pay this much
	Receives float64 // member is reimbursed this much
}

// Transfer is one edge of the settlement plan.
type Transfer struct {
	From   string
	To     string
	Amount float64
}

// Plan is the minimal set of transfers that settles a group.
type Plan struct {
	Name      string
	Transfers []Transfer
}
