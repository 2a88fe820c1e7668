package db

// User ids are opaque strings (uuid at creation time) and never change.
// Pictures travel as base64 text, same as the mobile client sends them.
type User struct {
	ID             string
	Name           string
	ProfilePicture *string
}

// GroupInfo is the group row without its membership.
type GroupInfo struct {
	ID          string
	InviteCode  string
	Name        string
	Photo       *string
	TotalAmount float64
	CreatorID   string
}

// Group is the full view the API serves: info plus resolved members.
type Group struct {
	GroupInfo
	Participants []User
}

// BillStatus tracks the background receipt-scan lifecycle of an expense.
// Empty means no bill is attached.
type BillStatus string

const (
	BillStatusNone       BillStatus = ""
	BillStatusProcessing BillStatus = "processing"
	BillStatusReady      BillStatus = "ready"
	BillStatusFailed     BillStatus = "failed"
)

type Expense struct {
	ID             string
	GroupID        string
	Name           string
	Amount         float64
	PaidByID       string
	IsBillAttached bool
	BillImage      *string
	BillStatus     BillStatus
	// Shares holds the stored participant -> owed mapping. For itemized
	// expenses these are stand-in values; the serving layer recomputes the
	// real shares from item assignments on every read.
	Shares map[string]float64
}

type BillItem struct {
	ID                string
	ExpenseID         string
	Name              string
	Price             float64
	Quantity          int
	TotalPrice        float64
	AssignedToUserIDs []string
}
