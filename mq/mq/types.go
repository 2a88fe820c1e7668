package mq

import (
	"payflo/db/db"
)

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionCnt
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Mode selects the message queue driver backing the event feed.
type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)

// ExpenseMessage is published when an expense of a group is created or its
// stored state changes (bill scan finished, total corrected).
type ExpenseMessage struct {
	GroupID    string
	ExpenseID  string
	Name       string
	Amount     float64
	PaidByID   string
	BillStatus db.BillStatus
}

func (m ExpenseMessage) GetTopic() string {
	return m.GroupID
}

// BillItemsMessage carries the full item list of one expense, published when
// the scan produces items or an assignment toggles.
type BillItemsMessage struct {
	GroupID   string
	ExpenseID string
	Items     []db.BillItem
}

func (m BillItemsMessage) GetTopic() string {
	return m.GroupID
}
