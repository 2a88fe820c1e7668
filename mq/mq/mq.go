package mq

import "github.com/google/uuid"

// TopicProvider is implemented by every message type; the topic is the group
// id the message belongs to.
type TopicProvider interface {
	GetTopic() string
}

type GroupMessageQueueWrapper interface {
	GetExpenseMessageQueue(action Action) ExpenseMessageQueue
	GetBillItemsMessageQueue(action Action) BillItemsMessageQueue
}

type ExpenseMessageQueue interface {
	GetAction() Action
	Publish(msg ExpenseMessage) error
	Subscribe(groupID string) (uuid.UUID, <-chan ExpenseMessage, error)
	DeSubscribe(id uuid.UUID) error
}

type BillItemsMessageQueue interface {
	GetAction() Action
	Publish(msg BillItemsMessage) error
	Subscribe(groupID string) (uuid.UUID, <-chan BillItemsMessage, error)
	DeSubscribe(id uuid.UUID) error
}
