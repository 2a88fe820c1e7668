package goch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"payflo/mq/mq"
)

type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueStopped QueueError = "message queue is stopped"
)

// subscriberEntry pairs a subscriber channel with the topic it listens to.
type subscriberEntry[M any] struct {
	topic string
	ch    chan M
}

// fanOutQueueCore is an in-process message queue: one publish channel fanned
// out to every subscriber whose topic matches the message's topic. It backs
// the dev-mode driver where all api instances share one process.
type fanOutQueueCore[M mq.TopicProvider] struct {
	publishChan chan M
	subscribers map[uuid.UUID]*subscriberEntry[M]
	mu          sync.RWMutex
	quit        chan struct{}
	stopOnce    sync.Once
	bufferSize  int
}

func newFanOutQueueCore[M mq.TopicProvider](bufferSize int) *fanOutQueueCore[M] {
	core := &fanOutQueueCore[M]{
		publishChan: make(chan M, bufferSize),
		subscribers: make(map[uuid.UUID]*subscriberEntry[M]),
		quit:        make(chan struct{}),
		bufferSize:  bufferSize,
	}
	go core.fanOutRoutine()
	return core
}

func (c *fanOutQueueCore[M]) fanOutRoutine() {
	for {
		select {
		case msg := <-c.publishChan:
			topic := msg.GetTopic()
			c.mu.RLock()
			for _, sub := range c.subscribers {
				if sub.topic != topic {
					continue
				}
				select {
				case sub.ch <- msg:
				case <-time.After(1 * time.Second):
					// Slow subscriber, drop the message for it rather than
					// stalling the whole fan-out.
				case <-c.quit:
					c.mu.RUnlock()
					return
				}
			}
			c.mu.RUnlock()
		case <-c.quit:
			return
		}
	}
}

func (c *fanOutQueueCore[M]) Publish(msg M) error {
	select {
	case c.publishChan <- msg:
		return nil
	case <-c.quit:
		return ErrQueueStopped
	}
}

func (c *fanOutQueueCore[M]) Subscribe(topic string) (uuid.UUID, <-chan M, error) {
	id := uuid.New()
	// Small buffer so a subscriber that is briefly busy does not hit the
	// fan-out send timeout.
	ch := make(chan M, 5)

	c.mu.Lock()
	c.subscribers[id] = &subscriberEntry[M]{topic: topic, ch: ch}
	c.mu.Unlock()

	return id, ch, nil
}

func (c *fanOutQueueCore[M]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscribers[id]
	if !ok {
		return QueueError("subscriber " + id.String() + " not found")
	}
	delete(c.subscribers, id)
	close(sub.ch)
	return nil
}

// Stop shuts the fan-out down and closes every subscriber channel.
func (c *fanOutQueueCore[M]) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.mu.Lock()
		for id, sub := range c.subscribers {
			delete(c.subscribers, id)
			close(sub.ch)
		}
		c.mu.Unlock()
	})
}

// channelExpenseMessageQueue implements mq.ExpenseMessageQueue with an
// in-process fan-out core.
type channelExpenseMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.ExpenseMessage]
}

func NewChannelExpenseMessageQueue(action mq.Action, bufferSize int) mq.ExpenseMessageQueue {
	return &channelExpenseMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.ExpenseMessage](bufferSize),
	}
}

func (q *channelExpenseMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *channelExpenseMessageQueue) Publish(msg mq.ExpenseMessage) error {
	return q.core.Publish(msg)
}

func (q *channelExpenseMessageQueue) Subscribe(groupID string) (uuid.UUID, <-chan mq.ExpenseMessage, error) {
	return q.core.Subscribe(groupID)
}

func (q *channelExpenseMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

// channelBillItemsMessageQueue implements mq.BillItemsMessageQueue with an
// in-process fan-out core.
type channelBillItemsMessageQueue struct {
	action mq.Action
	core   *fanOutQueueCore[mq.BillItemsMessage]
}

func NewChannelBillItemsMessageQueue(action mq.Action, bufferSize int) mq.BillItemsMessageQueue {
	return &channelBillItemsMessageQueue{
		action: action,
		core:   newFanOutQueueCore[mq.BillItemsMessage](bufferSize),
	}
}

func (q *channelBillItemsMessageQueue) GetAction() mq.Action {
	return q.action
}

func (q *channelBillItemsMessageQueue) Publish(msg mq.BillItemsMessage) error {
	return q.core.Publish(msg)
}

func (q *channelBillItemsMessageQueue) Subscribe(groupID string) (uuid.UUID, <-chan mq.BillItemsMessage, error) {
	return q.core.Subscribe(groupID)
}

func (q *channelBillItemsMessageQueue) DeSubscribe(id uuid.UUID) error {
	return q.core.DeSubscribe(id)
}

type GoChanGroupMessageQueueWrapper struct {
	ExpenseMQArray   [mq.ActionCnt]mq.ExpenseMessageQueue
	BillItemsMQArray [mq.ActionCnt]mq.BillItemsMessageQueue
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.ExpenseMQArray[action]
}

func (wrapper *GoChanGroupMessageQueueWrapper) GetBillItemsMessageQueue(action mq.Action) mq.BillItemsMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.BillItemsMQArray[action]
}

// NewGoChanGroupMessageQueueWrapper creates the in-process driver with every
// queue the group event feed uses.
func NewGoChanGroupMessageQueueWrapper() mq.GroupMessageQueueWrapper {
	wrapper := GoChanGroupMessageQueueWrapper{}
	wrapper.ExpenseMQArray[mq.ActionCreate] = NewChannelExpenseMessageQueue(mq.ActionCreate, 0)
	wrapper.ExpenseMQArray[mq.ActionUpdate] = NewChannelExpenseMessageQueue(mq.ActionUpdate, 0)
	wrapper.BillItemsMQArray[mq.ActionCreate] = NewChannelBillItemsMessageQueue(mq.ActionCreate, 0)
	wrapper.BillItemsMQArray[mq.ActionUpdate] = NewChannelBillItemsMessageQueue(mq.ActionUpdate, 0)
	return &wrapper
}
