package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"payflo/mq/mq"
)

const (
	exchangeName = "group_events_exchange" // All group-related events go through this exchange
)

// Routing keys per message type and action.
const (
	expenseCreateRoutingKey   = "expense.create"
	expenseUpdateRoutingKey   = "expense.update"
	billItemsCreateRoutingKey = "billitems.create"
	billItemsUpdateRoutingKey = "billitems.update"
)

func getRoutingKey(action mq.Action, msgType string) string {
	switch msgType {
	case "expense":
		switch action {
		case mq.ActionCreate:
			return expenseCreateRoutingKey
		case mq.ActionUpdate:
			return expenseUpdateRoutingKey
		}
	case "billitems":
		switch action {
		case mq.ActionCreate:
			return billItemsCreateRoutingKey
		case mq.ActionUpdate:
			return billItemsUpdateRoutingKey
		}
	}
	return ""
}

// rabbitGroupQueue is the shared mechanics of both RabbitMQ queue kinds:
// publish JSON to the exchange under a routing key, and give each subscriber
// its own exclusive queue so every subscriber sees every message. Group
// filtering happens on the consumer side.
type rabbitGroupQueue[M mq.TopicProvider] struct {
	action     mq.Action
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	routingKey string
	mu         sync.Mutex
	consumers  map[uuid.UUID]context.CancelFunc
}

func newRabbitGroupQueue[M mq.TopicProvider](action mq.Action, conn *amqp091.Connection, msgType string) (*rabbitGroupQueue[M], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := DeclareExchange(ch, exchangeName); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitGroupQueue[M]{
		action:     action,
		conn:       conn,
		channel:    ch,
		routingKey: getRoutingKey(action, msgType),
		consumers:  make(map[uuid.UUID]context.CancelFunc),
	}, nil
}

func (q *rabbitGroupQueue[M]) GetAction() mq.Action {
	return q.action
}

func (q *rabbitGroupQueue[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		q.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (q *rabbitGroupQueue[M]) Subscribe(groupID string) (uuid.UUID, <-chan M, error) {
	// Each subscriber gets an exclusive auto-delete queue bound to the
	// routing key, so subscribers fan out instead of competing.
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	queue, err := consumeCh.QueueDeclare(
		"",    // name, broker-generated
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		consumeCh.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}
	if err := consumeCh.QueueBind(queue.Name, q.routingKey, exchangeName, false, nil); err != nil {
		consumeCh.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	msgs, err := consumeCh.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		consumeCh.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	outputChan := make(chan M)
	ctx, cancel := context.WithCancel(context.Background())

	q.mu.Lock()
	q.consumers[subscriberID] = cancel
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			delete(q.consumers, subscriberID)
			q.mu.Unlock()
			consumeCh.Close()
			close(outputChan)
		}()

		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}
				var msg M
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					log.Printf("Failed to unmarshal message for consumer %s: %v", subscriberID, err)
					continue
				}
				if msg.GetTopic() != groupID {
					continue
				}
				select {
				case outputChan <- msg:
				case <-time.After(1 * time.Second):
					log.Printf("Timeout sending message to consumer %s. Skipping.", subscriberID)
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return subscriberID, outputChan, nil
}

func (q *rabbitGroupQueue[M]) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	cancel, ok := q.consumers[subscriberID]
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("consumer with ID %s not found", subscriberID)
	}
	cancel()
	return nil
}

// rabbitGroupMessageQueueWrapper implements mq.GroupMessageQueueWrapper for RabbitMQ.
type rabbitGroupMessageQueueWrapper struct {
	ExpenseMQArray   [mq.ActionCnt]mq.ExpenseMessageQueue
	BillItemsMQArray [mq.ActionCnt]mq.BillItemsMessageQueue
	conn             *amqp091.Connection
}

func NewRabbitGroupMessageQueueWrapper(conn *amqp091.Connection) (mq.GroupMessageQueueWrapper, error) {
	wrapper := &rabbitGroupMessageQueueWrapper{
		conn: conn,
	}

	for _, action := range []mq.Action{mq.ActionCreate, mq.ActionUpdate} {
		expenseQueue, err := newRabbitGroupQueue[mq.ExpenseMessage](action, conn, "expense")
		if err != nil {
			return nil, fmt.Errorf("failed to create expense %s mq: %w", action, err)
		}
		wrapper.ExpenseMQArray[action] = expenseQueue

		billItemsQueue, err := newRabbitGroupQueue[mq.BillItemsMessage](action, conn, "billitems")
		if err != nil {
			return nil, fmt.Errorf("failed to create bill items %s mq: %w", action, err)
		}
		wrapper.BillItemsMQArray[action] = billItemsQueue
	}

	return wrapper, nil
}

func (wrapper *rabbitGroupMessageQueueWrapper) GetExpenseMessageQueue(action mq.Action) mq.ExpenseMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.ExpenseMQArray[action]
}

func (wrapper *rabbitGroupMessageQueueWrapper) GetBillItemsMessageQueue(action mq.Action) mq.BillItemsMessageQueue {
	if action < 0 || action >= mq.ActionCnt {
		return nil
	}
	return wrapper.BillItemsMQArray[action]
}

// Close closes all channels and the RabbitMQ connection.
func (wrapper *rabbitGroupMessageQueueWrapper) Close() {
	for _, q := range wrapper.ExpenseMQArray {
		if rmq, ok := q.(*rabbitGroupQueue[mq.ExpenseMessage]); ok && rmq.channel != nil {
			rmq.channel.Close()
		}
	}
	for _, q := range wrapper.BillItemsMQArray {
		if rmq, ok := q.(*rabbitGroupQueue[mq.BillItemsMessage]); ok && rmq.channel != nil {
			rmq.channel.Close()
		}
	}
	if wrapper.conn != nil {
		wrapper.conn.Close()
	}
}
