package web

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	mqt "payflo/mq/mq"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// feedEvent is one frame of the group websocket feed.
type feedEvent struct {
	Type      string                `json:"type"`
	Expense   *mqt.ExpenseMessage   `json:"expense,omitempty"`
	BillItems *mqt.BillItemsMessage `json:"billItems,omitempty"`
}

// GroupFeed streams the group's expense and bill-item events over a
// websocket until the client hangs up.
func (h *Handler) GroupFeed(c *gin.Context) {
	groupID := c.Param("id")
	if _, err := h.store.GetGroupInfo(groupID); err != nil {
		abortNotFoundOr500(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan feedEvent, 16)
	var wg sync.WaitGroup

	forward := func(ch <-chan feedEvent) {
		defer wg.Done()
		for ev := range ch {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}

	subscribeExpense := func(action mqt.Action) {
		out := make(chan feedEvent)
		mqt.SubscribeProcessor[mqt.ExpenseMessageQueue, mqt.ExpenseMessage, feedEvent](groupID, ctx, h.mq.GetExpenseMessageQueue(action),
			func(msg mqt.ExpenseMessage) (feedEvent, bool, error) {
				return feedEvent{Type: "expense." + action.String(), Expense: &msg}, false, nil
			}, out)
		wg.Add(1)
		go forward(out)
	}
	subscribeBillItems := func(action mqt.Action) {
		out := make(chan feedEvent)
		mqt.SubscribeProcessor[mqt.BillItemsMessageQueue, mqt.BillItemsMessage, feedEvent](groupID, ctx, h.mq.GetBillItemsMessageQueue(action),
			func(msg mqt.BillItemsMessage) (feedEvent, bool, error) {
				return feedEvent{Type: "billItems." + action.String(), BillItems: &msg}, false, nil
			}, out)
		wg.Add(1)
		go forward(out)
	}

	subscribeExpense(mqt.ActionCreate)
	subscribeExpense(mqt.ActionUpdate)
	subscribeBillItems(mqt.ActionCreate)
	subscribeBillItems(mqt.ActionUpdate)

	go func() {
		wg.Wait()
		close(events)
	}()

	// Drain client frames only to notice the disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			cancel()
			break
		}
	}

	// Let the forwarders drain before returning closes the connection.
	for range events {
	}
}
