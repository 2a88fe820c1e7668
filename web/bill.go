package web

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"payflo/db/db"
	mqt "payflo/mq/mq"
	"payflo/settle"
)

// billProcessTimeout bounds the whole background scan, LLM call included.
const billProcessTimeout = 60 * time.Second

// processBill runs the receipt scan for one expense in the background. The
// expense was created with status processing; this flips it to ready with the
// scanned items, or to failed.
func (h *Handler) processBill(expenseID, groupID, billImage string) {
	ctx, cancel := context.WithTimeout(context.Background(), billProcessTimeout)
	defer cancel()

	billData, err := h.analyzer.ProcessBillImage(ctx, billImage)
	if err != nil {
		log.Printf("bill scan for expense %s failed: %v", expenseID, err)
		h.failBill(expenseID, groupID)
		return
	}

	items := make([]db.BillItem, 0, len(billData.Items))
	for _, item := range billData.Items {
		items = append(items, db.BillItem{
			ID:         uuid.NewString(),
			ExpenseID:  expenseID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
		})
	}

	total := settle.TruncateCents(billData.Total)
	if err := h.store.SetExpenseBillResult(expenseID, total, items); err != nil {
		log.Printf("failed to store bill result for expense %s: %v", expenseID, err)
		h.failBill(expenseID, groupID)
		return
	}

	h.publishExpense(mqt.ActionUpdate, mqt.ExpenseMessage{
		GroupID:    groupID,
		ExpenseID:  expenseID,
		Amount:     total,
		BillStatus: db.BillStatusReady,
	})
	h.publishBillItems(mqt.ActionCreate, mqt.BillItemsMessage{
		GroupID:   groupID,
		ExpenseID: expenseID,
		Items:     items,
	})
}

func (h *Handler) failBill(expenseID, groupID string) {
	if err := h.store.SetExpenseBillStatus(expenseID, db.BillStatusFailed); err != nil {
		log.Printf("failed to mark expense %s bill as failed: %v", expenseID, err)
		return
	}
	h.publishExpense(mqt.ActionUpdate, mqt.ExpenseMessage{
		GroupID:    groupID,
		ExpenseID:  expenseID,
		BillStatus: db.BillStatusFailed,
	})
}
