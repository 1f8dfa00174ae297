package models

import (
	"fmt"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a ticket purchase.
type TransactionStatus string

const (
	StatusWaitingForPayment           TransactionStatus = "WaitingForPayment"
	StatusWaitingForAdminConfirmation TransactionStatus = "WaitingForAdminConfirmation"
	StatusDone                        TransactionStatus = "Done"
	StatusRejected                    TransactionStatus = "Rejected"
	StatusExpired                     TransactionStatus = "Expired"
	StatusCanceled                    TransactionStatus = "Canceled"
)

// transitions lists every legal status change. Anything not listed is rejected,
// which also makes every terminal state immutable.
var transitions = map[TransactionStatus][]TransactionStatus{
	StatusWaitingForPayment: {
		StatusWaitingForAdminConfirmation,
		StatusExpired,
		StatusCanceled,
	},
	StatusWaitingForAdminConfirmation: {
		StatusDone,
		StatusRejected,
		StatusCanceled,
	},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s TransactionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Transaction is a ticket purchase. TotalPrice is always
// max(UnitPrice*Quantity - TotalDiscount, 0) and TotalDiscount never exceeds
// the subtotal; both are recomputed server-side on every discount change.
type Transaction struct {
	BaseModel
	UserID        uuid.UUID         `gorm:"type:uuid;index" json:"user_id"`
	User          *User             `json:"user,omitempty"`
	EventID       uuid.UUID         `gorm:"type:uuid;index" json:"event_id"`
	Event         *Event            `json:"event,omitempty"`
	Status        TransactionStatus `gorm:"index" json:"status"`
	Quantity      int               `json:"quantity"`
	UnitPrice     int64             `json:"unit_price"`
	PointsUsed    int64             `json:"points_used"`
	CouponID      *uuid.UUID        `gorm:"type:uuid" json:"coupon_id,omitempty"`
	VoucherID     *uuid.UUID        `gorm:"type:uuid" json:"voucher_id,omitempty"`
	TotalDiscount int64             `json:"total_discount"`
	TotalPrice    int64             `json:"total_price"`
	PaymentProof  string            `json:"payment_proof,omitempty"`
	TicketCode    string            `json:"ticket_code,omitempty"`
}

// Subtotal is the pre-discount price of the purchase.
func (t *Transaction) Subtotal() int64 {
	return t.UnitPrice * int64(t.Quantity)
}

// OtherDiscounts is the coupon and voucher portion of the applied discount,
// excluding spent points.
func (t *Transaction) OtherDiscounts() int64 {
	return t.TotalDiscount - t.PointsUsed
}

// Transition moves the transaction to the given status, or fails without
// mutating anything when the change is not legal from the current state.
func (t *Transaction) Transition(to TransactionStatus) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("illegal transaction status change %s -> %s", t.Status, to)
	}
	t.Status = to
	return nil
}
