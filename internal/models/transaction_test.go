package models

import (
	"testing"

	"github.com/finzzzi/event-management-api/internal/pricing"
)

func TestTransactionLifecyclePaths(t *testing.T) {
	cases := []struct {
		name string
		path []TransactionStatus
	}{
		{"payment accepted", []TransactionStatus{StatusWaitingForAdminConfirmation, StatusDone}},
		{"payment rejected", []TransactionStatus{StatusWaitingForAdminConfirmation, StatusRejected}},
		{"canceled before paying", []TransactionStatus{StatusCanceled}},
		{"canceled while awaiting confirmation", []TransactionStatus{StatusWaitingForAdminConfirmation, StatusCanceled}},
		{"payment window closed", []TransactionStatus{StatusExpired}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			txn := Transaction{Status: StatusWaitingForPayment}
			for _, next := range tc.path {
				if err := txn.Transition(next); err != nil {
					t.Fatalf("Transition(%s) from %s: %v", next, txn.Status, err)
				}
			}
			if txn.Status != tc.path[len(tc.path)-1] {
				t.Fatalf("final status = %s, want %s", txn.Status, tc.path[len(tc.path)-1])
			}
		})
	}
}

func TestTerminalStatusesAreImmutable(t *testing.T) {
	terminals := []TransactionStatus{StatusDone, StatusRejected, StatusExpired, StatusCanceled}
	all := []TransactionStatus{
		StatusWaitingForPayment, StatusWaitingForAdminConfirmation,
		StatusDone, StatusRejected, StatusExpired, StatusCanceled,
	}

	for _, from := range terminals {
		if !from.IsTerminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Errorf("CanTransition(%s, %s) = true, want false", from, to)
			}
		}
	}
}

func TestTransitionRejectsSkippingConfirmation(t *testing.T) {
	txn := Transaction{Status: StatusWaitingForPayment}

	if err := txn.Transition(StatusDone); err == nil {
		t.Fatal("expected error when completing an unpaid transaction")
	}
	if txn.Status != StatusWaitingForPayment {
		t.Fatalf("status changed to %s after rejected transition", txn.Status)
	}
}

func TestTransitionFailureLeavesStatusUnchanged(t *testing.T) {
	txn := Transaction{Status: StatusDone}

	if err := txn.Transition(StatusRejected); err == nil {
		t.Fatal("expected error leaving a terminal status")
	}
	if txn.Status != StatusDone {
		t.Fatalf("status = %s, want Done", txn.Status)
	}
}

func TestExpiredCannotBeRevived(t *testing.T) {
	if CanTransition(StatusExpired, StatusWaitingForPayment) {
		t.Error("expired transaction must not return to waiting for payment")
	}
	if CanTransition(StatusExpired, StatusWaitingForAdminConfirmation) {
		t.Error("expired transaction must not accept payment proof")
	}
}

func TestSubtotal(t *testing.T) {
	txn := Transaction{UnitPrice: 50000, Quantity: 2}
	if got := txn.Subtotal(); got != 100000 {
		t.Fatalf("Subtotal() = %d, want 100000", got)
	}
}

func TestOtherDiscountsExcludesPoints(t *testing.T) {
	txn := Transaction{TotalDiscount: 35000, PointsUsed: 15000}
	if got := txn.OtherDiscounts(); got != 20000 {
		t.Fatalf("OtherDiscounts() = %d, want 20000", got)
	}
}

func TestPointsAllowanceAccountsForHeldDiscounts(t *testing.T) {
	txn := Transaction{UnitPrice: 50000, Quantity: 2, TotalDiscount: 35000}

	got := pricing.MaxPoints(txn.Subtotal(), txn.OtherDiscounts(), 100000)
	if got != 65000 {
		t.Fatalf("allowance with coupon and voucher held = %d, want 65000", got)
	}
}
