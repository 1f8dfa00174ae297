package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/finzzzi/event-management-api/internal/models"
)

// ErrIllegalTransition is returned when a requested status change is not
// allowed from the transaction's current state.
var ErrIllegalTransition = errors.New("illegal transaction status change")

// ErrVoucherExhausted is returned when a selected voucher ran out of quota
// between the eligibility read and the consumption write.
var ErrVoucherExhausted = errors.New("voucher quota exhausted")

// TransactionService owns transaction lifecycle changes and the resource
// bookkeeping attached to them. Every status change runs in a database
// transaction under a row lock, so a failed change leaves the prior state
// fully intact.
type TransactionService struct {
	db      *gorm.DB
	tickets *TicketService
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(db *gorm.DB, tickets *TicketService) *TransactionService {
	return &TransactionService{db: db, tickets: tickets}
}

// Finalize moves a transaction to the given status and applies the side
// effects that belong to it: Done issues an e-ticket, while Expired, Rejected
// and Canceled return the held points, coupon, voucher quota and event seats.
func (s *TransactionService) Finalize(id uuid.UUID, to models.TransactionStatus) (*models.Transaction, error) {
	var txn models.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&txn, "id = ?", id).Error; err != nil {
			return err
		}

		if err := txn.Transition(to); err != nil {
			return fmt.Errorf("%w: %v", ErrIllegalTransition, err)
		}

		updates := map[string]any{"status": to}

		switch to {
		case models.StatusDone:
			code, err := s.tickets.Issue(&txn)
			if err != nil {
				log.Printf("[Transaction] ticket issue failed for %s: %v", txn.ID, err)
			} else {
				txn.TicketCode = code
				updates["ticket_code"] = code
			}
		case models.StatusExpired, models.StatusRejected, models.StatusCanceled:
			if err := ReleaseHolds(tx, &txn); err != nil {
				return err
			}
		}

		return tx.Model(&models.Transaction{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

// ReleaseHolds returns everything a pending purchase reserved: the discount
// holds plus the event seats.
func ReleaseHolds(tx *gorm.DB, txn *models.Transaction) error {
	if err := ReleaseDiscounts(tx, txn); err != nil {
		return err
	}
	return tx.Model(&models.Event{}).
		Where("id = ?", txn.EventID).
		Update("quota", gorm.Expr("quota + ?", txn.Quantity)).Error
}

// ConsumeHolds reserves everything a new purchase needs: the discount holds
// plus the event seats. Callers must hold row locks on the affected rows.
func ConsumeHolds(tx *gorm.DB, txn *models.Transaction, now time.Time) error {
	if err := ConsumeDiscounts(tx, txn, now); err != nil {
		return err
	}
	return tx.Model(&models.Event{}).
		Where("id = ?", txn.EventID).
		Update("quota", gorm.Expr("quota - ?", txn.Quantity)).Error
}

// ReleaseDiscounts gives back the discounts held by a transaction: spent
// points return to the user with a refund ledger entry, a redeemed coupon
// becomes usable again and voucher quota is restored. Seats stay held, so a
// discount change on a live transaction releases and re-consumes only this
// part.
func ReleaseDiscounts(tx *gorm.DB, txn *models.Transaction) error {
	if txn.PointsUsed > 0 {
		if err := tx.Model(&models.User{}).
			Where("id = ?", txn.UserID).
			Update("points", gorm.Expr("points + ?", txn.PointsUsed)).Error; err != nil {
			return err
		}

		entry := models.PointTransaction{
			UserID:        txn.UserID,
			Amount:        txn.PointsUsed,
			Type:          models.PointTypeRefund,
			TransactionID: &txn.ID,
			Note:          "refund for transaction " + txn.ID.String(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}

	if txn.CouponID != nil {
		if err := tx.Model(&models.Coupon{}).
			Where("id = ?", *txn.CouponID).
			Update("used_at", nil).Error; err != nil {
			return err
		}
	}

	if txn.VoucherID != nil {
		if err := tx.Model(&models.Voucher{}).
			Where("id = ?", *txn.VoucherID).
			Update("quota", gorm.Expr("quota + 1")).Error; err != nil {
			return err
		}
	}

	return nil
}

// ConsumeDiscounts reserves the discounts a transaction applies, mirroring
// ReleaseDiscounts.
func ConsumeDiscounts(tx *gorm.DB, txn *models.Transaction, now time.Time) error {
	if txn.PointsUsed > 0 {
		if err := tx.Model(&models.User{}).
			Where("id = ?", txn.UserID).
			Update("points", gorm.Expr("points - ?", txn.PointsUsed)).Error; err != nil {
			return err
		}

		entry := models.PointTransaction{
			UserID:        txn.UserID,
			Amount:        -txn.PointsUsed,
			Type:          models.PointTypeSpend,
			TransactionID: &txn.ID,
			Note:          "spent on transaction " + txn.ID.String(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}

	if txn.CouponID != nil {
		if err := tx.Model(&models.Coupon{}).
			Where("id = ?", *txn.CouponID).
			Update("used_at", now).Error; err != nil {
			return err
		}
	}

	if txn.VoucherID != nil {
		if err := consumeVoucherQuota(tx, *txn.VoucherID); err != nil {
			return err
		}
	}

	return nil
}

// consumeVoucherQuota decrements a voucher's quota without letting it drop
// below zero. The guard lives in the WHERE clause, so concurrent consumers
// racing for the last quota resolve at the database: only one row update
// succeeds, the rest see zero affected rows.
func consumeVoucherQuota(tx *gorm.DB, voucherID uuid.UUID) error {
	result := tx.Model(&models.Voucher{}).
		Where("id = ? AND quota > 0", voucherID).
		Update("quota", gorm.Expr("quota - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVoucherExhausted
	}
	return nil
}
