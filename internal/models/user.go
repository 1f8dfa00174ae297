package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleCustomer  = "customer"
	RoleOrganizer = "organizer"
)

// User represents a registered account, either a customer or an event organizer.
type User struct {
	BaseModel
	Name              string             `json:"name"`
	Email             string             `gorm:"uniqueIndex" json:"email"`
	PasswordHash      string             `json:"-"`
	Role              string             `gorm:"default:customer" json:"role"`
	ReferralCode      string             `gorm:"uniqueIndex" json:"referral_code"`
	ReferredByID      *uuid.UUID         `gorm:"type:uuid" json:"referred_by_id,omitempty"`
	Points            int64              `json:"points"`
	PointTransactions []PointTransaction `json:"point_transactions,omitempty"`
	Coupons           []Coupon           `json:"coupons,omitempty"`
	Transactions      []Transaction      `json:"transactions,omitempty"`
}

// PointTransaction is a ledger entry behind User.Points. Amount is positive for
// earned or refunded points and negative for points spent on a purchase.
type PointTransaction struct {
	BaseModel
	UserID        uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Amount        int64      `json:"amount"`
	Type          string     `json:"type"`
	TransactionID *uuid.UUID `gorm:"type:uuid" json:"transaction_id,omitempty"`
	Note          string     `json:"note"`
}

// Point ledger entry types.
const (
	PointTypeReferral = "referral_reward"
	PointTypeSpend    = "purchase"
	PointTypeRefund   = "refund"
)

// Coupon is a fixed-nominal discount owned by a user, granted on referral signup.
type Coupon struct {
	BaseModel
	UserID    uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Name      string     `json:"name"`
	Nominal   int64      `json:"nominal"`
	ExpiredAt time.Time  `json:"expired_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Usable reports whether the coupon can still be redeemed at the given time.
func (c *Coupon) Usable(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiredAt)
}

// PasswordResetToken is a single-use credential for the password-reset flow.
type PasswordResetToken struct {
	BaseModel
	UserID    uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Token     string     `gorm:"uniqueIndex" json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Usable reports whether the token can still redeem a password change.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
