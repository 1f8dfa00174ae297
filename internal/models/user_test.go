package models

import (
	"testing"
	"time"
)

func TestCouponUsable(t *testing.T) {
	now := time.Now()

	coupon := Coupon{ExpiredAt: now.Add(24 * time.Hour)}
	if !coupon.Usable(now) {
		t.Error("unused coupon inside validity should be usable")
	}

	used := now.Add(-time.Hour)
	coupon.UsedAt = &used
	if coupon.Usable(now) {
		t.Error("redeemed coupon must not be usable")
	}

	coupon.UsedAt = nil
	coupon.ExpiredAt = now.Add(-time.Minute)
	if coupon.Usable(now) {
		t.Error("expired coupon must not be usable")
	}
}

func TestPasswordResetTokenUsable(t *testing.T) {
	now := time.Now()

	token := PasswordResetToken{ExpiresAt: now.Add(10 * time.Minute)}
	if !token.Usable(now) {
		t.Error("fresh token should be usable")
	}

	used := now
	token.UsedAt = &used
	if token.Usable(now) {
		t.Error("burned token must not be usable")
	}

	token.UsedAt = nil
	token.ExpiresAt = now.Add(-time.Minute)
	if token.Usable(now) {
		t.Error("expired token must not be usable")
	}
}
