// Package pricing computes ticket purchase totals from the discounts a user
// has selected. All functions are pure and clamp out-of-range input instead of
// failing, so the same calculation can back both the preview shown while the
// user toggles discounts and the authoritative totals stored on the
// transaction.
package pricing

import "time"

// Selection is the set of discounts a user has toggled for a transaction.
type Selection struct {
	UsePoints    bool  `json:"use_points"`
	PointsAmount int64 `json:"points_amount"`
	UseVoucher   bool  `json:"use_voucher"`
	UseCoupon    bool  `json:"use_coupon"`
}

// CouponOffer is the user's redeemable coupon, if any.
type CouponOffer struct {
	Nominal int64 `json:"nominal"`
}

// VoucherOffer is the event's active voucher, if any.
type VoucherOffer struct {
	Nominal   int64     `json:"nominal"`
	Quota     int       `json:"quota"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// PointsOffer is the user's spendable points balance.
type PointsOffer struct {
	Available int64 `json:"available"`
}

// Eligibility is a read-only snapshot of the discounts a user may apply.
type Eligibility struct {
	Points  PointsOffer   `json:"points"`
	Coupon  *CouponOffer  `json:"coupon"`
	Voucher *VoucherOffer `json:"voucher"`
}

// Quote is the priced result of a selection against an eligibility snapshot.
type Quote struct {
	Subtotal       int64 `json:"subtotal"`
	OtherDiscounts int64 `json:"other_discounts"`
	PointsUsed     int64 `json:"points_used"`
	TotalDiscount  int64 `json:"total_discount"`
	FinalPrice     int64 `json:"final_price"`
}

// VoucherUsable reports whether the voucher can be applied at the given time:
// inside its validity window with quota remaining.
func (v *VoucherOffer) Usable(now time.Time) bool {
	if v == nil {
		return false
	}
	return v.Quota > 0 && now.Before(v.EndDate) && !now.Before(v.StartDate)
}

// OtherDiscounts is the combined coupon and voucher contribution, excluding
// points. An unusable voucher or absent coupon contributes nothing regardless
// of the selection.
func OtherDiscounts(sel Selection, elig Eligibility, now time.Time) int64 {
	var total int64
	if sel.UseCoupon && elig.Coupon != nil {
		total += elig.Coupon.Nominal
	}
	if sel.UseVoucher && elig.Voucher.Usable(now) {
		total += elig.Voucher.Nominal
	}
	return total
}

// MaxPoints is the largest points amount spendable on top of the other
// discounts: capped by the available balance and by the still-chargeable part
// of the subtotal.
func MaxPoints(subtotal, otherDiscounts, available int64) int64 {
	remaining := subtotal - otherDiscounts
	if remaining < 0 {
		remaining = 0
	}
	if available < remaining {
		return available
	}
	return remaining
}

// Clamp normalizes a selection against the eligibility snapshot: selections
// for absent or unusable discounts are dropped, and the points amount is
// re-clamped into [0, MaxPoints]. Clamping runs before every quote so a points
// amount chosen while coupon or voucher were active can never stay stale-high
// after they are toggled off.
func Clamp(sel Selection, subtotal int64, elig Eligibility, now time.Time) Selection {
	if sel.UseCoupon && elig.Coupon == nil {
		sel.UseCoupon = false
	}
	if sel.UseVoucher && !elig.Voucher.Usable(now) {
		sel.UseVoucher = false
	}

	if !sel.UsePoints {
		sel.PointsAmount = 0
		return sel
	}

	max := MaxPoints(subtotal, OtherDiscounts(sel, elig, now), elig.Points.Available)
	if sel.PointsAmount > max {
		sel.PointsAmount = max
	}
	if sel.PointsAmount < 0 {
		sel.PointsAmount = 0
	}
	return sel
}

// Calculate prices a selection. The selection is clamped first, so any
// well-typed input yields a valid quote: FinalPrice is never negative and the
// points portion never exceeds the allowance.
func Calculate(subtotal int64, sel Selection, elig Eligibility, now time.Time) Quote {
	if subtotal < 0 {
		subtotal = 0
	}
	sel = Clamp(sel, subtotal, elig, now)

	other := OtherDiscounts(sel, elig, now)
	points := int64(0)
	if sel.UsePoints {
		points = sel.PointsAmount
	}

	total := other + points
	final := subtotal - total
	if final < 0 {
		final = 0
	}

	return Quote{
		Subtotal:       subtotal,
		OtherDiscounts: other,
		PointsUsed:     points,
		TotalDiscount:  total,
		FinalPrice:     final,
	}
}
