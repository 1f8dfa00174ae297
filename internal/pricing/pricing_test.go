package pricing

import (
	"testing"
	"time"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func activeVoucher(nominal int64, quota int) *VoucherOffer {
	return &VoucherOffer{
		Nominal:   nominal,
		Quota:     quota,
		StartDate: now.Add(-24 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	}
}

func TestCalculateStacksAllDiscounts(t *testing.T) {
	elig := Eligibility{
		Points:  PointsOffer{Available: 50000},
		Coupon:  &CouponOffer{Nominal: 20000},
		Voucher: activeVoucher(15000, 10),
	}
	sel := Selection{UsePoints: true, PointsAmount: 50000, UseCoupon: true, UseVoucher: true}

	q := Calculate(100000, sel, elig, now)

	if q.OtherDiscounts != 35000 {
		t.Errorf("other discounts = %d, want 35000", q.OtherDiscounts)
	}
	if q.PointsUsed != 50000 {
		t.Errorf("points used = %d, want 50000", q.PointsUsed)
	}
	if q.TotalDiscount != 85000 {
		t.Errorf("total discount = %d, want 85000", q.TotalDiscount)
	}
	if q.FinalPrice != 15000 {
		t.Errorf("final price = %d, want 15000", q.FinalPrice)
	}
}

func TestCalculateNeverGoesNegative(t *testing.T) {
	elig := Eligibility{Coupon: &CouponOffer{Nominal: 20000}}
	q := Calculate(10000, Selection{UseCoupon: true}, elig, now)

	// coupon nominal is not trimmed, only the final price is floored at zero
	if q.OtherDiscounts != 20000 {
		t.Errorf("other discounts = %d, want 20000", q.OtherDiscounts)
	}
	if q.FinalPrice != 0 {
		t.Errorf("final price = %d, want 0", q.FinalPrice)
	}
}

func TestMaxPoints(t *testing.T) {
	cases := []struct {
		name                       string
		subtotal, other, available int64
		want                       int64
	}{
		{"capped by available", 100000, 35000, 50000, 50000},
		{"capped by remaining", 100000, 90000, 50000, 10000},
		{"other exceeds subtotal", 10000, 20000, 50000, 0},
		{"no other discounts", 100000, 0, 50000, 50000},
		{"zero balance", 100000, 0, 0, 0},
	}
	for _, tc := range cases {
		if got := MaxPoints(tc.subtotal, tc.other, tc.available); got != tc.want {
			t.Errorf("%s: MaxPoints(%d, %d, %d) = %d, want %d",
				tc.name, tc.subtotal, tc.other, tc.available, got, tc.want)
		}
	}
}

func TestClampReclampsPointsWhenOtherDiscountsShrink(t *testing.T) {
	elig := Eligibility{
		Points:  PointsOffer{Available: 100000},
		Coupon:  &CouponOffer{Nominal: 20000},
		Voucher: activeVoucher(15000, 5),
	}

	// with no other discounts the user maxed out their points
	maxed := Clamp(Selection{UsePoints: true, PointsAmount: 100000}, 100000, elig, now)
	if maxed.PointsAmount != 100000 {
		t.Fatalf("points without other discounts = %d, want 100000", maxed.PointsAmount)
	}

	// toggling coupon and voucher on shrinks the allowance; the stale-high
	// amount must come down with it
	maxed.UseCoupon = true
	maxed.UseVoucher = true
	clamped := Clamp(maxed, 100000, elig, now)
	if clamped.PointsAmount != 65000 {
		t.Errorf("points after toggle = %d, want 65000", clamped.PointsAmount)
	}

	// shrinking the subtotal clamps the same way
	clamped = Clamp(maxed, 40000, elig, now)
	if clamped.PointsAmount != 5000 {
		t.Errorf("points after subtotal shrink = %d, want 5000", clamped.PointsAmount)
	}
}

func TestClampDropsUnusableVoucher(t *testing.T) {
	expired := &VoucherOffer{
		Nominal:   15000,
		Quota:     5,
		StartDate: now.Add(-48 * time.Hour),
		EndDate:   now.Add(-24 * time.Hour),
	}
	exhausted := activeVoucher(15000, 0)

	for name, v := range map[string]*VoucherOffer{"expired": expired, "exhausted": exhausted, "absent": nil} {
		elig := Eligibility{Voucher: v}
		sel := Clamp(Selection{UseVoucher: true}, 100000, elig, now)
		if sel.UseVoucher {
			t.Errorf("%s voucher: selection not dropped", name)
		}
		if q := Calculate(100000, Selection{UseVoucher: true}, elig, now); q.TotalDiscount != 0 {
			t.Errorf("%s voucher: total discount = %d, want 0", name, q.TotalDiscount)
		}
	}
}

func TestVoucherUsableWindow(t *testing.T) {
	v := activeVoucher(1000, 1)
	if !v.Usable(now) {
		t.Error("voucher inside window with quota should be usable")
	}
	if v.Usable(v.EndDate) {
		t.Error("voucher at end date should not be usable")
	}
	if v.Usable(v.StartDate.Add(-time.Second)) {
		t.Error("voucher before start date should not be usable")
	}
}

func TestCalculatePointsIgnoredWhenUnchecked(t *testing.T) {
	elig := Eligibility{Points: PointsOffer{Available: 50000}}
	q := Calculate(100000, Selection{UsePoints: false, PointsAmount: 30000}, elig, now)
	if q.TotalDiscount != 0 || q.FinalPrice != 100000 {
		t.Errorf("unchecked points applied: discount %d, final %d", q.TotalDiscount, q.FinalPrice)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	elig := Eligibility{
		Points:  PointsOffer{Available: 30000},
		Coupon:  &CouponOffer{Nominal: 20000},
		Voucher: activeVoucher(15000, 2),
	}
	sel := Selection{UsePoints: true, PointsAmount: 99999, UseCoupon: true, UseVoucher: true}

	first := Calculate(60000, sel, elig, now)
	second := Calculate(60000, sel, elig, now)
	if first != second {
		t.Errorf("repeated calculation differs: %+v vs %+v", first, second)
	}
	if first.FinalPrice < 0 {
		t.Errorf("final price negative: %d", first.FinalPrice)
	}
}
