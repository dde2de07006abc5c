package promotion

import (
	"testing"
	"time"
)

func validCode() *PromoCode {
	now := time.Now()
	return &PromoCode{
		ID:            1,
		Code:          "TEST",
		DiscountType:  TypePercentage,
		DiscountValue: 20,
		IsActive:      true,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
	}
}

func TestCalculateDiscountPercentageWithCap(t *testing.T) {
	p := validCode()
	p.MaxDiscountAmount = 1500

	// 总价 10000 分，八折应省 2000，被上限压到 1500
	if got := p.CalculateDiscount(10000, 0); got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}

	p.MaxDiscountAmount = 0
	if got := p.CalculateDiscount(10000, 0); got != 2000 {
		t.Fatalf("expected 2000, got %d", got)
	}
}

func TestCalculateDiscountFixedClampedToTotal(t *testing.T) {
	p := validCode()
	p.DiscountType = TypeFixed
	p.DiscountValue = 5000

	// 固定立减超过总价时只减到零
	if got := p.CalculateDiscount(4000, 0); got != 4000 {
		t.Fatalf("expected 4000, got %d", got)
	}
}

func TestCalculateDiscountFreeShipping(t *testing.T) {
	p := validCode()
	p.DiscountType = TypeFreeShipping

	if got := p.CalculateDiscount(10000, 2500); got != 2500 {
		t.Fatalf("expected 2500, got %d", got)
	}
}

func TestCalculateDiscountBelowMinOrder(t *testing.T) {
	p := validCode()
	p.MinOrderAmount = 20000

	if got := p.CalculateDiscount(10000, 0); got != 0 {
		t.Fatalf("expected 0 below min order, got %d", got)
	}
}

func TestCalculateDiscountBOGOHandledElsewhere(t *testing.T) {
	p := validCode()
	p.DiscountType = TypeBOGO

	if got := p.CalculateDiscount(10000, 0); got != 0 {
		t.Fatalf("BOGO should not be computed here, got %d", got)
	}
}

func TestIsValidAt(t *testing.T) {
	now := time.Now()

	p := validCode()
	if !p.IsValidAt(now) {
		t.Fatal("expected valid")
	}

	p = validCode()
	p.IsActive = false
	if p.IsValidAt(now) {
		t.Fatal("inactive code should be invalid")
	}

	p = validCode()
	p.ValidUntil = now.Add(-time.Minute)
	if p.IsValidAt(now) {
		t.Fatal("expired code should be invalid")
	}

	p = validCode()
	p.UsageLimit = 10
	p.UsageCount = 10
	if p.IsValidAt(now) {
		t.Fatal("used up code should be invalid")
	}
}

func TestFlashSaleIsLiveAt(t *testing.T) {
	now := time.Now()
	f := &FlashSale{
		IsActive:  true,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
	if !f.IsLiveAt(now) {
		t.Fatal("expected live")
	}
	if f.IsLiveAt(now.Add(2 * time.Hour)) {
		t.Fatal("should not be live after end")
	}
	f.IsActive = false
	if f.IsLiveAt(now) {
		t.Fatal("inactive sale should not be live")
	}
}

func TestFlashSaleProductRemaining(t *testing.T) {
	fp := &FlashSaleProduct{StockLimit: 30, SoldCount: 12}
	if got := fp.Remaining(); got != 18 {
		t.Fatalf("expected 18, got %d", got)
	}
	fp.SoldCount = 40
	if got := fp.Remaining(); got != 0 {
		t.Fatalf("oversold should report 0, got %d", got)
	}
}
