package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo code discount strategies.
type DiscountType string

const (
	// DiscountPercentage subtracts a percentage of the order subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	ErrPromoNotFound      = errors.New("promo code not found")
	ErrPromoInactive      = errors.New("promo code is not active")
	ErrPromoExpired       = errors.New("promo code is outside its validity window")
	ErrPromoExhausted     = errors.New("promo code usage limit reached")
	ErrPromoMinimumNotMet = errors.New("order subtotal below promo code minimum")
)

// PromoCode is a discount code managed by admin tooling. CurrentUses is
// incremented exactly once per order that references the code and never
// decremented.
type PromoCode struct {
	ID            string
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal

	// MinimumOrderAmount of zero means no minimum, MaxUses of zero
	// means unlimited.
	MinimumOrderAmount decimal.Decimal
	MaxUses            int
	CurrentUses        int

	ValidFrom  time.Time
	ValidUntil *time.Time
	IsActive   bool
}

// Usable reports whether the code can be applied to an order with the
// given subtotal at the given moment.
func (p PromoCode) Usable(now time.Time, subtotal decimal.Decimal) error {
	if !p.IsActive {
		return ErrPromoInactive
	}
	if now.Before(p.ValidFrom) {
		return ErrPromoExpired
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return ErrPromoExpired
	}
	if p.MaxUses > 0 && p.CurrentUses >= p.MaxUses {
		return ErrPromoExhausted
	}
	if p.MinimumOrderAmount.IsPositive() && subtotal.LessThan(p.MinimumOrderAmount) {
		return ErrPromoMinimumNotMet
	}
	return nil
}

// DiscountFor computes the discount amount for the given subtotal,
// rounded to two decimal places and never exceeding the subtotal.
func (p PromoCode) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(p.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		discount = p.DiscountValue
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

// Book is a catalog item. Stock is decremented once per newly created
// order that includes the title.
type Book struct {
	ID    string
	Title string
	Price decimal.Decimal
	Stock int
}
