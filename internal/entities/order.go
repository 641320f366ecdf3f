package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// FulfillmentType governs whether an order is shipped to an address or
// picked up at a store location.
type FulfillmentType string

const (
	FulfillmentShipping FulfillmentType = "shipping"
	FulfillmentPickup   FulfillmentType = "pickup"
)

// Address is a shipping address as supplied by the payment provider.
// Every field is optional because the provider may return partial data.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderItem is a purchased catalog item. Price is the per-unit amount in
// display currency, captured at purchase time.
type OrderItem struct {
	Title    string
	Quantity int
	Price    decimal.Decimal
}

// Subtotal returns price multiplied by quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the durable record of a completed purchase. ID is generated by
// the storefront before payment starts and doubles as the idempotency key
// for reconciliation.
type Order struct {
	ID             string
	Items          []OrderItem
	Total          decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingCost   decimal.Decimal
	FinalTotal     decimal.Decimal
	PromoCodeID    string
	Fulfillment    FulfillmentType
	PickupLocation string

	// ShippingAddress, Email and CustomerName may be filled in after
	// creation when a later-arriving trigger path knows more than the
	// one that created the row.
	ShippingAddress *Address
	Email           string
	CustomerName    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderExists    = errors.New("order already exists")
	ErrSessionNotPaid = errors.New("session is not paid")
	ErrBookNotFound   = errors.New("book not found")
)
