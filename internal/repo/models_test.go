package repo

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkhaven/order-service/internal/entities"
)

func TestOrderToEntity(t *testing.T) {
	now := time.Now()
	row := Order{
		OrderID:         "order-1",
		Email:           sql.NullString{String: "sam@example.com", Valid: true},
		CustomerName:    sql.NullString{},
		FulfillmentType: "shipping",
		Total:           decimal.RequireFromString("60.00"),
		DiscountAmount:  decimal.RequireFromString("5.00"),
		ShippingCost:    decimal.RequireFromString("5.00"),
		FinalTotal:      decimal.RequireFromString("60.00"),
		PromoCodeID:     sql.NullString{String: "promo-1", Valid: true},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	items := []OrderItem{
		{OrderID: "order-1", Position: 0, Title: "Book A", Quantity: 2, Price: decimal.RequireFromString("30.00")},
	}
	addr := &ShippingAddress{
		OrderID: "order-1",
		Name:    sql.NullString{String: "Sam Carter", Valid: true},
		Line1:   sql.NullString{String: "1 Shipping Way", Valid: true},
	}

	order := OrderToEntity(row, items, addr)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, "sam@example.com", order.Email)
	assert.Empty(t, order.CustomerName)
	assert.Equal(t, entities.FulfillmentShipping, order.Fulfillment)
	assert.Equal(t, "promo-1", order.PromoCodeID)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Book A", order.Items[0].Title)

	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "Sam Carter", order.ShippingAddress.Name)
	assert.Empty(t, order.ShippingAddress.Line2)
}

func TestOrderToEntity_NoAddress(t *testing.T) {
	order := OrderToEntity(Order{OrderID: "order-2", FulfillmentType: "pickup"}, nil, nil)

	assert.Nil(t, order.ShippingAddress)
	assert.Nil(t, order.Items)
	assert.Equal(t, entities.FulfillmentPickup, order.Fulfillment)
}

func TestPromoToEntity(t *testing.T) {
	until := time.Now().Add(24 * time.Hour)
	row := PromoCode{
		PromoCodeID:        "promo-1",
		Code:               "SUMMER10",
		DiscountType:       "percentage",
		DiscountValue:      decimal.NewFromInt(10),
		MinimumOrderAmount: decimal.NullDecimal{Decimal: decimal.NewFromInt(25), Valid: true},
		MaxUses:            sql.NullInt32{Int32: 100, Valid: true},
		CurrentUses:        7,
		ValidFrom:          time.Now().Add(-time.Hour),
		ValidUntil:         sql.NullTime{Time: until, Valid: true},
		IsActive:           true,
	}

	promo := PromoToEntity(row)

	assert.Equal(t, entities.DiscountPercentage, promo.DiscountType)
	assert.Equal(t, "25", promo.MinimumOrderAmount.String())
	assert.Equal(t, 100, promo.MaxUses)
	assert.Equal(t, 7, promo.CurrentUses)
	require.NotNil(t, promo.ValidUntil)
	assert.True(t, promo.ValidUntil.Equal(until))
}

func TestPromoToEntity_NullsAsZeroValues(t *testing.T) {
	promo := PromoToEntity(PromoCode{PromoCodeID: "promo-2", Code: "OPEN", DiscountType: "fixed"})

	assert.True(t, promo.MinimumOrderAmount.IsZero())
	assert.Zero(t, promo.MaxUses)
	assert.Nil(t, promo.ValidUntil)
}

func TestNullString(t *testing.T) {
	assert.False(t, nullString("").Valid)

	ns := nullString("value")
	assert.True(t, ns.Valid)
	assert.Equal(t, "value", ns.String)
}
