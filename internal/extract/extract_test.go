package extract_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/extract"
	"github.com/inkhaven/order-service/internal/provider"
)

var testConfig = extract.Config{
	ShippingFeeMinor:      500,
	DefaultPickupLocation: "Main Street store",
}

func sessionSource(session *provider.CheckoutSession, lines []provider.LineItem) provider.Source {
	return provider.Source{
		Kind:      provider.KindCheckoutSession,
		Session:   session,
		LineItems: lines,
	}
}

func TestFromSource_ShippingLineItemExcluded(t *testing.T) {
	session := &provider.CheckoutSession{
		ID: "cs_1",
		Metadata: map[string]string{
			provider.MetaOrderID:         "order-1",
			provider.MetaFulfillmentType: "shipping",
		},
	}
	lines := []provider.LineItem{
		{Description: "The Go Programming Language", Quantity: 2, Price: &provider.Price{UnitAmount: 3000}},
		{Description: "Shipping", Quantity: 1, Price: &provider.Price{UnitAmount: 500}},
	}

	res, err := extract.FromSource(sessionSource(session, lines), testConfig)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "The Go Programming Language", res.Items[0].Title)
	assert.Equal(t, 2, res.Items[0].Quantity)
	assert.Equal(t, "30.00", res.Items[0].Price.StringFixed(2))
	assert.Equal(t, "5.00", res.ShippingCost.StringFixed(2))
	assert.Equal(t, "60.00", res.Subtotal().StringFixed(2))
}

func TestFromSource_EmbeddedShippingUnwound(t *testing.T) {
	session := &provider.CheckoutSession{
		ID: "cs_2",
		Metadata: map[string]string{
			provider.MetaOrderID:         "order-2",
			provider.MetaFulfillmentType: "shipping",
		},
	}
	// Two units at 20.00 with the 5.00 fee folded in: 22.50 each on the wire.
	lines := []provider.LineItem{
		{Description: "Designing Data-Intensive Applications", Quantity: 2, Price: &provider.Price{UnitAmount: 2250}},
	}

	res, err := extract.FromSource(sessionSource(session, lines), testConfig)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "20.00", res.Items[0].Price.StringFixed(2))
	assert.Equal(t, "5.00", res.ShippingCost.StringFixed(2))
}

func TestFromSource_EmbeddedShippingFloorClamped(t *testing.T) {
	session := &provider.CheckoutSession{
		ID: "cs_3",
		Metadata: map[string]string{
			provider.MetaOrderID:         "order-3",
			provider.MetaFulfillmentType: "shipping",
		},
	}
	// A 6.00 book with a 5.00 fee embedded would recover to 1.00; the 80%
	// floor keeps it at 4.80 instead.
	lines := []provider.LineItem{
		{Description: "Cheap paperback", Quantity: 1, Price: &provider.Price{UnitAmount: 600}},
	}

	res, err := extract.FromSource(sessionSource(session, lines), testConfig)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "4.80", res.Items[0].Price.StringFixed(2))
	assert.Equal(t, "5.00", res.ShippingCost.StringFixed(2))
}

func TestFromSource_PickupSkipsShippingHeuristic(t *testing.T) {
	session := &provider.CheckoutSession{
		ID: "cs_4",
		Metadata: map[string]string{
			provider.MetaOrderID:         "order-4",
			provider.MetaFulfillmentType: "pickup",
		},
	}
	lines := []provider.LineItem{
		{Description: "A Philosophy of Software Design", Quantity: 1, Price: &provider.Price{UnitAmount: 2500}},
	}

	res, err := extract.FromSource(sessionSource(session, lines), testConfig)
	require.NoError(t, err)

	assert.Equal(t, entities.FulfillmentPickup, res.Fulfillment)
	assert.Equal(t, "Main Street store", res.PickupLocation)
	assert.Equal(t, "25.00", res.Items[0].Price.StringFixed(2))
	assert.True(t, res.ShippingCost.IsZero())
}

func TestFromSource_PickupLocationFromMetadata(t *testing.T) {
	session := &provider.CheckoutSession{
		Metadata: map[string]string{
			provider.MetaOrderID:         "order-5",
			provider.MetaFulfillmentType: "pickup",
			provider.MetaPickupLocation:  "Riverside branch",
		},
	}

	res, err := extract.FromSource(sessionSource(session, nil), testConfig)
	require.NoError(t, err)
	assert.Equal(t, "Riverside branch", res.PickupLocation)
}

func TestFromSource_MissingOrderID(t *testing.T) {
	session := &provider.CheckoutSession{Metadata: map[string]string{}}

	_, err := extract.FromSource(sessionSource(session, nil), testConfig)
	assert.ErrorIs(t, err, extract.ErrMissingOrderID)

	intent := &provider.PaymentIntent{Metadata: nil}
	_, err = extract.FromSource(provider.Source{Kind: provider.KindPaymentIntent, Intent: intent}, testConfig)
	assert.ErrorIs(t, err, extract.ErrMissingOrderID)
}

func TestFromSource_DiscountMetadata(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		session := &provider.CheckoutSession{
			Metadata: map[string]string{
				provider.MetaOrderID:        "order-6",
				provider.MetaPromoCodeID:    "promo-1",
				provider.MetaDiscountAmount: "7.50",
			},
		}

		res, err := extract.FromSource(sessionSource(session, nil), testConfig)
		require.NoError(t, err)
		assert.Equal(t, "promo-1", res.PromoCodeID)
		assert.Equal(t, "7.50", res.DiscountAmount.StringFixed(2))
	})

	t.Run("malformed", func(t *testing.T) {
		session := &provider.CheckoutSession{
			Metadata: map[string]string{
				provider.MetaOrderID:        "order-7",
				provider.MetaDiscountAmount: "not-a-number",
			},
		}

		_, err := extract.FromSource(sessionSource(session, nil), testConfig)
		assert.Error(t, err)
	})

	t.Run("negative", func(t *testing.T) {
		session := &provider.CheckoutSession{
			Metadata: map[string]string{
				provider.MetaOrderID:        "order-8",
				provider.MetaDiscountAmount: "-1.00",
			},
		}

		_, err := extract.FromSource(sessionSource(session, nil), testConfig)
		assert.Error(t, err)
	})
}

func TestFromSource_AddressPrecedence(t *testing.T) {
	shippingAddr := &provider.Address{Line1: "1 Shipping Way", City: "Shipville"}
	detailsAddr := &provider.Address{Line1: "2 Billing Road", City: "Billtown"}

	t.Run("shipping details win", func(t *testing.T) {
		session := &provider.CheckoutSession{
			Metadata:        map[string]string{provider.MetaOrderID: "order-9"},
			ShippingDetails: &provider.ShippingDetails{Name: "Sam Carter", Address: shippingAddr},
			CustomerDetails: &provider.CustomerDetails{Name: "Billing Contact", Address: detailsAddr},
		}

		res, err := extract.FromSource(sessionSource(session, nil), testConfig)
		require.NoError(t, err)
		require.NotNil(t, res.ShippingAddress)
		assert.Equal(t, "1 Shipping Way", res.ShippingAddress.Line1)
		assert.Equal(t, "Sam Carter", res.CustomerName)
	})

	t.Run("falls back through intent to customer details", func(t *testing.T) {
		session := &provider.CheckoutSession{
			Metadata:        map[string]string{provider.MetaOrderID: "order-10"},
			CustomerDetails: &provider.CustomerDetails{Name: "Billing Contact", Address: detailsAddr},
		}

		res, err := extract.FromSource(sessionSource(session, nil), testConfig)
		require.NoError(t, err)
		require.NotNil(t, res.ShippingAddress)
		assert.Equal(t, "2 Billing Road", res.ShippingAddress.Line1)
	})

	t.Run("no address anywhere", func(t *testing.T) {
		session := &provider.CheckoutSession{
			Metadata: map[string]string{provider.MetaOrderID: "order-11"},
		}

		res, err := extract.FromSource(sessionSource(session, nil), testConfig)
		require.NoError(t, err)
		assert.Nil(t, res.ShippingAddress)
	})
}

func TestFromSource_EmailPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		session *provider.CheckoutSession
		want    string
	}{
		{
			name: "customer details first",
			session: &provider.CheckoutSession{
				Metadata:        map[string]string{provider.MetaOrderID: "o"},
				CustomerDetails: &provider.CustomerDetails{Email: "details@example.com"},
				CustomerEmail:   "session@example.com",
			},
			want: "details@example.com",
		},
		{
			name: "session email second",
			session: &provider.CheckoutSession{
				Metadata:      map[string]string{provider.MetaOrderID: "o"},
				CustomerEmail: "session@example.com",
				PaymentIntent: &provider.PaymentIntent{ReceiptEmail: "receipt@example.com"},
			},
			want: "session@example.com",
		},
		{
			name: "receipt email third",
			session: &provider.CheckoutSession{
				Metadata:      map[string]string{provider.MetaOrderID: "o"},
				PaymentIntent: &provider.PaymentIntent{ReceiptEmail: "receipt@example.com"},
			},
			want: "receipt@example.com",
		},
		{
			name: "none",
			session: &provider.CheckoutSession{
				Metadata: map[string]string{provider.MetaOrderID: "o"},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := extract.FromSource(sessionSource(tt.session, nil), testConfig)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Email)
		})
	}
}

func TestFromSource_PaymentIntent(t *testing.T) {
	intent := &provider.PaymentIntent{
		ID:           "pi_1",
		Amount:       4599,
		Metadata:     map[string]string{provider.MetaOrderID: "order-12"},
		ReceiptEmail: "link@example.com",
		Shipping: &provider.ShippingDetails{
			Name:    "Robin Page",
			Address: &provider.Address{Line1: "3 Intent Lane"},
		},
	}

	res, err := extract.FromSource(provider.Source{
		Kind:   provider.KindPaymentIntent,
		Intent: intent,
	}, testConfig)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Online order", res.Items[0].Title)
	assert.Equal(t, 1, res.Items[0].Quantity)
	assert.Equal(t, "45.99", res.Items[0].Price.StringFixed(2))
	assert.True(t, res.ShippingCost.IsZero())
	assert.Equal(t, "link@example.com", res.Email)
	require.NotNil(t, res.ShippingAddress)
	assert.Equal(t, "3 Intent Lane", res.ShippingAddress.Line1)
	assert.Equal(t, "Robin Page", res.CustomerName)
}

func TestFromSource_IntentFallsBackToCustomer(t *testing.T) {
	intent := &provider.PaymentIntent{
		ID:       "pi_2",
		Amount:   1000,
		Metadata: map[string]string{provider.MetaOrderID: "order-13"},
	}
	customer := &provider.Customer{
		Name:    "Alex Morgan",
		Email:   "customer@example.com",
		Address: &provider.Address{Line1: "4 Customer Court"},
	}

	res, err := extract.FromSource(provider.Source{
		Kind:     provider.KindPaymentIntent,
		Intent:   intent,
		Customer: customer,
	}, testConfig)
	require.NoError(t, err)

	assert.Equal(t, "customer@example.com", res.Email)
	require.NotNil(t, res.ShippingAddress)
	assert.Equal(t, "4 Customer Court", res.ShippingAddress.Line1)
}

func TestFromSource_UnsupportedKind(t *testing.T) {
	_, err := extract.FromSource(provider.Source{Kind: "refund"}, testConfig)
	assert.Error(t, err)
}

func TestFoldShipping(t *testing.T) {
	items := []entities.OrderItem{
		{Title: "A", Quantity: 1, Price: decimal.RequireFromString("20.00")},
		{Title: "B", Quantity: 3, Price: decimal.RequireFromString("10.00")},
	}

	folded := extract.FoldShipping(items, 500)

	// 5.00 over 4 units is 1.25 per unit.
	assert.Equal(t, "21.25", folded[0].Price.StringFixed(2))
	assert.Equal(t, "11.25", folded[1].Price.StringFixed(2))

	// Input is left untouched.
	assert.Equal(t, "20.00", items[0].Price.StringFixed(2))
}

func TestFoldShipping_NoFee(t *testing.T) {
	items := []entities.OrderItem{{Title: "A", Quantity: 2, Price: decimal.RequireFromString("15.00")}}
	assert.Equal(t, items, extract.FoldShipping(items, 0))
}

func TestFoldUnwindRoundTrip(t *testing.T) {
	items := []entities.OrderItem{
		{Title: "Hardcover", Quantity: 2, Price: decimal.RequireFromString("30.00")},
	}

	folded := extract.FoldShipping(items, 500)

	session := &provider.CheckoutSession{
		Metadata: map[string]string{
			provider.MetaOrderID:         "order-14",
			provider.MetaFulfillmentType: "shipping",
		},
	}
	lines := []provider.LineItem{{
		Description: "Hardcover",
		Quantity:    2,
		Price:       &provider.Price{UnitAmount: folded[0].Price.Mul(decimal.NewFromInt(100)).IntPart()},
	}}

	res, err := extract.FromSource(sessionSource(session, lines), testConfig)
	require.NoError(t, err)
	assert.Equal(t, "30.00", res.Items[0].Price.StringFixed(2))
	assert.Equal(t, "5.00", res.ShippingCost.StringFixed(2))
}

func TestLineItemUnitAmountDerivedFromSubtotal(t *testing.T) {
	session := &provider.CheckoutSession{
		Metadata: map[string]string{provider.MetaOrderID: "order-15"},
	}
	lines := []provider.LineItem{
		{Description: "No price object", Quantity: 2, AmountSubtotal: 5000},
	}

	res, err := extract.FromSource(sessionSource(session, lines), testConfig)
	require.NoError(t, err)
	assert.Equal(t, "25.00", res.Items[0].Price.StringFixed(2))
}
