// Package provider is a thin client for the payment provider's REST API
// plus the typed payload shapes the rest of the service consumes. The same
// logical purchase surfaces either as a full checkout session or as a bare
// payment intent (payment-link purchases), so downstream code receives a
// Source with an explicit kind instead of guessing at optional fields.
package provider

import "encoding/json"

// SourceKind discriminates the two payload shapes a purchase can arrive in.
type SourceKind string

const (
	KindCheckoutSession SourceKind = "checkout_session"
	KindPaymentIntent   SourceKind = "payment_intent"
)

// Source bundles everything a trigger path managed to collect about one
// purchase. Session is set for KindCheckoutSession, Intent for
// KindPaymentIntent. Customer is only populated when the adapter performed
// a live customer lookup (payment-link path). LineItems are fetched
// separately because webhook payloads never include them.
type Source struct {
	Kind      SourceKind
	Session   *CheckoutSession
	Intent    *PaymentIntent
	Customer  *Customer
	LineItems []LineItem
}

// Metadata keys threaded through the provider by the storefront.
const (
	MetaOrderID         = "orderId"
	MetaPromoCodeID     = "promoCodeId"
	MetaFulfillmentType = "fulfillmentType"
	MetaDiscountAmount  = "discountAmount"
	MetaPickupLocation  = "pickupLocation"
)

// PaymentStatusPaid is the session payment status required for reconciliation.
const PaymentStatusPaid = "paid"

// Address mirrors the provider's address object. All fields optional.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ShippingDetails is the dedicated shipping block on sessions and intents.
type ShippingDetails struct {
	Name    string   `json:"name"`
	Address *Address `json:"address"`
}

// CustomerDetails is the billing/contact block attached to a session.
type CustomerDetails struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Address *Address `json:"address"`
}

// Customer is the standalone customer object, retrieved by id.
type Customer struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Address *Address `json:"address"`
}

// Price carries the per-unit amount of a line item in minor units.
type Price struct {
	UnitAmount int64 `json:"unit_amount"`
}

// LineItem is one priced entry in a checkout session.
type LineItem struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	AmountSubtotal int64  `json:"amount_subtotal"`
	Price          *Price `json:"price"`
}

// UnitAmount returns the per-unit amount in minor units, deriving it from
// the subtotal when no price object is present.
func (li LineItem) UnitAmount() int64 {
	if li.Price != nil {
		return li.Price.UnitAmount
	}
	if li.Quantity > 0 {
		return li.AmountSubtotal / li.Quantity
	}
	return li.AmountSubtotal
}

// CheckoutSession is the provider's checkout session object. PaymentIntent
// is only populated when the session was retrieved with the intent expanded.
type CheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Metadata        map[string]string `json:"metadata"`
	CustomerID      string            `json:"customer"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *CustomerDetails  `json:"customer_details"`
	ShippingDetails *ShippingDetails  `json:"shipping_details"`
	PaymentIntent   *PaymentIntent    `json:"payment_intent"`
}

// PaymentIntent is the provider's payment intent object, the only shape
// available for payment-link purchases.
type PaymentIntent struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
	Shipping     *ShippingDetails  `json:"shipping"`
	ReceiptEmail string            `json:"receipt_email"`
	CustomerID   string            `json:"customer"`
}

// Webhook event types the service reacts to. Anything else is acknowledged
// and dropped.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
)

// Event is a webhook envelope. Data.Object is decoded according to Type.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}
