// Package extract turns payment-provider payloads into the fields an order
// row is built from. Every function here is a pure function of its inputs
// so it can be tested against literal provider payload fixtures.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/provider"
)

var (
	// ErrMissingOrderID means the payload carries no order id in its
	// metadata, so there is no idempotency key to reconcile against.
	ErrMissingOrderID = errors.New("order id missing from payload metadata")
)

// Config carries the storefront constants extraction depends on.
type Config struct {
	// ShippingFeeMinor is the flat shipping fee in minor units that the
	// storefront folds into unit prices when creating shipping sessions.
	ShippingFeeMinor int64
	// DefaultPickupLocation is recorded on pickup orders whose metadata
	// does not name a location.
	DefaultPickupLocation string
}

// Result is everything extraction recovered from a payload. Amounts are in
// display currency units.
type Result struct {
	OrderID         string
	Items           []entities.OrderItem
	ShippingCost    decimal.Decimal
	DiscountAmount  decimal.Decimal
	PromoCodeID     string
	Fulfillment     entities.FulfillmentType
	PickupLocation  string
	ShippingAddress *entities.Address
	CustomerName    string
	Email           string
}

// Subtotal returns the sum of item subtotals, excluding shipping and discount.
func (r Result) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}

const shippingItemName = "shipping"

// embeddedShippingFloor bounds the reverse-distribution heuristic: a
// recovered unit price never drops below this share of the embedded price.
var embeddedShippingFloor = decimal.NewFromFloat(0.8)

var minorUnitsPerUnit = decimal.NewFromInt(100)

// FromSource extracts order fields from a provider payload, matching
// exhaustively on the payload kind.
func FromSource(src provider.Source, cfg Config) (Result, error) {
	switch src.Kind {
	case provider.KindCheckoutSession:
		return fromSession(src, cfg)
	case provider.KindPaymentIntent:
		return fromIntent(src, cfg)
	default:
		return Result{}, fmt.Errorf("unsupported payload kind %q", src.Kind)
	}
}

func fromSession(src provider.Source, cfg Config) (Result, error) {
	session := src.Session
	res, err := fromMetadata(session.Metadata, cfg)
	if err != nil {
		return Result{}, err
	}

	items, shippingMinor := splitLineItems(src.LineItems)
	if res.Fulfillment == entities.FulfillmentShipping && shippingMinor == 0 && len(items) > 0 {
		// The storefront folded the flat fee into unit prices before
		// creating the session; recover approximate product prices.
		items = unwindEmbeddedShipping(items, cfg.ShippingFeeMinor)
		shippingMinor = cfg.ShippingFeeMinor
	}
	res.Items = toOrderItems(items)
	res.ShippingCost = minorToDisplay(shippingMinor)

	res.ShippingAddress = firstAddress(
		shippingDetailsAddress(session.ShippingDetails),
		intentShippingAddress(session.PaymentIntent),
		customerAddress(src.Customer),
		customerDetailsAddress(session.CustomerDetails),
	)
	res.CustomerName = resolveName(res.Fulfillment, res.ShippingAddress, session.CustomerDetails, src.Customer)
	res.Email = firstNonEmpty(
		customerDetailsEmail(session.CustomerDetails),
		session.CustomerEmail,
		intentReceiptEmail(session.PaymentIntent),
		customerEmail(src.Customer),
	)
	return res, nil
}

func fromIntent(src provider.Source, cfg Config) (Result, error) {
	intent := src.Intent
	res, err := fromMetadata(intent.Metadata, cfg)
	if err != nil {
		return Result{}, err
	}

	// Per-item breakdown is not retrievable for payment-link purchases
	// after the fact, so the whole charge becomes one generic line.
	res.Items = []entities.OrderItem{{
		Title:    "Online order",
		Quantity: 1,
		Price:    minorToDisplay(intent.Amount),
	}}
	res.ShippingCost = decimal.Zero

	res.ShippingAddress = firstAddress(
		intentShipping(intent),
		customerAddress(src.Customer),
	)
	res.CustomerName = resolveName(res.Fulfillment, res.ShippingAddress, nil, src.Customer)
	res.Email = firstNonEmpty(intent.ReceiptEmail, customerEmail(src.Customer))
	return res, nil
}

func fromMetadata(meta map[string]string, cfg Config) (Result, error) {
	orderID := meta[provider.MetaOrderID]
	if orderID == "" {
		return Result{}, ErrMissingOrderID
	}

	res := Result{
		OrderID:        orderID,
		PromoCodeID:    meta[provider.MetaPromoCodeID],
		Fulfillment:    entities.FulfillmentShipping,
		DiscountAmount: decimal.Zero,
	}

	if meta[provider.MetaFulfillmentType] == string(entities.FulfillmentPickup) {
		res.Fulfillment = entities.FulfillmentPickup
		res.PickupLocation = meta[provider.MetaPickupLocation]
		if res.PickupLocation == "" {
			res.PickupLocation = cfg.DefaultPickupLocation
		}
	}

	if raw := meta[provider.MetaDiscountAmount]; raw != "" {
		discount, err := decimal.NewFromString(raw)
		if err != nil || discount.IsNegative() {
			return Result{}, fmt.Errorf("invalid discount amount %q in metadata", raw)
		}
		res.DiscountAmount = discount.Round(2)
	}
	return res, nil
}

// minorLine is an intermediate line item kept in minor units so the
// embedded-shipping arithmetic does not accumulate display-unit rounding.
type minorLine struct {
	title      string
	quantity   int64
	unitAmount decimal.Decimal
}

// splitLineItems separates product lines from shipping charge lines. A line
// whose name equals "shipping" case-insensitively is a shipping charge: it
// contributes to the shipping total and never appears among the items.
func splitLineItems(lines []provider.LineItem) ([]minorLine, int64) {
	var (
		items         []minorLine
		shippingMinor int64
	)
	for _, line := range lines {
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		unit := line.UnitAmount()

		if strings.EqualFold(strings.TrimSpace(line.Description), shippingItemName) {
			shippingMinor += unit * quantity
			continue
		}
		items = append(items, minorLine{
			title:      line.Description,
			quantity:   quantity,
			unitAmount: decimal.NewFromInt(unit),
		})
	}
	return items, shippingMinor
}

// unwindEmbeddedShipping reverse-distributes the flat shipping fee evenly
// across all units to recover approximate original product prices. The
// recovered price is clamped so it never drops below 80% of the embedded
// price. Best effort: the result is approximate by construction.
func unwindEmbeddedShipping(items []minorLine, feeMinor int64) []minorLine {
	var totalUnits int64
	for _, item := range items {
		totalUnits += item.quantity
	}
	if totalUnits == 0 || feeMinor <= 0 {
		return items
	}

	share := decimal.NewFromInt(feeMinor).Div(decimal.NewFromInt(totalUnits))
	out := make([]minorLine, len(items))
	for i, item := range items {
		floor := item.unitAmount.Mul(embeddedShippingFloor)
		recovered := item.unitAmount.Sub(share)
		if recovered.LessThan(floor) {
			recovered = floor
		}
		item.unitAmount = recovered
		out[i] = item
	}
	return out
}

// FoldShipping is the forward direction of the workaround: it distributes
// the flat shipping fee evenly across all units so no explicit shipping
// line item is needed when creating the session. Prices are display units.
func FoldShipping(items []entities.OrderItem, feeMinor int64) []entities.OrderItem {
	var totalUnits int64
	for _, item := range items {
		totalUnits += int64(item.Quantity)
	}
	if totalUnits == 0 || feeMinor <= 0 {
		return items
	}

	share := minorToDisplay(feeMinor).Div(decimal.NewFromInt(totalUnits))
	out := make([]entities.OrderItem, len(items))
	for i, item := range items {
		item.Price = item.Price.Add(share).Round(2)
		out[i] = item
	}
	return out
}

func toOrderItems(lines []minorLine) []entities.OrderItem {
	items := make([]entities.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, entities.OrderItem{
			Title:    line.title,
			Quantity: int(line.quantity),
			Price:    line.unitAmount.Div(minorUnitsPerUnit).Round(2),
		})
	}
	return items
}

func minorToDisplay(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorUnitsPerUnit).Round(2)
}

// resolveName picks the customer name: the shipping-address name wins for
// shipping orders, then the billing contact, then the customer object.
func resolveName(ft entities.FulfillmentType, addr *entities.Address, details *provider.CustomerDetails, customer *provider.Customer) string {
	if ft == entities.FulfillmentShipping && addr != nil && addr.Name != "" {
		return addr.Name
	}
	if details != nil && details.Name != "" {
		return details.Name
	}
	if customer != nil && customer.Name != "" {
		return customer.Name
	}
	return ""
}

func firstAddress(candidates ...*entities.Address) *entities.Address {
	for _, addr := range candidates {
		if addr != nil {
			return addr
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func shippingDetailsAddress(sd *provider.ShippingDetails) *entities.Address {
	if sd == nil || sd.Address == nil {
		return nil
	}
	return toAddress(sd.Name, sd.Address)
}

func intentShippingAddress(intent *provider.PaymentIntent) *entities.Address {
	if intent == nil {
		return nil
	}
	return shippingDetailsAddress(intent.Shipping)
}

func intentShipping(intent *provider.PaymentIntent) *entities.Address {
	return shippingDetailsAddress(intent.Shipping)
}

func customerAddress(customer *provider.Customer) *entities.Address {
	if customer == nil || customer.Address == nil {
		return nil
	}
	return toAddress(customer.Name, customer.Address)
}

func customerDetailsAddress(details *provider.CustomerDetails) *entities.Address {
	if details == nil || details.Address == nil {
		return nil
	}
	return toAddress(details.Name, details.Address)
}

func customerDetailsEmail(details *provider.CustomerDetails) string {
	if details == nil {
		return ""
	}
	return details.Email
}

func intentReceiptEmail(intent *provider.PaymentIntent) string {
	if intent == nil {
		return ""
	}
	return intent.ReceiptEmail
}

func customerEmail(customer *provider.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.Email
}

func toAddress(name string, a *provider.Address) *entities.Address {
	return &entities.Address{
		Name:       name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
