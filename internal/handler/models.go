package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/service"
)

// Order is the wire representation of a reconciled order
// swagger:model Order
type Order struct {
	OrderID         string      `json:"order_id"`
	Items           []OrderItem `json:"items"`
	Total           string      `json:"total"`
	DiscountAmount  string      `json:"discount_amount"`
	ShippingCost    string      `json:"shipping_cost"`
	FinalTotal      string      `json:"final_total"`
	PromoCodeID     string      `json:"promo_code_id,omitempty"`
	FulfillmentType string      `json:"fulfillment_type"`
	PickupLocation  string      `json:"pickup_location,omitempty"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	Email           string      `json:"email,omitempty"`
	CustomerName    string      `json:"customer_name,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type Address struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// CreateFromSessionRequest asks the server to materialize an order
// directly from a provider session id.
type CreateFromSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CheckoutRequest starts a checkout session for the given cart.
type CheckoutRequest struct {
	Items           []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	FulfillmentType string         `json:"fulfillment_type" validate:"required,oneof=shipping pickup"`
	PickupLocation  string         `json:"pickup_location,omitempty"`
	PromoCode       string         `json:"promo_code,omitempty"`
	CustomerEmail   string         `json:"customer_email,omitempty" validate:"omitempty,email"`
}

type CheckoutItem struct {
	Title    string `json:"title" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CheckoutResponse points the storefront at the provider-hosted page.
type CheckoutResponse struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ValidatePromoRequest checks a promo code against a cart subtotal.
type ValidatePromoRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal string `json:"subtotal" validate:"required"`
}

type ValidatePromoResponse struct {
	PromoCodeID string `json:"promo_code_id"`
	Code        string `json:"code"`
	Discount    string `json:"discount"`
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		})
	}

	order := Order{
		OrderID:         o.ID,
		Items:           items,
		Total:           o.Total.StringFixed(2),
		DiscountAmount:  o.DiscountAmount.StringFixed(2),
		ShippingCost:    o.ShippingCost.StringFixed(2),
		FinalTotal:      o.FinalTotal.StringFixed(2),
		PromoCodeID:     o.PromoCodeID,
		FulfillmentType: string(o.Fulfillment),
		PickupLocation:  o.PickupLocation,
		Email:           o.Email,
		CustomerName:    o.CustomerName,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}

	if o.ShippingAddress != nil {
		a := o.ShippingAddress
		order.ShippingAddress = &Address{
			Name:       a.Name,
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}

	return order
}

func CheckoutJSONToRequest(req CheckoutRequest) service.CheckoutRequest {
	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.CheckoutItem{
			Title:    it.Title,
			Quantity: it.Quantity,
		})
	}

	return service.CheckoutRequest{
		Items:          items,
		Fulfillment:    entities.FulfillmentType(req.FulfillmentType),
		PickupLocation: req.PickupLocation,
		PromoCode:      req.PromoCode,
		CustomerEmail:  req.CustomerEmail,
	}
}

func PromoQuoteToJSON(q service.PromoQuote) ValidatePromoResponse {
	return ValidatePromoResponse{
		PromoCodeID: q.PromoCodeID,
		Code:        q.Code,
		Discount:    q.Discount.StringFixed(2),
	}
}

func parseSubtotal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}
