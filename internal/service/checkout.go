package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/extract"
	"github.com/inkhaven/order-service/internal/provider"
)

// CheckoutItem is one cart entry, priced from the catalog by title.
type CheckoutItem struct {
	Title    string
	Quantity int
}

type CheckoutRequest struct {
	Items          []CheckoutItem
	Fulfillment    entities.FulfillmentType
	PickupLocation string
	PromoCode      string
	CustomerEmail  string
}

type CheckoutResult struct {
	OrderID   string
	SessionID string
	URL       string
}

// PromoQuote is the discount a promo code yields for a given subtotal.
type PromoQuote struct {
	PromoCodeID string
	Code        string
	Discount    decimal.Decimal
}

// CreateCheckoutSession prices the cart, applies an optional promo code,
// pre-generates the order id that later keys reconciliation, and creates
// the provider session. For shipping orders the flat fee is folded into
// unit prices rather than sent as its own line item, because the provider
// silently deactivates pure-fee lines.
func (s *OrderService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	items, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return CheckoutResult{}, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Subtotal())
	}

	orderID := uuid.New().String()
	metadata := map[string]string{
		provider.MetaOrderID:         orderID,
		provider.MetaFulfillmentType: string(req.Fulfillment),
	}

	if req.Fulfillment == entities.FulfillmentPickup {
		location := req.PickupLocation
		if location == "" {
			location = s.cfg.DefaultPickupLocation
		}
		metadata[provider.MetaPickupLocation] = location
	}

	if req.PromoCode != "" {
		quote, err := s.ValidatePromo(ctx, req.PromoCode, subtotal.Round(2))
		if err != nil {
			return CheckoutResult{}, err
		}
		metadata[provider.MetaPromoCodeID] = quote.PromoCodeID
		metadata[provider.MetaDiscountAmount] = quote.Discount.StringFixed(2)
	}

	if req.Fulfillment == entities.FulfillmentShipping {
		items = extract.FoldShipping(items, s.cfg.ShippingFeeMinor)
	}

	session, err := s.provider.CreateSession(ctx, provider.CreateSessionParams{
		SuccessURL:      s.cfg.SuccessURL,
		CancelURL:       s.cfg.CancelURL,
		CustomerEmail:   req.CustomerEmail,
		CollectShipping: req.Fulfillment == entities.FulfillmentShipping,
		LineItems:       toSessionLineItems(items),
		Metadata:        metadata,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("order_id", orderID),
		slog.String("session_id", session.ID),
	)

	return CheckoutResult{
		OrderID:   orderID,
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// ValidatePromo checks a code against the current time and subtotal and
// returns the discount it would yield. It does not consume a use; usage is
// counted once, at reconciliation.
func (s *OrderService) ValidatePromo(ctx context.Context, code string, subtotal decimal.Decimal) (PromoQuote, error) {
	promo, err := s.promos.GetPromoByCode(ctx, code)
	if err != nil {
		return PromoQuote{}, err
	}

	if err := promo.Usable(time.Now(), subtotal); err != nil {
		return PromoQuote{}, err
	}

	return PromoQuote{
		PromoCodeID: promo.ID,
		Code:        promo.Code,
		Discount:    promo.DiscountFor(subtotal),
	}, nil
}

func (s *OrderService) priceCart(ctx context.Context, cart []CheckoutItem) ([]entities.OrderItem, error) {
	titles := make([]string, len(cart))
	for i, item := range cart {
		titles[i] = item.Title
	}

	books, err := s.catalog.GetBooksByTitles(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("failed to price cart: %w", err)
	}

	byTitle := make(map[string]entities.Book, len(books))
	for _, b := range books {
		byTitle[b.Title] = b
	}

	items := make([]entities.OrderItem, 0, len(cart))
	for _, item := range cart {
		book, ok := byTitle[item.Title]
		if !ok {
			return nil, fmt.Errorf("%w: %s", entities.ErrBookNotFound, item.Title)
		}
		items = append(items, entities.OrderItem{
			Title:    book.Title,
			Quantity: item.Quantity,
			Price:    book.Price,
		})
	}
	return items, nil
}

func toSessionLineItems(items []entities.OrderItem) []provider.SessionLineItem {
	lines := make([]provider.SessionLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, provider.SessionLineItem{
			Name:       item.Title,
			UnitAmount: item.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
			Quantity:   int64(item.Quantity),
		})
	}
	return lines
}
