package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/extract"
	"github.com/inkhaven/order-service/internal/provider"
	"github.com/inkhaven/order-service/pkg/trm"
	"github.com/inkhaven/order-service/pkg/utils"
)

type OrderRepo interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)

	// InsertOrder returns entities.ErrOrderExists on a duplicate key.
	// SaveItems and SaveShippingAddress are idempotent (ON CONFLICT DO NOTHING).
	InsertOrder(ctx context.Context, order entities.Order) error
	SaveItems(ctx context.Context, orderID string, items []entities.OrderItem) error
	SaveShippingAddress(ctx context.Context, orderID string, addr entities.Address) error
	BackfillContact(ctx context.Context, orderID, name, email string) error
}

type PromoRepo interface {
	GetPromoByCode(ctx context.Context, code string) (entities.PromoCode, error)
	IncrementUses(ctx context.Context, promoID string) error
}

type CatalogRepo interface {
	GetBooksByTitles(ctx context.Context, titles []string) ([]entities.Book, error)
	DecrementStock(ctx context.Context, items []entities.OrderItem) error
}

// Notifier delivers email jobs. Failures are logged and never propagated.
type Notifier interface {
	OrderConfirmation(ctx context.Context, order entities.Order) error
	SaleNotification(ctx context.Context, order entities.Order) error
}

type Cache interface {
	Get(key string) (entities.Order, bool)
	Set(key string, value entities.Order)
}

// Config carries the storefront constants the service depends on.
type Config struct {
	ShippingFeeMinor      int64
	DefaultPickupLocation string
	SuccessURL            string
	CancelURL             string
}

type OrderService struct {
	logger    *slog.Logger
	cfg       Config
	txManager trm.Manager
	orders    OrderRepo
	promos    PromoRepo
	catalog   CatalogRepo
	notifier  Notifier
	provider  provider.Client
	cache     Cache
}

func NewOrderService(
	logger *slog.Logger,
	cfg Config,
	txManager trm.Manager,
	orders OrderRepo,
	promos PromoRepo,
	catalog CatalogRepo,
	notifier Notifier,
	providerClient provider.Client,
	cache Cache,
) *OrderService {
	return &OrderService{
		logger:    logger.With(slog.String("service", "order")),
		cfg:       cfg,
		txManager: txManager,
		orders:    orders,
		promos:    promos,
		catalog:   catalog,
		notifier:  notifier,
		provider:  providerClient,
		cache:     cache,
	}
}

func (s *OrderService) extractConfig() extract.Config {
	return extract.Config{
		ShippingFeeMinor:      s.cfg.ShippingFeeMinor,
		DefaultPickupLocation: s.cfg.DefaultPickupLocation,
	}
}

// Reconcile turns extracted payment fields into exactly one durable order
// row. Any of the three trigger paths may call it concurrently for the
// same order id; the first insert wins, everyone else observes the same row.
func (s *OrderService) Reconcile(ctx context.Context, ext extract.Result) (entities.Order, error) {
	existing, err := s.orders.GetOrderByID(ctx, ext.OrderID)
	if err == nil {
		ordersReconciled.WithLabelValues(outcomeBackfilled).Inc()
		return s.backfill(ctx, existing, ext)
	}
	if !errors.Is(err, entities.ErrOrderNotFound) {
		return entities.Order{}, fmt.Errorf("failed to look up order %s: %w", ext.OrderID, err)
	}

	if ext.Fulfillment == entities.FulfillmentShipping && ext.ShippingAddress == nil {
		// Not fatal: a later trigger path may backfill the address.
		s.logger.WarnContext(ctx, "shipping order has no shipping address", slog.String("order_id", ext.OrderID))
	}

	order := buildOrder(ext, time.Now())

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.orders.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := s.orders.SaveItems(ctx, order.ID, order.Items); err != nil {
			return err
		}
		if order.ShippingAddress != nil {
			return s.orders.SaveShippingAddress(ctx, order.ID, *order.ShippingAddress)
		}
		return nil
	})

	if errors.Is(err, entities.ErrOrderExists) {
		// Lost the race against another trigger path. The winner's row
		// is authoritative; side effects belong to the winner too.
		ordersReconciled.WithLabelValues(outcomeConflict).Inc()
		s.logger.InfoContext(ctx, "duplicate reconcile resolved by re-fetch", slog.String("order_id", ext.OrderID))
		won, err := s.orders.GetOrderByID(ctx, ext.OrderID)
		if err != nil {
			return entities.Order{}, fmt.Errorf("failed to re-fetch order %s after conflict: %w", ext.OrderID, err)
		}
		return won, nil
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to create order %s: %w", ext.OrderID, err)
	}

	ordersReconciled.WithLabelValues(outcomeCreated).Inc()
	s.cache.Set(order.ID, order)
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("final_total", order.FinalTotal.String()),
	)

	// The HTTP response must not wait for notifications or stock updates,
	// and a cancelled request must not abort them either.
	go s.dispatchSideEffects(context.WithoutCancel(ctx), order)

	return order, nil
}

// backfill fills in contact fields a later trigger discovered but the
// original creator did not have. Populated fields are never overwritten.
func (s *OrderService) backfill(ctx context.Context, existing entities.Order, ext extract.Result) (entities.Order, error) {
	var name, email string
	if existing.CustomerName == "" && ext.CustomerName != "" {
		name = ext.CustomerName
	}
	if existing.Email == "" && ext.Email != "" {
		email = ext.Email
	}

	if name != "" || email != "" {
		if err := s.orders.BackfillContact(ctx, existing.ID, name, email); err != nil {
			return entities.Order{}, fmt.Errorf("failed to backfill contact for %s: %w", existing.ID, err)
		}
		if name != "" {
			existing.CustomerName = name
		}
		if email != "" {
			existing.Email = email
		}
	}

	if existing.ShippingAddress == nil && ext.ShippingAddress != nil {
		if err := s.orders.SaveShippingAddress(ctx, existing.ID, *ext.ShippingAddress); err != nil {
			return entities.Order{}, fmt.Errorf("failed to backfill address for %s: %w", existing.ID, err)
		}
		existing.ShippingAddress = ext.ShippingAddress
	}

	s.cache.Set(existing.ID, existing)
	return existing, nil
}

// buildOrder computes totals and assembles the order record.
func buildOrder(ext extract.Result, now time.Time) entities.Order {
	total := ext.Subtotal()
	finalTotal := total.Add(ext.ShippingCost).Sub(ext.DiscountAmount)
	if finalTotal.IsNegative() {
		finalTotal = decimal.Zero
	}

	return entities.Order{
		ID:              ext.OrderID,
		Items:           ext.Items,
		Total:           total,
		DiscountAmount:  ext.DiscountAmount,
		ShippingCost:    ext.ShippingCost,
		FinalTotal:      finalTotal.Round(2),
		PromoCodeID:     ext.PromoCodeID,
		Fulfillment:     ext.Fulfillment,
		PickupLocation:  ext.PickupLocation,
		ShippingAddress: ext.ShippingAddress,
		Email:           ext.Email,
		CustomerName:    ext.CustomerName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// dispatchSideEffects fans out the one-time effects of a newly created
// order. Each task captures and logs its own failure; none can cancel the
// others and none is ever retried here.
func (s *OrderService) dispatchSideEffects(ctx context.Context, order entities.Order) {
	var g errgroup.Group

	g.Go(func() error {
		if err := s.catalog.DecrementStock(ctx, order.Items); err != nil {
			s.sideEffectFailed(ctx, "stock", order.ID, err)
		}
		return nil
	})

	if order.PromoCodeID != "" {
		g.Go(func() error {
			if err := s.promos.IncrementUses(ctx, order.PromoCodeID); err != nil {
				s.sideEffectFailed(ctx, "promo", order.ID, err)
			}
			return nil
		})
	}

	if order.Email != "" {
		g.Go(func() error {
			if err := s.notifier.OrderConfirmation(ctx, order); err != nil {
				s.sideEffectFailed(ctx, "confirmation_email", order.ID, err)
			}
			return nil
		})
	}

	// Operations staff learns of every order, with or without a customer
	// email.
	g.Go(func() error {
		if err := s.notifier.SaleNotification(ctx, order); err != nil {
			s.sideEffectFailed(ctx, "sales_email", order.ID, err)
		}
		return nil
	})

	_ = g.Wait()
}

func (s *OrderService) sideEffectFailed(ctx context.Context, effect, orderID string, err error) {
	sideEffectFailures.WithLabelValues(effect).Inc()
	s.logger.ErrorContext(ctx, "side effect failed",
		slog.String("effect", effect),
		slog.String("order_id", orderID),
		slog.Any("error", err),
	)
}

// GetOrderByID serves the success page's poll loop.
func (s *OrderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	if order, ok := s.cache.Get(orderID); ok {
		return order, nil
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	s.cache.Set(orderID, order)
	return order, nil
}

var providerRetry = utils.RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 200 * time.Millisecond,
	Multiplier:   2,
}

// isProviderClientError reports a definitive provider rejection, like an
// unknown session id. Retrying cannot change the answer.
func isProviderClientError(err error) bool {
	var apiErr *provider.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// CreateFromSession re-derives everything from a provider session id and
// reconciles. Used for recovery when the webhook is delayed.
func (s *OrderService) CreateFromSession(ctx context.Context, sessionID string) (entities.Order, error) {
	var session *provider.CheckoutSession
	err := utils.Retry(ctx, providerRetry, func() error {
		var err error
		session, err = s.provider.RetrieveSession(ctx, sessionID)
		if isProviderClientError(err) {
			return utils.Permanent(err)
		}
		return err
	})
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to retrieve session %s: %w", sessionID, err)
	}

	return s.HandleSessionCompleted(ctx, session)
}

// HandleSessionCompleted reconciles a completed checkout session. The
// webhook payload never includes line items, so they are fetched separately.
func (s *OrderService) HandleSessionCompleted(ctx context.Context, session *provider.CheckoutSession) (entities.Order, error) {
	if session.PaymentStatus != provider.PaymentStatusPaid {
		return entities.Order{}, entities.ErrSessionNotPaid
	}

	lineItems, err := s.provider.ListLineItems(ctx, session.ID)
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to list line items for session %s: %w", session.ID, err)
	}

	ext, err := extract.FromSource(provider.Source{
		Kind:      provider.KindCheckoutSession,
		Session:   session,
		LineItems: lineItems,
	}, s.extractConfig())
	if err != nil {
		return entities.Order{}, err
	}

	return s.Reconcile(ctx, ext)
}

// HandleIntentSucceeded reconciles a payment-link purchase, where only a
// bare payment intent is available. The customer object is looked up here
// so extraction stays a pure function of its inputs.
func (s *OrderService) HandleIntentSucceeded(ctx context.Context, intent *provider.PaymentIntent) (entities.Order, error) {
	var customer *provider.Customer
	if intent.CustomerID != "" {
		c, err := s.provider.RetrieveCustomer(ctx, intent.CustomerID)
		if err != nil {
			return entities.Order{}, fmt.Errorf("failed to retrieve customer %s: %w", intent.CustomerID, err)
		}
		customer = c
	}

	ext, err := extract.FromSource(provider.Source{
		Kind:     provider.KindPaymentIntent,
		Intent:   intent,
		Customer: customer,
	}, s.extractConfig())
	if err != nil {
		return entities.Order{}, err
	}

	return s.Reconcile(ctx, ext)
}
