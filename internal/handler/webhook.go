package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/extract"
	"github.com/inkhaven/order-service/internal/provider"
	"github.com/inkhaven/order-service/pkg/utils"
)

const (
	signatureHeader = "Payment-Signature"

	// Provider payloads are small; anything near this size is garbage.
	maxWebhookBody = 1 << 20
)

// Reconciler handles the two provider event types the service subscribes to.
type Reconciler interface {
	HandleSessionCompleted(ctx context.Context, session *provider.CheckoutSession) (entities.Order, error)
	HandleIntentSucceeded(ctx context.Context, intent *provider.PaymentIntent) (entities.Order, error)
}

type WebhookHandler struct {
	logger    *slog.Logger
	svc       Reconciler
	secret    string
	tolerance time.Duration
}

// NewWebhookHandler builds the webhook endpoint. A zero tolerance disables
// the timestamp age check; replayed local fixtures carry stale timestamps.
func NewWebhookHandler(logger *slog.Logger, svc Reconciler, secret string, tolerance time.Duration) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With(slog.String("handler", "webhook")),
		svc:       svc,
		secret:    secret,
		tolerance: tolerance,
	}
}

func (h *WebhookHandler) Init(r chi.Router) {
	r.Post("/webhooks/payment", h.HandleEvent)
}

type webhookAck struct {
	Received bool   `json:"received"`
	OrderID  string `json:"order_id,omitempty"`
}

// HandleEvent verifies the signature and dispatches the event. Unknown event
// types are acknowledged so the provider stops redelivering them. The 200 is
// written as soon as the order row is durable; notifications and stock
// updates run in the background.
// @Summary      Payment provider webhook
// @Tags         webhooks
// @Accept       json
// @Param        Payment-Signature  header  string  true  "Signed event header"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  utils.ErrorResponse "Malformed payload"
// @Failure      401  {object}  utils.ErrorResponse "Signature verification failed"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /webhooks/payment [post]
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	event, err := provider.ConstructEvent(payload, r.Header.Get(signatureHeader), h.secret, h.tolerance)
	if err != nil {
		webhookEvents.WithLabelValues("unknown", eventRejected).Inc()
		h.logger.WarnContext(ctx, "webhook signature rejected", slog.Any("error", err))
		utils.WriteError(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	switch event.Type {
	case provider.EventCheckoutSessionCompleted:
		var session provider.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			webhookEvents.WithLabelValues(event.Type, eventRejected).Inc()
			utils.WriteError(w, "malformed event object", http.StatusBadRequest)
			return
		}
		h.reconcile(ctx, w, event.Type, func() (entities.Order, error) {
			return h.svc.HandleSessionCompleted(ctx, &session)
		})

	case provider.EventPaymentIntentSucceeded:
		var intent provider.PaymentIntent
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			webhookEvents.WithLabelValues(event.Type, eventRejected).Inc()
			utils.WriteError(w, "malformed event object", http.StatusBadRequest)
			return
		}
		h.reconcile(ctx, w, event.Type, func() (entities.Order, error) {
			return h.svc.HandleIntentSucceeded(ctx, &intent)
		})

	default:
		webhookEvents.WithLabelValues(event.Type, eventSkipped).Inc()
		h.logger.DebugContext(ctx, "webhook event skipped", slog.String("type", event.Type))
		utils.WriteJSON(w, webhookAck{Received: true}, http.StatusOK)
	}
}

func (h *WebhookHandler) reconcile(ctx context.Context, w http.ResponseWriter, eventType string, handle func() (entities.Order, error)) {
	order, err := handle()

	// A payload without an order id can never reconcile; a terminal 4xx
	// stops the provider from redelivering a permanently broken event.
	if errors.Is(err, extract.ErrMissingOrderID) {
		webhookEvents.WithLabelValues(eventType, eventRejected).Inc()
		h.logger.WarnContext(ctx, "event payload missing order id", slog.String("type", eventType))
		utils.WriteError(w, "payload metadata is missing an order id", http.StatusBadRequest)
		return
	}

	// An unpaid session is the provider's problem, not ours; acknowledge it
	// so the event is not redelivered forever.
	if errors.Is(err, entities.ErrSessionNotPaid) {
		webhookEvents.WithLabelValues(eventType, eventSkipped).Inc()
		h.logger.InfoContext(ctx, "unpaid session acknowledged")
		utils.WriteJSON(w, webhookAck{Received: true}, http.StatusOK)
		return
	}

	if err != nil {
		webhookEvents.WithLabelValues(eventType, eventFailed).Inc()
		h.logger.ErrorContext(ctx, "failed to reconcile webhook event",
			slog.String("type", eventType),
			slog.Any("error", err),
		)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	webhookEvents.WithLabelValues(eventType, eventProcessed).Inc()
	utils.WriteJSON(w, webhookAck{Received: true, OrderID: order.ID}, http.StatusOK)
}
