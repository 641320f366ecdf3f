package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/extract"
	"github.com/inkhaven/order-service/internal/provider"
	"github.com/inkhaven/order-service/internal/service"
	"github.com/inkhaven/order-service/pkg/utils"
)

type OrderService interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	CreateFromSession(ctx context.Context, sessionID string) (entities.Order, error)
	CreateCheckoutSession(ctx context.Context, req service.CheckoutRequest) (service.CheckoutResult, error)
	ValidatePromo(ctx context.Context, code string, subtotal decimal.Decimal) (service.PromoQuote, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      OrderService
}

func NewHTTPHandler(logger *slog.Logger, svc OrderService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Get("/orders/{order_id}", h.GetOrderByID)
	r.Post("/orders/from-session", h.CreateFromSession)
	r.Post("/checkout/sessions", h.CreateCheckoutSession)
	r.Post("/promo-codes/validate", h.ValidatePromo)
}

// GetOrderByID serves the success page's poll loop.
// @Summary      Get order by id
// @Description  Returns the reconciled order, or 404 while the payment is still settling
// @Tags         orders
// @Param        order_id   path      string  true  "Order id generated at checkout"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Order not found"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.GetOrderByID(ctx, orderID)

	if errors.Is(err, entities.ErrOrderNotFound) {
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	}

	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get order", slog.Any("error", err), slog.String("order_id", orderID))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CreateFromSession materializes an order from a provider session id.
// @Summary      Create order from checkout session
// @Description  Recovery path for when the webhook is delayed. Idempotent; returns the existing order if it was already reconciled.
// @Tags         orders
// @Accept       json
// @Param        request  body  CreateFromSessionRequest  true  "Provider session id"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      402  {object}  utils.ErrorResponse "Session is not paid"
// @Failure      502  {object}  utils.ErrorResponse "Payment provider error"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /orders/from-session [post]
func (h *HTTPHandler) CreateFromSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateFromSessionRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.CreateFromSession(ctx, req.SessionID)
	if err != nil {
		h.writeServiceError(ctx, w, err, slog.String("session_id", req.SessionID))
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CreateCheckoutSession prices a cart and opens a provider checkout session.
// @Summary      Create checkout session
// @Description  Prices the cart from the catalog, applies an optional promo code and returns the provider-hosted payment page URL
// @Tags         checkout
// @Accept       json
// @Param        request  body  CheckoutRequest  true  "Cart contents"
// @Success      201  {object}  CheckoutResponse
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Unknown book or promo code"
// @Failure      422  {object}  utils.ErrorResponse "Promo code not applicable"
// @Failure      502  {object}  utils.ErrorResponse "Payment provider error"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /checkout/sessions [post]
func (h *HTTPHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CheckoutRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	result, err := h.svc.CreateCheckoutSession(ctx, CheckoutJSONToRequest(req))
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, CheckoutResponse{
		OrderID:   result.OrderID,
		SessionID: result.SessionID,
		URL:       result.URL,
	}, http.StatusCreated)
}

// ValidatePromo quotes the discount a promo code yields for a subtotal.
// @Summary      Validate promo code
// @Description  Checks the code against its validity window, usage limit and minimum order amount. Does not consume a use.
// @Tags         checkout
// @Accept       json
// @Param        request  body  ValidatePromoRequest  true  "Code and cart subtotal"
// @Success      200  {object}  ValidatePromoResponse
// @Failure      400  {object}  utils.ValidationErrorResponse "Validation error"
// @Failure      404  {object}  utils.ErrorResponse "Promo code not found"
// @Failure      422  {object}  utils.ErrorResponse "Promo code not applicable"
// @Failure      500  {object}  utils.ErrorResponse "Internal server error"
// @Router       /promo-codes/validate [post]
func (h *HTTPHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ValidatePromoRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	subtotal, err := parseSubtotal(req.Subtotal)
	if err != nil {
		utils.WriteError(w, "subtotal must be a decimal number", http.StatusBadRequest)
		return
	}

	quote, err := h.svc.ValidatePromo(ctx, req.Code, subtotal)
	if err != nil {
		h.writeServiceError(ctx, w, err, slog.String("code", req.Code))
		return
	}

	utils.WriteJSON(w, PromoQuoteToJSON(quote), http.StatusOK)
}

// writeServiceError maps service errors onto HTTP statuses shared by the
// order and checkout endpoints.
func (h *HTTPHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, attrs ...slog.Attr) {
	var apiErr *provider.APIError

	switch {
	case errors.Is(err, extract.ErrMissingOrderID):
		utils.WriteError(w, "payload metadata is missing an order id", http.StatusBadRequest)
	case errors.Is(err, entities.ErrSessionNotPaid):
		utils.WriteError(w, "session is not paid", http.StatusPaymentRequired)
	case errors.Is(err, entities.ErrBookNotFound):
		utils.WriteError(w, "unknown book title", http.StatusNotFound)
	case errors.Is(err, entities.ErrPromoNotFound):
		utils.WriteError(w, "promo code not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrPromoInactive),
		errors.Is(err, entities.ErrPromoExpired),
		errors.Is(err, entities.ErrPromoExhausted),
		errors.Is(err, entities.ErrPromoMinimumNotMet):
		utils.WriteError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &apiErr):
		h.logger.LogAttrs(ctx, slog.LevelError, "payment provider request failed",
			append(attrs, slog.Any("error", err))...)
		utils.WriteError(w, "payment provider error", http.StatusBadGateway)
	default:
		h.logger.LogAttrs(ctx, slog.LevelError, "request failed",
			append(attrs, slog.Any("error", err))...)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
