package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkhaven/order-service/internal/entities"
	"github.com/inkhaven/order-service/internal/extract"
	"github.com/inkhaven/order-service/internal/handler"
	"github.com/inkhaven/order-service/internal/service"
)

var testLogger = slog.New(slog.DiscardHandler)

type fakeOrderService struct {
	order    entities.Order
	orderErr error

	checkoutResult service.CheckoutResult
	checkoutErr    error

	quote    service.PromoQuote
	quoteErr error

	gotSessionID string
	gotCheckout  *service.CheckoutRequest
}

func (f *fakeOrderService) GetOrderByID(_ context.Context, orderID string) (entities.Order, error) {
	return f.order, f.orderErr
}

func (f *fakeOrderService) CreateFromSession(_ context.Context, sessionID string) (entities.Order, error) {
	f.gotSessionID = sessionID
	return f.order, f.orderErr
}

func (f *fakeOrderService) CreateCheckoutSession(_ context.Context, req service.CheckoutRequest) (service.CheckoutResult, error) {
	f.gotCheckout = &req
	return f.checkoutResult, f.checkoutErr
}

func (f *fakeOrderService) ValidatePromo(_ context.Context, code string, subtotal decimal.Decimal) (service.PromoQuote, error) {
	return f.quote, f.quoteErr
}

func newServer(svc handler.OrderService) *httptest.Server {
	r := chi.NewRouter()
	handler.NewHTTPHandler(testLogger, svc).Init(r)
	return httptest.NewServer(r)
}

func sampleOrder() entities.Order {
	return entities.Order{
		ID: "order-1",
		Items: []entities.OrderItem{
			{Title: "The Go Programming Language", Quantity: 2, Price: decimal.RequireFromString("30.00")},
		},
		Total:          decimal.RequireFromString("60.00"),
		DiscountAmount: decimal.Zero,
		ShippingCost:   decimal.RequireFromString("5.00"),
		FinalTotal:     decimal.RequireFromString("65.00"),
		Fulfillment:    entities.FulfillmentShipping,
		ShippingAddress: &entities.Address{
			Name:  "Sam Carter",
			Line1: "1 Shipping Way",
		},
		Email:        "sam@example.com",
		CustomerName: "Sam Carter",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestGetOrderByID(t *testing.T) {
	svc := &fakeOrderService{order: sampleOrder()}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/orders/order-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body handler.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "order-1", body.OrderID)
	assert.Equal(t, "65.00", body.FinalTotal)
	assert.Equal(t, "shipping", body.FulfillmentType)
	require.NotNil(t, body.ShippingAddress)
	assert.Equal(t, "1 Shipping Way", body.ShippingAddress.Line1)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	svc := &fakeOrderService{orderErr: entities.ErrOrderNotFound}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/orders/missing")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateFromSession(t *testing.T) {
	svc := &fakeOrderService{order: sampleOrder()}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orders/from-session", "application/json",
		strings.NewReader(`{"session_id":"cs_123"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cs_123", svc.gotSessionID)
}

func TestCreateFromSession_Validation(t *testing.T) {
	srv := newServer(&fakeOrderService{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orders/from-session", "application/json",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFromSession_MissingOrderID(t *testing.T) {
	svc := &fakeOrderService{orderErr: extract.ErrMissingOrderID}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orders/from-session", "application/json",
		strings.NewReader(`{"session_id":"cs_123"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateFromSession_NotPaid(t *testing.T) {
	svc := &fakeOrderService{orderErr: entities.ErrSessionNotPaid}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orders/from-session", "application/json",
		strings.NewReader(`{"session_id":"cs_123"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestCreateCheckoutSession(t *testing.T) {
	svc := &fakeOrderService{checkoutResult: service.CheckoutResult{
		OrderID:   "order-1",
		SessionID: "cs_1",
		URL:       "https://pay.example.com/cs_1",
	}}
	srv := newServer(svc)
	defer srv.Close()

	body := `{
		"items": [{"title": "The Go Programming Language", "quantity": 2}],
		"fulfillment_type": "shipping",
		"customer_email": "reader@example.com"
	}`
	resp, err := http.Post(srv.URL+"/checkout/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result handler.CheckoutResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "https://pay.example.com/cs_1", result.URL)

	require.NotNil(t, svc.gotCheckout)
	assert.Equal(t, entities.FulfillmentShipping, svc.gotCheckout.Fulfillment)
	assert.Equal(t, "reader@example.com", svc.gotCheckout.CustomerEmail)
}

func TestCreateCheckoutSession_Validation(t *testing.T) {
	srv := newServer(&fakeOrderService{})
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{"empty items", `{"items": [], "fulfillment_type": "shipping"}`},
		{"bad fulfillment", `{"items": [{"title": "X", "quantity": 1}], "fulfillment_type": "drone"}`},
		{"zero quantity", `{"items": [{"title": "X", "quantity": 0}], "fulfillment_type": "pickup"}`},
		{"bad email", `{"items": [{"title": "X", "quantity": 1}], "fulfillment_type": "pickup", "customer_email": "nope"}`},
		{"not json", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/checkout/sessions", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateCheckoutSession_UnknownBook(t *testing.T) {
	svc := &fakeOrderService{checkoutErr: entities.ErrBookNotFound}
	srv := newServer(svc)
	defer srv.Close()

	body := `{"items": [{"title": "Unknown", "quantity": 1}], "fulfillment_type": "pickup"}`
	resp, err := http.Post(srv.URL+"/checkout/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidatePromo(t *testing.T) {
	svc := &fakeOrderService{quote: service.PromoQuote{
		PromoCodeID: "promo-1",
		Code:        "SUMMER10",
		Discount:    decimal.RequireFromString("8.00"),
	}}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/promo-codes/validate", "application/json",
		strings.NewReader(`{"code": "SUMMER10", "subtotal": "80.00"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result handler.ValidatePromoResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "8.00", result.Discount)
}

func TestValidatePromo_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{"not found", `{"code": "NOPE", "subtotal": "50.00"}`, entities.ErrPromoNotFound, http.StatusNotFound},
		{"expired", `{"code": "OLD", "subtotal": "50.00"}`, entities.ErrPromoExpired, http.StatusUnprocessableEntity},
		{"minimum not met", `{"code": "BIG", "subtotal": "5.00"}`, entities.ErrPromoMinimumNotMet, http.StatusUnprocessableEntity},
		{"bad subtotal", `{"code": "SUMMER10", "subtotal": "abc"}`, nil, http.StatusBadRequest},
		{"missing code", `{"subtotal": "50.00"}`, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(&fakeOrderService{quoteErr: tt.svcErr})
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/promo-codes/validate", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	svc := &fakeOrderService{orderErr: errors.New("pq: connection refused")}
	srv := newServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/orders/order-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body["message"], "pq:")
}
