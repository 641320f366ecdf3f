package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the subset of the provider API the service depends on. It is
// injected so tests can substitute a fake without process-wide state.
type Client interface {
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)
	CreateSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error)
}

// SessionLineItem is one priced entry sent when creating a session.
type SessionLineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int64  `json:"quantity"`
}

// CreateSessionParams describes a checkout session to create.
type CreateSessionParams struct {
	SuccessURL      string            `json:"success_url"`
	CancelURL       string            `json:"cancel_url"`
	CustomerEmail   string            `json:"customer_email,omitempty"`
	CollectShipping bool              `json:"collect_shipping,omitempty"`
	LineItems       []SessionLineItem `json:"line_items"`
	Metadata        map[string]string `json:"metadata"`
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider responded %d: %s", e.StatusCode, e.Message)
}

const defaultTimeout = 15 * time.Second

type httpClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTPClient returns a Client talking to the provider's REST API with
// bearer authentication.
func NewHTTPClient(baseURL, secretKey string) Client {
	return &httpClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *httpClient) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	// Expand the intent so shipping and receipt email are available for
	// address fallback without a second round-trip.
	path := fmt.Sprintf("/v1/checkout/sessions/%s?expand[]=payment_intent", url.PathEscape(sessionID))

	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, path, nil, &session); err != nil {
		return nil, fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (c *httpClient) ListLineItems(ctx context.Context, sessionID string) ([]LineItem, error) {
	path := fmt.Sprintf("/v1/checkout/sessions/%s/line_items", url.PathEscape(sessionID))

	var list struct {
		Data []LineItem `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list line items for session %s: %w", sessionID, err)
	}
	return list.Data, nil
}

func (c *httpClient) RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error) {
	path := "/v1/customers/" + url.PathEscape(customerID)

	var customer Customer
	if err := c.do(ctx, http.MethodGet, path, nil, &customer); err != nil {
		return nil, fmt.Errorf("retrieve customer %s: %w", customerID, err)
	}
	return &customer, nil
}

func (c *httpClient) CreateSession(ctx context.Context, params CreateSessionParams) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", params, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return string(data)
}
