package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

const (
	defaultBaseURL            = "https://api.paymongo.com"
	currencyPHP               = "PHP"
	errorBodyReadLimit  int64 = 2048
	defaultTimeout            = 15 * time.Second
)

var errSecretKeyRequired = errors.New("paymongo secret key is required")

// LineItem is one purchasable row on a hosted checkout page. Amounts are in
// centavos.
type LineItem struct {
	Name        string
	AmountCents int
	Quantity    int
}

// CheckoutSessionParams describes a hosted gcash checkout session.
type CheckoutSessionParams struct {
	LineItems       []LineItem
	BillingName     string
	ReferenceNumber string
	Description     string
	SuccessURL      string
	CancelURL       string
}

// CheckoutSession is the provider-issued session the purchaser is redirected to.
type CheckoutSession struct {
	ID          string
	CheckoutURL string
}

// RefundParams describes a full or partial refund against a captured payment.
type RefundParams struct {
	PaymentID   string
	AmountCents int
	Reason      string
}

// Refund is the provider's accepted refund record. Settlement is asynchronous;
// the terminal state arrives later by webhook.
type Refund struct {
	ID     string
	Status string
}

// Gateway is the payment-provider surface the order flows depend on. The
// concrete Client talks to PayMongo; tests substitute a fake.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	CreateRefund(ctx context.Context, params RefundParams) (*Refund, error)
	VerifySignature(body []byte, header string) error
}

// Client talks to the PayMongo REST API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a PayMongo client from the secret API key and the shared
// webhook signing secret.
func NewClient(secretKey, webhookSecret string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		secretKey:     trimmedKey,
		webhookSecret: strings.TrimSpace(webhookSecret),
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateCheckoutSession opens a hosted gcash checkout page for the given
// line items and returns the session id plus redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymongo client not configured")
	}
	if len(params.LineItems) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session requires line items")
	}
	if strings.TrimSpace(params.ReferenceNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session requires a reference number")
	}

	lineItems := make([]map[string]any, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		lineItems = append(lineItems, map[string]any{
			"name":     item.Name,
			"amount":   item.AmountCents,
			"currency": currencyPHP,
			"quantity": item.Quantity,
		})
	}
	attributes := map[string]any{
		"line_items":           lineItems,
		"payment_method_types": []string{"gcash"},
		"reference_number":     params.ReferenceNumber,
		"success_url":          params.SuccessURL,
		"cancel_url":           params.CancelURL,
		"send_email_receipt":   false,
		"show_line_items":      true,
	}
	if params.Description != "" {
		attributes["description"] = params.Description
	}
	if params.BillingName != "" {
		attributes["billing"] = map[string]any{"name": params.BillingName}
	}

	var apiResp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				CheckoutURL string `json:"checkout_url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/checkout_sessions", attributes, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Data.ID == "" || apiResp.Data.Attributes.CheckoutURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymongo returned an incomplete checkout session")
	}
	return &CheckoutSession{
		ID:          apiResp.Data.ID,
		CheckoutURL: apiResp.Data.Attributes.CheckoutURL,
	}, nil
}

// CreateRefund asks the provider to refund a captured payment. The returned
// status is the provider's initial state, usually "pending".
func (c *Client) CreateRefund(ctx context.Context, params RefundParams) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymongo client not configured")
	}
	if strings.TrimSpace(params.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund requires a payment id")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	attributes := map[string]any{
		"payment_id": params.PaymentID,
		"amount":     params.AmountCents,
		"reason":     params.Reason,
	}

	var apiResp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Status string `json:"status"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/refunds", attributes, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Data.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paymongo returned an incomplete refund")
	}
	return &Refund{ID: apiResp.Data.ID, Status: apiResp.Data.Attributes.Status}, nil
}

func (c *Client) post(ctx context.Context, path string, attributes map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]any{"attributes": attributes},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal paymongo request")
	}

	url := strings.TrimRight(c.baseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paymongo request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+basicAuth(c.secretKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paymongo request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"paymongo request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paymongo response")
	}
	return nil
}

// basicAuth encodes the secret key the way PayMongo expects: the key as
// username, empty password.
func basicAuth(secretKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(secretKey + ":"))
}
