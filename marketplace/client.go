// Package marketplace is the HTTP client for the kinnstay REST API. It
// owns the wire contract: bearer auth, JSON encoding, and schema
// validation of every response at the network boundary.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
)

// TokenSource supplies the bearer token for authenticated calls. The
// session store implements it; calls made while no session exists fail
// with whatever error the source returns.
type TokenSource interface {
	Token() (string, error)
}

// PaymentMethodExternal is the method recorded for charges settled by
// the card processor.
const PaymentMethodExternal = "external-processor"

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	validate   *validator.Validate
	log        zerolog.Logger
}

// ClientOption modifies a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (primarily for
// tests and custom transports).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a marketplace API client. tokens may be nil only if
// the caller restricts itself to Login.
func NewClient(baseURL string, tokens TokenSource, log zerolog.Logger, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[NewClient] baseURL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		validate:   validator.New(),
		log:        log.With().Str("component", "marketplace").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a bearer token. It is the only
// unauthenticated call on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &resp, false)
	if err != nil {
		return "", errors.Wrap(err, "[Client.Login]")
	}
	return resp.Token, nil
}

// Property fetches a single listing record.
func (c *Client) Property(ctx context.Context, id string) (*Property, error) {
	var resp Property
	path := "/properties/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, errors.Wrap(err, "[Client.Property]")
	}
	return &resp, nil
}

// CreatePaymentIntent asks the server to open a payment intent with the
// processor and hand back its single-use client secret. The idempotency
// key lets the server collapse duplicate submissions of one attempt.
func (c *Client) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (string, error) {
	var resp PaymentIntentResponse
	req := PaymentIntentRequest{Amount: amountMinor, Currency: currency}
	err := c.doWithHeaders(ctx, http.MethodPost, "/payments/create-payment-intent", req, &resp, true,
		map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		return "", errors.Wrap(err, "[Client.CreatePaymentIntent]")
	}
	return resp.ClientSecret, nil
}

// CreateBooking persists a booking record and returns it with its
// server-assigned identifier.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest, idempotencyKey string) (*BookingResponse, error) {
	var resp BookingResponse
	err := c.doWithHeaders(ctx, http.MethodPost, "/bookings/", req, &resp, true,
		map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.CreateBooking]")
	}
	return &resp, nil
}

// CreatePayment persists the payment record settling a booking.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments/", req, &resp, true); err != nil {
		return nil, errors.Wrap(err, "[Client.CreatePayment]")
	}
	return &resp, nil
}

// CancelBooking flips a booking to cancelled. Used as the compensating
// action when the payment record cannot be persisted.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	path := "/bookings/" + url.PathEscape(bookingID)
	var resp BookingResponse
	err := c.do(ctx, http.MethodPatch, path, bookingStatusPatch{Status: BookingCancelled}, &resp, true)
	if err != nil {
		return errors.Wrap(err, "[Client.CancelBooking]")
	}
	return nil
}

// Bookings lists the bookings belonging to a guest, newest first as
// served by the API.
func (c *Client) Bookings(ctx context.Context, guestID string) ([]BookingResponse, error) {
	var resp []BookingResponse
	path := "/bookings/guest/" + url.PathEscape(guestID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, errors.Wrap(err, "[Client.Bookings]")
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	return c.doWithHeaders(ctx, method, path, body, out, authed, nil)
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, body, out any, authed bool, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "json.Marshal")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "http.NewRequestWithContext")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if authed {
		if c.tokens == nil {
			return errors.Wrap(kerrors.ErrNoSession, "no token source")
		}
		token, err := c.tokens.Token()
		if err != nil {
			return errors.Wrap(err, "tokens.Token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "httpClient.Do")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "io.ReadAll")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("request rejected")
		return errors.Wrapf(kerrors.ErrRequestFailed, "%s %s: %s", method, path, errorMessage(resp.StatusCode, data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(kerrors.ErrMalformedResponse, "%s %s: %v", method, path, err)
	}
	if err := c.validateResponse(out); err != nil {
		return errors.Wrapf(kerrors.ErrMalformedResponse, "%s %s: %v", method, path, err)
	}
	return nil
}

// validateResponse runs struct validation on decoded responses. Slices
// are validated element-wise since validator.Struct rejects non-struct
// top-level values.
func (c *Client) validateResponse(out any) error {
	switch v := out.(type) {
	case *[]BookingResponse:
		for i := range *v {
			if err := c.validate.Struct(&(*v)[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return c.validate.Struct(out)
	}
}

// errorMessage extracts the server's error text when the body carries
// one, falling back to the HTTP status.
func errorMessage(status int, body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Error != "" {
			return apiErr.Error
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return fmt.Sprintf("status %d", status)
}
