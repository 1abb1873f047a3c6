// Package stripeclient implements the processor interface over a
// Stripe-compatible REST API using its form-encoded endpoints. The
// intent identifier is recovered from the client secret, which has the
// shape "<intent id>_secret_<nonce>".
package stripeclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kinnstay/booking-workflow/processor"
)

var _ processor.Client = (*Client)(nil)

const secretSeparator = "_secret_"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption modifies a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a processor client against the given API base URL.
func New(baseURL, apiKey string, log zerolog.Logger, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[stripeclient.New] baseURL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("[stripeclient.New] apiKey is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "processor").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Confirm presents the secret to the confirmation endpoint once and
// maps the response onto a terminal confirmation.
func (c *Client) Confirm(ctx context.Context, clientSecret string, card processor.Card, billing processor.BillingDetails) (*processor.Confirmation, error) {
	intentID, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Confirm]")
	}

	form := url.Values{}
	form.Set("client_secret", clientSecret)
	form.Set("payment_method_data[type]", "card")
	form.Set("payment_method_data[card][number]", card.Number)
	form.Set("payment_method_data[card][exp_month]", strconv.Itoa(card.ExpMonth))
	form.Set("payment_method_data[card][exp_year]", strconv.Itoa(card.ExpYear))
	form.Set("payment_method_data[card][cvc]", card.CVC)
	form.Set("payment_method_data[billing_details][name]", billing.Name)
	form.Set("payment_method_data[billing_details][email]", billing.Email)

	resp, err := c.post(ctx, "/v1/payment_intents/"+url.PathEscape(intentID)+"/confirm", form)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Confirm]")
	}

	if resp.Error != nil {
		return &processor.Confirmation{Status: processor.StatusFailed, Message: resp.Error.Message}, nil
	}
	switch resp.Status {
	case string(processor.StatusSucceeded):
		return &processor.Confirmation{Status: processor.StatusSucceeded}, nil
	case string(processor.StatusRequiresAction):
		return &processor.Confirmation{Status: processor.StatusRequiresAction, Message: "payment requires further action"}, nil
	default:
		return &processor.Confirmation{Status: processor.StatusFailed, Message: "payment not completed (" + resp.Status + ")"}, nil
	}
}

// Refund reverses the captured payment behind the secret.
func (c *Client) Refund(ctx context.Context, clientSecret string, amountMinor int64) error {
	intentID, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return errors.Wrap(err, "[Client.Refund]")
	}

	form := url.Values{}
	form.Set("payment_intent", intentID)
	form.Set("amount", strconv.FormatInt(amountMinor, 10))

	resp, err := c.post(ctx, "/v1/refunds", form)
	if err != nil {
		return errors.Wrap(err, "[Client.Refund]")
	}
	if resp.Error != nil {
		return errors.Errorf("[Client.Refund] processor rejected refund: %s", resp.Error.Message)
	}
	c.log.Info().Str("intent_id", intentID).Int64("amount_minor", amountMinor).Msg("refund issued")
	return nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*intentResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "http.NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.apiKey, "")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "httpClient.Do")
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "io.ReadAll")
	}

	var resp intentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrapf(err, "decoding processor response (status %d)", httpResp.StatusCode)
	}
	return &resp, nil
}

func intentIDFromSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, secretSeparator)
	if idx <= 0 {
		return "", errors.New("client secret has no intent id")
	}
	return clientSecret[:idx], nil
}
