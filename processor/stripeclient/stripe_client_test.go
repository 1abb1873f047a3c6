package stripeclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kinnstay/booking-workflow/processor"
	"github.com/kinnstay/booking-workflow/processor/stripeclient"
)

func newClient(t *testing.T, handler http.Handler) *stripeclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := stripeclient.New(srv.URL, "sk_test_123", zerolog.Nop())
	require.NoError(t, err)
	return client
}

func card() processor.Card {
	return processor.Card{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2030, CVC: "314"}
}

func TestConfirmSucceeded(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The intent id is recovered from the client secret.
		require.Equal(t, "/v1/payment_intents/pi_123/confirm", r.URL.Path)

		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "sk_test_123", user)

		require.NoError(t, r.ParseForm())
		require.Equal(t, "pi_123_secret_abc", r.PostForm.Get("client_secret"))
		require.Equal(t, "John Doe", r.PostForm.Get("payment_method_data[billing_details][name]"))

		json.NewEncoder(w).Encode(map[string]any{"id": "pi_123", "status": "succeeded"})
	}))

	confirmation, err := client.Confirm(context.Background(), "pi_123_secret_abc", card(),
		processor.BillingDetails{Name: "John Doe", Email: "guest@kinnstay.com"})
	require.NoError(t, err)
	require.Equal(t, processor.StatusSucceeded, confirmation.Status)
}

func TestConfirmDeclined(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Your card was declined."},
		})
	}))

	confirmation, err := client.Confirm(context.Background(), "pi_123_secret_abc", card(), processor.BillingDetails{})
	require.NoError(t, err)
	require.Equal(t, processor.StatusFailed, confirmation.Status)
	require.Equal(t, "Your card was declined.", confirmation.Message)
}

func TestConfirmRequiresAction(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "pi_123", "status": "requires_action"})
	}))

	confirmation, err := client.Confirm(context.Background(), "pi_123_secret_abc", card(), processor.BillingDetails{})
	require.NoError(t, err)
	require.Equal(t, processor.StatusRequiresAction, confirmation.Status)
	require.NotEmpty(t, confirmation.Message)
}

func TestConfirmMalformedSecret(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for a malformed secret")
	}))

	_, err := client.Confirm(context.Background(), "not-a-secret", card(), processor.BillingDetails{})
	require.Error(t, err)
}

func TestRefund(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))
		require.Equal(t, "30000", r.PostForm.Get("amount"))

		json.NewEncoder(w).Encode(map[string]any{"id": "re_1", "status": "succeeded"})
	}))

	require.NoError(t, client.Refund(context.Background(), "pi_123_secret_abc", 30000))
}

func TestRefundRejected(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "Charge already refunded."},
		})
	}))

	err := client.Refund(context.Background(), "pi_123_secret_abc", 30000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Charge already refunded.")
}
