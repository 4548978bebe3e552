package monime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundwave/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Monime.BaseURL = srv.URL
	cfg.Monime.SpaceID = "spc-1"
	cfg.Monime.AccessToken = "tok"
	cfg.Monime.Timeout = 2 * time.Second
	cfg.Platform.Currency = "SLE"
	return NewClient(cfg)
}

func TestCreatePaymentCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment-codes", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "spc-1", r.Header.Get("Monime-Space-Id"))
		require.Equal(t, "PAY-1", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "recurrent", body["mode"])
		require.Equal(t, "1h30m", body["duration"])
		require.Equal(t, "fa-1", body["financialAccountId"])
		require.Equal(t, "+23276123456", body["authorizedPhoneNumber"])
		require.EqualValues(t, 1, body["recurrentPaymentTarget"].(map[string]any)["expectedPaymentCount"])
		require.EqualValues(t, 50000, body["amount"].(map[string]any)["value"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"messages":[],"result":{"id":"pmc-1","status":"pending","ussdCode":"*715*1*123456#","amount":{"currency":"SLE","value":50000}}}`))
	})

	code, err := c.CreatePaymentCode(context.Background(), PaymentCodeRequest{
		IdempotencyKey:     "PAY-1",
		Name:               "Clean water for Kenema",
		Amount:             50000,
		Phone:              "+23276123456",
		FinancialAccountID: "fa-1",
	})
	require.NoError(t, err)
	require.Equal(t, "pmc-1", code.ID)
	require.Equal(t, "*715*1*123456#", code.USSDCode)
	require.EqualValues(t, 50000, code.Amount.Value)
}

func TestVendorErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/payment-codes/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":404,"reason":"not_found","message":"no such code"}}`))
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":422,"reason":"invalid_amount","message":"amount too small"}}`))
	})

	_, err := c.GetPaymentCode(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.CreatePayout(context.Background(), PayoutRequest{Amount: 1, Phone: "+23276000000", ProviderID: "m17"})
	var vendorErr *Error
	require.True(t, errors.As(err, &vendorErr))
	require.Equal(t, http.StatusUnprocessableEntity, vendorErr.StatusCode)
	require.Equal(t, "invalid_amount", vendorErr.Reason)
}

func TestCreateFinancialAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/financial-accounts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":{"id":"fa-9","name":"campaign","currency":"SLE"}}`))
	})

	fa, err := c.CreateFinancialAccount(context.Background(), FinancialAccountRequest{Name: "campaign"})
	require.NoError(t, err)
	require.Equal(t, "fa-9", fa.ID)
}
