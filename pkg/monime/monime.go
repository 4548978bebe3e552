package monime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fundwave/pkg/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("monime",
	fx.Provide(
		NewClient,
		func(c *Client) Gateway { return c },
	),
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusExpired    = "expired"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"

	// PaymentCodeDuration is how long a donor has to dial the USSD code.
	PaymentCodeDuration = 90 * time.Minute
)

var ErrNotFound = errors.New("monime: not found")

// Gateway is the slice of the mobile-money vendor API the service uses.
type Gateway interface {
	CreatePaymentCode(ctx context.Context, req PaymentCodeRequest) (*PaymentCode, error)
	GetPaymentCode(ctx context.Context, id string) (*PaymentCode, error)
	CreateFinancialAccount(ctx context.Context, req FinancialAccountRequest) (*FinancialAccount, error)
	CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
}

type Money struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

type PaymentCodeRequest struct {
	IdempotencyKey     string
	Name               string
	Amount             int64
	Currency           string
	Phone              string
	FinancialAccountID string
	Metadata           map[string]string
}

type PaymentCode struct {
	ID         string            `json:"id"`
	Mode       string            `json:"mode"`
	Status     string            `json:"status"`
	Name       string            `json:"name"`
	USSDCode   string            `json:"ussdCode"`
	Amount     Money             `json:"amount"`
	ExpireTime time.Time         `json:"expireTime"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type FinancialAccountRequest struct {
	IdempotencyKey string
	Name           string
	Currency       string
	Reference      string
}

type FinancialAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type PayoutRequest struct {
	IdempotencyKey     string
	Amount             int64
	Currency           string
	ProviderID         string
	Phone              string
	FinancialAccountID string
	Metadata           map[string]string
}

type Payout struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Money  `json:"amount"`
}

type envelope[T any] struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
	Result   T        `json:"result"`
}

type apiError struct {
	Success bool `json:"success"`
	Error   struct {
		Code    int    `json:"code"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

// Error is a non-2xx vendor response.
type Error struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("monime: %d %s: %s", e.StatusCode, e.Reason, e.Message)
}

type Client struct {
	http     *resty.Client
	currency string
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Monime.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	currency := cfg.Platform.Currency
	if currency == "" {
		currency = "SLE"
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Monime.BaseURL, "/")+"/v1").
		SetTimeout(timeout).
		SetAuthToken(cfg.Monime.AccessToken).
		SetHeader("Monime-Space-Id", cfg.Monime.SpaceID).
		SetHeader("Content-Type", "application/json")

	return &Client{http: rc, currency: currency}
}

func (c *Client) CreatePaymentCode(ctx context.Context, req PaymentCodeRequest) (*PaymentCode, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	target := map[string]any{"expectedPaymentCount": 1}
	body := map[string]any{
		"name":                   req.Name,
		"mode":                   "recurrent",
		"amount":                 Money{Currency: currency, Value: req.Amount},
		"duration":               "1h30m",
		"authorizedPhoneNumber":  req.Phone,
		"recurrentPaymentTarget": target,
		"financialAccountId":     req.FinancialAccountID,
		"metadata":               req.Metadata,
	}

	var out envelope[PaymentCode]
	if err := c.do(ctx, http.MethodPost, "/payment-codes", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

func (c *Client) GetPaymentCode(ctx context.Context, id string) (*PaymentCode, error) {
	var out envelope[PaymentCode]
	if err := c.do(ctx, http.MethodGet, "/payment-codes/"+id, "", nil, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

func (c *Client) CreateFinancialAccount(ctx context.Context, req FinancialAccountRequest) (*FinancialAccount, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	body := map[string]any{
		"name":      req.Name,
		"currency":  currency,
		"reference": req.Reference,
	}

	var out envelope[FinancialAccount]
	if err := c.do(ctx, http.MethodPost, "/financial-accounts", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	source := map[string]any{"financialAccountId": req.FinancialAccountID}
	destination := map[string]any{
		"type":        "momo",
		"providerId":  req.ProviderID,
		"phoneNumber": req.Phone,
	}
	body := map[string]any{
		"amount":      Money{Currency: currency, Value: req.Amount},
		"source":      source,
		"destination": destination,
		"metadata":    req.Metadata,
	}

	var out envelope[Payout]
	if err := c.do(ctx, http.MethodPost, "/payouts", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, result any) error {
	var failure apiError
	r := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&failure)
	if idempotencyKey != "" {
		r.SetHeader("Idempotency-Key", idempotencyKey)
	}
	if body != nil {
		r.SetBody(body)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		zap.L().Error("monime request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("monime: %s %s: %w", method, path, err)
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusNotFound {
			return ErrNotFound
		}
		zap.L().Warn("monime rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.String("reason", failure.Error.Reason),
		)
		return &Error{
			StatusCode: resp.StatusCode(),
			Reason:     failure.Error.Reason,
			Message:    failure.Error.Message,
		}
	}

	return nil
}
