// Package fakes holds in-memory stand-ins for the vendor gateway, the
// notification dispatcher and object storage, shared by service tests.
package fakes

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"fundwave/pkg/mailer"
	"fundwave/pkg/monime"
	"fundwave/services/notification"
)

type Gateway struct {
	mu sync.Mutex

	Codes        map[string]*monime.PaymentCode
	CodeRequests []monime.PaymentCodeRequest
	Accounts     []monime.FinancialAccountRequest
	Payouts      []monime.PayoutRequest

	// Err fails every call; PayoutErr only payouts.
	Err          error
	PayoutErr    error
	PayoutStatus string

	seq int
}

func NewGateway() *Gateway {
	return &Gateway{Codes: map[string]*monime.PaymentCode{}}
}

func (g *Gateway) CreatePaymentCode(ctx context.Context, req monime.PaymentCodeRequest) (*monime.PaymentCode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}

	g.seq++
	g.CodeRequests = append(g.CodeRequests, req)
	code := &monime.PaymentCode{
		ID:         fmt.Sprintf("pmc-%d", g.seq),
		Mode:       "recurrent",
		Status:     monime.StatusPending,
		Name:       req.Name,
		USSDCode:   fmt.Sprintf("*715*1*%06d#", g.seq),
		Amount:     monime.Money{Currency: "SLE", Value: req.Amount},
		ExpireTime: time.Now().Add(monime.PaymentCodeDuration),
		Metadata:   req.Metadata,
	}
	g.Codes[code.ID] = code

	out := *code
	return &out, nil
}

func (g *Gateway) GetPaymentCode(ctx context.Context, id string) (*monime.PaymentCode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}

	code, ok := g.Codes[id]
	if !ok {
		return nil, monime.ErrNotFound
	}
	out := *code
	return &out, nil
}

// SetStatus simulates the donor completing (or abandoning) a payment code.
func (g *Gateway) SetStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if code, ok := g.Codes[id]; ok {
		code.Status = status
	}
}

func (g *Gateway) CreateFinancialAccount(ctx context.Context, req monime.FinancialAccountRequest) (*monime.FinancialAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}

	g.seq++
	g.Accounts = append(g.Accounts, req)
	return &monime.FinancialAccount{ID: fmt.Sprintf("fac-%d", g.seq), Name: req.Name, Currency: "SLE"}, nil
}

func (g *Gateway) CreatePayout(ctx context.Context, req monime.PayoutRequest) (*monime.Payout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	if g.PayoutErr != nil {
		return nil, g.PayoutErr
	}

	g.seq++
	g.Payouts = append(g.Payouts, req)
	status := g.PayoutStatus
	if status == "" {
		status = monime.StatusCompleted
	}
	return &monime.Payout{
		ID:     fmt.Sprintf("pyt-%d", g.seq),
		Status: status,
		Amount: monime.Money{Currency: "SLE", Value: req.Amount},
	}, nil
}

// Dispatcher records notifications and emails instead of queueing them.
type Dispatcher struct {
	mu            sync.Mutex
	Notifications []notification.NotifyPayload
	Emails        []mailer.Message
	Err           error
}

func (d *Dispatcher) Notify(ctx context.Context, p notification.NotifyPayload) error {
	if p.UserID == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Notifications = append(d.Notifications, p)
	return nil
}

func (d *Dispatcher) NotifyMany(ctx context.Context, userIDs []string, p notification.NotifyPayload) error {
	for _, id := range userIDs {
		n := p
		n.UserID = id
		if err := d.Notify(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) SendEmail(ctx context.Context, m mailer.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Emails = append(d.Emails, m)
	return nil
}

// NotificationsFor returns what was sent to userID.
func (d *Dispatcher) NotificationsFor(userID string) []notification.NotifyPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notification.NotifyPayload
	for _, n := range d.Notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type Upload struct {
	Key         string
	Size        int64
	ContentType string
	Body        []byte
}

// Uploader keeps uploaded objects in memory.
type Uploader struct {
	mu      sync.Mutex
	Uploads []Upload
	Err     error
}

func (u *Uploader) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if u.Err != nil {
		return "", u.Err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.Uploads = append(u.Uploads, Upload{Key: key, Size: size, ContentType: contentType, Body: body})
	return "https://cdn.fundwave.test/" + key, nil
}
