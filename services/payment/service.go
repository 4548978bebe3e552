package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"fundwave/pkg/config"
	"fundwave/pkg/errutil"
	"fundwave/pkg/mailer"
	"fundwave/pkg/monime"
	"fundwave/pkg/rediskey"
	"fundwave/pkg/repository"
	"fundwave/pkg/sequence"
	"fundwave/services/campaign"
	"fundwave/services/ledger"
	"fundwave/services/notification"
	"fundwave/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const progressTTL = 30 * time.Second

var tracer = otel.Tracer("fundwave/services/payment")

// errAlreadyApplied rolls the confirmation transaction back when the ledger
// already holds the vendor reference.
var errAlreadyApplied = errors.New("payment: already applied")

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	cfg       *config.Config
	campaigns *campaign.Service
	users     *user.Service
	ledger    *ledger.Service
	gateway   monime.Gateway
	seq       sequence.Generator
	dispatch  notification.Dispatcher
	cache     *redis.Client
	now       func() time.Time

	payment repository.Repository[Payment]
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Config     *config.Config
	Campaigns  *campaign.Service
	Users      *user.Service
	Ledger     *ledger.Service
	Gateway    monime.Gateway
	Sequence   sequence.Generator
	Dispatcher notification.Dispatcher
	Cache      *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		cfg:       p.Config,
		campaigns: p.Campaigns,
		users:     p.Users,
		ledger:    p.Ledger,
		gateway:   p.Gateway,
		seq:       p.Sequence,
		dispatch:  p.Dispatcher,
		cache:     p.Cache,
		now:       time.Now,
		payment:   repository.ProvideStore[Payment](p.DB),
	}
}

// IssuePaymentCode asks the vendor for a USSD payment code for the donation
// and records the pending payment. donorID may be empty.
func (s *Service) IssuePaymentCode(ctx context.Context, donorID string, req IssueRequest) (*IssueResult, error) {
	ctx, span := tracer.Start(ctx, "payment.IssuePaymentCode")
	defer span.End()
	span.SetAttributes(attribute.String("campaign.id", req.CampaignID))

	amount, err := parseAmount(req.Amount)
	if err != nil {
		codesIssued.WithLabelValues("invalid").Inc()
		return nil, err
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		codesIssued.WithLabelValues("invalid").Inc()
		return nil, errutil.ValidationFailed("invalid input body", nil, errutil.WithDetails(errutil.Detail{
			Field: "phone", Message: "phone is required",
		}))
	}

	c, err := s.campaigns.Get(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if !c.AcceptsDonations(s.now()) {
		codesIssued.WithLabelValues("rejected").Inc()
		return nil, errutil.UnprocessableEntity("campaign is not accepting donations", nil)
	}

	var userID *string
	donorName := "Anonymous"
	if donorID != "" {
		if u, _ := s.users.Find(ctx, donorID); u != nil {
			userID = &u.ID
			if u.Name != "" {
				donorName = u.Name
			}
		}
	}

	id := s.node.Generate().String()
	reference, err := s.seq.NextPaymentReference(ctx)
	if err != nil {
		zap.L().Warn("payment sequence unavailable, using id", zap.Error(err))
		reference = "PAY-" + id
	}

	code, err := s.gateway.CreatePaymentCode(ctx, monime.PaymentCodeRequest{
		IdempotencyKey:     reference,
		Name:               truncate(fmt.Sprintf("Donation to %s", c.Title), 64),
		Amount:             amount,
		Phone:              phone,
		FinancialAccountID: c.FinancialAccountID,
		Metadata: map[string]string{
			"paymentId":  id,
			"reference":  reference,
			"campaignId": c.ID,
		},
	})
	if err != nil {
		codesIssued.WithLabelValues("vendor_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "vendor error")
		zap.L().Error("failed to create payment code",
			zap.String("campaign_id", c.ID),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, errutil.BadGateway("payment provider unavailable", err)
	}

	expiresAt := code.ExpireTime
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(monime.PaymentCodeDuration)
	}
	raw, _ := json.Marshal(code)

	p := &Payment{
		ID:              id,
		Reference:       reference,
		UserID:          userID,
		CampaignID:      c.ID,
		DonorName:       donorName,
		Phone:           phone,
		Amount:          amount,
		VendorPaymentID: code.ID,
		USSDCode:        code.USSDCode,
		ExpiresAt:       expiresAt.UTC(),
		Metadata:        datatypes.JSON(raw),
	}
	if err := s.payment.Create(ctx, p); err != nil {
		zap.L().Error("failed to store payment", zap.String("vendor_payment_id", code.ID), zap.Error(err))
		return nil, err
	}

	codesIssued.WithLabelValues("ok").Inc()
	zap.L().Info("payment code issued",
		zap.String("payment_id", p.ID),
		zap.String("reference", reference),
		zap.String("campaign_id", c.ID),
		zap.Int64("amount", amount),
	)

	expiresIn := int64(math.Max(0, expiresAt.Sub(s.now()).Seconds()))
	return &IssueResult{
		PaymentCode: code.USSDCode,
		PaymentID:   p.ID,
		Reference:   reference,
		ExpiresIn:   expiresIn,
		ExpiresAt:   p.ExpiresAt,
	}, nil
}

// ConfirmPayment applies a vendor confirmation. Only "completed" changes
// state, and each vendor payment id is applied at most once.
func (s *Service) ConfirmPayment(ctx context.Context, ev WebhookEvent) (*ConfirmResult, error) {
	ctx, span := tracer.Start(ctx, "payment.ConfirmPayment")
	defer span.End()

	ev.Normalize()
	if ev.ID == "" || ev.Status == "" {
		return nil, errutil.BadRequest("id and status are required", nil)
	}
	span.SetAttributes(attribute.String("vendor.payment_id", ev.ID), attribute.String("vendor.status", ev.Status))

	if ev.Status != monime.StatusCompleted {
		confirmations.WithLabelValues("ignored").Inc()
		zap.L().Info("ignoring vendor status", zap.String("vendor_payment_id", ev.ID), zap.String("status", ev.Status))
		return &ConfirmResult{Applied: false, Status: ev.Status}, nil
	}

	p, err := s.payment.FindOne(ctx, &Payment{VendorPaymentID: ev.ID})
	if err != nil {
		return nil, err
	}
	if p == nil {
		confirmations.WithLabelValues("not_found").Inc()
		zap.L().Warn("confirmation for unknown payment", zap.String("vendor_payment_id", ev.ID))
		return nil, errutil.NotFound("payment not found", nil)
	}

	applied, err := s.apply(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return nil, err
	}
	return &ConfirmResult{Applied: applied, Status: ev.Status}, nil
}

// SyncPayment polls the vendor for a payment the webhook may have missed.
func (s *Service) SyncPayment(ctx context.Context, id string) (*ConfirmResult, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsCompleted {
		return &ConfirmResult{Applied: false, Status: monime.StatusCompleted}, nil
	}

	code, err := s.gateway.GetPaymentCode(ctx, p.VendorPaymentID)
	if err != nil {
		if errors.Is(err, monime.ErrNotFound) {
			return nil, errutil.NotFound("payment code not found at provider", err)
		}
		return nil, errutil.BadGateway("payment provider unavailable", err)
	}
	if code.Status != monime.StatusCompleted {
		return &ConfirmResult{Applied: false, Status: code.Status}, nil
	}

	applied, err := s.apply(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Applied: applied, Status: code.Status}, nil
}

// apply books a completed payment in one transaction: the completion flag
// flips first and guards the balance updates, the ledger reference guards
// them a second time.
func (s *Service) apply(ctx context.Context, p *Payment) (bool, error) {
	now := s.now().UTC()
	applied := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Payment{}).
			Where("id = ? AND is_completed = ?", p.ID, false).
			Updates(map[string]any{"is_completed": true, "completed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if p.UserID != nil {
			if err := s.users.AddContribution(ctx, tx, *p.UserID, p.Amount); err != nil {
				return err
			}
		}
		// the increment holds the campaign row lock for the ledger append
		if err := s.campaigns.AddReceived(ctx, tx, p.CampaignID, p.Amount); err != nil {
			return err
		}

		_, err := s.ledger.Append(ctx, tx, ledger.AppendParams{
			CampaignID:  p.CampaignID,
			UserID:      p.UserID,
			PaymentID:   p.ID,
			Type:        ledger.EntryDonation,
			Amount:      p.Amount,
			ReferenceID: p.VendorPaymentID,
			Description: "donation " + p.Reference,
		})
		if errors.Is(err, ledger.ErrDuplicateReference) {
			return errAlreadyApplied
		}
		if err != nil {
			return err
		}

		applied = true
		return nil
	})
	if errors.Is(err, errAlreadyApplied) {
		err = nil
		applied = false
	}
	if errors.Is(err, ledger.ErrSequenceConflict) {
		confirmations.WithLabelValues("conflict").Inc()
		zap.L().Warn("payment not booked, ledger busy", zap.String("payment_id", p.ID), zap.Error(err))
		return false, errutil.Conflict("ledger busy, retry the confirmation", err)
	}
	if err != nil {
		zap.L().Error("failed to apply payment", zap.String("payment_id", p.ID), zap.Error(err))
		return false, err
	}

	if !applied {
		confirmations.WithLabelValues("duplicate").Inc()
		zap.L().Info("duplicate confirmation", zap.String("payment_id", p.ID), zap.String("vendor_payment_id", p.VendorPaymentID))
		return false, nil
	}

	p.IsCompleted = true
	p.CompletedAt = &now
	confirmations.WithLabelValues("applied").Inc()
	donatedAmount.Add(float64(p.Amount))
	zap.L().Info("payment applied",
		zap.String("payment_id", p.ID),
		zap.String("campaign_id", p.CampaignID),
		zap.Int64("amount", p.Amount),
	)

	s.invalidateProgress(ctx, p.CampaignID)
	s.notifyDonation(ctx, p)
	return true, nil
}

// notifyDonation runs after commit; failures are logged only.
func (s *Service) notifyDonation(ctx context.Context, p *Payment) {
	c, err := s.campaigns.Get(ctx, p.CampaignID)
	if err != nil {
		zap.L().Warn("donation notification skipped", zap.String("payment_id", p.ID), zap.Error(err))
		return
	}
	currency := s.cfg.Platform.Currency

	if err := s.dispatch.Notify(ctx, notification.NotifyPayload{
		UserID:     c.CreatorID,
		CampaignID: c.ID,
		Type:       notification.TypeDonations,
		Message:    fmt.Sprintf("%s donated %d %s to %q.", p.DonorName, p.Amount, currency, c.Title),
	}); err != nil {
		zap.L().Warn("creator notification not queued", zap.String("payment_id", p.ID), zap.Error(err))
	}

	if p.UserID == nil {
		return
	}
	if err := s.dispatch.Notify(ctx, notification.NotifyPayload{
		UserID:     *p.UserID,
		CampaignID: c.ID,
		Type:       notification.TypeDonations,
		Message:    fmt.Sprintf("Thank you! Your donation of %d %s to %q was received.", p.Amount, currency, c.Title),
	}); err != nil {
		zap.L().Warn("donor notification not queued", zap.String("payment_id", p.ID), zap.Error(err))
	}

	donor, err := s.users.Find(ctx, *p.UserID)
	if err != nil || donor == nil {
		return
	}
	if err := s.dispatch.SendEmail(ctx, mailer.Message{
		To:      donor.Email,
		Subject: fmt.Sprintf("%s receipt %s", s.cfg.Platform.Name, p.Reference),
		Body: fmt.Sprintf("Hello %s,\n\nWe received your donation of %d %s to %q.\nReference: %s\n\nThank you for your support.\n",
			donor.Name, p.Amount, currency, c.Title, p.Reference),
	}); err != nil {
		zap.L().Warn("receipt email not queued", zap.String("payment_id", p.ID), zap.Error(err))
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Payment, error) {
	p, err := s.payment.FindOne(ctx, &Payment{ID: id})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errutil.NotFound("payment not found", nil)
	}
	return p, nil
}

// Progress summarises funding for a campaign, cached briefly in redis.
func (s *Service) Progress(ctx context.Context, campaignID string) (*Progress, error) {
	key := rediskey.BuildCampaignProgressKey(campaignID)
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached Progress
			if json.Unmarshal(b, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			zap.L().Warn("progress cache read failed", zap.Error(err))
		}
	}

	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	donors, err := s.countDonors(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	out := &Progress{
		CampaignID:     c.ID,
		AmountReceived: c.AmountReceived,
		FundingGoal:    c.FundingGoal,
		DonorCount:     donors,
	}
	if c.FundingGoal > 0 {
		out.Percentage = math.Round(float64(c.AmountReceived)*10000/float64(c.FundingGoal)) / 100
	}

	if s.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, b, progressTTL).Err(); err != nil {
				zap.L().Warn("progress cache write failed", zap.Error(err))
			}
		}
	}
	return out, nil
}

// countDonors counts distinct registered donors plus every anonymous
// completed donation.
func (s *Service) countDonors(ctx context.Context, campaignID string) (int64, error) {
	var registered, anonymous int64
	base := s.db.WithContext(ctx).Model(&Payment{}).Where("campaign_id = ? AND is_completed = ?", campaignID, true)

	if err := base.Session(&gorm.Session{}).Where("user_id IS NOT NULL").
		Distinct("user_id").Count(&registered).Error; err != nil {
		return 0, err
	}
	if err := base.Session(&gorm.Session{}).Where("user_id IS NULL").
		Count(&anonymous).Error; err != nil {
		return 0, err
	}
	return registered + anonymous, nil
}

// Donors returns the distinct registered users with a completed donation to
// the campaign.
func (s *Service) Donors(ctx context.Context, campaignID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Payment{}).
		Where("campaign_id = ? AND is_completed = ? AND user_id IS NOT NULL", campaignID, true).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *Service) invalidateProgress(ctx context.Context, campaignID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, rediskey.BuildCampaignProgressKey(campaignID)).Err(); err != nil {
		zap.L().Warn("progress cache invalidation failed", zap.String("campaign_id", campaignID), zap.Error(err))
	}
}

// pending lists unexpired payment codes still waiting for a confirmation.
func (s *Service) pending(ctx context.Context, limit int) ([]*Payment, error) {
	var out []*Payment
	err := s.db.WithContext(ctx).
		Where("is_completed = ? AND expires_at > ?", false, s.now().UTC().Add(-time.Hour)).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func parseAmount(raw string) (int64, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || amount <= 0 {
		return 0, errutil.ValidationFailed("invalid input body", err, errutil.WithDetails(errutil.Detail{
			Field: "amount", Message: "amount must be a positive integer",
		}))
	}
	return amount, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
