package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fundwave/pkg/config"
	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/featureflags"
	"fundwave/pkg/monime"
	"fundwave/pkg/repository"
	"fundwave/pkg/sequence"
	"fundwave/services/campaign"
	"fundwave/services/ledger"
	"fundwave/services/notification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	cfg       *config.Config
	campaigns *campaign.Service
	ledger    *ledger.Service
	gateway   monime.Gateway
	seq       sequence.Generator
	flags     featureflags.FeatureFlag
	dispatch  notification.Dispatcher

	withdrawal repository.Repository[Withdrawal]
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Config     *config.Config
	Campaigns  *campaign.Service
	Ledger     *ledger.Service
	Gateway    monime.Gateway
	Sequence   sequence.Generator
	Flags      featureflags.FeatureFlag
	Dispatcher notification.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		cfg:        p.Config,
		campaigns:  p.Campaigns,
		ledger:     p.Ledger,
		gateway:    p.Gateway,
		seq:        p.Sequence,
		flags:      p.Flags,
		dispatch:   p.Dispatcher,
		withdrawal: repository.ProvideStore[Withdrawal](p.DB),
	}
}

// Request pays part of a campaign's balance out to the creator's mobile
// money number. The amount is reserved before the vendor is called and
// released again if the payout fails.
func (s *Service) Request(ctx context.Context, campaignID, userID string, req Request) (*Withdrawal, error) {
	if s.flags != nil && s.flags.IsEnabled(ctx, userID, featureflags.WithdrawalsPaused) {
		return nil, errutil.UnprocessableEntity("withdrawals are temporarily paused", nil)
	}

	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != userID {
		return nil, errutil.Forbidden("only the campaign creator can withdraw", nil)
	}
	if req.Amount <= 0 {
		return nil, errutil.ValidationFailed("invalid input body", nil, errutil.WithDetails(errutil.Detail{
			Field: "amount", Message: "must be greater than 0",
		}))
	}
	if req.Amount > c.Available() {
		return nil, errutil.UnprocessableEntity("amount exceeds available balance", nil)
	}

	id := s.node.Generate().String()
	reference, err := s.seq.NextWithdrawalReference(ctx)
	if err != nil {
		zap.L().Warn("withdrawal sequence unavailable, using id", zap.Error(err))
		reference = "WDR-" + id
	}

	w := &Withdrawal{
		ID:         id,
		Reference:  reference,
		CampaignID: c.ID,
		UserID:     userID,
		Amount:     req.Amount,
		Phone:      strings.TrimSpace(req.Phone),
		ProviderID: strings.TrimSpace(req.ProviderID),
		Status:     StatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.campaigns.ReserveWithdrawal(ctx, tx, c.ID, w.Amount); err != nil {
			return err
		}
		return s.withdrawal.WithTrx(tx).Create(ctx, w)
	})
	if errors.Is(err, campaign.ErrInsufficientFunds) {
		return nil, errutil.UnprocessableEntity("amount exceeds available balance", err)
	}
	if err != nil {
		zap.L().Error("failed to reserve withdrawal", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, err
	}

	payout, err := s.gateway.CreatePayout(ctx, monime.PayoutRequest{
		IdempotencyKey:     w.Reference,
		Amount:             w.Amount,
		ProviderID:         w.ProviderID,
		Phone:              w.Phone,
		FinancialAccountID: c.FinancialAccountID,
		Metadata: map[string]string{
			"withdrawalId": w.ID,
			"campaignId":   c.ID,
		},
	})
	if err == nil && payout.Status == monime.StatusFailed {
		err = fmt.Errorf("payout %s failed", payout.ID)
	}
	if err != nil {
		zap.L().Error("payout failed", zap.String("withdrawal_id", w.ID), zap.Error(err))
		if ferr := s.fail(ctx, w, err.Error()); ferr != nil {
			zap.L().Error("failed to release withdrawal", zap.String("withdrawal_id", w.ID), zap.Error(ferr))
		}
		return nil, errutil.BadGateway("payout failed", err)
	}

	if err := s.complete(ctx, w, payout.ID); err != nil {
		zap.L().Error("failed to complete withdrawal", zap.String("withdrawal_id", w.ID), zap.String("payout_id", payout.ID), zap.Error(err))
		// the payout is out; keep its id on the pending row for reconciliation
		if uerr := s.withdrawal.Update(ctx, w.ID, map[string]any{"vendor_payout_id": payout.ID}); uerr != nil {
			zap.L().Error("failed to record payout id", zap.String("withdrawal_id", w.ID), zap.Error(uerr))
		}
		w.VendorPayoutID = payout.ID
		if errors.Is(err, ledger.ErrSequenceConflict) {
			return nil, errutil.Conflict("withdrawal sent but not yet booked, retry later", err)
		}
		return nil, err
	}

	if err := s.dispatch.Notify(ctx, notification.NotifyPayload{
		UserID:     userID,
		CampaignID: c.ID,
		Type:       notification.TypeCampaignStuff,
		Message:    fmt.Sprintf("Withdrawal of %d %s from %q was sent to %s.", w.Amount, s.cfg.Platform.Currency, c.Title, w.Phone),
	}); err != nil {
		zap.L().Warn("withdrawal notification not queued", zap.String("withdrawal_id", w.ID), zap.Error(err))
	}

	zap.L().Info("withdrawal completed", zap.String("withdrawal_id", w.ID), zap.Int64("amount", w.Amount))
	return w, nil
}

func (s *Service) complete(ctx context.Context, w *Withdrawal, payoutID string) error {
	uid := w.UserID
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.campaigns.Lock(ctx, tx, w.CampaignID); err != nil {
			return err
		}
		if err := s.withdrawal.WithTrx(tx).Update(ctx, w.ID, map[string]any{
			"status":           StatusCompleted,
			"vendor_payout_id": payoutID,
		}); err != nil {
			return err
		}

		_, err := s.ledger.Append(ctx, tx, ledger.AppendParams{
			CampaignID:  w.CampaignID,
			UserID:      &uid,
			Type:        ledger.EntryWithdrawal,
			Amount:      w.Amount,
			ReferenceID: payoutID,
			Description: "withdrawal " + w.Reference,
		})
		if err != nil {
			return err
		}

		w.Status = StatusCompleted
		w.VendorPayoutID = payoutID
		return nil
	})
}

func (s *Service) fail(ctx context.Context, w *Withdrawal, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.campaigns.ReleaseWithdrawal(ctx, tx, w.CampaignID, w.Amount); err != nil {
			return err
		}
		if err := s.withdrawal.WithTrx(tx).Update(ctx, w.ID, map[string]any{
			"status":         StatusFailed,
			"failure_reason": reason,
		}); err != nil {
			return err
		}
		w.Status = StatusFailed
		w.FailureReason = reason
		return nil
	})
}

func (s *Service) List(ctx context.Context, campaignID, userID string, page pagination.Pagination) ([]*Withdrawal, *pagination.PageInfo, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, nil, err
	}
	if c.CreatorID != userID {
		return nil, nil, errutil.Forbidden("only the campaign creator can view withdrawals", nil)
	}

	out, err := s.withdrawal.Find(ctx, &Withdrawal{CampaignID: c.ID}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, err
	}
	out, info := pagination.Page(out, page.Limit, func(w *Withdrawal) pagination.Cursor {
		return pagination.Cursor{ID: w.ID}
	})
	return out, info, nil
}
