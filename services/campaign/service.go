package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fundwave/pkg/config"
	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/monime"
	"fundwave/pkg/repository"
	"fundwave/services/ledger"
	"fundwave/services/notification"
	"fundwave/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientFunds means a withdrawal reservation would overdraw the
// campaign.
var ErrInsufficientFunds = errors.New("campaign: insufficient funds")

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	cfg      *config.Config
	users    *user.Service
	ledger   *ledger.Service
	gateway  monime.Gateway
	dispatch notification.Dispatcher
	now      func() time.Time

	campaign repository.Repository[Campaign]
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Config     *config.Config
	Users      *user.Service
	Ledger     *ledger.Service
	Gateway    monime.Gateway
	Dispatcher notification.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		cfg:      p.Config,
		users:    p.Users,
		ledger:   p.Ledger,
		gateway:  p.Gateway,
		dispatch: p.Dispatcher,
		now:      time.Now,
		campaign: repository.ProvideStore[Campaign](p.DB),
	}
}

// Create opens a campaign for a KYC-verified creator and provisions the
// vendor financial account that collects its donations.
func (s *Service) Create(ctx context.Context, creatorID string, req CreateRequest) (*Campaign, error) {
	creator, err := s.users.Find(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, errutil.Unauthorized("unknown user", nil)
	}
	if !creator.IsKyc || creator.KYCStatus != user.KYCVerified {
		return nil, errutil.Forbidden("kyc verification is required to create a campaign", nil)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errutil.ValidationFailed("invalid input body", nil, errutil.WithDetails(errutil.Detail{
			Field: "title", Message: "title is required",
		}))
	}
	if !req.CampaignEndDate.After(s.now()) {
		return nil, errutil.ValidationFailed("invalid input body", nil, errutil.WithDetails(errutil.Detail{
			Field: "campaignEndDate", Message: "campaignEndDate must be in the future",
		}))
	}

	exist, err := s.campaign.FindOne(ctx, &Campaign{Title: title})
	if err != nil {
		zap.L().Error("failed to query campaign", zap.Error(err))
		return nil, err
	}
	if exist != nil {
		return nil, errutil.Conflict("campaign title already exists", nil)
	}

	id := s.node.Generate().String()
	account, err := s.gateway.CreateFinancialAccount(ctx, monime.FinancialAccountRequest{
		IdempotencyKey: id,
		Name:           title,
		Currency:       s.cfg.Platform.Currency,
		Reference:      id,
	})
	if err != nil {
		zap.L().Error("failed to create financial account", zap.String("campaign_id", id), zap.Error(err))
		return nil, errutil.BadGateway("payment provider unavailable", err)
	}

	c := &Campaign{
		ID:                 id,
		Title:              title,
		Slug:               fmt.Sprintf("%s-%s", slug.Make(title), id[len(id)-6:]),
		Description:        strings.TrimSpace(req.Description),
		FundingGoal:        req.FundingGoal,
		CampaignEndDate:    req.CampaignEndDate.UTC(),
		CreatorID:          creatorID,
		Status:             StatusActive,
		FinancialAccountID: account.ID,
	}

	if err := s.campaign.Create(ctx, c); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("campaign title already exists", err)
		}
		zap.L().Error("failed to create campaign", zap.Error(err))
		return nil, err
	}

	zap.L().Info("campaign created", zap.String("campaign_id", c.ID), zap.String("creator_id", creatorID))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Campaign, error) {
	c, err := s.campaign.FindOne(ctx, &Campaign{ID: id})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]*Campaign, *pagination.PageInfo, error) {
	page := pagination.Pagination{Cursor: req.Cursor, Limit: req.Limit}
	campaigns, err := s.campaign.Find(ctx, &Campaign{
		Status:    req.Status,
		CreatorID: req.CreatorID,
	}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, err
	}

	campaigns, info := pagination.Page(campaigns, page.Limit, func(c *Campaign) pagination.Cursor {
		return pagination.Cursor{ID: c.ID}
	})
	return campaigns, info, nil
}

// UpdateStatus moderates a campaign. Completed campaigns are final.
func (s *Service) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Campaign, error) {
	if !req.Status.Valid() {
		return nil, errutil.BadRequest("invalid status", nil)
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == req.Status {
		return c, nil
	}
	if c.Status == StatusCompleted {
		return nil, errutil.UnprocessableEntity("campaign is already completed", nil)
	}

	if err := s.campaign.Update(ctx, c.ID, map[string]any{"status": req.Status}); err != nil {
		zap.L().Error("failed to update campaign status", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, err
	}
	c.Status = req.Status

	msg := fmt.Sprintf("Your campaign %q is now %s.", c.Title, c.Status)
	if req.Reason != "" {
		msg = fmt.Sprintf("%s Reason: %s", msg, req.Reason)
	}
	if err := s.dispatch.Notify(ctx, notification.NotifyPayload{
		UserID:     c.CreatorID,
		CampaignID: c.ID,
		Type:       notification.TypeCampaignStuff,
		Message:    msg,
	}); err != nil {
		zap.L().Warn("campaign status notification not queued", zap.String("campaign_id", c.ID), zap.Error(err))
	}

	return c, nil
}

// Audit compares the hash-chained ledger with the campaign's running totals.
func (s *Service) Audit(ctx context.Context, id string) (*AuditReport, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	chain, err := s.ledger.VerifyChain(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{
		CampaignID:      c.ID,
		ChainValid:      chain.Valid,
		Entries:         chain.Entries,
		BrokenAt:        chain.BrokenAt,
		LedgerDonations: chain.Donations,
		AmountReceived:  c.AmountReceived,
		LedgerWithdrawn: chain.Withdrawn,
		AmountWithdrawn: c.AmountWithdrawn,
	}
	report.Balanced = chain.Valid &&
		chain.Donations == c.AmountReceived &&
		chain.Withdrawn <= c.AmountWithdrawn

	if !report.Balanced {
		zap.L().Warn("campaign ledger out of balance",
			zap.String("campaign_id", c.ID),
			zap.Bool("chain_valid", chain.Valid),
			zap.Int64("ledger_donations", chain.Donations),
			zap.Int64("amount_received", c.AmountReceived),
		)
	}
	return report, nil
}

// AddReceived credits a confirmed donation inside tx.
func (s *Service) AddReceived(ctx context.Context, tx *gorm.DB, id string, amount int64) error {
	res := tx.WithContext(ctx).Model(&Campaign{}).
		Where("id = ?", id).
		Update("amount_received", gorm.Expr("amount_received + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("campaign not found", nil)
	}
	return nil
}

// Lock takes the campaign row lock inside tx. Ledger appends for the
// campaign must hold it.
func (s *Service) Lock(ctx context.Context, tx *gorm.DB, id string) error {
	c, err := s.campaign.WithTrx(tx).FindOne(ctx, &Campaign{ID: id}, option.WithLockingUpdate())
	if err != nil {
		return err
	}
	if c == nil {
		return errutil.NotFound("campaign not found", nil)
	}
	return nil
}

// ReserveWithdrawal moves amount into amount_withdrawn as long as the
// campaign stays covered by what it received.
func (s *Service) ReserveWithdrawal(ctx context.Context, tx *gorm.DB, id string, amount int64) error {
	res := tx.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND amount_withdrawn + ? <= amount_received", id, amount).
		Update("amount_withdrawn", gorm.Expr("amount_withdrawn + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// ReleaseWithdrawal undoes a reservation after a failed payout.
func (s *Service) ReleaseWithdrawal(ctx context.Context, tx *gorm.DB, id string, amount int64) error {
	return tx.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND amount_withdrawn >= ?", id, amount).
		Update("amount_withdrawn", gorm.Expr("amount_withdrawn - ?", amount)).Error
}
