package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fundwave/pkg/config"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/featureflags"
	"fundwave/pkg/monime"
	"fundwave/services/campaign"
	"fundwave/services/ledger"
	"fundwave/services/testutil"
	"fundwave/services/testutil/fakes"
	"fundwave/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type refs struct{ n int }

func (r *refs) NextPaymentReference(ctx context.Context) (string, error) { return "", errors.New("unused") }

func (r *refs) NextWithdrawalReference(ctx context.Context) (string, error) {
	r.n++
	return fmt.Sprintf("WDR-261016-%03d", r.n), nil
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	campaigns *campaign.Service
	ledger    *ledger.Service
	gateway   *fakes.Gateway
	dispatch  *fakes.Dispatcher
	flags     featureflags.Static
	creator   *user.User
	campaign  *campaign.Campaign
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, &user.User{}, &campaign.Campaign{}, &ledger.LedgerEntry{}, &Withdrawal{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.Platform.Currency = "SLE"

	f := &fixture{db: db, gateway: fakes.NewGateway(), dispatch: &fakes.Dispatcher{}, flags: featureflags.Static{}}
	users := user.NewService(user.ServiceParams{DB: db, Node: node})
	f.ledger = ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	f.campaigns = campaign.NewService(campaign.ServiceParams{
		DB: db, Node: node, Config: cfg, Users: users, Ledger: f.ledger,
		Gateway: f.gateway, Dispatcher: f.dispatch,
	})
	f.svc = NewService(ServiceParams{
		DB: db, Node: node, Config: cfg, Campaigns: f.campaigns, Ledger: f.ledger,
		Gateway: f.gateway, Sequence: &refs{}, Flags: f.flags, Dispatcher: f.dispatch,
	})

	f.creator, err = users.Register(ctx, user.RegisterRequest{Name: "Creator", Email: "creator@example.sl", Password: "password-123"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&user.User{}).Where("id = ?", f.creator.ID).Updates(map[string]any{
		"is_kyc": true, "kyc_status": user.KYCVerified,
	}).Error)
	f.campaign, err = f.campaigns.Create(ctx, f.creator.ID, campaign.CreateRequest{
		Title: "Kabala Market Stalls", FundingGoal: 100000, CampaignEndDate: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, f.campaigns.AddReceived(ctx, db, f.campaign.ID, 10000))
	return f
}

func request(amount int64) Request {
	return Request{Amount: amount, Phone: "+23276123456", ProviderID: "m17"}
}

func requireStatus(t *testing.T, err error, status errutil.CoreStatus) {
	t.Helper()
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %v", err)
	require.Equal(t, status, be.Status())
}

func TestWithdrawalCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(4000))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, w.Status)
	require.NotEmpty(t, w.VendorPayoutID)
	require.Equal(t, "WDR-261016-001", w.Reference)

	require.Len(t, f.gateway.Payouts, 1)
	require.Equal(t, w.Reference, f.gateway.Payouts[0].IdempotencyKey)
	require.Equal(t, f.campaign.FinancialAccountID, f.gateway.Payouts[0].FinancialAccountID)

	c, err := f.campaigns.Get(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4000), c.AmountWithdrawn)

	chain, err := f.ledger.VerifyChain(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.True(t, chain.Valid)
	require.Equal(t, int64(4000), chain.Withdrawn)

	require.Len(t, f.dispatch.NotificationsFor(f.creator.ID), 1)

	list, _, err := f.svc.List(ctx, f.campaign.ID, f.creator.ID, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestWithdrawalLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(10001))
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	_, err = f.svc.Request(ctx, f.campaign.ID, "not-the-creator", request(100))
	requireStatus(t, err, errutil.StatusForbidden)

	_, _, err = f.svc.List(ctx, f.campaign.ID, "not-the-creator", pagination.Pagination{Limit: 10})
	requireStatus(t, err, errutil.StatusForbidden)

	_, err = f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(10000))
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(1))
	requireStatus(t, err, errutil.StatusUnprocessableEntity)

	f.flags[featureflags.WithdrawalsPaused] = true
	_, err = f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(1))
	requireStatus(t, err, errutil.StatusUnprocessableEntity)
	require.Len(t, f.gateway.Payouts, 1)
}

func TestWithdrawalFailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.PayoutErr = &monime.Error{StatusCode: 400, Reason: "invalid_destination", Message: "bad number"}
	_, err := f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(5000))
	requireStatus(t, err, errutil.StatusBadGateway)

	c, err := f.campaigns.Get(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Zero(t, c.AmountWithdrawn)

	list, _, err := f.svc.List(ctx, f.campaign.ID, f.creator.ID, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, StatusFailed, list[0].Status)
	require.NotEmpty(t, list[0].FailureReason)

	f.gateway.PayoutErr = nil
	f.gateway.PayoutStatus = monime.StatusFailed
	_, err = f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(5000))
	requireStatus(t, err, errutil.StatusBadGateway)

	c, err = f.campaigns.Get(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Zero(t, c.AmountWithdrawn)

	chain, err := f.ledger.VerifyChain(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Zero(t, chain.Entries)
}

func (f *fixture) donate(t *testing.T, ref string, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.campaigns.AddReceived(ctx, tx, f.campaign.ID, amount); err != nil {
			return err
		}
		_, err := f.ledger.Append(ctx, tx, ledger.AppendParams{
			CampaignID: f.campaign.ID, Type: ledger.EntryDonation, Amount: amount, ReferenceID: ref,
		})
		return err
	}))
}

func TestWithdrawalAfterDonationKeepsChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.donate(t, "pmc-1", 10000)

	// the payout lands on a head another append just claimed
	testutil.ContendLedgerSequence(t, f.db, 1)
	w, err := f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(15000))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, w.Status)

	c, err := f.campaigns.Get(ctx, f.campaign.ID)
	require.NoError(t, err)
	chain, err := f.ledger.VerifyChain(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.True(t, chain.Valid)
	require.Equal(t, 2, chain.Entries)
	require.Equal(t, int64(15000), chain.Withdrawn)
	require.Equal(t, c.AmountWithdrawn, chain.Withdrawn)
	// the fixture credits 10000 without a ledger entry
	require.Equal(t, c.AmountReceived-10000, chain.Donations)
}

func TestWithdrawalLedgerConflictKeepsPayoutID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.ContendLedgerSequence(t, f.db, ledger.MaxAppendAttempts)
	w, err := f.svc.Request(ctx, f.campaign.ID, f.creator.ID, request(4000))
	require.Nil(t, w)
	requireStatus(t, err, errutil.StatusConflict)
	require.Len(t, f.gateway.Payouts, 1)

	list, _, err := f.svc.List(ctx, f.campaign.ID, f.creator.ID, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, StatusPending, list[0].Status)
	require.NotEmpty(t, list[0].VendorPayoutID)

	c, err := f.campaigns.Get(ctx, f.campaign.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4000), c.AmountWithdrawn)
}
