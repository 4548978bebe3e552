package engagement

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundwave/pkg/config"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/services/campaign"
	"fundwave/services/ledger"
	"fundwave/services/notification"
	"fundwave/services/testutil"
	"fundwave/services/testutil/fakes"
	"fundwave/services/user"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type staticDonors struct {
	ids []string
	err error
}

func (s staticDonors) Donors(ctx context.Context, campaignID string) ([]string, error) {
	return append([]string(nil), s.ids...), s.err
}

type fixture struct {
	svc      *Service
	users    *user.Service
	dispatch *fakes.Dispatcher
	creator  *user.User
	campaign *campaign.Campaign
}

func newFixture(t *testing.T, donors DonorSource) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, &user.User{}, &campaign.Campaign{}, &ledger.LedgerEntry{}, &Comment{}, &Update{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()

	f := &fixture{dispatch: &fakes.Dispatcher{}}
	f.users = user.NewService(user.ServiceParams{DB: db, Node: node})
	campaigns := campaign.NewService(campaign.ServiceParams{
		DB: db, Node: node, Config: &config.Config{}, Users: f.users,
		Ledger:  ledger.NewService(ledger.ServiceParams{DB: db, Node: node}),
		Gateway: fakes.NewGateway(), Dispatcher: f.dispatch,
	})
	f.svc = NewService(ServiceParams{DB: db, Node: node, Campaigns: campaigns, Users: f.users, Donors: donors, Dispatcher: f.dispatch})

	f.creator, err = f.users.Register(ctx, user.RegisterRequest{Name: "Creator", Email: "creator@example.sl", Password: "password-123"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&user.User{}).Where("id = ?", f.creator.ID).Updates(map[string]any{
		"is_kyc": true, "kyc_status": user.KYCVerified,
	}).Error)

	f.campaign, err = campaigns.Create(ctx, f.creator.ID, campaign.CreateRequest{
		Title: "Lungi Ferry Repairs", FundingGoal: 1000, CampaignEndDate: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return f
}

func TestCommentNotifiesCreator(t *testing.T) {
	f := newFixture(t, staticDonors{})
	ctx := context.Background()

	fan, err := f.users.Register(ctx, user.RegisterRequest{Name: "Hawa", Email: "hawa@example.sl", Password: "password-123"})
	require.NoError(t, err)

	c, err := f.svc.AddComment(ctx, f.campaign.ID, fan.ID, CommentRequest{Body: "  Great cause!  "})
	require.NoError(t, err)
	require.Equal(t, "Great cause!", c.Body)
	require.Equal(t, "Hawa", c.AuthorName)

	sent := f.dispatch.NotificationsFor(f.creator.ID)
	require.Len(t, sent, 1)
	require.Equal(t, notification.TypeComment, sent[0].Type)

	_, err = f.svc.AddComment(ctx, f.campaign.ID, f.creator.ID, CommentRequest{Body: "Thank you all"})
	require.NoError(t, err)
	require.Len(t, f.dispatch.NotificationsFor(f.creator.ID), 1)

	comments, info, err := f.svc.Comments(ctx, f.campaign.ID, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "Thank you all", comments[0].Body)
	require.False(t, info.HasMore)

	_, err = f.svc.AddComment(ctx, "missing", fan.ID, CommentRequest{Body: "hello"})
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestPostUpdateFansOutToDonors(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.donors = staticDonors{ids: []string{"d1", "d2", f.creator.ID}}
	ctx := context.Background()

	u, err := f.svc.PostUpdate(ctx, f.campaign.ID, f.creator.ID, UpdateRequest{Title: "Engine ordered", Body: "Parts arrive next week."})
	require.NoError(t, err)
	require.Equal(t, "Engine ordered", u.Title)

	require.Len(t, f.dispatch.NotificationsFor("d1"), 1)
	require.Len(t, f.dispatch.NotificationsFor("d2"), 1)
	require.Empty(t, f.dispatch.NotificationsFor(f.creator.ID))
	require.Equal(t, notification.TypeUpdate, f.dispatch.NotificationsFor("d1")[0].Type)

	updates, _, err := f.svc.Updates(ctx, f.campaign.ID, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, updates, 1)
}

func TestPostUpdateCreatorOnly(t *testing.T) {
	f := newFixture(t, staticDonors{})

	_, err := f.svc.PostUpdate(context.Background(), f.campaign.ID, "someone-else", UpdateRequest{Title: "x", Body: "y"})
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusForbidden, be.Status())
}

func TestPostUpdateSurvivesDonorLookupFailure(t *testing.T) {
	f := newFixture(t, staticDonors{err: errors.New("db gone")})

	u, err := f.svc.PostUpdate(context.Background(), f.campaign.ID, f.creator.ID, UpdateRequest{Title: "x", Body: "y"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Empty(t, f.dispatch.Notifications)
}
