package engagement

import (
	"context"
	"fmt"
	"strings"

	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/repository"
	"fundwave/services/campaign"
	"fundwave/services/notification"
	"fundwave/services/user"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DonorSource lists the registered donors of a campaign.
type DonorSource interface {
	Donors(ctx context.Context, campaignID string) ([]string, error)
}

type Service struct {
	node      *snowflake.Node
	campaigns *campaign.Service
	users     *user.Service
	donors    DonorSource
	dispatch  notification.Dispatcher

	comment repository.Repository[Comment]
	update  repository.Repository[Update]
}

type ServiceParams struct {
	fx.In

	DB         *gorm.DB
	Node       *snowflake.Node
	Campaigns  *campaign.Service
	Users      *user.Service
	Donors     DonorSource
	Dispatcher notification.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:      p.Node,
		campaigns: p.Campaigns,
		users:     p.Users,
		donors:    p.Donors,
		dispatch:  p.Dispatcher,
		comment:   repository.ProvideStore[Comment](p.DB),
		update:    repository.ProvideStore[Update](p.DB),
	}
}

// AddComment stores the comment and tells the creator, unless they wrote it.
func (s *Service) AddComment(ctx context.Context, campaignID, userID string, req CommentRequest) (*Comment, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, errutil.ValidationFailed("invalid input body", nil, errutil.WithDetails(errutil.Detail{Field: "body", Message: "is required"}))
	}

	author := s.users.DisplayName(ctx, userID)
	comment := &Comment{
		ID:         s.node.Generate().String(),
		CampaignID: c.ID,
		UserID:     userID,
		AuthorName: author,
		Body:       body,
	}
	if err := s.comment.Create(ctx, comment); err != nil {
		zap.L().Error("failed to create comment", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, err
	}

	if userID != c.CreatorID {
		if err := s.dispatch.Notify(ctx, notification.NotifyPayload{
			UserID:     c.CreatorID,
			CampaignID: c.ID,
			Type:       notification.TypeComment,
			Message:    fmt.Sprintf("%s commented on %q.", author, c.Title),
		}); err != nil {
			zap.L().Warn("comment notification not queued", zap.String("comment_id", comment.ID), zap.Error(err))
		}
	}

	return comment, nil
}

func (s *Service) Comments(ctx context.Context, campaignID string, page pagination.Pagination) ([]*Comment, *pagination.PageInfo, error) {
	if _, err := s.campaigns.Get(ctx, campaignID); err != nil {
		return nil, nil, err
	}
	comments, err := s.comment.Find(ctx, &Comment{CampaignID: campaignID}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, err
	}
	comments, info := pagination.Page(comments, page.Limit, func(c *Comment) pagination.Cursor {
		return pagination.Cursor{ID: c.ID}
	})
	return comments, info, nil
}

// PostUpdate lets the creator publish news, fanned out to every registered
// donor.
func (s *Service) PostUpdate(ctx context.Context, campaignID, userID string, req UpdateRequest) (*Update, error) {
	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != userID {
		return nil, errutil.Forbidden("only the campaign creator can post updates", nil)
	}

	u := &Update{
		ID:         s.node.Generate().String(),
		CampaignID: c.ID,
		UserID:     userID,
		Title:      strings.TrimSpace(req.Title),
		Body:       strings.TrimSpace(req.Body),
	}
	if err := s.update.Create(ctx, u); err != nil {
		zap.L().Error("failed to create update", zap.String("campaign_id", c.ID), zap.Error(err))
		return nil, err
	}

	donors, err := s.donors.Donors(ctx, c.ID)
	if err != nil {
		zap.L().Warn("failed to load donors for update", zap.String("campaign_id", c.ID), zap.Error(err))
		return u, nil
	}

	recipients := donors[:0]
	for _, id := range donors {
		if id != c.CreatorID {
			recipients = append(recipients, id)
		}
	}
	if err := s.dispatch.NotifyMany(ctx, recipients, notification.NotifyPayload{
		CampaignID: c.ID,
		Type:       notification.TypeUpdate,
		Message:    fmt.Sprintf("New update on %q: %s", c.Title, u.Title),
	}); err != nil {
		zap.L().Warn("update notifications not queued", zap.String("update_id", u.ID), zap.Error(err))
	}

	return u, nil
}

func (s *Service) Updates(ctx context.Context, campaignID string, page pagination.Pagination) ([]*Update, *pagination.PageInfo, error) {
	if _, err := s.campaigns.Get(ctx, campaignID); err != nil {
		return nil, nil, err
	}
	updates, err := s.update.Find(ctx, &Update{CampaignID: campaignID}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, err
	}
	updates, info := pagination.Page(updates, page.Limit, func(u *Update) pagination.Cursor {
		return pagination.Cursor{ID: u.ID}
	})
	return updates, info, nil
}
