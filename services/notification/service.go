package notification

import (
	"context"

	"fundwave/pkg/db/option"
	"fundwave/pkg/db/pagination"
	"fundwave/pkg/errutil"
	"fundwave/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	notification repository.Repository[Notification]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:           p.DB,
		node:         p.Node,
		notification: repository.ProvideStore[Notification](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, p NotifyPayload) (*Notification, error) {
	n := &Notification{
		ID:         s.node.Generate().String(),
		UserID:     p.UserID,
		CampaignID: p.CampaignID,
		Type:       p.Type,
		Message:    p.Message,
	}

	if err := s.notification.Create(ctx, n); err != nil {
		zap.L().Error("failed to create notification", zap.String("user_id", p.UserID), zap.Error(err))
		return nil, err
	}
	return n, nil
}

type ListResult struct {
	Data     []*Notification      `json:"data"`
	PageInfo *pagination.PageInfo `json:"pageInfo"`
	Unread   int64                `json:"unread"`
}

// List returns the user's notifications newest first.
func (s *Service) List(ctx context.Context, userID string, page pagination.Pagination) (*ListResult, error) {
	rows, err := s.notification.Find(ctx, &Notification{UserID: userID}, option.ApplyPagination(page))
	if err != nil {
		return nil, err
	}
	rows, info := pagination.Page(rows, page.Limit, func(n *Notification) pagination.Cursor {
		return pagination.Cursor{ID: n.ID}
	})

	var unread int64
	if err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, err
	}

	return &ListResult{Data: rows, PageInfo: info, Unread: unread}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	n, err := s.notification.FindOne(ctx, &Notification{ID: id})
	if err != nil {
		return err
	}
	if n == nil || n.UserID != userID {
		return errutil.NotFound("notification not found", nil)
	}
	if n.Read {
		return nil
	}
	return s.notification.Update(ctx, id, map[string]any{"is_read": true})
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
