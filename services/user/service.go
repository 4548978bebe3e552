package user

import (
	"context"
	"errors"
	"strings"

	"fundwave/pkg/auth"
	"fundwave/pkg/errutil"
	"fundwave/pkg/repository"
	"fundwave/pkg/security"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	issuer auth.Issuer

	user repository.Repository[User]
}

type ServiceParams struct {
	fx.In

	DB     *gorm.DB
	Node   *snowflake.Node
	Issuer auth.Issuer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		issuer: p.Issuer,
		user:   repository.ProvideStore[User](p.DB),
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := normalizeEmail(req.Email)

	exist, err := s.user.FindOne(ctx, &User{Email: email})
	if err != nil {
		zap.L().Error("failed to query user", zap.Error(err))
		return nil, err
	}
	if exist != nil {
		return nil, errutil.Conflict("email already registered", nil)
	}

	return s.create(ctx, req.Name, email, req.Password, RoleUser)
}

func (s *Service) create(ctx context.Context, name, email, password string, role Role) (*User, error) {
	hash, err := security.HashArgon2(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           s.node.Generate().String(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		KYCStatus:    KYCUnverified,
	}

	if err := s.user.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("email already registered", err)
		}
		zap.L().Error("failed to create user", zap.Error(err))
		return nil, err
	}

	return u, nil
}

// Login verifies the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, *Session, error) {
	u, err := s.user.FindOne(ctx, &User{Email: normalizeEmail(req.Email)})
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, errutil.Unauthorized("invalid email or password", nil)
	}

	if err := security.VerifyArgon2(req.Password, u.PasswordHash); err != nil {
		return nil, nil, errutil.Unauthorized("invalid email or password", nil)
	}

	token, exp, err := s.issuer.Issue(auth.Identity{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   string(u.Role),
	})
	if err != nil {
		return nil, nil, err
	}

	return u, &Session{Token: token, ExpiresAt: exp}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.user.FindOne(ctx, &User{ID: id})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errutil.NotFound("user not found", nil)
	}
	return u, nil
}

// Find returns nil, nil for unknown ids.
func (s *Service) Find(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, nil
	}
	return s.user.FindOne(ctx, &User{ID: id})
}

// DisplayName resolves a donor name for an optional identity, falling back
// to "Anonymous".
func (s *Service) DisplayName(ctx context.Context, id string) string {
	u, err := s.Find(ctx, id)
	if err != nil || u == nil || u.Name == "" {
		return "Anonymous"
	}
	return u.Name
}

// AddContribution increments the donor's running total inside tx.
func (s *Service) AddContribution(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	res := tx.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		Update("amount_contributed", gorm.Expr("amount_contributed + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		zap.L().Warn("contribution for unknown user", zap.String("user_id", userID))
	}
	return nil
}

// EnsureAdmin creates the platform admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*User, error) {
	email = normalizeEmail(email)
	exist, err := s.user.FindOne(ctx, &User{Email: email})
	if err != nil {
		return nil, err
	}
	if exist != nil {
		if exist.Role != RoleAdmin {
			if err := s.user.Update(ctx, exist.ID, map[string]any{"role": RoleAdmin}); err != nil {
				return nil, err
			}
			exist.Role = RoleAdmin
		}
		return exist, nil
	}

	return s.create(ctx, name, email, password, RoleAdmin)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
