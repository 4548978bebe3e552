package auth

import (
	"errors"
	"fmt"
	"time"

	"fundwave/pkg/config"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(
		NewJWT,
		func(j *JWT) Authenticator { return j },
		func(j *JWT) Issuer { return j },
	),
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
)

// Identity is the caller resolved from a session credential.
type Identity struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

type Authenticator interface {
	Authenticate(token string) (*Identity, error)
}

type Issuer interface {
	Issue(id Identity) (string, time.Time, error)
}

// JWT signs HS256 session tokens.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	signer jose.Signer
	now    func() time.Time
}

func NewJWT(cfg *config.Config) (*JWT, error) {
	secret := []byte(cfg.Session.Secret)
	if len(secret) < 32 {
		return nil, fmt.Errorf("auth: session secret must be at least 32 bytes")
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, err
	}

	ttl := cfg.Session.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &JWT{
		secret: secret,
		issuer: cfg.AppName,
		ttl:    ttl,
		signer: signer,
		now:    time.Now,
	}, nil
}

type claims struct {
	jwt.Claims
	Identity
}

func (j *JWT) Issue(id Identity) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.ttl)

	c := claims{
		Claims: jwt.Claims{
			Issuer:   j.issuer,
			Subject:  id.UserID,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(exp),
		},
		Identity: id,
	}

	token, err := jwt.Signed(j.signer).Claims(c).Serialize()
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (j *JWT) Authenticate(token string) (*Identity, error) {
	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, ErrInvalidToken
	}

	var c claims
	if err := parsed.Claims(j.secret, &c); err != nil {
		return nil, ErrInvalidToken
	}

	if err := c.Claims.ValidateWithLeeway(jwt.Expected{
		Issuer: j.issuer,
		Time:   j.now(),
	}, 0); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if c.Subject == "" {
		return nil, ErrInvalidToken
	}

	id := c.Identity
	id.UserID = c.Subject
	return &id, nil
}
