package impl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"anichat/internal/domain"
	"anichat/internal/dto"
	"anichat/internal/observability/metrics"
	"anichat/internal/observability/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenConfig struct {
	Issuer     string        // e.g. "anichat"
	Audience   string        // e.g. "anichat-web"
	TTL        time.Duration // 7 * 24h
	SigningKey []byte        // HS256 secret
}

type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenServiceImpl issues stateless HS256 session tokens. Nothing is stored
// server side, so an issued token stays valid until it expires.
type TokenServiceImpl struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenServiceHS256(cfg TokenConfig) (*TokenServiceImpl, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, ErrSigningKeySize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &TokenServiceImpl{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (t *TokenServiceImpl) Issue(ctx context.Context, user *domain.User) (*dto.TokenResponse, error) {
	result := "success"
	defer func() {
		metrics.TokensIssuedTotal.WithLabelValues(result).Inc()
	}()

	now := t.now()
	exp := now.Add(t.cfg.TTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("issued session token", append([]any{"user_id", user.ID}, middleware.LogAttrs(ctx)...)...)

	return &dto.TokenResponse{
		AccessToken: signed,
		ExpiresIn:   int64(t.cfg.TTL.Seconds()),
		ExpiresAt:   exp,
	}, nil
}

// Verify returns the user id asserted by token. Every failure mode collapses
// into domain.ErrUnauthenticated.
func (t *TokenServiceImpl) Verify(ctx context.Context, token string) (domain.UserID, error) {
	if token == "" {
		return uuid.Nil, domain.ErrUnauthenticated
	}
	claims := &SessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithAudience(t.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	tok, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	})
	if err != nil || !tok.Valid {
		slog.Debug("session token rejected", append([]any{"error", err}, middleware.LogAttrs(ctx)...)...)
		return uuid.Nil, domain.ErrUnauthenticated
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Join(domain.ErrUnauthenticated, err)
	}
	return id, nil
}
