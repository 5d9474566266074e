package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminSubject = "admin"
	adminIssuer  = "paysimples-checkout"
)

// AdminClaims are the claims of an admin bearer token.
type AdminClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AdminAuth issues and validates admin tokens. Admin access is disabled
// when no password hash or no JWT secret is configured.
type AdminAuth struct {
	passwordHash []byte
	jwtSecret    []byte
	ttl          time.Duration
	logger       *zap.Logger
}

// NewAdminAuth creates the admin authenticator. passwordHash is a bcrypt hash.
func NewAdminAuth(passwordHash, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		ttl:          ttl,
		logger:       logger,
	}
}

func (a *AdminAuth) enabled() bool {
	return len(a.passwordHash) > 0 && len(a.jwtSecret) > 0
}

// ============================================================
// IssueToken — POST /v1/admin/token
// ============================================================

func (a *AdminAuth) IssueToken(ctx context.Context, password string) (*domain.AdminToken, error) {
	_, span := tracer.Start(ctx, "AdminAuth.IssueToken")
	defer span.End()

	if !a.enabled() {
		return nil, &domain.ErrUnauthorized{Message: "Acesso administrativo desabilitado"}
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		a.logger.Warn("admin: invalid credentials")
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	now := time.Now()
	claims := AdminClaims{
		Scope: "charges:write",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			Issuer:    adminIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}

	a.logger.Info("admin: token issued", zap.String("jti", claims.ID))
	return &domain.AdminToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.ttl.Seconds()),
	}, nil
}

// ============================================================
// ValidateToken — used by middleware
// ============================================================

func (a *AdminAuth) ValidateToken(tokenString string) (*AdminClaims, error) {
	if !a.enabled() {
		return nil, &domain.ErrUnauthorized{Message: "Acesso administrativo desabilitado"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithIssuer(adminIssuer), jwt.WithSubject(adminSubject))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	return claims, nil
}
