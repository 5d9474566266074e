package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAdminAuth(t *testing.T, password, secret string, ttl time.Duration) *service.AdminAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return service.NewAdminAuth(string(hash), secret, ttl, zap.NewNop())
}

func TestAdminAuth_IssueAndValidate(t *testing.T) {
	auth := newAdminAuth(t, "s3cret", "jwt-secret", time.Hour)

	tok, err := auth.IssueToken(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.TokenType != "Bearer" || tok.ExpiresIn != 3600 {
		t.Errorf("unexpected token: %+v", tok)
	}

	claims, err := auth.ValidateToken(tok.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "admin" || claims.ID == "" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAdminAuth_WrongPassword(t *testing.T) {
	auth := newAdminAuth(t, "s3cret", "jwt-secret", time.Hour)

	_, err := auth.IssueToken(context.Background(), "nope")
	var ua *domain.ErrUnauthorized
	if !errors.As(err, &ua) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAdminAuth_RejectsForeignTokens(t *testing.T) {
	auth := newAdminAuth(t, "s3cret", "jwt-secret", time.Hour)
	other := newAdminAuth(t, "s3cret", "other-secret", time.Hour)

	tok, err := other.IssueToken(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := auth.ValidateToken(tok.AccessToken); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, service.AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "paysimples-checkout",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, _ := expired.SignedString([]byte("jwt-secret"))
	if _, err := auth.ValidateToken(signed); err == nil {
		t.Error("expected expired token to be rejected")
	}

	if _, err := auth.ValidateToken("garbage"); err == nil {
		t.Error("expected garbage to be rejected")
	}
}

func TestAdminAuth_DisabledWithoutConfig(t *testing.T) {
	auth := service.NewAdminAuth("", "", time.Hour, zap.NewNop())

	var ua *domain.ErrUnauthorized
	if _, err := auth.IssueToken(context.Background(), ""); !errors.As(err, &ua) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
