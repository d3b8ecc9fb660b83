package services

import (
	"testing"

	"pso-monitor-service/config"

	"github.com/golang-jwt/jwt/v4"
)

func newAuthFixture() InterfaceAuthService {
	cfg := &config.Config{JWTSecretKey: "test-secret"}
	return NewAuthService(cfg, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	svc := newAuthFixture()
	tokenString, err := svc.GenerateToken(42, "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	token, err := svc.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !token.Valid {
		t.Fatal("token not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", token.Claims)
	}
	if claims["iss"] != "pso-monitor-service" {
		t.Errorf("issuer = %v", claims["iss"])
	}
	if claims["user_id"] != float64(42) {
		t.Errorf("user_id = %v", claims["user_id"])
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	other := NewAuthService(&config.Config{JWTSecretKey: "other-secret"}, nil)
	tokenString, err := other.GenerateToken(1, "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := newAuthFixture().ValidateToken(tokenString); err == nil {
		t.Error("token signed with another secret should not validate")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := newAuthFixture().ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token should not validate")
	}
}
