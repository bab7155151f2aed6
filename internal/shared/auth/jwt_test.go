package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := SignJWT(Claims{Sub: "user-1", Role: "Admin"})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	claims, err := VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT: %v", err)
	}
	if claims.Sub != "user-1" {
		t.Fatalf("unexpected sub %q", claims.Sub)
	}
	if !claims.IsAdmin() {
		t.Fatalf("expected admin role to survive round trip")
	}
	if claims.Exp-claims.Iat != int64(defaultTTL/time.Second) {
		t.Fatalf("expected default ttl, got %d", claims.Exp-claims.Iat)
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := SignJWT(Claims{Sub: "user-1"})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	parts := strings.Split(token, ".")

	cases := map[string]string{
		"bad signature": parts[0] + "." + parts[1] + ".AAAA",
		"two segments":  parts[0] + "." + parts[1],
		"empty":         "",
		"other secret": func() string {
			t.Setenv("JWT_SECRET", "other")
			tok, _ := SignJWT(Claims{Sub: "user-1"})
			t.Setenv("JWT_SECRET", "test-secret")
			return tok
		}(),
	}
	for name, tok := range cases {
		if _, err := VerifyJWT(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifyRejectsAlgNone(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := SignJWT(Claims{Sub: "user-1"})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	parts := strings.Split(token, ".")
	none := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	forged := none + "." + parts[1] + "." + signature(none+"."+parts[1], []byte("test-secret"))
	if _, err := VerifyJWT(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}

func TestVerifyTimeWindow(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	now := time.Now().UTC()

	expired, _ := SignJWT(Claims{Sub: "user-1", Exp: now.Add(-time.Minute).Unix()})
	if _, err := verifyAt(expired, now); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	withinLeeway, _ := SignJWT(Claims{Sub: "user-1", Exp: now.Add(-10 * time.Second).Unix()})
	if _, err := verifyAt(withinLeeway, now); err != nil {
		t.Fatalf("expected token within leeway to pass, got %v", err)
	}

	future, _ := SignJWT(Claims{Sub: "user-1", Nbf: now.Add(time.Hour).Unix()})
	if _, err := verifyAt(future, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected not-yet-valid token to fail, got %v", err)
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := SignJWT(Claims{Sub: "user-1"}); err == nil {
		t.Fatalf("expected error without secret in production")
	}
}
