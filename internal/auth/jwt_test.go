package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestManager_IssueAndVerify(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 750_000_000, time.UTC)
	m := NewManager("secret", time.Hour).WithClock(func() time.Time { return base })

	raw, err := m.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := m.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("got subject %q, want user-1", claims.UserID())
	}
	if claims.IssuedAtUnix() != base.Unix() {
		t.Fatalf("got iat %d, want %d", claims.IssuedAtUnix(), base.Unix())
	}
	if !claims.ExpiresAt.Time.Equal(base.Truncate(time.Second).Add(time.Hour)) {
		t.Fatalf("unexpected exp %v", claims.ExpiresAt.Time)
	}
}

func TestManager_VerifyExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	raw, err := NewManager("secret", time.Hour).WithClock(func() time.Time { return issued }).Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = NewManager("secret", time.Hour).Verify(raw)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestManager_VerifyWrongSecret(t *testing.T) {
	raw, err := NewManager("secret", time.Hour).Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = NewManager("other", time.Hour).Verify(raw)
	if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Fatalf("expected ErrTokenSignatureInvalid, got %v", err)
	}
}

func TestManager_VerifyRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewManager("secret", time.Hour).Verify(raw); err == nil {
		t.Fatalf("expected unsigned token to be rejected")
	}
}

func TestManager_VerifyGarbage(t *testing.T) {
	_, err := NewManager("secret", time.Hour).Verify("not.a.token")
	if !errors.Is(err, jwt.ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}
