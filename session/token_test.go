package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret []byte, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestTokenInspectorRejectsMalformed(t *testing.T) {
	i := NewTokenInspector(nil)
	for _, tok := range []string{"", "  ", "not.a.jwt", "..", strings.Repeat("x", 10) + ".." + "y"} {
		if err := i.Check(tok); err == nil {
			t.Errorf("token %q accepted", tok)
		}
	}
	if err := i.Check(" "); !errors.Is(err, errMalformedToken) {
		t.Fatalf("expected malformed token error, got %v", err)
	}
}

func TestTokenInspectorPassesOpaqueTokens(t *testing.T) {
	i := NewTokenInspector(nil)
	for _, tok := range []string{"3f9a1c0e-opaque-token", "a.b", "abc", strings.Repeat(".", 1000)} {
		if err := i.Check(tok); err != nil {
			t.Errorf("opaque token %q rejected: %v", tok, err)
		}
	}
}

func TestTokenInspectorExpiry(t *testing.T) {
	i := NewTokenInspector(nil)
	secret := []byte("any")

	fresh := signHS256(t, secret, "", jwt.MapClaims{"sub": "7", "exp": time.Now().Add(time.Hour).Unix()})
	if err := i.Check(fresh); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	noExp := signHS256(t, secret, "", jwt.MapClaims{"sub": "7"})
	if err := i.Check(noExp); err != nil {
		t.Fatalf("token without exp rejected: %v", err)
	}

	expired := signHS256(t, secret, "", jwt.MapClaims{"sub": "7", "exp": time.Now().Add(-time.Hour).Unix()})
	if err := i.Check(expired); !errors.Is(err, errTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}

	withinLeeway := signHS256(t, secret, "", jwt.MapClaims{"exp": time.Now().Add(-30 * time.Second).Unix()})
	if err := i.Check(withinLeeway); err != nil {
		t.Fatalf("token within leeway rejected: %v", err)
	}
}

func TestTokenInspectorVerifiesSignatureWithKeySet(t *testing.T) {
	secret := []byte("test-secret")
	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"k1": keyfunc.NewGivenHMAC(secret),
	})
	i := NewTokenInspector(jwks)
	claims := jwt.MapClaims{"sub": "7", "exp": time.Now().Add(time.Hour).Unix()}

	if err := i.Check(signHS256(t, secret, "k1", claims)); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if err := i.Check(signHS256(t, []byte("other"), "k1", claims)); err == nil {
		t.Fatal("token with wrong signature accepted")
	}
	if err := i.Check(signHS256(t, secret, "unknown", claims)); err == nil {
		t.Fatal("token with unknown kid accepted")
	}
}
