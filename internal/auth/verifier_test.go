package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	hdr, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	body, _ := json.Marshal(claims)
	h := base64.RawURLEncoding.EncodeToString(hdr)
	p := base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(h + "." + p))
	return h + "." + p + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestDevModeToken(t *testing.T) {
	v := NewVerifier("dev", "")
	pr, err := v.Verify("ana:dispatcher")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pr.Subject != "ana" || pr.Role != "dispatcher" {
		t.Fatalf("unexpected principal: %+v", pr)
	}
	if _, err := v.Verify("justasubject"); err == nil {
		t.Fatal("expected error for malformed dev token")
	}
}

func TestHMACModeValidToken(t *testing.T) {
	v := NewVerifier("hmac", "shh")
	tok := signHS256(t, "shh", map[string]any{"sub": "u1", "role": "Admin"})
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pr.Subject != "u1" || pr.Role != "admin" {
		t.Fatalf("unexpected principal: %+v", pr)
	}
}

func TestHMACModeRejectsBadSignature(t *testing.T) {
	v := NewVerifier("hmac", "shh")
	tok := signHS256(t, "wrong-secret", map[string]any{"sub": "u1", "role": "admin"})
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("expected bad signature error")
	}
}

func TestHMACModeRejectsExpired(t *testing.T) {
	v := NewVerifier("hmac", "shh")
	tok := signHS256(t, "shh", map[string]any{
		"sub": "u1", "role": "admin", "exp": float64(time.Now().Add(-time.Minute).Unix()),
	})
	if _, err := v.Verify(tok); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestHMACModeDefaultsRole(t *testing.T) {
	v := NewVerifier("hmac", "shh")
	tok := signHS256(t, "shh", map[string]any{"sub": "u1"})
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pr.Role != "viewer" {
		t.Fatalf("expected viewer default, got %q", pr.Role)
	}
}

func TestMalformedJWT(t *testing.T) {
	v := NewVerifier("hmac", "shh")
	for _, tok := range []string{"", "a.b", "not a jwt at all", "x.y.z"} {
		if _, err := v.Verify(tok); err == nil {
			t.Fatalf("expected error for %q", tok)
		}
	}
}
