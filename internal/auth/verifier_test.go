package auth

import (
	"errors"
	"testing"
	"time"
)

func TestDevMode(t *testing.T) {
	v := NewVerifier("dev", "")
	p, err := v.Verify("u123:driver")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "u123" || p.Role != "driver" {
		t.Fatalf("principal: %+v", p)
	}
	if _, err := v.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: %v", err)
	}
}

func TestHMACSignVerify(t *testing.T) {
	v := NewVerifier("hmac", "test-secret")
	tok, err := v.Sign(Principal{UserID: "u9", Role: "admin"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "u9" || !p.IsAdmin() {
		t.Fatalf("principal: %+v", p)
	}

	// wrong secret fails
	other := NewVerifier("hmac", "other-secret")
	if _, err := other.Verify(tok); err == nil {
		t.Fatal("token verified with wrong secret")
	}

	// expired token fails
	expired, err := v.Sign(Principal{UserID: "u9", Role: "admin"}, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(expired); err == nil {
		t.Fatal("expired token verified")
	}
}
