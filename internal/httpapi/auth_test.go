package httpapi

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"billdesk/terminal/internal/domain"
)

func TestAuthManagerHashesPlainOperatorPasswords(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", []Operator{
		{Username: "Admin", Password: "admin123", Role: domain.RoleAdmin},
	})

	cred := manager.users["admin"]
	if !strings.HasPrefix(cred.password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", cred.password)
	}

	resp, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAuthManagerAcceptsPreHashedPasswords(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("till-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	manager := NewAuthManager("test-secret", time.Hour, "", []Operator{
		{Username: "till1", Password: string(hash), Role: "unknown-role"},
	})

	resp, err := manager.Login(domain.LoginRequest{Username: "till1", Password: "till-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleCashier {
		t.Fatalf("unknown roles should fall back to cashier, got %s", resp.Role)
	}
	if _, err := manager.Login(domain.LoginRequest{Username: "till1", Password: "wrong"}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	ops := []Operator{{Username: "admin", Password: "admin123", Role: domain.RoleAdmin}}
	issuer := NewAuthManager("secret-a", time.Hour, "", ops)
	verifier := NewAuthManager("secret-b", time.Hour, "", ops)

	resp, err := issuer.Login(domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "654321", nil)

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}
	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}
	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}

func TestManagerPINDisabledWhenUnset(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "", nil)
	if manager.ValidateManagerPIN("") || manager.ValidateManagerPIN("0000") {
		t.Fatalf("expected every PIN to fail when none is configured")
	}
}
