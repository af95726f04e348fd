package main

import (
	"testing"

	"billdesk/terminal/internal/config"
	"billdesk/terminal/internal/domain"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func strongConfig() config.Config {
	return config.Config{
		AuthSecret: strongSecret,
		ManagerPIN: "739154",
		Operators:  map[string]string{"till1": "$2a$10$abcdefghijklmnopqrstuv"},
	}
}

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	if err := validateSecurityConfig(strongConfig()); err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigRejectsPlainOperatorPassword(t *testing.T) {
	cfg := strongConfig()
	cfg.Operators["till2"] = "password"
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected plain-text operator password to be rejected")
	}
}

func TestValidatePINStrength(t *testing.T) {
	for _, pin := range []string{"123456", "987654", "444444", "112233"} {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected %s to be rejected", pin)
		}
	}
	if err := validatePINStrength("739154"); err != nil {
		t.Fatalf("expected 739154 to pass, got %v", err)
	}
}

func TestOperatorsAssignsAdminRole(t *testing.T) {
	cfg := strongConfig()
	cfg.Operators["owner"] = "$2a$10$zyxwvutsrqponmlkjihgfe"
	cfg.Admins = []string{"owner"}

	ops := operators(cfg)
	if len(ops) != 2 {
		t.Fatalf("expected 2 operators, got %d", len(ops))
	}
	if ops[0].Username != "owner" || ops[0].Role != domain.RoleAdmin {
		t.Fatalf("expected owner to be admin, got %+v", ops[0])
	}
	if ops[1].Role != domain.RoleCashier {
		t.Fatalf("expected till1 to be cashier, got %+v", ops[1])
	}
}
