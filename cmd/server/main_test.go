package main

import (
	"testing"

	"pharmaledger/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", CompanyStateCode: "27"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsBadStateCode(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", CompanyStateCode: "MH"})
	if err == nil {
		t.Fatalf("expected non-numeric state code to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", CompanyStateCode: "27"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
