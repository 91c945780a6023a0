package config

import (
	"strings"
	"testing"
	"time"
)

// setValidEnv sets the minimum environment for Load to succeed.
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_abc")
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port default = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode default = %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath default = %q", cfg.APIBasePath)
	}
	if cfg.DBPath != "payments.db" {
		t.Fatalf("DBPath default = %q", cfg.DBPath)
	}
	if cfg.Currency != "KES" {
		t.Fatalf("Currency default = %q", cfg.Currency)
	}
	if cfg.Paystack.BaseURL != "https://api.paystack.co" {
		t.Fatalf("Paystack.BaseURL default = %q", cfg.Paystack.BaseURL)
	}
	if cfg.Paystack.Timeout != 15*time.Second {
		t.Fatalf("Paystack.Timeout default = %v", cfg.Paystack.Timeout)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("IdempotencyTTL default = %v", cfg.IdempotencyTTL)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate defaults = %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.OTEL.Enabled {
		t.Fatalf("OTEL should be disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GIN_MODE", "DEBUG")
	t.Setenv("LOG_LEVEL", "warning") // normalized to warn
	t.Setenv("PAYMENT_CURRENCY", "ngn")
	t.Setenv("PAYSTACK_BASE_URL", "http://localhost:9999")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("CALLBACK_BASE_URL", "https://app.example.com/payment/callback")
	t.Setenv("API_BASE_PATH", "v2/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.com, https://b.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "debug" {
		t.Fatalf("GinMode = %q", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Currency != "NGN" {
		t.Fatalf("Currency = %q", cfg.Currency)
	}
	if cfg.Paystack.BaseURL != "http://localhost:9999" || cfg.Paystack.Timeout != 3*time.Second {
		t.Fatalf("Paystack = %+v", cfg.Paystack)
	}
	if cfg.CallbackURL != "https://app.example.com/payment/callback" {
		t.Fatalf("CallbackURL = %q", cfg.CallbackURL)
	}
	if cfg.APIBasePath != "/v2" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.com" {
		t.Fatalf("CORS = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"PAYSTACK_SECRET_KEY": " "}, "PAYSTACK_SECRET_KEY"},
		{"bad currency", map[string]string{"PAYMENT_CURRENCY": "NOPE"}, "PAYMENT_CURRENCY"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad gateway timeout", map[string]string{"GATEWAY_TIMEOUT": "-1s"}, "GATEWAY_TIMEOUT"},
		{"bad rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"bad sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
		{"bad idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "-1h"}, "IDEMPOTENCY_TTL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PAYMENT_CURRENCY", "XXXX")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	_ = MustLoad()
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"  ":      "/",
		"v1":      "/v1",
		"/v1/":    "/v1",
		"/v1///":  "/v1",
		"/api/v1": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
