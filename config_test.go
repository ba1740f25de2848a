package authguard

import (
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithBaseURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://api.example.com"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.RateLimit.MaxAttempts != 5 || cfg.RateLimit.Window != 15*time.Minute {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.MFA.SessionTTL != 5*time.Minute {
		t.Fatalf("unexpected mfa ttl: %v", cfg.MFA.SessionTTL)
	}
	if cfg.Transport.Timeout != 10*time.Second {
		t.Fatalf("unexpected transport timeout: %v", cfg.Transport.Timeout)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }},
		{"non http base url", func(c *Config) { c.BaseURL = "ftp://example.com" }},
		{"zero attempts", func(c *Config) { c.RateLimit.MaxAttempts = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero mfa ttl", func(c *Config) { c.MFA.SessionTTL = 0 }},
		{"negative grace", func(c *Config) { c.MFA.CompletionGrace = -time.Second }},
		{"zero refresh timeout", func(c *Config) { c.Refresh.Timeout = 0 }},
		{"relative path", func(c *Config) { c.Transport.LoginPath = "auth/login" }},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.BaseURL = "https://api.example.com"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuilderRequiresBaseURL(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithBaseURL("https://api.example.com")

	client, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer client.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second build")
	}
}

func TestBuilderRegistersDefaultVerifiers(t *testing.T) {
	client, err := New().WithBaseURL("https://api.example.com").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer client.Close()

	// Default demo verifiers accept any six digit code per method.
	for _, method := range []string{"totp", "sms", "email"} {
		sessionID, err := client.mfa.Start("user-1", "user-1@example.com", method)
		if err != nil {
			t.Fatalf("start %s session: %v", method, err)
		}
		if !client.mfa.Verify(sessionID, "123456") {
			t.Fatalf("default %s verifier rejected a six digit code", method)
		}
	}
}
