package config

import "testing"

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/parcener",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.JoinRateMax != 20 {
		t.Fatalf("expected default join rate max, got %d", cfg.JoinRateMax)
	}
	if cfg.ExtractProvider != "mock" {
		t.Fatalf("expected mock extraction provider by default, got %q", cfg.ExtractProvider)
	}
	if cfg.SettlementCacheTTL.Seconds() != 5 {
		t.Fatalf("unexpected settlement cache ttl %s", cfg.SettlementCacheTTL)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	if _, err := LoadForTests(env); err == nil {
		t.Fatal("expected error when DATABASE_URL missing")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	env := baseEnv()
	env["MEMBER_TOKEN_TTL"] = "30m"
	env["CORS_ALLOWED_ORIGINS"] = "https://app.parcener.dev, https://staging.parcener.dev"
	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MemberTokenTTL.Minutes() != 30 {
		t.Fatalf("unexpected token ttl %s", cfg.MemberTokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}
