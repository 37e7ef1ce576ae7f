package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KOLMODIN_SERVER__ADMIN_API_KEY", "admin-key")
	t.Setenv("KOLMODIN_TWITCH__CLIENT_ID", "client-id")
	t.Setenv("KOLMODIN_TWITCH__CLIENT_SECRET", "client-secret")
}

func TestLoadMissingRequiredFields(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error when required configuration is absent")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Enabled {
		t.Errorf("Cache.Enabled = true, want false by default")
	}
	if !cfg.Games.EnabledTypes["helloworld"] || !cfg.Games.EnabledTypes["echo"] {
		t.Errorf("EnabledTypes = %v, want both default game types enabled", cfg.Games.EnabledTypes)
	}
}

func TestLoadParsesListsAndInts(t *testing.T) {
	setRequired(t)
	t.Setenv("KOLMODIN_SERVER__CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KOLMODIN_SERVER__RATE_LIMIT_PER_MINUTE", "45")
	t.Setenv("KOLMODIN_GAMES__ENABLED_TYPES", "HelloWorld, Echo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://a.example" || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v, want the two trimmed origins", cfg.Server.CORSOrigins)
	}
	if cfg.Server.RateLimitPerMin != 45 {
		t.Errorf("RateLimitPerMin = %d, want 45", cfg.Server.RateLimitPerMin)
	}
	if !cfg.Games.EnabledTypes["helloworld"] || !cfg.Games.EnabledTypes["echo"] {
		t.Errorf("EnabledTypes = %v, want lowercased helloworld and echo", cfg.Games.EnabledTypes)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("KOLMODIN_SERVER__RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.RateLimitPerMin != 30 {
		t.Errorf("RateLimitPerMin = %d, want the default 30 when the env value is unparseable", cfg.Server.RateLimitPerMin)
	}
}
