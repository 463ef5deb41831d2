package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceName != "raahi-assistant" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.AudioCache.TTLHours != 24*7 {
		t.Fatalf("expected default cache ttl of 7 days, got %d hours", cfg.AudioCache.TTLHours)
	}
	if cfg.Engine.Mode != "mock" || cfg.TTS.Mode != "mock" {
		t.Fatalf("expected mock engine and tts by default, got %q/%q", cfg.Engine.Mode, cfg.TTS.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RAAHI_SERVER_PORT", "9999")
	t.Setenv("RAAHI_BUS_ENABLED", "true")
	t.Setenv("RAAHI_BUS_EMBEDDED", "false")
	t.Setenv("RAAHI_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("RAAHI_AUDIO_CACHE_BACKEND", "memory")
	t.Setenv("RAAHI_AUDIO_CACHE_TTL_HOURS", "12")
	t.Setenv("RAAHI_AUDIO_CACHE_WAIT_TIMEOUT_MS", "2500")
	t.Setenv("RAAHI_ENGINE_MODE", "remote")
	t.Setenv("RAAHI_ENGINE_ENDPOINT", "http://engine:9200")
	t.Setenv("RAAHI_TTS_MODE", "exec")
	t.Setenv("RAAHI_TTS_COMMAND", "synthctl --stdin")
	t.Setenv("RAAHI_SEARCH_RADIUS_KM", "25.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected port override, got %d", cfg.Server.Port)
	}
	if !cfg.Bus.Enabled || cfg.Bus.Embedded {
		t.Fatalf("expected bus enabled external, got %+v", cfg.Bus)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.AudioCache.Backend != "memory" || cfg.AudioCache.TTLHours != 12 || cfg.AudioCache.WaitTimeoutMS != 2500 {
		t.Fatalf("expected audio cache overrides, got %+v", cfg.AudioCache)
	}
	if cfg.Engine.Mode != "remote" || cfg.Engine.Endpoint != "http://engine:9200" {
		t.Fatalf("expected engine overrides, got %+v", cfg.Engine)
	}
	if cfg.TTS.Mode != "exec" || cfg.TTS.Command != "synthctl --stdin" {
		t.Fatalf("expected tts overrides, got %+v", cfg.TTS)
	}
	if cfg.Search.RadiusKM != 25.5 {
		t.Fatalf("expected radius override, got %v", cfg.Search.RadiusKM)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("RAAHI_ENGINE_MODE", "banana")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid engine mode")
	}
}
