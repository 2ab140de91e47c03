package infra

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TEXT_CHAIN", "")
	t.Setenv("PER_ATTEMPT_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.TextChain) != 2 {
		t.Fatalf("TextChain len = %d, want 2", len(cfg.TextChain))
	}
	if cfg.TextChain[0].Provider != "openai" || cfg.TextChain[0].Model != "gpt-4o-mini" {
		t.Fatalf("TextChain[0] = %v", cfg.TextChain[0])
	}
	if cfg.PerAttemptTimeout.Seconds() != 90 {
		t.Fatalf("PerAttemptTimeout = %v", cfg.PerAttemptTimeout)
	}
}

func TestLoadConfigParsesChainOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("VIDEO_CHAIN", "dashscope:wan2.2-t2v-plus, gemini:veo-3.0-generate-001")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.VideoChain) != 2 {
		t.Fatalf("VideoChain len = %d, want 2", len(cfg.VideoChain))
	}
	if cfg.VideoChain[0].Provider != "dashscope" {
		t.Fatalf("VideoChain[0].Provider = %q", cfg.VideoChain[0].Provider)
	}
	if cfg.VideoChain[1].Model != "veo-3.0-generate-001" {
		t.Fatalf("VideoChain[1].Model = %q", cfg.VideoChain[1].Model)
	}
}

func TestLoadConfigRejectsMalformedChain(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("IMAGE_CHAIN", "gemini")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for chain entry without model")
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}
