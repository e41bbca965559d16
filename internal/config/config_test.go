package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port 8080, got %s", cfg.APIPort)
	}
	if !cfg.ExcludeNonSajuAstro {
		t.Fatalf("expected leak guard on by default")
	}
	if cfg.CrossTopK != 12 {
		t.Fatalf("expected cross top_k 12, got %d", cfg.CrossTopK)
	}
	if cfg.CrossMinScore != 0.1 {
		t.Fatalf("expected cross min score 0.1, got %v", cfg.CrossMinScore)
	}
	if cfg.PrefetchWorkers != 8 {
		t.Fatalf("expected 8 prefetch workers, got %d", cfg.PrefetchWorkers)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("expected 1h session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.ChatTemperature != 0.75 {
		t.Fatalf("expected default temperature 0.75, got %v", cfg.ChatTemperature)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXCLUDE_NON_SAJU_ASTRO", "false")
	t.Setenv("CROSS_ADVANCED", "true")
	t.Setenv("STREAM_CHUNK_SIZE", "64")
	t.Setenv("PREFETCH_WORKER_TIMEOUT", "2s")
	t.Setenv("CHAT_TEMPERATURE", "bogus")

	cfg := Load()

	if cfg.ExcludeNonSajuAstro {
		t.Fatalf("expected leak guard off")
	}
	if !cfg.CrossAdvanced {
		t.Fatalf("expected advanced mode on")
	}
	if cfg.StreamChunkSize != 64 {
		t.Fatalf("expected chunk size 64, got %d", cfg.StreamChunkSize)
	}
	if cfg.WorkerTimeout != 2*time.Second {
		t.Fatalf("expected 2s worker timeout, got %v", cfg.WorkerTimeout)
	}
	if cfg.ChatTemperature != 0.75 {
		t.Fatalf("expected fallback temperature on parse error, got %v", cfg.ChatTemperature)
	}
}
