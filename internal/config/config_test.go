package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
  tcp_port: "5555"
  write_timeout: 2s
  send_buffer: 16
redis:
  addr: localhost:6379
  prefix: trivia
quiz:
  questions: questions.yaml
  timer_mode: true
  time_limit: 20
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.TCPPort != "5555" || cfg.Server.SendBuffer != 16 {
		t.Fatalf("unexpected server section: %+v", cfg.Server)
	}
	if cfg.Redis.Prefix != "trivia" {
		t.Fatalf("unexpected redis prefix %q", cfg.Redis.Prefix)
	}
	if !cfg.Quiz.TimerMode || cfg.Quiz.TimeLimit != 20 || cfg.Quiz.Questions != "questions.yaml" {
		t.Fatalf("unexpected quiz section: %+v", cfg.Quiz)
	}
	if d := TTLDuration(cfg.Server.WriteTimeout, time.Second); d != 2*time.Second {
		t.Fatalf("expected 2s write timeout, got %v", d)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestTTLDuration(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want time.Duration
	}{
		"empty":   {raw: "", want: time.Minute},
		"valid":   {raw: "90s", want: 90 * time.Second},
		"invalid": {raw: "soon", want: time.Minute},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := TTLDuration(tt.raw, time.Minute); got != tt.want {
				t.Fatalf("TTLDuration(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
