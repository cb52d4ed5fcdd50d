package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "display.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	if err := New().Validate(); err != nil {
		t.Fatalf("Defaults failed validation: %v", err)
	}
}

func TestFlagsWinOverFile(t *testing.T) {
	path := writeFile(t, `
redis_port: 6380
display:
  dim_timeout: 2m
  max_brightness: 40
als:
  dark_border: 20
`)
	cfg := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--max-brightness=90"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := cfg.Load(path, fs); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RedisPort != 6380 {
		t.Errorf("Expected redis port from file, got %d", cfg.RedisPort)
	}
	if cfg.Display.DimTimeout != 2*time.Minute {
		t.Errorf("Expected dim timeout from file, got %v", cfg.Display.DimTimeout)
	}
	if cfg.Display.MaxBrightness != 90 {
		t.Errorf("Expected flag to win, got max brightness %d", cfg.Display.MaxBrightness)
	}
	if cfg.ALS.DarkBorder != 20 || cfg.ALS.DimBorder != 200 {
		t.Errorf("Expected partial ALS overlay, got %+v", cfg.ALS)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, `
als:
  dim_border: 10
`)
	cfg := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := cfg.Load(path, fs); err == nil {
		t.Errorf("Expected non-increasing borders to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := New().LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for missing file")
	}
}
