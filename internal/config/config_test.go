package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("ORACLE_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "vesting.db" {
		t.Errorf("Expected default path vesting.db, got %s", cfg.Database.Path)
	}
	if cfg.Oracle.Timeout != 2*time.Second {
		t.Errorf("Expected default oracle timeout 2s, got %v", cfg.Oracle.Timeout)
	}
	if cfg.Events.RedisStream != "vesting:events" {
		t.Errorf("Expected default stream, got %s", cfg.Events.RedisStream)
	}
	if !cfg.Events.LogEvents {
		t.Error("Expected event logging on by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/other.db")
	t.Setenv("EVENTS_LOG", "false")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("Expected overridden path, got %s", cfg.Database.Path)
	}
	if cfg.Events.LogEvents {
		t.Error("Expected event logging disabled")
	}
	if cfg.Events.RedisAddr != "localhost:6379" {
		t.Errorf("Expected redis address, got %s", cfg.Events.RedisAddr)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("ORACLE_TIMEOUT", "soon")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "ORACLE_TIMEOUT") {
		t.Errorf("Expected error to name the variable, got %v", err)
	}
}

const vester = "7665737465720000000000000000000000000000000000000000000000000000"

func TestParseDeployment(t *testing.T) {
	doc := `
vester_account: ` + vester + `
assets:
  - id: native
    symbol: VST
    decimals: 12
    deny:
      - "6261640000000000000000000000000000000000000000000000000000000000"
oracles:
  - account: "6f7261636c650000000000000000000000000000000000000000000000000000"
    transport: static
    start: 100
    end: 200
`
	d, err := ParseDeployment([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDeployment failed: %v", err)
	}
	if len(d.Assets) != 1 || d.Assets[0].Backend != BackendLocal {
		t.Errorf("Expected one local asset, got %+v", d.Assets)
	}
	if len(d.Oracles) != 1 || d.Oracles[0].End != 200 {
		t.Errorf("Unexpected oracles: %+v", d.Oracles)
	}
}

func TestParseDeployment_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing vester", "assets: []", "vester_account"},
		{"bad backend", "vester_account: " + vester + "\nassets:\n  - id: native\n    backend: ftp", "unknown backend"},
		{"formance without symbol", "vester_account: " + vester + "\nassets:\n  - id: native\n    backend: formance", "missing symbol"},
		{"grpc without endpoint", "vester_account: " + vester + "\noracles:\n  - account: " + vester + "\n    transport: grpc", "missing endpoint"},
		{"duplicate asset", "vester_account: " + vester + "\nassets:\n  - id: native\n  - id: NATIVE", "duplicates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeployment([]byte(tt.doc))
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
