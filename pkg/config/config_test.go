package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/var/lib/tarschat"
security:
  signing_keys: ["k1", "k2"]
  webhook_secret: "whsec_c2VjcmV0"
  webhook_tolerance: "2m"
  rate_limit:
    rps: 10
    burst: 20
logging:
  level: "debug"
presence:
  sweep_enabled: true
  sweep_cron: "*/5 * * * *"
  offline_after: "10m"
preview:
  queue_capacity: 256
  workers: 4
  fetch_timeout: "3s"
  max_body_bytes: "2MB"
blob:
  upload_token_ttl: "15m"
  max_upload_bytes: "32MB"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/var/lib/tarschat" {
		t.Fatalf("db path = %q", cfg.Server.DBPath)
	}
	if len(cfg.Security.SigningKeys) != 2 {
		t.Fatalf("signing keys = %v", cfg.Security.SigningKeys)
	}
	if cfg.Security.WebhookTolerance.Duration() != 2*time.Minute {
		t.Fatalf("tolerance = %v", cfg.Security.WebhookTolerance.Duration())
	}
	if cfg.Presence.OfflineAfter.Duration() != 10*time.Minute {
		t.Fatalf("offline after = %v", cfg.Presence.OfflineAfter.Duration())
	}
	if cfg.Preview.MaxBodyBytes.Int64() != 2_000_000 {
		t.Fatalf("max body bytes = %d", cfg.Preview.MaxBodyBytes.Int64())
	}
	if cfg.Blob.UploadTokenTTL.Duration() != 15*time.Minute {
		t.Fatalf("token ttl = %v", cfg.Blob.UploadTokenTTL.Duration())
	}
}

func TestDurationNumericSeconds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("preview:\n  fetch_timeout: 5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Preview.FetchTimeout.Duration() != 5*time.Second {
		t.Fatalf("fetch timeout = %v", cfg.Preview.FetchTimeout.Duration())
	}
}

func TestAddrDefaultsPort(t *testing.T) {
	var cfg Config
	if cfg.Addr() != ":8080" {
		t.Fatalf("default addr = %q", cfg.Addr())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\nserver:\n  db_path: /from/file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TARSCHAT_LOG_LEVEL", "debug")
	t.Setenv("TARSCHAT_SIGNING_KEYS", "a, b,c")

	res, err := LoadEffective(Flags{Addr: ":8080", DB: "./.database", Config: path, Set: map[string]bool{"config": true}})
	if err != nil {
		t.Fatalf("LoadEffective: %v", err)
	}
	if res.Source != "env" {
		t.Fatalf("source = %q", res.Source)
	}
	if res.Config.Logging.Level != "debug" {
		t.Fatalf("level = %q", res.Config.Logging.Level)
	}
	if len(res.Config.Security.SigningKeys) != 3 || res.Config.Security.SigningKeys[1] != "b" {
		t.Fatalf("signing keys = %v", res.Config.Security.SigningKeys)
	}
	if res.DBPath != "/from/file" {
		t.Fatalf("db path = %q", res.DBPath)
	}
}

func TestMissingConfigFileIsNotFatal(t *testing.T) {
	cfg, present, err := ParseConfigFile(Flags{Config: filepath.Join(t.TempDir(), "nope.yaml"), Set: map[string]bool{"config": true}})
	if err != nil {
		t.Fatalf("ParseConfigFile: %v", err)
	}
	if present {
		t.Fatal("missing file reported as present")
	}
	if cfg == nil {
		t.Fatal("nil config for missing file")
	}
}
