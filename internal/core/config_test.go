package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("error writing config: %v", err)
	}
	t.Cleanup(viper.Reset)
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, `
port: 9000
server_name: Test Server
reserved_names: [Kerbal]
database:
  engine: postgres
  host: db.local
connection:
  timeout: 30s
`)
	t.Setenv("WARPSERVER_MOTD", "from the environment")
	t.Setenv("WARPSERVER_DATABASE_NAME", "warp")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 9000 || cfg.ServerName != "Test Server" {
		t.Errorf("file values not loaded: port=%d name=%q", cfg.Port, cfg.ServerName)
	}
	if diff := cmp.Diff([]string{"Kerbal"}, cfg.ReservedNames); diff != "" {
		t.Errorf("unexpected reserved names; diff:\n%s", diff)
	}
	if cfg.MOTD != "from the environment" {
		t.Errorf("expected MOTD from env, got %q", cfg.MOTD)
	}
	if cfg.Database.Name != "warp" {
		t.Errorf("expected nested env override, got %q", cfg.Database.Name)
	}
	if cfg.Connection.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Connection.Timeout)
	}
	// Defaults fill in what the file leaves out.
	if cfg.Connection.AuthTimeout != 10*time.Second || cfg.Connection.HeartbeatInterval != 5*time.Second {
		t.Errorf("unexpected default timeouts: %+v", cfg.Connection)
	}
	if cfg.Connection.HandshakeGrace != time.Second {
		t.Errorf("expected 1s handshake grace, got %v", cfg.Connection.HandshakeGrace)
	}
	if cfg.MaxPlayers != 50 {
		t.Errorf("expected default max players, got %d", cfg.MaxPlayers)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Cleanup(viper.Reset)
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("expected error when no config file exists")
	}
}

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Engine = "postgres"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode="
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}

	cfg.Database.Engine = "sqlite"
	cfg.Database.Filename = "warp.db"
	if url := cfg.DatabaseURL(); url != "warp.db" {
		t.Errorf("DatabaseURL() want = warp.db, got = %s", url)
	}
}

func TestConfig_ListenAddress(t *testing.T) {
	cfg := &Config{Hostname: "127.0.0.1", Port: 12345}

	addr := cfg.ListenAddress()
	expected := "127.0.0.1:12345"
	if addr != expected {
		t.Errorf("ListenAddress() want = %s, got = %s", expected, addr)
	}
}
