package declwire

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	if err := ApplyDefaults(cfg); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}

	if cfg.Header != HeaderComponent {
		t.Errorf("Expected default header %q, got %q", HeaderComponent, cfg.Header)
	}
	if cfg.StopTimeout != 30*time.Second {
		t.Errorf("Expected default stop timeout 30s, got %v", cfg.StopTimeout)
	}
	if cfg.ModuleDir != "modules" {
		t.Errorf("Expected default module dir, got %q", cfg.ModuleDir)
	}
}

func TestApplyDefaultsKeepsExistingValues(t *testing.T) {
	cfg := &Config{Header: "X-Components"}
	if err := ApplyDefaults(cfg); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}
	if cfg.Header != "X-Components" {
		t.Errorf("Non-zero field must not be overwritten, got %q", cfg.Header)
	}
}

func TestApplyDefaultsRejectsNonStructPointer(t *testing.T) {
	if err := ApplyDefaults(Config{}); !errors.Is(err, ErrConfigNotStructPointer) {
		t.Errorf("Expected ErrConfigNotStructPointer, got %v", err)
	}
	var notStruct int
	if err := ApplyDefaults(&notStruct); !errors.Is(err, ErrConfigNotStructPointer) {
		t.Errorf("Expected ErrConfigNotStructPointer, got %v", err)
	}
}

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeTempConfig(t, "config.toml", "header = \"X-Components\"\nmodule_dir = \"/srv/modules\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Header != "X-Components" {
		t.Errorf("Expected header from file, got %q", cfg.Header)
	}
	if cfg.ModuleDir != "/srv/modules" {
		t.Errorf("Expected module dir from file, got %q", cfg.ModuleDir)
	}
	// Untouched fields keep their defaults.
	if cfg.StopTimeout != 30*time.Second {
		t.Errorf("Expected default stop timeout, got %v", cfg.StopTimeout)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "inspect_addr: \":9000\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.InspectAddr != ":9000" {
		t.Errorf("Expected inspect addr from file, got %q", cfg.InspectAddr)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"header": "J-Components"}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Header != "J-Components" {
		t.Errorf("Expected header from file, got %q", cfg.Header)
	}
}

func TestLoadConfigUnsupportedFormat(t *testing.T) {
	path := writeTempConfig(t, "config.ini", "header=x")

	if _, err := LoadConfig(path); !errors.Is(err, ErrUnsupportedConfigFormat) {
		t.Errorf("Expected ErrUnsupportedConfigFormat, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
