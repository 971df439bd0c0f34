package config

import (
	"os"
	"testing"
	"time"
)

const sampleConfig = `
llm:
  provider: gemini
  api_key: dummy
  model: gemini-1.5-flash
retry:
  max_attempts: 5
  backoff: 250ms
storage:
  driver: bolt
  path: /tmp/evo.bolt
server:
  host: 0.0.0.0
  port: "9090"
assistant:
  name: Nova
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(body); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()
	return tmp.Name()
}

// TestLoad_File verifies that Load unmarshals the file named by CONFIG_PATH.
func TestLoad_File(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Provider != ProviderGemini {
		t.Fatalf("unexpected provider: %s", cfg.LLM.Provider)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Backoff != 250*time.Millisecond {
		t.Fatalf("unexpected backoff: %s", cfg.Retry.Backoff)
	}
	if cfg.Retry.AttemptTimeout != 60*time.Second {
		t.Fatalf("default attempt timeout not applied: %s", cfg.Retry.AttemptTimeout)
	}
	if cfg.Storage.Driver != StorageBolt || cfg.Storage.Path != "/tmp/evo.bolt" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Assistant.Name != "Nova" {
		t.Fatalf("unexpected assistant name: %s", cfg.Assistant.Name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != 3*time.Second {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Storage.Driver != StorageSQLite {
		t.Fatalf("unexpected storage driver: %s", cfg.Storage.Driver)
	}
	if cfg.Assistant.Name != "Evo" {
		t.Fatalf("unexpected assistant name: %s", cfg.Assistant.Name)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))
	t.Setenv("EVO_LLM_API_KEY", "from-env")
	t.Setenv("EVO_STORAGE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("env api key not applied: %q", cfg.LLM.APIKey)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Fatalf("env storage driver not applied: %q", cfg.Storage.Driver)
	}
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm:\n  provider: telepathy\n"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/evo.yaml")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing CONFIG_PATH file")
	}
}
