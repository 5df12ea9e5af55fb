package config

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	setMinimalValidConfigEnv(t)

	cfg := LoadConfig()

	if cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected provider: %q", cfg.LLMProvider)
	}
	if cfg.LLMBatchSize != DefaultBatchSize {
		t.Fatalf("unexpected batch size default: %d", cfg.LLMBatchSize)
	}
	if cfg.SignificanceThreshold != DefaultSignificanceThreshold {
		t.Fatalf("unexpected significance threshold default: %d", cfg.SignificanceThreshold)
	}
	if cfg.SuggestionPacing() != 10*time.Second {
		t.Fatalf("unexpected pacing default: %s", cfg.SuggestionPacing())
	}
	if cfg.SnapshotPath != "./reviewpulse-analysis.json" {
		t.Fatalf("unexpected snapshot path default: %q", cfg.SnapshotPath)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr default: %q", cfg.HTTPAddr)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.SlackConfigured() {
		t.Fatalf("slack should not be configured without tokens")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm_provider: "anthropic"
anthropic_api_key: "yaml-anthropic"
llm_batch_size: 25
significance_threshold: 30
suggestion_pacing_seconds: 4
snapshot_path: "/tmp/yaml-snapshot.json"
timezone: "America/Los_Angeles"
slack_bot_token: "xoxb-yaml"
slack_app_token: "xapp-yaml"
slack_channel_id: "C123"
digest_schedule: "0 9 * * 1"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("SIGNIFICANCE_THRESHOLD", "40")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")

	cfg := LoadConfig()

	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected provider from env override, got %q", cfg.LLMProvider)
	}
	if cfg.LLMBatchSize != 25 {
		t.Fatalf("expected batch size from yaml, got %d", cfg.LLMBatchSize)
	}
	if cfg.SignificanceThreshold != 40 {
		t.Fatalf("expected threshold from env override, got %d", cfg.SignificanceThreshold)
	}
	if cfg.SuggestionPacing() != 4*time.Second {
		t.Fatalf("expected pacing from yaml, got %s", cfg.SuggestionPacing())
	}
	if cfg.SnapshotPath != "/tmp/yaml-snapshot.json" {
		t.Fatalf("expected snapshot path from yaml, got %q", cfg.SnapshotPath)
	}
	if !cfg.SlackConfigured() || cfg.SlackChannelID != "C123" {
		t.Fatalf("expected slack settings from yaml, got %+v", cfg)
	}
	if cfg.DigestSchedule != "0 9 * * 1" {
		t.Fatalf("expected digest schedule from yaml, got %q", cfg.DigestSchedule)
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("RP_TEST_STR", "value")
	envOverride(&s, "RP_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("RP_TEST_INT", "42")
	envOverrideInt(&i, "RP_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	e := "set"
	t.Setenv("RP_TEST_EMPTY", "")
	envOverrideAllowEmpty(&e, "RP_TEST_EMPTY")
	if e != "" {
		t.Fatalf("envOverrideAllowEmpty should clear the field, got %q", e)
	}
}

// Fatal paths run LoadConfig in a child test process selected by RP_FATAL_CASE.
func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	if name := os.Getenv("RP_FATAL_CASE"); name != "" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "reviewpulse-no-config.yaml"))
		_ = os.Setenv("LLM_PROVIDER", "openai")
		_ = os.Setenv("OPENAI_API_KEY", "sk-test")
		_ = os.Setenv("TIMEZONE", "UTC")
		_ = os.Unsetenv("SLACK_BOT_TOKEN")
		_ = os.Unsetenv("SLACK_APP_TOKEN")
		switch name {
		case "missing-key":
			_ = os.Unsetenv("OPENAI_API_KEY")
		case "unknown-provider":
			_ = os.Setenv("LLM_PROVIDER", "gemini")
		case "negative-batch":
			_ = os.Setenv("LLM_BATCH_SIZE", "-3")
		case "bad-threshold":
			_ = os.Setenv("SIGNIFICANCE_THRESHOLD", "many")
		case "half-slack":
			_ = os.Setenv("SLACK_BOT_TOKEN", "xoxb-only")
		case "bad-timezone":
			_ = os.Setenv("TIMEZONE", "Mars/Olympus_Mons")
		}
		LoadConfig()
		return
	}

	for _, name := range []string{"missing-key", "unknown-provider", "negative-batch", "bad-threshold", "half-slack", "bad-timezone"} {
		cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigRejectsInvalidSettings")
		cmd.Env = append(os.Environ(), "RP_FATAL_CASE="+name)
		err := cmd.Run()
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("%s: expected the child to exit non-zero, got %v", name, err)
		}
	}
}
