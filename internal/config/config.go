package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	DefaultBatchSize               = 50
	DefaultSignificanceThreshold   = 50
	DefaultSuggestionPacingSeconds = 10
)

type Config struct {
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	LLMBatchSize            int `yaml:"llm_batch_size"`
	SignificanceThreshold   int `yaml:"significance_threshold"`
	SuggestionPacingSeconds int `yaml:"suggestion_pacing_seconds"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	SnapshotPath               string `yaml:"snapshot_path"`
	HTTPAddr                   string `yaml:"http_addr"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackAppToken  string `yaml:"slack_app_token"`
	SlackChannelID string `yaml:"slack_channel_id"`
	DigestSchedule string `yaml:"digest_schedule"`
	Timezone       string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideInt(&cfg.LLMBatchSize, "LLM_BATCH_SIZE")
	envOverrideInt(&cfg.SignificanceThreshold, "SIGNIFICANCE_THRESHOLD")
	envOverrideInt(&cfg.SuggestionPacingSeconds, "SUGGESTION_PACING_SECONDS")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&cfg.SnapshotPath, "SNAPSHOT_PATH")
	envOverride(&cfg.HTTPAddr, "HTTP_ADDR")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverrideAllowEmpty(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMBatchSize == 0 {
		cfg.LLMBatchSize = DefaultBatchSize
	}
	if cfg.SignificanceThreshold == 0 {
		cfg.SignificanceThreshold = DefaultSignificanceThreshold
	}
	if cfg.SuggestionPacingSeconds == 0 {
		cfg.SuggestionPacingSeconds = DefaultSuggestionPacingSeconds
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "./reviewpulse-analysis.json"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if (cfg.SlackBotToken == "") != (cfg.SlackAppToken == "") {
		log.Fatalf("slack_bot_token and slack_app_token must be set together")
	}
	if cfg.DigestSchedule != "" && (!cfg.SlackConfigured() || cfg.SlackChannelID == "") {
		log.Printf("WARNING: digest_schedule is set but Slack or slack_channel_id is not configured; digest disabled")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.LLMBatchSize < 1 {
		log.Fatalf("invalid llm_batch_size '%d': must be >= 1", cfg.LLMBatchSize)
	}
	if cfg.SignificanceThreshold < 1 {
		log.Fatalf("invalid significance_threshold '%d': must be >= 1", cfg.SignificanceThreshold)
	}
	if cfg.SuggestionPacingSeconds < 0 {
		log.Fatalf("invalid suggestion_pacing_seconds '%d': must be >= 0", cfg.SuggestionPacingSeconds)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 5", cfg.ExternalHTTPTimeoutSeconds)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

func (c Config) SuggestionPacing() time.Duration {
	return time.Duration(c.SuggestionPacingSeconds) * time.Second
}
