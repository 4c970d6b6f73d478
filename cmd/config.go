package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mwain/inboxpilot/internal/analyze"
	"github.com/mwain/inboxpilot/internal/tools"
)

// Settings is the resolved application configuration. Values come from,
// in order of precedence: command-line flags, INBOXPILOT_* environment
// variables, an optional config file, and built-in defaults.
type Settings struct {
	// LLM endpoint
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Agent
	MaxRounds int

	// Dispatch
	CallTimeout time.Duration
	MaxAttempts uint

	// Cache
	CacheCapacity int

	// Auth
	RefreshMargin time.Duration

	// Analyzers
	NeutralBand   float64
	TaskThreshold float64

	// Tools
	ReadOnly       bool
	MaxListResults int

	// Metrics server
	MetricsEnabled bool
	MetricsAddr    string

	Debug bool
}

// loadSettings builds the Settings from viper. A config file at
// ~/.config/inboxpilot/config.yaml is read when present; every key can
// also be set via the environment, e.g. INBOXPILOT_LLM_MODEL or
// INBOXPILOT_AGENT_MAX_ROUNDS.
func loadSettings() (Settings, error) {
	v := viper.New()

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("agent.max_rounds", 6)
	v.SetDefault("dispatch.call_timeout", tools.DefaultCallTimeout)
	v.SetDefault("dispatch.max_attempts", tools.DefaultMaxAttempts)
	v.SetDefault("cache.capacity", 256)
	v.SetDefault("auth.refresh_margin", time.Minute)
	v.SetDefault("analyze.neutral_band", analyze.DefaultNeutralBand)
	v.SetDefault("analyze.task_threshold", analyze.DefaultTaskThreshold)
	v.SetDefault("tools.read_only", true)
	v.SetDefault("tools.max_list_results", 15)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("debug", false)

	v.SetEnvPrefix("INBOXPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// OPENAI_API_KEY is honored as a fallback so the assistant works
	// out of the box in environments that already export it.
	if v.GetString("llm.api_key") == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			v.Set("llm.api_key", key)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "inboxpilot"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	s := Settings{
		LLMAPIKey:      v.GetString("llm.api_key"),
		LLMBaseURL:     v.GetString("llm.base_url"),
		LLMModel:       v.GetString("llm.model"),
		MaxRounds:      v.GetInt("agent.max_rounds"),
		CallTimeout:    v.GetDuration("dispatch.call_timeout"),
		MaxAttempts:    uint(v.GetInt("dispatch.max_attempts")),
		CacheCapacity:  v.GetInt("cache.capacity"),
		RefreshMargin:  v.GetDuration("auth.refresh_margin"),
		NeutralBand:    v.GetFloat64("analyze.neutral_band"),
		TaskThreshold:  v.GetFloat64("analyze.task_threshold"),
		ReadOnly:       v.GetBool("tools.read_only"),
		MaxListResults: v.GetInt("tools.max_list_results"),
		MetricsEnabled: v.GetBool("metrics.enabled"),
		MetricsAddr:    v.GetString("metrics.addr"),
		Debug:          v.GetBool("debug"),
	}

	return s, nil
}
