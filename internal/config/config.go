// Package config handles configuration loading and management for vizier.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for vizier. The escalation ladder, attempt
// budget and timeouts are policy, not constants; everything here can be
// overridden per project.
type Config struct {
	Agent AgentConfig `mapstructure:"agent"`
	Run   RunConfig   `mapstructure:"run"`
	TUI   TUIConfig   `mapstructure:"tui"`
}

// AgentConfig selects how the planner, worker and verifier are invoked.
type AgentConfig struct {
	// Bin is the agent CLI binary.
	Bin string `mapstructure:"bin"`
	// PlannerModel and VerifierModel select models for the read-only roles.
	PlannerModel  string `mapstructure:"planner_model"`
	VerifierModel string `mapstructure:"verifier_model"`
	// UseAPI routes planner and verifier through the Messages API instead of
	// the CLI. The worker always runs as a process.
	UseAPI bool `mapstructure:"use_api"`
	// APIKey is the Anthropic API key for API mode.
	APIKey string `mapstructure:"api_key"`
	// UseAWSBedrock routes API calls through AWS Bedrock.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion and AWSProfile configure Bedrock credentials.
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// RunConfig holds execution policy.
type RunConfig struct {
	// AttemptsPerTier is the attempt budget at each ladder rung before
	// escalating.
	AttemptsPerTier int `mapstructure:"attempts_per_tier"`
	// KeepWorkspaces leaves merged workspaces on disk for inspection instead
	// of destroying them.
	KeepWorkspaces bool `mapstructure:"keep_workspaces"`
	// LadderFile points at a YAML escalation ladder; empty uses the default.
	LadderFile string `mapstructure:"ladder_file"`
}

// TUIConfig holds watch-view display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration with the usual precedence (highest first):
// environment variables, project .vizier.yaml, user XDG config, defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		pv := viper.New()
		pv.SetConfigFile(projectConfig)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("agent.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Agent.APIKey = os.ExpandEnv(cfg.Agent.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Agent.APIKey = os.ExpandEnv(cfg.Agent.APIKey)
	return cfg, nil
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

// ProjectConfigPath returns the project config file path if one exists.
func ProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.bin", "claude")
	v.SetDefault("agent.planner_model", "opus")
	v.SetDefault("agent.verifier_model", "sonnet")
	v.SetDefault("agent.use_api", false)
	v.SetDefault("agent.api_key", "")
	v.SetDefault("agent.use_aws_bedrock", false)

	v.SetDefault("run.attempts_per_tier", 2)
	v.SetDefault("run.keep_workspaces", false)
	v.SetDefault("run.ladder_file", "")

	v.SetDefault("tui.refresh_rate", "250ms")
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vizier")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vizier")
	}
	return filepath.Join(home, ".config", "vizier")
}

// findProjectConfig searches for .vizier.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(cwd, ".vizier.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Bin:           "claude",
			PlannerModel:  "opus",
			VerifierModel: "sonnet",
		},
		Run: RunConfig{
			AttemptsPerTier: 2,
		},
		TUI: TUIConfig{
			RefreshRate: 250 * time.Millisecond,
		},
	}
}
