// Package config loads settings from an optional YAML file, BASIN_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joelkehle/basin-analysis/internal/petrosys"
)

// EnvPrefix is prepended to every environment key, e.g. BASIN_REASONING_MODEL.
const EnvPrefix = "BASIN"

type Config struct {
	Log       LogConfig             `mapstructure:"log"`
	Reasoning ReasoningConfig       `mapstructure:"reasoning"`
	Chance    petrosys.ChancePolicy `mapstructure:"chance"`
	Extract   ExtractConfig         `mapstructure:"extract"`
	Archive   ArchiveConfig         `mapstructure:"archive"`
	HTTP      HTTPConfig            `mapstructure:"http"`
	Telemetry TelemetryConfig       `mapstructure:"telemetry"`
	Batch     BatchConfig           `mapstructure:"batch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReasoningConfig selects the reasoning service. When ReplayDir is set,
// stored narratives are served from it and the API is never called.
type ReasoningConfig struct {
	Model       string `mapstructure:"model"`
	MaxTokens   int64  `mapstructure:"max_tokens"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	ReplayDir   string `mapstructure:"replay_dir"`
	RecordDir   string `mapstructure:"record_dir"`
}

type ExtractConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// TelemetryConfig enables trace export when OTLPEndpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":         "log.level",
	"log-format":        "log.format",
	"model":             "reasoning.model",
	"max-tokens":        "reasoning.max_tokens",
	"max-attempts":      "reasoning.max_attempts",
	"replay-dir":        "reasoning.replay_dir",
	"record-dir":        "reasoning.record_dir",
	"chance-method":     "chance.method",
	"rules":             "extract.rules_file",
	"archive":           "archive.path",
	"addr":              "http.addr",
	"otlp-endpoint":     "telemetry.otlp_endpoint",
	"concurrency":       "batch.concurrency",
	"geological-weight": "chance.geological_weight",
	"commercial-weight": "chance.commercial_weight",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("reasoning.model", "claude-sonnet-4-5")
	v.SetDefault("reasoning.max_tokens", 4096)
	v.SetDefault("reasoning.max_attempts", 3)
	v.SetDefault("reasoning.replay_dir", "")
	v.SetDefault("reasoning.record_dir", "")

	policy := petrosys.DefaultChancePolicy()
	v.SetDefault("chance.method", string(policy.Method))
	v.SetDefault("chance.geological_weight", policy.GeologicalWeight)
	v.SetDefault("chance.commercial_weight", policy.CommercialWeight)
	v.SetDefault("chance.go_threshold", policy.GoThreshold)
	v.SetDefault("chance.defer_threshold", policy.DeferThreshold)

	v.SetDefault("extract.rules_file", "")
	v.SetDefault("archive.path", "basin-analysis.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "basin-analysis")
	v.SetDefault("batch.concurrency", 4)
}

// Load reads configuration. file may be empty; flags may be nil. Only flags
// the user actually set override the file and environment.
func Load(file string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if err := c.Chance.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chance: %w", err))
	}
	if c.Reasoning.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("reasoning.max_attempts must be at least 1, got %d", c.Reasoning.MaxAttempts))
	}
	if c.Reasoning.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("reasoning.max_tokens must be positive, got %d", c.Reasoning.MaxTokens))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
