package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Defaults   DefaultsConfig   `yaml:"defaults" mapstructure:"defaults"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Value      ValueConfig      `yaml:"value" mapstructure:"value"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Learner    LearnerConfig    `yaml:"learner" mapstructure:"learner"`
	Router     RouterConfig     `yaml:"router" mapstructure:"router"`
	Execute    ExecuteConfig    `yaml:"execute" mapstructure:"execute"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig configures the backend catalog source.
type CatalogConfig struct {
	Path               string `yaml:"path" mapstructure:"path"`
	ReloadIntervalSecs int    `yaml:"reload_interval_secs" mapstructure:"reload_interval_secs"`
}

// DefaultsConfig supplies constraint values for fields a routing request
// leaves unset.
type DefaultsConfig struct {
	MaxCostPerUnit   float64 `yaml:"max_cost_per_unit" mapstructure:"max_cost_per_unit"`
	MaxLatencyMS     int64   `yaml:"max_latency_ms" mapstructure:"max_latency_ms"`
	MinPrivacyLevel  float64 `yaml:"min_privacy_level" mapstructure:"min_privacy_level"`
	QualityThreshold float64 `yaml:"quality_threshold" mapstructure:"quality_threshold"`
	Urgency          float64 `yaml:"urgency" mapstructure:"urgency"`
	TokenOverhead    int     `yaml:"token_overhead" mapstructure:"token_overhead"`
}

// ScoringConfig holds axis weights and per-capability weight overrides.
type ScoringConfig struct {
	CapabilityWeight  float64            `yaml:"capability_weight" mapstructure:"capability_weight"`
	CostWeight        float64            `yaml:"cost_weight" mapstructure:"cost_weight"`
	LatencyWeight     float64            `yaml:"latency_weight" mapstructure:"latency_weight"`
	PrivacyWeight     float64            `yaml:"privacy_weight" mapstructure:"privacy_weight"`
	ContextWeight     float64            `yaml:"context_weight" mapstructure:"context_weight"`
	ReliabilityWeight float64            `yaml:"reliability_weight" mapstructure:"reliability_weight"`
	CapabilityWeights map[string]float64 `yaml:"capability_weights" mapstructure:"capability_weights"`
}

// ValueConfig tunes the value/cost optimizer.
type ValueConfig struct {
	HourlyRate            float64            `yaml:"hourly_rate" mapstructure:"hourly_rate"`
	OpportunityMultiplier float64            `yaml:"opportunity_multiplier" mapstructure:"opportunity_multiplier"`
	TaskTypeMultipliers   map[string]float64 `yaml:"task_type_multipliers" mapstructure:"task_type_multipliers"`
	OutputTokenRatio      float64            `yaml:"output_token_ratio" mapstructure:"output_token_ratio"`
	ExcellentThreshold    float64            `yaml:"excellent_threshold" mapstructure:"excellent_threshold"`
	GoodThreshold         float64            `yaml:"good_threshold" mapstructure:"good_threshold"`
	FairThreshold         float64            `yaml:"fair_threshold" mapstructure:"fair_threshold"`
}

// CacheConfig configures the selection cache.
type CacheConfig struct {
	TTLSecs    int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// StoreConfig configures the benchmark store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LearnerConfig tunes the outcome learner and retraining.
type LearnerConfig struct {
	AdjustmentRate      float64 `yaml:"adjustment_rate" mapstructure:"adjustment_rate"`
	RetrainBatchSize    int     `yaml:"retrain_batch_size" mapstructure:"retrain_batch_size"`
	MinSamples          int     `yaml:"min_samples" mapstructure:"min_samples"`
	QueueSize           int     `yaml:"queue_size" mapstructure:"queue_size"`
	RetrainIntervalSecs int     `yaml:"retrain_interval_secs" mapstructure:"retrain_interval_secs"`
}

// RouterConfig configures orchestration policy.
type RouterConfig struct {
	FallbackBackend      string `yaml:"fallback_backend" mapstructure:"fallback_backend"`
	StrictAdmission      bool   `yaml:"strict_admission" mapstructure:"strict_admission"`
	MaxConcurrentScoring int    `yaml:"max_concurrent_scoring" mapstructure:"max_concurrent_scoring"`
}

// ExecuteConfig configures the optional execution adapter.
type ExecuteConfig struct {
	Adapter   string `yaml:"adapter" mapstructure:"adapter"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int     `yaml:"port" mapstructure:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// MonitoringConfig configures the background alert checker.
type MonitoringConfig struct {
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	BypassRateThreshold   float64 `yaml:"bypass_rate_threshold" mapstructure:"bypass_rate_threshold"`
	MinConfidence         float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TASKROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.path", "backends.yaml")
	v.SetDefault("catalog.reload_interval_secs", 0)

	v.SetDefault("defaults.max_cost_per_unit", 0.05)
	v.SetDefault("defaults.max_latency_ms", 10000)
	v.SetDefault("defaults.min_privacy_level", 0)
	v.SetDefault("defaults.quality_threshold", 6.0)
	v.SetDefault("defaults.urgency", 5.0)
	v.SetDefault("defaults.token_overhead", 200)

	v.SetDefault("scoring.capability_weight", 0.35)
	v.SetDefault("scoring.cost_weight", 0.20)
	v.SetDefault("scoring.latency_weight", 0.15)
	v.SetDefault("scoring.privacy_weight", 0.15)
	v.SetDefault("scoring.context_weight", 0.10)
	v.SetDefault("scoring.reliability_weight", 0.05)

	v.SetDefault("value.hourly_rate", 50.0)
	v.SetDefault("value.opportunity_multiplier", 1.0)
	v.SetDefault("value.task_type_multipliers", map[string]float64{
		"real_time":   3.0,
		"interactive": 1.5,
		"batch":       0.5,
	})
	v.SetDefault("value.output_token_ratio", 0.5)
	v.SetDefault("value.excellent_threshold", 0.01)
	v.SetDefault("value.good_threshold", 0.05)
	v.SetDefault("value.fair_threshold", 0.20)

	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "taskrouter.db")

	v.SetDefault("learner.adjustment_rate", 0.05)
	v.SetDefault("learner.retrain_batch_size", 50)
	v.SetDefault("learner.min_samples", 50)
	v.SetDefault("learner.queue_size", 1000)
	v.SetDefault("learner.retrain_interval_secs", 300)

	v.SetDefault("router.fallback_backend", "")
	v.SetDefault("router.strict_admission", false)
	v.SetDefault("router.max_concurrent_scoring", 8)

	v.SetDefault("execute.adapter", "mock")
	v.SetDefault("execute.max_tokens", 4096)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_sec", 50)
	v.SetDefault("server.rate_limit_burst", 100)

	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.2)
	v.SetDefault("monitoring.bypass_rate_threshold", 0.3)
	v.SetDefault("monitoring.min_confidence", 0.6)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
