// Package config loads and validates the closed configuration surface from
// §6: a file (YAML/JSON/TOML, anything viper decodes) overlaid with
// environment variables for secrets and endpoints, decoded into closed Go
// structs and rejected outright if any field fails validation. Nothing
// downstream ever sees a raw map — every recognized option has a typed
// home here, per the design note on dynamic-object configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type SearchProvider string

const (
	SearchProviderSerper SearchProvider = "serper"
	SearchProviderBrave  SearchProvider = "brave"
	SearchProviderMulti  SearchProvider = "multi"
)

type CacheConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Redis   RedisConfig `mapstructure:"redis"`
	Search  SearchCacheConfig `mapstructure:"searchResults"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     int    `mapstructure:"port" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"-"`
}

type SearchCacheConfig struct {
	BaseTTLSeconds    int     `mapstructure:"baseTtl" validate:"min=1"`
	PopularTTLSeconds int     `mapstructure:"popularTtl" validate:"min=1"`
	TTLJitter         float64 `mapstructure:"ttlJitter" validate:"min=0,max=1"`
	PopularThreshold  int64   `mapstructure:"popularThreshold" validate:"min=1"`
}

// ModelConfig is the closed per-task LLM configuration key from §6:
// models.<task>.{model,temperature,responseFormat}.
type ModelConfig struct {
	Model          string  `mapstructure:"model" validate:"required"`
	Temperature    float64 `mapstructure:"temperature" validate:"min=0,max=2"`
	ResponseFormat string  `mapstructure:"responseFormat" validate:"omitempty,oneof=text json"`
}

type ModelsConfig struct {
	QueryGeneration     ModelConfig `mapstructure:"queryGeneration" validate:"required"`
	SearchFiltering     ModelConfig `mapstructure:"searchFiltering" validate:"required"`
	RelevancyAnalysis   ModelConfig `mapstructure:"relevancyAnalysis" validate:"required"`
	CrossSourceAnalysis ModelConfig `mapstructure:"crossSourceAnalysis" validate:"required"`
	ReportCompilation   ModelConfig `mapstructure:"reportCompilation" validate:"required"`
	ReportSummary       ModelConfig `mapstructure:"reportSummary" validate:"required"`
}

type PipelineConfig struct {
	MaxIterations      int `mapstructure:"maxIterations" validate:"min=1"`
	QueriesPerIteration int `mapstructure:"queriesPerIteration" validate:"min=1"`
	ResultsPerQuery    int `mapstructure:"resultsPerQuery" validate:"min=1"`
	RelevancyThreshold int `mapstructure:"relevancyThreshold" validate:"min=0,max=100"`
	MinResults         int `mapstructure:"minResults" validate:"min=0"`
	MaxResults         int `mapstructure:"maxResults" validate:"gtefield=MinResults"`
}

type SchedulerConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	CheckWindowMinutes  int  `mapstructure:"checkWindowMinutes" validate:"min=1"`
	RunOnStartup        bool `mapstructure:"runOnStartup"`
	StuckThresholdMinutes int `mapstructure:"stuckThresholdMinutes" validate:"min=1"`
	ReconcileIntervalMinutes int `mapstructure:"reconcileIntervalMinutes" validate:"min=1"`
}

type FeatureFlags struct {
	EnableSearchCache   bool `mapstructure:"enableSearchCache"`
	EnableSemanticDedup bool `mapstructure:"enableSemanticDedup"`
	EnableMultiProvider bool `mapstructure:"enableMultiProvider"`
}

type SecretsConfig struct {
	LLMAPIKey        string `mapstructure:"llmApiKey" validate:"required"`
	AnthropicAPIKey  string `mapstructure:"anthropicApiKey"`
	SearchAPIKey     string `mapstructure:"searchApiKey" validate:"required"`
	SearchAPIKeyFallback string `mapstructure:"searchApiKeyFallback"`
	EmailAPIKey      string `mapstructure:"emailApiKey" validate:"required"`
	EmailFromAddress string `mapstructure:"emailFromAddress" validate:"required,email"`
	ProjectStoreDSN  string `mapstructure:"projectStoreDsn" validate:"required"`
}

type LoggingConfig struct {
	// Format selects the slog.Handler: "text" for local runs, "json" in production.
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Models   ModelsConfig   `mapstructure:"models"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Features FeatureFlags   `mapstructure:"features"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type SearchConfig struct {
	Provider SearchProvider `mapstructure:"provider" validate:"oneof=serper brave multi"`
}

type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Defaults mirrors the teacher's pattern of setting sane viper defaults
// before any file/env overlay is read, so a minimal config file is valid.
func Defaults(v *viper.Viper) {
	v.SetDefault("search.provider", "multi")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.searchResults.baseTtl", 3600)
	v.SetDefault("cache.searchResults.popularTtl", 86400)
	v.SetDefault("cache.searchResults.ttlJitter", 0.1)
	v.SetDefault("cache.searchResults.popularThreshold", 5)
	v.SetDefault("pipeline.maxIterations", 1)
	v.SetDefault("pipeline.queriesPerIteration", 6)
	v.SetDefault("pipeline.resultsPerQuery", 10)
	v.SetDefault("pipeline.relevancyThreshold", 60)
	v.SetDefault("pipeline.minResults", 3)
	v.SetDefault("pipeline.maxResults", 40)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.checkWindowMinutes", 15)
	v.SetDefault("scheduler.runOnStartup", true)
	v.SetDefault("scheduler.stuckThresholdMinutes", 5)
	v.SetDefault("scheduler.reconcileIntervalMinutes", 10)
	v.SetDefault("features.enableSearchCache", true)
	v.SetDefault("features.enableSemanticDedup", true)
	v.SetDefault("features.enableMultiProvider", true)
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.addr", ":8080")
}

// Load reads configFile (if non-empty) plus an RC_-prefixed environment
// overlay into a validated Config. Env vars use RC_SEARCH_PROVIDER-style
// names (viper's automatic env with "." replaced by "_"), matching the
// raw-secret env vars named in §6 (LLM_API_KEY, SEARCH_API_KEY, ...) via
// explicit BindEnv calls below.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	Defaults(v)

	v.SetEnvPrefix("RC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.Cache.Redis.Enabled = cfg.Cache.Enabled

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

// bindEnv wires the raw vendor-secret env var names from §6 directly, since
// those are not expected to follow the RC_ prefix/dot-path convention used
// by the rest of the config surface.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("secrets.llmApiKey", "LLM_API_KEY")
	_ = v.BindEnv("secrets.anthropicApiKey", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("secrets.searchApiKey", "SEARCH_API_KEY")
	_ = v.BindEnv("secrets.searchApiKeyFallback", "SEARCH_API_KEY_FALLBACK")
	_ = v.BindEnv("secrets.emailApiKey", "EMAIL_API_KEY")
	_ = v.BindEnv("secrets.emailFromAddress", "EMAIL_FROM_ADDRESS")
	_ = v.BindEnv("secrets.projectStoreDsn", "PROJECT_STORE_DSN")
	_ = v.BindEnv("cache.redis.host", "CACHE_REDIS_HOST")
	_ = v.BindEnv("cache.redis.port", "CACHE_REDIS_PORT")
	_ = v.BindEnv("cache.redis.password", "CACHE_REDIS_PASSWORD")
	_ = v.BindEnv("cache.redis.db", "CACHE_REDIS_DB")
	_ = v.BindEnv("features.enableSearchCache", "ENABLE_SEARCH_CACHE")
	_ = v.BindEnv("features.enableSemanticDedup", "ENABLE_SEMANTIC_DEDUP")
	_ = v.BindEnv("features.enableMultiProvider", "ENABLE_MULTI_PROVIDER")
	_ = v.BindEnv("scheduler.checkWindowMinutes", "SCHEDULER_CHECK_WINDOW_MINUTES")
	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.runOnStartup", "RUN_ON_STARTUP")
}
