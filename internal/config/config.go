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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Planner PlannerConfig `yaml:"planner" mapstructure:"planner"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the geocoding cascade used to locate candidates
// that were imported without coordinates.
type GeocodeConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	GoogleKey      string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	CensusEnabled  bool    `yaml:"census_enabled" mapstructure:"census_enabled"`
	TigerMaxRating int     `yaml:"tiger_max_rating" mapstructure:"tiger_max_rating"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLHours  int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MemoryEntries  int     `yaml:"memory_entries" mapstructure:"memory_entries"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TravelTimes    bool    `yaml:"travel_times" mapstructure:"travel_times"`

	RetryAttempts       int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBaseMS         int `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// PlannerConfig tunes the weekly visit planner.
type PlannerConfig struct {
	SlotsPerDay       int                `yaml:"slots_per_day" mapstructure:"slots_per_day"`
	WorkDays          int                `yaml:"work_days" mapstructure:"work_days"`
	GravityKM         float64            `yaml:"gravity_km" mapstructure:"gravity_km"`
	TieBandKM         float64            `yaml:"tie_band_km" mapstructure:"tie_band_km"`
	SearchConcurrency int                `yaml:"search_concurrency" mapstructure:"search_concurrency"`
	TierPoints        map[string]float64 `yaml:"tier_points" mapstructure:"tier_points"`
	EngagedPenalty    float64            `yaml:"engaged_penalty" mapstructure:"engaged_penalty"`
	EngagedStatuses   []string           `yaml:"engaged_statuses" mapstructure:"engaged_statuses"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.travel_times", false)
	v.SetDefault("geocode.census_enabled", true)
	v.SetDefault("geocode.tiger_max_rating", 0)
	v.SetDefault("geocode.rate_limit", 50)
	v.SetDefault("geocode.cache_ttl_hours", 24)
	v.SetDefault("geocode.memory_entries", 10000)
	v.SetDefault("geocode.concurrency", 10)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.retry_attempts", 3)
	v.SetDefault("geocode.retry_base_ms", 250)
	v.SetDefault("geocode.breaker_threshold", 5)
	v.SetDefault("geocode.breaker_cooldown_secs", 30)
	v.SetDefault("planner.slots_per_day", 6)
	v.SetDefault("planner.work_days", 5)
	v.SetDefault("planner.gravity_km", 20.0)
	v.SetDefault("planner.tie_band_km", 2.0)
	v.SetDefault("planner.search_concurrency", 10)
	v.SetDefault("planner.tier_points", map[string]float64{
		"highest": 100,
		"high":    75,
		"medium":  50,
		"low":     25,
		"unknown": 10,
	})
	v.SetDefault("planner.engaged_penalty", 0.7)
	v.SetDefault("planner.engaged_statuses", []string{"contacted", "negotiating"})

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

// Validate checks the settings a command needs. Scope is one of "store",
// "planner" or "server"; unknown scopes only run the common checks.
func (c *Config) Validate(scope string) error {
	var errs []string

	switch scope {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "planner":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validatePlanner()...)
	case "server":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validatePlanner()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid %s settings: %s", scope, strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres (PLANNER_STORE_DATABASE_URL)")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	return errs
}

func (c *Config) validatePlanner() []string {
	var errs []string
	p := c.Planner
	if p.SlotsPerDay <= 0 {
		errs = append(errs, "planner.slots_per_day must be > 0")
	}
	if p.WorkDays <= 0 || p.WorkDays > 7 {
		errs = append(errs, "planner.work_days must be between 1 and 7")
	}
	if p.GravityKM <= 0 {
		errs = append(errs, "planner.gravity_km must be > 0")
	}
	if p.TieBandKM < 0 {
		errs = append(errs, "planner.tie_band_km must be >= 0")
	}
	if p.EngagedPenalty < 0 || p.EngagedPenalty > 1 {
		errs = append(errs, "planner.engaged_penalty must be between 0 and 1")
	}
	return errs
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
