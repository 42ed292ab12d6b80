package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from an
// optional YAML file, overridden by environment variables, with
// defaults for anything left unset. Validated once at load time.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Source   SourceConfig   `yaml:"source"`
	Forecast ForecastConfig `yaml:"forecast"`
	Grid     GridConfig     `yaml:"grid"`
	Split    SplitConfig    `yaml:"split"`
	Sim      SimConfig      `yaml:"simulation"`
	Costs    CostConfig     `yaml:"costs"`
	Search   SearchConfig   `yaml:"search"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// HTTPConfig controls the observability server.
type HTTPConfig struct {
	Port    string `yaml:"port"`
	Enabled bool   `yaml:"enabled"`
}

// SourceConfig selects the snapshot source backing the aligner.
type SourceConfig struct {
	Kind string `yaml:"kind"` // "jsonl" or "sqlite"
	Path string `yaml:"path"` // directory of .jsonl files, or .db file
}

// ForecastConfig selects the optional model-based forecast provider.
// Mode "raw" uses the forecast probability carried by each snapshot row.
type ForecastConfig struct {
	Mode          string  `yaml:"mode"` // "raw" | "calibrated" | "http"
	ModelPath     string  `yaml:"model_path"`
	URL           string  `yaml:"url"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// GridConfig bounds the threshold grid.
type GridConfig struct {
	EntryMin  float64 `yaml:"entry_min"`
	EntryMax  float64 `yaml:"entry_max"`
	EntryStep float64 `yaml:"entry_step"`
	ExitMin   float64 `yaml:"exit_min"`
	ExitMax   float64 `yaml:"exit_max"`
	ExitStep  float64 `yaml:"exit_step"`
}

// SplitConfig controls the deterministic train/validation/test split.
type SplitConfig struct {
	TrainRatio      float64 `yaml:"train_ratio"`
	ValidationRatio float64 `yaml:"validation_ratio"`
	TestRatio       float64 `yaml:"test_ratio"`
	Seed            int64   `yaml:"seed"`
}

// SimConfig controls the per-event trading state machine.
type SimConfig struct {
	ExcludeFirstSeconds int64   `yaml:"exclude_first_seconds"`
	ExcludeLastSeconds  int64   `yaml:"exclude_last_seconds"`
	MinHoldSeconds      int64   `yaml:"min_hold_seconds"`
	FallbackExitPenalty float64 `yaml:"fallback_exit_penalty"`
	ForcedExitPenalty   float64 `yaml:"forced_exit_penalty"`
}

// CostConfig controls fees, slippage, and position sizing.
type CostConfig struct {
	BetAmount    float64 `yaml:"bet_amount"`
	EnableFees   bool    `yaml:"enable_fees"`
	FeeRate      float64 `yaml:"fee_rate"`
	SlippageRate float64 `yaml:"slippage_rate"`
}

// SearchConfig controls the grid-search orchestrator and selection.
type SearchConfig struct {
	TopN          int `yaml:"top_n"`
	MinTradeCount int `yaml:"min_trade_count"`
	WorkerCount   int `yaml:"worker_count"`
}

// StorageConfig selects where run results are persisted.
type StorageConfig struct {
	Mode         string `yaml:"mode"` // "postgres" or "console"
	PostgresHost string `yaml:"postgres_host"`
	PostgresPort string `yaml:"postgres_port"`
	PostgresUser string `yaml:"postgres_user"`
	PostgresPass string `yaml:"postgres_password"`
	PostgresDB   string `yaml:"postgres_db"`
	PostgresSSL  string `yaml:"postgres_sslmode"`
}

// CacheConfig sizes the ristretto caches.
type CacheConfig struct {
	TimelineMaxItems int64 `yaml:"timeline_max_items"`
	ModelMaxItems    int64 `yaml:"model_max_items"`
}

// Load reads the optional YAML file at path, applies environment
// overrides and defaults, and validates the result. An empty path skips
// the file entirely.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.HTTP.Port, "HTTP_PORT")
	setString(&cfg.Source.Kind, "SOURCE_KIND")
	setString(&cfg.Source.Path, "SOURCE_PATH")
	setString(&cfg.Forecast.Mode, "FORECAST_MODE")
	setString(&cfg.Forecast.ModelPath, "FORECAST_MODEL_PATH")
	setString(&cfg.Forecast.URL, "FORECAST_URL")
	setString(&cfg.Storage.Mode, "STORAGE_MODE")
	setString(&cfg.Storage.PostgresHost, "POSTGRES_HOST")
	setString(&cfg.Storage.PostgresPort, "POSTGRES_PORT")
	setString(&cfg.Storage.PostgresUser, "POSTGRES_USER")
	setString(&cfg.Storage.PostgresPass, "POSTGRES_PASSWORD")
	setString(&cfg.Storage.PostgresDB, "POSTGRES_DB")
	setString(&cfg.Storage.PostgresSSL, "POSTGRES_SSLMODE")
	setInt64(&cfg.Split.Seed, "SPLIT_SEED")
	setInt(&cfg.Search.WorkerCount, "WORKER_COUNT")
	setInt(&cfg.Search.TopN, "TOP_N")
	setInt(&cfg.Search.MinTradeCount, "MIN_TRADE_COUNT")
	setFloat(&cfg.Costs.BetAmount, "BET_AMOUNT")
	setFloat(&cfg.Costs.SlippageRate, "SLIPPAGE_RATE")
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = "jsonl"
	}
	if cfg.Forecast.Mode == "" {
		cfg.Forecast.Mode = "raw"
	}
	if cfg.Forecast.RatePerSecond <= 0 {
		cfg.Forecast.RatePerSecond = 20
	}
	if cfg.Forecast.Burst <= 0 {
		cfg.Forecast.Burst = 5
	}
	if cfg.Grid.EntryMin == 0 && cfg.Grid.EntryMax == 0 {
		cfg.Grid.EntryMin = 0.03
		cfg.Grid.EntryMax = 0.10
	}
	if cfg.Grid.EntryStep == 0 {
		cfg.Grid.EntryStep = 0.01
	}
	if cfg.Grid.ExitMax == 0 {
		cfg.Grid.ExitMax = 0.03
	}
	if cfg.Grid.ExitStep == 0 {
		cfg.Grid.ExitStep = 0.005
	}
	if cfg.Split.TrainRatio == 0 && cfg.Split.ValidationRatio == 0 && cfg.Split.TestRatio == 0 {
		cfg.Split.TrainRatio = 0.70
		cfg.Split.ValidationRatio = 0.15
		cfg.Split.TestRatio = 0.15
	}
	if cfg.Split.Seed == 0 {
		cfg.Split.Seed = 42
	}
	if cfg.Sim.MinHoldSeconds == 0 {
		cfg.Sim.MinHoldSeconds = 60
	}
	if cfg.Sim.FallbackExitPenalty == 0 {
		cfg.Sim.FallbackExitPenalty = 0.01
	}
	if cfg.Sim.ForcedExitPenalty == 0 {
		cfg.Sim.ForcedExitPenalty = 0.03
	}
	if cfg.Costs.BetAmount == 0 {
		cfg.Costs.BetAmount = 20
	}
	if cfg.Costs.FeeRate == 0 {
		cfg.Costs.FeeRate = 0.07
	}
	if cfg.Search.TopN == 0 {
		cfg.Search.TopN = 10
	}
	if cfg.Search.MinTradeCount == 0 {
		cfg.Search.MinTradeCount = 20
	}
	if cfg.Search.WorkerCount == 0 {
		cfg.Search.WorkerCount = runtime.NumCPU()
	}
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = "console"
	}
	if cfg.Storage.PostgresHost == "" {
		cfg.Storage.PostgresHost = "localhost"
	}
	if cfg.Storage.PostgresPort == "" {
		cfg.Storage.PostgresPort = "5432"
	}
	if cfg.Storage.PostgresUser == "" {
		cfg.Storage.PostgresUser = "probedge"
	}
	if cfg.Storage.PostgresDB == "" {
		cfg.Storage.PostgresDB = "probedge"
	}
	if cfg.Storage.PostgresSSL == "" {
		cfg.Storage.PostgresSSL = "disable"
	}
	if cfg.Cache.TimelineMaxItems == 0 {
		cfg.Cache.TimelineMaxItems = 4096
	}
	if cfg.Cache.ModelMaxItems == 0 {
		cfg.Cache.ModelMaxItems = 64
	}
}

// Validate checks configuration before any simulation work begins. It
// fails fast with the offending field in the message.
func (c *Config) Validate() error {
	if c.Grid.EntryMin <= 0 {
		return fmt.Errorf("grid.entry_min must be > 0, got %g", c.Grid.EntryMin)
	}
	if c.Grid.EntryMax < c.Grid.EntryMin {
		return fmt.Errorf("grid.entry_max (%g) must be >= grid.entry_min (%g)", c.Grid.EntryMax, c.Grid.EntryMin)
	}
	if c.Grid.EntryStep <= 0 {
		return fmt.Errorf("grid.entry_step must be > 0, got %g", c.Grid.EntryStep)
	}
	if c.Grid.ExitMin < 0 {
		return fmt.Errorf("grid.exit_min must be >= 0, got %g", c.Grid.ExitMin)
	}
	if c.Grid.ExitMax < c.Grid.ExitMin {
		return fmt.Errorf("grid.exit_max (%g) must be >= grid.exit_min (%g)", c.Grid.ExitMax, c.Grid.ExitMin)
	}
	if c.Grid.ExitStep <= 0 {
		return fmt.Errorf("grid.exit_step must be > 0, got %g", c.Grid.ExitStep)
	}

	sum := c.Split.TrainRatio + c.Split.ValidationRatio + c.Split.TestRatio
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("split ratios must sum to 1.0, got %g (train=%g validation=%g test=%g)",
			sum, c.Split.TrainRatio, c.Split.ValidationRatio, c.Split.TestRatio)
	}
	if c.Split.TrainRatio <= 0 {
		return fmt.Errorf("split.train_ratio must be > 0, got %g", c.Split.TrainRatio)
	}
	if c.Split.ValidationRatio < 0 || c.Split.TestRatio < 0 {
		return fmt.Errorf("split.validation_ratio and split.test_ratio must be >= 0, got %g and %g",
			c.Split.ValidationRatio, c.Split.TestRatio)
	}

	if c.Sim.ExcludeFirstSeconds < 0 {
		return fmt.Errorf("simulation.exclude_first_seconds must be >= 0, got %d", c.Sim.ExcludeFirstSeconds)
	}
	if c.Sim.ExcludeLastSeconds < 0 {
		return fmt.Errorf("simulation.exclude_last_seconds must be >= 0, got %d", c.Sim.ExcludeLastSeconds)
	}
	if c.Sim.MinHoldSeconds < 0 {
		return fmt.Errorf("simulation.min_hold_seconds must be >= 0, got %d", c.Sim.MinHoldSeconds)
	}
	if c.Sim.FallbackExitPenalty < 0 || c.Sim.ForcedExitPenalty < 0 {
		return fmt.Errorf("simulation penalties must be >= 0, got fallback=%g forced=%g",
			c.Sim.FallbackExitPenalty, c.Sim.ForcedExitPenalty)
	}

	if c.Costs.BetAmount <= 0 {
		return fmt.Errorf("costs.bet_amount must be > 0, got %g", c.Costs.BetAmount)
	}
	if c.Costs.FeeRate < 0 || c.Costs.FeeRate >= 1 {
		return fmt.Errorf("costs.fee_rate must be in [0,1), got %g", c.Costs.FeeRate)
	}
	if c.Costs.SlippageRate < 0 || c.Costs.SlippageRate >= 1 {
		return fmt.Errorf("costs.slippage_rate must be in [0,1), got %g", c.Costs.SlippageRate)
	}

	if c.Search.TopN <= 0 {
		return fmt.Errorf("search.top_n must be > 0, got %d", c.Search.TopN)
	}
	if c.Search.MinTradeCount < 0 {
		return fmt.Errorf("search.min_trade_count must be >= 0, got %d", c.Search.MinTradeCount)
	}
	if c.Search.WorkerCount <= 0 {
		return fmt.Errorf("search.worker_count must be > 0, got %d", c.Search.WorkerCount)
	}

	if c.Source.Kind != "jsonl" && c.Source.Kind != "sqlite" {
		return fmt.Errorf("source.kind must be 'jsonl' or 'sqlite', got %q", c.Source.Kind)
	}
	if c.Forecast.Mode != "raw" && c.Forecast.Mode != "calibrated" && c.Forecast.Mode != "http" {
		return fmt.Errorf("forecast.mode must be 'raw', 'calibrated', or 'http', got %q", c.Forecast.Mode)
	}
	if c.Forecast.Mode == "calibrated" && c.Forecast.ModelPath == "" {
		return fmt.Errorf("forecast.model_path is required when forecast.mode is 'calibrated'")
	}
	if c.Forecast.Mode == "http" && c.Forecast.URL == "" {
		return fmt.Errorf("forecast.url is required when forecast.mode is 'http'")
	}
	if c.Storage.Mode != "console" && c.Storage.Mode != "postgres" {
		return fmt.Errorf("storage.mode must be 'console' or 'postgres', got %q", c.Storage.Mode)
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
