// Package fconfig loads faucetd's configuration from a TOML file, with
// environment-variable overrides for container deployments. Every key
// named in SPEC_FULL.md §6 has a field here; token amounts are parsed as
// whole tokens and converted to micro-tokens once, at load time.
package fconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// MicroPerToken is the fixed-point scale between whole tokens and the
// micro-token accounting unit used everywhere internally.
const MicroPerToken = 1_000_000

// Config is the fully-resolved faucetd configuration, after TOML load and
// environment override.
type Config struct {
	Port int `toml:"port"`

	BlockTimeMS   int64 `toml:"block_time_ms"`
	DifficultyBits int  `toml:"difficulty_bits"`
	MaxSharesPB   int   `toml:"max_shares_per_block"`

	WithdrawFeeTokens  int64 `toml:"withdraw_fee_tokens"`
	PoolARewardTokens  int64 `toml:"pool_a_reward_tokens"`
	PoolBRewardTokens  int64 `toml:"pool_b_reward_tokens"`
	PoolCRewardTokens  int64 `toml:"pool_c_reward_tokens"`

	DatabasePath string `toml:"database_path"`

	RateLimitGeneralWindow    time.Duration `toml:"-"`
	RateLimitGeneralWindowRaw string        `toml:"rate_limit_general_window"`
	RateLimitGeneralBurst     int           `toml:"rate_limit_general_burst"`

	RateLimitSubmitWindow    time.Duration `toml:"-"`
	RateLimitSubmitWindowRaw string        `toml:"rate_limit_submit_window"`
	RateLimitSubmitBurst     int           `toml:"rate_limit_submit_burst"`

	PayoutPollInterval    time.Duration `toml:"-"`
	PayoutPollIntervalRaw string        `toml:"payout_poll_interval"`
	PayoutMaxAttempts     int           `toml:"payout_max_attempts"`
	PayoutWorkers         int           `toml:"payout_workers"`

	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`

	// LogFilePath enables rotated file logging alongside stderr when set.
	LogFilePath       string `toml:"log_file_path"`
	LogFileMaxSizeMB  int    `toml:"log_file_max_size_mb"`
	LogFileMaxBackups int    `toml:"log_file_max_backups"`
	LogFileMaxAgeDays int    `toml:"log_file_max_age_days"`
}

// Defaults returns the configuration defaults named in SPEC_FULL.md §6.
func Defaults() Config {
	return Config{
		Port:           8080,
		BlockTimeMS:    400,
		DifficultyBits: 18,
		MaxSharesPB:    500,

		WithdrawFeeTokens: 1000,
		PoolARewardTokens: 50,
		PoolBRewardTokens: 50,
		PoolCRewardTokens: 0,

		DatabasePath: "faucet.db",

		RateLimitGeneralWindowRaw: "1m",
		RateLimitGeneralBurst:     120,
		RateLimitSubmitWindowRaw:  "1m",
		RateLimitSubmitBurst:      40,

		PayoutPollIntervalRaw: "15s",
		PayoutMaxAttempts:     5,
		PayoutWorkers:         4,

		LogLevel: "info",
		LogJSON:  false,

		LogFilePath:       "",
		LogFileMaxSizeMB:  100,
		LogFileMaxBackups: 3,
		LogFileMaxAgeDays: 28,
	}
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides, validates, and resolves derived fields (micro-token amounts,
// parsed durations).
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("fconfig: decode %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	var err error
	if c.RateLimitGeneralWindow, err = time.ParseDuration(c.RateLimitGeneralWindowRaw); err != nil {
		return fmt.Errorf("fconfig: rate_limit_general_window: %w", err)
	}
	if c.RateLimitSubmitWindow, err = time.ParseDuration(c.RateLimitSubmitWindowRaw); err != nil {
		return fmt.Errorf("fconfig: rate_limit_submit_window: %w", err)
	}
	if c.PayoutPollInterval, err = time.ParseDuration(c.PayoutPollIntervalRaw); err != nil {
		return fmt.Errorf("fconfig: payout_poll_interval: %w", err)
	}
	return nil
}

// Validate rejects configurations that would violate a spec invariant
// before the engine ever boots.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("fconfig: invalid port %d", c.Port)
	}
	if c.BlockTimeMS <= 0 {
		return fmt.Errorf("fconfig: block_time_ms must be positive")
	}
	if c.DifficultyBits < 0 || c.DifficultyBits > 256 {
		return fmt.Errorf("fconfig: difficulty_bits must be in [0, 256]")
	}
	if c.MaxSharesPB <= 0 {
		return fmt.Errorf("fconfig: max_shares_per_block must be positive")
	}
	if c.WithdrawFeeTokens < 0 || c.PoolARewardTokens < 0 || c.PoolBRewardTokens < 0 || c.PoolCRewardTokens < 0 {
		return fmt.Errorf("fconfig: reward and fee amounts must be non-negative")
	}
	if c.LogFilePath != "" && c.LogFileMaxSizeMB <= 0 {
		return fmt.Errorf("fconfig: log_file_max_size_mb must be positive when log_file_path is set")
	}
	return nil
}

// WithdrawFeeMicro returns the configured withdrawal fee in micro-tokens.
func (c Config) WithdrawFeeMicro() int64 { return c.WithdrawFeeTokens * MicroPerToken }

// PoolAMicro returns the configured Pool A budget in micro-tokens.
func (c Config) PoolAMicro() int64 { return c.PoolARewardTokens * MicroPerToken }

// PoolBMicro returns the configured Pool B budget in micro-tokens.
func (c Config) PoolBMicro() int64 { return c.PoolBRewardTokens * MicroPerToken }

// PoolCMicro returns the configured Pool C budget in micro-tokens.
func (c Config) PoolCMicro() int64 { return c.PoolCRewardTokens * MicroPerToken }

// BlockTime returns the block interval as a time.Duration.
func (c Config) BlockTime() time.Duration {
	return time.Duration(c.BlockTimeMS) * time.Millisecond
}

// applyEnvOverrides maps environment variable names onto setters, applied after
// the TOML file so operators can override a baked-in config image without
// a rebuild.
func applyEnvOverrides(c *Config) {
	if v, ok := os.LookupEnv("PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v, ok := os.LookupEnv("BLOCK_TIME_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.BlockTimeMS = n
		}
	}
	if v, ok := os.LookupEnv("DIFFICULTY_BITS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.DifficultyBits = n
		}
	}
	if v, ok := os.LookupEnv("MAX_SHARES_PB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSharesPB = n
		}
	}
	if v, ok := os.LookupEnv("WITHDRAW_FEE_TOKENS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.WithdrawFeeTokens = n
		}
	}
	if v, ok := os.LookupEnv("POOL_A_REWARD_TOKENS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.PoolARewardTokens = n
		}
	}
	if v, ok := os.LookupEnv("POOL_B_REWARD_TOKENS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.PoolBRewardTokens = n
		}
	}
	if v, ok := os.LookupEnv("POOL_C_REWARD_TOKENS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.PoolCRewardTokens = n
		}
	}
	if v, ok := os.LookupEnv("DATABASE_PATH"); ok {
		c.DatabasePath = v
	}
	if v, ok := os.LookupEnv("LOG_FILE_PATH"); ok {
		c.LogFilePath = v
	}
	if v, ok := os.LookupEnv("LOG_FILE_MAX_SIZE_MB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogFileMaxSizeMB = n
		}
	}
	if v, ok := os.LookupEnv("LOG_FILE_MAX_BACKUPS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogFileMaxBackups = n
		}
	}
	if v, ok := os.LookupEnv("LOG_FILE_MAX_AGE_DAYS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.LogFileMaxAgeDays = n
		}
	}
}
