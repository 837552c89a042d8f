package fconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BlockTimeMS != 400 || cfg.DifficultyBits != 18 || cfg.MaxSharesPB != 500 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WithdrawFeeMicro() != 1000*MicroPerToken {
		t.Fatalf("WithdrawFeeMicro = %d, want %d", cfg.WithdrawFeeMicro(), 1000*MicroPerToken)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faucetd.toml")
	contents := `
block_time_ms = 1000
difficulty_bits = 4
max_shares_per_block = 2
pool_c_reward_tokens = 9
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BlockTimeMS != 1000 || cfg.DifficultyBits != 4 || cfg.MaxSharesPB != 2 {
		t.Fatalf("unexpected config after file load: %+v", cfg)
	}
	if cfg.PoolCMicro() != 9*MicroPerToken {
		t.Fatalf("PoolCMicro = %d, want %d", cfg.PoolCMicro(), 9*MicroPerToken)
	}
}

func TestEnvOverridesApplyOverDefaults(t *testing.T) {
	t.Setenv("DIFFICULTY_BITS", "8")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DifficultyBits != 8 {
		t.Fatalf("expected env override to win, got %d", cfg.DifficultyBits)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Defaults()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an invalid port")
	}
}

func TestBlockTimeDuration(t *testing.T) {
	cfg := Defaults()
	if cfg.BlockTime().Milliseconds() != cfg.BlockTimeMS {
		t.Fatalf("BlockTime() mismatch: %v vs %dms", cfg.BlockTime(), cfg.BlockTimeMS)
	}
}

func TestLogFilePathDefaultsToDisabled(t *testing.T) {
	cfg := Defaults()
	if cfg.LogFilePath != "" {
		t.Fatalf("expected log_file_path to default empty, got %q", cfg.LogFilePath)
	}
	if cfg.LogFileMaxSizeMB <= 0 {
		t.Fatalf("expected a positive default log_file_max_size_mb, got %d", cfg.LogFileMaxSizeMB)
	}
}

func TestValidateRejectsZeroMaxSizeWithLogFilePath(t *testing.T) {
	cfg := Defaults()
	cfg.LogFilePath = "/tmp/faucetd.log"
	cfg.LogFileMaxSizeMB = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error when log_file_path is set with a zero max size")
	}
}

func TestEnvOverrideSetsLogFilePath(t *testing.T) {
	t.Setenv("LOG_FILE_PATH", "/var/log/faucetd.log")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogFilePath != "/var/log/faucetd.log" {
		t.Fatalf("expected env override to win, got %q", cfg.LogFilePath)
	}
}
