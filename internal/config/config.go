// Package config loads tool configuration from YAML, with environment
// variables layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"solana-burn-hook/internal/fee"
	"solana-burn-hook/internal/solana"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// LogConfig selects logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text or json
}

// HookConfig identifies the deployed hook and its fee rate.
type HookConfig struct {
	ProgramID      string `yaml:"program_id"`
	FeeNumerator   uint64 `yaml:"fee_numerator"`
	FeeDenominator uint64 `yaml:"fee_denominator"`
}

// SolanaConfig holds RPC and WebSocket endpoints.
type SolanaConfig struct {
	RPCEndpoint   string `yaml:"rpc_endpoint"`
	WSEndpoint    string `yaml:"ws_endpoint"`
	Commitment    string `yaml:"commitment"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	MaxRetries    int    `yaml:"max_retries"`
	ReconnectSec  int    `yaml:"reconnect_sec"`
	SubscribeSec  int    `yaml:"subscribe_timeout_sec"`
	MessageBuffer int    `yaml:"message_buffer"`
}

// StorageConfig holds backend DSNs. Empty values fall back to memory stores.
type StorageConfig struct {
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn"`
	RedisURL         string `yaml:"redis_url"`
	ProgressKey      string `yaml:"progress_key"`
}

// Config is the shared configuration of the cmd tools.
type Config struct {
	Log         LogConfig     `yaml:"logger"`
	Hook        HookConfig    `yaml:"hook"`
	Solana      SolanaConfig  `yaml:"solana"`
	Storage     StorageConfig `yaml:"storage"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Hook: HookConfig{
			FeeNumerator:   fee.ReferenceNumerator,
			FeeDenominator: fee.ReferenceDenominator,
		},
		Solana: SolanaConfig{
			Commitment:    "confirmed",
			TimeoutSec:    30,
			MaxRetries:    3,
			ReconnectSec:  1,
			SubscribeSec:  10,
			MessageBuffer: 1024,
		},
		MetricsAddr: ":9090",
	}
}

// Load reads path over the defaults (path may be empty), then applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables recognised by ApplyEnv.
const (
	EnvRPCEndpoint    = "SOLANA_RPC_ENDPOINT"
	EnvWSEndpoint     = "SOLANA_WS_ENDPOINT"
	EnvPostgresDSN    = "POSTGRES_DSN"
	EnvClickhouseDSN  = "CLICKHOUSE_DSN"
	EnvRedisURL       = "REDIS_URL"
	EnvHookProgramID  = "HOOK_PROGRAM_ID"
	EnvFeeNumerator   = "HOOK_FEE_NUMERATOR"
	EnvFeeDenominator = "HOOK_FEE_DENOMINATOR"
	EnvLogLevel       = "LOG_LEVEL"
	EnvMetricsAddr    = "METRICS_ADDR"
)

// ApplyEnv overrides fields from set environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvRPCEndpoint:   &c.Solana.RPCEndpoint,
		EnvWSEndpoint:    &c.Solana.WSEndpoint,
		EnvPostgresDSN:   &c.Storage.PostgresDSN,
		EnvClickhouseDSN: &c.Storage.ClickhouseDSN,
		EnvRedisURL:      &c.Storage.RedisURL,
		EnvHookProgramID: &c.Hook.ProgramID,
		EnvLogLevel:      &c.Log.Level,
		EnvMetricsAddr:   &c.MetricsAddr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	nums := map[string]*uint64{
		EnvFeeNumerator:   &c.Hook.FeeNumerator,
		EnvFeeDenominator: &c.Hook.FeeDenominator,
	}
	for key, dst := range nums {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks the fee rate, the program id and the log settings.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Hook.ProgramID != "" {
		if _, err := solana.ParsePublicKey(c.Hook.ProgramID); err != nil {
			return fmt.Errorf("%w: hook.program_id: %v", ErrInvalidConfig, err)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logger.format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Solana.TimeoutSec < 0 || c.Solana.MaxRetries < 0 {
		return fmt.Errorf("%w: negative solana timeout or retries", ErrInvalidConfig)
	}
	if c.Storage.PostgresMaxConns < 0 {
		return fmt.Errorf("%w: storage.postgres_max_conns %d", ErrInvalidConfig, c.Storage.PostgresMaxConns)
	}
	return nil
}

// Policy returns the configured fee policy.
func (c *Config) Policy() (fee.Policy, error) {
	return fee.NewPolicy(c.Hook.FeeNumerator, c.Hook.FeeDenominator)
}

// ProgramID parses the hook program id. It is required by every tool that talks to a cluster.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	if c.Hook.ProgramID == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: hook.program_id is required", ErrInvalidConfig)
	}
	return solana.ParsePublicKey(c.Hook.ProgramID)
}

// Timeout returns the RPC timeout.
func (s SolanaConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}
