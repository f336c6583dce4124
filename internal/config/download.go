package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DownloadConfig holds configuration for the download command.
type DownloadConfig struct {
	RPCURL            string
	Chain             string
	Pool              string
	FromDate          string
	ToDate            string
	OutDir            string
	CacheDir          string
	EvictionAge       time.Duration
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// LoadDownload merges config file, environment variables, and flags
// into DownloadConfig.
func LoadDownload(cfgFile string, flags *pflag.FlagSet) (DownloadConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return DownloadConfig{}, err
	}

	v.SetDefault("chain", "ethereum")
	v.SetDefault("out", "./data/frames")
	v.SetDefault("eviction-age", 30*24*time.Hour)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	cfg := DownloadConfig{
		RPCURL:            v.GetString("rpc"),
		Chain:             v.GetString("chain"),
		Pool:              v.GetString("pool"),
		FromDate:          v.GetString("from-date"),
		ToDate:            v.GetString("to-date"),
		OutDir:            v.GetString("out"),
		CacheDir:          v.GetString("cache-dir"),
		EvictionAge:       v.GetDuration("eviction-age"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
