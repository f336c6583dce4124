package config

import (
	"github.com/spf13/pflag"
)

// BarsConfig holds configuration for the bars command.
type BarsConfig struct {
	Inputs   []string
	Out      string
	LogLevel string
}

// LoadBars merges config file, environment variables, and flags into
// BarsConfig.
func LoadBars(cfgFile string, flags *pflag.FlagSet) (BarsConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return BarsConfig{}, err
	}

	v.SetDefault("out", "./data/bars.csv")
	v.SetDefault("log-level", "info")

	cfg := BarsConfig{
		Inputs:   getStringSlice(v, "in"),
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
