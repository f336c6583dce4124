package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"defiBacktest/internal/model"
)

// RunConfig holds configuration for the run command.
type RunConfig struct {
	LendingBars string
	Reserves    string
	PoolBars    string

	PoolToken0  string
	PoolToken1  string
	PoolFee     uint32
	Token0Quote bool
	Tokens      []string
	Balances    []string
	LiqProb     float64
	Seed        int64
	Strategy    string
	ActionsOut  string
	PGDSN       string
	RunID       string
	LogLevel    string
}

// LoadRun merges config file, environment variables, and flags into
// RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return RunConfig{}, err
	}

	v.SetDefault("pool-fee", uint32(500))
	v.SetDefault("token0-quote", true)
	v.SetDefault("liquidation-probability", 1.0)
	v.SetDefault("seed", int64(1))
	v.SetDefault("strategy", "hold")
	v.SetDefault("actions-out", "./data/actions.jsonl")
	v.SetDefault("run-id", "local")
	v.SetDefault("log-level", "info")

	cfg := RunConfig{
		LendingBars: v.GetString("lending-bars"),
		Reserves:    v.GetString("reserves"),
		PoolBars:    v.GetString("pool-bars"),
		PoolToken0:  v.GetString("pool-token0"),
		PoolToken1:  v.GetString("pool-token1"),
		PoolFee:     uint32(v.GetUint64("pool-fee")),
		Token0Quote: v.GetBool("token0-quote"),
		Tokens:      getStringSlice(v, "token"),
		Balances:    getStringSlice(v, "balance"),
		LiqProb:     v.GetFloat64("liquidation-probability"),
		Seed:        v.GetInt64("seed"),
		Strategy:    v.GetString("strategy"),
		ActionsOut:  v.GetString("actions-out"),
		PGDSN:       v.GetString("pg-dsn"),
		RunID:       v.GetString("run-id"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseTokens parses SYMBOL:decimals descriptors into tokens, keeping
// the input order.
func ParseTokens(inputs []string) ([]model.Token, error) {
	tokens := make([]model.Token, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		parts := strings.SplitN(input, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid token %q, want SYMBOL:decimals", input)
		}
		symbol := strings.TrimSpace(parts[0])
		if symbol == "" {
			return nil, fmt.Errorf("invalid token %q, empty symbol", input)
		}
		decimals, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token %q: %w", input, err)
		}
		if decimals < 0 || decimals > 30 {
			return nil, fmt.Errorf("invalid token %q, decimals out of range", input)
		}
		if _, ok := seen[symbol]; ok {
			return nil, fmt.Errorf("duplicate token %q", symbol)
		}
		seen[symbol] = struct{}{}
		tokens = append(tokens, model.Token{Symbol: symbol, Decimals: int32(decimals)})
	}
	return tokens, nil
}

// ParseBalances parses SYMBOL=amount pairs against a known token list.
func ParseBalances(inputs []string, tokens []model.Token) (map[model.Token]decimal.Decimal, error) {
	bySymbol := make(map[string]model.Token, len(tokens))
	for _, token := range tokens {
		bySymbol[token.Symbol] = token
	}

	out := make(map[model.Token]decimal.Decimal, len(inputs))
	for _, input := range inputs {
		parts := strings.SplitN(input, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid balance %q, want SYMBOL=amount", input)
		}
		symbol := strings.TrimSpace(parts[0])
		token, ok := bySymbol[symbol]
		if !ok {
			return nil, fmt.Errorf("balance for unknown token %q", symbol)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid balance %q: %w", input, err)
		}
		if amount.Sign() < 0 {
			return nil, fmt.Errorf("negative balance %q", input)
		}
		out[token] = amount
	}
	return out, nil
}
