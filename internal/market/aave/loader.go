package aave

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

// reserveColumns is the required header of the reserve parameter file,
// spelling and all. The file is semicolon-separated and percentage
// columns carry a trailing "%".
var reserveColumns = []string{
	"symbol", "canCollateral", "LTV", "liqThereshold", "liqBonus",
	"reserveFactor", "canBorrow", "optimalUtilization", "canBorrowStable",
	"debtCeiling", "supplyCap", "borrowCap", "eModeLtv",
	"eModeLiquidationThereshold", "eModeLiquidationBonus",
	"borrowableInIsolation",
}

// LoadReserveParams parses the semicolon-CSV reserve risk parameter
// file, keyed by token symbol.
func LoadReserveParams(path string) (map[string]model.ReserveParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reserve params: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read reserve params %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: reserve params %s is empty", market.ErrData, path)
	}
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range reserveColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: reserve params missing column %q", market.ErrData, name)
		}
	}

	out := make(map[string]model.ReserveParams, len(records)-1)
	for line, row := range records[1:] {
		field := func(name string) string { return strings.TrimSpace(row[index[name]]) }
		params := model.ReserveParams{Symbol: field("symbol")}
		if params.Symbol == "" {
			return nil, fmt.Errorf("%w: reserve params row %d has empty symbol", market.ErrData, line+2)
		}
		var parseErr error
		boolCol := func(name string) bool {
			v, err := parseBool(field(name))
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("row %d column %s: %w", line+2, name, err)
			}
			return v
		}
		decCol := func(name string) decimal.Decimal {
			v, err := parsePercent(field(name))
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("row %d column %s: %w", line+2, name, err)
			}
			return v
		}
		params.CanCollateral = boolCol("canCollateral")
		params.LTV = decCol("LTV")
		params.LiqThreshold = decCol("liqThereshold")
		params.LiqBonus = decCol("liqBonus")
		params.ReserveFactor = decCol("reserveFactor")
		params.CanBorrow = boolCol("canBorrow")
		params.OptimalUtilization = decCol("optimalUtilization")
		params.CanBorrowStable = boolCol("canBorrowStable")
		params.DebtCeiling = decCol("debtCeiling")
		params.SupplyCap = decCol("supplyCap")
		params.BorrowCap = decCol("borrowCap")
		params.EModeLTV = decCol("eModeLtv")
		params.EModeLiqThreshold = decCol("eModeLiquidationThereshold")
		params.EModeLiqBonus = decCol("eModeLiquidationBonus")
		params.BorrowableIsolation = boolCol("borrowableInIsolation")
		if parseErr != nil {
			return nil, fmt.Errorf("%w: reserve params: %v", market.ErrData, parseErr)
		}
		out[params.Symbol] = params
	}
	return out, nil
}

// BindReserves resolves symbol-keyed parameters onto the run's token
// set. Every token must have a parameter row.
func BindReserves(bySymbol map[string]model.ReserveParams, tokens []model.Token) (map[model.Token]model.ReserveParams, error) {
	out := make(map[model.Token]model.ReserveParams, len(tokens))
	for _, token := range tokens {
		params, ok := bySymbol[token.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: no reserve parameters for token %s", market.ErrData, token.Symbol)
		}
		out[token] = params
	}
	return out, nil
}

// statusColumns are the per-token lending bar columns, prefixed with
// "<symbol>_" in the file header. Values are on the on-chain 1e27 scale
// and normalized on ingest.
var statusColumns = []string{
	"liquidity_rate", "variable_borrow_rate", "stable_borrow_rate",
	"liquidity_index", "variable_borrow_index",
}

// LoadLendingBars parses a lending bar CSV into sorted bars covering
// the given tokens, plus the per-bar price snapshots carried by the
// `<symbol>_price` columns.
func LoadLendingBars(path string, tokens []model.Token) ([]model.LendingBar, model.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open lending bars: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read lending bars %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%w: lending bars %s has no rows", market.ErrData, path)
	}
	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	tsIdx, ok := index["timestamp"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: lending bars missing timestamp column", market.ErrData)
	}
	for _, token := range tokens {
		prefix := strings.ToLower(token.Symbol) + "_"
		for _, col := range append([]string{"price"}, statusColumns...) {
			if _, ok := index[prefix+col]; !ok {
				return nil, nil, fmt.Errorf("%w: lending bars missing column %q", market.ErrData, prefix+col)
			}
		}
	}

	bars := make([]model.LendingBar, 0, len(records)-1)
	prices := make(model.PriceSeries, len(records)-1)
	for line, row := range records[1:] {
		ts, err := parseBarTime(row[tsIdx])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: lending bars row %d: %v", market.ErrData, line+2, err)
		}
		bar := model.LendingBar{
			Timestamp: ts,
			Status:    make(map[model.Token]model.PoolStatus, len(tokens)),
		}
		snapshot := make(model.Prices, len(tokens))
		for _, token := range tokens {
			prefix := strings.ToLower(token.Symbol) + "_"
			var cellErr error
			cell := func(col string) decimal.Decimal {
				raw := strings.TrimSpace(row[index[prefix+col]])
				v, err := decimal.NewFromString(raw)
				if err != nil && cellErr == nil {
					cellErr = fmt.Errorf("row %d column %s%s: %w", line+2, prefix, col, err)
				}
				return v
			}
			status := model.PoolStatus{
				LiquidityRate:       cell("liquidity_rate").Shift(-27),
				VariableBorrowRate:  cell("variable_borrow_rate").Shift(-27),
				StableBorrowRate:    cell("stable_borrow_rate").Shift(-27),
				LiquidityIndex:      cell("liquidity_index").Shift(-27),
				VariableBorrowIndex: cell("variable_borrow_index").Shift(-27),
			}
			price := cell("price")
			if cellErr != nil {
				return nil, nil, fmt.Errorf("%w: lending bars: %v", market.ErrData, cellErr)
			}
			bar.Status[token] = status
			snapshot[token] = price
		}
		bars = append(bars, bar)
		prices[ts.Unix()] = snapshot
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, prices, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}

// parsePercent parses a decimal cell, dividing by 100 when the value
// carries a trailing "%".
func parsePercent(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.HasSuffix(s, "%") {
		v, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(s, "%")))
		if err != nil {
			return decimal.Decimal{}, err
		}
		return v.Shift(-2), nil
	}
	return decimal.NewFromString(s)
}

var barTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range barTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
