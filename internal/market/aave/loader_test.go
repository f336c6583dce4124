package aave

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

const reserveCSV = `symbol;canCollateral;LTV;liqThereshold;liqBonus;reserveFactor;canBorrow;optimalUtilization;canBorrowStable;debtCeiling;supplyCap;borrowCap;eModeLtv;eModeLiquidationThereshold;eModeLiquidationBonus;borrowableInIsolation
USDC;True;77%;80%;5%;10%;True;0.9;True;0;2000000000;0;0%;0%;0%;True
WETH;True;80%;82.5%;5%;15%;True;0.8;False;0;1800000;1400000;90%;93%;1%;False
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadReserveParams(t *testing.T) {
	path := writeTemp(t, "reserves.csv", reserveCSV)
	params, err := LoadReserveParams(path)
	if err != nil {
		t.Fatalf("LoadReserveParams: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("parsed %d rows, want 2", len(params))
	}

	u := params["USDC"]
	if !u.CanCollateral || !u.CanBorrow || !u.CanBorrowStable || !u.BorrowableIsolation {
		t.Fatalf("USDC flags wrong: %+v", u)
	}
	if !u.LTV.Equal(dec("0.77")) {
		t.Fatalf("USDC LTV = %s, want 0.77", u.LTV)
	}
	if !u.LiqThreshold.Equal(dec("0.8")) {
		t.Fatalf("USDC liq threshold = %s, want 0.8", u.LiqThreshold)
	}
	if !u.LiqBonus.Equal(dec("0.05")) {
		t.Fatalf("USDC liq bonus = %s, want 0.05", u.LiqBonus)
	}
	if !u.OptimalUtilization.Equal(dec("0.9")) {
		t.Fatalf("USDC optimal utilization = %s, want 0.9", u.OptimalUtilization)
	}

	w := params["WETH"]
	if w.CanBorrowStable {
		t.Fatal("WETH should not permit stable borrowing")
	}
	if !w.LiqThreshold.Equal(dec("0.825")) {
		t.Fatalf("WETH liq threshold = %s, want 0.825", w.LiqThreshold)
	}
	if !w.EModeLTV.Equal(dec("0.9")) {
		t.Fatalf("WETH e-mode LTV = %s, want 0.9", w.EModeLTV)
	}
}

func TestLoadReserveParamsMissingColumn(t *testing.T) {
	path := writeTemp(t, "reserves.csv",
		"symbol;canCollateral;LTV\nUSDC;True;77%\n")
	_, err := LoadReserveParams(path)
	if !errors.Is(err, market.ErrData) {
		t.Fatalf("error = %v, want data error", err)
	}
}

func TestBindReserves(t *testing.T) {
	path := writeTemp(t, "reserves.csv", reserveCSV)
	params, err := LoadReserveParams(path)
	if err != nil {
		t.Fatalf("LoadReserveParams: %v", err)
	}
	bound, err := BindReserves(params, []model.Token{usdc, weth})
	if err != nil {
		t.Fatalf("BindReserves: %v", err)
	}
	if !bound[weth].LTV.Equal(dec("0.8")) {
		t.Fatalf("WETH LTV = %s, want 0.8", bound[weth].LTV)
	}

	dai := model.Token{Symbol: "DAI", Decimals: 18}
	if _, err := BindReserves(params, []model.Token{dai}); !errors.Is(err, market.ErrData) {
		t.Fatalf("error = %v, want data error for unbound token", err)
	}
}

const lendingCSV = `timestamp,usdc_price,usdc_liquidity_rate,usdc_variable_borrow_rate,usdc_stable_borrow_rate,usdc_liquidity_index,usdc_variable_borrow_index
2024-03-01 00:02:00,1.0001,30000000000000000000000000,45000000000000000000000000,60000000000000000000000000,1020000000000000000000000000,1040000000000000000000000000
2024-03-01 00:01:00,0.9999,30000000000000000000000000,45000000000000000000000000,60000000000000000000000000,1010000000000000000000000000,1030000000000000000000000000
`

func TestLoadLendingBars(t *testing.T) {
	path := writeTemp(t, "bars.csv", lendingCSV)
	bars, prices, err := LoadLendingBars(path, []model.Token{usdc})
	if err != nil {
		t.Fatalf("LoadLendingBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("parsed %d bars, want 2", len(bars))
	}

	// Rows come back sorted regardless of file order.
	first := bars[0]
	if want := time.Date(2024, 3, 1, 0, 1, 0, 0, time.UTC); !first.Timestamp.Equal(want) {
		t.Fatalf("first bar at %s, want %s", first.Timestamp, want)
	}
	status := first.Status[usdc]
	if !status.LiquidityRate.Equal(dec("0.03")) {
		t.Fatalf("liquidity rate = %s, want 0.03", status.LiquidityRate)
	}
	if !status.LiquidityIndex.Equal(dec("1.01")) {
		t.Fatalf("liquidity index = %s, want 1.01", status.LiquidityIndex)
	}
	if !bars[1].Status[usdc].VariableBorrowIndex.Equal(dec("1.04")) {
		t.Fatalf("second variable borrow index = %s, want 1.04", bars[1].Status[usdc].VariableBorrowIndex)
	}

	snapshot, err := prices.At(first.Timestamp)
	if err != nil {
		t.Fatalf("prices.At: %v", err)
	}
	if !snapshot[usdc].Equal(dec("0.9999")) {
		t.Fatalf("price = %s, want 0.9999", snapshot[usdc])
	}
}

func TestLoadLendingBarsMissingTokenColumns(t *testing.T) {
	path := writeTemp(t, "bars.csv", lendingCSV)
	_, _, err := LoadLendingBars(path, []model.Token{usdc, weth})
	if !errors.Is(err, market.ErrData) {
		t.Fatalf("error = %v, want data error", err)
	}
}
