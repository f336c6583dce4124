package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const secondsPerYear = 31536000

// Metrics summarizes a net-value series. Statistics are float64; the
// underlying series stays decimal.
type Metrics struct {
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	SharpeRatio      float64
}

// ComputeMetrics derives performance statistics from a run's net-value
// series. The series must have at least two points and start positive.
func ComputeMetrics(timestamps []time.Time, values []decimal.Decimal) (Metrics, error) {
	if len(values) < 2 || len(timestamps) != len(values) {
		return Metrics{}, fmt.Errorf("need at least two aligned points, have %d/%d", len(timestamps), len(values))
	}
	series := make([]float64, len(values))
	for i, v := range values {
		f, _ := v.Float64()
		series[i] = f
	}
	first, last := series[0], series[len(series)-1]
	if first <= 0 {
		return Metrics{}, fmt.Errorf("series starts non-positive (%v)", first)
	}

	m := Metrics{TotalReturn: last/first - 1}
	span := timestamps[len(timestamps)-1].Sub(timestamps[0]).Seconds()
	if span > 0 {
		years := span / secondsPerYear
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, 1/years) - 1
	}
	m.MaxDrawdown = MaxDrawdown(series)

	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] > 0 {
			returns = append(returns, series[i]/series[i-1]-1)
		}
	}
	if len(returns) > 1 && span > 0 {
		mean := 0.0
		for _, r := range returns {
			mean += r
		}
		mean /= float64(len(returns))
		variance := 0.0
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns) - 1)
		if std := math.Sqrt(variance); std > 0 {
			periodsPerYear := secondsPerYear / (span / float64(len(returns)))
			m.SharpeRatio = mean / std * math.Sqrt(periodsPerYear)
		}
	}
	return m, nil
}

// MaxDrawdown is the largest peak-to-trough loss fraction of the series.
func MaxDrawdown(series []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
