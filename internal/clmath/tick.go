package clmath

import (
	"fmt"
	"math"
	"math/big"
)

// Tick bounds of a V3 pool.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// Q96 is 2^96, the sqrt-price fixed-point scale.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	// MinSqrtRatio / MaxSqrtRatio are the sqrt prices at MinTick and MaxTick.
	MinSqrtRatio    = big.NewInt(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	maskUint32 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 32), big.NewInt(1))

	// One Q128.128 multiplier per bit of |tick|, each (1.0001)^(-2^i/2).
	tickMultipliers = mustParseHexInts(
		"fffcb933bd6fad37aa2d162d1a594001",
		"fff97272373d413259a46990580e213a",
		"fff2e50f5f656932ef12357cf3c7fdcc",
		"ffe5caca7e10e4e61c3624eaa0941cd0",
		"ffcb9843d60f6159c9db58835c926644",
		"ff973b41fa98c081472e6896dfb254c0",
		"ff2ea16466c96a3843ec78b326b52861",
		"fe5dee046a99a2a811c461f1969c3053",
		"fcbe86c7900a88aedcffc83b479aa3a4",
		"f987a7253ac413176f2b074cf7815e54",
		"f3392b0822b70005940c7a398e4b70f3",
		"e7159475a2c29b7443b29c7fa6e889d9",
		"d097f3bdfd2022b8845ad8f792aa5825",
		"a9f746462d870fdf8a65dc1f90e061e5",
		"70d869a156d2a1b890bb3df62baf32f7",
		"31be135f97d08fd981231505542fcfa6",
		"9aa508b5b7a84e1c677de54f3e99bc9",
		"5d6af8dedb81196699c329225ee604",
		"2216e584f5fa1ea926041bedfe98",
		"48a170391f7dc42444e8fa2",
	)

	logSqrtBase = math.Log(math.Sqrt(1.0001))
)

func mustParseHexInts(values ...string) []*big.Int {
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		parsed, ok := new(big.Int).SetString(value, 16)
		if !ok {
			panic(fmt.Sprintf("invalid hex constant: %s", value))
		}
		out = append(out, parsed)
	}
	return out
}

// SqrtRatioAtTick returns floor(sqrt(1.0001^tick) * 2^96) as the exact
// on-chain Q64.96 value for any tick in [MinTick, MaxTick].
func SqrtRatioAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range", tick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-int64(tick))
	}

	ratio := new(big.Int).Lsh(big.NewInt(1), 128)
	if absTick&1 != 0 {
		ratio.Set(tickMultipliers[0])
	}
	for i := 1; i < len(tickMultipliers); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickMultipliers[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96 with round-up.
	remainder := new(big.Int).And(ratio, maskUint32)
	ratio.Rsh(ratio, 32)
	if remainder.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= the
// given Q64.96 sqrt price. A closed-form log estimate is corrected against
// SqrtRatioAtTick so the result is exact across the full range.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return 0, fmt.Errorf("sqrt price out of range: %v", sqrtPriceX96)
	}

	ratio, _ := new(big.Float).SetInt(sqrtPriceX96).Float64()
	scale, _ := new(big.Float).SetInt(Q96).Float64()
	tick := int32(math.Floor(math.Log(ratio/scale) / logSqrtBase))
	if tick < MinTick {
		tick = MinTick
	}
	if tick > MaxTick {
		tick = MaxTick
	}

	for tick < MaxTick {
		next, err := SqrtRatioAtTick(tick + 1)
		if err != nil {
			return 0, err
		}
		if next.Cmp(sqrtPriceX96) > 0 {
			break
		}
		tick++
	}
	for tick > MinTick {
		current, err := SqrtRatioAtTick(tick)
		if err != nil {
			return 0, err
		}
		if current.Cmp(sqrtPriceX96) <= 0 {
			break
		}
		tick--
	}
	return tick, nil
}

// NearestUsableTick snaps a tick to the closest multiple of the spacing,
// clamped inside the usable range.
func NearestUsableTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	rounded := int32(math.Round(float64(tick)/float64(spacing))) * spacing
	if rounded < MinTick {
		rounded += spacing
	}
	if rounded > MaxTick {
		rounded -= spacing
	}
	return rounded
}
