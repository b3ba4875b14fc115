package math

import (
	"math/big"
	"sync"
)

// All monetary math is int64 with widening through big.Int for intermediate
// products. Division truncates toward zero unless a rounding mode says
// otherwise, matching how amounts are quantized everywhere else in the
// system.

var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0)
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b widened to big.Int to prevent overflow.
// The caller must return the result to the pool via DivideInt128 or
// putInt128.
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

type RoundingMode int

const (
	RoundDown RoundingMode = iota // truncate toward zero (default)
	RoundHalfEven
	RoundUp
)

// DivideInt128 performs numerator / denominator and releases numerator back
// to the pool.
func DivideInt128(numerator *big.Int, denominator int64, mode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.QuoRem(numerator, denom, remainder)
	result := quotient.Int64()

	switch mode {
	case RoundUp:
		if remainder.Sign() != 0 {
			result++
		}
	case RoundHalfEven:
		half := big.NewInt(denominator / 2)
		cmp := remainder.CmpAbs(half)
		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 && result%2 != 0 {
			result++
		}
	}

	putInt128(quotient)
	putInt128(remainder)
	putInt128(numerator)

	return result
}

// PremiumForScore computes the periodic premium for a risk score:
//
//	premium = basePremium * score / 50
//
// so a score of 50 pays exactly the base premium and the charge scales
// linearly in both directions. Truncating division.
func PremiumForScore(basePremium int64, score int) int64 {
	return DivideInt128(MultiplyInt128(basePremium, int64(score)), 50, RoundDown)
}

// AdjustmentFactor quantifies how far a score moved, as a percentage of the
// smaller score. The ratio is taken in whichever direction exceeds 100, so
// both a doubling and a halving yield 200.
func AdjustmentFactor(oldScore, newScore int) int64 {
	if newScore > oldScore {
		return DivideInt128(MultiplyInt128(int64(newScore), 100), int64(oldScore), RoundDown)
	}
	return DivideInt128(MultiplyInt128(int64(oldScore), 100), int64(newScore), RoundDown)
}

// RiskFactor is the surplus weighting for a score: safer drivers (lower
// scores) earn a larger share.
func RiskFactor(score int) int64 {
	return int64(100 - score)
}

// TimeFactor weights surplus by score freshness: a score last updated
// strictly before the distribution instant earns full weight, one updated
// at or after it earns half.
func TimeFactor(lastUpdatedMicros, nowMicros int64) int64 {
	if lastUpdatedMicros < nowMicros {
		return 100
	}
	return 50
}

// MemberShare computes one member's cut of a surplus distribution:
//
//	share = total * riskFactor * timeFactor / 10000
//
// Truncating, so the sum of shares never exceeds the distributable total.
func MemberShare(total, riskFactor, timeFactor int64) int64 {
	product := MultiplyInt128(total, riskFactor)
	product.Mul(product, big.NewInt(timeFactor))
	return DivideInt128(product, 10_000, RoundDown)
}
