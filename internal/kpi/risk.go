/**
 * @description
 * Risk metrics over a user's portfolio value series: maximum drawdown,
 * Sharpe ratio, and Sortino ratio. The series is the append-only daily
 * snapshot history, oldest first. Returns are simple day-over-day returns;
 * variance is population variance; annualization assumes daily observations
 * (365 periods per year).
 *
 * @dependencies
 * - github.com/shopspring/decimal
 */

package kpi

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const periodsPerYear = 365.0

// maxMetric stands in for an infinite ratio when there is upside and no
// downside at all; decimal has no +Inf.
var maxMetric = decimal.NewFromInt(math.MaxInt64)

// MaxDrawdownPct returns the largest peak-to-trough decline in percent.
// A series that never declines, or has fewer than two points, yields zero.
// Portfolio values are magnitudes; a negative one means the snapshot history
// is broken and is a hard error.
func MaxDrawdownPct(values []decimal.Decimal) (decimal.Decimal, error) {
	maxDrawdown := decimal.Zero
	peak := decimal.Zero

	for i, v := range values {
		if v.IsNegative() {
			return decimal.Zero, fmt.Errorf("portfolio value at index %d is negative (%s)", i, v)
		}
		if v.GreaterThan(peak) {
			peak = v
		}
		if peak.IsPositive() {
			drawdown := peak.Sub(v).Div(peak).Mul(decimal.NewFromInt(100))
			if drawdown.GreaterThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}
	}

	return maxDrawdown, nil
}

// dailyReturns converts the value series into simple day-over-day returns.
// A zero or negative previous value makes the return undefined and is an
// error, not a skip: it means the snapshot history itself is broken.
func dailyReturns(values []decimal.Decimal) ([]float64, error) {
	if len(values) < 2 {
		return nil, nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if !prev.IsPositive() {
			return nil, fmt.Errorf("portfolio value at index %d is %s, cannot compute return", i-1, prev)
		}
		if values[i].IsNegative() {
			return nil, fmt.Errorf("portfolio value at index %d is negative (%s)", i, values[i])
		}
		r := values[i].Sub(prev).Div(prev)
		returns = append(returns, r.InexactFloat64())
	}
	return returns, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func populationVariance(xs []float64, m float64) float64 {
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// SharpeRatio computes the annualized Sharpe ratio of the value series
// against the given annualized risk-free rate. Fewer than two points or a
// flat series yield zero rather than an error.
func SharpeRatio(values []decimal.Decimal, riskFreeRate float64) (decimal.Decimal, error) {
	returns, err := dailyReturns(values)
	if err != nil {
		return decimal.Zero, err
	}
	if len(returns) == 0 {
		return decimal.Zero, nil
	}

	m := mean(returns)
	variance := populationVariance(returns, m)
	if variance == 0 {
		return decimal.Zero, nil
	}

	annualizedReturn := m * periodsPerYear
	annualizedVol := math.Sqrt(variance) * math.Sqrt(periodsPerYear)
	return decimal.NewFromFloat((annualizedReturn - riskFreeRate) / annualizedVol), nil
}

// SortinoRatio is SharpeRatio with only downside deviations penalized: the
// denominator is the deviation of returns below the daily target. A series
// with upside and zero downside has no meaningful ratio and reports the
// maximum representable value; a flat or all-at-target series reports zero.
func SortinoRatio(values []decimal.Decimal, riskFreeRate float64) (decimal.Decimal, error) {
	returns, err := dailyReturns(values)
	if err != nil {
		return decimal.Zero, err
	}
	if len(returns) == 0 {
		return decimal.Zero, nil
	}

	target := riskFreeRate / periodsPerYear
	m := mean(returns)

	downsideSum := 0.0
	for _, r := range returns {
		if r < target {
			d := r - target
			downsideSum += d * d
		}
	}
	downsideDeviation := math.Sqrt(downsideSum / float64(len(returns)))

	if downsideDeviation == 0 {
		if m > target {
			return maxMetric, nil
		}
		return decimal.Zero, nil
	}

	annualizedReturn := m * periodsPerYear
	annualizedDownside := downsideDeviation * math.Sqrt(periodsPerYear)
	return decimal.NewFromFloat((annualizedReturn - riskFreeRate) / annualizedDownside), nil
}
