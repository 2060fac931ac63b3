package signal

import "math"

// SMA is the mean of the last n values. ok is false when there are fewer
// than n values.
func SMA(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}

// Momentum is the relative change between the value lookback positions from
// the end and the last value.
func Momentum(values []float64, lookback int) (float64, bool) {
	if lookback <= 0 || len(values) < lookback {
		return 0, false
	}
	ref := values[len(values)-lookback]
	if ref <= 0 {
		return 0, false
	}
	return (values[len(values)-1] - ref) / ref, true
}

// Volatility is the population standard deviation of the last n values
// divided by their mean.
func Volatility(values []float64, n int) (float64, bool) {
	mean, ok := SMA(values, n)
	if !ok || mean <= 0 {
		return 0, false
	}
	variance := 0.0
	for _, v := range values[len(values)-n:] {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance/float64(n)) / mean, true
}

// Return is the relative change over the last lag values.
func Return(values []float64, lag int) (float64, bool) {
	if lag <= 0 || len(values) <= lag {
		return 0, false
	}
	prev := values[len(values)-1-lag]
	if prev <= 0 {
		return 0, false
	}
	return values[len(values)-1]/prev - 1, true
}

// MaxMin returns the extremes of values. ok is false for an empty slice.
func MaxMin(values []float64) (hi, lo float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	hi, lo = values[0], values[0]
	for _, v := range values[1:] {
		hi = math.Max(hi, v)
		lo = math.Min(lo, v)
	}
	return hi, lo, true
}
