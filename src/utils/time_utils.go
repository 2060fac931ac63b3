package utils

import (
	"fmt"
	"strings"
	"time"
)

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseInterval converts a bar interval label such as "1m" or "1h".
func ParseInterval(s string) (time.Duration, error) {
	d, ok := intervals[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", s)
	}
	return d, nil
}

// ResetTime truncates t to the start of its interval bucket in UTC.
func ResetTime(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(interval)
}

// SplitSymbol splits "BTC_USDT" into base and quote.
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(strings.ToUpper(symbol), "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("symbol %q must look like BASE_QUOTE", symbol)
	}
	return parts[0], parts[1], nil
}
