package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	d, err := ParseInterval("1m")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseInterval(" 1H ")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	_, err = ParseInterval("7m")
	require.Error(t, err)
}

func TestResetTime(t *testing.T) {
	at := time.Date(2025, time.March, 4, 14, 37, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 4, 14, 37, 0, 0, time.UTC), ResetTime(at, time.Minute))
	assert.Equal(t, time.Date(2025, time.March, 4, 14, 0, 0, 0, time.UTC), ResetTime(at, time.Hour))
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol("btc_usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	_, _, err = SplitSymbol("NIFTY")
	require.Error(t, err)
}
