package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func nyDate(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, newYork)
}

func TestSessionPolicy_EntrySize(t *testing.T) {
	base := decimal.NewFromInt(2)
	gated := NewSessionPolicy(Config{NoTradeWindow: true, SessionSizing: true})
	open := NewSessionPolicy(Config{})

	tests := []struct {
		name        string
		policy      SessionPolicy
		at          time.Time
		wantSession Session
		wantSize    decimal.Decimal
	}{
		{"asia tuesday night", gated, nyDate(2025, time.March, 4, 21), SessionAsia, decimal.RequireFromString("1.5")},
		{"london tuesday", gated, nyDate(2025, time.March, 4, 4), SessionLondon, decimal.NewFromInt(2)},
		{"us tuesday", gated, nyDate(2025, time.March, 4, 10), SessionUS, decimal.NewFromInt(2)},
		{"dead zone tuesday", gated, nyDate(2025, time.March, 4, 18), SessionDeadZone, decimal.RequireFromString("0.3")},
		{"friday morning before window", gated, nyDate(2025, time.March, 7, 8), SessionLondon, decimal.NewFromInt(2)},
		{"friday inside window", gated, nyDate(2025, time.March, 7, 10), SessionNoTrade, decimal.Zero},
		{"saturday", gated, nyDate(2025, time.March, 8, 12), SessionNoTrade, decimal.Zero},
		{"sunday after window", gated, nyDate(2025, time.March, 9, 4), SessionLondon, decimal.NewFromInt(2)},
		{"independence day", gated, nyDate(2025, time.July, 4, 11), SessionNoTrade, decimal.Zero},
		{"thanksgiving", gated, nyDate(2025, time.November, 27, 11), SessionNoTrade, decimal.Zero},
		{"disabled policy keeps saturday size", open, nyDate(2025, time.March, 8, 12), SessionWeekendHoliday, decimal.NewFromInt(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, sess := tt.policy.EntrySize(base, tt.at)
			assert.Equal(t, tt.wantSession, sess)
			assert.True(t, tt.wantSize.Equal(size), "size %s want %s", size, tt.wantSize)
		})
	}
}

func TestIsMarketHoliday(t *testing.T) {
	assert.True(t, isMarketHoliday(nyDate(2025, time.January, 20, 12)), "MLK day")
	assert.True(t, isMarketHoliday(nyDate(2025, time.May, 26, 12)), "memorial day")
	assert.True(t, isMarketHoliday(nyDate(2025, time.September, 1, 12)), "labor day")
	assert.True(t, isMarketHoliday(nyDate(2022, time.December, 26, 12)), "christmas observed")
	assert.False(t, isMarketHoliday(nyDate(2025, time.March, 4, 12)))
}
