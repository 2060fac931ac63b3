package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionDeadZone       Session = "dead_zone"
	SessionAsia           Session = "asia_session"
	SessionLondon         Session = "london_session"
	SessionUS             Session = "us_session"
	SessionNoTrade        Session = "no_trade"
)

var newYork = loadNewYork()

func loadNewYork() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionPolicy decides how much of the configured lot a new entry may use
// at a given time, based on the New York trading session.
type SessionPolicy struct {
	noTradeWindow bool
	sizing        bool
	multipliers   map[Session]decimal.Decimal
}

func NewSessionPolicy(cfg Config) SessionPolicy {
	return SessionPolicy{
		noTradeWindow: cfg.NoTradeWindow,
		sizing:        cfg.SessionSizing,
		multipliers: map[Session]decimal.Decimal{
			SessionWeekendHoliday: decimal.NewFromFloat(0.15),
			SessionDeadZone:       decimal.NewFromFloat(0.15),
			SessionAsia:           decimal.NewFromFloat(0.75),
			SessionLondon:         decimal.NewFromFloat(1.0),
			SessionUS:             decimal.NewFromFloat(1.0),
		},
	}
}

// EntrySize scales base for the session at t. A zero result means no entry
// is allowed.
func (p SessionPolicy) EntrySize(base decimal.Decimal, at time.Time) (decimal.Decimal, Session) {
	et := at.In(newYork)
	if p.noTradeWindow && inNoTradeWindow(et) {
		return decimal.Zero, SessionNoTrade
	}
	sess := sessionAt(et)
	if !p.sizing {
		return base, sess
	}
	mult, ok := p.multipliers[sess]
	if !ok {
		return base, sess
	}
	return base.Mul(mult), sess
}

// inNoTradeWindow covers Friday 09:00 until Sunday 03:00 New York time and
// every US market holiday.
func inNoTradeWindow(et time.Time) bool {
	if isMarketHoliday(et) {
		return true
	}
	h := et.Hour()
	switch et.Weekday() {
	case time.Friday:
		return h >= 9
	case time.Saturday:
		return true
	case time.Sunday:
		return h < 3
	}
	return false
}

func sessionAt(et time.Time) Session {
	h := et.Hour()
	if et.Weekday() == time.Sunday && h >= 3 && h < 9 {
		return SessionLondon
	}
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday || isMarketHoliday(et) {
		return SessionWeekendHoliday
	}
	switch {
	case h >= 17 && h < 20:
		return SessionDeadZone
	case h >= 20 || h < 3:
		return SessionAsia
	case h < 9:
		return SessionLondon
	default:
		return SessionUS
	}
}

func isMarketHoliday(et time.Time) bool {
	y := et.Year()
	holidays := []time.Time{
		observed(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)),
		nthWeekday(y, time.January, time.Monday, 3),
		nthWeekday(y, time.February, time.Monday, 3),
		lastWeekday(y, time.May, time.Monday),
		observed(time.Date(y, time.July, 4, 0, 0, 0, 0, time.UTC)),
		nthWeekday(y, time.September, time.Monday, 1),
		nthWeekday(y, time.November, time.Thursday, 4),
		observed(time.Date(y, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}
	day := et.Format(time.DateOnly)
	for _, h := range holidays {
		if h.Format(time.DateOnly) == day {
			return true
		}
	}
	return false
}

// observed moves a Sunday holiday to Monday.
func observed(d time.Time) time.Time {
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
