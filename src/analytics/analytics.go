package analytics

import (
	"sort"
	"time"

	"autotrader/src/model"

	"github.com/shopspring/decimal"
)

// RoundTrip is an entry lot matched with (part of) an exit.
type RoundTrip struct {
	Symbol     string
	Side       model.PositionSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	OpenedAt   time.Time
	ClosedAt   time.Time
	PnL        decimal.Decimal
}

// Report summarises closed round trips.
type Report struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	WinRate     decimal.Decimal `json:"win_rate"`
	TotalPnL    decimal.Decimal `json:"total_pnl"`
	// ProfitFactor is gross profit over gross loss. It is unbounded when
	// there were trades but no losses.
	ProfitFactor   decimal.Decimal   `json:"profit_factor"`
	Unbounded      bool              `json:"profit_factor_unbounded"`
	MaxDrawdown    decimal.Decimal   `json:"max_drawdown"`
	BalanceCurve   []decimal.Decimal `json:"balance_curve"`
	OpenQuantities map[string]string `json:"open_quantities,omitempty"`
}

type lot struct {
	qty   decimal.Decimal
	price decimal.Decimal
	at    time.Time
}

type book struct {
	symbol string
	side   model.PositionSide
}

// RoundTrips pairs FILLED entry and exit events first in first out, per
// symbol and position side. Unmatched entries are returned as open lots.
func RoundTrips(events []model.TradeEvent) ([]RoundTrip, map[string]decimal.Decimal) {
	filled := make([]model.TradeEvent, 0, len(events))
	for _, e := range events {
		if e.Filled() {
			filled = append(filled, e)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool {
		if filled[i].Timestamp.Equal(filled[j].Timestamp) {
			return filled[i].ID < filled[j].ID
		}
		return filled[i].Timestamp.Before(filled[j].Timestamp)
	})

	queues := make(map[book][]lot)
	var trips []RoundTrip
	for _, e := range filled {
		k := book{symbol: e.Symbol, side: e.PositionSide}
		switch e.OrderDir {
		case model.OrderDirectionEntry:
			queues[k] = append(queues[k], lot{qty: e.Quantity, price: e.Price, at: e.Timestamp})
		case model.OrderDirectionExit:
			remaining := e.Quantity
			q := queues[k]
			for remaining.IsPositive() && len(q) > 0 {
				head := &q[0]
				matched := decimal.Min(head.qty, remaining)
				trips = append(trips, newRoundTrip(e, *head, matched))
				head.qty = head.qty.Sub(matched)
				remaining = remaining.Sub(matched)
				if !head.qty.IsPositive() {
					q = q[1:]
				}
			}
			queues[k] = q
		}
	}

	open := make(map[string]decimal.Decimal)
	for k, q := range queues {
		for _, l := range q {
			key := k.symbol + " " + string(k.side)
			open[key] = open[key].Add(l.qty)
		}
	}
	return trips, open
}

func newRoundTrip(exit model.TradeEvent, entry lot, qty decimal.Decimal) RoundTrip {
	pnl := exit.Price.Sub(entry.price).Mul(qty)
	if exit.PositionSide == model.SideShort {
		pnl = pnl.Neg()
	}
	return RoundTrip{
		Symbol:     exit.Symbol,
		Side:       exit.PositionSide,
		Quantity:   qty,
		EntryPrice: entry.price,
		ExitPrice:  exit.Price,
		OpenedAt:   entry.at,
		ClosedAt:   exit.Timestamp,
		PnL:        pnl,
	}
}

var hundred = decimal.NewFromInt(100)

// Summarize computes the performance report of the given events.
func Summarize(events []model.TradeEvent) Report {
	trips, open := RoundTrips(events)
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].ClosedAt.Before(trips[j].ClosedAt) })

	r := Report{
		TotalTrades:  len(trips),
		BalanceCurve: []decimal.Decimal{decimal.Zero},
	}
	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	balance, peak := decimal.Zero, decimal.Zero
	for _, t := range trips {
		if t.PnL.IsPositive() {
			r.Wins++
			grossProfit = grossProfit.Add(t.PnL)
		} else {
			r.Losses++
			grossLoss = grossLoss.Add(t.PnL.Abs())
		}
		balance = balance.Add(t.PnL)
		r.BalanceCurve = append(r.BalanceCurve, balance)
		if balance.GreaterThan(peak) {
			peak = balance
		}
		if dd := peak.Sub(balance); dd.GreaterThan(r.MaxDrawdown) {
			r.MaxDrawdown = dd
		}
	}
	r.TotalPnL = balance.Round(2)
	r.MaxDrawdown = r.MaxDrawdown.Round(2)

	if r.TotalTrades > 0 {
		r.WinRate = decimal.NewFromInt(int64(r.Wins)).Mul(hundred).Div(decimal.NewFromInt(int64(r.TotalTrades))).Round(2)
		if grossLoss.IsZero() {
			r.Unbounded = true
		} else {
			r.ProfitFactor = grossProfit.Div(grossLoss).Round(2)
		}
	}

	if len(open) > 0 {
		r.OpenQuantities = make(map[string]string, len(open))
		for k, v := range open {
			if v.IsPositive() {
				r.OpenQuantities[k] = v.String()
			}
		}
	}
	return r
}
