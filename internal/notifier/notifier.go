// Package notifier
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/simple-backtester/internal/backtest"
)

// Notifier interface for sending notifications (e.g., Telegram, email).
type Notifier interface {
	Send(ctx context.Context, msg string) error
	SendWithRetry(ctx context.Context, msg string) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, string) error          { return nil }
func (Nop) SendWithRetry(context.Context, string) error { return nil }

// lastTradesShown is how many ledger rows a result message lists.
const lastTradesShown = 5

// FormatResult renders a finished run for a chat message.
func FormatResult(r *backtest.Result) string {
	var b strings.Builder
	b.WriteString(r.Summary())
	trades := r.LastTrades(lastTradesShown)
	if len(trades) == 0 {
		return b.String()
	}
	b.WriteString("Last trades:\n")
	for _, t := range trades {
		fmt.Fprintf(&b, "  %s %s @ %s (%s)", t.Timestamp.Format("2006-01-02 15:04"), t.Type,
			backtest.FormatPrice(t.Price), t.Reason)
		if t.Type == backtest.TradeSell {
			fmt.Fprintf(&b, " pnl=%s%%", backtest.FormatFixed(t.PnLPct, 2))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatBatch renders the overview of several runs.
func FormatBatch(ov backtest.Overview) string {
	return ov.String()
}
