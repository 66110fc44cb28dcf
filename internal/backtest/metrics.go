package backtest

import "math"

// Drawdown returns (equity - running max) / running max for every point. The
// values are never positive.
func Drawdown(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)
	for i, v := range equity {
		if v > peak {
			peak = v
		}
		out[i] = (v - peak) / peak
	}
	return out
}

// MaxDrawdown returns the most negative drawdown, or 0 for an empty series.
func MaxDrawdown(drawdown []float64) float64 {
	worst := 0.0
	for _, d := range drawdown {
		if d < worst {
			worst = d
		}
	}
	return worst
}

// Stats summarizes the closed (Sell) trades of a run. Percentages are trade
// returns in percent.
type Stats struct {
	ClosedTrades    int            `json:"closed_trades"`
	Wins            int            `json:"wins"`
	Losses          int            `json:"losses"`
	WinRatePct      float64        `json:"win_rate_pct"`
	BestTradePct    float64        `json:"best_trade_pct"`
	WorstTradePct   float64        `json:"worst_trade_pct"`
	AvgTradePct     float64        `json:"avg_trade_pct"`
	AvgWinPct       float64        `json:"avg_win_pct"`
	AvgLossPct      float64        `json:"avg_loss_pct"`
	StdTradePct     float64        `json:"std_trade_pct"`
	ProfitFactor    float64        `json:"profit_factor"`
	Expectancy      float64        `json:"expectancy"`
	MaxConsecWins   int            `json:"max_consec_wins"`
	MaxConsecLosses int            `json:"max_consec_losses"`
	ExitReasons     map[string]int `json:"exit_reasons"`
}

// CalculateStats computes Stats over the ledger. Buy rows are ignored. A
// trade with a positive return is a win, anything else is a loss. With no
// closed trades every ratio is zero.
func CalculateStats(trades []Trade) Stats {
	st := Stats{ExitReasons: make(map[string]int)}

	var sum, grossWin, grossLoss float64
	var pnls []float64
	var consecWins, consecLosses int
	for _, t := range trades {
		if t.Type != TradeSell {
			continue
		}
		pnl := t.PnLPct
		pnls = append(pnls, pnl)
		st.ExitReasons[t.Reason]++
		sum += pnl

		if len(pnls) == 1 || pnl > st.BestTradePct {
			st.BestTradePct = pnl
		}
		if len(pnls) == 1 || pnl < st.WorstTradePct {
			st.WorstTradePct = pnl
		}

		if pnl > 0 {
			st.Wins++
			grossWin += pnl
			consecWins++
			consecLosses = 0
		} else {
			st.Losses++
			grossLoss += pnl
			consecLosses++
			consecWins = 0
		}
		st.MaxConsecWins = max(st.MaxConsecWins, consecWins)
		st.MaxConsecLosses = max(st.MaxConsecLosses, consecLosses)
	}

	st.ClosedTrades = len(pnls)
	if st.ClosedTrades == 0 {
		return st
	}

	n := float64(st.ClosedTrades)
	st.WinRatePct = float64(st.Wins) / n * 100
	st.AvgTradePct = sum / n
	if st.Wins > 0 {
		st.AvgWinPct = grossWin / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLossPct = grossLoss / float64(st.Losses)
	}
	if grossLoss < 0 {
		st.ProfitFactor = grossWin / -grossLoss
	}

	var ss float64
	for _, p := range pnls {
		ss += (p - st.AvgTradePct) * (p - st.AvgTradePct)
	}
	st.StdTradePct = math.Sqrt(ss / n)

	winRate := float64(st.Wins) / n
	st.Expectancy = winRate*st.AvgWinPct + (1-winRate)*st.AvgLossPct
	return st
}
