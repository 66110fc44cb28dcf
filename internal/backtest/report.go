package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amirphl/simple-backtester/internal/series"
	"github.com/amirphl/simple-backtester/internal/utils"
)

// Round rounds v to places decimals half away from zero. Undefined values are
// returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatFixed renders v with exactly places decimals; undefined values render
// as an empty string.
func FormatFixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// PriceDigits is the number of significant digits kept when a price is
// reported, so sub-cent pairs keep their precision.
const PriceDigits = 8

// RoundSignificant rounds v to digits significant digits, keeping at least two
// decimals. Undefined values are returned unchanged.
func RoundSignificant(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	places := digits - 1 - int(math.Floor(math.Log10(math.Abs(v))))
	places = max(places, 2)
	return Round(v, int32(places))
}

// FormatPrice renders a price with PriceDigits significant digits.
func FormatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(RoundSignificant(v, PriceDigits)).String()
}

// Summary renders the result as a human readable block.
func (r *Result) Summary() string {
	var b strings.Builder
	title := r.Strategy
	if r.Symbol != "" {
		title = fmt.Sprintf("%s %s", title, r.Symbol)
	}
	if r.Timeframe != "" {
		title = fmt.Sprintf("%s %s", title, r.Timeframe)
	}
	fmt.Fprintf(&b, "Backtest Results (%s)\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "  Period: %s to %s\n", r.StartTime.Format(time.RFC3339), r.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "  Initial Capital=%s, Final Equity=%s, Return=%s%%\n",
		FormatFixed(r.Config.InitialCapital, 2), FormatFixed(r.FinalEquity, 2), FormatFixed(r.TotalReturnPct, 2))
	fmt.Fprintf(&b, "  MaxDrawdown=%s%%, WinRate=%s%%\n", FormatFixed(r.MaxDrawdownPct, 2), FormatFixed(r.WinRatePct, 2))

	st := r.Stats
	fmt.Fprintf(&b, "  Closed Trades=%d, Wins=%d, Losses=%d, MaxConsecWins=%d, MaxConsecLosses=%d\n",
		st.ClosedTrades, st.Wins, st.Losses, st.MaxConsecWins, st.MaxConsecLosses)
	if st.ClosedTrades > 0 {
		fmt.Fprintf(&b, "  Best=%s%%, Worst=%s%%, Avg=%s%%, AvgWin=%s%%, AvgLoss=%s%%, ProfitFactor=%s\n",
			FormatFixed(st.BestTradePct, 2), FormatFixed(st.WorstTradePct, 2), FormatFixed(st.AvgTradePct, 2),
			FormatFixed(st.AvgWinPct, 2), FormatFixed(st.AvgLossPct, 2), FormatFixed(st.ProfitFactor, 2))
		fmt.Fprintf(&b, "  Exit Types: %s=%d, %s=%d, %s=%d\n",
			ReasonStopLoss, st.ExitReasons[ReasonStopLoss],
			ReasonTakeProfit, st.ExitReasons[ReasonTakeProfit],
			ReasonSignalSell, st.ExitReasons[ReasonSignalSell])
	}
	if r.OpenPosition {
		b.WriteString("  Position still open at the last bar\n")
	}
	return b.String()
}

// WriteTradesCSV writes the ledger with money and percentages rounded to 2dp.
func (r *Result) WriteTradesCSV(w io.Writer) error {
	rows := [][]string{{"Timestamp", "Type", "Price", "Reason", "PnLPct", "BalanceAfter"}}
	for _, t := range r.TradeLog {
		rows = append(rows, []string{
			t.Timestamp.Format(time.RFC3339),
			string(t.Type),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			t.Reason,
			FormatFixed(t.PnLPct, 2),
			FormatFixed(t.BalanceAfter, 2),
		})
	}
	return writeCSV(w, rows)
}

// WriteEquityCSV writes the equity curve and drawdown per bar.
func (r *Result) WriteEquityCSV(w io.Writer) error {
	dd := make([]float64, len(r.EquityCurve))
	if r.Frame != nil {
		if col, err := r.Frame.Column(series.DrawdownColumn); err == nil {
			dd = col
		}
	}
	rows := [][]string{{"Timestamp", "Equity", "DrawdownPct"}}
	for i, p := range r.EquityCurve {
		rows = append(rows, []string{
			p.Timestamp.Format(time.RFC3339),
			FormatFixed(p.Value, 2),
			FormatFixed(dd[i]*100, 2),
		})
	}
	return writeCSV(w, rows)
}

// WriteFrameCSV writes the annotated series: OHLCV followed by every column.
// Undefined indicator values are empty cells.
func (r *Result) WriteFrameCSV(w io.Writer) error {
	if r.Frame == nil {
		return fmt.Errorf("backtest: result has no frame")
	}
	names := r.Frame.Columns()
	header := append([]string{"Timestamp", "Open", "High", "Low", "Close", "Volume"}, names...)
	rows := [][]string{header}
	for i := 0; i < r.Frame.Len(); i++ {
		c := r.Frame.Candle(i)
		row := []string{
			c.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		for _, name := range names {
			row = append(row, FormatFixed(r.Frame.Value(name, i), 6))
		}
		rows = append(rows, row)
	}
	return writeCSV(w, rows)
}

// WriteJSON encodes the result.
func (r *Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Save writes trades, equity, annotated series and JSON files into dir and
// returns the paths written.
func (r *Result) Save(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backtest: create output dir: %w", err)
	}
	prefix := r.filePrefix()
	outputs := []struct {
		suffix string
		write  func(io.Writer) error
	}{
		{"trades.csv", r.WriteTradesCSV},
		{"equity.csv", r.WriteEquityCSV},
		{"series.csv", r.WriteFrameCSV},
		{"result.json", r.WriteJSON},
	}

	var paths []string
	for _, o := range outputs {
		path := filepath.Join(dir, prefix+"_"+o.suffix)
		if err := saveFile(path, o.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (r *Result) filePrefix() string {
	parts := []string{}
	for _, p := range []string{r.Strategy, r.Symbol, r.Timeframe} {
		if p != "" {
			parts = append(parts, strings.NewReplacer("/", "-", " ", "_").Replace(p))
		}
	}
	if len(parts) == 0 {
		return "backtest_" + r.RunID.String()[:8]
	}
	return strings.Join(parts, "_")
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backtest: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("backtest: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("backtest: close %s: %w", path, err)
	}
	utils.GetLogger().Infof("Backtest | Saved %s", path)
	return nil
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
