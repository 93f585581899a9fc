package tradelog

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"spot-trading-bot/internal/types"
)

type fillLine struct {
	Kind     string  `json:"kind"`
	Asset    string  `json:"asset"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	PnL      float64 `json:"pnl"`
}

type aggRow struct {
	Asset       string
	BuyQty      float64
	BuyValue    float64
	SellQty     float64
	SellValue   float64
	RealizedPnL float64
	Trades      int
}

// SummaryPath is where Summarize writes the report for day.
func SummaryPath(dir string, day time.Time) string {
	return filepath.Join(dir, "summary", day.UTC().Format("2006-01-02")+".csv")
}

// Summarize aggregates the fills journaled on day per asset and writes a CSV
// report. It returns an empty path when there is nothing to summarize.
func Summarize(dir string, day time.Time) (string, error) {
	f, err := os.Open(Path(dir, day))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var fl fillLine
		if err := json.Unmarshal(sc.Bytes(), &fl); err != nil || fl.Kind != kindFill {
			continue
		}
		row := aggs[fl.Asset]
		if row == nil {
			row = &aggRow{Asset: fl.Asset}
			aggs[fl.Asset] = row
		}
		row.Trades++
		switch types.Side(fl.Side) {
		case types.SideBuy:
			row.BuyQty += fl.Quantity
			row.BuyValue += fl.Quantity * fl.Price
		case types.SideSell:
			row.SellQty += fl.Quantity
			row.SellValue += fl.Quantity * fl.Price
			row.RealizedPnL += fl.PnL
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := SummaryPath(dir, day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"asset", "trades", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var totalBuy, totalSell, totalPnL float64
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / r.BuyQty
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / r.SellQty
		}
		rec := []string{
			r.Asset,
			fmt.Sprintf("%d", r.Trades),
			fmt.Sprintf("%.6f", r.BuyQty),
			fmt.Sprintf("%.6f", buyAvg),
			fmt.Sprintf("%.6f", r.SellQty),
			fmt.Sprintf("%.6f", sellAvg),
			fmt.Sprintf("%.4f", r.RealizedPnL),
			fmt.Sprintf("%.4f", r.BuyValue),
			fmt.Sprintf("%.4f", r.SellValue),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy += r.BuyValue
		totalSell += r.SellValue
		totalPnL += r.RealizedPnL
	}
	_ = w.Write([]string{"TOTAL", "", "", "", "", "", fmt.Sprintf("%.4f", totalPnL), fmt.Sprintf("%.4f", totalBuy), fmt.Sprintf("%.4f", totalSell)})
	w.Flush()
	return outPath, w.Error()
}
