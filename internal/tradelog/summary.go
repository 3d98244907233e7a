package tradelog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

type summaryRow struct {
	symbol    string
	buys      int
	buyValue  float64
	sells     int
	sellValue float64
	closed    int
	wins      int
	losses    int
	profitPct float64
}

func (j *Journal) summaryPath(t time.Time) string {
	return filepath.Join(j.dir, "summary", t.Format("2006-01-02")+".csv")
}

// Summarize aggregates the trades journalled on day's date into
// Dir/summary/<date>.csv, one row per symbol plus a TOTAL row. It returns
// "" when the day has no trades.
func (j *Journal) Summarize(day time.Time) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.dailyPath(day))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	rows := map[string]*summaryRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		r := rows[e.Symbol]
		if r == nil {
			r = &summaryRow{symbol: e.Symbol}
			rows[e.Symbol] = r
		}
		switch e.Side {
		case "BUY":
			r.buys++
			r.buyValue += e.Price
		case "SELL":
			r.sells++
			r.sellValue += e.Price
		}
		if e.ProfitPct != nil {
			r.closed++
			r.profitPct += *e.ProfitPct
			if *e.ProfitPct > 0 {
				r.wins++
			} else {
				r.losses++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}

	symbols := make([]string, 0, len(rows))
	for s := range rows {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := j.summaryPath(day)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	of, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer of.Close()

	w := csv.NewWriter(of)
	_ = w.Write([]string{"symbol", "buys", "avg_buy", "sells", "avg_sell", "closed", "wins", "losses", "total_profit_pct"})
	var total summaryRow
	for _, s := range symbols {
		r := rows[s]
		_ = w.Write(r.record())
		total.buys += r.buys
		total.sells += r.sells
		total.closed += r.closed
		total.wins += r.wins
		total.losses += r.losses
		total.profitPct += r.profitPct
	}
	_ = w.Write([]string{"TOTAL", strconv.Itoa(total.buys), "", strconv.Itoa(total.sells), "",
		strconv.Itoa(total.closed), strconv.Itoa(total.wins), strconv.Itoa(total.losses), fmt.Sprintf("%.2f", total.profitPct)})
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return out, nil
}

func (r *summaryRow) record() []string {
	var avgBuy, avgSell float64
	if r.buys > 0 {
		avgBuy = r.buyValue / float64(r.buys)
	}
	if r.sells > 0 {
		avgSell = r.sellValue / float64(r.sells)
	}
	return []string{
		r.symbol,
		strconv.Itoa(r.buys),
		fmt.Sprintf("%.4f", avgBuy),
		strconv.Itoa(r.sells),
		fmt.Sprintf("%.4f", avgSell),
		strconv.Itoa(r.closed),
		strconv.Itoa(r.wins),
		strconv.Itoa(r.losses),
		fmt.Sprintf("%.2f", r.profitPct),
	}
}
