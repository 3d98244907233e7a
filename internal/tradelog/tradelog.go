// Package tradelog keeps an append-only JSON-lines journal of simulated
// trades and engine decisions, one file per day.
package tradelog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const timeLayout = "2006-01-02 15:04:05"

type Entry struct {
	Time      string   `json:"time"`
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"`
	Price     float64  `json:"price"`
	ProfitPct *float64 `json:"profit_pct,omitempty"`
	Reason    string   `json:"reason"`
	Sentiment string   `json:"sentiment,omitempty"`
}

type DecisionEntry struct {
	Time           string             `json:"time"`
	Symbol         string             `json:"symbol"`
	Action         string             `json:"action"`
	Confidence     int                `json:"confidence"`
	Recommendation string             `json:"recommendation"`
	Price          float64            `json:"price"`
	BuyScore       float64            `json:"buy_score"`
	SellScore      float64            `json:"sell_score"`
	Indicators     map[string]float64 `json:"indicators,omitempty"`
}

// Journal writes under Dir/<date>.txt and Dir/decisions/<date>.txt.
type Journal struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

// DirFromEnv honours TRACKER_LOG_DIR.
func DirFromEnv() string {
	if v := os.Getenv("TRACKER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) dailyPath(t time.Time) string {
	return filepath.Join(j.dir, t.Format("2006-01-02")+".txt")
}

func (j *Journal) decisionsPath(t time.Time) string {
	return filepath.Join(j.dir, "decisions", t.Format("2006-01-02")+".txt")
}

func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	e.Time = now.Format(timeLayout)
	return appendLine(j.dailyPath(now), e)
}

func (j *Journal) AppendDecision(e DecisionEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	e.Time = now.Format(timeLayout)
	return appendLine(j.decisionsPath(now), e)
}

func appendLine(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files last modified more than retentionDays ago.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an earlier run
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := gw.Close()
	if err := out.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		return copyErr
	}
	return closeErr
}
