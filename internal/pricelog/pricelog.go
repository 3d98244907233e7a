// Package pricelog writes one CSV file of (timestamp, price) rows per
// monitoring session.
package pricelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shell-tracker/internal/types"
)

const (
	fileLayout = "20060102_150405"
	rowLayout  = "2006-01-02T15:04:05.999999"
)

// Log is written by the monitoring loop only. After the first write
// failure it is retired and later appends are dropped.
type Log struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	w       *csv.Writer
	retired bool
}

// Open creates dir/price_log_YYYYMMDD_HHMMSS.csv with its header row.
func Open(dir string, started time.Time) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create price log dir: %w", err)
	}
	path := filepath.Join(dir, "price_log_"+started.Format(fileLayout)+".csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create price log: %w", err)
	}
	l := &Log{path: path, f: f, w: csv.NewWriter(f)}
	if err := l.write([]string{"timestamp", "price"}); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) Path() string { return l.path }

// Append writes one sample. It returns the error that retired the log.
func (l *Log) Append(s types.PriceSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return nil
	}
	if err := l.write([]string{s.Time.Format(rowLayout), s.Price.String()}); err != nil {
		l.retired = true
		l.f.Close()
		return fmt.Errorf("price log retired: %w", err)
	}
	return nil
}

func (l *Log) write(row []string) error {
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	return l.w.Error()
}

func (l *Log) Retired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retired
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return nil
	}
	l.retired = true
	l.w.Flush()
	return l.f.Close()
}
