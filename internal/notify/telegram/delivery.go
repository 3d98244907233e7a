package telegram

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"shell-tracker/internal/interfaces"
	"shell-tracker/internal/logger"
	"shell-tracker/internal/report"
	"shell-tracker/internal/types"
)

const msgMACDMissing = "ℹ️ MACD 技术指标图因数据不足未生成。"

// Delivery sends one report: text, price chart, MACD chart. Interrupt stops
// it before the next send; a send already in flight completes.
type Delivery struct {
	n           interfaces.Notifier
	interrupted atomic.Bool
}

func NewDelivery(n interfaces.Notifier) *Delivery {
	return &Delivery{n: n}
}

func (d *Delivery) Interrupt() { d.interrupted.Store(true) }

// Send returns ErrSendInterrupted when Interrupt was called between sends.
// Missing chart files are skipped.
func (d *Delivery) Send(ctx context.Context, rep *report.Report) error {
	pair := pairLabel(rep.Symbol)

	if d.interrupted.Load() {
		return types.ErrSendInterrupted
	}
	if rep.Text != "" {
		if err := d.n.SendMessage(ctx, rep.Text); err != nil {
			return err
		}
	}

	if d.interrupted.Load() {
		return types.ErrSendInterrupted
	}
	if path := rep.Charts["price"]; fileExists(path) {
		if err := d.n.SendPhoto(ctx, path, pair+" 价格走势图"); err != nil && !IsMissingFile(err) {
			return err
		}
	}

	if d.interrupted.Load() {
		return types.ErrSendInterrupted
	}
	if path := rep.Charts["macd"]; fileExists(path) {
		if err := d.n.SendPhoto(ctx, path, pair+" MACD技术指标"); err != nil && !IsMissingFile(err) {
			return err
		}
	} else if rep.Text != "" {
		if err := d.n.SendMessage(ctx, msgMACDMissing); err != nil {
			return err
		}
	}

	logger.Info(ctx, "Report delivered to Telegram", "symbol", rep.Symbol)
	return nil
}

// pairLabel turns SHELLUSDT into SHELL/USDT.
func pairLabel(symbol string) string {
	if base, ok := strings.CutSuffix(symbol, "USDT"); ok && base != "" {
		return base + "/USDT"
	}
	return symbol
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
