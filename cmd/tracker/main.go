package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shell-tracker/internal/logger"
	"shell-tracker/internal/notify/telegram"
	"shell-tracker/internal/report"
	"shell-tracker/internal/types"
	"shell-tracker/internal/web"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Monitor a Binance spot pair with news sentiment and simulated trades",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeSystem()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdownSystem()
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Configuration file (JSON or YAML)")

	cmd.AddCommand(runCmd(&configPath), newsCmd(&configPath), reportCmd(&configPath))
	return cmd
}

func runCmd(configPath *string) *cobra.Command {
	var (
		durationMin    int
		intervalSec    int
		listen         string
		telegramReport bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a monitoring session",
		Long: `Poll the price, refresh candles and signals, and simulate trades until
the session window elapses or the process is interrupted.

Example:
  tracker run --duration 60 --interval 10 --listen :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			feed, unsubscribe := a.bus.Subscribe(256)
			defer unsubscribe()
			go logEvents(context.Background(), feed)

			c := a.cfg.Snapshot()
			if durationMin <= 0 {
				durationMin = c.Monitoring.DurationMinutes
			}
			if intervalSec <= 0 {
				intervalSec = c.Monitoring.RefreshIntervalSeconds
			}

			if listen != "" {
				srv := web.NewServer(listen, a.bus, a.monitor)
				go func() {
					if err := srv.Start(); err != nil {
						logger.ErrorWithErr(ctx, "Web server failed", err)
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
			}

			if err := a.monitor.Start(ctx, time.Duration(durationMin)*time.Minute, time.Duration(intervalSec)*time.Second); err != nil {
				return err
			}

			finished := make(chan struct{})
			go func() {
				a.monitor.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-ctx.Done():
				logger.Info(context.Background(), "Interrupted, stopping monitor")
				a.monitor.Stop()
			}
			a.summarizeTrades(context.Background())

			if telegramReport {
				return sendReport(context.Background(), a)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&durationMin, "duration", 0, "Session length in minutes (default: monitoring.duration_minutes)")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Polling interval in seconds (default: monitoring.refresh_interval_seconds)")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve the websocket feed and status API on this address")
	cmd.Flags().BoolVar(&telegramReport, "telegram-report", false, "Send a status report to Telegram when the session ends")
	return cmd
}

func newsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Fetch headlines once and print the sentiment analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			s := a.news.FetchAndProcess(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "情感: %s\n情感分数: %.2f\n中文摘要: %s\n", s.Label, s.Score, s.Summary)
			return nil
		},
	}
}

func reportCmd(configPath *string) *cobra.Command {
	var toTelegram bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the current status report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			rep, err := report.Build(a.monitor.ReportInput(ctx))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep.Text)
			if toTelegram {
				return deliver(ctx, a, rep)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&toTelegram, "telegram", false, "Also send the report to Telegram")
	return cmd
}

func sendReport(ctx context.Context, a *app) error {
	rep, err := report.Build(a.monitor.ReportInput(ctx))
	if err != nil {
		logger.Warn(ctx, "Report not sent", "error", err)
		return nil
	}
	sctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return deliver(sctx, a, rep)
}

// deliver sends rep to Telegram. An interrupt stops it between sends.
func deliver(ctx context.Context, a *app, rep *report.Report) error {
	c := a.cfg.Snapshot()
	if !c.API.Telegram.Enabled {
		logger.Warn(ctx, "Telegram delivery disabled in config")
		return nil
	}
	bot, err := telegram.New(c.API.Telegram)
	if err != nil {
		return err
	}

	d := telegram.NewDelivery(bot)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			d.Interrupt()
		case <-done:
		}
	}()

	err = d.Send(context.WithoutCancel(ctx), rep)
	if errors.Is(err, types.ErrSendInterrupted) {
		logger.Warn(ctx, "Telegram delivery interrupted")
		return nil
	}
	return err
}
