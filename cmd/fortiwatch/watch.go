package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/fortiwatch/internal/config"
	"github.com/crimson-sun/fortiwatch/internal/logging"
	"github.com/crimson-sun/fortiwatch/internal/model"
	"github.com/crimson-sun/fortiwatch/internal/output"
	"github.com/crimson-sun/fortiwatch/internal/output/stdout"
	"github.com/crimson-sun/fortiwatch/internal/pipeline"
	"github.com/crimson-sun/fortiwatch/internal/tui"
)

var watchNoTUI bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the appliance and show events live",
	Long: `Poll the appliance on the configured interval and show security events
in an interactive dashboard. With --no-tui, new events are written to stdout
as NDJSON instead.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoTUI, "no-tui", false, "write events to stdout as NDJSON instead of the dashboard")
	rootCmd.AddCommand(watchCmd)
	// Bare "fortiwatch" opens the dashboard.
	rootCmd.RunE = runWatch
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, !watchNoTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveMetrics(ctx, cfg.Metrics.Addr)
	slog.Info("fortiwatch starting", "source", describe(cfg), "interval", cfg.Interval())

	if watchNoTUI {
		return watchStream(ctx, cfg)
	}
	return watchDashboard(ctx, cfg)
}

func watchStream(ctx context.Context, cfg *config.Config) error {
	p, err := buildPipeline(cfg, []output.Output{stdout.New(cfg.Output.Pretty)},
		pipeline.WithOnUpdate(func(_ []model.Record, err error) {
			if err != nil && !errors.Is(err, pipeline.ErrStale) {
				slog.Error("fetch cycle failed", logging.Error(err))
			}
		}),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	p.Start(ctx)
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "shutting down...")
	return nil
}

func watchDashboard(ctx context.Context, cfg *config.Config) error {
	var prog *tea.Program
	p, err := buildPipeline(cfg, nil,
		pipeline.WithOnUpdate(func(records []model.Record, err error) {
			if prog != nil {
				prog.Send(tui.UpdateMsg{Records: records, Err: err})
			}
		}),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	m := tui.NewModel(p, describe(cfg), cfg.Connector().UseMock())
	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	p.Start(ctx)
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
