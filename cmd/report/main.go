/*
main.go - Monthly report entry point

PURPOSE:
  Rolls up April 2023 and prints that month's report to stdout:

    1. Top 5 offices by sales
    2. Top 5 agents by sales
    3. Agents' monthly commissions
    4. Average days on market
    5. Average selling price

  Takes no flags. The store comes from BROKERAGE_DB (default brokerage.db),
  read from the environment or a .env file. Logs go to stderr.

SEE ALSO:
  - commission/engine.go: RollupMonth
  - report/render.go: Table layout
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/warp/brokerage/commission"
	"github.com/warp/brokerage/config"
	"github.com/warp/brokerage/logging"
	"github.com/warp/brokerage/report"
	"github.com/warp/brokerage/store/sqlite"
)

const (
	reportYear  = 2023
	reportMonth = time.April
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load("report", nil)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "brokerage-report")
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	engine := commission.NewEngine(store, logger)
	res, err := engine.RollupMonth(ctx, reportYear, reportMonth)
	if err != nil {
		return fmt.Errorf("rollup failed: %w", err)
	}
	logger.Info("rollup complete",
		zap.String("window", res.Window.String()),
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("skipped", res.Skipped),
	)

	monthly, err := report.NewAggregator(store, logger).Build(ctx, reportYear, reportMonth)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}
	report.Render(os.Stdout, monthly)
	return nil
}
