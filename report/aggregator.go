/*
Package report computes the brokerage's monthly report.

PURPOSE:
  The read side. Five independent aggregates over one calendar-month
  window, none of which writes:

    1. Top offices by sale count (Sale -> Listing -> Office)
    2. Top agents by sale count (Sale -> selling agent)
    3. Monthly commission totals (stored rollup rows, not live commissions)
    4. Average days on market
    5. Average sale price

EMPTY WINDOWS:
  A month with no sales yields empty tables and nil averages. Never NaN,
  never an error.

MONTHLY COMMISSIONS:
  Reads month_commissions rows keyed by the window end. Run
  commission.Engine.RollupMonth first or the table is empty.

SEE ALSO:
  - render.go: Grid tables for stdout
  - xlsx.go: Spreadsheet export
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/brokerage/brokerage"
)

// DefaultLimit is the number of rows in the top-offices and top-agents tables.
const DefaultLimit = 5

// Aggregator runs the monthly report queries.
type Aggregator struct {
	store  brokerage.ReportStore
	logger *zap.Logger
}

// NewAggregator creates an aggregator over store. A nil logger disables logging.
func NewAggregator(store brokerage.ReportStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{store: store, logger: logger.Named("report")}
}

// =============================================================================
// INDIVIDUAL QUERIES
// =============================================================================

// TopOfficesBySales returns up to limit offices ordered by sale count.
// A limit <= 0 means DefaultLimit.
func (a *Aggregator) TopOfficesBySales(ctx context.Context, year int, month time.Month, limit int) ([]brokerage.OfficeSales, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return nil, err
	}
	return a.store.TopOfficesBySales(ctx, w, normalizeLimit(limit))
}

// TopAgentsBySales returns up to limit selling agents ordered by sale count.
// A limit <= 0 means DefaultLimit.
func (a *Aggregator) TopAgentsBySales(ctx context.Context, year int, month time.Month, limit int) ([]brokerage.AgentSales, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return nil, err
	}
	return a.store.TopAgentsBySales(ctx, w, normalizeLimit(limit))
}

// AverageDaysOnMarket returns nil when the month has no sales.
func (a *Aggregator) AverageDaysOnMarket(ctx context.Context, year int, month time.Month) (*float64, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return nil, err
	}
	return a.store.AverageDaysOnMarket(ctx, w)
}

// AverageSalePrice returns nil when the month has no sales.
func (a *Aggregator) AverageSalePrice(ctx context.Context, year int, month time.Month) (*decimal.Decimal, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return nil, err
	}
	prices, err := a.store.SalePrices(ctx, w)
	if err != nil {
		return nil, err
	}
	return Mean(prices), nil
}

// MonthlyCommissions returns the stored rollup rows for the month.
func (a *Aggregator) MonthlyCommissions(ctx context.Context, year int, month time.Month) ([]brokerage.MonthlyCommission, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return nil, err
	}
	return a.store.MonthlyCommissions(ctx, w)
}

// Mean returns the arithmetic mean of values, or nil for an empty slice.
func Mean(values []decimal.Decimal) *decimal.Decimal {
	if len(values) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(values))))
	return &mean
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// =============================================================================
// MONTHLY REPORT - All five aggregates together
// =============================================================================

// Monthly is the full report for one month.
type Monthly struct {
	Window              brokerage.Window
	TopOffices          []brokerage.OfficeSales
	TopAgents           []brokerage.AgentSales
	Commissions         []brokerage.MonthlyCommission
	AverageDaysOnMarket *float64
	AverageSalePrice    *decimal.Decimal
}

// Build runs every report query for the month.
func (a *Aggregator) Build(ctx context.Context, year int, month time.Month) (*Monthly, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return nil, err
	}
	r := &Monthly{Window: w}

	if r.TopOffices, err = a.store.TopOfficesBySales(ctx, w, DefaultLimit); err != nil {
		return nil, err
	}
	if r.TopAgents, err = a.store.TopAgentsBySales(ctx, w, DefaultLimit); err != nil {
		return nil, err
	}
	if r.Commissions, err = a.store.MonthlyCommissions(ctx, w); err != nil {
		return nil, err
	}
	if r.AverageDaysOnMarket, err = a.store.AverageDaysOnMarket(ctx, w); err != nil {
		return nil, err
	}
	prices, err := a.store.SalePrices(ctx, w)
	if err != nil {
		return nil, err
	}
	r.AverageSalePrice = Mean(prices)

	a.logger.Debug("monthly report built",
		zap.String("window", w.String()),
		zap.Int("offices", len(r.TopOffices)),
		zap.Int("agents", len(r.TopAgents)),
		zap.Int("commissions", len(r.Commissions)),
		zap.Int("sales", len(prices)),
	)
	return r, nil
}
