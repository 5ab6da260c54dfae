/*
engine.go - Commission engine: sale recording and monthly rollup

PURPOSE:
  The write side of the brokerage. Records a sale together with its
  commission, and folds a month of commissions into one stored total per
  agent.

INVARIANTS:
  1. ONE SALE PER LISTING: a sold listing is rejected with DuplicateSaleError
  2. ATOMIC SALE: sale row, is_sold flip and commission row commit together
  3. IDEMPOTENT ROLLUP: at most one monthly total per (agent, period key);
     re-running a month inserts nothing new

SALE RECORDING:
  Inside one transaction:
  1. Load the listing (missing -> ConstraintError)
  2. Reject if already sold
  3. Insert the sale, copying price, agent and office from the listing
  4. Flip is_sold (a concurrent seller loses here with DuplicateSaleError)
  5. Insert the commission: price × rate(price), dated on the sale

MONTHLY ROLLUP:
  Window [first of month, first of next month). Commissions in the window
  are summed per agent and visited largest total first. Each total is
  stored under date = window end unless a row for (agent, end) exists.
  The UNIQUE(agent_id, date) index catches a racing rollup; that row is
  counted as skipped.

ERROR HANDLING:
  Every failure rolls the unit of work back, is logged with zap and is
  returned to the caller unchanged so errors.Is / errors.As keep working.

EXAMPLE:
  engine := commission.NewEngine(store, logger)

  sale, err := engine.RecordSale(ctx, listingID, buyerID, soldOn)
  if errors.Is(err, brokerage.ErrDuplicateSale) {
      // already closed
  }

  result, err := engine.RollupMonth(ctx, 2023, time.April)

SEE ALSO:
  - brokerage/rates.go: Rate tiers
  - brokerage/store.go: TxStore
*/
package commission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/brokerage/brokerage"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine records sales and rolls up monthly commissions.
type Engine struct {
	store  brokerage.TxStore
	rates  brokerage.RateSchedule
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRates replaces the default rate schedule.
func WithRates(rates brokerage.RateSchedule) Option {
	return func(e *Engine) { e.rates = rates }
}

// WithClock sets the clock used to bound sale dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over store. A nil logger disables logging.
func NewEngine(store brokerage.TxStore, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:  store,
		rates:  brokerage.DefaultRateSchedule,
		logger: logger.Named("commission"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current calendar day on the engine's clock. It is the
// upper bound of a valid sale date.
func (e *Engine) Today() time.Time {
	return brokerage.Day(e.now())
}

// =============================================================================
// SALE RECORDING
// =============================================================================

// RecordSale closes listingID with buyerID on soldOn.
//
// soldOn must fall in [listing date, today]. On any error nothing is written.
func (e *Engine) RecordSale(ctx context.Context, listingID brokerage.ListingID, buyerID brokerage.BuyerID, soldOn time.Time) (brokerage.Sale, error) {
	var sale brokerage.Sale
	soldOn = brokerage.Day(soldOn)

	err := e.store.WithTx(ctx, func(tx brokerage.Tx) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			if errors.Is(err, brokerage.ErrNotFound) {
				return &brokerage.ConstraintError{
					Table:  "sales",
					Detail: fmt.Sprintf("listing %d does not exist", listingID),
				}
			}
			return err
		}
		if listing.IsSold {
			return &brokerage.DuplicateSaleError{ListingID: listingID}
		}

		today := e.Today()
		if soldOn.Before(listing.DateOfListing) || soldOn.After(today) {
			return fmt.Errorf("%w: %s not in [%s, %s]", brokerage.ErrInvalidSaleDate,
				brokerage.FormatDate(soldOn), brokerage.FormatDate(listing.DateOfListing), brokerage.FormatDate(today))
		}

		sale, err = tx.InsertSale(ctx, brokerage.Sale{
			BuyerID:        buyerID,
			SalePrice:      listing.ListingPrice,
			DateOfSale:     soldOn,
			SellingAgentID: listing.ListingAgentID,
			OfficeID:       listing.OfficeID,
			ListingID:      listing.ID,
		})
		if err != nil {
			return err
		}

		if err := tx.MarkListingSold(ctx, listing.ID); err != nil {
			return err
		}

		_, err = tx.InsertCommission(ctx, brokerage.Commission{
			AgentID:          sale.SellingAgentID,
			SaleID:           sale.ID,
			Amount:           e.rates.Amount(sale.SalePrice),
			DateOfCommission: sale.DateOfSale,
		})
		return err
	})
	if err != nil {
		e.logger.Warn("sale rejected",
			zap.Int64("listing_id", int64(listingID)),
			zap.Int64("buyer_id", int64(buyerID)),
			zap.String("date_of_sale", brokerage.FormatDate(soldOn)),
			zap.Error(err),
		)
		return brokerage.Sale{}, err
	}

	e.logger.Info("sale recorded",
		zap.Int64("sale_id", int64(sale.ID)),
		zap.Int64("listing_id", int64(sale.ListingID)),
		zap.Int64("agent_id", int64(sale.SellingAgentID)),
		zap.String("sale_price", sale.SalePrice.String()),
	)
	return sale, nil
}

// =============================================================================
// MONTHLY ROLLUP
// =============================================================================

// AgentTotal is one agent's commission sum for a window.
type AgentTotal struct {
	AgentID brokerage.AgentID
	Amount  decimal.Decimal
}

// RollupResult reports what a rollup run wrote.
type RollupResult struct {
	Window   brokerage.Window
	Totals   []AgentTotal
	Inserted []brokerage.MonthlyCommission
	Skipped  int
}

// TotalsByAgent sums commissions per agent, largest first, agent id
// ascending on ties.
func TotalsByAgent(commissions []brokerage.Commission) []AgentTotal {
	sums := make(map[brokerage.AgentID]decimal.Decimal)
	for _, c := range commissions {
		sums[c.AgentID] = sums[c.AgentID].Add(c.Amount)
	}

	totals := make([]AgentTotal, 0, len(sums))
	for agentID, amount := range sums {
		totals = append(totals, AgentTotal{AgentID: agentID, Amount: amount})
	}
	sort.Slice(totals, func(i, j int) bool {
		if c := totals[i].Amount.Cmp(totals[j].Amount); c != 0 {
			return c > 0
		}
		return totals[i].AgentID < totals[j].AgentID
	})
	return totals
}

// RollupMonth stores each agent's commission total for the month.
// Calling it again for the same month writes nothing new.
func (e *Engine) RollupMonth(ctx context.Context, year int, month time.Month) (RollupResult, error) {
	w, err := brokerage.MonthWindow(year, month)
	if err != nil {
		return RollupResult{}, err
	}
	result := RollupResult{Window: w}

	err = e.store.WithTx(ctx, func(tx brokerage.Tx) error {
		commissions, err := tx.CommissionsInWindow(ctx, w)
		if err != nil {
			return err
		}

		result.Totals = TotalsByAgent(commissions)
		result.Inserted = nil
		result.Skipped = 0

		for _, total := range result.Totals {
			exists, err := tx.MonthlyCommissionExists(ctx, total.AgentID, w.Key())
			if err != nil {
				return err
			}
			if exists {
				result.Skipped++
				continue
			}

			row, err := tx.InsertMonthlyCommission(ctx, brokerage.MonthlyCommission{
				AgentID: total.AgentID,
				Date:    w.Key(),
				Amount:  total.Amount,
			})
			if errors.Is(err, brokerage.ErrDuplicateMonthlyCommission) {
				result.Skipped++
				continue
			}
			if err != nil {
				return err
			}
			result.Inserted = append(result.Inserted, row)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("monthly rollup failed",
			zap.String("window", w.String()),
			zap.Error(err),
		)
		return RollupResult{Window: w}, err
	}

	e.logger.Info("monthly rollup complete",
		zap.String("window", w.String()),
		zap.Int("agents", len(result.Totals)),
		zap.Int("inserted", len(result.Inserted)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
