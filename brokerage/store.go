/*
store.go - Persistence interfaces for the brokerage data

PURPOSE:
  Defines the interface between the commission/report logic and the
  relational store. The store owns every row; nothing is cached in memory
  between calls, each read returns a freshly materialized view.

KEY INTERFACES:
  Directory:   Offices, agents, sellers, buyers, listings (insert + lookup)
  Tx:          The unit-of-work view used by sale recording and rollup
  TxStore:     Opens a Tx and commits or rolls it back
  ReportStore: Read-only windowed aggregates

ATOMIC UNITS OF WORK:
  WithTx() ensures all-or-nothing semantics. Recording a sale writes three
  rows (sale, is_sold flip, commission); either all land or none do. A
  month rollup inserts every agent's total in one transaction.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with foreign keys enforced

SEE ALSO:
  - commission/engine.go: Uses TxStore
  - report/aggregator.go: Uses ReportStore
*/
package brokerage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTORY - Reference data, insert-only
// =============================================================================

// Directory creates and reads the reference rows sales point at.
// Insert methods return the row with its assigned ID.
type Directory interface {
	CreateOffice(ctx context.Context, o Office) (Office, error)
	GetOffice(ctx context.Context, id OfficeID) (Office, error)
	ListOffices(ctx context.Context) ([]Office, error)

	CreateAgent(ctx context.Context, a Agent) (Agent, error)
	GetAgent(ctx context.Context, id AgentID) (Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)

	AssignAgentToOffice(ctx context.Context, agentID AgentID, officeID OfficeID) (AgentOffice, error)
	AgentOffices(ctx context.Context, agentID AgentID) ([]AgentOffice, error)

	CreateSeller(ctx context.Context, s Seller) (Seller, error)
	CreateBuyer(ctx context.Context, b Buyer) (Buyer, error)

	CreateListing(ctx context.Context, l Listing) (Listing, error)
	GetListing(ctx context.Context, id ListingID) (Listing, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic writes across tables
// =============================================================================

// Tx is the view of the store inside one unit of work.
type Tx interface {
	GetListing(ctx context.Context, id ListingID) (Listing, error)
	InsertSale(ctx context.Context, s Sale) (Sale, error)

	// MarkListingSold flips is_sold from 0 to 1. Returns a
	// *DuplicateSaleError if the listing was already sold.
	MarkListingSold(ctx context.Context, id ListingID) error

	InsertCommission(ctx context.Context, c Commission) (Commission, error)

	// CommissionsInWindow returns commissions dated in [w.Start, w.End).
	CommissionsInWindow(ctx context.Context, w Window) ([]Commission, error)

	MonthlyCommissionExists(ctx context.Context, agentID AgentID, key time.Time) (bool, error)

	// InsertMonthlyCommission returns ErrDuplicateMonthlyCommission when the
	// (agent, date) pair is already stored.
	InsertMonthlyCommission(ctx context.Context, m MonthlyCommission) (MonthlyCommission, error)
}

// TxStore runs fn inside a transaction.
// If fn returns error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
type TxStore interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// =============================================================================
// REPORT STORE - Read-only aggregates over a window
// =============================================================================

// ReportStore answers the monthly report queries. Every method is
// read-only; ties are ordered by id ascending.
type ReportStore interface {
	TopOfficesBySales(ctx context.Context, w Window, limit int) ([]OfficeSales, error)
	TopAgentsBySales(ctx context.Context, w Window, limit int) ([]AgentSales, error)

	// AverageDaysOnMarket returns nil when no sale falls in the window.
	AverageDaysOnMarket(ctx context.Context, w Window) (*float64, error)

	// SalePrices returns the price of every sale in the window.
	SalePrices(ctx context.Context, w Window) ([]decimal.Decimal, error)

	// MonthlyCommissions returns the stored rollup rows keyed by w.Key().
	MonthlyCommissions(ctx context.Context, w Window) ([]MonthlyCommission, error)
}
