/*
Package brokerage provides the core types of the brokerage reporting engine.

PURPOSE:
  This package contains the relational entities of a small real-estate
  brokerage (offices, agents, listings, sales, commissions) together with
  the rules that do not depend on storage: the commission rate tiers and
  the calendar-month window used by every period aggregate.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: OfficeID, AgentID, ListingID, ... (int64 row keys)
  - Entities: one struct per table, fields mirror the columns
  - Money: decimal.Decimal, never float64

DESIGN PRINCIPLES:
  1. Immutability: entities are never updated after insert, except the
     single is_sold flip on a Listing when its Sale is recorded
  2. Precision: money uses decimal.Decimal to avoid floating-point drift
  3. Type Safety: distinct ID types prevent passing an agent id as an office id

USAGE:
  listing := brokerage.Listing{
      SellerID:       seller.ID,
      ListingPrice:   decimal.NewFromInt(150000),
      DateOfListing:  brokerage.NewDate(2023, time.March, 1),
      ListingAgentID: agent.ID,
      OfficeID:       office.ID,
  }

SEE ALSO:
  - rates.go: Commission rate tiers
  - window.go: Calendar-month windows
  - store.go: Persistence interfaces
*/
package brokerage

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OfficeID int64
type AgentID int64
type AgentOfficeID int64
type SellerID int64
type BuyerID int64
type ListingID int64
type SaleID int64
type CommissionID int64
type MonthlyCommissionID int64

// =============================================================================
// DIRECTORY - People and places, never mutated after insert
// =============================================================================

type Office struct {
	ID      OfficeID
	Address string
}

type Agent struct {
	ID    AgentID
	Name  string
	Email string
	Phone string
}

// AgentOffice links an agent to one of the offices they work from.
// An agent may hold several assignments.
type AgentOffice struct {
	ID       AgentOfficeID
	AgentID  AgentID
	OfficeID OfficeID
}

type Seller struct {
	ID    SellerID
	Name  string
	Phone string
}

type Buyer struct {
	ID    BuyerID
	Name  string
	Phone string
}

// =============================================================================
// LISTING & SALE
// =============================================================================

// Listing is a property offered for sale.
//
// INVARIANT: IsSold is false while no Sale references the listing and true
// once exactly one Sale does. It flips once and never back.
type Listing struct {
	ID             ListingID
	SellerID       SellerID
	Bedrooms       int
	Bathrooms      int
	ListingPrice   decimal.Decimal
	ZipCode        string
	DateOfListing  time.Time
	ListingAgentID AgentID
	OfficeID       OfficeID
	IsSold         bool
}

// Sale closes a Listing with a buyer. SalePrice, SellingAgentID and OfficeID
// are copied from the listing when the sale is recorded.
type Sale struct {
	ID             SaleID
	BuyerID        BuyerID
	SalePrice      decimal.Decimal
	DateOfSale     time.Time
	SellingAgentID AgentID
	OfficeID       OfficeID
	ListingID      ListingID
}

// DaysOnMarket returns the whole calendar days between listing and sale.
func (s Sale) DaysOnMarket(l Listing) int {
	return DaysBetween(l.DateOfListing, s.DateOfSale)
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// Commission is the fee earned by the selling agent on one Sale.
// Created in the same unit of work as the Sale.
type Commission struct {
	ID               CommissionID
	AgentID          AgentID
	SaleID           SaleID
	Amount           decimal.Decimal
	DateOfCommission time.Time
}

// MonthlyCommission caches one agent's commission total for a month.
// Date is the period key: the exclusive end of the month window, i.e. the
// first day of the following month.
type MonthlyCommission struct {
	ID      MonthlyCommissionID
	AgentID AgentID
	Date    time.Time
	Amount  decimal.Decimal
}

// =============================================================================
// AGGREGATE ROWS - Read models produced by report queries
// =============================================================================

// OfficeSales is one row of the top-offices report.
type OfficeSales struct {
	OfficeID   OfficeID
	Address    string
	SalesCount int
}

// AgentSales is one row of the top-agents report.
type AgentSales struct {
	AgentID    AgentID
	Name       string
	Email      string
	Phone      string
	SalesCount int
}
