/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements brokerage.Directory, brokerage.TxStore and brokerage.ReportStore
  on one SQLite database. Every join is an explicit query; nothing is lazily
  loaded.

INTERFACES IMPLEMENTED:
  brokerage.Directory:   Offices, agents, assignments, sellers, buyers, listings
  brokerage.TxStore:     Units of work for sale recording and rollup
  brokerage.ReportStore: Windowed aggregates

KEY TABLES:
  offices, agents, agent_office, sellers, buyers
  listings:            is_sold flips 0 -> 1 once
  sales:               one per sold listing (UNIQUE listing_id)
  commissions:         one per sale (UNIQUE sale_id)
  month_commissions:   rollup cache, UNIQUE(agent_id, date)

INDEXES:
  - idx_listing_agent_id, idx_office_id_listing, idx_date_of_listing
  - idx_selling_agent_id, idx_office_id_sale, idx_date_of_sale
  - idx_commission_agent_id, idx_commission_sale_id
  The UNIQUE indexes are backstops for the check-then-write paths
  (sale recording and monthly rollup).

STORAGE FORMAT:
  Dates are TEXT 'YYYY-MM-DD' so range filters compare lexically and
  julianday() works directly. Money is TEXT holding the exact decimal.

CONCURRENCY:
  One open connection and a sync.RWMutex. Writes are serialized; WithTx
  holds the write lock for the whole unit of work.

USAGE:
  store, err := sqlite.New("./real_estate.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := commission.NewEngine(store, logger)

SEE ALSO:
  - brokerage/store.go: Interface definitions
  - commission/engine.go: Write side
  - report/aggregator.go: Read side
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/brokerage/brokerage"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ brokerage.Directory   = (*Store)(nil)
	_ brokerage.TxStore     = (*Store)(nil)
	_ brokerage.ReportStore = (*Store)(nil)
	_ brokerage.Tx          = (*txStore)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewFromDB wraps an already opened handle and applies the schema. The
// caller keeps ownership of db only if an error is returned.
func NewFromDB(db *sql.DB) (*Store, error) {
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS offices (
		id INTEGER PRIMARY KEY,
		address TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_office (
		id INTEGER PRIMARY KEY,
		agent_id INTEGER NOT NULL REFERENCES agents(id),
		office_id INTEGER NOT NULL REFERENCES offices(id)
	);

	CREATE INDEX IF NOT EXISTS idx_agent_office_agent
		ON agent_office(agent_id);

	CREATE TABLE IF NOT EXISTS sellers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS buyers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL
	);

	-- Listings: is_sold is 0 until the listing's sale is recorded
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY,
		seller_id INTEGER NOT NULL REFERENCES sellers(id),
		bedrooms INTEGER NOT NULL,
		bathrooms INTEGER NOT NULL,
		listing_price TEXT NOT NULL,
		zip_code TEXT NOT NULL,
		date_of_listing TEXT NOT NULL,
		listing_agent_id INTEGER NOT NULL REFERENCES agents(id),
		office_id INTEGER NOT NULL REFERENCES offices(id),
		is_sold INTEGER NOT NULL DEFAULT 0 CHECK (is_sold IN (0, 1))
	);

	CREATE INDEX IF NOT EXISTS idx_listing_agent_id
		ON listings(listing_agent_id);
	CREATE INDEX IF NOT EXISTS idx_office_id_listing
		ON listings(office_id);
	CREATE INDEX IF NOT EXISTS idx_date_of_listing
		ON listings(date_of_listing);

	-- Sales: at most one per listing
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY,
		buyer_id INTEGER NOT NULL REFERENCES buyers(id),
		sale_price TEXT NOT NULL,
		date_of_sale TEXT NOT NULL,
		selling_agent_id INTEGER NOT NULL REFERENCES agents(id),
		office_id INTEGER NOT NULL REFERENCES offices(id),
		listing_id INTEGER NOT NULL REFERENCES listings(id)
	);

	CREATE INDEX IF NOT EXISTS idx_selling_agent_id
		ON sales(selling_agent_id);
	CREATE INDEX IF NOT EXISTS idx_office_id_sale
		ON sales(office_id);
	CREATE INDEX IF NOT EXISTS idx_date_of_sale
		ON sales(date_of_sale);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_sale_listing
		ON sales(listing_id);

	-- Commissions: exactly one per sale
	CREATE TABLE IF NOT EXISTS commissions (
		id INTEGER PRIMARY KEY,
		agent_id INTEGER NOT NULL REFERENCES agents(id),
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		amount TEXT NOT NULL,
		date_of_commission TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commission_agent_id
		ON commissions(agent_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_commission_sale_id
		ON commissions(sale_id);
	CREATE INDEX IF NOT EXISTS idx_commission_date
		ON commissions(date_of_commission);

	-- Monthly totals keyed by the window's exclusive end date
	CREATE TABLE IF NOT EXISTS month_commissions (
		id INTEGER PRIMARY KEY,
		agent_id INTEGER NOT NULL REFERENCES agents(id),
		date TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_month_commission
		ON month_commissions(agent_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY (brokerage.Directory interface)
// =============================================================================

// CreateOffice inserts an office.
func (s *Store) CreateOffice(ctx context.Context, o brokerage.Office) (brokerage.Office, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := insert(ctx, s.db, "offices", "INSERT INTO offices (address) VALUES (?)", o.Address)
	if err != nil {
		return o, err
	}
	o.ID = brokerage.OfficeID(id)
	return o, nil
}

// GetOffice retrieves an office by ID.
func (s *Store) GetOffice(ctx context.Context, id brokerage.OfficeID) (brokerage.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o brokerage.Office
	err := s.db.QueryRowContext(ctx, "SELECT id, address FROM offices WHERE id = ?", id).
		Scan(&o.ID, &o.Address)
	if err != nil {
		return o, lookupError("get office", err)
	}
	return o, nil
}

// ListOffices returns all offices ordered by ID.
func (s *Store) ListOffices(ctx context.Context) ([]brokerage.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, address FROM offices ORDER BY id")
	if err != nil {
		return nil, storageError("list offices", err)
	}
	defer rows.Close()

	offices := []brokerage.Office{}
	for rows.Next() {
		var o brokerage.Office
		if err := rows.Scan(&o.ID, &o.Address); err != nil {
			return nil, storageError("scan office", err)
		}
		offices = append(offices, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list offices", err)
	}
	return offices, nil
}

// CreateAgent inserts an agent.
func (s *Store) CreateAgent(ctx context.Context, a brokerage.Agent) (brokerage.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := insert(ctx, s.db, "agents",
		"INSERT INTO agents (name, email, phone) VALUES (?, ?, ?)",
		a.Name, a.Email, a.Phone,
	)
	if err != nil {
		return a, err
	}
	a.ID = brokerage.AgentID(id)
	return a, nil
}

// CreateAgentWithOffices inserts an agent and its office assignments in one
// transaction. If any assignment fails, the agent is not created.
func (s *Store) CreateAgentWithOffices(ctx context.Context, a brokerage.Agent, officeIDs []brokerage.OfficeID) (brokerage.Agent, []brokerage.AgentOffice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return a, nil, storageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	id, err := insert(ctx, sqlTx, "agents",
		"INSERT INTO agents (name, email, phone) VALUES (?, ?, ?)",
		a.Name, a.Email, a.Phone,
	)
	if err != nil {
		return a, nil, err
	}
	a.ID = brokerage.AgentID(id)

	assignments := []brokerage.AgentOffice{}
	for _, officeID := range officeIDs {
		aoID, err := insert(ctx, sqlTx, "agent_office",
			"INSERT INTO agent_office (agent_id, office_id) VALUES (?, ?)",
			a.ID, officeID,
		)
		if err != nil {
			return brokerage.Agent{}, nil, err
		}
		assignments = append(assignments, brokerage.AgentOffice{
			ID:       brokerage.AgentOfficeID(aoID),
			AgentID:  a.ID,
			OfficeID: officeID,
		})
	}

	if err := sqlTx.Commit(); err != nil {
		return brokerage.Agent{}, nil, storageError("commit transaction", err)
	}
	return a, assignments, nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, id brokerage.AgentID) (brokerage.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a brokerage.Agent
	err := s.db.QueryRowContext(ctx, "SELECT id, name, email, phone FROM agents WHERE id = ?", id).
		Scan(&a.ID, &a.Name, &a.Email, &a.Phone)
	if err != nil {
		return a, lookupError("get agent", err)
	}
	return a, nil
}

// ListAgents returns all agents ordered by ID.
func (s *Store) ListAgents(ctx context.Context) ([]brokerage.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email, phone FROM agents ORDER BY id")
	if err != nil {
		return nil, storageError("list agents", err)
	}
	defer rows.Close()

	agents := []brokerage.Agent{}
	for rows.Next() {
		var a brokerage.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Phone); err != nil {
			return nil, storageError("scan agent", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list agents", err)
	}
	return agents, nil
}

// AssignAgentToOffice records that an agent works from an office.
func (s *Store) AssignAgentToOffice(ctx context.Context, agentID brokerage.AgentID, officeID brokerage.OfficeID) (brokerage.AgentOffice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ao := brokerage.AgentOffice{AgentID: agentID, OfficeID: officeID}
	id, err := insert(ctx, s.db, "agent_office",
		"INSERT INTO agent_office (agent_id, office_id) VALUES (?, ?)",
		agentID, officeID,
	)
	if err != nil {
		return ao, err
	}
	ao.ID = brokerage.AgentOfficeID(id)
	return ao, nil
}

// AgentOffices returns an agent's office assignments in assignment order.
func (s *Store) AgentOffices(ctx context.Context, agentID brokerage.AgentID) ([]brokerage.AgentOffice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, agent_id, office_id FROM agent_office WHERE agent_id = ? ORDER BY id",
		agentID,
	)
	if err != nil {
		return nil, storageError("list agent offices", err)
	}
	defer rows.Close()

	assignments := []brokerage.AgentOffice{}
	for rows.Next() {
		var ao brokerage.AgentOffice
		if err := rows.Scan(&ao.ID, &ao.AgentID, &ao.OfficeID); err != nil {
			return nil, storageError("scan agent office", err)
		}
		assignments = append(assignments, ao)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list agent offices", err)
	}
	return assignments, nil
}

// CreateSeller inserts a seller.
func (s *Store) CreateSeller(ctx context.Context, sel brokerage.Seller) (brokerage.Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := insert(ctx, s.db, "sellers",
		"INSERT INTO sellers (name, phone) VALUES (?, ?)", sel.Name, sel.Phone)
	if err != nil {
		return sel, err
	}
	sel.ID = brokerage.SellerID(id)
	return sel, nil
}

// CreateBuyer inserts a buyer.
func (s *Store) CreateBuyer(ctx context.Context, b brokerage.Buyer) (brokerage.Buyer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := insert(ctx, s.db, "buyers",
		"INSERT INTO buyers (name, phone) VALUES (?, ?)", b.Name, b.Phone)
	if err != nil {
		return b, err
	}
	b.ID = brokerage.BuyerID(id)
	return b, nil
}

// CreateListing inserts an unsold listing. IsSold on the input is ignored.
func (s *Store) CreateListing(ctx context.Context, l brokerage.Listing) (brokerage.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO listings
		(seller_id, bedrooms, bathrooms, listing_price, zip_code, date_of_listing,
		 listing_agent_id, office_id, is_sold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`

	id, err := insert(ctx, s.db, "listings", query,
		l.SellerID,
		l.Bedrooms,
		l.Bathrooms,
		l.ListingPrice.String(),
		l.ZipCode,
		brokerage.FormatDate(l.DateOfListing),
		l.ListingAgentID,
		l.OfficeID,
	)
	if err != nil {
		return l, err
	}
	l.ID = brokerage.ListingID(id)
	l.DateOfListing = brokerage.Day(l.DateOfListing)
	l.IsSold = false
	return l, nil
}

// GetListing retrieves a listing by ID.
func (s *Store) GetListing(ctx context.Context, id brokerage.ListingID) (brokerage.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getListing(ctx, s.db, id)
}

// GetSaleByListing returns the sale that closed a listing.
func (s *Store) GetSaleByListing(ctx context.Context, id brokerage.ListingID) (brokerage.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, sale_price, date_of_sale, selling_agent_id, office_id, listing_id
		FROM sales WHERE listing_id = ?
	`, id)
	return scanSale(row)
}

// CommissionsForSale returns the commission rows attached to a sale.
func (s *Store) CommissionsForSale(ctx context.Context, id brokerage.SaleID) ([]brokerage.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryCommissions(ctx, s.db, `
		SELECT id, agent_id, sale_id, amount, date_of_commission
		FROM commissions WHERE sale_id = ? ORDER BY id
	`, id)
}

// =============================================================================
// TRANSACTIONAL STORE (brokerage.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx brokerage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storageError("commit transaction", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetListing(ctx context.Context, id brokerage.ListingID) (brokerage.Listing, error) {
	return getListing(ctx, ts.tx, id)
}

func (ts *txStore) InsertSale(ctx context.Context, sale brokerage.Sale) (brokerage.Sale, error) {
	query := `
		INSERT INTO sales
		(buyer_id, sale_price, date_of_sale, selling_agent_id, office_id, listing_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	id, err := insert(ctx, ts.tx, "sales", query,
		sale.BuyerID,
		sale.SalePrice.String(),
		brokerage.FormatDate(sale.DateOfSale),
		sale.SellingAgentID,
		sale.OfficeID,
		sale.ListingID,
	)
	if err != nil {
		if errors.Is(err, errUnique) {
			return sale, &brokerage.DuplicateSaleError{ListingID: sale.ListingID}
		}
		return sale, err
	}
	sale.ID = brokerage.SaleID(id)
	sale.DateOfSale = brokerage.Day(sale.DateOfSale)
	return sale, nil
}

func (ts *txStore) MarkListingSold(ctx context.Context, id brokerage.ListingID) error {
	res, err := ts.tx.ExecContext(ctx,
		"UPDATE listings SET is_sold = 1 WHERE id = ? AND is_sold = 0", id)
	if err != nil {
		return storageError("mark listing sold", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("mark listing sold", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either the listing is missing or it was already sold.
	if _, err := getListing(ctx, ts.tx, id); err != nil {
		if errors.Is(err, brokerage.ErrNotFound) {
			return &brokerage.ConstraintError{Table: "listings", Detail: fmt.Sprintf("listing %d does not exist", id)}
		}
		return err
	}
	return &brokerage.DuplicateSaleError{ListingID: id}
}

func (ts *txStore) InsertCommission(ctx context.Context, c brokerage.Commission) (brokerage.Commission, error) {
	query := `
		INSERT INTO commissions (agent_id, sale_id, amount, date_of_commission)
		VALUES (?, ?, ?, ?)
	`

	id, err := insert(ctx, ts.tx, "commissions", query,
		c.AgentID,
		c.SaleID,
		c.Amount.String(),
		brokerage.FormatDate(c.DateOfCommission),
	)
	if err != nil {
		if errors.Is(err, errUnique) {
			return c, &brokerage.ConstraintError{
				Table:  "commissions",
				Detail: fmt.Sprintf("sale %d already has a commission", c.SaleID),
			}
		}
		return c, err
	}
	c.ID = brokerage.CommissionID(id)
	c.DateOfCommission = brokerage.Day(c.DateOfCommission)
	return c, nil
}

func (ts *txStore) CommissionsInWindow(ctx context.Context, w brokerage.Window) ([]brokerage.Commission, error) {
	return queryCommissions(ctx, ts.tx, `
		SELECT id, agent_id, sale_id, amount, date_of_commission
		FROM commissions
		WHERE date_of_commission >= ? AND date_of_commission < ?
		ORDER BY id
	`, brokerage.FormatDate(w.Start), brokerage.FormatDate(w.End))
}

func (ts *txStore) MonthlyCommissionExists(ctx context.Context, agentID brokerage.AgentID, key time.Time) (bool, error) {
	var count int
	err := ts.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM month_commissions WHERE agent_id = ? AND date = ?",
		agentID, brokerage.FormatDate(key),
	).Scan(&count)
	if err != nil {
		return false, storageError("check monthly commission", err)
	}
	return count > 0, nil
}

func (ts *txStore) InsertMonthlyCommission(ctx context.Context, m brokerage.MonthlyCommission) (brokerage.MonthlyCommission, error) {
	id, err := insert(ctx, ts.tx, "month_commissions",
		"INSERT INTO month_commissions (agent_id, date, amount) VALUES (?, ?, ?)",
		m.AgentID, brokerage.FormatDate(m.Date), m.Amount.String(),
	)
	if err != nil {
		if errors.Is(err, errUnique) {
			return m, brokerage.ErrDuplicateMonthlyCommission
		}
		return m, err
	}
	m.ID = brokerage.MonthlyCommissionID(id)
	m.Date = brokerage.Day(m.Date)
	return m, nil
}

// =============================================================================
// REPORT STORE (brokerage.ReportStore interface)
// =============================================================================

// TopOfficesBySales counts sales per office through the listing's office.
func (s *Store) TopOfficesBySales(ctx context.Context, w brokerage.Window, limit int) ([]brokerage.OfficeSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT o.id, o.address, COUNT(s.id) AS sales_count
		FROM offices o
		JOIN listings l ON l.office_id = o.id
		JOIN sales s ON s.listing_id = l.id
		WHERE s.date_of_sale >= ? AND s.date_of_sale < ?
		GROUP BY o.id, o.address
		ORDER BY sales_count DESC, o.id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		brokerage.FormatDate(w.Start), brokerage.FormatDate(w.End), limit)
	if err != nil {
		return nil, storageError("top offices", err)
	}
	defer rows.Close()

	results := []brokerage.OfficeSales{}
	for rows.Next() {
		var r brokerage.OfficeSales
		if err := rows.Scan(&r.OfficeID, &r.Address, &r.SalesCount); err != nil {
			return nil, storageError("scan top offices", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("top offices", err)
	}
	return results, nil
}

// TopAgentsBySales counts sales per selling agent.
func (s *Store) TopAgentsBySales(ctx context.Context, w brokerage.Window, limit int) ([]brokerage.AgentSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT a.id, a.name, a.email, a.phone, COUNT(s.id) AS sales_count
		FROM agents a
		JOIN sales s ON s.selling_agent_id = a.id
		WHERE s.date_of_sale >= ? AND s.date_of_sale < ?
		GROUP BY a.id, a.name, a.email, a.phone
		ORDER BY sales_count DESC, a.id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		brokerage.FormatDate(w.Start), brokerage.FormatDate(w.End), limit)
	if err != nil {
		return nil, storageError("top agents", err)
	}
	defer rows.Close()

	results := []brokerage.AgentSales{}
	for rows.Next() {
		var r brokerage.AgentSales
		if err := rows.Scan(&r.AgentID, &r.Name, &r.Email, &r.Phone, &r.SalesCount); err != nil {
			return nil, storageError("scan top agents", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("top agents", err)
	}
	return results, nil
}

// AverageDaysOnMarket averages julianday(sale) - julianday(listing).
// AVG over no rows is NULL, which maps to a nil result.
func (s *Store) AverageDaysOnMarket(ctx context.Context, w brokerage.Window) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT AVG(julianday(s.date_of_sale) - julianday(l.date_of_listing))
		FROM sales s
		JOIN listings l ON l.id = s.listing_id
		WHERE s.date_of_sale >= ? AND s.date_of_sale < ?
	`

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query,
		brokerage.FormatDate(w.Start), brokerage.FormatDate(w.End)).Scan(&avg)
	if err != nil {
		return nil, storageError("average days on market", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// SalePrices returns the exact price of every sale in the window.
func (s *Store) SalePrices(ctx context.Context, w brokerage.Window) ([]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_price FROM sales
		WHERE date_of_sale >= ? AND date_of_sale < ?
		ORDER BY id
	`, brokerage.FormatDate(w.Start), brokerage.FormatDate(w.End))
	if err != nil {
		return nil, storageError("sale prices", err)
	}
	defer rows.Close()

	prices := []decimal.Decimal{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storageError("scan sale price", err)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, storageError("parse sale price", err)
		}
		prices = append(prices, price)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("sale prices", err)
	}
	return prices, nil
}

// MonthlyCommissions returns the rollup rows stored under w.Key(), in
// insertion order (largest total first for a single rollup run).
func (s *Store) MonthlyCommissions(ctx context.Context, w brokerage.Window) ([]brokerage.MonthlyCommission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, agent_id, date, amount FROM month_commissions WHERE date = ? ORDER BY id",
		brokerage.FormatDate(w.Key()),
	)
	if err != nil {
		return nil, storageError("monthly commissions", err)
	}
	defer rows.Close()

	results := []brokerage.MonthlyCommission{}
	for rows.Next() {
		var (
			m      brokerage.MonthlyCommission
			date   string
			amount string
		)
		if err := rows.Scan(&m.ID, &m.AgentID, &date, &amount); err != nil {
			return nil, storageError("scan monthly commission", err)
		}
		if m.Date, err = brokerage.ParseDate(date); err != nil {
			return nil, storageError("parse monthly commission date", err)
		}
		if m.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, storageError("parse monthly commission amount", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("monthly commissions", err)
	}
	return results, nil
}

// =============================================================================
// TABLE COUNTS
// =============================================================================

// TableCounts holds the row count of each table.
type TableCounts struct {
	Offices            int `json:"offices"`
	Agents             int `json:"agents"`
	AgentOffices       int `json:"agent_offices"`
	Sellers            int `json:"sellers"`
	Buyers             int `json:"buyers"`
	Listings           int `json:"listings"`
	SoldListings       int `json:"sold_listings"`
	Sales              int `json:"sales"`
	Commissions        int `json:"commissions"`
	MonthlyCommissions int `json:"monthly_commissions"`
}

// Counts returns the row count of every table.
func (s *Store) Counts(ctx context.Context) (TableCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c TableCounts
	targets := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM offices", &c.Offices},
		{"SELECT COUNT(*) FROM agents", &c.Agents},
		{"SELECT COUNT(*) FROM agent_office", &c.AgentOffices},
		{"SELECT COUNT(*) FROM sellers", &c.Sellers},
		{"SELECT COUNT(*) FROM buyers", &c.Buyers},
		{"SELECT COUNT(*) FROM listings", &c.Listings},
		{"SELECT COUNT(*) FROM listings WHERE is_sold = 1", &c.SoldListings},
		{"SELECT COUNT(*) FROM sales", &c.Sales},
		{"SELECT COUNT(*) FROM commissions", &c.Commissions},
		{"SELECT COUNT(*) FROM month_commissions", &c.MonthlyCommissions},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, t.query).Scan(t.dst); err != nil {
			return c, storageError("count rows", err)
		}
	}
	return c, nil
}

// =============================================================================
// SHARED QUERIES
// =============================================================================

func getListing(ctx context.Context, q querier, id brokerage.ListingID) (brokerage.Listing, error) {
	var (
		l      brokerage.Listing
		price  string
		listed string
		isSold int
	)

	err := q.QueryRowContext(ctx, `
		SELECT id, seller_id, bedrooms, bathrooms, listing_price, zip_code,
		       date_of_listing, listing_agent_id, office_id, is_sold
		FROM listings WHERE id = ?
	`, id).Scan(
		&l.ID, &l.SellerID, &l.Bedrooms, &l.Bathrooms, &price, &l.ZipCode,
		&listed, &l.ListingAgentID, &l.OfficeID, &isSold,
	)
	if err != nil {
		return l, lookupError("get listing", err)
	}

	if l.ListingPrice, err = decimal.NewFromString(price); err != nil {
		return l, storageError("parse listing price", err)
	}
	if l.DateOfListing, err = brokerage.ParseDate(listed); err != nil {
		return l, storageError("parse listing date", err)
	}
	l.IsSold = isSold == 1
	return l, nil
}

func scanSale(row *sql.Row) (brokerage.Sale, error) {
	var (
		sale  brokerage.Sale
		price string
		sold  string
	)

	err := row.Scan(&sale.ID, &sale.BuyerID, &price, &sold,
		&sale.SellingAgentID, &sale.OfficeID, &sale.ListingID)
	if err != nil {
		return sale, lookupError("get sale", err)
	}
	if sale.SalePrice, err = decimal.NewFromString(price); err != nil {
		return sale, storageError("parse sale price", err)
	}
	if sale.DateOfSale, err = brokerage.ParseDate(sold); err != nil {
		return sale, storageError("parse sale date", err)
	}
	return sale, nil
}

func queryCommissions(ctx context.Context, q querier, query string, args ...any) ([]brokerage.Commission, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("query commissions", err)
	}
	defer rows.Close()

	commissions := []brokerage.Commission{}
	for rows.Next() {
		var (
			c      brokerage.Commission
			amount string
			date   string
		)
		if err := rows.Scan(&c.ID, &c.AgentID, &c.SaleID, &amount, &date); err != nil {
			return nil, storageError("scan commission", err)
		}
		if c.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, storageError("parse commission amount", err)
		}
		if c.DateOfCommission, err = brokerage.ParseDate(date); err != nil {
			return nil, storageError("parse commission date", err)
		}
		commissions = append(commissions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query commissions", err)
	}
	return commissions, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// errUnique marks a UNIQUE violation so callers can translate it into the
// domain error that fits the table.
var errUnique = errors.New("unique constraint failed")

func insert(ctx context.Context, q querier, table, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify("insert "+table, table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageError("insert "+table, err)
	}
	return id, nil
}

// classify turns a driver error into a brokerage error kind.
func classify(op, table string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %v", op, errUnique, err)
		case sqlite3.ErrConstraintForeignKey:
			return &brokerage.ConstraintError{Table: table, Detail: "references a missing row", Err: err}
		case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
			return &brokerage.ConstraintError{Table: table, Detail: "invalid column value", Err: err}
		}
	}
	return storageError(op, err)
}

func lookupError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, brokerage.ErrNotFound)
	}
	return storageError(op, err)
}

func storageError(op string, err error) error {
	return &brokerage.StorageError{Op: op, Err: err}
}
