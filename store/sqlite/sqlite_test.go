package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/brokerage/brokerage"
	"github.com/warp/brokerage/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type refs struct {
	office brokerage.Office
	agent  brokerage.Agent
	seller brokerage.Seller
	buyer  brokerage.Buyer
}

func seedRefs(t *testing.T, store *sqlite.Store) refs {
	t.Helper()
	ctx := context.Background()
	var r refs
	var err error

	r.office, err = store.CreateOffice(ctx, brokerage.Office{Address: "12 Harbor Rd"})
	require.NoError(t, err)
	r.agent, err = store.CreateAgent(ctx, brokerage.Agent{Name: "Dana", Email: "dana@example.com", Phone: "555-0110"})
	require.NoError(t, err)
	r.seller, err = store.CreateSeller(ctx, brokerage.Seller{Name: "Sam", Phone: "555-0111"})
	require.NoError(t, err)
	r.buyer, err = store.CreateBuyer(ctx, brokerage.Buyer{Name: "Bo", Phone: "555-0112"})
	require.NoError(t, err)
	return r
}

func newListing(r refs, price string, listed time.Time) brokerage.Listing {
	return brokerage.Listing{
		SellerID:       r.seller.ID,
		Bedrooms:       2,
		Bathrooms:      1,
		ListingPrice:   decimal.RequireFromString(price),
		ZipCode:        "02139",
		DateOfListing:  listed,
		ListingAgentID: r.agent.ID,
		OfficeID:       r.office.ID,
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestDirectory_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)

	office, err := store.GetOffice(ctx, r.office.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Harbor Rd", office.Address)

	agent, err := store.GetAgent(ctx, r.agent.ID)
	require.NoError(t, err)
	assert.Equal(t, r.agent, agent)

	offices, err := store.ListOffices(ctx)
	require.NoError(t, err)
	assert.Len(t, offices, 1)

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}

func TestDirectory_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetOffice(ctx, 7)
	assert.ErrorIs(t, err, brokerage.ErrNotFound)
	_, err = store.GetAgent(ctx, 7)
	assert.ErrorIs(t, err, brokerage.ErrNotFound)
	_, err = store.GetListing(ctx, 7)
	assert.ErrorIs(t, err, brokerage.ErrNotFound)
	_, err = store.GetSaleByListing(ctx, 7)
	assert.ErrorIs(t, err, brokerage.ErrNotFound)
}

func TestAgentOffices_MultipleAssignments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)

	second, err := store.CreateOffice(ctx, brokerage.Office{Address: "99 Elm St"})
	require.NoError(t, err)

	_, err = store.AssignAgentToOffice(ctx, r.agent.ID, r.office.ID)
	require.NoError(t, err)
	_, err = store.AssignAgentToOffice(ctx, r.agent.ID, second.ID)
	require.NoError(t, err)

	assignments, err := store.AgentOffices(ctx, r.agent.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, r.office.ID, assignments[0].OfficeID)
	assert.Equal(t, second.ID, assignments[1].OfficeID)
}

func TestAssignAgentToOffice_MissingOffice(t *testing.T) {
	store := newTestStore(t)
	r := seedRefs(t, store)

	_, err := store.AssignAgentToOffice(context.Background(), r.agent.ID, 404)

	var ce *brokerage.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "agent_office", ce.Table)
}

func TestCreateAgentWithOffices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	second, err := store.CreateOffice(ctx, brokerage.Office{Address: "99 Elm St"})
	require.NoError(t, err)

	agent, assignments, err := store.CreateAgentWithOffices(ctx,
		brokerage.Agent{Name: "Kim", Email: "kim@example.com", Phone: "555-0120"},
		[]brokerage.OfficeID{r.office.ID, second.ID})
	require.NoError(t, err)
	assert.NotZero(t, agent.ID)
	require.Len(t, assignments, 2)
	assert.Equal(t, agent.ID, assignments[1].AgentID)
	assert.Equal(t, second.ID, assignments[1].OfficeID)

	stored, err := store.AgentOffices(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, assignments, stored)
}

func TestCreateAgentWithOffices_MissingOfficeRollsBack(t *testing.T) {
	// GIVEN: One existing office and one missing office
	// WHEN: Creating an agent assigned to both
	// THEN: ConstraintError and no agent or assignment row is left behind

	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	before, err := store.Counts(ctx)
	require.NoError(t, err)

	_, _, err = store.CreateAgentWithOffices(ctx,
		brokerage.Agent{Name: "Kim", Email: "kim@example.com", Phone: "555-0120"},
		[]brokerage.OfficeID{r.office.ID, 404})

	var ce *brokerage.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "agent_office", ce.Table)

	after, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCreateListing_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)

	in := newListing(r, "349999.50", brokerage.NewDate(2023, time.March, 1))
	in.IsSold = true // ignored on insert
	created, err := store.CreateListing(ctx, in)
	require.NoError(t, err)

	got, err := store.GetListing(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "349999.5", got.ListingPrice.String())
	assert.Equal(t, brokerage.NewDate(2023, time.March, 1), got.DateOfListing)
	assert.False(t, got.IsSold)
	assert.Equal(t, r.agent.ID, got.ListingAgentID)
}

func TestCreateListing_MissingSeller(t *testing.T) {
	store := newTestStore(t)
	r := seedRefs(t, store)

	l := newListing(r, "100000", brokerage.NewDate(2023, time.March, 1))
	l.SellerID = 500
	_, err := store.CreateListing(context.Background(), l)
	assert.ErrorIs(t, err, brokerage.ErrConstraintViolation)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	l, err := store.CreateListing(ctx, newListing(r, "100000", brokerage.NewDate(2023, time.March, 1)))
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx brokerage.Tx) error {
		if _, err := tx.InsertSale(ctx, brokerage.Sale{
			BuyerID: r.buyer.ID, SalePrice: l.ListingPrice, DateOfSale: brokerage.NewDate(2023, time.April, 1),
			SellingAgentID: r.agent.ID, OfficeID: r.office.ID, ListingID: l.ID,
		}); err != nil {
			return err
		}
		if err := tx.MarkListingSold(ctx, l.ID); err != nil {
			return err
		}
		// Commission references a missing agent: whole unit must roll back.
		_, err := tx.InsertCommission(ctx, brokerage.Commission{
			AgentID: 999, SaleID: 1, Amount: decimal.NewFromInt(1), DateOfCommission: brokerage.NewDate(2023, time.April, 1),
		})
		return err
	})
	require.ErrorIs(t, err, brokerage.ErrConstraintViolation)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Sales)
	assert.Zero(t, counts.Commissions)
	assert.Zero(t, counts.SoldListings)
}

func TestMarkListingSold_Twice(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	l, err := store.CreateListing(ctx, newListing(r, "100000", brokerage.NewDate(2023, time.March, 1)))
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx brokerage.Tx) error {
		require.NoError(t, tx.MarkListingSold(ctx, l.ID))
		return tx.MarkListingSold(ctx, l.ID)
	})

	var dup *brokerage.DuplicateSaleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, l.ID, dup.ListingID)
}

func TestMarkListingSold_Missing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx brokerage.Tx) error {
		return tx.MarkListingSold(ctx, 77)
	})
	assert.ErrorIs(t, err, brokerage.ErrConstraintViolation)
}

func TestInsertSale_SecondSaleForListingRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	l, err := store.CreateListing(ctx, newListing(r, "100000", brokerage.NewDate(2023, time.March, 1)))
	require.NoError(t, err)

	sale := brokerage.Sale{
		BuyerID: r.buyer.ID, SalePrice: l.ListingPrice, DateOfSale: brokerage.NewDate(2023, time.April, 1),
		SellingAgentID: r.agent.ID, OfficeID: r.office.ID, ListingID: l.ID,
	}
	err = store.WithTx(ctx, func(tx brokerage.Tx) error {
		if _, err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		_, err := tx.InsertSale(ctx, sale)
		return err
	})
	assert.ErrorIs(t, err, brokerage.ErrDuplicateSale)
}

func TestInsertMonthlyCommission_UniqueBackstop(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	key := brokerage.NewDate(2023, time.May, 1)

	err := store.WithTx(ctx, func(tx brokerage.Tx) error {
		m := brokerage.MonthlyCommission{AgentID: r.agent.ID, Date: key, Amount: decimal.NewFromInt(5)}
		if _, err := tx.InsertMonthlyCommission(ctx, m); err != nil {
			return err
		}
		exists, err := tx.MonthlyCommissionExists(ctx, r.agent.ID, key)
		require.NoError(t, err)
		assert.True(t, exists)

		_, err = tx.InsertMonthlyCommission(ctx, m)
		assert.ErrorIs(t, err, brokerage.ErrDuplicateMonthlyCommission)
		return nil
	})
	require.NoError(t, err)

	rows, err := store.MonthlyCommissions(ctx, brokerage.MustMonthWindow(2023, time.April))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].Date)
}

// =============================================================================
// REPORT QUERIES
// =============================================================================

// sell writes a sale and its commission directly, bypassing the engine.
func sell(t *testing.T, store *sqlite.Store, r refs, agent brokerage.Agent, office brokerage.Office, price string, listed, sold time.Time) {
	t.Helper()
	ctx := context.Background()

	l := newListing(r, price, listed)
	l.ListingAgentID = agent.ID
	l.OfficeID = office.ID
	l, err := store.CreateListing(ctx, l)
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx brokerage.Tx) error {
		s, err := tx.InsertSale(ctx, brokerage.Sale{
			BuyerID: r.buyer.ID, SalePrice: l.ListingPrice, DateOfSale: sold,
			SellingAgentID: agent.ID, OfficeID: office.ID, ListingID: l.ID,
		})
		if err != nil {
			return err
		}
		if err := tx.MarkListingSold(ctx, l.ID); err != nil {
			return err
		}
		_, err = tx.InsertCommission(ctx, brokerage.Commission{
			AgentID: agent.ID, SaleID: s.ID, Amount: brokerage.CommissionAmount(s.SalePrice), DateOfCommission: sold,
		})
		return err
	})
	require.NoError(t, err)
}

func TestTopAgentsBySales_OrderAndLimit(t *testing.T) {
	// GIVEN: Agent B with 7 April sales, agent C with 3
	// THEN: Exactly two rows, B before C

	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	b, err := store.CreateAgent(ctx, brokerage.Agent{Name: "B", Email: "b@example.com", Phone: "1"})
	require.NoError(t, err)
	c, err := store.CreateAgent(ctx, brokerage.Agent{Name: "C", Email: "c@example.com", Phone: "2"})
	require.NoError(t, err)

	listed := brokerage.NewDate(2023, time.March, 1)
	for i := 0; i < 3; i++ {
		sell(t, store, r, c, r.office, "100000", listed, brokerage.NewDate(2023, time.April, 2+i))
	}
	for i := 0; i < 7; i++ {
		sell(t, store, r, b, r.office, "100000", listed, brokerage.NewDate(2023, time.April, 5+i))
	}
	// Outside the window
	sell(t, store, r, c, r.office, "100000", listed, brokerage.NewDate(2023, time.May, 1))

	rows, err := store.TopAgentsBySales(ctx, brokerage.MustMonthWindow(2023, time.April), 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, b.ID, rows[0].AgentID)
	assert.Equal(t, 7, rows[0].SalesCount)
	assert.Equal(t, "b@example.com", rows[0].Email)
	assert.Equal(t, c.ID, rows[1].AgentID)
	assert.Equal(t, 3, rows[1].SalesCount)

	limited, err := store.TopAgentsBySales(ctx, brokerage.MustMonthWindow(2023, time.April), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTopOfficesBySales_TiesByOfficeID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	second, err := store.CreateOffice(ctx, brokerage.Office{Address: "2 Second Ave"})
	require.NoError(t, err)

	listed := brokerage.NewDate(2023, time.March, 1)
	sold := brokerage.NewDate(2023, time.April, 3)
	sell(t, store, r, r.agent, second, "100000", listed, sold)
	sell(t, store, r, r.agent, r.office, "100000", listed, sold)

	rows, err := store.TopOfficesBySales(ctx, brokerage.MustMonthWindow(2023, time.April), 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, r.office.ID, rows[0].OfficeID)
	assert.Equal(t, second.ID, rows[1].OfficeID)
	assert.Equal(t, "2 Second Ave", rows[1].Address)
}

func TestAverageDaysOnMarket(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	april := brokerage.MustMonthWindow(2023, time.April)

	avg, err := store.AverageDaysOnMarket(ctx, april)
	require.NoError(t, err)
	assert.Nil(t, avg, "empty window")

	sell(t, store, r, r.agent, r.office, "150000", brokerage.NewDate(2023, time.March, 1), brokerage.NewDate(2023, time.April, 10))
	sell(t, store, r, r.agent, r.office, "150000", brokerage.NewDate(2023, time.April, 1), brokerage.NewDate(2023, time.April, 21))

	avg, err = store.AverageDaysOnMarket(ctx, april)
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 30.0, *avg, 1e-9)
}

func TestSalePrices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)
	april := brokerage.MustMonthWindow(2023, time.April)

	prices, err := store.SalePrices(ctx, april)
	require.NoError(t, err)
	assert.Empty(t, prices)

	sell(t, store, r, r.agent, r.office, "150000.25", brokerage.NewDate(2023, time.March, 1), brokerage.NewDate(2023, time.April, 10))

	prices, err = store.SalePrices(ctx, april)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "150000.25", prices[0].String())
}

func TestGetSaleByListing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := seedRefs(t, store)

	sell(t, store, r, r.agent, r.office, "150000", brokerage.NewDate(2023, time.March, 1), brokerage.NewDate(2023, time.April, 10))

	sale, err := store.GetSaleByListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, brokerage.NewDate(2023, time.April, 10), sale.DateOfSale)
	assert.Equal(t, r.buyer.ID, sale.BuyerID)

	commissions, err := store.CommissionsForSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, commissions, 1)
	assert.True(t, commissions[0].Amount.Equal(decimal.NewFromInt(11250)))
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := t.TempDir() + "/brokerage.db"

	store, err := sqlite.New(path)
	require.NoError(t, err)
	_, err = store.CreateOffice(context.Background(), brokerage.Office{Address: "kept"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	offices, err := reopened.ListOffices(context.Background())
	require.NoError(t, err)
	require.Len(t, offices, 1)
	assert.Equal(t, "kept", offices[0].Address)
}
