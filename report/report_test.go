package report_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/warp/brokerage/brokerage"
	"github.com/warp/brokerage/commission"
	"github.com/warp/brokerage/report"
	"github.com/warp/brokerage/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type env struct {
	store      *sqlite.Store
	engine     *commission.Engine
	aggregator *report.Aggregator
	office     brokerage.Office
	seller     brokerage.Seller
	buyer      brokerage.Buyer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := &env{
		store: store,
		engine: commission.NewEngine(store, zap.NewNop(),
			commission.WithClock(func() time.Time { return brokerage.NewDate(2023, time.December, 31) })),
		aggregator: report.NewAggregator(store, zap.NewNop()),
	}
	e.office, err = store.CreateOffice(ctx, brokerage.Office{Address: "500 Market St"})
	require.NoError(t, err)
	e.seller, err = store.CreateSeller(ctx, brokerage.Seller{Name: "Seller", Phone: "1"})
	require.NoError(t, err)
	e.buyer, err = store.CreateBuyer(ctx, brokerage.Buyer{Name: "Buyer", Phone: "2"})
	require.NoError(t, err)
	return e
}

func (e *env) agent(t *testing.T, name string) brokerage.Agent {
	t.Helper()
	a, err := e.store.CreateAgent(context.Background(), brokerage.Agent{Name: name, Email: strings.ToLower(name) + "@example.com", Phone: "555"})
	require.NoError(t, err)
	return a
}

func (e *env) sell(t *testing.T, a brokerage.Agent, price string, listed, sold time.Time) brokerage.Sale {
	t.Helper()
	ctx := context.Background()
	l, err := e.store.CreateListing(ctx, brokerage.Listing{
		SellerID:       e.seller.ID,
		Bedrooms:       3,
		Bathrooms:      2,
		ListingPrice:   decimal.RequireFromString(price),
		ZipCode:        "94103",
		DateOfListing:  listed,
		ListingAgentID: a.ID,
		OfficeID:       e.office.ID,
	})
	require.NoError(t, err)
	s, err := e.engine.RecordSale(ctx, l.ID, e.buyer.ID, sold)
	require.NoError(t, err)
	return s
}

// =============================================================================
// AGGREGATES
// =============================================================================

func TestAggregator_EmptyWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	days, err := e.aggregator.AverageDaysOnMarket(ctx, 2023, time.April)
	require.NoError(t, err)
	assert.Nil(t, days)

	price, err := e.aggregator.AverageSalePrice(ctx, 2023, time.April)
	require.NoError(t, err)
	assert.Nil(t, price)

	offices, err := e.aggregator.TopOfficesBySales(ctx, 2023, time.April, 5)
	require.NoError(t, err)
	assert.Empty(t, offices)

	r, err := e.aggregator.Build(ctx, 2023, time.April)
	require.NoError(t, err)
	assert.Empty(t, r.TopAgents)
	assert.Empty(t, r.Commissions)
	assert.Nil(t, r.AverageDaysOnMarket)
	assert.Nil(t, r.AverageSalePrice)
}

func TestAggregator_SingleSaleScenario(t *testing.T) {
	// GIVEN: Listing priced 150,000 listed 2023-03-01, sold 2023-04-10
	// THEN: 40 days on market, average price 150,000

	e := newEnv(t)
	ctx := context.Background()
	a := e.agent(t, "Alex")
	e.sell(t, a, "150000", brokerage.NewDate(2023, time.March, 1), brokerage.NewDate(2023, time.April, 10))

	days, err := e.aggregator.AverageDaysOnMarket(ctx, 2023, time.April)
	require.NoError(t, err)
	require.NotNil(t, days)
	assert.InDelta(t, 40.0, *days, 1e-9)

	price, err := e.aggregator.AverageSalePrice(ctx, 2023, time.April)
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.True(t, price.Equal(decimal.NewFromInt(150000)))
}

func TestAggregator_AverageSalePrice_Exact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.agent(t, "Alex")
	listed := brokerage.NewDate(2023, time.March, 1)
	e.sell(t, a, "100000.10", listed, brokerage.NewDate(2023, time.April, 1))
	e.sell(t, a, "200000.20", listed, brokerage.NewDate(2023, time.April, 2))

	price, err := e.aggregator.AverageSalePrice(ctx, 2023, time.April)
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, "150000.15", price.String())
}

func TestAggregator_TopAgents_SevenAndThree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.agent(t, "B")
	c := e.agent(t, "C")
	listed := brokerage.NewDate(2023, time.March, 1)

	for i := 0; i < 3; i++ {
		e.sell(t, c, "90000", listed, brokerage.NewDate(2023, time.April, 1+i))
	}
	for i := 0; i < 7; i++ {
		e.sell(t, b, "90000", listed, brokerage.NewDate(2023, time.April, 10+i))
	}

	rows, err := e.aggregator.TopAgentsBySales(ctx, 2023, time.April, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, b.ID, rows[0].AgentID)
	assert.Equal(t, 7, rows[0].SalesCount)
	assert.Equal(t, c.ID, rows[1].AgentID)
	assert.Equal(t, 3, rows[1].SalesCount)
}

func TestAggregator_TopAgents_DefaultLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	listed := brokerage.NewDate(2023, time.March, 1)
	for i := 0; i < 7; i++ {
		a := e.agent(t, "Agent")
		e.sell(t, a, "90000", listed, brokerage.NewDate(2023, time.April, 3))
	}

	rows, err := e.aggregator.TopAgentsBySales(ctx, 2023, time.April, 0)
	require.NoError(t, err)
	assert.Len(t, rows, report.DefaultLimit)
	for i := 1; i < len(rows); i++ {
		assert.Less(t, rows[i-1].AgentID, rows[i].AgentID, "ties ordered by agent id")
	}
}

func TestAggregator_MonthlyCommissionsRequireRollup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.agent(t, "Alex")
	e.sell(t, a, "150000", brokerage.NewDate(2023, time.March, 1), brokerage.NewDate(2023, time.April, 10))

	before, err := e.aggregator.MonthlyCommissions(ctx, 2023, time.April)
	require.NoError(t, err)
	assert.Empty(t, before, "rollup has not run")

	_, err = e.engine.RollupMonth(ctx, 2023, time.April)
	require.NoError(t, err)

	after, err := e.aggregator.MonthlyCommissions(ctx, 2023, time.April)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, a.ID, after[0].AgentID)
	assert.True(t, after[0].Amount.Equal(decimal.NewFromInt(11250)))
}

func TestAggregator_InvalidMonth(t *testing.T) {
	e := newEnv(t)

	_, err := e.aggregator.Build(context.Background(), 2023, 0)
	assert.ErrorIs(t, err, brokerage.ErrInvalidPeriod)
}

func TestMean(t *testing.T) {
	assert.Nil(t, report.Mean(nil))

	m := report.Mean([]decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2)})
	require.NotNil(t, m)
	assert.Equal(t, "1.5", m.String())
}

// =============================================================================
// RENDERING
// =============================================================================

func sampleReport(t *testing.T) *report.Monthly {
	t.Helper()
	e := newEnv(t)
	ctx := context.Background()
	a := e.agent(t, "Alex")
	e.sell(t, a, "150000", brokerage.NewDate(2023, time.March, 1), brokerage.NewDate(2023, time.April, 10))
	_, err := e.engine.RollupMonth(ctx, 2023, time.April)
	require.NoError(t, err)

	r, err := e.aggregator.Build(ctx, 2023, time.April)
	require.NoError(t, err)
	return r
}

func TestRender_FullReport(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	report.Render(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Top 5 Offices by Sales:")
	assert.Contains(t, out, "500 Market St")
	assert.Contains(t, out, "Top 5 Agents by Sales:")
	assert.Contains(t, out, "alex@example.com")
	assert.Contains(t, out, "Agents' Monthly Commissions:")
	assert.Contains(t, out, "11250.00")
	assert.Contains(t, out, "Average days on market for 2023-4: 40 days")
	assert.Contains(t, out, "Average selling price for 2023-4: $150000.00")
	assert.Contains(t, out, "+")

	offices := strings.Index(out, "Top 5 Offices")
	agents := strings.Index(out, "Top 5 Agents")
	commissions := strings.Index(out, "Monthly Commissions:")
	days := strings.Index(out, "Average days")
	assert.True(t, offices < agents && agents < commissions && commissions < days, "section order")
}

func TestRender_EmptyAverages(t *testing.T) {
	var buf bytes.Buffer
	report.Render(&buf, &report.Monthly{Window: brokerage.MustMonthWindow(2023, time.April)})

	assert.Contains(t, buf.String(), "Average days on market for 2023-4: n/a")
	assert.Contains(t, buf.String(), "Average selling price for 2023-4: n/a")
}

func TestRenderMonthlyCommissions_Columns(t *testing.T) {
	var buf bytes.Buffer
	report.RenderMonthlyCommissions(&buf, []brokerage.MonthlyCommission{
		{AgentID: 3, Amount: decimal.RequireFromString("19250")},
	})

	out := buf.String()
	assert.Contains(t, out, "AGENT ID")
	assert.Contains(t, out, "TOTAL COMMISSION")
	assert.Contains(t, out, "19250.00")
}

func TestFormatDays(t *testing.T) {
	v := 33.3333
	assert.Equal(t, "33.33 days", report.FormatDays(&v))
	w := 100.0
	assert.Equal(t, "100 days", report.FormatDays(&w))
	assert.Equal(t, "n/a", report.FormatDays(nil))
}

// =============================================================================
// XLSX EXPORT
// =============================================================================

func TestWriteXLSX(t *testing.T) {
	r := sampleReport(t)

	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, r))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{report.SheetSummary, report.SheetOffices, report.SheetAgents, report.SheetCommissions}, f.GetSheetList())

	period, err := f.GetCellValue(report.SheetSummary, "B1")
	require.NoError(t, err)
	assert.Equal(t, "2023-04", period)

	address, err := f.GetCellValue(report.SheetOffices, "B2")
	require.NoError(t, err)
	assert.Equal(t, "500 Market St", address)

	header, err := f.GetCellValue(report.SheetCommissions, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Total Commission", header)

	amount, err := f.GetCellValue(report.SheetCommissions, "B2")
	require.NoError(t, err)
	assert.Equal(t, "11250.00", amount)
}
