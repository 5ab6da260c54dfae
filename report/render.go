package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"github.com/warp/brokerage/brokerage"
)

const rule = "----------------------------------------"

// =============================================================================
// GRID TABLES
// =============================================================================

func newGrid(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleDefault)
	t.Style().Options.SeparateRows = true
	t.AppendHeader(header)
	return t
}

// RenderTopOffices writes the top-offices table.
func RenderTopOffices(w io.Writer, rows []brokerage.OfficeSales) {
	t := newGrid(w, table.Row{"Office ID", "Address", "Sales Count"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.OfficeID, r.Address, r.SalesCount})
	}
	t.Render()
}

// RenderTopAgents writes the top-agents table.
func RenderTopAgents(w io.Writer, rows []brokerage.AgentSales) {
	t := newGrid(w, table.Row{"Agent ID", "Name", "Email", "Phone", "Sales Count"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.AgentID, r.Name, r.Email, r.Phone, r.SalesCount})
	}
	t.Render()
}

// RenderMonthlyCommissions writes the stored monthly totals as
// agent id / amount. It does no aggregation of its own.
func RenderMonthlyCommissions(w io.Writer, rows []brokerage.MonthlyCommission) {
	t := newGrid(w, table.Row{"Agent ID", "Total Commission"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.AgentID, r.Amount.StringFixed(2)})
	}
	t.Render()
}

// =============================================================================
// FULL REPORT
// =============================================================================

// Render writes the whole monthly report in display order.
func Render(w io.Writer, r *Monthly) {
	period := fmt.Sprintf("%d-%d", r.Window.Year(), int(r.Window.Month()))

	section := func(title string) {
		fmt.Fprintf(w, "\n%s\n\n%s\n", rule, title)
	}

	section("Monthly Report: " + period)
	section("Top 5 Offices by Sales:")
	RenderTopOffices(w, r.TopOffices)
	section("Top 5 Agents by Sales:")
	RenderTopAgents(w, r.TopAgents)
	section("Agents' Monthly Commissions:")
	RenderMonthlyCommissions(w, r.Commissions)

	fmt.Fprintf(w, "\n%s\n\nAverage days on market for %s: %s\n", rule, period, FormatDays(r.AverageDaysOnMarket))
	fmt.Fprintf(w, "\n%s\n\nAverage selling price for %s: %s\n", rule, period, FormatPrice(r.AverageSalePrice))
	fmt.Fprintf(w, "\n%s\n", rule)
}

// FormatDays renders an optional average, "n/a" when absent.
func FormatDays(avg *float64) string {
	if avg == nil {
		return "n/a"
	}
	return decimal.NewFromFloat(*avg).Round(2).String() + " days"
}

// FormatPrice renders an optional price with two decimals, "n/a" when absent.
func FormatPrice(price *decimal.Decimal) string {
	if price == nil {
		return "n/a"
	}
	return "$" + price.StringFixed(2)
}
