/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in package brokerage from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

FORMATS:
  Dates are "YYYY-MM-DD". Money is a decimal string ("150000.5"); request
  bodies accept either a JSON string or a JSON number.

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, email format). Domain rules such as the sale date
  range stay in the commission engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/brokerage/brokerage"
	"github.com/warp/brokerage/commission"
	"github.com/warp/brokerage/report"
)

// =============================================================================
// DIRECTORY
// =============================================================================

type OfficeDTO struct {
	ID      brokerage.OfficeID `json:"id"`
	Address string             `json:"address"`
}

type CreateOfficeRequest struct {
	Address string `json:"address" validate:"required"`
}

type AgentDTO struct {
	ID        brokerage.AgentID    `json:"id"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Phone     string               `json:"phone"`
	OfficeIDs []brokerage.OfficeID `json:"office_ids,omitempty"`
}

// CreateAgentRequest creates an agent and optionally assigns offices in
// the same call.
type CreateAgentRequest struct {
	Name      string               `json:"name" validate:"required"`
	Email     string               `json:"email" validate:"required,email"`
	Phone     string               `json:"phone" validate:"required"`
	OfficeIDs []brokerage.OfficeID `json:"office_ids,omitempty" validate:"dive,gt=0"`
}

type AssignOfficeRequest struct {
	OfficeID brokerage.OfficeID `json:"office_id" validate:"required"`
}

type AgentOfficeDTO struct {
	ID       brokerage.AgentOfficeID `json:"id"`
	AgentID  brokerage.AgentID       `json:"agent_id"`
	OfficeID brokerage.OfficeID      `json:"office_id"`
}

// PartyDTO is a seller or a buyer.
type PartyDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CreatePartyRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// =============================================================================
// LISTINGS AND SALES
// =============================================================================

type ListingDTO struct {
	ID             brokerage.ListingID `json:"id"`
	SellerID       brokerage.SellerID  `json:"seller_id"`
	Bedrooms       int                 `json:"bedrooms"`
	Bathrooms      int                 `json:"bathrooms"`
	ListingPrice   decimal.Decimal     `json:"listing_price"`
	ZipCode        string              `json:"zip_code"`
	DateOfListing  string              `json:"date_of_listing"`
	ListingAgentID brokerage.AgentID   `json:"listing_agent_id"`
	OfficeID       brokerage.OfficeID  `json:"office_id"`
	IsSold         bool                `json:"is_sold"`
	Sale           *SaleDTO            `json:"sale,omitempty"`
}

type CreateListingRequest struct {
	SellerID       brokerage.SellerID `json:"seller_id" validate:"required"`
	Bedrooms       int                `json:"bedrooms" validate:"gte=0"`
	Bathrooms      int                `json:"bathrooms" validate:"gte=0"`
	ListingPrice   decimal.Decimal    `json:"listing_price"`
	ZipCode        string             `json:"zip_code"`
	DateOfListing  string             `json:"date_of_listing" validate:"required"`
	ListingAgentID brokerage.AgentID  `json:"listing_agent_id" validate:"required"`
	OfficeID       brokerage.OfficeID `json:"office_id" validate:"required"`
}

type RecordSaleRequest struct {
	BuyerID    brokerage.BuyerID `json:"buyer_id" validate:"required"`
	DateOfSale string            `json:"date_of_sale" validate:"required"`
}

type SaleDTO struct {
	ID             brokerage.SaleID    `json:"id"`
	BuyerID        brokerage.BuyerID   `json:"buyer_id"`
	SalePrice      decimal.Decimal     `json:"sale_price"`
	DateOfSale     string              `json:"date_of_sale"`
	SellingAgentID brokerage.AgentID   `json:"selling_agent_id"`
	OfficeID       brokerage.OfficeID  `json:"office_id"`
	ListingID      brokerage.ListingID `json:"listing_id"`
	DaysOnMarket   *int                `json:"days_on_market,omitempty"`
	Commission     *CommissionDTO      `json:"commission,omitempty"`
}

type CommissionDTO struct {
	ID               brokerage.CommissionID `json:"id"`
	AgentID          brokerage.AgentID      `json:"agent_id"`
	SaleID           brokerage.SaleID       `json:"sale_id"`
	Amount           decimal.Decimal        `json:"amount"`
	DateOfCommission string                 `json:"date_of_commission"`
}

// =============================================================================
// ROLLUP
// =============================================================================

// RollupRequest names a calendar month. The month range is checked by
// the engine (ErrInvalidPeriod), not here.
type RollupRequest struct {
	Year  int `json:"year" validate:"required"`
	Month int `json:"month"`
}

type AgentTotalDTO struct {
	AgentID brokerage.AgentID `json:"agent_id"`
	Amount  decimal.Decimal   `json:"amount"`
}

type RollupResponse struct {
	Period   string                 `json:"period"`
	Key      string                 `json:"key"`
	Totals   []AgentTotalDTO        `json:"totals"`
	Inserted []MonthlyCommissionDTO `json:"inserted"`
	Skipped  int                    `json:"skipped"`
}

// =============================================================================
// REPORTS
// =============================================================================

type OfficeSalesDTO struct {
	OfficeID   brokerage.OfficeID `json:"office_id"`
	Address    string             `json:"address"`
	SalesCount int                `json:"sales_count"`
}

type AgentSalesDTO struct {
	AgentID    brokerage.AgentID `json:"agent_id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	SalesCount int               `json:"sales_count"`
}

type MonthlyCommissionDTO struct {
	ID      brokerage.MonthlyCommissionID `json:"id"`
	AgentID brokerage.AgentID             `json:"agent_id"`
	Date    string                        `json:"date"`
	Amount  decimal.Decimal               `json:"amount"`
}

// MonthlyReportDTO is the JSON form of report.Monthly. Averages are null
// for a month with no sales.
type MonthlyReportDTO struct {
	Period              string                 `json:"period"`
	WindowStart         string                 `json:"window_start"`
	WindowEnd           string                 `json:"window_end"`
	TopOffices          []OfficeSalesDTO       `json:"top_offices"`
	TopAgents           []AgentSalesDTO        `json:"top_agents"`
	Commissions         []MonthlyCommissionDTO `json:"monthly_commissions"`
	AverageDaysOnMarket *float64               `json:"average_days_on_market"`
	AverageSalePrice    *decimal.Decimal       `json:"average_sale_price"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAgentDTO(a brokerage.Agent, offices []brokerage.AgentOffice) AgentDTO {
	dto := AgentDTO{ID: a.ID, Name: a.Name, Email: a.Email, Phone: a.Phone}
	for _, ao := range offices {
		dto.OfficeIDs = append(dto.OfficeIDs, ao.OfficeID)
	}
	return dto
}

func toListingDTO(l brokerage.Listing) ListingDTO {
	return ListingDTO{
		ID:             l.ID,
		SellerID:       l.SellerID,
		Bedrooms:       l.Bedrooms,
		Bathrooms:      l.Bathrooms,
		ListingPrice:   l.ListingPrice,
		ZipCode:        l.ZipCode,
		DateOfListing:  brokerage.FormatDate(l.DateOfListing),
		ListingAgentID: l.ListingAgentID,
		OfficeID:       l.OfficeID,
		IsSold:         l.IsSold,
	}
}

func toSaleDTO(s brokerage.Sale) SaleDTO {
	return SaleDTO{
		ID:             s.ID,
		BuyerID:        s.BuyerID,
		SalePrice:      s.SalePrice,
		DateOfSale:     brokerage.FormatDate(s.DateOfSale),
		SellingAgentID: s.SellingAgentID,
		OfficeID:       s.OfficeID,
		ListingID:      s.ListingID,
	}
}

func toCommissionDTO(c brokerage.Commission) *CommissionDTO {
	return &CommissionDTO{
		ID:               c.ID,
		AgentID:          c.AgentID,
		SaleID:           c.SaleID,
		Amount:           c.Amount,
		DateOfCommission: brokerage.FormatDate(c.DateOfCommission),
	}
}

func toMonthlyCommissionDTOs(rows []brokerage.MonthlyCommission) []MonthlyCommissionDTO {
	dtos := make([]MonthlyCommissionDTO, len(rows))
	for i, m := range rows {
		dtos[i] = MonthlyCommissionDTO{
			ID:      m.ID,
			AgentID: m.AgentID,
			Date:    brokerage.FormatDate(m.Date),
			Amount:  m.Amount,
		}
	}
	return dtos
}

func toRollupResponse(res commission.RollupResult) RollupResponse {
	totals := make([]AgentTotalDTO, len(res.Totals))
	for i, t := range res.Totals {
		totals[i] = AgentTotalDTO{AgentID: t.AgentID, Amount: t.Amount}
	}
	return RollupResponse{
		Period:   periodLabel(res.Window),
		Key:      brokerage.FormatDate(res.Window.Key()),
		Totals:   totals,
		Inserted: toMonthlyCommissionDTOs(res.Inserted),
		Skipped:  res.Skipped,
	}
}

func toMonthlyReportDTO(r *report.Monthly) MonthlyReportDTO {
	offices := make([]OfficeSalesDTO, len(r.TopOffices))
	for i, o := range r.TopOffices {
		offices[i] = OfficeSalesDTO(o)
	}
	agents := make([]AgentSalesDTO, len(r.TopAgents))
	for i, a := range r.TopAgents {
		agents[i] = AgentSalesDTO(a)
	}
	return MonthlyReportDTO{
		Period:              periodLabel(r.Window),
		WindowStart:         brokerage.FormatDate(r.Window.Start),
		WindowEnd:           brokerage.FormatDate(r.Window.End),
		TopOffices:          offices,
		TopAgents:           agents,
		Commissions:         toMonthlyCommissionDTOs(r.Commissions),
		AverageDaysOnMarket: r.AverageDaysOnMarket,
		AverageSalePrice:    r.AverageSalePrice,
	}
}
