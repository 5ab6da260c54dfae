/*
handlers.go - HTTP API handlers for the brokerage

PURPOSE:
  Exposes the directory, the commission engine and the monthly report via
  REST. Handles request/response JSON and delegates to the domain packages.

ENDPOINTS:
  Directory:
    GET    /api/offices                List offices
    POST   /api/offices                Create office
    GET    /api/offices/{id}           Get office
    GET    /api/agents                 List agents with their office ids
    POST   /api/agents                 Create agent (optional office_ids)
    GET    /api/agents/{id}            Get agent
    POST   /api/agents/{id}/offices    Assign agent to an office
    POST   /api/sellers                Create seller
    POST   /api/buyers                 Create buyer

  Listings:
    POST   /api/listings               Create listing
    GET    /api/listings/{id}          Listing, plus sale and commission once sold
    POST   /api/listings/{id}/sale     Record the sale (commission.Engine.RecordSale)

  Commissions and reports:
    POST   /api/commissions/rollup     Roll up one month {year, month}
    GET    /api/reports/{y}/{m}        Monthly report as JSON
    GET    /api/reports/{y}/{m}/xlsx   Monthly report as a workbook
    GET    /api/stats                  Row counts

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error kind:
  - 400: Malformed body, failed validation, bad id, bad date format,
         listing dated in the future, month outside 1..12
  - 404: Row not found
  - 409: Listing already sold
  - 422: Missing reference (constraint), sale date out of range
  - 500: Storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/brokerage/brokerage"
	"github.com/warp/brokerage/commission"
	"github.com/warp/brokerage/report"
	"github.com/warp/brokerage/store/sqlite"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *commission.Engine
	Reports *report.Aggregator

	logger *zap.Logger
}

// NewHandler creates a handler over store. Engine options (rates, clock)
// are passed through to commission.NewEngine.
func NewHandler(store *sqlite.Store, logger *zap.Logger, opts ...commission.Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Engine:  commission.NewEngine(store, logger, opts...),
		Reports: report.NewAggregator(store, logger),
		logger:  logger.Named("api"),
	}
}

// =============================================================================
// OFFICE HANDLERS
// =============================================================================

// ListOffices returns all offices.
func (h *Handler) ListOffices(w http.ResponseWriter, r *http.Request) {
	offices, err := h.Store.ListOffices(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list offices", err)
		return
	}

	dtos := make([]OfficeDTO, len(offices))
	for i, o := range offices {
		dtos[i] = OfficeDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOffice returns a single office.
func (h *Handler) GetOffice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	office, err := h.Store.GetOffice(r.Context(), brokerage.OfficeID(id))
	if err != nil {
		h.writeDomainError(w, "Failed to get office", err)
		return
	}
	writeJSON(w, http.StatusOK, OfficeDTO(office))
}

// CreateOffice creates a new office.
func (h *Handler) CreateOffice(w http.ResponseWriter, r *http.Request) {
	var req CreateOfficeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required", nil)
		return
	}

	office, err := h.Store.CreateOffice(r.Context(), brokerage.Office{Address: req.Address})
	if err != nil {
		h.writeDomainError(w, "Failed to create office", err)
		return
	}
	writeJSON(w, http.StatusCreated, OfficeDTO(office))
}

// =============================================================================
// AGENT HANDLERS
// =============================================================================

// ListAgents returns all agents with the offices they are assigned to.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agents, err := h.Store.ListAgents(ctx)
	if err != nil {
		h.writeDomainError(w, "Failed to list agents", err)
		return
	}

	dtos := make([]AgentDTO, len(agents))
	for i, a := range agents {
		offices, err := h.Store.AgentOffices(ctx, a.ID)
		if err != nil {
			h.writeDomainError(w, "Failed to list agent offices", err)
			return
		}
		dtos[i] = toAgentDTO(a, offices)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAgent returns a single agent.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	agent, err := h.Store.GetAgent(ctx, brokerage.AgentID(id))
	if err != nil {
		h.writeDomainError(w, "Failed to get agent", err)
		return
	}
	offices, err := h.Store.AgentOffices(ctx, agent.ID)
	if err != nil {
		h.writeDomainError(w, "Failed to list agent offices", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentDTO(agent, offices))
}

// CreateAgent creates an agent and assigns the requested offices.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	agent, offices, err := h.Store.CreateAgentWithOffices(r.Context(),
		brokerage.Agent{Name: req.Name, Email: req.Email, Phone: req.Phone}, req.OfficeIDs)
	if err != nil {
		h.writeDomainError(w, "Failed to create agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgentDTO(agent, offices))
}

// AssignAgentToOffice adds an agent-office link. An agent may belong to
// several offices.
func (h *Handler) AssignAgentToOffice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req AssignOfficeRequest
	if !decode(w, r, &req) {
		return
	}

	ao, err := h.Store.AssignAgentToOffice(r.Context(), brokerage.AgentID(id), req.OfficeID)
	if err != nil {
		h.writeDomainError(w, "Failed to assign office", err)
		return
	}
	writeJSON(w, http.StatusCreated, AgentOfficeDTO(ao))
}

// =============================================================================
// SELLER / BUYER HANDLERS
// =============================================================================

// CreateSeller creates a seller.
func (h *Handler) CreateSeller(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.Store.CreateSeller(r.Context(), brokerage.Seller{Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.writeDomainError(w, "Failed to create seller", err)
		return
	}
	writeJSON(w, http.StatusCreated, PartyDTO{ID: int64(s.ID), Name: s.Name, Phone: s.Phone})
}

// CreateBuyer creates a buyer.
func (h *Handler) CreateBuyer(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if !decode(w, r, &req) {
		return
	}

	b, err := h.Store.CreateBuyer(r.Context(), brokerage.Buyer{Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.writeDomainError(w, "Failed to create buyer", err)
		return
	}
	writeJSON(w, http.StatusCreated, PartyDTO{ID: int64(b.ID), Name: b.Name, Phone: b.Phone})
}

// =============================================================================
// LISTING HANDLERS
// =============================================================================

// CreateListing creates an unsold listing.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if !decode(w, r, &req) {
		return
	}

	listedOn, err := brokerage.ParseDate(req.DateOfListing)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_of_listing format (use YYYY-MM-DD)", err)
		return
	}
	if listedOn.After(h.Engine.Today()) {
		writeError(w, http.StatusBadRequest, "date_of_listing must not be in the future", nil)
		return
	}
	if !req.ListingPrice.IsPositive() {
		writeError(w, http.StatusBadRequest, "listing_price must be positive", nil)
		return
	}

	l, err := h.Store.CreateListing(r.Context(), brokerage.Listing{
		SellerID:       req.SellerID,
		Bedrooms:       req.Bedrooms,
		Bathrooms:      req.Bathrooms,
		ListingPrice:   req.ListingPrice,
		ZipCode:        req.ZipCode,
		DateOfListing:  listedOn,
		ListingAgentID: req.ListingAgentID,
		OfficeID:       req.OfficeID,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create listing", err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingDTO(l))
}

// GetListing returns a listing. A sold listing carries its sale and
// commission.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	l, err := h.Store.GetListing(ctx, brokerage.ListingID(id))
	if err != nil {
		h.writeDomainError(w, "Failed to get listing", err)
		return
	}
	dto := toListingDTO(l)

	if l.IsSold {
		sale, err := h.saleDTO(r, l)
		if err != nil {
			h.writeDomainError(w, "Failed to load sale", err)
			return
		}
		dto.Sale = sale
	}
	writeJSON(w, http.StatusOK, dto)
}

// RecordSale closes a listing and books its commission.
// POST /api/listings/{id}/sale
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req RecordSaleRequest
	if !decode(w, r, &req) {
		return
	}
	soldOn, err := brokerage.ParseDate(req.DateOfSale)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date_of_sale format (use YYYY-MM-DD)", err)
		return
	}
	ctx := r.Context()

	if _, err := h.Engine.RecordSale(ctx, brokerage.ListingID(id), req.BuyerID, soldOn); err != nil {
		h.writeDomainError(w, "Failed to record sale", err)
		return
	}

	l, err := h.Store.GetListing(ctx, brokerage.ListingID(id))
	if err != nil {
		h.writeDomainError(w, "Failed to reload listing", err)
		return
	}
	sale, err := h.saleDTO(r, l)
	if err != nil {
		h.writeDomainError(w, "Failed to load sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (h *Handler) saleDTO(r *http.Request, l brokerage.Listing) (*SaleDTO, error) {
	ctx := r.Context()
	sale, err := h.Store.GetSaleByListing(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	dto := toSaleDTO(sale)
	days := sale.DaysOnMarket(l)
	dto.DaysOnMarket = &days

	commissions, err := h.Store.CommissionsForSale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	if len(commissions) > 0 {
		dto.Commission = toCommissionDTO(commissions[0])
	}
	return &dto, nil
}

// =============================================================================
// COMMISSION ROLLUP
// =============================================================================

// RollupMonth stores per-agent totals for one month. Re-running it for the
// same month returns 200 with nothing inserted.
// POST /api/commissions/rollup
func (h *Handler) RollupMonth(w http.ResponseWriter, r *http.Request) {
	var req RollupRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Engine.RollupMonth(r.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		h.writeDomainError(w, "Failed to roll up commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupResponse(res))
}

// =============================================================================
// REPORTS
// =============================================================================

// GetMonthlyReport returns all five aggregates for the month.
// GET /api/reports/{year}/{month}
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	rep, err := h.Reports.Build(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyReportDTO(rep))
}

// ExportMonthlyReport returns the monthly report as an XLSX workbook.
// GET /api/reports/{year}/{month}/xlsx
func (h *Handler) ExportMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	rep, err := h.Reports.Build(r.Context(), year, month)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return
	}

	// Buffer the workbook so a write failure can still become a 500.
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		h.writeDomainError(w, "Failed to export report", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="brokerage-%04d-%02d.xlsx"`, year, int(month)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("xlsx write interrupted", zap.Error(err))
	}
}

// GetStats returns the row count of every table.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Store.Counts(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to count rows", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case brokerage.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, brokerage.ErrDuplicateSale),
		errors.Is(err, brokerage.ErrDuplicateMonthlyCommission):
		return http.StatusConflict
	case errors.Is(err, brokerage.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, brokerage.ErrConstraintViolation),
		errors.Is(err, brokerage.ErrInvalidSaleDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid id %q", raw), nil)
		return 0, false
	}
	return id, true
}

func parsePeriod(w http.ResponseWriter, r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return 0, 0, false
	}
	return year, time.Month(month), true
}

func periodLabel(w brokerage.Window) string {
	return fmt.Sprintf("%04d-%02d", w.Year(), int(w.Month()))
}
