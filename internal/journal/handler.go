package journal

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/observability"
	"github.com/solvent-hq/solvent/internal/platform/httpx"
	"github.com/solvent-hq/solvent/internal/shared"
	"github.com/solvent-hq/solvent/internal/tenant"
)

// Handler wires HTTP endpoints for journal entries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers journal routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/by-number/{number}", h.getByNumber)
	r.Get("/by-source/{sourceType}/{sourceID}", h.getBySource)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/reverse", h.reverse)
	r.Delete("/{id}", h.remove)
}

type lineRequest struct {
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Memo      string `json:"memo"`
}

type createRequest struct {
	EntryDate   string        `json:"entry_date" validate:"required"`
	Description string        `json:"description" validate:"required"`
	SourceType  string        `json:"source_type"`
	SourceID    string        `json:"source_id"`
	SourceRef   string        `json:"source_ref"`
	SaveAsDraft bool          `json:"save_as_draft"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	ReversalDate string `json:"reversal_date" validate:"required"`
	Reason       string `json:"reason"`
}

type lineResponse struct {
	ID        int64  `json:"id"`
	LineNo    int    `json:"line_no"`
	AccountID int64  `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Memo      string `json:"memo,omitempty"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	EntryNumber string         `json:"entry_number"`
	EntryDate   string         `json:"entry_date"`
	Description string         `json:"description"`
	SourceType  string         `json:"source_type"`
	SourceID    *uuid.UUID     `json:"source_id,omitempty"`
	SourceRef   string         `json:"source_ref,omitempty"`
	Status      string         `json:"status"`
	PeriodID    int64          `json:"period_id"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	ReversalOf  *int64         `json:"reversal_of,omitempty"`
	ReversedBy  *int64         `json:"reversed_by,omitempty"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

type listResponse struct {
	Data       []entryResponse   `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		EntryNumber: e.EntryNumber,
		EntryDate:   e.EntryDate.Format("2006-01-02"),
		Description: e.Description,
		SourceType:  e.SourceType,
		SourceID:    e.SourceID,
		SourceRef:   e.SourceRef,
		Status:      string(e.Status),
		PeriodID:    e.PeriodID,
		TotalDebit:  e.TotalDebit.String(),
		TotalCredit: e.TotalCredit.String(),
		ReversalOf:  e.ReversalOf,
		ReversedBy:  e.ReversedBy,
		PostedAt:    e.PostedAt,
		CreatedAt:   e.CreatedAt,
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:        line.ID,
			LineNo:    line.LineNo,
			AccountID: line.AccountID,
			Debit:     line.Debit.String(),
			Credit:    line.Credit.String(),
			Memo:      line.Memo,
		})
	}
	return resp
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entryDate, err := time.Parse("2006-01-02", req.EntryDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry_date must be YYYY-MM-DD")
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for i, line := range req.Lines {
		debit, err := parseAmount(line.Debit)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("line %d: invalid debit amount", i+1))
			return
		}
		credit, err := parseAmount(line.Credit)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("line %d: invalid credit amount", i+1))
			return
		}
		lines = append(lines, LineInput{AccountID: line.AccountID, Debit: debit, Credit: credit, Memo: line.Memo})
	}
	in := CreateInput{
		TenantID:    identity.TenantID,
		EntryDate:   entryDate,
		Description: req.Description,
		SourceType:  req.SourceType,
		SourceRef:   req.SourceRef,
		SaveAsDraft: req.SaveAsDraft,
		ActorID:     identity.ActorID,
		Lines:       lines,
	}
	if req.SourceID != "" {
		sourceID, err := uuid.Parse(req.SourceID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source_id must be a UUID")
			return
		}
		in.SourceID = &sourceID
	}
	entry, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create journal entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entry.Status == StatusPosted {
		h.metrics.JournalPosted()
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	filter.Page, filter.PerPage = shared.PageFromRequest(r)
	if from := r.URL.Query().Get("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = parsed
	}
	if to := r.URL.Query().Get("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = parsed
	}
	entries, pagination, err := h.service.List(r.Context(), identity.TenantID, filter)
	if err != nil {
		h.logger.Error("list journal entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := listResponse{Data: make([]entryResponse, 0, len(entries)), Pagination: pagination}
	for _, entry := range entries {
		resp.Data = append(resp.Data, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be numeric")
		return
	}
	entry, err := h.service.Get(r.Context(), identity.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) getByNumber(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	entry, err := h.service.GetByNumber(r.Context(), identity.TenantID, chi.URLParam(r, "number"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) getBySource(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source id must be a UUID")
		return
	}
	entry, err := h.service.GetBySource(r.Context(), identity.TenantID, chi.URLParam(r, "sourceType"), sourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be numeric")
		return
	}
	entry, err := h.service.Post(r.Context(), identity.TenantID, id, identity.ActorID)
	if err != nil {
		h.logger.Error("post journal entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.JournalPosted()
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be numeric")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reversalDate, err := time.Parse("2006-01-02", req.ReversalDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "reversal_date must be YYYY-MM-DD")
		return
	}
	reversal, err := h.service.Reverse(r.Context(), ReverseInput{
		TenantID:     identity.TenantID,
		EntryID:      id,
		ReversalDate: reversalDate,
		Reason:       req.Reason,
		ActorID:      identity.ActorID,
	})
	if err != nil {
		h.logger.Error("reverse journal entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.JournalReversed()
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry id must be numeric")
		return
	}
	if err := h.service.Delete(r.Context(), identity.TenantID, id, identity.ActorID); err != nil {
		h.logger.Error("delete journal entry", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
