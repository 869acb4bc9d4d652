package fiscal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/solvent-hq/solvent/internal/observability"
	"github.com/solvent-hq/solvent/internal/platform/httpx"
	"github.com/solvent-hq/solvent/internal/tenant"
)

// Handler wires HTTP endpoints for fiscal years and periods.
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

// MountRoutes registers fiscal routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/years", h.createYear)
	r.Get("/years", h.listYears)
	r.Get("/years/{id}", h.getYear)
	r.Post("/years/{id}/close", h.closeYear)
	r.Get("/periods", h.listPeriods)
	r.Get("/periods/{id}", h.getPeriod)
	r.Post("/periods/{id}/close", h.closePeriod)
	r.Post("/periods/{id}/reopen", h.reopenPeriod)
	r.Post("/periods/{id}/lock", h.lockPeriod)
	r.Get("/periods/{id}/trial-balance", h.getTrialBalance)
}

type createYearRequest struct {
	Name       string `json:"name" validate:"required"`
	Year       int    `json:"year" validate:"required"`
	StartMonth int    `json:"start_month" validate:"omitempty,min=1,max=12"`
}

type closePeriodRequest struct {
	Notes string `json:"notes"`
	Force bool   `json:"force"`
}

type reopenPeriodRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type lockPeriodRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type periodResponse struct {
	ID           int64      `json:"id"`
	FiscalYearID int64      `json:"fiscal_year_id"`
	PeriodNo     int        `json:"period_no"`
	Name         string     `json:"name"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	Status       string     `json:"status"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ClosedBy     *uuid.UUID `json:"closed_by,omitempty"`
	ClosingNotes string     `json:"closing_notes,omitempty"`
	ReopenedAt   *time.Time `json:"reopened_at,omitempty"`
	ReopenReason string     `json:"reopen_reason,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
}

type yearResponse struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Year      int              `json:"year"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Status    string           `json:"status"`
	ClosedAt  *time.Time       `json:"closed_at,omitempty"`
	Periods   []periodResponse `json:"periods,omitempty"`
}

type snapshotResponse struct {
	ID           int64          `json:"id"`
	PeriodID     int64          `json:"period_id"`
	SnapshotType string         `json:"snapshot_type"`
	AsOf         string         `json:"as_of"`
	Lines        []SnapshotLine `json:"lines"`
	TotalDebit   string         `json:"total_debit"`
	TotalCredit  string         `json:"total_credit"`
	Balanced     bool           `json:"balanced"`
	Checksum     string         `json:"checksum"`
	CreatedAt    time.Time      `json:"created_at"`
}

type closePeriodResponse struct {
	Period   periodResponse   `json:"period"`
	Snapshot snapshotResponse `json:"snapshot"`
}

func toPeriodResponse(p FiscalPeriod) periodResponse {
	return periodResponse{
		ID:           p.ID,
		FiscalYearID: p.FiscalYearID,
		PeriodNo:     p.PeriodNo,
		Name:         p.Name,
		StartDate:    p.StartDate.Format("2006-01-02"),
		EndDate:      p.EndDate.Format("2006-01-02"),
		Status:       p.Status,
		ClosedAt:     p.ClosedAt,
		ClosedBy:     p.ClosedBy,
		ClosingNotes: p.ClosingNotes,
		ReopenedAt:   p.ReopenedAt,
		ReopenReason: p.ReopenReason,
		LockedAt:     p.LockedAt,
	}
}

func toYearResponse(y FiscalYear) yearResponse {
	resp := yearResponse{
		ID:        y.ID,
		Name:      y.Name,
		Year:      y.Year,
		StartDate: y.StartDate.Format("2006-01-02"),
		EndDate:   y.EndDate.Format("2006-01-02"),
		Status:    y.Status,
		ClosedAt:  y.ClosedAt,
	}
	for _, p := range y.Periods {
		resp.Periods = append(resp.Periods, toPeriodResponse(p))
	}
	return resp
}

func toSnapshotResponse(s TrialBalanceSnapshot) snapshotResponse {
	return snapshotResponse{
		ID:           s.ID,
		PeriodID:     s.PeriodID,
		SnapshotType: s.SnapshotType,
		AsOf:         s.AsOf.Format("2006-01-02"),
		Lines:        s.Lines,
		TotalDebit:   s.TotalDebit.String(),
		TotalCredit:  s.TotalCredit.String(),
		Balanced:     s.Balanced,
		Checksum:     s.Checksum,
		CreatedAt:    s.CreatedAt,
	}
}

// respondError maps close failures that carry extra payload before falling
// back to the generic error responder.
func respondError(w http.ResponseWriter, err error) {
	var drafts *DraftJournalsError
	if errors.As(err, &drafts) {
		httpx.ProblemWithCode(w, http.StatusConflict, "Draft Journals Exist", drafts.Error(), "DRAFT_JOURNALS_EXIST", map[string]any{
			"drafts":         drafts.Drafts,
			"force_required": !drafts.Blocking,
		})
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) createYear(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	var req createYearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.StartMonth == 0 {
		req.StartMonth = int(time.January)
	}
	year, err := h.service.CreateFiscalYear(r.Context(), CreateFiscalYearInput{
		TenantID:   identity.TenantID,
		Name:       req.Name,
		Year:       req.Year,
		StartMonth: time.Month(req.StartMonth),
		ActorID:    identity.ActorID,
	})
	if err != nil {
		h.logger.Error("create fiscal year", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toYearResponse(year))
}

func (h *Handler) listYears(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	years, err := h.service.ListFiscalYears(r.Context(), identity.TenantID)
	if err != nil {
		h.logger.Error("list fiscal years", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]yearResponse, 0, len(years))
	for _, y := range years {
		resp = append(resp, toYearResponse(y))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getYear(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year id must be numeric")
		return
	}
	year, err := h.service.GetFiscalYear(r.Context(), identity.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toYearResponse(year))
}

func (h *Handler) closeYear(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year id must be numeric")
		return
	}
	year, err := h.service.CloseFiscalYear(r.Context(), CloseFiscalYearInput{
		TenantID: identity.TenantID,
		YearID:   id,
		ActorID:  identity.ActorID,
	})
	if err != nil {
		h.logger.Error("close fiscal year", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toYearResponse(year))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period id must be numeric")
		return
	}
	period, err := h.service.GetPeriod(r.Context(), identity.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period id must be numeric")
		return
	}
	var req closePeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body is not valid JSON")
		return
	}
	period, snapshot, err := h.service.ClosePeriod(r.Context(), ClosePeriodInput{
		TenantID: identity.TenantID,
		PeriodID: id,
		Notes:    req.Notes,
		Force:    req.Force,
		ActorID:  identity.ActorID,
	})
	if err != nil {
		h.logger.Error("close period", slog.Int64("period_id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	h.metrics.PeriodClosed()
	httpx.JSON(w, http.StatusOK, closePeriodResponse{
		Period:   toPeriodResponse(period),
		Snapshot: toSnapshotResponse(snapshot),
	})
}

func (h *Handler) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period id must be numeric")
		return
	}
	var req reopenPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.ReopenPeriod(r.Context(), ReopenPeriodInput{
		TenantID: identity.TenantID,
		PeriodID: id,
		Reason:   req.Reason,
		ActorID:  identity.ActorID,
	})
	if err != nil {
		h.logger.Error("reopen period", slog.Int64("period_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.PeriodReopened()
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) lockPeriod(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period id must be numeric")
		return
	}
	var req lockPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body is not valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.LockPeriod(r.Context(), LockPeriodInput{
		TenantID: identity.TenantID,
		PeriodID: id,
		Reason:   req.Reason,
		ActorID:  identity.ActorID,
	})
	if err != nil {
		h.logger.Error("lock period", slog.Int64("period_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		period, err := h.service.PeriodForDate(r.Context(), identity.TenantID, date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, []periodResponse{toPeriodResponse(period)})
		return
	}
	yearID, err := strconv.ParseInt(r.URL.Query().Get("year_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "year_id or date query parameter is required")
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), identity.TenantID, yearID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		resp = append(resp, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getTrialBalance(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period id must be numeric")
		return
	}
	snapshot, err := h.service.GetClosingSnapshot(r.Context(), identity.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}
