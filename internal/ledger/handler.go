package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/observability"
	"github.com/solvent-hq/solvent/internal/platform/httpx"
	"github.com/solvent-hq/solvent/internal/tenant"
)

// Handler wires HTTP endpoints for ledger projections.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes registers ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{id}", h.accountLedger)
	r.Get("/accounts/{id}/balance", h.accountBalance)
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/summary", h.summary)
}

type ledgerRowResponse struct {
	EntryID     int64  `json:"entry_id"`
	EntryNumber string `json:"entry_number"`
	EntryDate   string `json:"entry_date"`
	Description string `json:"description"`
	Memo        string `json:"memo,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
}

type accountLedgerResponse struct {
	AccountID      int64               `json:"account_id"`
	AccountCode    string              `json:"account_code"`
	AccountName    string              `json:"account_name"`
	NormalBalance  string              `json:"normal_balance"`
	From           string              `json:"from"`
	To             string              `json:"to"`
	OpeningBalance string              `json:"opening_balance"`
	Rows           []ledgerRowResponse `json:"rows"`
	NetMovement    string              `json:"net_movement"`
	ClosingBalance string              `json:"closing_balance"`
}

type balanceResponse struct {
	AccountID   int64  `json:"account_id"`
	AccountCode string `json:"account_code"`
	AsOf        string `json:"as_of"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
}

type trialBalanceRowResponse struct {
	AccountID     int64  `json:"account_id"`
	AccountCode   string `json:"account_code"`
	AccountName   string `json:"account_name"`
	AccountType   string `json:"account_type"`
	NormalBalance string `json:"normal_balance"`
	Debit         string `json:"debit"`
	Credit        string `json:"credit"`
}

type trialBalanceResponse struct {
	AsOf        string                    `json:"as_of"`
	Rows        []trialBalanceRowResponse `json:"rows"`
	TotalDebit  string                    `json:"total_debit"`
	TotalCredit string                    `json:"total_credit"`
}

type typeTotalResponse struct {
	Type   string `json:"type"`
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
	Net    string `json:"net"`
}

type summaryResponse struct {
	AsOf       string              `json:"as_of"`
	Totals     []typeTotalResponse `json:"totals"`
	Difference string              `json:"difference"`
	Balanced   bool                `json:"balanced"`
}

func (h *Handler) accountLedger(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be numeric")
		return
	}
	from, ok := parseDateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseDateParam(w, r, "to")
	if !ok {
		return
	}
	if from.IsZero() || to.IsZero() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from and to query parameters are required")
		return
	}
	statement, err := h.service.AccountLedger(r.Context(), identity.TenantID, accountID, from, to)
	if err != nil {
		h.logger.Error("account ledger", slog.Any("error", err), slog.Int64("account_id", accountID))
		httpx.RespondError(w, err)
		return
	}
	resp := accountLedgerResponse{
		AccountID:      statement.Account.ID,
		AccountCode:    statement.Account.Code,
		AccountName:    statement.Account.Name,
		NormalBalance:  string(statement.Account.NormalBalance),
		From:           statement.From.Format("2006-01-02"),
		To:             statement.To.Format("2006-01-02"),
		OpeningBalance: statement.OpeningBalance.String(),
		Rows:           make([]ledgerRowResponse, 0, len(statement.Rows)),
		NetMovement:    statement.NetMovement.String(),
		ClosingBalance: statement.ClosingBalance.String(),
	}
	for _, row := range statement.Rows {
		resp.Rows = append(resp.Rows, ledgerRowResponse{
			EntryID:     row.EntryID,
			EntryNumber: row.EntryNumber,
			EntryDate:   row.EntryDate.Format("2006-01-02"),
			Description: row.Description,
			Memo:        row.Memo,
			Debit:       row.Debit.String(),
			Credit:      row.Credit.String(),
			Balance:     row.Balance.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be numeric")
		return
	}
	asOf, ok := parseDateParam(w, r, "as_of")
	if !ok {
		return
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	balance, err := h.service.AccountBalance(r.Context(), identity.TenantID, accountID, asOf)
	if err != nil {
		h.logger.Error("account balance", slog.Any("error", err), slog.Int64("account_id", accountID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		AccountID:   balance.Account.ID,
		AccountCode: balance.Account.Code,
		AsOf:        balance.AsOf.Format("2006-01-02"),
		Debit:       balance.Debit.String(),
		Credit:      balance.Credit.String(),
		Balance:     balance.Balance.String(),
	})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	asOf, ok := parseDateParam(w, r, "as_of")
	if !ok {
		return
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	rows, err := h.service.TrialBalance(r.Context(), identity.TenantID, asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := trialBalanceResponse{
		AsOf: dateOnly(asOf).Format("2006-01-02"),
		Rows: make([]trialBalanceRowResponse, 0, len(rows)),
	}
	var totalDebit, totalCredit decimal.Decimal
	for _, row := range rows {
		totalDebit = totalDebit.Add(row.Debit)
		totalCredit = totalCredit.Add(row.Credit)
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, trialBalanceRowResponse{
			AccountID:     row.AccountID,
			AccountCode:   row.AccountCode,
			AccountName:   row.AccountName,
			AccountType:   string(row.AccountType),
			NormalBalance: string(row.NormalBalance),
			Debit:         row.Debit.String(),
			Credit:        row.Credit.String(),
		})
	}
	resp.TotalDebit = totalDebit.String()
	resp.TotalCredit = totalCredit.String()
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	asOf, ok := parseDateParam(w, r, "as_of")
	if !ok {
		return
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	summary, err := h.service.SummaryByType(r.Context(), identity.TenantID, asOf)
	if err != nil {
		h.logger.Error("ledger summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !summary.Balanced {
		h.metrics.IntegrityFailure()
		h.logger.Error("accounting equation violated",
			slog.String("tenant_id", identity.TenantID.String()),
			slog.String("difference", summary.Difference.String()))
	}
	resp := summaryResponse{
		AsOf:       summary.AsOf.Format("2006-01-02"),
		Totals:     make([]typeTotalResponse, 0, len(summary.Totals)),
		Difference: summary.Difference.String(),
		Balanced:   summary.Balanced,
	}
	for _, total := range summary.Totals {
		resp.Totals = append(resp.Totals, typeTotalResponse{
			Type:   string(total.Type),
			Debit:  total.Debit.String(),
			Credit: total.Credit.String(),
			Net:    total.Net.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// parseDateParam reads an optional YYYY-MM-DD query parameter. A missing
// parameter yields a zero time; a malformed one writes the error response
// and returns false.
func parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return parsed, true
}
