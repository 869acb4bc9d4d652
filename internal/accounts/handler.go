package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/solvent-hq/solvent/internal/platform/httpx"
	"github.com/solvent-hq/solvent/internal/tenant"
)

// Handler exposes the account directory over HTTP.
type Handler struct {
	logger    *slog.Logger
	directory *Directory
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, directory *Directory) *Handler {
	return &Handler{logger: logger, directory: directory}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type accountResponse struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	NormalBalance string `json:"normal_balance"`
	Active        bool   `json:"active"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Code:          a.Code,
		Name:          a.Name,
		Type:          string(a.Type),
		NormalBalance: string(a.NormalBalance),
		Active:        a.Active,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	accounts, err := h.directory.List(r.Context(), identity.TenantID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := tenant.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "tenant header is required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	account, err := h.directory.Get(r.Context(), identity.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}
