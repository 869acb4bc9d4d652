package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solvent-hq/solvent/internal/shared"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var pd ProblemDetail
	if err := json.NewDecoder(rec.Body).Decode(&pd); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return pd
}

func TestRespondErrorMapsCategories(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{shared.NewError("UNBALANCED", shared.CategoryValidation, "journal lines must balance"), http.StatusBadRequest, "UNBALANCED"},
		{shared.NewError("PERIOD_NOT_FOUND", shared.CategoryValidation, "no period covers date"), http.StatusNotFound, "PERIOD_NOT_FOUND"},
		{shared.NewError("PERIOD_LOCKED", shared.CategoryConflict, "period is locked"), http.StatusConflict, "PERIOD_LOCKED"},
		{shared.NewError("DRAFT_JOURNALS_EXIST", shared.CategoryPolicy, "drafts remain"), http.StatusConflict, "DRAFT_JOURNALS_EXIST"},
		{shared.NewError("EQUATION_BROKEN", shared.CategoryInvariant, "accounting equation broken"), http.StatusInternalServerError, "EQUATION_BROKEN"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, fmt.Errorf("handler: %w", tc.err))
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.code, rec.Code, tc.status)
		}
		pd := decodeProblem(t, rec)
		if pd.Code != tc.code {
			t.Fatalf("problem code %q, want %q", pd.Code, tc.code)
		}
	}
}

func TestRespondErrorHidesUncodedDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: relation missing"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rec.Code)
	}
	pd := decodeProblem(t, rec)
	if pd.Detail != "" {
		t.Fatalf("uncoded detail leaked: %q", pd.Detail)
	}
}
