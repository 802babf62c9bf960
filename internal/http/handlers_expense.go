package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"sofia/internal/core"
	applog "sofia/internal/log"
	"sofia/internal/services"

	"github.com/go-chi/chi"
)

// expenseJSON is the wire form returned to JSON clients.
type expenseJSON struct {
	ID          string `json:"id"`
	Payer       string `json:"payer"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func newExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		Payer:       e.Payer.String(),
		Amount:      e.Amount.Decimal().StringFixed(2),
		Description: e.Description,
		Date:        e.Date.String(),
		Note:        e.Note,
		CreatedAt:   e.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Malformed create request", "error", err)
		if errors.Is(err, errBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request too large").Write(w)
			return
		}
		BadRequestError("Malformed request").Write(w)
		return
	}

	in := p.NewExpense()
	if in.Date == "" {
		in.Date = core.DateOf(s.localNow()).String()
	}

	e, err := s.svc.CreateExpense(ctx, in)
	if err != nil {
		if wantsJSON(r, p) {
			s.writeJSONError(w, r, err)
			return
		}
		s.writeError(w, r, err)
		return
	}
	s.snapshots.Invalidate()
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseWrite(ctx, applog.OpCreate, e.ID, e.Description, e.Amount.Cents, e.Payer.String(), e.Date.String())

	switch {
	case wantsJSON(r, p):
		writeJSON(w, http.StatusCreated, newExpenseJSON(e))
		return
	case !isHTMX(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	msg := fmt.Sprintf("Added %s for %s", e.Description, e.Amount)
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerExpenseCreated(e.ID).
		TriggerFormReset().
		TriggerSuccessNotification(msg).
		BodyHTML(`<div class="success" role="status">` + template.HTMLEscapeString(msg) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		BadRequestError("Missing expense ID").Write(w)
		return
	}

	e, err := s.svc.DeleteExpense(ctx, id)
	if err != nil {
		if wantsJSON(r, nil) {
			s.writeJSONError(w, r, err)
			return
		}
		s.writeError(w, r, err)
		return
	}
	s.snapshots.Invalidate()
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogExpenseWrite(ctx, applog.OpDelete, e.ID, e.Description, e.Amount.Cents, e.Payer.String(), e.Date.String())

	switch {
	case wantsJSON(r, nil):
		writeJSON(w, http.StatusOK, newExpenseJSON(e))
		return
	case !isHTMX(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	// The empty body swaps the deleted row out of the table.
	NewHTMXResponse().
		TriggerExpenseDeleted(e.ID).
		TriggerSuccessNotification(fmt.Sprintf("Deleted %s", e.Description)).
		Write(w)
}

// handleExport streams the current filter and range as CSV. The payer
// filter applies to the export; pagination does not.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := s.snapshot(ctx)
	if err != nil {
		s.serverError(w, r, "load expenses", err)
		return
	}

	now := s.localNow()
	q := core.ParseListQuery(r.URL.Query())
	rng, err := q.Range(now)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows := core.FilterByPayer(core.FilterByDateRange(all, rng), q.Filter)

	out := core.ExportCSV(rows, q.Filter, now)
	if out == nil {
		if isHTMX(r) {
			NewHTMXResponse().TriggerWarningNotification("No expenses to export").Write(w)
			return
		}
		http.Error(w, "No expenses to export", http.StatusNotFound)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Exported expenses",
		applog.FieldOperation, applog.OpExport,
		"filter", q.Filter,
		"rows", out.Rows)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.Content))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	const msg = "Too many changes, please wait a moment."
	if wantsJSON(r, nil) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": msg})
		return
	}
	TooManyRequestsError(msg).TriggerErrorNotification(msg).Write(w)
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": userMessage(err)})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Expense not found"})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": genericErrorMessage})
	}
}
