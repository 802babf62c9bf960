package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"sofia/internal/core"
	applog "sofia/internal/log"
	"sofia/internal/services"
)

const genericErrorMessage = "Something went wrong, please try again."

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the templates and the storage backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok", "backend": "ok"}
	status, code := "ready", http.StatusOK

	if s.templates == nil {
		checks["templates"] = "not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			checks["backend"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
		"cache":     map[string]int{"snapshots": s.snapshots.Size()},
	})
}

// handleIndex renders the full dashboard. An unusable custom range falls
// back to the default view with the error shown above the list.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.localNow()

	all, err := s.snapshot(ctx)
	if err != nil {
		s.serverError(w, r, "load expenses", err)
		return
	}

	q := core.ParseListQuery(r.URL.Query())
	view, err := core.BuildView(all, q, s.pageSize, now)
	var viewErr string
	if err != nil {
		viewErr = userMessage(err)
		view, _ = core.BuildView(all, core.DefaultListQuery(), s.pageSize, now)
	}

	activity, err := s.svc.ListActivity(ctx, activityLimit)
	if err != nil {
		// The page is still useful without history.
		applog.FromContext(ctx).WarnContext(ctx, "Failed to load activity", "error", err)
	}

	data := indexData{
		listData: newListData(view, core.FilterByDateRange(all, view.Range), now),
		Banner:   s.calendar.Banner(now),
		Activity: activity,
		Today:    core.DateOf(now).String(),
		Payers:   core.KnownPayers,
	}
	data.Error = viewErr
	s.render(w, r, http.StatusOK, "index.html", data)
}

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	s.renderList(w, r, "expenses")
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.renderList(w, r, "summary")
}

// renderList renders one of the partials driven by the list query.
func (s *Server) renderList(w http.ResponseWriter, r *http.Request, name string) {
	data, err := s.listData(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, name, data)
}

func (s *Server) listData(r *http.Request) (listData, error) {
	all, err := s.snapshot(r.Context())
	if err != nil {
		return listData{}, err
	}
	now := s.localNow()
	view, err := core.BuildView(all, core.ParseListQuery(r.URL.Query()), s.pageSize, now)
	if err != nil {
		return listData{}, err
	}
	return newListData(view, core.FilterByDateRange(all, view.Range), now), nil
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.svc.ListActivity(r.Context(), activityLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "activity", struct {
		Activity []core.Activity
		Now      time.Time
	}{activity, s.localNow()})
}

// summaryJSON is the /api/summary payload. Amounts are dollar strings so
// clients never see binary floating point.
type summaryJSON struct {
	Filter           string  `json:"filter"`
	Range            string  `json:"range"`
	Count            int     `json:"count"`
	Total            string  `json:"total"`
	Leslie           string  `json:"leslie"`
	Ian              string  `json:"ian"`
	LesliePercentage float64 `json:"leslie_percentage"`
	IanPercentage    float64 `json:"ian_percentage"`
	LeslieOwes       string  `json:"leslie_owes"`
	IanOwes          string  `json:"ian_owes"`
	Balance          string  `json:"balance"`
	FilteredCount    int     `json:"filtered_count"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	data, err := s.listData(r)
	if err != nil {
		if core.IsValidation(err) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": userMessage(err)})
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to build summary", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": genericErrorMessage})
		return
	}
	t := data.View.Summary
	writeJSON(w, http.StatusOK, summaryJSON{
		Filter:           data.View.Query.Filter,
		Range:            string(data.View.Query.Preset),
		Count:            t.Count,
		Total:            t.Total.Decimal().StringFixed(2),
		Leslie:           t.Leslie.Decimal().StringFixed(2),
		Ian:              t.Ian.Decimal().StringFixed(2),
		LesliePercentage: t.LesliePercentage,
		IanPercentage:    t.IanPercentage,
		LeslieOwes:       t.LeslieOwes.StringFixed(2),
		IanOwes:          t.IanOwes.StringFixed(2),
		Balance:          data.Balance.Message(),
		FilteredCount:    data.View.Counts.Count,
	})
}

// render executes a template into a buffer so a failure never leaves a
// half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.serverError(w, r, "render "+name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// writeError maps service errors onto HTMX error responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		msg := userMessage(err)
		UnprocessableEntityError(msg).TriggerErrorNotification(msg).Write(w)
	case errors.Is(err, services.ErrNotFound):
		NotFoundError("Expense not found").TriggerErrorNotification("Expense not found").Write(w)
	default:
		s.serverError(w, r, "handle request", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	applog.FromContext(ctx).ErrorContext(ctx, "Request failed", "op", op, "error", err)
	InternalServerError(genericErrorMessage).TriggerErrorNotification(genericErrorMessage).Write(w)
}

// userMessage capitalises an error for display.
func userMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
