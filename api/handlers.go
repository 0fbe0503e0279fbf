/*
handlers.go - HTTP handlers for the window & deferment engine

PURPOSE:
  Exposes the tracking engine over HTTP. Handles request parsing, JSON
  serialization and status mapping, and delegates every decision to the
  tracking/roster/report packages. This layer is one possible transport;
  a chat bot front-end drives the same operations.

ENDPOINTS:
  Self-service:
    POST /api/links/verify          Claim a personnel record
    GET  /api/status/{token}        Evaluate state (chat ID or personnel ID)
    POST /api/personnel/{id}/complete
    POST /api/personnel/{id}/uncomplete
    POST /api/personnel/{id}/defer
    POST /api/personnel/{id}/defer/clear

  Admin (allow-listed X-Actor-ID header required):
    GET    /api/admin/personnel     List records
    POST   /api/admin/personnel     Add/overwrite one record
    DELETE /api/admin/personnel/{id}  Remove with cascade
    POST   /api/admin/links/unlink  Remove a link by mixed token
    POST   /api/admin/import        CSV body, reconciled row by row
    GET    /api/admin/report.csv    Report table as CSV
    POST   /api/admin/tick          Run the daily tick, return decisions

ERROR HANDLING:
  Typed engine failures map to HTTP status:
  - 400: validation, identity mismatch, ambiguous token
  - 404: unknown personnel/link/completion
  - 409: conflicting write (outside-window date, already linked)
  - 500: store failures

AUTHORIZATION:
  A static allow-list from configuration, checked against the X-Actor-ID
  header at this boundary only. Nothing beyond that (by scope).

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router and middleware
*/
package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/readiness-engine/report"
	"github.com/warp/readiness-engine/roster"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/window"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Tracker *tracking.Tracker
	Config  tracking.Config
	Log     zerolog.Logger
	Metrics *Metrics

	// Clock is the time source, overridable in tests. Defaults to
	// time.Now in the configured timezone.
	Clock func() time.Time
}

// NewHandler wires a handler around the tracker.
func NewHandler(t *tracking.Tracker, log zerolog.Logger, metrics *Metrics) *Handler {
	h := &Handler{Tracker: t, Config: t.Config, Log: log, Metrics: metrics}
	loc, err := t.Config.Location()
	if err != nil {
		loc = time.UTC
	}
	h.Clock = func() time.Time { return time.Now().In(loc) }
	return h
}

func (h *Handler) today() window.Date {
	return window.DateOf(h.Clock())
}

// =============================================================================
// SELF-SERVICE HANDLERS
// =============================================================================

// Verify links a chat identity after an ID+birthday match.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TelegramID == 0 {
		writeError(w, http.StatusBadRequest, "telegram_id is required", nil)
		return
	}
	bd, err := window.ParseDate(req.Birthday)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid birthday", err)
		return
	}

	err = h.Tracker.Verify(r.Context(), tracking.TelegramID(req.TelegramID),
		tracking.PersonnelID(req.PersonnelID), bd, h.Clock())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true, "personnel_id": req.PersonnelID})
}

// Status resolves a mixed token and evaluates the entity.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	res, err := h.Tracker.Resolve(r.Context(), token)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	switch res.Kind {
	case tracking.ResolvedNotFound:
		writeError(w, http.StatusNotFound, fmt.Sprintf("No record matches %q", token), nil)
		return
	case tracking.ResolvedAmbiguous:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Token %q matches multiple records", token), nil)
		return
	}

	p, err := h.Tracker.Store.GetPersonnel(r.Context(), res.PersonnelID)
	if err != nil || p == nil {
		h.writeEngineError(w, tracking.ErrPersonnelNotFound)
		return
	}

	asOf := h.today()
	st, err := h.Tracker.Evaluate(r.Context(), *p, asOf)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	link, err := h.Tracker.Store.GetLinkByPersonnel(r.Context(), p.ID)
	if err != nil {
		h.writeEngineError(w, &tracking.StoreError{Op: "get link", Err: err})
		return
	}

	dto := toStatusDTO(*p, link != nil, st)
	if st.Kind == tracking.StatusInWindow || st.Kind == tracking.StatusOverdue {
		if next, ok := window.NextReminder(st.Window, asOf, h.Config.IntervalDays); ok {
			dto.NextReminder = next.String()
		}
	}

	history, err := h.history(r.Context(), p.ID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dto.History = history
	writeJSON(w, http.StatusOK, dto)
}

// Complete marks the window-year containing the given date as done.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	pid := tracking.PersonnelID(chi.URLParam(r, "id"))

	var req CompleteRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	on := h.today()
	if req.Date != "" {
		var err error
		if on, err = window.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
	}

	c, err := h.Tracker.Complete(r.Context(), pid, on, req.Force, h.Clock())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"personnel_id": string(c.PersonnelID),
		"window_year":  c.WindowYear,
		"completed_on": c.CompletedOn.String(),
		"forced":       c.Forced,
	})
}

// Uncomplete undoes a completion for the given (or current) window-year.
func (h *Handler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	pid := tracking.PersonnelID(chi.URLParam(r, "id"))

	var req UncompleteRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	year, err := h.windowYearFor(r, pid, req.WindowYear)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := h.Tracker.Uncomplete(r.Context(), pid, year); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"personnel_id": string(pid), "window_year": year})
}

// Defer records an active deferment for the given (or current) window-year.
func (h *Handler) Defer(w http.ResponseWriter, r *http.Request) {
	pid := tracking.PersonnelID(chi.URLParam(r, "id"))

	var req DeferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	year, err := h.windowYearFor(r, pid, req.WindowYear)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	d, err := h.Tracker.Defer(r.Context(), pid, year, req.Reason, h.Clock())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"personnel_id": string(d.PersonnelID),
		"window_year":  d.WindowYear,
		"reason":       d.Reason,
		"active":       d.Active,
	})
}

// ClearDeferment deactivates a deferment for the given (or current)
// window-year.
func (h *Handler) ClearDeferment(w http.ResponseWriter, r *http.Request) {
	pid := tracking.PersonnelID(chi.URLParam(r, "id"))

	var req UncompleteRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	year, err := h.windowYearFor(r, pid, req.WindowYear)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := h.Tracker.ClearDeferment(r.Context(), pid, year, h.Clock()); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"personnel_id": string(pid), "window_year": year})
}

// history merges the entity's completion and deferment records into one
// per-window-year view, oldest first.
func (h *Handler) history(ctx context.Context, pid tracking.PersonnelID) ([]HistoryEntryDTO, error) {
	completions, err := h.Tracker.Store.ListCompletions(ctx, pid)
	if err != nil {
		return nil, &tracking.StoreError{Op: "list completions", Err: err}
	}
	deferments, err := h.Tracker.Store.ListDeferments(ctx, pid)
	if err != nil {
		return nil, &tracking.StoreError{Op: "list deferments", Err: err}
	}

	byYear := make(map[int]*HistoryEntryDTO)
	years := make([]int, 0, len(completions)+len(deferments))
	entry := func(year int) *HistoryEntryDTO {
		if e, ok := byYear[year]; ok {
			return e
		}
		e := &HistoryEntryDTO{WindowYear: year}
		byYear[year] = e
		years = append(years, year)
		return e
	}
	for _, c := range completions {
		e := entry(c.WindowYear)
		e.CompletedOn = c.CompletedOn.String()
		e.Forced = c.Forced
	}
	for _, d := range deferments {
		e := entry(d.WindowYear)
		e.DeferReason = d.Reason
		e.DeferActive = d.Active
	}

	sort.Ints(years)
	out := make([]HistoryEntryDTO, len(years))
	for i, y := range years {
		out[i] = *byYear[y]
	}
	return out, nil
}

// windowYearFor defaults an omitted window-year to the entity's current one.
func (h *Handler) windowYearFor(r *http.Request, pid tracking.PersonnelID, requested int) (int, error) {
	if requested != 0 {
		return requested, nil
	}
	p, err := h.Tracker.Store.GetPersonnel(r.Context(), pid)
	if err != nil {
		return 0, &tracking.StoreError{Op: "get personnel", Err: err}
	}
	if p == nil {
		return 0, tracking.ErrPersonnelNotFound
	}
	return h.Tracker.Window(*p, h.today()).Year, nil
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListPersonnel returns every tracked record.
func (h *Handler) ListPersonnel(w http.ResponseWriter, r *http.Request) {
	people, err := h.Tracker.Store.ListPersonnel(r.Context())
	if err != nil {
		h.writeEngineError(w, &tracking.StoreError{Op: "list personnel", Err: err})
		return
	}
	links, err := h.Tracker.Store.ListLinks(r.Context())
	if err != nil {
		h.writeEngineError(w, &tracking.StoreError{Op: "list links", Err: err})
		return
	}
	verified := make(map[tracking.PersonnelID]bool, len(links))
	for _, l := range links {
		verified[l.PersonnelID] = true
	}

	dtos := make([]PersonnelDTO, len(people))
	for i, p := range people {
		dtos[i] = PersonnelDTO{
			PersonnelID: string(p.ID),
			Birthday:    p.Birthday.String(),
			Group:       p.GroupLabel(),
			Verified:    verified[p.ID],
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddPersonnel creates or overwrites one personnel record.
func (h *Handler) AddPersonnel(w http.ResponseWriter, r *http.Request) {
	var req AddPersonnelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	bd, err := window.ParseDate(req.Birthday)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid birthday", err)
		return
	}

	p := tracking.Personnel{ID: tracking.PersonnelID(req.PersonnelID), Birthday: bd, Group: strings.TrimSpace(req.Group)}
	if err := h.Tracker.AddPersonnel(r.Context(), p); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PersonnelDTO{
		PersonnelID: string(p.ID),
		Birthday:    p.Birthday.String(),
		Group:       p.GroupLabel(),
	})
}

// RemovePersonnel deletes a record with cascade.
func (h *Handler) RemovePersonnel(w http.ResponseWriter, r *http.Request) {
	pid := tracking.PersonnelID(chi.URLParam(r, "id"))
	if err := h.Tracker.Remove(r.Context(), pid); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": string(pid)})
}

// Unlink removes a chat binding by mixed token.
func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) {
	var req UnlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Tracker.Resolve(r.Context(), req.Token)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	switch res.Kind {
	case tracking.ResolvedNotFound:
		writeError(w, http.StatusNotFound, fmt.Sprintf("No record matches %q", req.Token), nil)
		return
	case tracking.ResolvedAmbiguous:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Token %q matches multiple records", req.Token), nil)
		return
	}

	link, err := h.Tracker.Store.GetLinkByPersonnel(r.Context(), res.PersonnelID)
	if err != nil {
		h.writeEngineError(w, &tracking.StoreError{Op: "get link", Err: err})
		return
	}
	if link == nil {
		h.writeEngineError(w, tracking.ErrLinkNotFound)
		return
	}
	if err := h.Tracker.Unlink(r.Context(), link.TelegramID); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlinked": string(res.PersonnelID)})
}

// Import reconciles a CSV body (header + rows) against the store.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	reader := csv.NewReader(r.Body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Malformed CSV", err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "Empty upload", nil)
		return
	}

	rows, ok := roster.FromRecords(records[0], records[1:])
	if !ok {
		writeError(w, http.StatusBadRequest, "Header must include personnel_id and birthday columns", nil)
		return
	}

	res := roster.Reconcile(r.Context(), h.Tracker.Store, rows)
	if h.Metrics != nil {
		h.Metrics.ImportRowsTotal.WithLabelValues("inserted").Add(float64(res.Inserted))
		h.Metrics.ImportRowsTotal.WithLabelValues("updated").Add(float64(res.Updated))
		h.Metrics.ImportRowsTotal.WithLabelValues("error").Add(float64(len(res.Errors)))
	}

	resp := ImportResponse{Inserted: res.Inserted, Updated: res.Updated}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, ImportRowError{Row: e.Index, Reason: e.Err.Error()})
	}
	h.Log.Info().Int("inserted", res.Inserted).Int("updated", res.Updated).
		Int("errors", len(res.Errors)).Msg("import reconciled")
	writeJSON(w, http.StatusOK, resp)
}

// ReportCSV streams the report table as CSV: the union sheet with a group
// column; per-sheet summaries go in X-Report-Summary trailing JSON header.
func (h *Handler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	table, err := report.Build(r.Context(), h.Tracker, h.today())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.ReportsTotal.Inc()
	}

	summaries := make(map[string]SummaryDTO, len(table.Sheets)+1)
	for _, sheet := range table.Sheets {
		summaries[sheet.Name] = toSummaryDTO(sheet.Summary)
	}
	summaries[table.All.Name] = toSummaryDTO(table.All.Summary)
	if blob, err := json.Marshal(summaries); err == nil {
		w.Header().Set("X-Report-Summary", string(blob))
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="readiness_report_%s.csv"`, table.AsOf))

	cw := csv.NewWriter(w)
	cw.Write(report.Header())
	for _, row := range table.All.Rows {
		cw.Write(row.Record())
	}
	cw.Flush()
}

// Tick runs the daily tick and returns the decisions. Dispatch stays with
// the caller; this endpoint exists for operators and the scheduler test
// path.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asOf := h.today()
	if req.AsOf != "" {
		var err error
		if asOf, err = window.ParseDate(req.AsOf); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
			return
		}
	}

	decisions, err := h.Tracker.RunDailyTick(r.Context(), asOf)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := TickResponse{AsOf: asOf.String(), Decisions: make([]DecisionDTO, len(decisions))}
	for i, d := range decisions {
		resp.Decisions[i] = toDecisionDTO(d)
		if d.ShouldRemind {
			resp.Reminders++
		}
	}
	if h.Metrics != nil {
		h.Metrics.TicksTotal.Inc()
		h.Metrics.RemindersTotal.Add(float64(resp.Reminders))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// MIDDLEWARE & HELPERS
// =============================================================================

// RequireAdmin gates a route group on the configured allow-list. The
// actor's external identity arrives in the X-Actor-ID header; the real
// chat transport performs the equivalent check on the sender ID.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
		if err != nil || !h.Config.IsAdmin(actor) {
			writeError(w, http.StatusForbidden, "Admins only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case tracking.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case tracking.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case tracking.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("operation failed")
		writeError(w, http.StatusInternalServerError, "Operation failed", err)
	}
}

// decodeOptionalBody tolerates an empty body for requests whose fields
// all have defaults.
func decodeOptionalBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

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
