package api_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/readiness-engine/api"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/tracking/store"
	"github.com/warp/readiness-engine/window"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const adminID = "9001"

// frozenNow keeps every handler decision on a known calendar day.
var frozenNow = time.Date(2025, time.August, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *tracking.Tracker) {
	cfg := tracking.DefaultConfig()
	cfg.AdminIDs = []int64{9001}
	tr := tracking.NewTracker(store.NewMemory(), cfg)

	metrics := api.NewMetrics(prometheus.NewRegistry())
	h := api.NewHandler(tr, zerolog.Nop(), metrics)
	h.Clock = func() time.Time { return frozenNow }

	srv := httptest.NewServer(api.NewRouter(h, prometheus.NewRegistry()))
	t.Cleanup(srv.Close)
	return srv, tr
}

func doJSON(t *testing.T, method, url, actor string, body any) *http.Response {
	t.Helper()
	var payload string
	if body != nil {
		blob, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(blob)
	}
	req, err := http.NewRequest(method, url, strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func seed(t *testing.T, tr *tracking.Tracker, id string, birthday window.Date) {
	t.Helper()
	require.NoError(t, tr.AddPersonnel(context.Background(),
		tracking.Personnel{ID: tracking.PersonnelID(id), Birthday: birthday}))
}

// =============================================================================
// SELF-SERVICE FLOW
// =============================================================================

func TestVerifyThenStatus(t *testing.T) {
	// GIVEN: A seeded personnel record
	// WHEN: A chat identity verifies, then asks for status by chat ID
	// THEN: Status resolves through the link and reports the open window
	srv, tr := newTestServer(t)
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/links/verify", "", map[string]any{
		"telegram_id":  1001,
		"personnel_id": "P-1",
		"birthday":     "1990-07-14",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/status/1001", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st api.StatusDTO
	decodeBody(t, resp, &st)
	assert.Equal(t, "P-1", st.PersonnelID)
	assert.True(t, st.Verified)
	assert.Equal(t, "in_window", st.Status)
	assert.Equal(t, "2025-07-14", st.WindowStart)
	assert.Equal(t, "2025-10-22", st.WindowEnd)
	assert.NotEmpty(t, st.NextReminder)
}

func TestVerify_Mismatch(t *testing.T) {
	srv, tr := newTestServer(t)
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/links/verify", "", map[string]any{
		"telegram_id":  1001,
		"personnel_id": "P-1",
		"birthday":     "1990-07-15",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatus_UnknownToken(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/status/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatus_IncludesHistory(t *testing.T) {
	// GIVEN: A past completion and a past deferment on different years
	// THEN: Status carries both, oldest first
	srv, tr := newTestServer(t)
	ctx := context.Background()
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	_, err := tr.Complete(ctx, "P-1", window.NewDate(2024, time.July, 20), false, frozenNow)
	require.NoError(t, err)
	_, err = tr.Defer(ctx, "P-1", 2023, "overseas", frozenNow)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/status/P-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st api.StatusDTO
	decodeBody(t, resp, &st)
	require.Len(t, st.History, 2)
	assert.Equal(t, 2023, st.History[0].WindowYear)
	assert.Equal(t, "overseas", st.History[0].DeferReason)
	assert.Equal(t, 2024, st.History[1].WindowYear)
	assert.Equal(t, "2024-07-20", st.History[1].CompletedOn)
}

func TestComplete_DefaultsToToday(t *testing.T) {
	srv, tr := newTestServer(t)
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/personnel/P-1/complete", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, "2025-08-01", out["completed_on"])
	assert.Equal(t, false, out["forced"])
}

func TestComplete_OutsideWindow_ConflictThenForce(t *testing.T) {
	// GIVEN: A completion date outside the window
	// THEN: 409 without force, 200 with force and the forced flag set
	srv, tr := newTestServer(t)
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/personnel/P-1/complete", "",
		map[string]any{"date": "2025-12-01"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/personnel/P-1/complete", "",
		map[string]any{"date": "2025-12-01", "force": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, true, out["forced"])
}

func TestDeferFlow(t *testing.T) {
	// Defer pauses the entity, clear resumes it.
	srv, tr := newTestServer(t)
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/personnel/P-1/defer", "",
		map[string]any{"reason": "medical"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/status/P-1", "", nil)
	var st api.StatusDTO
	decodeBody(t, resp, &st)
	assert.Equal(t, "deferred", st.Status)
	assert.Equal(t, "medical", st.DeferReason)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/personnel/P-1/defer/clear", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/status/P-1", "", nil)
	decodeBody(t, resp, &st)
	assert.Equal(t, "in_window", st.Status)
}

func TestDefer_MissingReason(t *testing.T) {
	srv, tr := newTestServer(t)
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/personnel/P-1/defer", "",
		map[string]any{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ADMIN GUARD
// =============================================================================

func TestAdminRoutes_RequireAllowListedActor(t *testing.T) {
	srv, _ := newTestServer(t)

	// No actor header.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/admin/personnel", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Actor not on the list.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/personnel", "1234", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Allow-listed actor.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/personnel", adminID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_AddListRemovePersonnel(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/personnel", adminID, map[string]any{
		"personnel_id": "P-1",
		"birthday":     "1990-07-14",
		"group":        "Alpha",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/personnel", adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var people []api.PersonnelDTO
	decodeBody(t, resp, &people)
	require.Len(t, people, 1)
	assert.Equal(t, "Alpha", people[0].Group)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/admin/personnel/P-1", adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/personnel", adminID, nil)
	people = nil
	decodeBody(t, resp, &people)
	assert.Empty(t, people)
}

func TestAdmin_UnlinkByMixedToken(t *testing.T) {
	srv, tr := newTestServer(t)
	bd := window.NewDate(1990, time.July, 14)
	seed(t, tr, "P-1", bd)
	require.NoError(t, tr.Verify(context.Background(), 1001, "P-1", bd, frozenNow))

	// Unlink by personnel ID rather than chat ID.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/links/unlink", adminID,
		map[string]any{"token": "P-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	link, err := tr.Store.GetLink(context.Background(), 1001)
	require.NoError(t, err)
	assert.Nil(t, link)
}

// =============================================================================
// IMPORT & REPORT
// =============================================================================

func TestAdmin_Import_PartialFailure(t *testing.T) {
	srv, tr := newTestServer(t)

	body := "\ufeffid,Date Of Birth,Team\n" +
		"A,2000-01-01,Alpha\n" +
		"B,not-a-date,Alpha\n" +
		"C,2001-02-02,Bravo\n"
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/import", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-Actor-ID", adminID)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.ImportResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 0, out.Updated)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, 1, out.Errors[0].Row)

	a, err := tr.Store.GetPersonnel(context.Background(), "A")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Alpha", a.Group)
}

func TestAdmin_ReportCSV(t *testing.T) {
	srv, tr := newTestServer(t)
	ctx := context.Background()
	seed(t, tr, "P-1", window.NewDate(1990, time.July, 14))
	seed(t, tr, "P-2", window.NewDate(1990, time.July, 14))
	_, err := tr.Complete(ctx, "P-2", window.NewDate(2025, time.July, 20), false, frozenNow)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/admin/report.csv", adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")
	assert.Equal(t, "personnel_id", records[0][0])

	byID := map[string][]string{records[1][0]: records[1], records[2][0]: records[2]}
	assert.Equal(t, "in_window", byID["P-1"][5])
	assert.Equal(t, "yes", byID["P-1"][10], "outstanding row is highlighted")
	assert.Equal(t, "completed", byID["P-2"][5])
	assert.Equal(t, "no", byID["P-2"][10])

	var summaries map[string]api.SummaryDTO
	require.NoError(t, json.Unmarshal([]byte(resp.Header.Get("X-Report-Summary")), &summaries))
	assert.Equal(t, 2, summaries["All"].Total)
	assert.Equal(t, "50.0", summaries["All"].CompletionRate)
}

// =============================================================================
// TICK
// =============================================================================

func TestAdmin_Tick_GridDay(t *testing.T) {
	// GIVEN: A verified entity whose window started 10 days before asOf
	// WHEN: A tick runs for that day
	// THEN: One reminder decision fires
	srv, tr := newTestServer(t)
	bd := window.NewDate(1990, time.July, 22) // day 10 falls on Aug 1
	seed(t, tr, "P-1", bd)
	require.NoError(t, tr.Verify(context.Background(), 1001, "P-1", bd, frozenNow))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/tick", adminID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.TickResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "2025-08-01", out.AsOf)
	assert.Equal(t, 1, out.Reminders)
	require.Len(t, out.Decisions, 1)
	assert.True(t, out.Decisions[0].ShouldRemind)
}

func TestAdmin_Tick_ExplicitDate(t *testing.T) {
	srv, tr := newTestServer(t)
	bd := window.NewDate(1990, time.July, 14)
	seed(t, tr, "P-1", bd)
	require.NoError(t, tr.Verify(context.Background(), 1001, "P-1", bd, frozenNow))

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/admin/tick", adminID,
		map[string]any{"as_of": "2025-07-24"}) // day 10
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out api.TickResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, 1, out.Reminders)
}
