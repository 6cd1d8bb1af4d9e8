package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/navigator"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/benvon/sitetime/internal/storage"
	"github.com/benvon/sitetime/internal/tracker"
	"go.uber.org/zap"
)

const testDay = "2026-10-18"

type mockSink struct {
	mu      sync.Mutex
	events  []*models.TabEvent
	handleF func(ctx context.Context, event *models.TabEvent) error
}

func (m *mockSink) Handle(ctx context.Context, event *models.TabEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.handleF != nil {
		return m.handleF(ctx, event)
	}
	return nil
}

var _ EventSink = (*mockSink)(nil)

type mockStatus struct {
	status tracker.Status
}

func (m mockStatus) Snapshot() tracker.Status { return m.status }

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(ctx context.Context) error        { return m.err }
func (m mockPinger) HealthCheck(ctx context.Context) error { return m.err }

type testEnv struct {
	handler http.Handler
	store   *storage.MemoryStore
	sink    *mockSink
	outbox  *navigator.Outbox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := timetrack.NewService(store, zap.NewNop())
	sink := &mockSink{}
	outbox := navigator.NewOutbox(10, 0, zap.NewNop())
	status := mockStatus{status: tracker.Status{State: tracker.StateIdle}}
	r := NewRouter(RouterDeps{
		Service:  svc,
		Sink:     sink,
		Status:   status,
		Commands: outbox,
		Health:   NewHealthChecker(store, nil, zap.NewNop()),
		Logger:   zap.NewNop(),
	})
	return &testEnv{handler: r, store: store, sink: sink, outbox: outbox}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// decodeData unwraps the success envelope into v
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !env.Success {
		t.Fatalf("Expected success envelope, got %s", string(env.Data))
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

func TestGetSiteTime(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.Accrue(ctx, "example.com", testDay, 90000); err != nil {
		t.Fatalf("Accrue() error = %v", err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantMs     int64
	}{
		{"recorded site", "/api/v1/sites/example.com/time?date=" + testDay, http.StatusOK, 90000},
		{"upper case host", "/api/v1/sites/Example.COM/time?date=" + testDay, http.StatusOK, 90000},
		{"unknown site", "/api/v1/sites/never.example/time?date=" + testDay, http.StatusOK, 0},
		{"other day", "/api/v1/sites/example.com/time?date=2026-10-17", http.StatusOK, 0},
		{"malformed date", "/api/v1/sites/example.com/time?date=18-10-2026", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got SiteTimeResponse
			decodeData(t, w, &got)
			if got.TimeSpent != tt.wantMs {
				t.Errorf("timeSpent = %d, want %d", got.TimeSpent, tt.wantMs)
			}
		})
	}
}

func TestSummaryAndCategories(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	for site, ms := range map[string]int64{"docs.go.dev": 60000, "news.example": 30000, "misc.example": 10000} {
		if err := env.store.Accrue(ctx, site, testDay, ms); err != nil {
			t.Fatalf("Accrue() error = %v", err)
		}
	}

	for site, category := range map[string]string{"docs.go.dev": "productive", "news.example": "distracting"} {
		w := env.do(newTestRequest(http.MethodPut, "/api/v1/sites/"+site+"/category", SetCategoryRequest{Category: category}))
		if w.Code != http.StatusOK {
			t.Fatalf("set category status = %d (%s)", w.Code, w.Body.String())
		}
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/summary?date="+testDay, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	var summary models.DailySummary
	decodeData(t, w, &summary)
	if summary.ProductiveTime != 60000 || summary.DistractingTime != 30000 || summary.NeutralTime != 10000 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TotalTime != summary.ProductiveTime+summary.NeutralTime+summary.DistractingTime {
		t.Errorf("totalTime %d is not the sum of its buckets", summary.TotalTime)
	}

	w = env.do(newTestRequest(http.MethodPut, "/api/v1/sites/docs.go.dev/category", SetCategoryRequest{Category: "distracting"}))
	if w.Code != http.StatusOK {
		t.Fatalf("move category status = %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	var cats models.SiteCategories
	decodeData(t, w, &cats)
	for _, s := range cats.Productive {
		if s == "docs.go.dev" {
			t.Error("docs.go.dev still productive after moving to distracting")
		}
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sites?date="+testDay, nil))
	var list []models.SiteTime
	decodeData(t, w, &list)
	if len(list) != 3 || list[0].Hostname != "docs.go.dev" {
		t.Errorf("breakdown = %+v, want docs.go.dev first of 3", list)
	}
}

func TestSetCategory_Unrecognized(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(newTestRequest(http.MethodPut, "/api/v1/sites/example.com/category", SetCategoryRequest{Category: "fun"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var result timetrack.Result
	decodeData(t, w, &result)
	if !result.Success || !result.Ignored || result.Reason != timetrack.ReasonUnrecognizedCategory {
		t.Errorf("result = %+v, want ignored unrecognized_category", result)
	}
}

func TestBlockedSites(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, site := range []string{"b.example", "a.example"} {
		w := env.do(newTestRequest(http.MethodPut, "/api/v1/sites/"+site+"/blocked", SetBlockedRequest{ShouldBlock: true}))
		if w.Code != http.StatusOK {
			t.Fatalf("block %s status = %d", site, w.Code)
		}
	}
	w := env.do(newTestRequest(http.MethodPut, "/api/v1/sites/b.example/blocked", SetBlockedRequest{ShouldBlock: false}))
	if w.Code != http.StatusOK {
		t.Fatalf("unblock status = %d", w.Code)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/blocked", nil))
	var blocked []string
	decodeData(t, w, &blocked)
	if len(blocked) != 1 || blocked[0] != "a.example" {
		t.Errorf("blocked = %v, want [a.example]", blocked)
	}

	w = env.do(newTestRequest(http.MethodPut, "/api/v1/sites/bad!host/blocked", SetBlockedRequest{ShouldBlock: true}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid host status = %d, want 400", w.Code)
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	var settings models.Settings
	decodeData(t, w, &settings)
	if settings != models.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", settings)
	}

	w = env.do(newTestRequest(http.MethodPut, "/api/v1/settings", map[string]any{"dailyProductiveGoal": 6}))
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d (%s)", w.Code, w.Body.String())
	}
	decodeData(t, w, &settings)
	if settings.DailyProductiveGoal != 6 || settings.DailyDistractingLimit != 2 {
		t.Errorf("settings = %+v, want goal 6 and default limit", settings)
	}

	w = env.do(newTestRequest(http.MethodPut, "/api/v1/settings", map[string]any{"dailyProductiveGoal": 30}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d, want 400", w.Code)
	}
}

func TestInsights(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/insights?date="+testDay, nil))
	var insights models.Insights
	decodeData(t, w, &insights)
	if insights.HasData {
		t.Error("expected no data for an empty day")
	}
}

func TestMessages(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	if err := env.store.Accrue(context.Background(), "example.com", testDay, 1500); err != nil {
		t.Fatalf("Accrue() error = %v", err)
	}

	tests := []struct {
		name       string
		msg        Message
		wantStatus int
		check      func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:       "getSiteData",
			msg:        Message{Action: ActionGetSiteData, Hostname: "example.com", Date: testDay},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var got SiteDataResponse
				decodeData(t, w, &got)
				if got.TimeSpent != 1500 {
					t.Errorf("timeSpent = %d, want 1500", got.TimeSpent)
				}
			},
		},
		{
			name:       "blockSite",
			msg:        Message{Action: ActionBlockSite, Hostname: "blocked.example", ShouldBlock: true},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var got timetrack.Result
				decodeData(t, w, &got)
				if !got.Success {
					t.Errorf("result = %+v", got)
				}
			},
		},
		{
			name:       "setSiteCategory",
			msg:        Message{Action: ActionSetSiteCategory, Hostname: "example.com", Category: "productive"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "getDailySummary",
			msg:        Message{Action: ActionGetDailySummary, Date: testDay},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var got models.DailySummary
				decodeData(t, w, &got)
				if got.TotalTime != 1500 {
					t.Errorf("totalTime = %d, want 1500", got.TotalTime)
				}
			},
		},
		{
			name:       "unknown action",
			msg:        Message{Action: "openDashboard"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, w *httptest.ResponseRecorder) {
				var got timetrack.Result
				decodeData(t, w, &got)
				if !got.Ignored || got.Reason != ReasonUnknownAction {
					t.Errorf("result = %+v, want ignored unknown_action", got)
				}
			},
		},
		{
			name:       "bad date",
			msg:        Message{Action: ActionGetDailySummary, Date: "yesterday"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := env.do(newTestRequest(http.MethodPost, "/api/v1/messages", tt.msg))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.check != nil {
				tt.check(t, w)
			}
		})
	}
}

func TestExportImportClear(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.store.Accrue(ctx, "example.com", testDay, 42000); err != nil {
		t.Fatalf("Accrue() error = %v", err)
	}

	for _, format := range []string{FormatJSON, FormatYAML} {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/export?format="+format, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("export %s status = %d", format, w.Code)
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), "."+format) {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/export?format=xml", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("export xml status = %d, want 400", w.Code)
	}

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/clear", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("clear without confirm status = %d, want 400", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/clear?confirm=true", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if ms, _ := env.store.SiteTime(ctx, "example.com", testDay); ms != 0 {
		t.Errorf("site time after clear = %d, want 0", ms)
	}

	yamlBody := "siteData:\n  example.com:\n    \"" + testDay + "\": 5000\nblockedSites:\n  - blocked.example\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(yamlBody))
	req.Header.Set("Content-Type", "application/yaml")
	w = env.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d (%s)", w.Code, w.Body.String())
	}
	if ms, _ := env.store.SiteTime(ctx, "example.com", testDay); ms != 5000 {
		t.Errorf("site time after import = %d, want 5000", ms)
	}
	if blocked, _ := env.store.IsBlocked(ctx, "blocked.example"); !blocked {
		t.Error("expected blocked.example to be blocked after import")
	}
}

func TestPostEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		sinkErr    error
		wantStatus int
		wantEvents int
	}{
		{"activated", TabEventRequest{Type: "tab_activated", Tab: &models.Tab{ID: 1, URL: "https://example.com/", Active: true}}, nil, http.StatusAccepted, 1},
		{"alarm", TabEventRequest{Type: "alarm", AlarmName: "update-tracking"}, nil, http.StatusAccepted, 1},
		{"activated without tab", TabEventRequest{Type: "tab_activated"}, nil, http.StatusAccepted, 1},
		{"unknown type", TabEventRequest{Type: "tab_closed"}, nil, http.StatusBadRequest, 0},
		{"sink failure", TabEventRequest{Type: "alarm", AlarmName: "update-tracking"}, errors.New("broker down"), http.StatusServiceUnavailable, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			if tt.sinkErr != nil {
				env.sink.handleF = func(context.Context, *models.TabEvent) error { return tt.sinkErr }
			}
			w := env.do(newTestRequest(http.MethodPost, "/api/v1/events", tt.body))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if len(env.sink.events) != tt.wantEvents {
				t.Errorf("events = %d, want %d", len(env.sink.events), tt.wantEvents)
			}
		})
	}
}

func TestPostEvent_FieldNamesMatchAcrossFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json", "application/json", `{"type":"tab_updated","tab":{"id":3,"url":"https://example.com/","active":true,"status":"complete"},"alarmName":"update-tracking"}`},
		{"yaml", "application/yaml", "type: tab_updated\ntab:\n  id: 3\n  url: https://example.com/\n  active: true\n  status: complete\nalarmName: update-tracking\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := env.do(req)
			if w.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusAccepted, w.Body.String())
			}
			if len(env.sink.events) != 1 {
				t.Fatalf("events = %d, want 1", len(env.sink.events))
			}
			event := env.sink.events[0]
			if event.AlarmName != "update-tracking" {
				t.Errorf("AlarmName = %q, want update-tracking", event.AlarmName)
			}
			if event.Tab == nil || event.Tab.ID != 3 || event.Tab.Status != "complete" {
				t.Errorf("Tab = %+v", event.Tab)
			}
		})
	}
}

func TestGetCommands_CamelCaseKeys(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if err := env.outbox.Redirect(context.Background(), 7, "blocked.html", tracker.RedirectReasonBlocked); err != nil {
		t.Fatalf("Redirect() error = %v", err)
	}
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/commands", nil))
	body := w.Body.String()
	for _, key := range []string{`"tabId":7`, `"createdAt"`} {
		if !strings.Contains(body, key) {
			t.Errorf("response missing %s: %s", key, body)
		}
	}
	if strings.Contains(body, "tab_id") || strings.Contains(body, "created_at") {
		t.Errorf("response has snake_case keys: %s", body)
	}
}

func TestGetCommands(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if err := env.outbox.Redirect(context.Background(), 7, "blocked.html", tracker.RedirectReasonBlocked); err != nil {
		t.Fatalf("Redirect() error = %v", err)
	}
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/commands", nil))
	var cmds []models.NavigateCommand
	decodeData(t, w, &cmds)
	if len(cmds) != 1 || cmds[0].TabID != 7 || cmds[0].URL != "blocked.html" {
		t.Fatalf("commands = %+v", cmds)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = env.outbox.Redirect(context.Background(), 8, "blocked.html", tracker.RedirectReasonBlocked)
	}()
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/commands?wait=2s", nil))
	decodeData(t, w, &cmds)
	if len(cmds) != 1 || cmds[0].TabID != 8 {
		t.Errorf("long-poll commands = %+v", cmds)
	}

	for _, q := range []string{"wait=soon", "limit=0"} {
		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/commands?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestGetTracker(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/tracker", nil))
	var status tracker.Status
	decodeData(t, w, &status)
	if status.State != tracker.StateIdle {
		t.Errorf("state = %q, want idle", status.State)
	}

	h := NewEventHandler(&mockSink{}, nil, env.outbox, zap.NewNop())
	rec := httptest.NewRecorder()
	h.GetTracker(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracker", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("queue mode status = %d, want 501", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		store      Pinger
		queue      QueueChecker
		query      string
		wantStatus int
		wantChecks []string
	}{
		{"basic", mockPinger{err: errors.New("down")}, nil, "", http.StatusOK, nil},
		{"extended healthy", mockPinger{}, mockPinger{}, "?mode=extended", http.StatusOK, []string{"storage", "queue"}},
		{"extended storage down", mockPinger{err: errors.New("down")}, nil, "?mode=extended", http.StatusServiceUnavailable, []string{"storage"}},
		{"extended queue down", mockPinger{}, mockPinger{err: errors.New("closed")}, "?mode=extended", http.StatusServiceUnavailable, []string{"storage", "queue"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHealthChecker(tt.store, tt.queue, zap.NewNop())
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz"+tt.query, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			for _, c := range tt.wantChecks {
				if _, ok := resp.Checks[c]; !ok {
					t.Errorf("missing check %q in %v", c, resp.Checks)
				}
			}
		})
	}
}

func TestRouterNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/summary", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}
