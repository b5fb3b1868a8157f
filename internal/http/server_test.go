package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"antspend/internal/auth"
	"antspend/internal/cache"
	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/services"
	"antspend/internal/storage"
)

const testAPIToken = "test-token"

type testEnv struct {
	server *Server
	repo   *storage.Repository
	user   core.User
	cookie *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.DefaultConfig())
	dashCache := cache.NewLRUCache[services.Dashboard](50, time.Minute)

	srv := NewServer(Config{Addr: ":0", APIToken: testAPIToken}, Deps{
		Store:       repo,
		Aggregation: services.NewAggregationService(repo, dashCache, logger),
		Alerts:      services.NewAlertService(repo, nil, logger),
		Reports:     services.NewReportService(repo),
		Auth:        auth.NewService(repo, time.Hour, logger),
		Logger:      logger,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	ctx := context.Background()
	user, err := repo.CreateUser(ctx, "alice", "alice@example.com", "unused")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token := "test-session-token"
	if err := repo.CreateSession(ctx, token, user.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create session: %v", err)
	}

	return &testEnv{
		server: srv,
		repo:   repo,
		user:   user,
		cookie: &http.Cookie{Name: auth.SessionCookie, Value: token},
	}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(e.cookie)
	rec := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) firstCategoryID(t *testing.T) int64 {
	t.Helper()
	cats, err := e.repo.ListCategories(context.Background())
	if err != nil || len(cats) == 0 {
		t.Fatalf("list categories: %v", err)
	}
	return cats[0].ID
}

func triggersOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	raw := rec.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var triggers map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &triggers); err != nil {
		t.Fatalf("HX-Trigger JSON: %v", err)
	}
	return triggers
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.server.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: %d", rec.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}

func TestIndexRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 redirect to login", rec.Code)
	}
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}

	rec = env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated index: %d", rec.Code)
	}
}

func TestCreateExpenseFlow(t *testing.T) {
	env := newTestEnv(t)
	catID := env.firstCategoryID(t)

	rec := env.do(t, http.MethodPost, "/expenses", url.Values{
		"category":    {urlInt(catID)},
		"amount":      {"12.50"},
		"date":        {"2026-08-10"},
		"description": {"lunch"},
		"location":    {"downtown"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create expense: %d %s", rec.Code, rec.Body.String())
	}

	triggers := triggersOf(t, rec)
	if _, ok := triggers["expense:created"]; !ok {
		t.Error("expense:created trigger missing")
	}
	if _, ok := triggers["page:refresh"]; !ok {
		t.Error("page:refresh trigger missing")
	}
	if _, ok := triggers["show-notification"]; !ok {
		t.Error("show-notification trigger missing")
	}

	list := env.do(t, http.MethodGet, "/ui/expense-list?period=custom&date_from=2026-08-01&date_to=2026-08-31", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expense list: %d", list.Code)
	}
	if !strings.Contains(list.Body.String(), "lunch") {
		t.Errorf("expense list should contain the new expense: %s", list.Body.String())
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	env := newTestEnv(t)
	catID := env.firstCategoryID(t)

	tests := []struct {
		name      string
		form      url.Values
		wantField string
	}{
		{"bad amount", url.Values{"category": {urlInt(catID)}, "amount": {"abc"}}, "amount"},
		{"negative amount", url.Values{"category": {urlInt(catID)}, "amount": {"-5"}}, "amount"},
		{"missing category", url.Values{"amount": {"10.00"}}, "category"},
		{"unknown category", url.Values{"category": {"99999"}, "amount": {"10.00"}}, "category"},
		{"bad date", url.Values{"category": {urlInt(catID)}, "amount": {"10.00"}, "date": {"10/08/2026"}}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/expenses", tt.form)
			// Validation problems come back as a 200 fragment so the
			// client swaps it into the form's target.
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `data-field="`+tt.wantField+`"`) {
				t.Errorf("fragment should flag field %q: %s", tt.wantField, rec.Body.String())
			}
		})
	}
}

func TestCreateExpenseUnknownCategoryPersistsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/expenses", url.Values{
		"category": {"99999"},
		"amount":   {"12.00"},
		"date":     {"2026-08-10"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 error fragment", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unknown category") {
		t.Errorf("fragment should name the problem: %s", rec.Body.String())
	}

	all, err := env.repo.ListExpenses(ctx, env.user.ID, core.ExpenseFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("no expense should be written, got %d", len(all))
	}
}

func TestExpenseListInvalidFilterIsFragment(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/ui/expense-list?period=custom&date_from=2026-08-31&date_to=2026-08-01", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, invalid filters should render a 200 fragment", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "End date") {
		t.Errorf("fragment should surface the field error: %s", rec.Body.String())
	}
}

func TestExpenseOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	catID := env.firstCategoryID(t)

	other, err := env.repo.CreateUser(ctx, "mallory", "m@example.com", "x")
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := env.repo.CreateExpense(ctx, core.Expense{
		UserID:     other.ID,
		CategoryID: catID,
		Amount:     core.Money{Cents: 999},
		Date:       core.NewDate(2026, 8, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodPost, "/expenses/delete", url.Values{"id": {urlInt(theirs.ID)}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleting another user's expense: %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/ui/expense-edit?id="+urlInt(theirs.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("editing another user's expense: %d, want 404", rec.Code)
	}
}

func TestChartDataContract(t *testing.T) {
	env := newTestEnv(t)
	catID := env.firstCategoryID(t)

	env.do(t, http.MethodPost, "/expenses", url.Values{
		"category": {urlInt(catID)},
		"amount":   {"20.00"},
	})

	rec := env.do(t, http.MethodGet, "/ui/chart-data?period=current_month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chart data: %d", rec.Code)
	}

	var data struct {
		Categories   []string  `json:"categories"`
		Amounts      []float64 `json:"amounts"`
		Colors       []string  `json:"colors"`
		Dates        []string  `json:"dates"`
		DailyAmounts []float64 `json:"dailyAmounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode chart data: %v", err)
	}
	if len(data.Categories) != 1 || data.Amounts[0] != 20.0 {
		t.Errorf("categories = %v amounts = %v", data.Categories, data.Amounts)
	}
	if len(data.Colors) != len(data.Categories) {
		t.Error("colors must parallel categories")
	}
	if len(data.Dates) != len(data.DailyAmounts) {
		t.Error("dates must parallel dailyAmounts")
	}
}

func TestCategoryConflictOnDelete(t *testing.T) {
	env := newTestEnv(t)
	catID := env.firstCategoryID(t)

	env.do(t, http.MethodPost, "/expenses", url.Values{
		"category": {urlInt(catID)},
		"amount":   {"5.00"},
	})

	rec := env.do(t, http.MethodPost, "/categories/delete", url.Values{"id": {urlInt(catID)}})
	if rec.Code != http.StatusConflict {
		t.Errorf("deleting referenced category: %d, want 409", rec.Code)
	}
}

func TestCategoryCreateDuplicate(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"name": {"Gifts"}, "color": {"#ABCDEF"}}
	rec := env.do(t, http.MethodPost, "/categories", form)
	if rec.Code != http.StatusOK {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/categories", form)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate category: %d, want 409", rec.Code)
	}
}

func TestBudgetUpsertFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/budget", url.Values{
		"monthly_limit":  {"1000.00"},
		"alerts_enabled": {"on"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save budget: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok := triggersOf(t, rec)["budget:saved"]; !ok {
		t.Error("budget:saved trigger missing")
	}

	b, err := env.repo.GetBudget(context.Background(), env.user.ID)
	if err != nil {
		t.Fatalf("budget not persisted: %v", err)
	}
	if b.MonthlyLimit.Cents != 100000 || b.WarningPercent != core.DefaultWarningPercent {
		t.Errorf("budget = %+v", b)
	}

	// Second save updates the same row.
	rec = env.do(t, http.MethodPost, "/budget", url.Values{
		"monthly_limit":    {"500.00"},
		"warning_percent":  {"60"},
		"critical_percent": {"80"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update budget: %d", rec.Code)
	}
	updated, _ := env.repo.GetBudget(context.Background(), env.user.ID)
	if updated.ID != b.ID || updated.MonthlyLimit.Cents != 50000 || updated.WarningPercent != 60 {
		t.Errorf("updated budget = %+v", updated)
	}
	if updated.AlertsEnabled {
		t.Error("unchecked alerts_enabled should persist as false")
	}

	rec = env.do(t, http.MethodPost, "/budget", url.Values{"monthly_limit": {"0"}})
	if rec.Code != http.StatusOK {
		t.Errorf("zero limit: %d, want 200 error fragment", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `data-field="monthly_limit"`) {
		t.Errorf("zero limit should flag monthly_limit: %s", rec.Body.String())
	}

	// Non-numeric thresholds are field errors, not silent defaults.
	rec = env.do(t, http.MethodPost, "/budget", url.Values{
		"monthly_limit":   {"100.00"},
		"warning_percent": {"lots"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("bad threshold: %d, want 200 error fragment", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `data-field="warning_percent"`) {
		t.Errorf("bad threshold should flag warning_percent: %s", rec.Body.String())
	}
	after, _ := env.repo.GetBudget(context.Background(), env.user.ID)
	if after.MonthlyLimit.Cents != 50000 {
		t.Errorf("failed save should not touch the stored budget: %+v", after)
	}
}

func TestDashboardPartial(t *testing.T) {
	env := newTestEnv(t)
	catID := env.firstCategoryID(t)

	env.do(t, http.MethodPost, "/expenses", url.Values{
		"category": {urlInt(catID)},
		"amount":   {"42.00"},
	})

	rec := env.do(t, http.MethodGet, "/ui/dashboard?period=current_month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard partial: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "42.00") {
		t.Errorf("dashboard should show the period total: %s", rec.Body.String())
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.repo.CreateUser(ctx, "bob", "bob@example.com", hash); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(url.Values{"username": {"bob"}, "password": {"s3cret"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.server.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("login should set the session cookie")
	}

	// Wrong password stays on the form with a 401.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(url.Values{"username": {"bob"}, "password": {"wrong"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.server.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login: %d, want 401", rec.Code)
	}

	// Logout clears the cookie and kills the session.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(session)
	env.server.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("logout: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session)
	env.server.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("dead session should redirect: %d", rec.Code)
	}
}

func urlInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
