package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"antspend/internal/auth"
	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/middleware/ratelimit"
	"antspend/internal/middleware/security"
	"antspend/internal/services"
	appweb "antspend/web"
)

// Store is the repository surface the handlers use directly. Satisfied by
// *storage.Repository; tests substitute a fake.
type Store interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id, userID int64) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id, userID int64) error
	ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.ExpenseDetail, error)

	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	GetBudget(ctx context.Context, userID int64) (core.Budget, error)
	UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error)

	Ping(ctx context.Context) error
}

// Config carries the server's own settings; collaborators come in Deps.
type Config struct {
	Addr     string
	APIToken string
}

// Deps bundles the collaborators handlers need.
type Deps struct {
	Store       Store
	Aggregation *services.AggregationService
	Alerts      *services.AlertService
	Reports     *services.ReportService
	Auth        *auth.Service
	Logger      *log.Logger
}

type Server struct {
	http.Server

	templates *template.Template

	store       Store
	aggregation *services.AggregationService
	alerts      *services.AlertService
	reports     *services.ReportService
	auth        *auth.Service
	logger      *log.Logger
	apiToken    string

	rateLimiter  *ratelimit.Limiter
	headersMW    *security.HeadersMiddleware
	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return "€" + m.String() },
	"pct":   func(f float64) string { return template.HTMLEscapeString(formatPercent(f)) },
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:       deps.Store,
		aggregation: deps.Aggregation,
		alerts:      deps.Alerts,
		reports:     deps.Reports,
		auth:        deps.Auth,
		logger:      deps.Logger.WithComponent(log.ComponentHTTP),
		apiToken:    cfg.APIToken,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		headersMW:   security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	// Session-protected pages and partials.
	protected := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(h)
	}
	mux.Handle("/", protected(s.handleIndex))
	mux.Handle("/ui/dashboard", protected(s.handleDashboardPartial))
	mux.Handle("/ui/chart-data", protected(s.handleChartData))
	mux.Handle("/expenses", protected(s.handleExpenses))
	mux.Handle("/ui/expense-list", protected(s.handleExpenseList))
	mux.Handle("/ui/expense-form", protected(s.handleExpenseForm))
	mux.Handle("/ui/expense-edit", protected(s.handleExpenseEdit))
	mux.Handle("/expenses/update", protected(s.handleUpdateExpense))
	mux.Handle("/expenses/delete", protected(s.handleDeleteExpense))
	mux.Handle("/ui/budget-form", protected(s.handleBudgetForm))
	mux.Handle("/budget", protected(s.handleSaveBudget))
	mux.Handle("/ui/category-list", protected(s.handleCategoryList))
	mux.Handle("/categories", protected(s.handleCreateCategory))
	mux.Handle("/categories/delete", protected(s.handleDeleteCategory))

	// Token-protected reporting API.
	mux.Handle("/api/users/active/", s.requireBearer(s.handleActiveUsers))
	mux.Handle("/api/users/", s.requireBearer(s.handleUserComplete))
	mux.HandleFunc("/api/docs/", s.handleAPIDocs)
	mux.HandleFunc("/api/schema/", s.handleAPISchema)

	s.Server.Handler = s.headersMW.Middleware(s.withObservability(mux))
	return s
}

// withObservability adds a request ID, request logging, and POST rate
// limiting in front of the mux.
func (s *Server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, ip,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if r.Method == http.MethodPost && !s.rateLimiter.Allow(ip) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, ip, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, ip)
	})
}

type requestIDKeyType struct{}

var requestIDKey requestIDKeyType

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the background goroutines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a template into the response, falling back to a 500
// fragment when rendering fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
