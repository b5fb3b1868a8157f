package http

import (
	"encoding/json"
	"net/http"
	"time"

	"antspend/internal/auth"
	"antspend/internal/log"
	"antspend/internal/services"
)

func filterParamsFromQuery(r *http.Request) services.FilterParams {
	q := r.URL.Query()
	return services.FilterParams{
		Period:    sanitizeInput(q.Get("period")),
		DateFrom:  sanitizeInput(q.Get("date_from")),
		DateTo:    sanitizeInput(q.Get("date_to")),
		Category:  sanitizeInput(q.Get("category")),
		MinAmount: sanitizeInput(q.Get("min_amount")),
		MaxAmount: sanitizeInput(q.Get("max_amount")),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	user, _ := auth.UserFromContext(r.Context())

	data := struct {
		Username string
		Period   string
	}{
		Username: user.Username,
		Period:   services.PeriodCurrentMonth,
	}
	s.render(w, r, "dashboard.html", data)
}

// handleDashboardPartial renders the metrics fragment for the selected
// period.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	now := time.Now()

	nf, errs := services.NormalizeFilter(now, filterParamsFromQuery(r))
	if len(errs) > 0 {
		// Fall back to the default period rather than breaking the page.
		nf, _ = services.NormalizeFilter(now, services.FilterParams{})
	}

	dash, err := s.aggregation.Dashboard(r.Context(), user.ID, now, nf)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard build failed",
			log.FieldError, err, log.FieldUserID, user.ID, log.FieldPeriod, nf.Period)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Failed to load dashboard</div></section>`))
		return
	}

	s.render(w, r, "dashboard_metrics.html", dash)
}

// chartData is the JSON contract the client charts read. Amounts are
// decimal units, not cents.
type chartData struct {
	Categories   []string  `json:"categories"`
	Amounts      []float64 `json:"amounts"`
	Colors       []string  `json:"colors"`
	Dates        []string  `json:"dates"`
	DailyAmounts []float64 `json:"dailyAmounts"`
}

func (s *Server) handleChartData(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	now := time.Now()

	nf, errs := services.NormalizeFilter(now, filterParamsFromQuery(r))
	if len(errs) > 0 {
		nf, _ = services.NormalizeFilter(now, services.FilterParams{})
	}

	dash, err := s.aggregation.Dashboard(r.Context(), user.ID, now, nf)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Chart data build failed",
			log.FieldError, err, log.FieldUserID, user.ID, log.FieldPeriod, nf.Period)
		http.Error(w, "failed to load chart data", http.StatusInternalServerError)
		return
	}

	data := chartData{
		Categories:   make([]string, 0, len(dash.Categories)),
		Amounts:      make([]float64, 0, len(dash.Categories)),
		Colors:       make([]string, 0, len(dash.Categories)),
		Dates:        make([]string, 0, len(dash.Daily)),
		DailyAmounts: make([]float64, 0, len(dash.Daily)),
	}
	for _, c := range dash.Categories {
		data.Categories = append(data.Categories, c.Name)
		data.Amounts = append(data.Amounts, c.Amount.Float())
		data.Colors = append(data.Colors, c.Color)
	}
	for _, d := range dash.Daily {
		data.Dates = append(data.Dates, d.Date.String())
		data.DailyAmounts = append(data.DailyAmounts, d.Amount.Float())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.ErrorContext(r.Context(), "Chart data encode failed", log.FieldError, err)
	}
}
