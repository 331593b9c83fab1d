package http

import (
	"context"
	"net/http"

	"pocketplan/internal/core"
	"pocketplan/internal/log"
	"pocketplan/internal/services"
)

// summaryResponse carries the totals and their display strings.
type summaryResponse struct {
	core.Summary
	Formatted map[string]string `json:"formatted"`
}

func (s *Server) summaryResponse(sum core.Summary) summaryResponse {
	l := s.opts.Locale
	return summaryResponse{
		Summary: sum,
		Formatted: map[string]string{
			"balance":      formatCurrency(sum.Balance, l),
			"income":       formatCurrency(sum.Income, l),
			"expense":      formatCurrency(sum.Expense, l),
			"monthIncome":  formatCurrency(sum.MonthIncome, l),
			"monthExpense": formatCurrency(sum.MonthExpense, l),
		},
	}
}

// handleSummary returns the balance and income/expense totals.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		NewJSONResponse().Body(s.summaryResponse(l.Summary())).Write(w)
	})
}

// handleChart returns income and expense series over ?days= and ?granularity=.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	opts := ParseChartOptions(r.URL.Query())
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		series := l.Chart(opts)
		log.FromContext(ctx).DebugContext(ctx, "Chart computed",
			log.FieldGranularity, string(opts.Granularity),
			log.FieldWindowDays, opts.Days,
			"periods", series.Len())
		NewJSONResponse().Body(series).Write(w)
	})
}

// handleDashboard bundles summary, chart and goal progress in one response.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	opts := ParseChartOptions(r.URL.Query())
	s.withLedger(w, r, func(ctx context.Context, l *services.Ledger) {
		d := l.Dashboard(opts)
		NewJSONResponse().
			Set("summary", s.summaryResponse(d.Summary)).
			Set("chart", d.Chart).
			Set("goals", d.Goals).
			Set("demo", l.Demo()).
			Write(w)
	})
}
