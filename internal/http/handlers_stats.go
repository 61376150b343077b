package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// statsQuery computes one stats view from the query string.
type statsQuery func(ctx context.Context, q url.Values) (any, error)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	views := map[string]statsQuery{
		"today": func(ctx context.Context, q url.Values) (any, error) {
			day, err := queryDay(q, "date", s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.TodayStats(ctx, day)
		},
		"monthly": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.Monthly(ctx, ym)
		},
		"trends": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.Trends(ctx, ym)
		},
		"categories": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.Categories(ctx, ym)
		},
		"dashboard": func(ctx context.Context, q url.Values) (any, error) {
			day, err := queryDay(q, "date", s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.Dashboard(ctx, day)
		},
	}
	s.serveStats(w, r, "stats", "dashboard", views)
}

func (s *Server) handleCompanyStats(w http.ResponseWriter, r *http.Request) {
	views := map[string]statsQuery{
		"monthly": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.CompanyMonthly(ctx, ym)
		},
		"yearly": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.CompanyYearly(ctx, ym.Year)
		},
		"categories": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.CompanyCategories(ctx, ym)
		},
		"trends": func(ctx context.Context, q url.Values) (any, error) {
			ym, err := queryYearMonth(q, s.today())
			if err != nil {
				return nil, err
			}
			return s.stats.CompanyTrends(ctx, ym)
		},
	}
	s.serveStats(w, r, "company-stats", "monthly", views)
}

// serveStats dispatches on ?type= and caches the encoded result. The cache
// key includes today's date because several views default to it.
func (s *Server) serveStats(w http.ResponseWriter, r *http.Request, scope, defaultType string, views map[string]statsQuery) {
	q := r.URL.Query()
	kind := queryString(q, "type")
	if kind == "" {
		kind = defaultType
	}
	view, ok := views[kind]
	if !ok {
		writeError(w, r, badRequest(fmt.Sprintf("unknown stats type %q", kind)))
		return
	}

	key := scope + "|" + s.today().String() + "|" + q.Encode()
	if s.statsCache != nil {
		if body, ok := s.statsCache.Get(key); ok {
			writeRawJSON(w, body)
			return
		}
	}

	result, err := view(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		writeError(w, r, fmt.Errorf("encode %s: %w", kind, err))
		return
	}
	if s.statsCache != nil {
		s.statsCache.Set(key, body)
	}
	writeRawJSON(w, body)
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}
