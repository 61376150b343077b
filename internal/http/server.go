// Package http serves the JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pmanager/internal/cache"
	"pmanager/internal/core"
	applog "pmanager/internal/log"
	"pmanager/internal/middleware/ratelimit"
	"pmanager/internal/middleware/security"
	"pmanager/internal/middleware/trace"
	"pmanager/internal/services"
	"pmanager/internal/storage"
)

const (
	statsCacheSize       = 200
	cacheCleanupInterval = 5 * time.Minute
)

// Options tunes the server. Zero values select the defaults.
type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
	// StatsCacheTTL of zero disables stats caching.
	StatsCacheTTL time.Duration
	Logger        *applog.Logger
	// Now overrides the clock used for "today" defaults.
	Now func() time.Time
}

type Server struct {
	http.Server

	store  storage.Store
	ledger *services.LedgerService
	stats  *services.StatsService
	logger *applog.Logger
	now    func() time.Time

	statsCache   *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	traceMiddleware  *trace.Middleware
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware around store. publisher may be nil.
func NewServer(addr string, store storage.Store, publisher services.EventPublisher, opts Options) (*Server, error) {
	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	stats := services.NewStatsService(store)
	stats.SetClock(now)

	s := &Server{
		store:            store,
		ledger:           services.NewLedgerService(store, publisher, logger),
		stats:            stats,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		now:              now,
		cacheManager:     cache.NewManager(logger),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		started:          time.Now(),
	}
	if opts.StatsCacheTTL > 0 {
		s.statsCache = cache.NewLRUCache[[]byte](statsCacheSize, opts.StatsCacheTTL)
		s.cacheManager.Register(s.statsCache)
		s.cacheManager.StartCleanup(cacheCleanupInterval)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = mux
	h = s.invalidateOnWrite(h)
	h = headers.Middleware(h)
	h = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(h)
	h = detector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/memos", s.handleListMemos)
	mux.HandleFunc("POST /api/memos", s.handleCreateMemo)
	mux.HandleFunc("GET /api/memos/{id}", s.handleGetMemo)
	mux.HandleFunc("PUT /api/memos/{id}", s.handleUpdateMemo)
	mux.HandleFunc("DELETE /api/memos/{id}", s.handleDeleteMemo)

	mux.HandleFunc("GET /api/daily-tasks", s.handleListDailyTasks)
	mux.HandleFunc("POST /api/daily-tasks", s.handleCreateDailyTask)
	mux.HandleFunc("GET /api/daily-tasks/{id}", s.handleGetDailyTask)
	mux.HandleFunc("PUT /api/daily-tasks/{id}", s.handleUpdateDailyTask)
	mux.HandleFunc("DELETE /api/daily-tasks/{id}", s.handleDeleteDailyTask)
	mux.HandleFunc("POST /api/daily-tasks/{id}/completions", s.handleCompleteDailyTask)
	mux.HandleFunc("DELETE /api/daily-tasks/{id}/completions/{date}", s.handleUncompleteDailyTask)

	mux.HandleFunc("GET /api/company-accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/company-accounts", s.handleCreateAccount)
	mux.HandleFunc("POST /api/company-accounts/import", s.handleImportAccount)
	mux.HandleFunc("GET /api/company-accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PUT /api/company-accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/company-accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/company-accounts/{id}/reconcile", s.handleReconcileAccount)
	mux.HandleFunc("GET /api/company-accounts/{id}/export", s.handleExportAccount)

	mux.HandleFunc("GET /api/company-transactions", s.handleListEntries)
	mux.HandleFunc("POST /api/company-transactions", s.handlePostEntry)
	mux.HandleFunc("GET /api/company-transactions/{id}", s.handleGetEntry)
	mux.HandleFunc("PUT /api/company-transactions/{id}", s.handleAmendEntry)
	mux.HandleFunc("DELETE /api/company-transactions/{id}", s.handleVoidEntry)

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/company-stats", s.handleCompanyStats)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})
}

func (s *Server) today() core.Date { return core.DateOf(s.now()) }

// invalidateOnWrite drops cached stats after any successful write.
func (s *Server) invalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ratelimit.IsWrite(r.Method) || s.statsCache == nil {
			next.ServeHTTP(w, r)
			return
		}
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		if rw.status < http.StatusBadRequest {
			s.statsCache.Purge()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
		// In-flight requests are done; announce what they wrote.
		s.ledger.Close()
		s.logger.InfoContext(ctx, "HTTP server stopped", applog.FieldOperation, applog.OpShutdown)
	})
	return err
}
