package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"sofia/internal/cache"
	"sofia/internal/core"
	applog "sofia/internal/log"
	"sofia/internal/metrics"
	"sofia/internal/middleware/ratelimit"
	"sofia/internal/middleware/security"
	"sofia/internal/middleware/trace"
	"sofia/internal/schedule"
	"sofia/internal/services"
	appweb "sofia/web"

	"github.com/go-chi/chi"
)

const (
	snapshotKey     = "expenses"
	activityLimit   = 20
	backendTimeout  = 7 * time.Second
	cleanupInterval = 10 * time.Minute
)

// ExpenseService is what the handlers need from the service layer.
type ExpenseService interface {
	CreateExpense(ctx context.Context, in services.NewExpense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListActivity(ctx context.Context, limit int) ([]core.Activity, error)
}

// Options configures a Server. Only Service is required.
type Options struct {
	Service  ExpenseService
	Ready    func(ctx context.Context) error
	Metrics  *metrics.Metrics
	Logger   *applog.Logger
	Calendar schedule.Calendar
	Location *time.Location
	PageSize int

	// WritesPerMinute limits create and delete requests per client IP.
	WritesPerMinute int
	CacheTTL        time.Duration
	TrustedProxies  []string

	// Clock overrides time.Now for date defaults and range presets.
	Clock func() time.Time
}

type Server struct {
	http.Server

	svc       ExpenseService
	ready     func(ctx context.Context) error
	metrics   *metrics.Metrics
	logger    *applog.Logger
	calendar  schedule.Calendar
	loc       *time.Location
	pageSize  int
	templates *template.Template
	now       func() time.Time
	started   time.Time

	snapshots *cache.Loader[[]core.Expense]
	caches    *cache.Manager
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("expense service is required")
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PageSize <= 0 {
		opts.PageSize = core.DefaultPageSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Calendar == nil {
		opts.Calendar = schedule.Default
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:       opts.Service,
		ready:     opts.Ready,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		calendar:  opts.Calendar,
		loc:       opts.Location,
		pageSize:  opts.PageSize,
		templates: t,
		now:       opts.Clock,
		started:   time.Now(),
		snapshots: cache.NewLoader[[]core.Expense](1, opts.CacheTTL, cacheObserver(opts.Metrics)),
		caches:    cache.NewManager(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WritesPerMinute}),
		detector:  security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.limiter.Stop()
			return nil, err
		}
	}
	var observer trace.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger.WithComponent(applog.ComponentTrace), observer)

	s.caches.Register(s.snapshots)
	s.caches.StartCleanup(cleanupInterval)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func cacheObserver(m *metrics.Metrics) cache.Observer {
	if m == nil {
		return nil
	}
	return m
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Handler)
	r.Use(trace.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	r.Get("/", s.handleIndex)
	r.Get("/ui/expenses", s.handleExpenseList)
	r.Get("/ui/summary", s.handleSummary)
	r.Get("/activity", s.handleActivity)
	r.Get("/api/summary", s.handleAPISummary)
	r.Get("/expenses/export.csv", s.handleExport)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited))
		r.Post("/expenses", s.handleCreateExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)
		r.Post("/expenses/{id}/delete", s.handleDeleteExpense)
	})

	return r
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// snapshot returns the cached expense list, loading it on a miss.
func (s *Server) snapshot(ctx context.Context) ([]core.Expense, error) {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	return s.snapshots.Get(ctx, snapshotKey, s.svc.ListExpenses)
}

// localNow is the current instant in the configured household timezone.
func (s *Server) localNow() time.Time {
	return s.now().In(s.loc)
}
