package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	app "github.com/novastack/service_layer/internal/app"
	"github.com/novastack/service_layer/internal/app/metrics"
	"github.com/novastack/service_layer/internal/app/system"
	"github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/internal/middleware"
	"github.com/novastack/service_layer/pkg/logger"
)

var _ system.Service = (*Server)(nil)

const (
	// investRateLimit bounds wallet transfers per investor.
	investRateLimit = 1
	investBurst     = 10

	limiterSweepInterval = 10 * time.Minute
)

// Options configures the HTTP surface.
type Options struct {
	Addr               string
	JWTSecret          string
	AdminIDs           map[string]struct{}
	AllowedOrigins     []string
	RateLimitRPS       int
	RateLimitBurst     int
	Idempotency        middleware.IdempotencyStore
	IdempotencyTTL     time.Duration
	HideInternalErrors bool
	AuditLogPath       string
	ShutdownTimeout    time.Duration
}

// Server serves the REST API and owns the limiter sweepers. It implements
// system.Service so the application manager drives its lifecycle.
type Server struct {
	opts    Options
	log     *logger.Logger
	handler http.Handler
	audit   *auditLog
	sink    *fileAuditSink

	limiters []*middleware.RateLimiter

	mu     sync.Mutex
	srv    *http.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer builds the router for application.
func NewServer(application *app.Application, opts Options, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	if opts.Idempotency == nil {
		opts.Idempotency = middleware.NewMemoryIdempotencyStore()
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	sink, err := newFileAuditSink(opts.AuditLogPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:  opts,
		log:   log,
		audit: newAuditLog(0, sink),
		sink:  sink,
	}
	s.handler = s.routes(application)
	return s, nil
}

// Handler exposes the full middleware chain and router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes(application *app.Application) http.Handler {
	h := &handler{
		app:          application,
		log:          s.log,
		hideInternal: s.opts.HideInternalErrors,
		audit:        s.audit,
		started:      time.Now(),
	}

	auth := middleware.NewAuthMiddleware(s.opts.JWTSecret, s.opts.AdminIDs, s.log.Named("auth"), application.Users)
	investLimiter := middleware.NewRateLimiter(investRateLimit, investBurst, s.log.Named("ratelimit"))
	idempotent := middleware.Idempotency(s.opts.Idempotency, s.opts.IdempotencyTTL, s.log.Named("idempotency"))

	authed := func(fn http.HandlerFunc) http.Handler {
		return auth.Handler(s.audit.middleware(fn))
	}
	optional := func(fn http.HandlerFunc) http.Handler {
		return auth.Optional(fn)
	}
	adminOnly := func(fn http.HandlerFunc) http.Handler {
		return auth.Handler(auth.RequireRole(middleware.RoleAdmin)(s.audit.middleware(fn)))
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/system/status", h.systemStatus).Methods(http.MethodGet)
	api.Handle("/system/audit", adminOnly(h.auditEntries)).Methods(http.MethodGet)

	api.Handle("/users", authed(h.createUser)).Methods(http.MethodPost)
	api.Handle("/users", optional(h.listUsers)).Methods(http.MethodGet)
	api.Handle("/users/me", authed(h.getMe)).Methods(http.MethodGet)
	api.Handle("/users/me", authed(h.updateMe)).Methods(http.MethodPut)
	api.Handle("/users/me/wallet", authed(h.createUserWallet)).Methods(http.MethodPost)
	api.Handle("/users/{username}", optional(h.getUser)).Methods(http.MethodGet)
	api.Handle("/users/{username}/startups", optional(h.userStartups)).Methods(http.MethodGet)

	// Registered before /startups/{id} so "trending" is not read as an ID.
	api.HandleFunc("/startups/trending/all", h.trendingStartups).Methods(http.MethodGet)
	api.Handle("/startups", optional(h.listStartups)).Methods(http.MethodGet)
	api.Handle("/startups", authed(h.createStartup)).Methods(http.MethodPost)
	api.Handle("/startups/{id}", optional(h.getStartup)).Methods(http.MethodGet)
	api.Handle("/startups/{id}", authed(h.updateStartup)).Methods(http.MethodPut)
	api.Handle("/startups/{id}/team", authed(h.addTeamMember)).Methods(http.MethodPost)
	api.Handle("/startups/{id}/like", authed(h.likeStartup)).Methods(http.MethodPost)
	api.Handle("/startups/{id}/wallet", authed(h.createStartupWallet)).Methods(http.MethodPost)

	api.Handle("/investments", authed(h.listInvestments)).Methods(http.MethodGet)
	api.Handle("/investments/invest", auth.Handler(s.audit.middleware(investLimiter.Handler(idempotent(http.HandlerFunc(h.invest)))))).Methods(http.MethodPost)
	api.Handle("/investments/startups/{id}/history", authed(h.investmentHistory)).Methods(http.MethodGet)

	api.Handle("/wallet/status", adminOnly(h.walletStatus)).Methods(http.MethodGet)
	api.Handle("/wallet/refresh", adminOnly(h.refreshWallet)).Methods(http.MethodPost)

	api.HandleFunc("/payments/pricing", h.pricing).Methods(http.MethodGet)

	// Outer chain runs for every request, including unmatched routes and
	// CORS preflights the router would reject.
	globalLimiter := middleware.NewRateLimiter(s.opts.RateLimitRPS, s.opts.RateLimitBurst, s.log.Named("ratelimit"))
	s.limiters = []*middleware.RateLimiter{globalLimiter, investLimiter}

	var chain http.Handler = r
	chain = globalLimiter.Handler(chain)
	chain = middleware.BodyLimitMiddleware(httputil.MaxBodyBytes)(chain)
	chain = middleware.NewCORSMiddleware(s.opts.AllowedOrigins).Handler(chain)
	chain = middleware.MetricsMiddleware()(chain)
	chain = middleware.LoggingMiddleware(s.log.Named("http"))(chain)
	chain = middleware.TracingMiddleware(chain)
	return chain
}

// Name implements system.Service.
func (s *Server) Name() string { return "http-server" }

// Start binds opts.Addr and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	for _, rl := range s.limiters {
		go rl.Run(sweepCtx, limiterSweepInterval)
	}
	s.cancel = cancel

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})
	srv, done := s.srv, s.done
	go func() {
		defer close(done)
		s.log.WithField("addr", ln.Addr().String()).Info("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()
	return nil
}

// Stop drains in-flight requests within ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done, cancel := s.srv, s.done, s.cancel
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	shutdownCtx, stop := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer stop()
	err := srv.Shutdown(shutdownCtx)
	<-done
	if closeErr := s.sink.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	s.log.Info("http server stopped")
	return err
}
