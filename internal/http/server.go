package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pocketplan/internal/auth"
	"pocketplan/internal/core"
	"pocketplan/internal/log"
	"pocketplan/internal/middleware/ratelimit"
	"pocketplan/internal/middleware/security"
	"pocketplan/internal/middleware/trace"
	"pocketplan/internal/services"
)

// storeTimeout bounds every store round trip made on behalf of a request.
const storeTimeout = 7 * time.Second

// AccountProvider is the identity backend behind the auth endpoints.
type AccountProvider interface {
	auth.Provider
	Account(ctx context.Context, userID string) (auth.User, error)
	VerifyEmail(ctx context.Context, token string) (auth.User, error)
	ResetPasswordWithToken(ctx context.Context, token, password, confirm string) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr         string
	Backend      string
	AuthRequired bool
	Locale       core.Locale
	CORSOrigins  []string
	// RateLimitPerMinute applies per client to /api routes.
	RateLimitPerMinute int
}

// Deps are the collaborators a Server drives.
type Deps struct {
	Ledgers  *services.LedgerService
	Provider AccountProvider
	Tokens   *auth.Tokens
	Store    Pinger
	Limiter  *ratelimit.Limiter
	Logger   *log.Logger
}

type appMetrics struct {
	uptime         time.Time
	mutationsOK    int64
	mutationsError int64
	logins         int64
	loginFailures  int64
	registrations  int64
}

type Server struct {
	http.Server

	opts     Options
	ledgers  *services.LedgerService
	provider AccountProvider
	tokens   *auth.Tokens
	store    Pinger
	logger   *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.Locale == "" {
		opts.Locale = core.LocaleID
	}
	limiter := deps.Limiter
	if limiter == nil {
		cfg := ratelimit.DefaultConfig()
		if opts.RateLimitPerMinute > 0 {
			cfg.RequestsPerMinute = opts.RateLimitPerMinute
		}
		limiter = ratelimit.NewLimiter(cfg)
	}

	s := &Server{
		opts:             opts,
		ledgers:          deps.Ledgers,
		provider:         deps.Provider,
		tokens:           deps.Tokens,
		store:            deps.Store,
		logger:           logger,
		rateLimiter:      limiter,
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/auth/register", s.handleRegister)
	api.HandleFunc("POST /api/auth/login", s.handleLogin)
	api.HandleFunc("POST /api/auth/google", s.handleGoogleLogin)
	api.HandleFunc("POST /api/auth/logout", s.handleLogout)
	api.HandleFunc("POST /api/auth/reset-password", s.handleResetPassword)
	api.HandleFunc("POST /api/auth/resend-verification", s.handleResendVerification)
	api.HandleFunc("GET /api/auth/verify", s.handleVerifyEmail)
	api.HandleFunc("POST /api/auth/reset", s.handleResetWithToken)

	api.HandleFunc("GET /api/profile", s.authenticate(s.handleGetProfile))
	api.HandleFunc("PATCH /api/profile", s.authenticate(s.handlePatchProfile))

	api.HandleFunc("GET /api/transactions", s.authenticate(s.handleListTransactions))
	api.HandleFunc("POST /api/transactions", s.authenticate(s.handleCreateTransaction))
	api.HandleFunc("PATCH /api/transactions/{id}", s.authenticate(s.handleUpdateTransaction))
	api.HandleFunc("DELETE /api/transactions/{id}", s.authenticate(s.handleDeleteTransaction))

	api.HandleFunc("GET /api/goals", s.authenticate(s.handleListGoals))
	api.HandleFunc("POST /api/goals", s.authenticate(s.handleCreateGoal))
	api.HandleFunc("PATCH /api/goals/{id}", s.authenticate(s.handleUpdateGoal))
	api.HandleFunc("DELETE /api/goals/{id}", s.authenticate(s.handleDeleteGoal))

	api.HandleFunc("GET /api/summary", s.authenticate(s.handleSummary))
	api.HandleFunc("GET /api/chart", s.authenticate(s.handleChart))
	api.HandleFunc("GET /api/dashboard", s.authenticate(s.handleDashboard))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(api))

	var handler http.Handler = mux
	handler = s.securityDetector.Middleware(handler)
	handler = security.CORSMiddleware(opts.CORSOrigins)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Limiter exposes the rate limiter so its idle clients can be purged on a schedule.
func (s *Server) Limiter() *ratelimit.Limiter { return s.rateLimiter }

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// authenticate resolves the caller from the bearer token. Without a token
// the request runs as the demo user unless auth is required.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		raw := bearerToken(r)
		if raw == "" {
			if s.opts.AuthRequired {
				UnauthorizedError(auth.ErrNotLoggedIn.Error()).Write(w)
				return
			}
			next(w, r.WithContext(withIdentity(ctx, identity{UserID: core.DemoUserID, Demo: true})))
			return
		}
		if s.tokens == nil {
			UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
			return
		}

		claims, err := s.tokens.Authenticate(raw)
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Bearer token rejected", log.FieldError, err)
			UnauthorizedError(auth.ErrInvalidToken.Error()).Write(w)
			return
		}

		id := identity{UserID: claims.UserID, Email: claims.Email, SessionID: claims.Id, Token: raw}
		ctx = withIdentity(ctx, id)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, id.UserID, log.FieldSessionID, id.SessionID))
		next(w, r.WithContext(ctx))
	}
}

// withLedger opens the caller's ledger for the duration of fn.
func (s *Server) withLedger(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, l *services.Ledger)) {
	id, ok := identityFrom(r.Context())
	if !ok {
		UnauthorizedError(auth.ErrNotLoggedIn.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	ledger, err := s.ledgers.Open(ctx, id.UserID)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Ledger open failed", log.FieldUserID, id.UserID, log.FieldError, err)
		writeError(w, err)
		return
	}
	defer ledger.Close()
	fn(ctx, ledger)
}

// recordMutation counts a ledger mutation outcome for /metrics.
func (s *Server) recordMutation(n services.Notification) {
	if n.OK() {
		atomic.AddInt64(&s.appMetrics.mutationsOK, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.mutationsError, 1)
	}
}
