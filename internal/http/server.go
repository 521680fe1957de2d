// Package http serves the ledger and recurring expense JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// Ledger is the transaction and category API the server exposes.
type Ledger interface {
	Categories(ctx context.Context, accountID string) ([]core.Category, error)
	UpdateCategoryBudget(ctx context.Context, accountID, categoryID string, budget *core.Money) (core.Category, error)
	Transactions(ctx context.Context, accountID string, p core.Period) ([]core.Transaction, error)
	AddTransaction(ctx context.Context, accountID string, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, accountID, id string, u storage.TransactionUpdate) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, accountID, id string) error
	Summary(ctx context.Context, accountID string, p core.Period) (core.Summary, error)
	AdjustBalance(ctx context.Context, accountID string, p core.Period, input string) (*core.Transaction, error)
}

// Recurring is the recurring expense API the server exposes.
type Recurring interface {
	List(ctx context.Context, accountID string, p core.Period) ([]services.RecurringView, error)
	Add(ctx context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error)
	Update(ctx context.Context, accountID, id string, u storage.RecurringExpenseUpdate) ([]core.RecurringExpense, error)
	Delete(ctx context.Context, accountID, id string, p core.Period) error
	Duplicate(ctx context.Context, accountID, id string) (core.RecurringExpense, error)
	MarkAsPaid(ctx context.Context, accountID, id string, p core.Period) (core.Transaction, error)
	MarkAsUnpaid(ctx context.Context, accountID, id string, p core.Period) error
	Reconcile(ctx context.Context, accountID string) (services.ReconcileReport, error)
}

// Options configures NewServer.
type Options struct {
	Addr         string
	Logger       *log.Logger
	JWTSecret    string
	RateLimitRPM int
	// Ready reports whether dependencies can serve traffic; nil means always.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger    Ledger
	recurring Recurring
	auth      *Authenticator
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	ready     func(ctx context.Context) error

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(opts Options, ledger Ledger, recurring Recurring) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:    ledger,
		recurring: recurring,
		auth:      NewAuthenticator(opts.JWTSecret),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitRPM,
			CleanupInterval:   5 * time.Minute,
		}),
		tracer: trace.NewMiddleware(clientIP, func(r *http.Request) string {
			return middleware.GetReqID(r.Context())
		}),
		ready: opts.Ready,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Use(s.rateLimitWrites)

		r.Get("/categories", s.handleListCategories)
		r.Put("/categories/{id}/budget", s.handleUpdateBudget)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Patch("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/summary", s.handleSummary)
		r.Post("/balance/adjust", s.handleAdjustBalance)

		r.Get("/recurring", s.handleListRecurring)
		r.Post("/recurring", s.handleCreateRecurring)
		r.Post("/recurring/reconcile", s.handleReconcile)
		r.Patch("/recurring/{id}", s.handleUpdateRecurring)
		r.Delete("/recurring/{id}", s.handleDeleteRecurring)
		r.Post("/recurring/{id}/duplicate", s.handleDuplicateRecurring)
		r.Post("/recurring/{id}/paid", s.handleMarkPaid)
		r.Delete("/recurring/{id}/paid", s.handleMarkUnpaid)
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the limiter cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters for diagnostics.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics()
}

// reconcileCost is what a reconcile request spends of the write budget; it
// reads every recurring expense and transaction of the account.
const reconcileCost = 5

// rateLimitWrites applies the per-account limit to mutating requests only.
func (s *Server) rateLimitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(rateLimitKey, requestCost, onRateLimited)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func rateLimitKey(r *http.Request) string {
	if id := AccountID(r.Context()); id != "" {
		return "acct:" + id
	}
	return "ip:" + clientIP(r)
}

func requestCost(r *http.Request) int {
	if strings.HasSuffix(r.URL.Path, "/recurring/reconcile") {
		return reconcileCost
	}
	return 1
}

func onRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	fields := log.NewFields().
		WithAccount(AccountID(r.Context())).
		WithHTTPRequest(r.Method, r.URL.Path)
	fields[log.FieldClientIP] = clientIP(r)
	fields["error_type"] = log.ErrorTypeRateLimit
	fields["retry_after"] = d.RetryAfter.String()
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded", fields.ToSlice()...)
	w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(d.RetryAfter))
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
