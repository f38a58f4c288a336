package httpx

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/auth"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/product"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/purchase"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/user"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/ws"
)

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(context.Context) error

// Options tunes the router.
type Options struct {
	LoginRateLimit  int
	SignupRateLimit int
	RateLimitWindow time.Duration
	// TrustedProxies lists the addresses or CIDR blocks whose
	// X-Forwarded-For header is believed.
	TrustedProxies []string
	// Health maps component names ("database", "session_cache") to checks.
	Health map[string]HealthCheck
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	users     user.Service
	products  product.Service
	purchases purchase.Service
	hub       *ws.Hub
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	proxies   []*net.IPNet
	opts      Options

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	purchaseOutcomes   *prometheus.CounterVec
	coinsDeposited     *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitUserWrite = 60
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 15 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, userSvc user.Service, productSvc product.Service, purchaseSvc purchase.Service, hub *ws.Hub, limiter RateLimiter, opts Options) *Router {
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = rateWindowDefault
	}
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		auth:      authSvc,
		users:     userSvc,
		products:  productSvc,
		purchases: purchaseSvc,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter: limiter,
		proxies: parseTrustedProxies(logger, opts.TrustedProxies),
		opts:    opts,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", r.opts.LoginRateLimit, r.opts.RateLimitWindow, r.rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/logout/all", r.audit("/auth/logout/all", r.requireAuth(r.handleLogout)))

	r.mux.HandleFunc("/users", r.audit("/users", r.handleUsers))
	r.mux.HandleFunc("/users/deposit", r.audit("/users/deposit", r.requireRole(domain.RoleBuyer, r.handleDeposit)))
	r.mux.HandleFunc("/users/reset", r.audit("/users/reset", r.requireRole(domain.RoleBuyer, r.handleReset)))
	r.mux.HandleFunc("/users/", r.audit("/users/{id}", r.requireAuth(r.handleUser)))

	r.mux.HandleFunc("/products", r.audit("/products", r.handleProducts))
	r.mux.HandleFunc("/products/", r.audit("/products/{id}", r.handleProduct))

	r.mux.HandleFunc("/purchase", r.audit("/purchase", r.requireRole(domain.RoleBuyer, r.withRateLimit("/purchase", rateLimitUserWrite, rateWindowDefault, rateLimitKeyPrincipal, r.handlePurchase))))

	r.mux.HandleFunc("/ws/stock", r.audit("/ws/stock", r.handleStockWS))
	r.mux.HandleFunc("/stock/events", r.audit("/stock/events", r.handleStockEvents))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	for name, check := range r.opts.Health {
		if check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			components[name] = map[string]any{"status": "down", "error": err.Error()}
			continue
		}
		components[name] = map[string]any{"status": "up"}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeData(w, code, status, map[string]any{
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// audit logs every request and records its metrics under route.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := r.clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if p, ok := principalFromContext(ctx); ok {
			actor = p.Role
			fields = append(fields, "user_id", p.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		if sr.status == 0 {
			sr.status = http.StatusSwitchingProtocols
		}
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func rateLimitKeyPrincipal(req *http.Request) string {
	if p, ok := principalFromContext(req.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	return ""
}

// pathID returns the single path segment following prefix.
func pathID(path, prefix string) (string, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
