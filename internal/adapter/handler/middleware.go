package handler

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/observability"
)

type routeKey struct{}
type sessionKey struct{}

func contextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

func contextWithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey{}).(*domain.Session)
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withTrace extracts W3C trace context and opens a server span named after
// the route pattern.
func (h *HTTPHandler) withTrace(route string, next http.Handler) http.Handler {
	tracer := observability.Tracer("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx = contextWithRoute(ctx, route)
		ctx, span := tracer.Start(ctx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

// withRequestLogger echoes or generates X-Request-ID and stores a logger
// tagged with request and trace ids in the request context.
func (h *HTTPHandler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)

		fields := []zap.Field{zap.String("request_id", rid)}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
		ctx := observability.ContextWithLogger(r.Context(), h.log.With(fields...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *HTTPHandler) withHTTPMetrics(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.metrics.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
	})
}

func (h *HTTPHandler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger := observability.FromContextOr(r.Context(), h.log)
		logger.Info("http_access",
			zap.String("method", r.Method),
			zap.String("route", routeFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withSession resolves the session cookie, or a bearer token, into a
// *domain.Session. Unknown or expired tokens leave the request anonymous.
func (h *HTTPHandler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.sessionToken(r)
		if token == "" || h.svc.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := h.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := contextWithSession(r.Context(), sess)
		ctx = observability.ContextWithLogger(ctx,
			observability.FromContextOr(ctx, h.log).With(zap.Int64("user_id", sess.UserID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *HTTPHandler) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func (h *HTTPHandler) requireAuth(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		fn(w, r)
	}
}

func (h *HTTPHandler) requireAdmin(fn http.HandlerFunc) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFromContext(r.Context()).IsAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		fn(w, r)
	})
}

// limit applies a fixed-window per-client-IP rate limit. Limiter errors
// fail open.
func (h *HTTPHandler) limit(name string, rl RateLimit, fn http.HandlerFunc) http.HandlerFunc {
	if h.limiter == nil || rl.Limit <= 0 || rl.Window <= 0 {
		return fn
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := name + ":" + clientIP(r, h.proxies)
		ok, err := h.limiter.AllowRequest(r.Context(), key, rl.Limit, rl.Window)
		if err != nil {
			observability.FromContextOr(r.Context(), h.log).Warn("rate_limit_unavailable", zap.String("limit", name), zap.Error(err))
		} else if !ok {
			w.Header().Set("Retry-After", retryAfter(rl.Window))
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		fn(w, r)
	}
}

func (h *HTTPHandler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.FromContextOr(r.Context(), h.log).Error("http_panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ParseTrustedProxies turns IPs and CIDRs into prefixes. Entries that parse
// as neither are skipped.
func ParseTrustedProxies(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			a = a.Unmap()
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return out
}

func isTrusted(proxies []netip.Prefix, ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range proxies {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// clientIP returns the socket peer address. X-Forwarded-For is consulted
// only when the peer is a trusted proxy, and then the right-most hop that is
// not itself a trusted proxy wins.
func clientIP(r *http.Request, proxies []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if len(proxies) == 0 || !isTrusted(proxies, host) {
		return host
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return hop
		}
		if !isTrusted(proxies, hop) {
			return hop
		}
	}
	return host
}
