package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sonroyaalmerol/go-davcore/internal/auth"
	"github.com/sonroyaalmerol/go-davcore/internal/config"
	"github.com/sonroyaalmerol/go-davcore/internal/dav"
	"github.com/sonroyaalmerol/go-davcore/internal/metrics"
)

// New builds the top-level http.Handler: /healthz, /metrics, and the
// DAV base path dispatching every method to h.
func New(cfg *config.Config, h *dav.Handler, authn *auth.Authenticator, logger zerolog.Logger) http.Handler {
	rt := &Router{config: cfg, handler: h, authn: authn, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	base := rt.basePath()
	mux.HandleFunc(base, rt.handleDAVRequest)
	if strings.HasSuffix(base, "/") {
		mux.HandleFunc(strings.TrimSuffix(base, "/"), rt.handleDAVRequest)
	}
	return mux
}

func (rt *Router) basePath() string {
	return rt.config.DAVPrefix() + "/"
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleDAVRequest authenticates the request (OPTIONS is exempt for
// capability discovery), attaches the resulting Principal to the
// context, then dispatches on method.
func (rt *Router) handleDAVRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		rt.handler.HandleOptions(w, r)
		return
	}

	p := rt.authenticate(r)
	if p == nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="DAV", charset="UTF-8"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	r = r.WithContext(auth.WithPrincipal(r.Context(), p))

	rt.routeMethod(w, r)
}

// authenticate returns the authenticated Principal, or the anonymous
// Principal when no Authorization header was presented; read-freebusy
// and public resources may still authorize the anonymous subject set.
func (rt *Router) authenticate(r *http.Request) *auth.Principal {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Anonymous()
	}
	if !rt.config.Auth.EnableBasic {
		return auth.Anonymous()
	}
	p, err := rt.authn.Basic(r.Context(), header)
	if err != nil {
		return nil
	}
	return p
}

func (rt *Router) routeMethod(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}

	switch r.Method {
	case http.MethodGet:
		rt.handler.HandleGet(rec, r)
	case http.MethodHead:
		rt.handler.HandleHead(rec, r)
	case http.MethodPut:
		rt.handler.HandlePut(rec, r)
	case http.MethodDelete:
		rt.handler.HandleDelete(rec, r)
	case "COPY":
		rt.handler.HandleCopy(rec, r)
	case "MOVE":
		rt.handler.HandleMove(rec, r)
	case "PROPFIND":
		rt.handler.HandlePropfind(rec, r)
	case "PROPPATCH":
		rt.handler.HandleProppatch(rec, r)
	case "REPORT":
		rt.handler.HandleReport(rec, r)
	default:
		http.Error(rec, "method not allowed", http.StatusMethodNotAllowed)
	}

	dur := time.Since(start)
	status := statusOrDefault(rec.status)
	metrics.HTTPRequestsTotal.WithLabelValues(r.Method, statusClass(status)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(dur.Seconds())

	logEvent := rt.logger.Info()
	switch r.Method {
	case "PROPFIND", "REPORT", http.MethodGet, http.MethodHead:
		logEvent = rt.logger.Debug()
	}
	logEvent.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("bytes", rec.bytes).
		Float64("duration_ms", float64(dur.Microseconds())/1000.0).
		Str("ip", realIP(r)).
		Str("user_agent", r.Header.Get("User-Agent")).
		Msg("http request")
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
