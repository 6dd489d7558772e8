package app

import (
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lnaie/sfAuction/pkg/rpc"
)

// handler assembles the node's HTTP surface.
func (a *App) handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/rpc", a.middleware(rpc.Handler(a.nodeReg))).Methods(http.MethodGet)
	if a.gwReg != nil {
		r.Handle("/gateway", a.middleware(rpc.Handler(a.gwReg))).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !a.store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready","version":"` + a.version + `"}`))
}

// middleware applies per-client rate limiting and the configured CORS
// origin to the RPC endpoints.
func (a *App) middleware(next http.Handler) http.Handler {
	sec := a.eff.Config.Security
	pool := &limiterPool{rps: sec.RateLimit.RPS, burst: sec.RateLimit.Burst}
	limited := sec.RateLimit.RPS > 0

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(sec.CORS.AllowedOrigins) > 0 {
			origin := r.Header.Get("Origin")
			for _, allowed := range sec.CORS.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", allowed)
					break
				}
			}
		}
		if limited {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !pool.Allow(host) {
				http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
