package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ratpet.ai/internal/persistence/indexdb"
	"ratpet.ai/internal/sim/world"
	"ratpet.ai/internal/transport/observer"
)

type stateResponse struct {
	WorldID string             `json:"world_id"`
	RunID   string             `json:"run_id"`
	Tick    uint64             `json:"tick"`
	Metrics world.WorldMetrics `json:"metrics"`
	Index   *indexdb.Stats     `json:"index,omitempty"`
}

func newMux(w *world.World, obs *observer.Server, idx runtimeIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())

	if envBool("RP_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			resp := stateResponse{
				WorldID: w.ID(),
				RunID:   w.RunID(),
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			if idx != nil {
				st := idx.Stats()
				resp.Index = &st
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (RP_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("RP_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// registerIndexMetrics exports the index queue on the default registry.
func registerIndexMetrics(idx runtimeIndex) {
	gauge := func(name, help string, f func(indexdb.Stats) float64) {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ratpet",
			Subsystem: "index",
			Name:      name,
			Help:      help,
		}, func() float64 { return f(idx.Stats()) })
	}
	gauge("queue_depth", "Pending index writes.", func(s indexdb.Stats) float64 { return float64(s.QueueDepth) })
	gauge("queue_capacity", "Index write queue capacity.", func(s indexdb.Stats) float64 { return float64(s.QueueCapacity) })
	gauge("dropped_ticks", "Tick entries dropped because the queue was full.", func(s indexdb.Stats) float64 { return float64(s.DropTickTotal) })
	gauge("dropped_summaries", "Run summaries dropped because the queue was full.", func(s indexdb.Stats) float64 { return float64(s.DropSummaryTotal) })
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
