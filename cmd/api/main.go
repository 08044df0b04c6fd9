package main

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fleetops/internal/api"
	"fleetops/internal/config"
	"fleetops/internal/metrics"
)

func main() {
	logger := zap.Must(zap.NewProduction()).Sugar()
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalw("load config", "err", err)
	}

	srv, err := api.NewServer(cfg, logger)
	if err != nil {
		logger.Fatalw("init server", "err", err)
	}

	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Users & fleet
	mux.HandleFunc("/v1/users", srv.UsersHandler)
	mux.HandleFunc("/v1/users/", srv.UserByIDHandler)
	mux.HandleFunc("/v1/vehicles", srv.VehiclesHandler)
	mux.HandleFunc("/v1/vehicles/", srv.VehicleByIDHandler)

	// Deliveries
	mux.HandleFunc("/v1/deliveries", srv.DeliveriesHandler)
	mux.HandleFunc("/v1/deliveries/", srv.DeliveryByIDHandler) // includes /assign, /status, /cancel, /position

	// Realtime
	mux.HandleFunc("/v1/ws", srv.WSHandler)

	// Health & ops
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/v1/debug", srv.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           obsMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Infow("API listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("server error", "err", err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack is needed so the websocket upgrade still works through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func obsMiddleware(logger *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		logger.Infow("http", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "status", sw.status, "dur", dur)
	})
}
