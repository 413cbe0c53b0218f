package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger(logger), instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	// Front-end
	apiV1.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost)
	apiV1.HandleFunc("/accounts", h.RegisterAccount).Methods(http.MethodPost)
	apiV1.HandleFunc("/accounts/{phone}", h.GetBalance).Methods(http.MethodGet)
	// Operator
	apiV1.HandleFunc("/pending", h.ListPending).Methods(http.MethodGet)
	apiV1.HandleFunc("/pending/{id}/approve", h.Approve).Methods(http.MethodPost)
	apiV1.HandleFunc("/pending/{id}/reject", h.Reject).Methods(http.MethodPost)
	apiV1.HandleFunc("/lastkey", h.LastKey).Methods(http.MethodGet)
	apiV1.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)

	// Legacy operator API
	r.HandleFunc("/pending", h.ListPending).Methods(http.MethodGet)
	r.HandleFunc("/approve/{id}", h.LegacyApprove).Methods(http.MethodPost)
	r.HandleFunc("/remove/{id}", h.LegacyRemove).Methods(http.MethodPost)
	r.HandleFunc("/lastkey", h.LegacyLastKey).Methods(http.MethodGet)

	return r
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		endpoint := routeTemplate(r)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpLatency.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	})
}

// requestLogger logs one line per request; 5xx responses are logged at
// error level.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
				}
				if status >= 500 {
					logger.Error("server error", fields...)
				} else {
					logger.Info("request completed", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
