package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/ledgergate/internal/auth"
	"github.com/punchamoorthee/ledgergate/internal/domain"
	"github.com/punchamoorthee/ledgergate/internal/models"
	"github.com/punchamoorthee/ledgergate/internal/service"
	"github.com/punchamoorthee/ledgergate/internal/store"
	"go.uber.org/zap"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const maxBodyBytes = 1 << 16

type Handler struct {
	svc      *service.TransferService
	throttle Throttle
	logger   *zap.Logger
}

func NewHandler(svc *service.TransferService, throttle Throttle, logger *zap.Logger) *Handler {
	if throttle == nil {
		throttle = NoopThrottle{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, throttle: throttle, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateTransfer stages a transfer for operator approval.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id, err := h.svc.Stage(r.Context(), req.StageRequest())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/pending/"+strconv.FormatInt(id, 10))
	respondJSON(w, http.StatusCreated, models.StagedResponse{PendingID: id, Status: "pending"})
}

func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	acc, err := h.svc.RegisterAccount(r.Context(), req.Phone, req.ChatID, req.Info)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	balance, err := h.svc.Balance(r.Context(), phone)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	normalized, _ := domain.NormalizePhone(phone)
	respondJSON(w, http.StatusOK, models.BalanceResponse{Phone: normalized, Balance: balance})
}

// writeServiceError maps core outcomes to status codes. Store failures get a
// generic body; the cause goes to the log only.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var storeErr *service.StoreError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "Failed to authenticate")
	case errors.Is(err, store.ErrPendingNotFound):
		respondError(w, http.StatusNotFound, "Action ID not found")
	case errors.Is(err, domain.ErrInvalidPhone):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		respondError(w, http.StatusUnprocessableEntity, "Amount must be positive")
	case errors.As(err, &storeErr):
		h.logger.Error("store failure", zap.String("op", storeErr.Op), zap.Error(storeErr.Err))
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
	default:
		h.logger.Error("unexpected error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
}

// Helpers
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, models.ErrorResponse{Error: msg})
}
