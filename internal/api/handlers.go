package api

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/ledgergate/internal/auth"
	"github.com/punchamoorthee/ledgergate/internal/models"
	"github.com/punchamoorthee/ledgergate/internal/store"
	"go.uber.org/zap"
)

// TokenHeader carries the candidate token on operator requests.
const TokenHeader = "X-Ledger-Token"

// queryCandidate reads the candidate from the header or the query string.
func queryCandidate(r *http.Request) string {
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	q := r.URL.Query()
	if t := q.Get("token"); t != "" {
		return t
	}
	return q.Get("md5")
}

// bodyCandidate reads the candidate from a JSON body, falling back to the
// header. An empty body is allowed.
func bodyCandidate(r *http.Request) (string, error) {
	var req models.TokenRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if c := req.Candidate(); c != "" {
		return c, nil
	}
	return r.Header.Get(TokenHeader), nil
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// throttled answers 429 when the client has too many recent auth failures.
// Throttle backend errors are logged and let the request through.
func (h *Handler) throttled(w http.ResponseWriter, r *http.Request) bool {
	blocked, err := h.throttle.Blocked(r.Context(), clientKey(r))
	if err != nil {
		h.logger.Warn("throttle check failed", zap.Error(err))
		return false
	}
	if blocked {
		respondError(w, http.StatusTooManyRequests, "Too many failed attempts")
		return true
	}
	return false
}

func (h *Handler) noteFailure(r *http.Request, err error) {
	if !errors.Is(err, auth.ErrUnauthenticated) {
		return
	}
	if ferr := h.throttle.Fail(r.Context(), clientKey(r)); ferr != nil {
		h.logger.Warn("throttle record failed", zap.Error(ferr))
	}
}

func pendingID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	if h.throttled(w, r) {
		return
	}
	if err := h.svc.Authenticate(r.Context(), queryCandidate(r)); err != nil {
		h.noteFailure(r, err)
		h.writeServiceError(w, err)
		return
	}

	views, err := h.svc.ListPending(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, h.writeServiceError)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, h.writeServiceError)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, onErr func(http.ResponseWriter, error)) {
	if h.throttled(w, r) {
		return
	}
	id, ok := pendingID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid action ID")
		return
	}
	candidate, err := bodyCandidate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	action, err := h.svc.Approve(r.Context(), id, candidate)
	if err != nil {
		h.noteFailure(r, err)
		onErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.ApproveResponse{
		Message: "Action moved to actions successfully",
		Action:  action,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, onErr func(http.ResponseWriter, error)) {
	if h.throttled(w, r) {
		return
	}
	id, ok := pendingID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid action ID")
		return
	}
	candidate, err := bodyCandidate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	discarded, err := h.svc.Discard(r.Context(), id, candidate)
	if err != nil {
		h.noteFailure(r, err)
		onErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.DiscardResponse{
		Message:   "Action removed successfully",
		Discarded: discarded,
	})
}

// LastKey exposes the tail token so operator tooling can derive the next
// candidate. The tail is public: only its preimage authenticates.
func (h *Handler) LastKey(w http.ResponseWriter, r *http.Request) {
	token, ok, err := h.svc.CurrentTailToken(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models.TailResponse{Token: token, Empty: !ok})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.throttled(w, r) {
		return
	}
	if err := h.svc.Authenticate(r.Context(), queryCandidate(r)); err != nil {
		h.noteFailure(r, err)
		h.writeServiceError(w, err)
		return
	}

	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// Legacy operator routes keep the response shapes older tooling expects:
// an unknown id is a 400 and lastkey is plain text.

func (h *Handler) LegacyApprove(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, h.writeLegacyError)
}

func (h *Handler) LegacyRemove(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, h.writeLegacyError)
}

func (h *Handler) LegacyLastKey(w http.ResponseWriter, r *http.Request) {
	token, ok, err := h.svc.CurrentTailToken(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !ok {
		token = "NO"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, token)
}

func (h *Handler) writeLegacyError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrPendingNotFound) {
		respondError(w, http.StatusBadRequest, "Action ID not found")
		return
	}
	h.writeServiceError(w, err)
}
