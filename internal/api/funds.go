package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/internal/domain/navhistory"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// FundSource loads fund state from the store.
type FundSource interface {
	ListFundIDs(ctx context.Context) ([]uuid.UUID, error)
	Fund(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error)
}

// SnapshotSource serves cached fund snapshots.
type SnapshotSource interface {
	Get(ctx context.Context, fundID uuid.UUID) (*fund.Snapshot, error)
}

// NavHistorySource reads archived NAV points.
type NavHistorySource interface {
	GetHistory(ctx context.Context, q navhistory.Query) ([]navhistory.Point, error)
}

// FundsHandler serves the read-only fund endpoints.
type FundsHandler struct {
	funds   FundSource
	cache   SnapshotSource   // optional
	history NavHistorySource // optional
	log     *logger.Logger
	now     func() time.Time
}

// NewFundsHandler creates the handler. cache and history may be nil.
func NewFundsHandler(funds FundSource, cache SnapshotSource, history NavHistorySource, log *logger.Logger) *FundsHandler {
	return &FundsHandler{
		funds:   funds,
		cache:   cache,
		history: history,
		log:     log.With("component", "funds_api"),
		now:     time.Now,
	}
}

// Register mounts the fund routes on mux.
func (h *FundsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /funds", h.HandleList)
	mux.HandleFunc("GET /funds/{id}", h.HandleGet)
	if h.history != nil {
		mux.HandleFunc("GET /funds/{id}/nav-history", h.HandleNavHistory)
	}
}

// HandleList returns every fund id.
func (h *FundsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.funds.ListFundIDs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"funds": ids})
}

// HandleGet returns one fund snapshot, preferring the cache.
func (h *FundsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, errors.Wrapf(errors.ErrInvalidInput, "fund id %q", r.PathValue("id")))
		return
	}

	if h.cache != nil {
		snapshot, err := h.cache.Get(r.Context(), id)
		if err == nil {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, snapshot)
			return
		}
		if !errors.Is(err, errors.ErrNotFound) {
			h.log.Warnw("Snapshot cache read failed", "fund_id", id, "error", err)
		}
	}

	f, err := h.funds.Fund(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, fund.NewSnapshot(f, h.now()))
}

type navPointResponse struct {
	Nav         uint64    `json:"nav_cents"`
	PreviousNav uint64    `json:"previous_nav_cents"`
	ChangeBps   int64     `json:"change_bps"`
	Oracle      string    `json:"oracle"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// HandleNavHistory returns archived NAV points, newest first.
// Query: from, to (RFC3339) and limit.
func (h *FundsHandler) HandleNavHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, errors.Wrapf(errors.ErrInvalidInput, "fund id %q", r.PathValue("id")))
		return
	}

	q, err := historyQuery(id, r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	points, err := h.history.GetHistory(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]navPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, navPointResponse{
			Nav:         p.Nav,
			PreviousNav: p.PreviousNav,
			ChangeBps:   p.ChangeBps(),
			Oracle:      p.Oracle,
			RecordedAt:  p.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fund_id": id, "points": out})
}

func historyQuery(id uuid.UUID, r *http.Request) (navhistory.Query, error) {
	q := navhistory.Query{FundID: id, Limit: defaultHistoryLimit}
	values := r.URL.Query()

	for _, bound := range []struct {
		name string
		dst  *time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		raw := values.Get(bound.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, errors.Wrapf(errors.ErrInvalidInput, "%s: %v", bound.name, err)
		}
		*bound.dst = t
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return q, errors.Wrapf(errors.ErrInvalidInput, "limit %q", raw)
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		q.Limit = limit
	}

	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, errors.Wrap(errors.ErrInvalidInput, "to is before from")
	}
	return q, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *FundsHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: errors.Code(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
