package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/atmsvr/internal/alert"
	"github.com/gyaneshwarpardhi/atmsvr/internal/config"
	"github.com/gyaneshwarpardhi/atmsvr/internal/engine"
	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// backlogPerWorker is the queued-connection count per worker above which the
// collector reports itself overloaded.
const backlogPerWorker = 100

const defaultHistoryLimit = 50

// History answers per-terminal event queries; bitacora.Store implements it.
type History interface {
	Recent(origin uint32, limit int) ([]event.Event, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng     *engine.Engine
	loader  *config.Loader
	alerts  *alert.Dispatcher
	history History
	mux     *http.ServeMux
}

// New creates the operations HTTP handler and registers all routes. history
// may be nil when no event store is configured.
func New(eng *engine.Engine, loader *config.Loader, alerts *alert.Dispatcher, history History) http.Handler {
	h := &Handler{eng: eng, loader: loader, alerts: alerts, history: history, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/alerts", h.listAlerts)
	h.mux.HandleFunc("POST /v1/alerts/reload", h.reloadAlerts)
	h.mux.HandleFunc("GET /v1/origins/{origin}/events", h.listEvents)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

type alertType struct {
	Code uint8  `json:"code"`
	Name string `json:"name"`
}

type alertsResponse struct {
	Types     []alertType `json:"types"`
	Channels  []string    `json:"channels"`
	Recipient string      `json:"recipient,omitempty"`
}

// alertSet reports what the dispatcher actually delivers to, not what the
// config file currently says.
func (h *Handler) alertSet() alertsResponse {
	resp := alertsResponse{Types: []alertType{}, Channels: []string{}}
	for _, n := range h.alerts.Notifiers() {
		resp.Channels = append(resp.Channels, n.Channel())
		if m, ok := n.(*alert.Mailer); ok {
			resp.Recipient = m.Recipient()
		}
	}
	for _, t := range h.alerts.Matcher().Types() {
		resp.Types = append(resp.Types, alertType{Code: uint8(t), Name: t.String()})
	}
	return resp
}

// GET /v1/alerts: the event types currently raising alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alertSet())
}

// POST /v1/alerts/reload: re-read the config file and rebuild the alert set
// and its channels.
func (h *Handler) reloadAlerts(w http.ResponseWriter, r *http.Request) {
	if h.loader.Path() == "" {
		writeError(w, http.StatusConflict, "no config file to reload")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.alerts.Apply(cfg.Alert); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.alertSet())
}

type eventView struct {
	Serial     uint32 `json:"serial"`
	Origin     uint32 `json:"origin"`
	Code       uint8  `json:"code"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
}

// GET /v1/origins/{origin}/events?limit=N: latest events from one terminal.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "event store disabled")
		return
	}
	origin, err := strconv.ParseUint(r.PathValue("origin"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "origin must be a 32-bit unsigned integer")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	events, err := h.history.Recent(uint32(origin), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventView{
			Serial:     ev.Serial,
			Origin:     ev.Origin,
			Code:       uint8(ev.Type),
			Type:       ev.Type.String(),
			OccurredAt: ev.Time().UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /healthz: liveness, always 200.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 when the backlog outgrows the pool.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	depth := h.eng.QueueDepth()
	body := map[string]any{
		"queue_depth": depth,
		"workers":     h.eng.Workers(),
	}
	if depth > h.eng.Workers()*backlogPerWorker {
		body["status"] = "overloaded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	writeJSON(w, http.StatusOK, body)
}
