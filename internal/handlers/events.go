package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/queue"
	"github.com/benvon/sitetime/internal/tracker"
	"github.com/benvon/sitetime/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxCommandWait caps the long-poll on GET /commands
	MaxCommandWait = 30 * time.Second
	// DefaultCommandLimit is how many commands one poll returns at most
	DefaultCommandLimit = 20
)

// EventSink accepts tab events for tracking
type EventSink interface {
	Handle(ctx context.Context, event *models.TabEvent) error
}

// StatusSource reports the tracker's current session
type StatusSource interface {
	Snapshot() tracker.Status
}

// CommandSource yields redirect commands for the extension
type CommandSource interface {
	Wait(ctx context.Context, wait time.Duration, limit int) []models.NavigateCommand
}

// PublishingSink forwards events to the worker over the queue
type PublishingSink struct {
	Publisher queue.EventPublisher
}

// Handle publishes event
func (s PublishingSink) Handle(ctx context.Context, event *models.TabEvent) error {
	return s.Publisher.PublishEvent(ctx, event)
}

var (
	_ EventSink    = (*tracker.Tracker)(nil)
	_ EventSink    = PublishingSink{}
	_ StatusSource = (*tracker.Tracker)(nil)
)

// TabEventRequest is one browser event posted by the extension bridge
type TabEventRequest struct {
	Type      string      `json:"type" yaml:"type" validate:"required,tab_event_type"`
	Tab       *models.Tab `json:"tab,omitempty" yaml:"tab,omitempty"`
	AlarmName string      `json:"alarmName,omitempty" yaml:"alarmName,omitempty" validate:"max=100"`
}

// EventHandler accepts tab events and serves redirect commands back
type EventHandler struct {
	sink     EventSink
	status   StatusSource
	commands CommandSource
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler. status is nil when the tracker
// runs in a separate worker.
func NewEventHandler(sink EventSink, status StatusSource, commands CommandSource, log *zap.Logger) *EventHandler {
	return &EventHandler{sink: sink, status: status, commands: commands, logger: log}
}

// RegisterRoutes registers event routes on the /api/v1 router
func (h *EventHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/events", h.PostEvent).Methods("POST")
	r.HandleFunc("/commands", h.GetCommands).Methods("GET")
	r.HandleFunc("/tracker", h.GetTracker).Methods("GET")
}

// PostEvent accepts a tab event. Malformed tabs are dropped by the tracker and
// still answered with 202; only an unknown event type is rejected.
func (h *EventHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req TabEventRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "type must be one of tab_activated, tab_updated, alarm")
		return
	}

	event := models.NewTabEvent(models.TabEventType(req.Type), req.Tab)
	event.AlarmName = req.AlarmName

	if err := h.sink.Handle(r.Context(), event); err != nil {
		h.logger.Error("failed_to_handle_tab_event",
			zap.String("event_id", event.ID.String()),
			zap.String("type", req.Type),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The event could not be accepted")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"id": event.ID.String()})
}

// GetCommands drains pending redirect commands. ?wait=<duration> long-polls
// until a command arrives or the wait elapses.
func (h *EventHandler) GetCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var wait time.Duration
	if v := q.Get("wait"); v != "" {
		d, err := parseWait(v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "wait must be a duration such as 25s")
			return
		}
		wait = min(d, MaxCommandWait)
	}

	limit := DefaultCommandLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	cmds := h.commands.Wait(r.Context(), wait, limit)
	if cmds == nil {
		cmds = []models.NavigateCommand{}
	}
	respondJSON(w, http.StatusOK, cmds)
}

// GetTracker returns the current tracking state
func (h *EventHandler) GetTracker(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		respondJSONError(w, http.StatusNotImplemented, "Not Implemented", "the tracker runs in the worker process")
		return
	}
	respondJSON(w, http.StatusOK, h.status.Snapshot())
}

// parseWait accepts a Go duration or a bare number of seconds
func parseWait(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		if d < 0 {
			return 0, strconv.ErrRange
		}
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, strconv.ErrRange
	}
	return time.Duration(secs) * time.Second, nil
}
