package handlers

import (
	"net/http"

	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"go.uber.org/zap"
)

// Message actions understood by POST /messages
const (
	ActionGetSiteData     = "getSiteData"
	ActionBlockSite       = "blockSite"
	ActionSetSiteCategory = "setSiteCategory"
	ActionGetDailySummary = "getDailySummary"

	// ReasonUnknownAction tags a message whose action is not recognized
	ReasonUnknownAction = "unknown_action"

	maxLoggedActionLength = 64
)

// Message is the request-response envelope the extension UI sends
type Message struct {
	Action      string `json:"action" yaml:"action"`
	Hostname    string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	ShouldBlock bool   `json:"shouldBlock,omitempty" yaml:"shouldBlock,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
}

// SiteDataResponse answers getSiteData
type SiteDataResponse struct {
	TimeSpent int64 `json:"timeSpent"`
}

// MessageHandler dispatches extension messages onto the ledger service
type MessageHandler struct {
	svc    *timetrack.Service
	logger *zap.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(svc *timetrack.Service, log *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: log}
}

// HandleMessage handles POST /messages. Unknown actions are answered with an
// ignored result rather than an error.
func (h *MessageHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := decodeBody(r, &msg); err != nil {
		respondDecodeError(w, err)
		return
	}
	ctx := r.Context()

	switch msg.Action {
	case ActionGetSiteData:
		ms, err := h.svc.QuerySiteTime(ctx, msg.Hostname, msg.Date)
		if err != nil {
			respondServiceError(w, h.logger, "failed_to_query_site_time", err)
			return
		}
		respondJSON(w, http.StatusOK, SiteDataResponse{TimeSpent: ms})
	case ActionBlockSite:
		result, err := h.svc.SetBlocked(ctx, msg.Hostname, msg.ShouldBlock)
		if err != nil {
			respondServiceError(w, h.logger, "failed_to_set_blocked", err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	case ActionSetSiteCategory:
		result, err := h.svc.SetCategory(ctx, msg.Hostname, msg.Category)
		if err != nil {
			respondServiceError(w, h.logger, "failed_to_set_category", err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	case ActionGetDailySummary:
		summary, err := h.svc.DailySummary(ctx, msg.Date)
		if err != nil {
			respondServiceError(w, h.logger, "failed_to_build_summary", err)
			return
		}
		respondJSON(w, http.StatusOK, summary)
	default:
		h.logger.Debug("message_ignored", zap.String("action", logger.SanitizeString(msg.Action, maxLoggedActionLength)))
		respondJSON(w, http.StatusOK, timetrack.Result{Ignored: true, Reason: ReasonUnknownAction})
	}
}
