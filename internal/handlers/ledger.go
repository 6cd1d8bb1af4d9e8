package handlers

import (
	"net/http"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/benvon/sitetime/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// LedgerHandler serves time queries, summaries and site list management
type LedgerHandler struct {
	svc    *timetrack.Service
	logger *zap.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(svc *timetrack.Service, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: log}
}

// RegisterRoutes registers ledger routes on the /api/v1 router
func (h *LedgerHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sites", h.ListSites).Methods("GET")
	r.HandleFunc("/sites/{hostname}/time", h.GetSiteTime).Methods("GET")
	r.HandleFunc("/sites/{hostname}/blocked", h.SetBlocked).Methods("PUT")
	r.HandleFunc("/sites/{hostname}/category", h.SetCategory).Methods("PUT")
	r.HandleFunc("/summary", h.GetSummary).Methods("GET")
	r.HandleFunc("/insights", h.GetInsights).Methods("GET")
	r.HandleFunc("/blocked", h.ListBlocked).Methods("GET")
	r.HandleFunc("/categories", h.GetCategories).Methods("GET")
	r.HandleFunc("/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")
}

// SiteTimeResponse is the answer to a per-site time query
type SiteTimeResponse struct {
	Site      string `json:"site"`
	Date      string `json:"date"`
	TimeSpent int64  `json:"timeSpent"`
	Formatted string `json:"formatted"`
}

// SetBlockedRequest toggles block-list membership
type SetBlockedRequest struct {
	ShouldBlock bool `json:"shouldBlock" yaml:"shouldBlock"`
}

// SetCategoryRequest moves a site between categories. The value is not
// validated here: unknown categories produce an ignored result.
type SetCategoryRequest struct {
	Category string `json:"category" yaml:"category"`
}

// GetSiteTime returns the milliseconds recorded for a site on a day
func (h *LedgerHandler) GetSiteTime(w http.ResponseWriter, r *http.Request) {
	hostname := mux.Vars(r)["hostname"]
	date := r.URL.Query().Get("date")

	ms, err := h.svc.QuerySiteTime(r.Context(), hostname, date)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_query_site_time", err)
		return
	}
	site, _ := timetrack.ResolveSite(hostname)
	day, _ := h.svc.ResolveDay(date)
	respondJSON(w, http.StatusOK, SiteTimeResponse{
		Site:      site,
		Date:      day,
		TimeSpent: ms,
		Formatted: timetrack.FormatDuration(ms),
	})
}

// ListSites returns the per-site breakdown for a day, largest first
func (h *LedgerHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.SiteBreakdown(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_list_sites", err)
		return
	}
	if list == nil {
		list = []models.SiteTime{}
	}
	respondJSON(w, http.StatusOK, list)
}

// SetBlocked adds or removes a site from the block list
func (h *LedgerHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	var req SetBlockedRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	result, err := h.svc.SetBlocked(r.Context(), mux.Vars(r)["hostname"], req.ShouldBlock)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_set_blocked", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SetCategory assigns a site to productive, distracting or neutral
func (h *LedgerHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req SetCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	result, err := h.svc.SetCategory(r.Context(), mux.Vars(r)["hostname"], validation.SanitizeText(req.Category))
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_set_category", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetSummary returns the category split for a day
func (h *LedgerHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.DailySummary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_build_summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetInsights returns dashboard cards for a day
func (h *LedgerHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.svc.Insights(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_build_insights", err)
		return
	}
	respondJSON(w, http.StatusOK, insights)
}

// ListBlocked returns the block list in insertion order
func (h *LedgerHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.svc.BlockedSites(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_list_blocked", err)
		return
	}
	if blocked == nil {
		blocked = []string{}
	}
	respondJSON(w, http.StatusOK, blocked)
}

// GetCategories returns the productive and distracting lists
func (h *LedgerHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_list_categories", err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// GetSettings returns the saved preferences
func (h *LedgerHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_settings", err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces the saved preferences
func (h *LedgerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.GetSettings(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_settings", err)
		return
	}
	// Decode over the current values so a partial body only changes what it names
	if err := decodeBody(r, &settings); err != nil {
		respondDecodeError(w, err)
		return
	}
	if err := h.svc.SaveSettings(r.Context(), settings); err != nil {
		respondServiceError(w, h.logger, "failed_to_save_settings", err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}
