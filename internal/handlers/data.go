package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DataHandler handles export, import and clear of the whole data set
type DataHandler struct {
	svc    *timetrack.Service
	logger *zap.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(svc *timetrack.Service, log *zap.Logger) *DataHandler {
	return &DataHandler{svc: svc, logger: log}
}

// RegisterRoutes registers data routes on the /api/v1 router
func (h *DataHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/export", h.Export).Methods("GET")
	r.HandleFunc("/import", h.Import).Methods("POST")
	r.HandleFunc("/clear", h.Clear).Methods("POST")
}

// Export writes the snapshot as a downloadable file. ?format=yaml switches the encoding.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("format must be %s or %s", FormatJSON, FormatYAML))
		return
	}

	snap, err := h.svc.Export(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_export", err)
		return
	}

	var body []byte
	contentType := "application/json"
	if format == FormatYAML {
		body, err = yaml.Marshal(snap)
		contentType = "application/yaml"
	} else {
		body, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		h.logger.Error("failed_to_encode_export", zap.Error(err), zap.String("format", format))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to encode export")
		return
	}

	filename := fmt.Sprintf("sitetime-export-%s.%s", h.svc.Today(), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed_to_write_export", zap.Error(err))
	}
}

// Import merges a JSON or YAML snapshot over the current data
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	var snap models.Snapshot
	if err := decodeBody(r, &snap); err != nil {
		respondDecodeError(w, err)
		return
	}
	if err := h.svc.Import(r.Context(), &snap); err != nil {
		respondServiceError(w, h.logger, "failed_to_import", err)
		return
	}
	respondJSON(w, http.StatusOK, timetrack.Result{Success: true})
}

// Clear wipes all data. The caller must pass ?confirm=true.
func (h *DataHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "clearing all data requires confirm=true")
		return
	}
	if err := h.svc.Clear(r.Context()); err != nil {
		respondServiceError(w, h.logger, "failed_to_clear", err)
		return
	}
	respondJSON(w, http.StatusOK, timetrack.Result{Success: true})
}
