package middleware

import (
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// DefaultContentTypes are the body formats accepted by the API
var DefaultContentTypes = []string{"application/json", "application/yaml", "application/x-yaml", "text/yaml"}

// ContentType validates Content-Type headers for requests with bodies. Bodiless
// POSTs such as /clear pass through.
func ContentType(allowed []string, logger *zap.Logger) func(http.Handler) http.Handler {
	if len(allowed) == 0 {
		allowed = DefaultContentTypes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasBody(r) {
				contentType := r.Header.Get("Content-Type")
				if contentType == "" {
					respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "Content-Type header is required", logger)
					return
				}
				mediaType, _, err := mime.ParseMediaType(contentType)
				if err != nil || !containsFold(allowed, mediaType) {
					respondErrorJSON(w, r, http.StatusUnsupportedMediaType, "Unsupported Media Type",
						"Content-Type must be one of "+strings.Join(allowed, ", "), logger)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	return r.ContentLength != 0 || len(r.TransferEncoding) > 0
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
