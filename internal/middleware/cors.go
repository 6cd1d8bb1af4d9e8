package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

// DefaultExtensionOrigin matches any Chrome extension origin
const DefaultExtensionOrigin = "chrome-extension://*"

// CORS creates CORS middleware for the extension origins. Patterns may contain one
// wildcard, e.g. "chrome-extension://*".
func CORS(allowedOrigins []string, logger *zap.Logger, debug bool) func(http.Handler) http.Handler {
	origins := normalizeOrigins(allowedOrigins)
	logger.Info("cors_initialized", zap.Strings("allowed_origins", origins))

	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           86400,
	}
	if debug {
		opts.Logger = zap.NewStdLog(logger.Named("cors"))
	}
	c := cors.New(opts)
	return c.Handler
}

// normalizeOrigins trims entries, drops blanks and duplicates, and falls back to
// DefaultExtensionOrigin when nothing is left.
func normalizeOrigins(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	if len(out) == 0 {
		out = append(out, DefaultExtensionOrigin)
	}
	return out
}
