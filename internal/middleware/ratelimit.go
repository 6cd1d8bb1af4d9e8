package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/sitetime/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	defaultRatelimitRate = "50-S"
	ratelimitKeyPrefix   = "sitetime_limiter"
)

// RateLimit returns middleware backed by ulule/limiter keyed by request.ClientIP.
// Counters live in Redis when redisClient is non-nil, otherwise in process memory.
func RateLimit(rateStr string, redisClient *redis.Client, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if rateStr == "" {
		rateStr = defaultRatelimitRate
	}
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit %q: %w", rateStr, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: ratelimitKeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{Prefix: ratelimitKeyPrefix})
	}

	instance := limiter.New(store, rate)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		logger.Warn("rate_limit_exceeded",
			zap.String("client_ip", request.ClientIP(r)),
			zap.String("path", r.URL.Path),
		)
		respondErrorJSON(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded", logger)
	}
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("rate_limit_store_error", zap.Error(err), zap.String("path", r.URL.Path))
		respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Rate limiter unavailable", logger)
	}
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(keyGetter),
		stdlibmw.WithLimitReachedHandler(onLimit),
		stdlibmw.WithErrorHandler(onError),
	)
	return mw.Handler, nil
}
