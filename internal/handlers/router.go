package handlers

import (
	"github.com/benvon/sitetime/internal/middleware"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RouterDeps wires the HTTP surface
type RouterDeps struct {
	Service  *timetrack.Service
	Sink     EventSink
	Status   StatusSource
	Commands CommandSource
	Health   *HealthChecker
	Logger   *zap.Logger
}

// NewRouter registers every route. Cross-cutting middleware is applied by the caller.
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = middleware.NotFound(deps.Logger)
	r.MethodNotAllowedHandler = middleware.MethodNotAllowed(deps.Logger)

	r.HandleFunc("/healthz", deps.Health.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	NewLedgerHandler(deps.Service, deps.Logger).RegisterRoutes(api)
	NewDataHandler(deps.Service, deps.Logger).RegisterRoutes(api)
	api.HandleFunc("/messages", NewMessageHandler(deps.Service, deps.Logger).HandleMessage).Methods("POST")
	NewEventHandler(deps.Sink, deps.Status, deps.Commands, deps.Logger).RegisterRoutes(api)

	return r
}
