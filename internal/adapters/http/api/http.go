// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	service "github.com/okian/slashboard/internal/app"
	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/internal/domain/refresh"
)

// DefaultMaxLimit caps ?limit when the server is built without one.
const DefaultMaxLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmissionDependencies
	LeaderboardDependencies
	AdminDependencies

	// Bind registers a game account for a platform account in a scope.
	Bind(ctx context.Context, row model.BindingRow) error
}

// AdminDependencies are the maintenance operations.
type AdminDependencies interface {
	Purge(ctx context.Context) error
	Refresh(ctx context.Context) (refresh.Report, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	bindingsHandler    *BindingsHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	adminHandler       *AdminHandler
	adminToken         string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAdminToken sets the credential required on /admin routes. Without it
// the admin routes refuse every request.
func WithAdminToken(token string) ServerOption {
	return func(s *Server) { s.adminToken = token }
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, opts ...ServerOption) *Server {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	s := &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		bindingsHandler:    NewBindingsHandler(deps),
		submissionsHandler: NewSubmissionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		adminHandler:       NewAdminHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(path, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	route("/healthz", "healthz", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.statsHandler.HandleStats)
	route("/bindings", "bindings", s.bindingsHandler.HandlePostBinding)
	route("/submissions", "submissions", s.submissionsHandler.HandlePostSubmission)
	route("/leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	route("/leaderboard/global", "leaderboard_global", s.leaderboardHandler.HandleGetGlobal)
	route("/admin/purge", "admin_purge", AdminAuthMiddleware(s.adminToken, s.adminHandler.HandlePurge))
	route("/admin/refresh", "admin_refresh", AdminAuthMiddleware(s.adminToken, s.adminHandler.HandleRefresh))
}

var _ Dependencies = (*service.Service)(nil)
