// Package server exposes the task tracker as a JSON HTTP API.
package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/taskflow/internal/account"
	"github.com/wolfeidau/taskflow/internal/auth"
	httpmiddleware "github.com/wolfeidau/taskflow/internal/http"
	"github.com/wolfeidau/taskflow/internal/members"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/provision"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

// Config holds the services behind the API.
type Config struct {
	Accounts     *account.Service
	Orchestrator *provision.Orchestrator
	Members      *members.Service
	Resolver     *tenant.Resolver
	Gate         *auth.Gate
	Cookies      auth.CookieConfig
}

// Server wires HTTP routes to the account, provisioning, membership and
// tracker services.
type Server struct {
	accounts     *account.Service
	orchestrator *provision.Orchestrator
	members      *members.Service
	resolver     *tenant.Resolver
	gate         *auth.Gate
	cookies      auth.CookieConfig
	validate     *validator.Validate
}

// NewServer creates a server from cfg.
func NewServer(cfg Config) *Server {
	return &Server{
		accounts:     cfg.Accounts,
		orchestrator: cfg.Orchestrator,
		members:      cfg.Members,
		resolver:     cfg.Resolver,
		gate:         cfg.Gate,
		cookies:      cfg.Cookies,
		validate:     newValidator(),
	}
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpmiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// public
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/refresh", s.refresh)
	mux.HandleFunc("POST /api/auth/logout", s.logout)

	// authenticated, no organization role needed
	mux.Handle("POST /api/auth/switch", s.authenticated(s.switchOrganization))
	mux.Handle("POST /api/organizations", s.authenticated(s.createOrganization))

	mux.Handle("GET /api/auth/me", s.authorized(models.RoleMember, s.me))

	mux.Handle("GET /api/members", s.authorized(models.RoleMember, s.listMembers))
	mux.Handle("POST /api/members/invite", s.authorized(models.RoleAdmin, s.inviteMember))

	mux.Handle("GET /api/projects", s.scoped(models.RoleMember, s.listProjects))
	mux.Handle("POST /api/projects", s.scoped(models.RoleMember, s.createProject))
	mux.Handle("GET /api/projects/{id}", s.scoped(models.RoleMember, s.getProject))
	mux.Handle("PATCH /api/projects/{id}", s.scoped(models.RoleMember, s.updateProject))
	mux.Handle("DELETE /api/projects/{id}", s.scoped(models.RoleAdmin, s.deleteProject))

	mux.Handle("GET /api/projects/{id}/tasks", s.scoped(models.RoleMember, s.listTasks))
	mux.Handle("POST /api/projects/{id}/tasks", s.scoped(models.RoleMember, s.createTask))
	mux.Handle("GET /api/tasks/{id}", s.scoped(models.RoleMember, s.getTask))
	mux.Handle("PATCH /api/tasks/{id}", s.scoped(models.RoleMember, s.updateTask))
	mux.Handle("DELETE /api/tasks/{id}", s.scoped(models.RoleMember, s.deleteTask))

	return httpmiddleware.RequestLogger(log)(mux)
}

func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return s.gate.Middleware()(h)
}

// authorized requires a verified membership of at least min in the caller's
// token organization.
func (s *Server) authorized(min models.Role, h http.HandlerFunc) http.Handler {
	return s.gate.Middleware()(s.gate.RequireRole(min)(h))
}

// scoped is authorized plus the organization's tenant store.
func (s *Server) scoped(min models.Role, h http.HandlerFunc) http.Handler {
	return s.gate.Middleware()(s.gate.RequireRole(min)(s.withTenant(h)))
}
