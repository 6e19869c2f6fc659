package server

import (
	"net/http"

	"github.com/wolfeidau/taskflow/internal/errs"
	httpmiddleware "github.com/wolfeidau/taskflow/internal/http"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/tracker"
)

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Status      *string `json:"status" validate:"omitempty,oneof=ACTIVE ARCHIVED COMPLETED"`
}

type projectsResponse struct {
	Projects []*models.Project `json:"projects"`
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	status := models.ProjectStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpmiddleware.WriteError(w, r, errs.New(errs.Invalid, "invalid project status"))
		return
	}

	scope := ScopeFromContext(r.Context())
	list, err := scope.Tracker.ListProjects(r.Context(), tracker.ProjectFilter{Status: status})
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, projectsResponse{Projects: nonNil(list)})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	scope := ScopeFromContext(r.Context())
	p, err := scope.Tracker.CreateProject(r.Context(), scope.Identity.UserID, tracker.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	p, err := ScopeFromContext(r.Context()).Tracker.GetProject(r.Context(), id)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	var req updateProjectRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	in := tracker.UpdateProjectInput{Name: req.Name, Description: req.Description}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		in.Status = &status
	}

	p, err := ScopeFromContext(r.Context()).Tracker.UpdateProject(r.Context(), id, in)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	if err := ScopeFromContext(r.Context()).Tracker.DeleteProject(r.Context(), id); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
