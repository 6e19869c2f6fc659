package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/taskflow/internal/errs"
	httpmiddleware "github.com/wolfeidau/taskflow/internal/http"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/tracker"
)

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=500"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeID  string     `json:"assignee_id" validate:"omitempty,uuid"`
	DueDate     *time.Time `json:"due_date"`
	Labels      []string   `json:"labels" validate:"max=20,dive,required,max=50"`
}

type updateTaskRequest struct {
	Title         *string    `json:"title" validate:"omitempty,min=1,max=500"`
	Description   *string    `json:"description" validate:"omitempty,max=10000"`
	Status        *string    `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority      *string    `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssigneeID    *string    `json:"assignee_id" validate:"omitempty,uuid"`
	ClearAssignee bool       `json:"clear_assignee"`
	DueDate       *time.Time `json:"due_date"`
	Labels        []string   `json:"labels" validate:"omitempty,max=20,dive,required,max=50"`
}

type tasksResponse struct {
	Tasks []*models.Task `json:"tasks"`
}

// checkAssignee requires an assignee to be an accepted member of the scope's
// organization.
func (s *Server) checkAssignee(ctx context.Context, scope *Scope, assignee *uuid.UUID) error {
	if assignee == nil {
		return nil
	}
	return s.members.RequireAccepted(ctx, scope.Tenant.OrgID, *assignee)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := tracker.TaskFilter{
		Status:   models.TaskStatus(q.Get("status")),
		Priority: models.TaskPriority(q.Get("priority")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httpmiddleware.WriteError(w, r, errs.New(errs.Invalid, "invalid task status"))
		return
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		httpmiddleware.WriteError(w, r, errs.New(errs.Invalid, "invalid task priority"))
		return
	}
	if filter.AssigneeID, err = parseOptionalID(q.Get("assignee"), "assignee"); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	list, err := ScopeFromContext(r.Context()).Tracker.ListTasks(r.Context(), projectID, filter)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, tasksResponse{Tasks: nonNil(list)})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	var req createTaskRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	scope := ScopeFromContext(ctx)

	assignee, err := parseOptionalID(req.AssigneeID, "assignee_id")
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	if err := s.checkAssignee(ctx, scope, assignee); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	task, err := scope.Tracker.CreateTask(ctx, projectID, tracker.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.TaskPriority(req.Priority),
		AssigneeID:  assignee,
		DueDate:     req.DueDate,
		Labels:      req.Labels,
	})
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	task, err := ScopeFromContext(r.Context()).Tracker.GetTask(r.Context(), id)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	var req updateTaskRequest
	if err := s.decode(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	ctx := r.Context()
	scope := ScopeFromContext(ctx)

	in := tracker.UpdateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		ClearAssignee: req.ClearAssignee,
		DueDate:       req.DueDate,
		Labels:        req.Labels,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		in.Status = &status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		in.Priority = &priority
	}
	if req.AssigneeID != nil && !req.ClearAssignee {
		if in.AssigneeID, err = parseOptionalID(*req.AssigneeID, "assignee_id"); err != nil {
			httpmiddleware.WriteError(w, r, err)
			return
		}
		if err := s.checkAssignee(ctx, scope, in.AssigneeID); err != nil {
			httpmiddleware.WriteError(w, r, err)
			return
		}
	}

	task, err := scope.Tracker.UpdateTask(ctx, id, in)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	if err := ScopeFromContext(r.Context()).Tracker.DeleteTask(r.Context(), id); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
