package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

// Service reads and writes one organization's projects and tasks.
type Service struct {
	projects repo[models.Project]
	tasks    repo[models.Task]
	now      func() time.Time
}

// New binds a service to the accessors of one tenant store.
func New(acc *tenant.Accessors) *Service {
	return &Service{
		projects: repo[models.Project]{col: acc.Projects(), notFound: "project not found"},
		tasks:    repo[models.Task]{col: acc.Tasks(), notFound: "task not found"},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CreateProjectInput struct {
	Name        string
	Description string
}

// UpdateProjectInput changes only the fields that are set.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
}

type ProjectFilter struct {
	Status models.ProjectStatus
}

func (s *Service) CreateProject(ctx context.Context, ownerID uuid.UUID, in CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.New(errs.Invalid, "project name is required")
	}

	now := s.now()
	p := &models.Project{
		ID:          uuid.Must(uuid.NewV7()),
		Name:        name,
		Description: in.Description,
		Status:      models.ProjectActive,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.insert(ctx, p.ID, p, now); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Str("project_id", p.ID.String()).Msg("Created project")
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.projects.get(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context, filter ProjectFilter) ([]*models.Project, error) {
	f := tenant.Filter{}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	return s.projects.find(ctx, f)
}

func (s *Service) UpdateProject(ctx context.Context, id uuid.UUID, in UpdateProjectInput) (*models.Project, error) {
	p, err := s.projects.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errs.New(errs.Invalid, "project name is required")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, errs.New(errs.Invalid, "invalid project status")
		}
		p.Status = *in.Status
	}

	p.UpdatedAt = s.now()
	if err := s.projects.replace(ctx, p.ID, p, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes the project and every task in it.
func (s *Service) DeleteProject(ctx context.Context, id uuid.UUID) error {
	if _, err := s.projects.get(ctx, id); err != nil {
		return err
	}

	n, err := s.tasks.col.DeleteWhere(ctx, tenant.Filter{"project_id": id.String()})
	if err != nil {
		return s.tasks.wrap(err)
	}
	if err := s.projects.delete(ctx, id); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("project_id", id.String()).
		Int("tasks", n).
		Msg("Deleted project")
	return nil
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	AssigneeID  *uuid.UUID
	DueDate     *time.Time
	Labels      []string
}

// UpdateTaskInput changes only the fields that are set. ClearAssignee removes
// the assignee.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	DueDate       *time.Time
	Labels        []string
}

type TaskFilter struct {
	Status     models.TaskStatus
	Priority   models.TaskPriority
	AssigneeID *uuid.UUID
}

// CreateTask adds a task to an existing project. Status defaults to TODO and
// priority to MEDIUM.
func (s *Service) CreateTask(ctx context.Context, projectID uuid.UUID, in CreateTaskInput) (*models.Task, error) {
	if _, err := s.projects.get(ctx, projectID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errs.New(errs.Invalid, "task title is required")
	}

	status := in.Status
	if status == "" {
		status = models.TaskTodo
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !status.Valid() {
		return nil, errs.New(errs.Invalid, "invalid task status")
	}
	if !priority.Valid() {
		return nil, errs.New(errs.Invalid, "invalid task priority")
	}

	now := s.now()
	task := &models.Task{
		ID:          uuid.Must(uuid.NewV7()),
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		Labels:      in.Labels,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.insert(ctx, task.ID, task, now); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.tasks.get(ctx, id)
}

// ListTasks returns the tasks of an existing project, oldest first.
func (s *Service) ListTasks(ctx context.Context, projectID uuid.UUID, filter TaskFilter) ([]*models.Task, error) {
	if _, err := s.projects.get(ctx, projectID); err != nil {
		return nil, err
	}

	f := tenant.Filter{"project_id": projectID.String()}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.Priority != "" {
		f["priority"] = string(filter.Priority)
	}
	if filter.AssigneeID != nil {
		f["assignee_id"] = filter.AssigneeID.String()
	}
	return s.tasks.find(ctx, f)
}

func (s *Service) UpdateTask(ctx context.Context, id uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	task, err := s.tasks.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, errs.New(errs.Invalid, "task title is required")
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, errs.New(errs.Invalid, "invalid task status")
		}
		task.Status = *in.Status
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, errs.New(errs.Invalid, "invalid task priority")
		}
		task.Priority = *in.Priority
	}
	switch {
	case in.ClearAssignee:
		task.AssigneeID = nil
	case in.AssigneeID != nil:
		task.AssigneeID = in.AssigneeID
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if in.Labels != nil {
		task.Labels = in.Labels
	}

	task.UpdatedAt = s.now()
	if err := s.tasks.replace(ctx, task.ID, task, task.CreatedAt, task.UpdatedAt); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.tasks.delete(ctx, id)
}
