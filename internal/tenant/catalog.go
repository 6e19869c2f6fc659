package tenant

import (
	"context"
	"fmt"
	"slices"

	"github.com/wolfeidau/taskflow/internal/errs"
)

// EntityName identifies an entity type stored in tenant stores.
type EntityName string

const (
	EntityTask    EntityName = "Task"
	EntityProject EntityName = "Project"
)

// Schema describes how an entity type is laid out in a tenant store.
type Schema struct {
	Name  EntityName
	Table string
	// Fields lists the JSON fields that can be filtered on. Backends index them.
	Fields []string
}

func (s Schema) filterable(field string) bool {
	return slices.Contains(s.Fields, field)
}

var (
	TaskSchema = Schema{
		Name:   EntityTask,
		Table:  "tasks",
		Fields: []string{"project_id", "status", "priority", "assignee_id"},
	}
	ProjectSchema = Schema{
		Name:   EntityProject,
		Table:  "projects",
		Fields: []string{"status", "owner_id"},
	}
)

// Catalog is a fixed table of the entity types every tenant store carries.
type Catalog struct {
	schemas []Schema
}

// NewCatalog builds a catalog from schemas. Names and tables must be unique.
func NewCatalog(schemas ...Schema) *Catalog {
	seen := make(map[string]bool)
	for _, s := range schemas {
		if seen[string(s.Name)] || seen["table:"+s.Table] {
			panic(fmt.Sprintf("tenant: duplicate schema %s (%s)", s.Name, s.Table))
		}
		seen[string(s.Name)] = true
		seen["table:"+s.Table] = true
	}
	return &Catalog{schemas: schemas}
}

// DefaultCatalog holds the task-tracking entities.
var DefaultCatalog = NewCatalog(TaskSchema, ProjectSchema)

// Schemas returns the catalog's schemas in declaration order.
func (c *Catalog) Schemas() []Schema {
	return slices.Clone(c.schemas)
}

// EntitiesFor binds every catalog entity to h the first time it is asked for h
// and returns the cached set afterwards.
func (c *Catalog) EntitiesFor(ctx context.Context, h *Handle) (*Accessors, error) {
	h.accessorsMu.Lock()
	defer h.accessorsMu.Unlock()

	if acc, ok := h.accessors[c]; ok {
		return acc, nil
	}

	byName := make(map[EntityName]Collection, len(c.schemas))
	for _, s := range c.schemas {
		col, err := h.Bind(ctx, s)
		if err != nil {
			return nil, errs.Wrap(errs.UpstreamUnavailable, "tenant store unavailable", err)
		}
		byName[s.Name] = col
	}

	acc := &Accessors{address: h.Address(), byName: byName}
	h.accessors[c] = acc
	return acc, nil
}

// Accessors is the set of bound collections for one tenant store.
type Accessors struct {
	address string
	byName  map[EntityName]Collection
}

// Address returns the tenant store the accessors are bound to.
func (a *Accessors) Address() string {
	return a.address
}

// Collection returns the accessor for name. Asking for an entity the catalog
// does not define is a programming error and panics.
func (a *Accessors) Collection(name EntityName) Collection {
	col, ok := a.byName[name]
	if !ok {
		panic(fmt.Sprintf("tenant: entity %q is not in the catalog", name))
	}
	return col
}

func (a *Accessors) Tasks() Collection {
	return a.Collection(EntityTask)
}

func (a *Accessors) Projects() Collection {
	return a.Collection(EntityProject)
}
