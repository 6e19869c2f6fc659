// Package provision creates organizations and their tenant stores as one saga.
package provision

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/auth"
	"github.com/wolfeidau/taskflow/internal/errs"
	"github.com/wolfeidau/taskflow/internal/models"
	"github.com/wolfeidau/taskflow/internal/saga"
	"github.com/wolfeidau/taskflow/internal/store"
	"github.com/wolfeidau/taskflow/internal/telemetry"
	"github.com/wolfeidau/taskflow/internal/tenant"
)

const (
	stepCreateUser       = "create_user"
	stepCreateOrg        = "create_organization"
	stepCreateMembership = "create_owner_membership"
	stepConnectTenant    = "connect_tenant_store"
	stepBindTenant       = "bind_tenant_schemas"
	stepSetCurrentOrg    = "set_current_organization"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSagaOptions passes options to every saga the orchestrator runs.
func WithSagaOptions(opts ...saga.Option) Option {
	return func(o *Orchestrator) { o.sagaOpts = append(o.sagaOpts, opts...) }
}

// Orchestrator provisions organizations. A tenant store only ever exists for an
// organization record that exists; on failure every completed step is undone.
type Orchestrator struct {
	stores   store.Stores
	registry *tenant.Registry
	catalog  *tenant.Catalog
	metrics  *telemetry.Metrics
	now      func() time.Time
	sagaOpts []saga.Option
}

func NewOrchestrator(stores store.Stores, registry *tenant.Registry, catalog *tenant.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stores:   stores,
		registry: registry,
		catalog:  catalog,
		metrics:  telemetry.GetMetrics(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Slug derives the organization slug from its name: lower-cased, whitespace runs
// replaced by "-", suffixed with "-" and the base36 unix millisecond time.
func Slug(name string, now time.Time) string {
	base := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}

// RegisterInput is a new account together with its first organization.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	OrgName  string
}

// Registration is the outcome of a successful Register.
type Registration struct {
	User         *models.User
	Organization *models.Organization
	Membership   *models.Membership
}

// provisioning is the state threaded through one saga run.
type provisioning struct {
	user       *models.User
	org        *models.Organization
	membership *models.Membership
}

// Register creates the user and then provisions their first organization.
func (o *Orchestrator) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.OrgName) == "" {
		return nil, errs.New(errs.Invalid, "name, email, password and organization name are required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := o.now().UTC()
	user := &models.User{
		ID:           uuid.Must(uuid.NewV7()),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	state := &provisioning{user: user}

	s := saga.New("register", o.sagaOpts...)
	s.AddStep(saga.Step{
		Name: stepCreateUser,
		Execute: func(ctx context.Context) error {
			if err := o.stores.Users.Create(ctx, user); err != nil {
				if errors.Is(err, store.ErrUserAlreadyExists) {
					return errs.Wrap(errs.Conflict, "email already registered", err)
				}
				return storeError(err)
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return ignoreNotFound(o.stores.Users.Delete(ctx, user.ID), store.ErrUserNotFound)
		},
	})
	o.addOrganizationSteps(s, state, strings.TrimSpace(in.OrgName), now)

	if err := o.run(ctx, s, user.ID); err != nil {
		return nil, err
	}

	return &Registration{User: state.user, Organization: state.org, Membership: state.membership}, nil
}

// ProvisionOrganization creates an organization owned by an existing user,
// together with the owner membership and the tenant store.
func (o *Orchestrator) ProvisionOrganization(ctx context.Context, ownerID uuid.UUID, orgName string) (*models.Organization, error) {
	orgName = strings.TrimSpace(orgName)
	if orgName == "" {
		return nil, errs.New(errs.Invalid, "organization name is required")
	}

	user, err := o.stores.Users.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, errs.Wrap(errs.NotFound, "user not found", err)
		}
		return nil, storeError(err)
	}

	state := &provisioning{user: user}

	s := saga.New("provision_organization", o.sagaOpts...)
	o.addOrganizationSteps(s, state, orgName, o.now().UTC())

	if err := o.run(ctx, s, ownerID); err != nil {
		return nil, err
	}
	return state.org, nil
}

func (o *Orchestrator) addOrganizationSteps(s *saga.Saga, state *provisioning, orgName string, now time.Time) {
	owner := state.user
	org := &models.Organization{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      orgName,
		Slug:      Slug(orgName, now),
		DBAddress: tenant.AddressFor(owner.ID),
		OwnerID:   owner.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	joined := now
	membership := &models.Membership{
		UserID:    owner.ID,
		OrgID:     org.ID,
		Role:      models.RoleOwner,
		Status:    models.MembershipAccepted,
		InvitedAt: now,
		JoinedAt:  &joined,
		CreatedAt: now,
	}

	s.AddStep(saga.Step{
		Name: stepCreateOrg,
		Execute: func(ctx context.Context) error {
			if err := o.stores.Organizations.Create(ctx, org); err != nil {
				if errors.Is(err, store.ErrOrganizationAlreadyExists) {
					return errs.Wrap(errs.Conflict, "organization already exists", err)
				}
				return storeError(err)
			}
			state.org = org
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return ignoreNotFound(o.stores.Organizations.Delete(ctx, org.ID), store.ErrOrganizationNotFound)
		},
	})

	s.AddStep(saga.Step{
		Name: stepCreateMembership,
		Execute: func(ctx context.Context) error {
			if err := o.stores.Memberships.Create(ctx, membership); err != nil {
				if errors.Is(err, store.ErrMembershipAlreadyExists) {
					return errs.Wrap(errs.Conflict, "membership already exists", err)
				}
				return storeError(err)
			}
			state.membership = membership
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return ignoreNotFound(o.stores.Memberships.Delete(ctx, owner.ID, org.ID), store.ErrMembershipNotFound)
		},
	})

	var handle *tenant.Handle

	// a failed or abandoned connect may still have created the store
	s.AddStep(saga.Step{
		Name:    stepConnectTenant,
		Partial: true,
		Execute: func(ctx context.Context) error {
			h, err := o.registry.Resolve(ctx, org.DBAddress)
			if err != nil {
				return err
			}
			handle = h
			return nil
		},
		Compensate: func(ctx context.Context) error {
			return o.registry.Drop(ctx, org.DBAddress)
		},
	})

	s.AddStep(saga.Step{
		Name: stepBindTenant,
		Execute: func(ctx context.Context) error {
			_, err := o.catalog.EntitiesFor(ctx, handle)
			return err
		},
	})

	s.AddStep(saga.Step{
		Name: stepSetCurrentOrg,
		Execute: func(ctx context.Context) error {
			if err := o.stores.Users.SetCurrentOrg(ctx, owner.ID, org.ID); err != nil {
				return storeError(err)
			}
			orgID := org.ID
			owner.CurrentOrgID = &orgID
			return nil
		},
	})
}

func (o *Orchestrator) run(ctx context.Context, s *saga.Saga, ownerID uuid.UUID) error {
	started := time.Now()
	o.metrics.ProvisioningStartedTotal.Add(ctx, 1)
	defer func() {
		o.metrics.ProvisioningDurationSeconds.Record(ctx, time.Since(started).Seconds())
	}()

	err := s.Run(ctx)
	if err != nil {
		o.metrics.ProvisioningFailedTotal.Add(ctx, 1)
		return o.classify(err, ownerID)
	}

	o.metrics.ProvisioningSucceededTotal.Add(ctx, 1)
	log.Info().
		Str("owner_id", ownerID.String()).
		Dur("duration", time.Since(started)).
		Msg("Provisioned organization")
	return nil
}

// classify keeps Conflict and NotFound as they are. Any other failure after a
// step took effect becomes ProvisioningFailed.
func (o *Orchestrator) classify(err error, ownerID uuid.UUID) error {
	var f *saga.Failure
	if !errors.As(err, &f) {
		return err
	}

	evt := log.Warn()
	if cerr := saga.CompensationError(err); cerr != nil {
		evt = log.Error().AnErr("compensation_error", cerr)
	}
	evt.Err(f.Err).
		Str("owner_id", ownerID.String()).
		Str("step", f.Step).
		Strs("compensated", f.Completed).
		Msg("Provisioning failed")

	switch {
	case errs.Is(f.Err, errs.Conflict), errs.Is(f.Err, errs.NotFound):
		return f.Err
	case len(f.Completed) == 0:
		return f.Err
	default:
		return errs.Wrap(errs.ProvisioningFailed, "organization provisioning failed", f.Err)
	}
}

func storeError(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return errs.Wrap(errs.UpstreamUnavailable, "global store unavailable", err)
	}
	return err
}

func ignoreNotFound(err, notFound error) error {
	if errors.Is(err, notFound) {
		return nil
	}
	return err
}
