package storage

import (
	"context"
	"time"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// ImpactUpdate carries the mutable fields a transition may set.
type ImpactUpdate struct {
	Note        *string
	ConfirmedAt *time.Time
}

// Store defines the persistence interface. All impact mutations are
// compare-and-swap on the expected current acknowledgement status so
// concurrent acknowledgements and sweeps lose cleanly with StaleState
// instead of silently overwriting each other.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Project operations
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error)
	UpdateProjectPolicy(ctx context.Context, id string, mode models.StrictnessMode, window time.Duration) error

	// Component operations
	CreateComponent(ctx context.Context, component *models.Component) error
	GetComponent(ctx context.Context, id string) (*models.Component, error)
	ListComponents(ctx context.Context, projectID string) ([]*models.Component, error)
	SetComponentStatus(ctx context.Context, id string, status models.ComponentStatus) error
	AddContributor(ctx context.Context, c *models.ComponentContributor) error
	ListContributors(ctx context.Context, componentID string) ([]*models.ComponentContributor, error)

	// Change operations
	CreateChange(ctx context.Context, change *models.Change) error
	GetChange(ctx context.Context, id string) (*models.Change, error)
	ListChanges(ctx context.Context, projectID string) ([]*models.Change, error)
	// TransitionChange moves a change between lifecycle states with CAS
	// on the expected current status.
	TransitionChange(ctx context.Context, id string, expected, next models.ChangeStatus, resolvedAt *time.Time) error
	SetCIStatus(ctx context.Context, id string, status models.CIStatus) error

	// Impact operations
	// UpsertImpacts is the idempotent detector-batch write keyed by
	// (change, component, contributor). Rows already in a terminal state
	// are never overwritten; waiting/adjusting rows are replaced but
	// keep their original creation time and auto-confirm deadline.
	UpsertImpacts(ctx context.Context, changeID string, rows []*models.Impact) error
	GetImpacts(ctx context.Context, changeID string) ([]*models.Impact, error)
	GetImpact(ctx context.Context, key models.ImpactKey) (*models.Impact, error)
	CountImpactsByStatus(ctx context.Context, changeID string) (map[models.AckStatus]int, error)
	// TransitionImpact applies one CAS state change; a mismatch between
	// expected and the stored status returns StaleState.
	TransitionImpact(ctx context.Context, key models.ImpactKey, expected, next models.AckStatus, update ImpactUpdate) (*models.Impact, error)

	// Notification operations
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string, all bool) error

	Close() error
}
