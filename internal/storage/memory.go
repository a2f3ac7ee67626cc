package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// MemoryStore is an in-memory Store for tests and single-process local
// mode. A single mutex serializes all mutations, which trivially gives
// the CAS semantics the interface requires.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*models.User
	projects      map[string]*models.Project
	components    map[string]*models.Component
	contributors  map[string][]*models.ComponentContributor // by component id
	changes       map[string]*models.Change
	impacts       map[models.ImpactKey]*models.Impact
	notifications map[string][]*models.Notification // by user id
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		projects:      make(map[string]*models.Project),
		components:    make(map[string]*models.Component),
		contributors:  make(map[string][]*models.ComponentContributor),
		changes:       make(map[string]*models.Change),
		impacts:       make(map[models.ImpactKey]*models.Impact),
		notifications: make(map[string][]*models.Notification),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return errors.ValidationErrorf("email %s already registered", user.Email)
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errors.New(errors.TypeNotFound, "unknown user")
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.New(errors.TypeNotFound, "unknown user")
}

func (s *MemoryStore) CreateProject(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *project
	s.projects[project.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, errors.New(errors.TypeNotFound, "unknown project").WithContext("project_id", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProjects(_ context.Context, ownerID string) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Project
	for _, p := range s.projects {
		if ownerID == "" || p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateProjectPolicy(_ context.Context, id string, mode models.StrictnessMode, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return errors.New(errors.TypeNotFound, "unknown project").WithContext("project_id", id)
	}
	p.StrictnessMode = mode
	if window > 0 {
		p.AutoConfirmWindow = window
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CreateComponent(_ context.Context, component *models.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *component
	s.components[component.ID] = &cp
	return nil
}

func (s *MemoryStore) GetComponent(_ context.Context, id string) (*models.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[id]
	if !ok {
		return nil, errors.New(errors.TypeNotFound, "unknown component").WithContext("component_id", id)
	}
	cp := *c
	cp.Contributors = s.contributorsLocked(id)
	return &cp, nil
}

func (s *MemoryStore) contributorsLocked(componentID string) []models.ComponentContributor {
	var out []models.ComponentContributor
	for _, cc := range s.contributors[componentID] {
		out = append(out, *cc)
	}
	return out
}

func (s *MemoryStore) ListComponents(_ context.Context, projectID string) ([]*models.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Component
	for _, c := range s.components {
		if c.ProjectID == projectID {
			cp := *c
			cp.Contributors = s.contributorsLocked(c.ID)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetComponentStatus(_ context.Context, id string, status models.ComponentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.components[id]
	if !ok {
		return errors.New(errors.TypeNotFound, "unknown component").WithContext("component_id", id)
	}
	c.Status = status
	return nil
}

func (s *MemoryStore) AddContributor(_ context.Context, c *models.ComponentContributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.contributors[c.ComponentID] {
		if existing.UserID == c.UserID {
			existing.Role = c.Role
			return nil
		}
	}
	cp := *c
	s.contributors[c.ComponentID] = append(s.contributors[c.ComponentID], &cp)
	return nil
}

func (s *MemoryStore) ListContributors(_ context.Context, componentID string) ([]*models.ComponentContributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ComponentContributor
	for _, cc := range s.contributors[componentID] {
		cp := *cc
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) CreateChange(_ context.Context, change *models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *change
	s.changes[change.ID] = &cp
	return nil
}

func (s *MemoryStore) GetChange(_ context.Context, id string) (*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.changes[id]
	if !ok {
		return nil, errors.UnknownChange(id)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListChanges(_ context.Context, projectID string) ([]*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Change
	for _, c := range s.changes {
		if c.ProjectID == projectID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TransitionChange(_ context.Context, id string, expected, next models.ChangeStatus, resolvedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.changes[id]
	if !ok {
		return errors.UnknownChange(id)
	}
	if c.Status != expected {
		return errors.StaleStatef("change %s is %s, expected %s", id, c.Status, expected)
	}
	c.Status = next
	c.UpdatedAt = time.Now().UTC()
	if resolvedAt != nil {
		c.ResolvedAt = resolvedAt
	}
	return nil
}

func (s *MemoryStore) SetCIStatus(_ context.Context, id string, status models.CIStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.changes[id]
	if !ok {
		return errors.UnknownChange(id)
	}
	c.CIStatus = status
	return nil
}

func (s *MemoryStore) UpsertImpacts(_ context.Context, changeID string, rows []*models.Impact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.changes[changeID]; !ok {
		return errors.UnknownChange(changeID)
	}
	for _, row := range rows {
		key := row.Key()
		existing, ok := s.impacts[key]
		if ok && existing.AckStatus.Terminal() {
			// A late detector batch never clobbers a human decision.
			continue
		}
		cp := *row
		if ok {
			// Replacement keeps the original clock: the acknowledgement
			// window does not restart because detection re-ran.
			cp.ID = existing.ID
			cp.CreatedAt = existing.CreatedAt
			if existing.AutoConfirmAt != nil {
				cp.AutoConfirmAt = existing.AutoConfirmAt
			}
		}
		cp.AckStatus = models.AckWaiting
		s.impacts[key] = &cp
	}
	return nil
}

func (s *MemoryStore) GetImpacts(_ context.Context, changeID string) ([]*models.Impact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Impact
	for _, imp := range s.impacts {
		if imp.ChangeID == changeID {
			cp := *imp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ComponentID != out[j].ComponentID {
			return out[i].ComponentID < out[j].ComponentID
		}
		return out[i].ContributorID < out[j].ContributorID
	})
	return out, nil
}

func (s *MemoryStore) GetImpact(_ context.Context, key models.ImpactKey) (*models.Impact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imp, ok := s.impacts[key]
	if !ok {
		return nil, errors.UnknownImpact(key.ChangeID, key.ComponentID, key.ContributorID)
	}
	cp := *imp
	return &cp, nil
}

func (s *MemoryStore) CountImpactsByStatus(_ context.Context, changeID string) (map[models.AckStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.AckStatus]int)
	for _, imp := range s.impacts {
		if imp.ChangeID == changeID {
			counts[imp.AckStatus]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) TransitionImpact(_ context.Context, key models.ImpactKey, expected, next models.AckStatus, update ImpactUpdate) (*models.Impact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp, ok := s.impacts[key]
	if !ok {
		return nil, errors.UnknownImpact(key.ChangeID, key.ComponentID, key.ContributorID)
	}
	if imp.AckStatus != expected {
		return nil, errors.StaleStatef("impact is %s, expected %s", imp.AckStatus, expected)
	}
	imp.AckStatus = next
	imp.UpdatedAt = time.Now().UTC()
	if update.Note != nil {
		imp.Note = *update.Note
	}
	if update.ConfirmedAt != nil {
		imp.ConfirmedAt = update.ConfirmedAt
	}
	cp := *imp
	return &cp, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.UserID] = append(s.notifications[n.UserID], &cp)
	return nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.notifications[userID] {
		cp := *n
		out = append(out, &cp)
	}
	// Newest first, matching the API ordering
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkNotificationsRead(_ context.Context, userID string, ids []string, all bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	for _, n := range s.notifications[userID] {
		if all || idSet[n.ID] {
			n.IsRead = true
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
