package review

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/config"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/storage"
)

// Service owns the change-impact lifecycle: detector batches in,
// acknowledgement transitions, the auto-confirm sweep, and the merge
// gate. All state transitions on a change's impacts are serialized by
// store-level compare-and-swap, never by client cooperation.
type Service struct {
	store storage.Store
	sink  Sink
	cfg   config.ReviewConfig
	log   *slog.Logger
	now   func() time.Time

	mu      sync.Mutex
	nudgers map[string]*rate.Limiter // keyed by changeID+authorID
}

// NewService creates a review service
func NewService(store storage.Store, sink Sink, cfg config.ReviewConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Service{
		store:   store,
		sink:    sink,
		cfg:     cfg,
		log:     log.With("component", "review"),
		now:     func() time.Time { return time.Now().UTC() },
		nudgers: make(map[string]*rate.Limiter),
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SubmitChange creates a change request in pending_analysis and
// snapshots the project's strictness mode onto it. Mutating the project
// later never affects this change.
func (s *Service) SubmitChange(ctx context.Context, projectID, authorID, componentID, title, description string) (*models.Change, error) {
	if title == "" {
		return nil, errors.ValidationErrorf("change title is required")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	change := &models.Change{
		ID:                uuid.New().String(),
		ProjectID:         projectID,
		SourceComponentID: componentID,
		AuthorID:          authorID,
		Title:             title,
		Description:       description,
		Status:            models.ChangePendingAnalysis,
		CIStatus:          models.CIRunning,
		StrictnessMode:    project.StrictnessMode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateChange(ctx, change); err != nil {
		return nil, err
	}
	if componentID != "" {
		if err := s.store.SetComponentStatus(ctx, componentID, models.ComponentPending); err != nil {
			s.log.Warn("failed to flag source component", "component_id", componentID, "error", err)
		}
	}
	s.log.Info("change submitted",
		"change_id", change.ID,
		"project_id", projectID,
		"strictness", change.StrictnessMode)
	return change, nil
}

// DeliverDetection records a detector batch for a change. The upsert is
// idempotent: a late or duplicate batch replaces unacknowledged rows but
// never overwrites rows a human already confirmed or dismissed. Under
// soft enforcement every new row gets an absolute auto-confirm deadline.
func (s *Service) DeliverDetection(ctx context.Context, changeID string, inputs []models.ImpactInput) ([]*models.Impact, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if change.Status.Terminal() {
		return nil, errors.InvalidTransitionf("change %s is %s, impacts are immutable", changeID, change.Status)
	}

	window := s.autoConfirmWindow(ctx, change.ProjectID)
	now := s.now()
	rows := make([]*models.Impact, 0, len(inputs))
	for _, in := range inputs {
		if in.ComponentID == "" || in.ContributorID == "" {
			return nil, errors.ValidationErrorf("impact input missing component or contributor id")
		}
		if in.Method != models.DetectionParser && in.Method != models.DetectionLLM {
			return nil, errors.ValidationErrorf("unknown detection method %q", in.Method)
		}
		rows = append(rows, &models.Impact{
			ID:            uuid.New().String(),
			ChangeID:      changeID,
			ComponentID:   in.ComponentID,
			ContributorID: in.ContributorID,
			Method:        in.Method,
			Confidence:    in.Confidence,
			AckStatus:     models.AckWaiting,
			AffectedLines: in.AffectedLines,
			AutoConfirmAt: DeadlineFor(change.StrictnessMode, now, window),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if err := s.store.UpsertImpacts(ctx, changeID, rows); err != nil {
		return nil, err
	}

	// First batch moves the change into review; a re-run arrives with the
	// change already there, which is fine.
	err = s.store.TransitionChange(ctx, changeID, models.ChangePendingAnalysis, models.ChangeInReview, nil)
	if err != nil && !errors.Is(err, errors.TypeStale) {
		return nil, err
	}

	s.flagAffectedComponents(ctx, rows)
	s.notifyContributors(ctx, change, rows)

	s.log.Info("detection batch recorded",
		"change_id", changeID,
		"impacts", len(rows),
		"strictness", change.StrictnessMode)
	return s.store.GetImpacts(ctx, changeID)
}

func (s *Service) flagAffectedComponents(ctx context.Context, rows []*models.Impact) {
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.ComponentID] {
			continue
		}
		seen[row.ComponentID] = true
		if err := s.store.SetComponentStatus(ctx, row.ComponentID, models.ComponentFlagged); err != nil {
			s.log.Warn("failed to flag component", "component_id", row.ComponentID, "error", err)
		}
	}
}

func (s *Service) notifyContributors(ctx context.Context, change *models.Change, rows []*models.Impact) {
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.ContributorID] || row.ContributorID == change.AuthorID {
			continue
		}
		seen[row.ContributorID] = true
		s.notify(ctx, row.ContributorID, "change", "Your component is affected",
			change.Title, map[string]string{"change_id": change.ID, "project_id": change.ProjectID})
	}
}

// GetImpactSet reads the change and its impacts, running the lazy
// auto-confirm sweep first. This read path is the correctness baseline
// for the timer policy; the background sweep command is only a latency
// optimization.
func (s *Service) GetImpactSet(ctx context.Context, changeID string) (*models.Change, []*models.Impact, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.SweepAutoConfirm(ctx, change); err != nil {
		return nil, nil, err
	}
	impacts, err := s.store.GetImpacts(ctx, changeID)
	if err != nil {
		return nil, nil, err
	}
	return change, impacts, nil
}

// CountByStatus returns impact counts per acknowledgement status,
// post-sweep.
func (s *Service) CountByStatus(ctx context.Context, changeID string) (map[models.AckStatus]int, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if _, err := s.SweepAutoConfirm(ctx, change); err != nil {
		return nil, err
	}
	return s.store.CountImpactsByStatus(ctx, changeID)
}

// SweepAutoConfirm fires the waiting -> auto_confirmed transition for
// every impact whose deadline has elapsed. Idempotent and safe to call
// concurrently: each transition is CAS-guarded, so when two readers race
// exactly one wins and exactly one event is emitted. Returns the number
// of impacts confirmed by this call.
func (s *Service) SweepAutoConfirm(ctx context.Context, change *models.Change) (int, error) {
	if change.Status.Terminal() || change.StrictnessMode != models.StrictnessSoft {
		return 0, nil
	}
	impacts, err := s.store.GetImpacts(ctx, change.ID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	fired := 0
	for _, imp := range impacts {
		if !dueForAutoConfirm(change.StrictnessMode, imp, now) {
			continue
		}
		confirmedAt := now
		_, err := s.store.TransitionImpact(ctx, imp.Key(), models.AckWaiting, models.AckAutoConfirmed,
			storage.ImpactUpdate{ConfirmedAt: &confirmedAt})
		if err != nil {
			if errors.Is(err, errors.TypeStale) {
				// A concurrent sweep or acknowledgement got there first.
				continue
			}
			return fired, err
		}
		fired++
		s.publishImpactEvent(ctx, change, imp, EventImpactAutoConfirmed)
		s.log.Info("impact auto-confirmed",
			"change_id", change.ID,
			"component_id", imp.ComponentID,
			"contributor_id", imp.ContributorID)
	}
	return fired, nil
}

// Acknowledge is the plain "looks good" confirmation: waiting -> confirmed.
func (s *Service) Acknowledge(ctx context.Context, key models.ImpactKey, userID string) (*models.Impact, error) {
	return s.transition(ctx, key, userID, models.AckWaiting, models.AckConfirmed, nil)
}

// StartAdjusting marks that the contributor needs to change something on
// their side before confirming: waiting -> adjusting.
func (s *Service) StartAdjusting(ctx context.Context, key models.ImpactKey, userID string) (*models.Impact, error) {
	return s.transition(ctx, key, userID, models.AckWaiting, models.AckAdjusting, nil)
}

// CancelAdjusting backs out of the adjusting substate. The auto-confirm
// deadline, if any, keeps ticking.
func (s *Service) CancelAdjusting(ctx context.Context, key models.ImpactKey, userID string) (*models.Impact, error) {
	return s.transition(ctx, key, userID, models.AckAdjusting, models.AckWaiting, nil)
}

// ConfirmWithNote finishes the adjusting flow: adjusting -> confirmed,
// persisting the note for the author. The note is metadata on the
// confirmation, not a distinct terminal state.
func (s *Service) ConfirmWithNote(ctx context.Context, key models.ImpactKey, userID, note string) (*models.Impact, error) {
	if note == "" {
		return nil, errors.ValidationErrorf("confirm-with-note requires a note")
	}
	return s.transition(ctx, key, userID, models.AckAdjusting, models.AckConfirmed, &note)
}

// Dismiss marks an llm-detected impact as not applicable:
// waiting -> dismissed. Parser-detected impacts cannot be dismissed by
// the contributor; the owner or author clears them via RequestRevisions.
func (s *Service) Dismiss(ctx context.Context, key models.ImpactKey, userID string) (*models.Impact, error) {
	return s.transition(ctx, key, userID, models.AckWaiting, models.AckDismissed, nil)
}

func (s *Service) transition(ctx context.Context, key models.ImpactKey, userID string, expected, next models.AckStatus, note *string) (*models.Impact, error) {
	change, err := s.store.GetChange(ctx, key.ChangeID)
	if err != nil {
		return nil, err
	}
	if change.Status.Terminal() {
		return nil, errors.InvalidTransitionf("change %s is %s, impacts are immutable", change.ID, change.Status)
	}
	imp, err := s.store.GetImpact(ctx, key)
	if err != nil {
		return nil, err
	}
	if userID != "" && userID != key.ContributorID {
		return nil, errors.InvalidTransitionf("impact belongs to another contributor")
	}
	if err := ValidateTransition(expected, next, imp.Method); err != nil {
		return nil, err
	}
	// Validate against what we just read too, so the caller gets
	// InvalidTransition for an impossible move and StaleState only for a
	// genuine race.
	if imp.AckStatus != expected {
		if err := ValidateTransition(imp.AckStatus, next, imp.Method); err != nil {
			return nil, err
		}
	}

	update := storage.ImpactUpdate{Note: note}
	if next.CountsAsConfirmed() {
		confirmedAt := s.now()
		update.ConfirmedAt = &confirmedAt
	}
	updated, err := s.store.TransitionImpact(ctx, key, expected, next, update)
	if err != nil {
		return nil, err
	}

	switch next {
	case models.AckConfirmed:
		s.publishImpactEvent(ctx, change, updated, EventImpactAcknowledged)
		s.notifyAuthor(ctx, change, "change", "Impact confirmed", updated.Note)
	case models.AckDismissed:
		s.publishImpactEvent(ctx, change, updated, EventImpactDismissed)
		s.notifyAuthor(ctx, change, "alert", "Impact dismissed as not affected", "")
	}

	s.log.Info("impact transition",
		"change_id", key.ChangeID,
		"component_id", key.ComponentID,
		"contributor_id", key.ContributorID,
		"from", expected, "to", next)
	return updated, nil
}

// Gate evaluates the merge gate for a change, post-sweep. Pure policy on
// top of current state; does not mutate the change.
func (s *Service) Gate(ctx context.Context, changeID string) (bool, string, error) {
	change, impacts, err := s.GetImpactSet(ctx, changeID)
	if err != nil {
		return false, "", err
	}
	ok, reason := CanMerge(change.StrictnessMode, change.CIStatus, impacts)
	return ok, reason, nil
}

// Approve merges the change. The gate evaluator runs here, server-side,
// regardless of what any client believed when it rendered its button;
// this is the authoritative check that closes the race window between
// page load and merge click.
func (s *Service) Approve(ctx context.Context, changeID, userID string) (*models.Change, error) {
	change, impacts, err := s.GetImpactSet(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if change.Status != models.ChangeInReview {
		return nil, errors.InvalidTransitionf("change %s is %s, only in_review changes can be approved", changeID, change.Status)
	}
	project, err := s.store.GetProject(ctx, change.ProjectID)
	if err != nil {
		return nil, err
	}
	if userID != project.OwnerID && userID != change.AuthorID {
		return nil, errors.New(errors.TypePolicy, "only the project owner or change author can merge")
	}

	ok, reason := CanMerge(change.StrictnessMode, change.CIStatus, impacts)
	if !ok {
		return nil, errors.PolicyViolation(reason)
	}

	resolvedAt := s.now()
	if err := s.store.TransitionChange(ctx, changeID, models.ChangeInReview, models.ChangeApproved, &resolvedAt); err != nil {
		return nil, err
	}
	change.Status = models.ChangeApproved
	change.ResolvedAt = &resolvedAt

	s.settleComponents(ctx, change, impacts)
	for _, uid := range s.participants(change, impacts) {
		s.publish(ctx, uid, EventMergeGateMet, map[string]interface{}{
			"change_id":  change.ID,
			"project_id": change.ProjectID,
			"reason":     reason,
		})
	}
	s.notifyAuthor(ctx, change, "approved", "Change merged", reason)

	s.log.Info("change approved", "change_id", changeID, "reason", reason)
	return change, nil
}

// Reject terminates the change; impacts become immutable.
func (s *Service) Reject(ctx context.Context, changeID, userID string) (*models.Change, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, change.ProjectID)
	if err != nil {
		return nil, err
	}
	if userID != project.OwnerID {
		return nil, errors.New(errors.TypePolicy, "only the project owner can reject")
	}
	resolvedAt := s.now()
	if err := s.store.TransitionChange(ctx, changeID, change.Status, models.ChangeRejected, &resolvedAt); err != nil {
		return nil, err
	}
	change.Status = models.ChangeRejected
	change.ResolvedAt = &resolvedAt
	impacts, _ := s.store.GetImpacts(ctx, changeID)
	s.settleComponents(ctx, change, impacts)
	s.notifyAuthor(ctx, change, "alert", "Change rejected", "")
	s.log.Info("change rejected", "change_id", changeID)
	return change, nil
}

// RequestRevisions sends the change back to analysis. This is the
// owner/author override path for parser-detected impacts: the next
// detector run replaces every row that is not already terminal.
func (s *Service) RequestRevisions(ctx context.Context, changeID, userID string) (*models.Change, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	impacts, err := s.store.GetImpacts(ctx, changeID)
	if err != nil {
		return nil, err
	}
	role := ResolveRole(change, impacts, userID)
	if role == models.RoleContributor {
		return nil, errors.New(errors.TypePolicy, "contributors cannot request revisions")
	}
	if err := s.store.TransitionChange(ctx, changeID, models.ChangeInReview, models.ChangePendingAnalysis, nil); err != nil {
		return nil, err
	}
	change.Status = models.ChangePendingAnalysis
	s.publish(ctx, change.AuthorID, EventRevisionsRequested, map[string]interface{}{
		"change_id":  change.ID,
		"project_id": change.ProjectID,
	})
	s.notifyAuthor(ctx, change, "alert", "Revisions requested", "")
	s.log.Info("revisions requested", "change_id", changeID, "by", userID)
	return change, nil
}

// Nudge lets the author poke a contributor who is still waiting.
// Rate limited per author per change so it stays a poke.
func (s *Service) Nudge(ctx context.Context, changeID, authorID, contributorID string) error {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return err
	}
	if authorID != change.AuthorID {
		return errors.New(errors.TypePolicy, "only the change author can nudge")
	}
	if !s.nudgeLimiter(changeID, authorID).Allow() {
		return errors.ValidationErrorf("nudge rate limit exceeded, try again shortly")
	}
	impacts, err := s.store.GetImpacts(ctx, changeID)
	if err != nil {
		return err
	}
	for _, imp := range impacts {
		if imp.ContributorID != contributorID {
			continue
		}
		if imp.AckStatus != models.AckWaiting && imp.AckStatus != models.AckAdjusting {
			return errors.InvalidTransitionf("contributor already responded (%s)", imp.AckStatus)
		}
		s.publishImpactEvent(ctx, change, imp, EventImpactNudged)
		s.notify(ctx, contributorID, "alert", "Reminder: confirm the impact on your component",
			change.Title, map[string]string{"change_id": change.ID})
		return nil
	}
	return errors.UnknownImpact(changeID, "", contributorID)
}

// ResolveUserRole is the service-level entry for role resolution, used
// by the HTTP layer to pick the view variant.
func (s *Service) ResolveUserRole(ctx context.Context, changeID, userID string) (models.Role, error) {
	change, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return "", err
	}
	impacts, err := s.store.GetImpacts(ctx, changeID)
	if err != nil {
		return "", err
	}
	return ResolveRole(change, impacts, userID), nil
}

// SetCIStatus records a CI feed update for a change.
func (s *Service) SetCIStatus(ctx context.Context, changeID string, status models.CIStatus) error {
	switch status {
	case models.CIRunning, models.CIPassed, models.CIFailed:
	default:
		return errors.ValidationErrorf("unknown ci status %q", status)
	}
	return s.store.SetCIStatus(ctx, changeID, status)
}

func (s *Service) autoConfirmWindow(ctx context.Context, projectID string) time.Duration {
	project, err := s.store.GetProject(ctx, projectID)
	if err == nil && project.AutoConfirmWindow > 0 {
		return project.AutoConfirmWindow
	}
	return s.cfg.AutoConfirmWindow
}

func (s *Service) nudgeLimiter(changeID, authorID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := changeID + ":" + authorID
	lim, ok := s.nudgers[key]
	if !ok {
		perMinute := s.cfg.NudgesPerMinute
		if perMinute <= 0 {
			perMinute = 1
		}
		burst := s.cfg.NudgeBurst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(perMinute/60.0), burst)
		s.nudgers[key] = lim
	}
	return lim
}

// settleComponents returns affected components to stable once the change
// reaches a terminal state and no other logic holds them flagged.
func (s *Service) settleComponents(ctx context.Context, change *models.Change, impacts []*models.Impact) {
	seen := map[string]bool{}
	if change.SourceComponentID != "" {
		seen[change.SourceComponentID] = true
	}
	for _, imp := range impacts {
		seen[imp.ComponentID] = true
	}
	for componentID := range seen {
		if err := s.store.SetComponentStatus(ctx, componentID, models.ComponentStable); err != nil {
			s.log.Warn("failed to settle component", "component_id", componentID, "error", err)
		}
	}
}

func (s *Service) participants(change *models.Change, impacts []*models.Impact) []string {
	seen := map[string]bool{change.AuthorID: true}
	out := []string{change.AuthorID}
	for _, imp := range impacts {
		if !seen[imp.ContributorID] {
			seen[imp.ContributorID] = true
			out = append(out, imp.ContributorID)
		}
	}
	return out
}

func (s *Service) publishImpactEvent(ctx context.Context, change *models.Change, imp *models.Impact, event string) {
	data := map[string]interface{}{
		"change_id":      change.ID,
		"project_id":     change.ProjectID,
		"component_id":   imp.ComponentID,
		"contributor_id": imp.ContributorID,
	}
	recipients := []string{change.AuthorID}
	if event == EventImpactNudged {
		recipients = []string{imp.ContributorID}
	}
	for _, uid := range recipients {
		s.publish(ctx, uid, event, data)
	}
}

func (s *Service) publish(ctx context.Context, userID, event string, data map[string]interface{}) {
	if err := s.sink.Publish(ctx, userID, event, data); err != nil {
		// Event delivery is best-effort; the store is the source of truth.
		s.log.Warn("event publish failed", "event", event, "user_id", userID, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, userID, ntype, title, body string, meta map[string]string) {
	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      ntype,
		Title:     title,
		Body:      body,
		Meta:      meta,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.log.Warn("failed to persist notification", "user_id", userID, "error", err)
	}
}

func (s *Service) notifyAuthor(ctx context.Context, change *models.Change, ntype, title, body string) {
	s.notify(ctx, change.AuthorID, ntype, title, body, map[string]string{
		"change_id":  change.ID,
		"project_id": change.ProjectID,
	})
}
