package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// PostgresStore implements Store on a pgx connection pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.ConfigError("postgres dsn missing")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.DatabaseError(err, "postgres ping failed")
	}

	store := &PostgresStore{
		pool:   pool,
		logger: slog.Default().With("component", "postgres"),
	}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	store.logger.Info("postgres store ready")
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		strictness_mode TEXT NOT NULL DEFAULT 'visibility',
		auto_confirm_window_seconds BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS components (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'stable',
		file_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_components_project ON components(project_id);

	CREATE TABLE IF NOT EXISTS component_contributors (
		component_id TEXT NOT NULL REFERENCES components(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL DEFAULT 'contributor',
		granted_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (component_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS change_requests (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		source_component_id TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		ci_status TEXT NOT NULL DEFAULT 'running',
		strictness_mode TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_changes_project ON change_requests(project_id);

	CREATE TABLE IF NOT EXISTS change_impacts (
		id TEXT NOT NULL,
		change_id TEXT NOT NULL REFERENCES change_requests(id) ON DELETE CASCADE,
		component_id TEXT NOT NULL,
		contributor_id TEXT NOT NULL,
		detection_method TEXT NOT NULL,
		confidence TEXT NOT NULL DEFAULT 'high',
		ack_status TEXT NOT NULL DEFAULT 'waiting',
		note TEXT NOT NULL DEFAULT '',
		affected_lines JSONB,
		auto_confirm_at TIMESTAMPTZ,
		confirmed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (change_id, component_id, contributor_id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		meta JSONB,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.DatabaseError(err, "failed to initialize schema")
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.AvatarURL, user.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to create user")
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, avatar_url, created_at
		FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, avatar_url, created_at
		FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown user")
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to scan user")
	}
	return &u, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, owner_id, name, description, strictness_mode, auto_confirm_window_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		project.ID, project.OwnerID, project.Name, project.Description,
		project.StrictnessMode, int64(project.AutoConfirmWindow/time.Second),
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to create project")
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	var windowSeconds int64
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, strictness_mode, auto_confirm_window_seconds, created_at, updated_at
		FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.StrictnessMode, &windowSeconds, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown project").WithContext("project_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to get project")
	}
	p.AutoConfirmWindow = time.Duration(windowSeconds) * time.Second
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, strictness_mode, auto_confirm_window_seconds, created_at, updated_at
		FROM projects WHERE ($1 = '' OR owner_id = $1) ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list projects")
	}
	defer rows.Close()

	var out []*models.Project
	for rows.Next() {
		var p models.Project
		var windowSeconds int64
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.StrictnessMode, &windowSeconds, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.DatabaseError(err, "failed to scan project")
		}
		p.AutoConfirmWindow = time.Duration(windowSeconds) * time.Second
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateProjectPolicy(ctx context.Context, id string, mode models.StrictnessMode, window time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET strictness_mode = $2,
		    auto_confirm_window_seconds = CASE WHEN $3 > 0 THEN $3 ELSE auto_confirm_window_seconds END,
		    updated_at = NOW()
		WHERE id = $1`,
		id, mode, int64(window/time.Second))
	if err != nil {
		return errors.DatabaseError(err, "failed to update project policy")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.TypeNotFound, "unknown project").WithContext("project_id", id)
	}
	return nil
}

func (s *PostgresStore) CreateComponent(ctx context.Context, component *models.Component) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO components (id, project_id, name, status, file_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		component.ID, component.ProjectID, component.Name, component.Status, component.FileCount, component.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to create component")
	}
	return nil
}

func (s *PostgresStore) GetComponent(ctx context.Context, id string) (*models.Component, error) {
	var c models.Component
	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, name, status, file_count, created_at
		FROM components WHERE id = $1`, id).
		Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &c.FileCount, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown component").WithContext("component_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to get component")
	}
	contributors, err := s.ListContributors(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, cc := range contributors {
		c.Contributors = append(c.Contributors, *cc)
	}
	return &c, nil
}

func (s *PostgresStore) ListComponents(ctx context.Context, projectID string) ([]*models.Component, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, name, status, file_count, created_at
		FROM components WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list components")
	}
	defer rows.Close()

	var out []*models.Component
	for rows.Next() {
		var c models.Component
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &c.FileCount, &c.CreatedAt); err != nil {
			return nil, errors.DatabaseError(err, "failed to scan component")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetComponentStatus(ctx context.Context, id string, status models.ComponentStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE components SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return errors.DatabaseError(err, "failed to set component status")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.TypeNotFound, "unknown component").WithContext("component_id", id)
	}
	return nil
}

func (s *PostgresStore) AddContributor(ctx context.Context, c *models.ComponentContributor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO component_contributors (component_id, user_id, role, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (component_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		c.ComponentID, c.UserID, c.Role, c.GrantedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to add contributor")
	}
	return nil
}

func (s *PostgresStore) ListContributors(ctx context.Context, componentID string) ([]*models.ComponentContributor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT component_id, user_id, role, granted_at
		FROM component_contributors WHERE component_id = $1`, componentID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list contributors")
	}
	defer rows.Close()

	var out []*models.ComponentContributor
	for rows.Next() {
		var c models.ComponentContributor
		if err := rows.Scan(&c.ComponentID, &c.UserID, &c.Role, &c.GrantedAt); err != nil {
			return nil, errors.DatabaseError(err, "failed to scan contributor")
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateChange(ctx context.Context, change *models.Change) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO change_requests (id, project_id, source_component_id, author_id, title, description, status, ci_status, strictness_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		change.ID, change.ProjectID, change.SourceComponentID, change.AuthorID,
		change.Title, change.Description, change.Status, change.CIStatus,
		change.StrictnessMode, change.CreatedAt, change.UpdatedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to create change")
	}
	return nil
}

const changeColumns = `id, project_id, source_component_id, author_id, title, description, status, ci_status, strictness_mode, created_at, updated_at, resolved_at`

func (s *PostgresStore) scanChange(row pgx.Row) (*models.Change, error) {
	var c models.Change
	var resolvedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ProjectID, &c.SourceComponentID, &c.AuthorID,
		&c.Title, &c.Description, &c.Status, &c.CIStatus, &c.StrictnessMode,
		&c.CreatedAt, &c.UpdatedAt, &resolvedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to scan change")
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return &c, nil
}

func (s *PostgresStore) GetChange(ctx context.Context, id string) (*models.Change, error) {
	c, err := s.scanChange(s.pool.QueryRow(ctx,
		`SELECT `+changeColumns+` FROM change_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, errors.TypeNotFound) {
			return nil, errors.UnknownChange(id)
		}
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListChanges(ctx context.Context, projectID string) ([]*models.Change, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+changeColumns+` FROM change_requests WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list changes")
	}
	defer rows.Close()

	var out []*models.Change
	for rows.Next() {
		c, err := s.scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TransitionChange(ctx context.Context, id string, expected, next models.ChangeStatus, resolvedAt *time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE change_requests
		SET status = $3, updated_at = NOW(), resolved_at = COALESCE($4, resolved_at)
		WHERE id = $1 AND status = $2`,
		id, expected, next, resolvedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to transition change")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing change from a lost CAS race.
		if _, err := s.GetChange(ctx, id); err != nil {
			return err
		}
		return errors.StaleStatef("change %s is not %s", id, expected)
	}
	return nil
}

func (s *PostgresStore) SetCIStatus(ctx context.Context, id string, status models.CIStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE change_requests SET ci_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return errors.DatabaseError(err, "failed to set ci status")
	}
	if tag.RowsAffected() == 0 {
		return errors.UnknownChange(id)
	}
	return nil
}

func (s *PostgresStore) UpsertImpacts(ctx context.Context, changeID string, rows []*models.Impact) error {
	if _, err := s.GetChange(ctx, changeID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		// Conditional upsert: terminal rows win over a late detector
		// batch; replaced rows keep their original clock and deadline.
		batch.Queue(`
			INSERT INTO change_impacts (id, change_id, component_id, contributor_id, detection_method, confidence, ack_status, note, affected_lines, auto_confirm_at, confirmed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'waiting', '', $7, $8, NULL, $9, $10)
			ON CONFLICT (change_id, component_id, contributor_id) DO UPDATE SET
				detection_method = EXCLUDED.detection_method,
				confidence = EXCLUDED.confidence,
				ack_status = 'waiting',
				note = '',
				affected_lines = EXCLUDED.affected_lines,
				auto_confirm_at = COALESCE(change_impacts.auto_confirm_at, EXCLUDED.auto_confirm_at),
				updated_at = EXCLUDED.updated_at
			WHERE change_impacts.ack_status IN ('waiting', 'adjusting')`,
			row.ID, row.ChangeID, row.ComponentID, row.ContributorID,
			row.Method, row.Confidence, row.AffectedLines, row.AutoConfirmAt,
			row.CreatedAt, row.UpdatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return errors.DatabaseError(err, "failed to upsert impacts")
		}
	}
	return nil
}

const impactColumns = `id, change_id, component_id, contributor_id, detection_method, confidence, ack_status, note, affected_lines, auto_confirm_at, confirmed_at, created_at, updated_at`

func (s *PostgresStore) scanImpact(row pgx.Row) (*models.Impact, error) {
	var imp models.Impact
	var autoConfirmAt, confirmedAt sql.NullTime
	err := row.Scan(&imp.ID, &imp.ChangeID, &imp.ComponentID, &imp.ContributorID,
		&imp.Method, &imp.Confidence, &imp.AckStatus, &imp.Note, &imp.AffectedLines,
		&autoConfirmAt, &confirmedAt, &imp.CreatedAt, &imp.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to scan impact")
	}
	if autoConfirmAt.Valid {
		imp.AutoConfirmAt = &autoConfirmAt.Time
	}
	if confirmedAt.Valid {
		imp.ConfirmedAt = &confirmedAt.Time
	}
	return &imp, nil
}

func (s *PostgresStore) GetImpacts(ctx context.Context, changeID string) ([]*models.Impact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+impactColumns+` FROM change_impacts WHERE change_id = $1 ORDER BY component_id, contributor_id`, changeID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list impacts")
	}
	defer rows.Close()

	var out []*models.Impact
	for rows.Next() {
		imp, err := s.scanImpact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetImpact(ctx context.Context, key models.ImpactKey) (*models.Impact, error) {
	imp, err := s.scanImpact(s.pool.QueryRow(ctx,
		`SELECT `+impactColumns+` FROM change_impacts WHERE change_id = $1 AND component_id = $2 AND contributor_id = $3`,
		key.ChangeID, key.ComponentID, key.ContributorID))
	if err != nil {
		if errors.Is(err, errors.TypeNotFound) {
			return nil, errors.UnknownImpact(key.ChangeID, key.ComponentID, key.ContributorID)
		}
		return nil, err
	}
	return imp, nil
}

func (s *PostgresStore) CountImpactsByStatus(ctx context.Context, changeID string) (map[models.AckStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ack_status, COUNT(*) FROM change_impacts WHERE change_id = $1 GROUP BY ack_status`, changeID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to count impacts")
	}
	defer rows.Close()

	counts := make(map[models.AckStatus]int)
	for rows.Next() {
		var status models.AckStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.DatabaseError(err, "failed to scan count")
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) TransitionImpact(ctx context.Context, key models.ImpactKey, expected, next models.AckStatus, update ImpactUpdate) (*models.Impact, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE change_impacts
		SET ack_status = $4,
		    note = COALESCE($5, note),
		    confirmed_at = COALESCE($6, confirmed_at),
		    updated_at = NOW()
		WHERE change_id = $1 AND component_id = $2 AND contributor_id = $3 AND ack_status = $7
		RETURNING `+impactColumns,
		key.ChangeID, key.ComponentID, key.ContributorID, next, update.Note, update.ConfirmedAt, expected)
	imp, err := s.scanImpact(row)
	if err != nil {
		if errors.Is(err, errors.TypeNotFound) {
			// No row matched: missing impact or a lost CAS race.
			if _, getErr := s.GetImpact(ctx, key); getErr != nil {
				return nil, getErr
			}
			return nil, errors.StaleStatef("impact is not %s", expected)
		}
		return nil, err
	}
	return imp, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	meta, err := json.Marshal(n.Meta)
	if err != nil {
		return errors.InternalErrorf("failed to marshal notification meta: %v", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, meta, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, meta, n.IsRead, n.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err, "failed to create notification")
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, body, meta, is_read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.DatabaseError(err, "failed to list notifications")
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		var meta []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &meta, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, errors.DatabaseError(err, "failed to scan notification")
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &n.Meta); err != nil {
				return nil, errors.InternalErrorf("failed to unmarshal notification meta: %v", err)
			}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string, all bool) error {
	var err error
	if all {
		_, err = s.pool.Exec(ctx,
			`UPDATE notifications SET is_read = TRUE WHERE user_id = $1`, userID)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	}
	if err != nil {
		return errors.DatabaseError(err, "failed to mark notifications read")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	s.logger.Info("postgres store closed")
	return nil
}

var _ Store = (*PostgresStore)(nil)
