package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/errors"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/models"
)

// SQLiteStore implements Store on SQLite for local/development use
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.TypeDatabase, "create database directory")
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.DatabaseError(err, "connect to sqlite")
	}

	// WAL mode for concurrent readers during sweep
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if logger == nil {
		logger = logrus.New()
	}
	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		strictness_mode TEXT NOT NULL DEFAULT 'visibility',
		auto_confirm_window_seconds INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS components (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'stable',
		file_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS component_contributors (
		component_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'contributor',
		granted_at DATETIME NOT NULL,
		PRIMARY KEY (component_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS change_requests (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		source_component_id TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		ci_status TEXT NOT NULL DEFAULT 'running',
		strictness_mode TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		resolved_at DATETIME,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS change_impacts (
		id TEXT NOT NULL,
		change_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		contributor_id TEXT NOT NULL,
		detection_method TEXT NOT NULL,
		confidence TEXT NOT NULL DEFAULT 'high',
		ack_status TEXT NOT NULL DEFAULT 'waiting',
		note TEXT NOT NULL DEFAULT '',
		affected_lines TEXT,
		auto_confirm_at DATETIME,
		confirmed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (change_id, component_id, contributor_id),
		FOREIGN KEY (change_id) REFERENCES change_requests(id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		meta TEXT,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.DatabaseError(err, "init schema")
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.AvatarURL, user.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err, "create user")
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, password_hash, display_name, avatar_url, created_at
		FROM users WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown user")
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get user")
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT id, email, password_hash, display_name, avatar_url, created_at
		FROM users WHERE email = ?`, email)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown user")
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get user by email")
	}
	return &u, nil
}

// projectRow maps the projects table, window stored in seconds
type projectRow struct {
	ID            string    `db:"id"`
	OwnerID       string    `db:"owner_id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	Strictness    string    `db:"strictness_mode"`
	WindowSeconds int64     `db:"auto_confirm_window_seconds"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *projectRow) toModel() *models.Project {
	return &models.Project{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Name:              r.Name,
		Description:       r.Description,
		StrictnessMode:    models.StrictnessMode(r.Strictness),
		AutoConfirmWindow: time.Duration(r.WindowSeconds) * time.Second,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (s *SQLiteStore) CreateProject(ctx context.Context, project *models.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner_id, name, description, strictness_mode, auto_confirm_window_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.OwnerID, project.Name, project.Description,
		project.StrictnessMode, int64(project.AutoConfirmWindow/time.Second),
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return errors.DatabaseError(err, "create project")
	}
	return nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var r projectRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM projects WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown project").WithContext("project_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get project")
	}
	return r.toModel(), nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context, ownerID string) ([]*models.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM projects WHERE (? = '' OR owner_id = ?) ORDER BY created_at`, ownerID, ownerID)
	if err != nil {
		return nil, errors.DatabaseError(err, "list projects")
	}
	out := make([]*models.Project, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *SQLiteStore) UpdateProjectPolicy(ctx context.Context, id string, mode models.StrictnessMode, window time.Duration) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET strictness_mode = ?,
		    auto_confirm_window_seconds = CASE WHEN ? > 0 THEN ? ELSE auto_confirm_window_seconds END,
		    updated_at = ?
		WHERE id = ?`,
		mode, int64(window/time.Second), int64(window/time.Second), time.Now().UTC(), id)
	if err != nil {
		return errors.DatabaseError(err, "update project policy")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.TypeNotFound, "unknown project").WithContext("project_id", id)
	}
	return nil
}

func (s *SQLiteStore) CreateComponent(ctx context.Context, component *models.Component) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO components (id, project_id, name, status, file_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		component.ID, component.ProjectID, component.Name, component.Status,
		component.FileCount, component.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err, "create component")
	}
	return nil
}

type componentRow struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	FileCount int       `db:"file_count"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *componentRow) toModel() *models.Component {
	return &models.Component{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		Status:    models.ComponentStatus(r.Status),
		FileCount: r.FileCount,
		CreatedAt: r.CreatedAt,
	}
}

func (s *SQLiteStore) GetComponent(ctx context.Context, id string) (*models.Component, error) {
	var r componentRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM components WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.TypeNotFound, "unknown component").WithContext("component_id", id)
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get component")
	}
	c := r.toModel()
	contributors, err := s.ListContributors(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, cc := range contributors {
		c.Contributors = append(c.Contributors, *cc)
	}
	return c, nil
}

func (s *SQLiteStore) ListComponents(ctx context.Context, projectID string) ([]*models.Component, error) {
	var rows []componentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM components WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, errors.DatabaseError(err, "list components")
	}
	out := make([]*models.Component, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *SQLiteStore) SetComponentStatus(ctx context.Context, id string, status models.ComponentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE components SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return errors.DatabaseError(err, "set component status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.TypeNotFound, "unknown component").WithContext("component_id", id)
	}
	return nil
}

func (s *SQLiteStore) AddContributor(ctx context.Context, c *models.ComponentContributor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO component_contributors (component_id, user_id, role, granted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (component_id, user_id) DO UPDATE SET role = excluded.role`,
		c.ComponentID, c.UserID, c.Role, c.GrantedAt)
	if err != nil {
		return errors.DatabaseError(err, "add contributor")
	}
	return nil
}

func (s *SQLiteStore) ListContributors(ctx context.Context, componentID string) ([]*models.ComponentContributor, error) {
	var rows []models.ComponentContributor
	err := s.db.SelectContext(ctx, &rows, `
		SELECT component_id, user_id, role, granted_at
		FROM component_contributors WHERE component_id = ?`, componentID)
	if err != nil {
		return nil, errors.DatabaseError(err, "list contributors")
	}
	out := make([]*models.ComponentContributor, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

type changeRow struct {
	ID                string       `db:"id"`
	ProjectID         string       `db:"project_id"`
	SourceComponentID string       `db:"source_component_id"`
	AuthorID          string       `db:"author_id"`
	Title             string       `db:"title"`
	Description       string       `db:"description"`
	Status            string       `db:"status"`
	CIStatus          string       `db:"ci_status"`
	Strictness        string       `db:"strictness_mode"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
	ResolvedAt        sql.NullTime `db:"resolved_at"`
}

func (r *changeRow) toModel() *models.Change {
	c := &models.Change{
		ID:                r.ID,
		ProjectID:         r.ProjectID,
		SourceComponentID: r.SourceComponentID,
		AuthorID:          r.AuthorID,
		Title:             r.Title,
		Description:       r.Description,
		Status:            models.ChangeStatus(r.Status),
		CIStatus:          models.CIStatus(r.CIStatus),
		StrictnessMode:    models.StrictnessMode(r.Strictness),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.ResolvedAt.Valid {
		c.ResolvedAt = &r.ResolvedAt.Time
	}
	return c
}

func (s *SQLiteStore) CreateChange(ctx context.Context, change *models.Change) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO change_requests (id, project_id, source_component_id, author_id, title, description, status, ci_status, strictness_mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		change.ID, change.ProjectID, change.SourceComponentID, change.AuthorID,
		change.Title, change.Description, change.Status, change.CIStatus,
		change.StrictnessMode, change.CreatedAt, change.UpdatedAt)
	if err != nil {
		return errors.DatabaseError(err, "create change")
	}
	return nil
}

func (s *SQLiteStore) GetChange(ctx context.Context, id string) (*models.Change, error) {
	var r changeRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM change_requests WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.UnknownChange(id)
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get change")
	}
	return r.toModel(), nil
}

func (s *SQLiteStore) ListChanges(ctx context.Context, projectID string) ([]*models.Change, error) {
	var rows []changeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM change_requests WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, errors.DatabaseError(err, "list changes")
	}
	out := make([]*models.Change, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *SQLiteStore) TransitionChange(ctx context.Context, id string, expected, next models.ChangeStatus, resolvedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE change_requests
		SET status = ?, updated_at = ?, resolved_at = COALESCE(?, resolved_at)
		WHERE id = ? AND status = ?`,
		next, time.Now().UTC(), resolvedAt, id, expected)
	if err != nil {
		return errors.DatabaseError(err, "transition change")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetChange(ctx, id); err != nil {
			return err
		}
		return errors.StaleStatef("change %s is not %s", id, expected)
	}
	return nil
}

func (s *SQLiteStore) SetCIStatus(ctx context.Context, id string, status models.CIStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE change_requests SET ci_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return errors.DatabaseError(err, "set ci status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.UnknownChange(id)
	}
	return nil
}

func (s *SQLiteStore) UpsertImpacts(ctx context.Context, changeID string, rows []*models.Impact) error {
	if _, err := s.GetChange(ctx, changeID); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError(err, "begin upsert tx")
	}
	defer tx.Rollback()

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO change_impacts (id, change_id, component_id, contributor_id, detection_method, confidence, ack_status, note, affected_lines, auto_confirm_at, confirmed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 'waiting', '', ?, ?, NULL, ?, ?)
			ON CONFLICT (change_id, component_id, contributor_id) DO UPDATE SET
				detection_method = excluded.detection_method,
				confidence = excluded.confidence,
				ack_status = 'waiting',
				note = '',
				affected_lines = excluded.affected_lines,
				auto_confirm_at = COALESCE(change_impacts.auto_confirm_at, excluded.auto_confirm_at),
				updated_at = excluded.updated_at
			WHERE change_impacts.ack_status IN ('waiting', 'adjusting')`,
			row.ID, row.ChangeID, row.ComponentID, row.ContributorID,
			row.Method, row.Confidence, nullableJSON(row.AffectedLines), nullableTime(row.AutoConfirmAt),
			row.CreatedAt, row.UpdatedAt)
		if err != nil {
			return errors.DatabaseError(err, "upsert impact")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError(err, "commit upsert tx")
	}
	return nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

type impactRow struct {
	ID            string         `db:"id"`
	ChangeID      string         `db:"change_id"`
	ComponentID   string         `db:"component_id"`
	ContributorID string         `db:"contributor_id"`
	Method        string         `db:"detection_method"`
	Confidence    string         `db:"confidence"`
	AckStatus     string         `db:"ack_status"`
	Note          string         `db:"note"`
	AffectedLines sql.NullString `db:"affected_lines"`
	AutoConfirmAt sql.NullTime   `db:"auto_confirm_at"`
	ConfirmedAt   sql.NullTime   `db:"confirmed_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *impactRow) toModel() *models.Impact {
	imp := &models.Impact{
		ID:            r.ID,
		ChangeID:      r.ChangeID,
		ComponentID:   r.ComponentID,
		ContributorID: r.ContributorID,
		Method:        models.DetectionMethod(r.Method),
		Confidence:    models.Confidence(r.Confidence),
		AckStatus:     models.AckStatus(r.AckStatus),
		Note:          r.Note,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.AffectedLines.Valid {
		imp.AffectedLines = json.RawMessage(r.AffectedLines.String)
	}
	if r.AutoConfirmAt.Valid {
		imp.AutoConfirmAt = &r.AutoConfirmAt.Time
	}
	if r.ConfirmedAt.Valid {
		imp.ConfirmedAt = &r.ConfirmedAt.Time
	}
	return imp
}

func (s *SQLiteStore) GetImpacts(ctx context.Context, changeID string) ([]*models.Impact, error) {
	var rows []impactRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM change_impacts WHERE change_id = ? ORDER BY component_id, contributor_id`, changeID)
	if err != nil {
		return nil, errors.DatabaseError(err, "list impacts")
	}
	out := make([]*models.Impact, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *SQLiteStore) GetImpact(ctx context.Context, key models.ImpactKey) (*models.Impact, error) {
	var r impactRow
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM change_impacts WHERE change_id = ? AND component_id = ? AND contributor_id = ?`,
		key.ChangeID, key.ComponentID, key.ContributorID)
	if err == sql.ErrNoRows {
		return nil, errors.UnknownImpact(key.ChangeID, key.ComponentID, key.ContributorID)
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get impact")
	}
	return r.toModel(), nil
}

func (s *SQLiteStore) CountImpactsByStatus(ctx context.Context, changeID string) (map[models.AckStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ack_status, COUNT(*) FROM change_impacts WHERE change_id = ? GROUP BY ack_status`, changeID)
	if err != nil {
		return nil, errors.DatabaseError(err, "count impacts")
	}
	defer rows.Close()

	counts := make(map[models.AckStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.DatabaseError(err, "scan count")
		}
		counts[models.AckStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) TransitionImpact(ctx context.Context, key models.ImpactKey, expected, next models.AckStatus, update ImpactUpdate) (*models.Impact, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE change_impacts
		SET ack_status = ?,
		    note = COALESCE(?, note),
		    confirmed_at = COALESCE(?, confirmed_at),
		    updated_at = ?
		WHERE change_id = ? AND component_id = ? AND contributor_id = ? AND ack_status = ?`,
		next, update.Note, nullableTime(update.ConfirmedAt), time.Now().UTC(),
		key.ChangeID, key.ComponentID, key.ContributorID, expected)
	if err != nil {
		return nil, errors.DatabaseError(err, "transition impact")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetImpact(ctx, key); err != nil {
			return nil, err
		}
		return nil, errors.StaleStatef("impact is not %s", expected)
	}
	return s.GetImpact(ctx, key)
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	meta, err := json.Marshal(n.Meta)
	if err != nil {
		return errors.InternalErrorf("marshal notification meta: %v", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, meta, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, string(meta), n.IsRead, n.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err, "create notification")
	}
	return nil
}

type notificationRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Type      string         `db:"type"`
	Title     string         `db:"title"`
	Body      string         `db:"body"`
	Meta      sql.NullString `db:"meta"`
	IsRead    bool           `db:"is_read"`
	CreatedAt time.Time      `db:"created_at"`
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errors.DatabaseError(err, "list notifications")
	}
	out := make([]*models.Notification, 0, len(rows))
	for i := range rows {
		r := rows[i]
		n := &models.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			Type:      r.Type,
			Title:     r.Title,
			Body:      r.Body,
			IsRead:    r.IsRead,
			CreatedAt: r.CreatedAt,
		}
		if r.Meta.Valid && r.Meta.String != "" && r.Meta.String != "null" {
			if err := json.Unmarshal([]byte(r.Meta.String), &n.Meta); err != nil {
				return nil, errors.InternalErrorf("unmarshal notification meta: %v", err)
			}
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *SQLiteStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string, all bool) error {
	if all {
		_, err := s.db.ExecContext(ctx,
			`UPDATE notifications SET is_read = 1 WHERE user_id = ?`, userID)
		if err != nil {
			return errors.DatabaseError(err, "mark notifications read")
		}
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return errors.InternalErrorf("build mark-read query: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return errors.DatabaseError(err, "mark notifications read")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Debug("closing sqlite store")
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
