// Package sqlite implements mask.SessionStore on an embedded SQLite database
// via the pure-Go modernc.org/sqlite driver. Suited to single-process
// deployments that do not want a PostgreSQL dependency.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	mask "github.com/maskagent/mask"
)

const (
	defaultProjectColor = "#7c3aed"
	defaultProjectIcon  = "folder"
)

// Store implements mask.SessionStore backed by a SQLite file.
type Store struct {
	db *sql.DB
}

var _ mask.SessionStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and initializes the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite tolerates one writer at a time; serializing through one
	// connection avoids SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			context_summary TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL,
			icon TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT,
			title TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_project_idx ON sessions(project_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite init: %w", err)
		}
	}
	return nil
}

// --- Projects ---

func (s *Store) CreateProject(ctx context.Context, name, description string) (mask.Project, error) {
	p := mask.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Color:       defaultProjectColor,
		Icon:        defaultProjectIcon,
		CreatedAt:   time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, context_summary, color, icon, created_at)
		 VALUES (?, ?, ?, '', ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Color, p.Icon, p.CreatedAt)
	if err != nil {
		return mask.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (mask.Project, error) {
	var p mask.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, context_summary, color, icon, created_at
		 FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.ContextSummary, &p.Color, &p.Icon, &p.CreatedAt)
	if err != nil {
		return mask.Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]mask.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, context_summary, color, icon, created_at
		 FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []mask.Project
	for rows.Next() {
		var p mask.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ContextSummary, &p.Color, &p.Icon, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) UpdateProjectContext(ctx context.Context, id, contextSummary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET context_summary = ? WHERE id = ?`, contextSummary, id)
	if err != nil {
		return fmt.Errorf("update project context: %w", err)
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET project_id = NULL WHERE project_id = ?`, id)
	if err != nil {
		return fmt.Errorf("detach sessions: %w", err)
	}
	return nil
}

// --- Sessions ---

func (s *Store) CreateSession(ctx context.Context, title, projectID string) (mask.Session, error) {
	sess := mask.Session{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		CreatedAt: time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_id, title, created_at) VALUES (?, NULLIF(?, ''), ?, ?)`,
		sess.ID, sess.ProjectID, sess.Title, sess.CreatedAt)
	if err != nil {
		return mask.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (mask.Session, error) {
	var sess mask.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(project_id, ''), title, created_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.ProjectID, &sess.Title, &sess.CreatedAt)
	if err != nil {
		return mask.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]mask.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(project_id, ''), title, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []mask.Session
	for rows.Next() {
		var sess mask.Session
		if err := rows.Scan(&sess.ID, &sess.ProjectID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) RenameSession(ctx context.Context, id, title string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET title = ? WHERE id = ?`, title, id); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

func (s *Store) AssignSessionToProject(ctx context.Context, id, projectID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET project_id = NULLIF(?, '') WHERE id = ?`, projectID, id)
	if err != nil {
		return fmt.Errorf("assign session: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- Messages ---

func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string) (mask.StoredMessage, error) {
	m := mask.StoredMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		m.SessionID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return mask.StoredMessage{}, fmt.Errorf("add message: %w", err)
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return mask.StoredMessage{}, err
	}
	return m, nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]mask.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []mask.StoredMessage
	for rows.Next() {
		var m mask.StoredMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ReplaceMessages swaps a session's history for a new one in a single
// transaction, used after summarization collapses a long history.
func (s *Store) ReplaceMessages(ctx context.Context, sessionID string, messages []mask.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, m := range messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, m.Role, m.Content, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
