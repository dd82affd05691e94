// Package postgres implements mask.SessionStore using PostgreSQL via pgx.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mask "github.com/maskagent/mask"
)

const (
	defaultProjectColor = "#7c3aed"
	defaultProjectIcon  = "folder"
)

// Store implements mask.SessionStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ mask.SessionStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates all required tables and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			context_summary TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL,
			icon TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_project_idx ON sessions(project_id)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres init: %w", err)
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, description, context_summary, color, icon, created_at)
		 VALUES ($1, $2, $3, '', $4, $5, $6)`,
		p.ID, p.Name, p.Description, p.Color, p.Icon, p.CreatedAt)
	if err != nil {
		return mask.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (mask.Project, error) {
	var p mask.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, context_summary, color, icon, created_at
		 FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.ContextSummary, &p.Color, &p.Icon, &p.CreatedAt)
	if err != nil {
		return mask.Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]mask.Project, error) {
	rows, err := s.pool.Query(ctx,
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
	_, err := s.pool.Exec(ctx,
		`UPDATE projects SET context_summary = $2 WHERE id = $1`, id, contextSummary)
	if err != nil {
		return fmt.Errorf("update project context: %w", err)
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, project_id, title, created_at) VALUES ($1, NULLIF($2, ''), $3, $4)`,
		sess.ID, sess.ProjectID, sess.Title, sess.CreatedAt)
	if err != nil {
		return mask.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (mask.Session, error) {
	var sess mask.Session
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(project_id, ''), title, created_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.ProjectID, &sess.Title, &sess.CreatedAt)
	if err != nil {
		return mask.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]mask.Session, error) {
	rows, err := s.pool.Query(ctx,
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
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

func (s *Store) AssignSessionToProject(ctx context.Context, id, projectID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET project_id = NULLIF($2, '') WHERE id = $1`, id, projectID)
	if err != nil {
		return fmt.Errorf("assign session: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
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
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (session_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		m.SessionID, m.Role, m.Content, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return mask.StoredMessage{}, fmt.Errorf("add message: %w", err)
	}
	return m, nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]mask.StoredMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages WHERE session_id = $1 ORDER BY id`, sessionID)
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
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		now := time.Now().Unix()
		for _, m := range messages {
			if _, err := tx.Exec(ctx,
				`INSERT INTO messages (session_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
				sessionID, m.Role, m.Content, now); err != nil {
				return err
			}
		}
		return nil
	})
}
