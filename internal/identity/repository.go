package identity

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// SignIn is one ledger entry for a provider sign-in.
type SignIn struct {
	SessionID string
	UserID    string
	Email     string
	Role      string
	IP        string
	UserAgent string
	ExpiresAt time.Time
}

// Ledger records sign-ins for auditing. Failures never block a sign-in.
type Ledger interface {
	Record(ctx context.Context, entry SignIn) error
	Remove(ctx context.Context, sessionID string) error
}

// Execer is the subset of pgxpool.Pool the ledger needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGLedger stores sign-ins in the auth_sessions table.
type PGLedger struct {
	db  Execer
	now func() time.Time
}

// NewPGLedger constructs a PostgreSQL ledger.
func NewPGLedger(db Execer) *PGLedger {
	return &PGLedger{db: db, now: time.Now}
}

// EnsureSchema creates the auth_sessions table when missing.
func (l *PGLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("identity: ensure schema: %w", err)
	}
	return nil
}

const (
	insertSignIn = `INSERT INTO auth_sessions (id, user_id, email, role, created_at, expires_at, ip, ua)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	updateSignIn = `UPDATE auth_sessions
SET user_id = $2, email = $3, role = $4, created_at = $5, expires_at = $6, ip = $7, ua = $8
WHERE id = $1`
	deleteSignIn = `DELETE FROM auth_sessions WHERE id = $1`
)

// Record inserts the sign-in, updating the row when the session ID exists.
func (l *PGLedger) Record(ctx context.Context, e SignIn) error {
	args := []any{
		e.SessionID,
		e.UserID,
		e.Email,
		pgtype.Text{String: e.Role, Valid: e.Role != ""},
		pgtype.Timestamptz{Time: l.now().UTC(), Valid: true},
		pgtype.Timestamptz{Time: e.ExpiresAt.UTC(), Valid: !e.ExpiresAt.IsZero()},
		pgtype.Text{String: e.IP, Valid: e.IP != ""},
		pgtype.Text{String: e.UserAgent, Valid: e.UserAgent != ""},
	}
	_, err := l.db.Exec(ctx, insertSignIn, args...)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		_, err = l.db.Exec(ctx, updateSignIn, args...)
	}
	if err != nil {
		return fmt.Errorf("identity: record sign-in: %w", err)
	}
	return nil
}

// Remove deletes the ledger row for the session.
func (l *PGLedger) Remove(ctx context.Context, sessionID string) error {
	if _, err := l.db.Exec(ctx, deleteSignIn, sessionID); err != nil {
		return fmt.Errorf("identity: remove sign-in: %w", err)
	}
	return nil
}

var _ Ledger = (*PGLedger)(nil)
