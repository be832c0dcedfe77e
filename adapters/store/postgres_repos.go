package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cerberus-auth/cerberus/core"
)

type pgUsers struct {
	tx pgx.Tx
}

const userColumns = `id, email, first_name, last_name, password_hash, active,
	email_confirmed, invited_by, created_at, updated_at, last_credential_invalidation`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	var lastInvalidation *time.Time

	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.Active, &u.EmailConfirmed, &u.InvitedByID,
		&u.CreatedAt, &u.UpdatedAt, &lastInvalidation,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if lastInvalidation != nil {
		u.LastCredentialInvalidation = *lastInvalidation
	}
	return &u, nil
}

func (r *pgUsers) GetByID(ctx context.Context, id string) (*core.User, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *pgUsers) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *pgUsers) Create(ctx context.Context, u *core.User) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		u.Active, u.EmailConfirmed, u.InvitedByID,
		u.CreatedAt, u.UpdatedAt, nullableTime(u.LastCredentialInvalidation),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *pgUsers) Update(ctx context.Context, u *core.User) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE users SET
			email = $2, first_name = $3, last_name = $4, password_hash = $5,
			active = $6, email_confirmed = $7, invited_by = $8,
			updated_at = $9, last_credential_invalidation = $10
		WHERE id = $1`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		u.Active, u.EmailConfirmed, u.InvitedByID,
		u.UpdatedAt, nullableTime(u.LastCredentialInvalidation),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *pgUsers) Delete(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type pgAuditLog struct {
	tx pgx.Tx
}

func (r *pgAuditLog) Record(ctx context.Context, entry core.AuditEntry) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO audit_log (id, subject, action, at)
		VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.Subject, entry.Action, entry.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *pgAuditLog) ListBySubject(ctx context.Context, subject string) ([]core.AuditEntry, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, subject, action, at FROM audit_log
		WHERE subject = $1 ORDER BY at DESC`, subject,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []core.AuditEntry
	for rows.Next() {
		var e core.AuditEntry
		if err := rows.Scan(&e.ID, &e.Subject, &e.Action, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	return entries, nil
}
