package ports

import (
	"context"

	"github.com/cerberus-auth/cerberus/core"
)

// Users is the transaction-bound user repository handle.
type Users interface {
	// GetByID returns the user for id, or core.ErrNotFound.
	GetByID(ctx context.Context, id string) (*core.User, error)

	// GetByEmail returns the user with the given email, or core.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*core.User, error)

	// Create persists a new user. The aggregate must have ID set.
	Create(ctx context.Context, u *core.User) error

	// Update rewrites the existing row. Returns core.ErrNotFound when the
	// row is missing.
	Update(ctx context.Context, u *core.User) error

	// Delete removes the user by id. Returns core.ErrNotFound when missing.
	Delete(ctx context.Context, id string) error
}

// AuditLog is the transaction-bound audit repository handle.
type AuditLog interface {
	// Record appends one audit entry.
	Record(ctx context.Context, entry core.AuditEntry) error

	// ListBySubject returns entries for a subject, newest first.
	ListBySubject(ctx context.Context, subject string) ([]core.AuditEntry, error)
}

// RepositoryContext exposes the repository handles bound to one transaction.
// It is only valid inside the Execute callback that produced it.
type RepositoryContext interface {
	Users() Users
	AuditLog() AuditLog

	// Cancel aborts the whole unit of work. It is cooperative: it only has
	// effect before the work function returns, and Execute then reports
	// core.ErrCancelled regardless of the function's own return value.
	Cancel()
}

// UnitOfWork wraps persistence operations in a single atomic transaction
// boundary. Either every write submitted through the context's handles
// lands, or none do.
type UnitOfWork interface {
	// Execute opens one transaction, invokes work exactly once with a
	// context bound to it, and commits on normal return. If work returns an
	// error or calls Cancel, the transaction rolls back; cancellation is
	// reported as core.ErrCancelled, other failures propagate untouched.
	// Nesting Execute inside Execute is not supported.
	Execute(ctx context.Context, work func(ctx context.Context, repos RepositoryContext) error) error
}
