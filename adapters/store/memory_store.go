package store

import (
	"context"
	"sync"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
)

// MemoryStore is an in-memory implementation of the UnitOfWork port. A
// coarse lock serialises units of work; writes go to a staged copy that is
// swapped in atomically on commit, so a cancelled or failed unit leaves no
// trace.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]core.User
	audit []core.AuditEntry
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]core.User),
	}
}

// Execute runs work against a staged snapshot and commits it on normal
// return. Cancellation or a work error discards the stage.
func (s *MemoryStore) Execute(ctx context.Context, work func(ctx context.Context, repos ports.RepositoryContext) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &memStage{
		users: make(map[string]core.User, len(s.users)),
		audit: append([]core.AuditEntry(nil), s.audit...),
	}
	for id, u := range s.users {
		staged.users[id] = u
	}

	repos := &memRepositoryContext{stage: staged}
	if err := work(ctx, repos); err != nil {
		if repos.cancelled {
			return core.ErrCancelled
		}
		return err
	}
	if repos.cancelled {
		return core.ErrCancelled
	}

	s.users = staged.users
	s.audit = staged.audit
	return nil
}

// GetUser reads a user outside any unit of work. Test helper for observing
// committed state.
func (s *MemoryStore) GetUser(id string) (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	return u, ok
}

// AuditEntries returns all committed audit entries.
func (s *MemoryStore) AuditEntries() []core.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]core.AuditEntry(nil), s.audit...)
}

type memStage struct {
	users map[string]core.User
	audit []core.AuditEntry
}

type memRepositoryContext struct {
	stage     *memStage
	cancelled bool
}

func (c *memRepositoryContext) Users() ports.Users       { return &memUsers{stage: c.stage} }
func (c *memRepositoryContext) AuditLog() ports.AuditLog { return &memAuditLog{stage: c.stage} }
func (c *memRepositoryContext) Cancel()                  { c.cancelled = true }

type memUsers struct {
	stage *memStage
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*core.User, error) {
	if u, ok := r.stage.users[id]; ok {
		copied := u
		return &copied, nil
	}
	return nil, core.ErrNotFound
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	for _, u := range r.stage.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *memUsers) Create(ctx context.Context, u *core.User) error {
	r.stage.users[u.ID] = *u
	return nil
}

func (r *memUsers) Update(ctx context.Context, u *core.User) error {
	if _, ok := r.stage.users[u.ID]; !ok {
		return core.ErrNotFound
	}
	r.stage.users[u.ID] = *u
	return nil
}

func (r *memUsers) Delete(ctx context.Context, id string) error {
	if _, ok := r.stage.users[id]; !ok {
		return core.ErrNotFound
	}
	delete(r.stage.users, id)
	return nil
}

type memAuditLog struct {
	stage *memStage
}

func (r *memAuditLog) Record(ctx context.Context, entry core.AuditEntry) error {
	r.stage.audit = append(r.stage.audit, entry)
	return nil
}

func (r *memAuditLog) ListBySubject(ctx context.Context, subject string) ([]core.AuditEntry, error) {
	var entries []core.AuditEntry
	for i := len(r.stage.audit) - 1; i >= 0; i-- {
		if r.stage.audit[i].Subject == subject {
			entries = append(entries, r.stage.audit[i])
		}
	}
	return entries, nil
}

var _ ports.UnitOfWork = (*MemoryStore)(nil)
