package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cerberus-auth/cerberus/adapters/cache"
	"github.com/cerberus-auth/cerberus/adapters/hasher"
	"github.com/cerberus-auth/cerberus/adapters/store"
	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
)

type recordingPublisher struct {
	logouts       []string
	invalidations []string
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, subject, tokenID string) error {
	p.logouts = append(p.logouts, subject+":"+tokenID)
	return nil
}

func (p *recordingPublisher) PublishCredentialInvalidation(ctx context.Context, subject, scope string) error {
	p.invalidations = append(p.invalidations, subject+":"+scope)
	return nil
}

type accountsFixture struct {
	accounts  *AccountService
	store     *store.MemoryStore
	inv       *InvalidationRepository
	publisher *recordingPublisher
}

func newAccountsFixture(t *testing.T) *accountsFixture {
	t.Helper()

	memStore := store.NewMemoryStore()
	memCache := cache.NewMemoryCache()
	inv := NewInvalidationRepository(memCache, core.DefaultRevocationTTLs(), testLogger())
	publisher := &recordingPublisher{}

	accounts := NewAccountService(
		memStore,
		inv,
		hasher.NewBcryptHasher(bcrypt.MinCost),
		publisher,
		testLogger(),
	)
	return &accountsFixture{
		accounts:  accounts,
		store:     memStore,
		inv:       inv,
		publisher: publisher,
	}
}

func TestRegisterPersistsUserAndAuditRow(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "Ada", "Lovelace", "")
	require.NoError(t, err)

	stored, ok := f.store.GetUser(user.ID)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.NotEqual(t, "secret", stored.PasswordHash)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.AuditActionRegistered, entries[0].Action)
	assert.Equal(t, user.ID, entries[0].Subject)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	_, err = f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	assert.ErrorIs(t, err, core.ErrEmailTaken)
}

func TestRegisterUnknownInviterCancelsUnit(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	_, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "missing-inviter")
	require.ErrorIs(t, err, core.ErrCancelled)

	// Nothing from the cancelled unit is observable afterwards.
	assert.Empty(t, f.store.AuditEntries())
	err = f.store.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		_, err := repos.Users().GetByEmail(ctx, "ada@example.com")
		assert.ErrorIs(t, err, core.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestChangePasswordRevokesOutstandingTokens(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	oldToken := makeToken(t, "t1", user.ID, core.TokenTypeRefresh, time.Now().Add(-time.Hour))
	valid, err := f.inv.VerifyTokenValid(ctx, oldToken)
	require.NoError(t, err)
	require.True(t, valid)

	require.NoError(t, f.accounts.ChangePassword(ctx, user.ID, "new-secret"))

	valid, err = f.inv.VerifyTokenValid(ctx, oldToken)
	require.NoError(t, err)
	assert.False(t, valid, "tokens issued before the password change are revoked")

	stored, ok := f.store.GetUser(user.ID)
	require.True(t, ok)
	assert.False(t, stored.LastCredentialInvalidation.IsZero())
	assert.Contains(t, f.publisher.invalidations, user.ID+":all")

	entries := f.store.AuditEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, core.AuditActionPasswordChanged, entries[1].Action)
}

func TestChangePasswordUnknownUser(t *testing.T) {
	f := newAccountsFixture(t)

	err := f.accounts.ChangePassword(context.Background(), "missing", "new-secret")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The failed unit left no audit row behind.
	assert.Empty(t, f.store.AuditEntries())
}

func TestConfirmEmailIsSingleUse(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	token := makeToken(t, "confirm-1", user.ID, core.TokenTypeEmailConfirmation, time.Now().Add(-time.Minute))
	require.NoError(t, f.accounts.ConfirmEmail(ctx, token))

	stored, ok := f.store.GetUser(user.ID)
	require.True(t, ok)
	assert.True(t, stored.EmailConfirmed)

	// The consumed token is revoked by identity.
	err = f.accounts.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestConfirmEmailRejectsWrongType(t *testing.T) {
	f := newAccountsFixture(t)

	token := makeToken(t, "t1", "u1", core.TokenTypeAccess, time.Now().Add(-time.Minute))
	err := f.accounts.ConfirmEmail(context.Background(), token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestRecoverPasswordConsumesToken(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	token := makeToken(t, "recover-1", user.ID, core.TokenTypePasswordRecovery, time.Now().Add(-time.Minute))
	require.NoError(t, f.accounts.RecoverPassword(ctx, token, "new-secret"))

	// The subject-wide cutoff written by the password change covers the
	// recovery token itself.
	err = f.accounts.RecoverPassword(ctx, token, "another-secret")
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
}

func TestRecoverPasswordRejectsExpiredToken(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	expired, err := core.NewTokenValue("recover-1", user.ID, core.TokenTypePasswordRecovery,
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = f.accounts.RecoverPassword(ctx, expired, "new-secret")
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	// The rejected recovery left the account untouched.
	require.Len(t, f.store.AuditEntries(), 1)
	stored, ok := f.store.GetUser(user.ID)
	require.True(t, ok)
	assert.True(t, stored.LastCredentialInvalidation.IsZero())
}

func TestConfirmEmailRejectsExpiredToken(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	expired, err := core.NewTokenValue("confirm-1", user.ID, core.TokenTypeEmailConfirmation,
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = f.accounts.ConfirmEmail(ctx, expired)
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	stored, ok := f.store.GetUser(user.ID)
	require.True(t, ok)
	assert.False(t, stored.EmailConfirmed)
}

func TestDeactivateRevokesEverything(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	token := makeToken(t, "t1", user.ID, core.TokenTypeAccess, time.Now().Add(-time.Minute))
	require.NoError(t, f.accounts.Deactivate(ctx, user.ID))

	stored, ok := f.store.GetUser(user.ID)
	require.True(t, ok)
	assert.False(t, stored.Active)

	valid, err := f.inv.VerifyTokenValid(ctx, token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestLogoutRevokesSingleTokenAndPublishes(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	token := makeToken(t, "t1", "u1", core.TokenTypeRefresh, time.Now().Add(-time.Minute))
	require.NoError(t, f.accounts.Logout(ctx, token))

	valid, err := f.inv.VerifyTokenValid(ctx, token)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, []string{"u1:t1"}, f.publisher.logouts)
}

func TestLogoutEverywhereTypeScoped(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	refresh := makeToken(t, "t1", user.ID, core.TokenTypeRefresh, time.Now().Add(-time.Minute))
	access := makeToken(t, "t2", user.ID, core.TokenTypeAccess, time.Now().Add(-time.Minute))

	require.NoError(t, f.accounts.LogoutEverywhere(ctx, user.ID, core.TokenTypeRefresh))

	valid, err := f.inv.VerifyTokenValid(ctx, refresh)
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = f.inv.VerifyTokenValid(ctx, access)
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Contains(t, f.publisher.invalidations, user.ID+":refresh")
}

func TestVerifyTokenReportsExpiry(t *testing.T) {
	f := newAccountsFixture(t)

	expired, err := core.NewTokenValue("t1", "u1", core.TokenTypeAccess,
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = f.accounts.VerifyToken(context.Background(), expired)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestDeleteAccountRemovesUserAndRevokes(t *testing.T) {
	f := newAccountsFixture(t)
	ctx := context.Background()

	user, err := f.accounts.Register(ctx, "ada@example.com", "secret", "", "", "")
	require.NoError(t, err)

	token := makeToken(t, "t1", user.ID, core.TokenTypeRefresh, time.Now().Add(-time.Minute))
	require.NoError(t, f.accounts.DeleteAccount(ctx, user.ID))

	_, ok := f.store.GetUser(user.ID)
	assert.False(t, ok)

	valid, err := f.inv.VerifyTokenValid(ctx, token)
	require.NoError(t, err)
	assert.False(t, valid)
}
