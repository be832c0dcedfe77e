package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
)

const (
	singleTokenKeyPrefix   = "single-token-invalidation:"
	allUserTokensKeyPrefix = "all-user-tokens-invalidation:"

	// scopeAll is the type slot of a subject-wide cutoff marker
	scopeAll = "all"
)

func singleTokenKey(tokenID string) string {
	return singleTokenKeyPrefix + tokenID
}

func allUserTokensKey(subject, scope string) string {
	return fmt.Sprintf("%s%s:%s", allUserTokensKeyPrefix, subject, scope)
}

// InvalidationRepository decides token validity by cross-referencing three
// invalidation scopes in the cache, and writes revocation markers with
// type-appropriate TTLs. Cache errors propagate unmodified; no retry policy
// is added at this layer.
type InvalidationRepository struct {
	cache  ports.Cache
	ttls   core.RevocationTTLs
	logger *slog.Logger
}

// NewInvalidationRepository creates a new invalidation repository
func NewInvalidationRepository(cache ports.Cache, ttls core.RevocationTTLs, logger *slog.Logger) *InvalidationRepository {
	return &InvalidationRepository{
		cache:  cache,
		ttls:   ttls,
		logger: logger,
	}
}

// VerifyTokenValid reports whether the token is still valid. The three
// lookups are dispatched concurrently and joined before any decision is
// made, so latency is bounded by one round trip regardless of outcome.
func (r *InvalidationRepository) VerifyTokenValid(ctx context.Context, token core.TokenValue) (bool, error) {
	var (
		singleMarker  string
		typeCutoff    string
		subjectCutoff string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		singleMarker, err = r.cache.Get(gctx, singleTokenKey(token.ID))
		return err
	})
	g.Go(func() (err error) {
		typeCutoff, err = r.cache.Get(gctx, allUserTokensKey(token.Subject, string(token.Type)))
		return err
	})
	g.Go(func() (err error) {
		subjectCutoff, err = r.cache.Get(gctx, allUserTokensKey(token.Subject, scopeAll))
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	// Ordered decision table, evaluated only after all lookups resolved.
	checks := []struct {
		revoked func() bool
		reason  string
	}{
		{func() bool { return singleMarker != "" }, "single-token marker"},
		{func() bool { return issuedBeforeCutoff(token, typeCutoff) }, "type-scoped cutoff"},
		{func() bool { return issuedBeforeCutoff(token, subjectCutoff) }, "subject-wide cutoff"},
	}
	for _, check := range checks {
		if check.revoked() {
			r.logger.Debug("token revoked",
				"token_id", token.ID,
				"subject", token.Subject,
				"reason", check.reason,
			)
			return false, nil
		}
	}

	return true, nil
}

// issuedBeforeCutoff reports whether the token was issued strictly before
// the cutoff carried by a marker value. An absent or unparsable marker never
// revokes.
func issuedBeforeCutoff(token core.TokenValue, marker string) bool {
	if marker == "" {
		return false
	}
	cutoff, err := strconv.ParseInt(marker, 10, 64)
	if err != nil {
		return false
	}
	return token.IssuedAt.Unix() < cutoff
}

// InvalidateToken revokes a single token by identity. The marker TTL is the
// type's revocation ceiling, independent of the token's remaining lifetime,
// so the marker always outlives the token it revokes.
func (r *InvalidationRepository) InvalidateToken(ctx context.Context, token core.TokenValue) error {
	ttl := r.ttls.For(token.Type)
	if err := r.cache.Set(ctx, singleTokenKey(token.ID), "1", ttl); err != nil {
		return err
	}

	r.logger.Info("token invalidated",
		"token_id", token.ID,
		"subject", token.Subject,
		"type", string(token.Type),
	)
	return nil
}

// InvalidateAllUserTokens writes cutoff markers for the subject: any token
// of a covered scope issued strictly before now becomes invalid. With token
// types given, one type-scoped marker is written per type; without any the
// single marker is subject-wide and uses the longest ceiling among all types.
//
// Cutoffs only ever advance: an existing later cutoff is kept so a retried
// call with a stale clock cannot resurrect already-revoked tokens. The
// read-compare-write is not atomic against the cache; the cache port offers
// no compare-and-swap, so the residual race is an accepted limitation.
func (r *InvalidationRepository) InvalidateAllUserTokens(ctx context.Context, subject string, types ...core.TokenType) error {
	if len(types) == 0 {
		return r.writeCutoff(ctx, subject, scopeAll, r.ttls.Max())
	}
	for _, tokenType := range types {
		if err := r.writeCutoff(ctx, subject, string(tokenType), r.ttls.For(tokenType)); err != nil {
			return err
		}
	}
	return nil
}

func (r *InvalidationRepository) writeCutoff(ctx context.Context, subject, scope string, ttl time.Duration) error {
	key := allUserTokensKey(subject, scope)
	cutoff := time.Now().Unix()

	existing, err := r.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != "" {
		if prev, perr := strconv.ParseInt(existing, 10, 64); perr == nil && prev > cutoff {
			cutoff = prev
		}
	}

	if err := r.cache.Set(ctx, key, strconv.FormatInt(cutoff, 10), ttl); err != nil {
		return err
	}

	r.logger.Info("user tokens invalidated",
		"subject", subject,
		"scope", scope,
		"cutoff", cutoff,
	)
	return nil
}

// ActiveInvalidations returns the cutoff marker values currently held for a
// subject, one per scope.
func (r *InvalidationRepository) ActiveInvalidations(ctx context.Context, subject string) ([]string, error) {
	return r.cache.GetMany(ctx, allUserTokensKeyPrefix+subject+":*")
}

// ClearInvalidations lifts every cutoff marker for a subject. Single-token
// markers are left in place; an individually revoked token stays revoked.
func (r *InvalidationRepository) ClearInvalidations(ctx context.Context, subject string) error {
	if err := r.cache.DeleteMany(ctx, allUserTokensKeyPrefix+subject+":*"); err != nil {
		return err
	}

	r.logger.Info("user invalidations cleared", "subject", subject)
	return nil
}
