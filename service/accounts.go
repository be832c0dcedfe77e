package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
)

// AccountService owns the account use cases and the wiring between aggregate
// watermarks and cache invalidation. Every multi-write use case runs inside
// one unit of work; invalidation markers and events are written only after
// the unit commits.
type AccountService struct {
	uow          ports.UnitOfWork
	invalidation *InvalidationRepository
	hasher       ports.PasswordHasher
	eventPub     ports.EventPublisher
	logger       *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	uow ports.UnitOfWork,
	invalidation *InvalidationRepository,
	hasher ports.PasswordHasher,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		uow:          uow,
		invalidation: invalidation,
		hasher:       hasher,
		eventPub:     eventPub,
		logger:       logger,
	}
}

// Register creates an account and its audit row in one unit of work. When an
// inviter is named but does not exist, the whole unit is cancelled.
func (s *AccountService) Register(ctx context.Context, email, password, firstName, lastName, invitedBy string) (*core.User, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := core.NewUser(uuid.New().String(), email, hashed, true)
	if err != nil {
		return nil, err
	}
	user.UpdateFirstName(firstName)
	user.UpdateLastName(lastName)

	err = s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		_, err := repos.Users().GetByEmail(ctx, email)
		if err == nil {
			return core.ErrEmailTaken
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		if invitedBy != "" {
			if _, err := repos.Users().GetByID(ctx, invitedBy); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					// Unknown inviter is a business-rule failure for the
					// whole unit, not a storage error.
					repos.Cancel()
					return nil
				}
				return err
			}
			user.InvitedByID = invitedBy
		}

		if err := repos.Users().Create(ctx, user); err != nil {
			return err
		}
		return repos.AuditLog().Record(ctx, s.auditEntry(user.ID, core.AuditActionRegistered))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", email)
	return user, nil
}

// UpdateProfile merges the optional name fields. Empty values leave the
// stored names untouched.
func (s *AccountService) UpdateProfile(ctx context.Context, userID, firstName, lastName string) error {
	return s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		user, err := repos.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.UpdateFirstName(firstName)
		user.UpdateLastName(lastName)
		return repos.Users().Update(ctx, user)
	})
}

// ChangePassword rotates the password inside a unit of work and then revokes
// every previously issued token for the subject.
func (s *AccountService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		user, err := repos.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := user.UpdatePassword(hashed); err != nil {
			return err
		}
		if err := repos.Users().Update(ctx, user); err != nil {
			return err
		}
		return repos.AuditLog().Record(ctx, s.auditEntry(userID, core.AuditActionPasswordChanged))
	})
	if err != nil {
		return err
	}

	return s.invalidateSubject(ctx, userID)
}

// RecoverPassword consumes a password-recovery token: it must still be
// valid, the password is rotated, and then every token for the subject is
// revoked, the recovery token included.
func (s *AccountService) RecoverPassword(ctx context.Context, token core.TokenValue, newPassword string) error {
	if token.Type != core.TokenTypePasswordRecovery {
		return core.ErrInvalidToken
	}
	if err := s.VerifyToken(ctx, token); err != nil {
		return err
	}
	return s.ChangePassword(ctx, token.Subject, newPassword)
}

// ConfirmEmail consumes an email-confirmation token. The token is revoked by
// identity afterwards so it is single use.
func (s *AccountService) ConfirmEmail(ctx context.Context, token core.TokenValue) error {
	if token.Type != core.TokenTypeEmailConfirmation {
		return core.ErrInvalidToken
	}
	if err := s.VerifyToken(ctx, token); err != nil {
		return err
	}

	err := s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		user, err := repos.Users().GetByID(ctx, token.Subject)
		if err != nil {
			return err
		}
		user.ConfirmEmail()
		if err := repos.Users().Update(ctx, user); err != nil {
			return err
		}
		return repos.AuditLog().Record(ctx, s.auditEntry(token.Subject, core.AuditActionEmailConfirmed))
	})
	if err != nil {
		return err
	}

	return s.invalidation.InvalidateToken(ctx, token)
}

// Activate re-enables an account.
func (s *AccountService) Activate(ctx context.Context, userID string) error {
	return s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		user, err := repos.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.Activate()
		if err := repos.Users().Update(ctx, user); err != nil {
			return err
		}
		return repos.AuditLog().Record(ctx, s.auditEntry(userID, core.AuditActionActivated))
	})
}

// Deactivate suspends an account and revokes every token it has issued.
func (s *AccountService) Deactivate(ctx context.Context, userID string) error {
	err := s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		user, err := repos.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user.Deactivate()
		user.InvalidateCredential()
		if err := repos.Users().Update(ctx, user); err != nil {
			return err
		}
		return repos.AuditLog().Record(ctx, s.auditEntry(userID, core.AuditActionDeactivated))
	})
	if err != nil {
		return err
	}

	return s.invalidateSubject(ctx, userID)
}

// DeleteAccount removes the account and revokes every outstanding token.
func (s *AccountService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		if err := repos.Users().Delete(ctx, userID); err != nil {
			return err
		}
		return repos.AuditLog().Record(ctx, s.auditEntry(userID, core.AuditActionDeleted))
	})
	if err != nil {
		return err
	}

	return s.invalidateSubject(ctx, userID)
}

// Logout revokes a single token by identity.
func (s *AccountService) Logout(ctx context.Context, token core.TokenValue) error {
	if err := s.invalidation.InvalidateToken(ctx, token); err != nil {
		return err
	}

	if err := s.eventPub.PublishLogout(ctx, token.Subject, token.ID); err != nil {
		// The marker is already written, which is the critical part.
		s.logger.Warn("failed to publish logout event", "error", err)
	}
	return nil
}

// LogoutEverywhere revokes every token for a subject, or every token of the
// given types, and moves the aggregate's credential watermark.
func (s *AccountService) LogoutEverywhere(ctx context.Context, subject string, types ...core.TokenType) error {
	err := s.uow.Execute(ctx, func(ctx context.Context, repos ports.RepositoryContext) error {
		user, err := repos.Users().GetByID(ctx, subject)
		if err != nil {
			return err
		}
		user.InvalidateCredential()
		return repos.Users().Update(ctx, user)
	})
	if err != nil {
		return err
	}

	if len(types) == 0 {
		return s.invalidateSubject(ctx, subject)
	}
	for _, t := range types {
		if err := s.invalidation.InvalidateAllUserTokens(ctx, subject, t); err != nil {
			return err
		}
		s.publishInvalidation(ctx, subject, string(t))
	}
	return nil
}

// VerifyToken is the caller-facing validity check: the token must not have
// expired on its own and must not be covered by any invalidation marker.
func (s *AccountService) VerifyToken(ctx context.Context, token core.TokenValue) error {
	if token.Expired(time.Now()) {
		return core.ErrTokenExpired
	}
	return s.checkTokenUsable(ctx, token)
}

func (s *AccountService) checkTokenUsable(ctx context.Context, token core.TokenValue) error {
	valid, err := s.invalidation.VerifyTokenValid(ctx, token)
	if err != nil {
		return err
	}
	if !valid {
		return core.ErrTokenInvalidated
	}
	return nil
}

func (s *AccountService) invalidateSubject(ctx context.Context, subject string) error {
	if err := s.invalidation.InvalidateAllUserTokens(ctx, subject); err != nil {
		return err
	}
	s.publishInvalidation(ctx, subject, "all")
	return nil
}

func (s *AccountService) publishInvalidation(ctx context.Context, subject, scope string) {
	if err := s.eventPub.PublishCredentialInvalidation(ctx, subject, scope); err != nil {
		s.logger.Warn("failed to publish invalidation event", "error", err)
	}
}

func (s *AccountService) auditEntry(subject, action string) core.AuditEntry {
	return core.AuditEntry{
		ID:      uuid.New().String(),
		Subject: subject,
		Action:  action,
		At:      time.Now(),
	}
}
