package core

import (
	"regexp"
	"time"
)

// hashedPasswordPattern matches the bcrypt modular-crypt prefix. The
// aggregate never hashes plaintext itself; it only refuses values that do
// not already carry the hashed-form marker.
var hashedPasswordPattern = regexp.MustCompile(`^\$2[aby]\$\d{2}\$`)

// User is the persistent account aggregate. Mutation happens only through
// the named operations below; every mutating operation refreshes UpdatedAt.
type User struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	Active         bool
	EmailConfirmed bool
	InvitedByID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// LastCredentialInvalidation is the watermark consumed by revocation
	// policy. It moves whenever the password changes or credentials are
	// explicitly invalidated; the wiring to the token invalidation store is
	// owned by the use-case layer.
	LastCredentialInvalidation time.Time
}

// NewUser constructs a user aggregate. The password must already be hashed;
// construction fails with ErrInvalidPassword otherwise.
func NewUser(id, email, hashedPassword string, active bool) (*User, error) {
	if !hashedPasswordPattern.MatchString(hashedPassword) {
		return nil, ErrInvalidPassword
	}

	now := time.Now()
	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: hashedPassword,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) touch() {
	u.UpdatedAt = time.Now()
}

// Activate marks the account active. Idempotent.
func (u *User) Activate() {
	u.Active = true
	u.touch()
}

// Deactivate marks the account inactive. Idempotent.
func (u *User) Deactivate() {
	u.Active = false
	u.touch()
}

// ConfirmEmail marks the email as confirmed. Idempotent and one-directional;
// there is no unconfirm.
func (u *User) ConfirmEmail() {
	u.EmailConfirmed = true
	u.touch()
}

// UpdateFirstName replaces the first name. An empty value is a no-op so a
// caller cannot clear the name by omission; this is intentional
// optional-field-merge semantics.
func (u *User) UpdateFirstName(firstName string) {
	if firstName == "" {
		return
	}
	u.FirstName = firstName
	u.touch()
}

// UpdateLastName replaces the last name. Empty value is a no-op, same merge
// semantics as UpdateFirstName.
func (u *User) UpdateLastName(lastName string) {
	if lastName == "" {
		return
	}
	u.LastName = lastName
	u.touch()
}

// UpdatePassword replaces the password hash and moves the credential
// invalidation watermark. An empty value is a no-op. The replacement must
// already be hashed or ErrInvalidPassword is returned.
func (u *User) UpdatePassword(newHashedPassword string) error {
	if newHashedPassword == "" {
		return nil
	}
	if !hashedPasswordPattern.MatchString(newHashedPassword) {
		return ErrInvalidPassword
	}
	u.PasswordHash = newHashedPassword
	u.LastCredentialInvalidation = time.Now()
	u.touch()
	return nil
}

// InvalidateCredential moves the credential invalidation watermark without
// touching the password. Used for explicit "log out everywhere" actions.
func (u *User) InvalidateCredential() {
	u.LastCredentialInvalidation = time.Now()
	u.touch()
}
