package core

import "time"

// AuditEntry records one account-level action. Entries are written inside
// the same unit of work as the mutation they describe.
type AuditEntry struct {
	ID      string
	Subject string
	Action  string
	At      time.Time
}

// Audit actions recorded by the account service.
const (
	AuditActionRegistered      = "user.registered"
	AuditActionPasswordChanged = "user.password_changed"
	AuditActionEmailConfirmed  = "user.email_confirmed"
	AuditActionActivated       = "user.activated"
	AuditActionDeactivated     = "user.deactivated"
	AuditActionDeleted         = "user.deleted"
)
