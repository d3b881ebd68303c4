package session

import "time"

// Principal is the authenticated actor a session belongs to.
type Principal struct {
	ID int64
}

// Session is one stored authentication grant.
type Session struct {
	// ID is the lookup id (hex SHA-256 of the token), never the token itself.
	ID          string
	PrincipalID int64
	// ExpiresAt has whole-second precision, matching what is persisted.
	ExpiresAt time.Time
}

// Result is the outcome of Validate. The zero value means "not authenticated".
type Result struct {
	Session   *Session
	Principal *Principal

	// Renewed reports whether ExpiresAt was extended by this validation.
	Renewed bool
}

// Authenticated reports whether r carries a session and principal.
func (r Result) Authenticated() bool {
	return r.Session != nil && r.Principal != nil
}

// State is a session's position in the expiry state machine.
type State int

const (
	StateAbsent State = iota
	StateActive
	StateRenewing
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRenewing:
		return "renewing"
	case StateExpired:
		return "expired"
	default:
		return "absent"
	}
}

// StateAt classifies a stored expiry against now.
func (c Config) StateAt(now, expiresAt time.Time) State {
	switch {
	case !now.Before(expiresAt):
		return StateExpired
	case !now.Before(expiresAt.Add(-c.HalfLife())):
		return StateRenewing
	default:
		return StateActive
	}
}

// Statements. Placeholders are "?"; the credential store adapts them per backend.
const (
	insertSessionStmt = `INSERT INTO session (id, principal_id, expires_at) VALUES (?, ?, ?)`

	selectSessionStmt = `
		SELECT session.id, session.principal_id, session.expires_at
		FROM session
		INNER JOIN principal ON principal.id = session.principal_id
		WHERE session.id = ?`

	deleteExpiredSessionStmt = `DELETE FROM session WHERE id = ? AND expires_at <= ?`

	renewSessionStmt = `UPDATE session SET expires_at = ? WHERE id = ? AND expires_at = ?`

	deleteSessionStmt = `DELETE FROM session WHERE id = ?`

	deletePrincipalSessionsStmt = `DELETE FROM session WHERE principal_id = ?`

	deleteAllExpiredStmt = `DELETE FROM session WHERE expires_at <= ?`
)

// expiryAt converts a new expiry to the second precision the store keeps.
// A fractional second rounds up, so the stored half-life is never shorter
// than the configured one.
func expiryAt(t time.Time) time.Time {
	s := t.Unix()
	if t.Nanosecond() > 0 {
		s++
	}
	return time.Unix(s, 0).UTC()
}
