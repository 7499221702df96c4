package session

import (
	"context"

	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// Store is the session persistence contract spec.md §4.4 describes. The
// concrete implementation (internal/infrastructure/cache/redis) is
// responsible for AppendEvent's atomicity guarantee.
type Store interface {
	// Create generates a sessionID if empty, fails with SESSION_ALREADY_EXISTS
	// if one already occupies that key.
	Create(ctx context.Context, appName, userID, sessionID string, initialState map[string]interface{}) (*Session, error)

	// Get reads a session, applying the optional event filters before
	// returning a copy. Returns nil, nil if not found (spec.md: "Session |
	// None").
	Get(ctx context.Context, appName, userID, sessionID string, filter GetFilter) (*Session, error)

	// List returns identity-only summaries for every session under
	// (appName, userID).
	List(ctx context.Context, appName, userID string) ([]Summary, error)

	// Delete removes a session and its membership in the sessions-list set.
	Delete(ctx context.Context, appName, userID, sessionID string) error

	// AppendEvent atomically folds event's stateDelta into the session
	// identified by (appName, userID, sessionID) and returns the appended
	// event.
	AppendEvent(ctx context.Context, appName, userID, sessionID string, event Event) (Event, error)
}

// SessionAlreadyExists reports session:{appName}:{userId}:{sessionId}
// already occupied.
func SessionAlreadyExists(sessionID string) *errors.DomainError {
	return errors.NewDomainError(
		"SESSION_ALREADY_EXISTS",
		"session already exists",
		errors.ErrAlreadyExists,
	).WithDetails("sessionId", sessionID)
}

// SessionNotFound reports no session at that key.
func SessionNotFound(sessionID string) *errors.DomainError {
	return errors.NotFound("session", sessionID)
}
