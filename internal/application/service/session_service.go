package service

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/session"
)

// SessionService thinly wraps session.Store the way the teacher's
// AssistantService wraps its repository: there's no extra orchestration
// needed beyond the store's own atomicity guarantees, but the application
// layer is where an HTTP handler should depend, not the Redis package
// directly.
type SessionService struct {
	store session.Store
}

// NewSessionService creates a new SessionService.
func NewSessionService(store session.Store) *SessionService {
	return &SessionService{store: store}
}

func (s *SessionService) Create(ctx context.Context, appName, userID, sessionID string, initialState map[string]interface{}) (*session.Session, error) {
	return s.store.Create(ctx, appName, userID, sessionID, initialState)
}

func (s *SessionService) Get(ctx context.Context, appName, userID, sessionID string, filter session.GetFilter) (*session.Session, error) {
	return s.store.Get(ctx, appName, userID, sessionID, filter)
}

func (s *SessionService) List(ctx context.Context, appName, userID string) ([]session.Summary, error) {
	return s.store.List(ctx, appName, userID)
}

func (s *SessionService) Delete(ctx context.Context, appName, userID, sessionID string) error {
	return s.store.Delete(ctx, appName, userID, sessionID)
}

func (s *SessionService) AppendEvent(ctx context.Context, appName, userID, sessionID string, stateDelta map[string]interface{}) (session.Event, error) {
	event := session.NewEvent(stateDelta)
	return s.store.AppendEvent(ctx, appName, userID, sessionID, event)
}
