// Package session models conversational agent session state: an
// append-only event log whose state is the ordered fold of each event's
// state delta. Generalized from the teacher's checkpoint.Checkpoint
// (channel-values + versions-seen pattern) to the app/user-scoped session
// layout of spec.md §4.4. The durable, atomic backend lives in
// internal/infrastructure/cache/redis.
package session

import (
	"time"

	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// TombstoneKey is the sentinel delta value marking a state key for deletion,
// wire-encoded as spec.md §6 describes: {"__del__": true}.
const TombstoneKey = "__del__"

// Tombstone is the delta value a caller sets to delete a state key.
var Tombstone = map[string]interface{}{TombstoneKey: true}

// IsTombstone reports whether v is the tombstone sentinel.
func IsTombstone(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	del, ok := m[TombstoneKey]
	if !ok {
		return false
	}
	b, ok := del.(bool)
	return ok && b
}

// Actions carries the side effects produced alongside an Event, of which
// the session fold only cares about StateDelta.
type Actions struct {
	StateDelta map[string]interface{} `json:"stateDelta,omitempty"`
}

// Event is one append-only entry in a session's history.
type Event struct {
	ID         string    `json:"id"`
	Actions    Actions   `json:"actions"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent creates an Event carrying stateDelta, stamped with the current
// time. The event ID is assigned here so repeated appends of otherwise
// identical deltas remain distinguishable.
func NewEvent(stateDelta map[string]interface{}) Event {
	return Event{
		ID:         pkguuid.New(),
		Actions:    Actions{StateDelta: stateDelta},
		OccurredAt: time.Now(),
	}
}

// Session is the durable, TTL-bounded state of one conversational agent
// session. State is always the fold of Events in order; callers should
// never write State directly, only through appendEvent.
type Session struct {
	ID             string                 `json:"id"`
	AppName        string                 `json:"appName"`
	UserID         string                 `json:"userId"`
	State          map[string]interface{} `json:"state"`
	Events         []Event                `json:"events"`
	LastUpdateTime time.Time              `json:"lastUpdateTime"`
}

// New creates a Session with the given initial state, generating a
// sessionID if sessionID is empty.
func New(appName, userID, sessionID string, initialState map[string]interface{}) *Session {
	if sessionID == "" {
		sessionID = pkguuid.New()
	}
	if initialState == nil {
		initialState = make(map[string]interface{})
	}

	return &Session{
		ID:             sessionID,
		AppName:        appName,
		UserID:         userID,
		State:          initialState,
		Events:         make([]Event, 0),
		LastUpdateTime: time.Now(),
	}
}

// Fold applies event's stateDelta onto s.State in place, deleting keys
// mapped to the tombstone value and appending event to s.Events. This is the
// single point every appendEvent path (in-process or the Redis Lua script)
// must implement identically — see §8 property 7 ("session fold").
func (s *Session) Fold(event Event) {
	if s.State == nil {
		s.State = make(map[string]interface{})
	}
	for k, v := range event.Actions.StateDelta {
		if IsTombstone(v) {
			delete(s.State, k)
			continue
		}
		s.State[k] = v
	}
	s.Events = append(s.Events, event)
	s.LastUpdateTime = event.OccurredAt
}

// Summary is the identity-only projection list() returns: empty state and
// events, just enough to let a caller pick a session to load in full.
type Summary struct {
	ID             string    `json:"id"`
	AppName        string    `json:"appName"`
	UserID         string    `json:"userId"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

func (s *Session) Summary() Summary {
	return Summary{ID: s.ID, AppName: s.AppName, UserID: s.UserID, LastUpdateTime: s.LastUpdateTime}
}

// GetFilter narrows a get() read to a trailing window of events.
type GetFilter struct {
	AfterTimestamp  *time.Time
	NumRecentEvents *int
}

// ApplyFilter returns a copy of events with the optional timestamp lower
// bound applied, then sliced to the trailing N events.
func ApplyFilter(events []Event, filter GetFilter) []Event {
	filtered := events
	if filter.AfterTimestamp != nil {
		cut := 0
		for i, e := range events {
			if e.OccurredAt.After(*filter.AfterTimestamp) {
				cut = i
				break
			}
			cut = i + 1
		}
		filtered = events[cut:]
	}
	if filter.NumRecentEvents != nil && *filter.NumRecentEvents < len(filtered) {
		filtered = filtered[len(filtered)-*filter.NumRecentEvents:]
	}

	out := make([]Event, len(filtered))
	copy(out, filtered)
	return out
}

// Clone returns a deep-enough copy of s suitable for returning from get():
// a fresh Events slice and State map so callers can't mutate store internals.
func (s *Session) Clone() *Session {
	state := make(map[string]interface{}, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}
	events := make([]Event, len(s.Events))
	copy(events, s.Events)

	return &Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		State:          state,
		Events:         events,
		LastUpdateTime: s.LastUpdateTime,
	}
}
