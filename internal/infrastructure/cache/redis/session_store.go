// Package redis implements the session.Store contract over Redis, grounded
// on the teacher's cache.RedisCache (wraps *redis.Client, JSON marshal, TTL
// helpers) generalized from a generic cache to the keyed session layout of
// spec.md §4.4/§6.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/duragraph/duragraph/internal/domain/session"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// SessionTTL is the lifetime of a session key and its sessions-list
// membership, refreshed on every write (spec.md §4.4).
const SessionTTL = 30 * 24 * time.Hour

// appendEventScript loads the session blob, folds event's stateDelta onto
// its state (tombstone entries delete the key), appends the event, stamps
// lastUpdateTime, and writes the session back — all inside one Redis-server-
// side execution via EVAL, so two concurrent appendEvent calls never
// interleave a read-modify-write. This is the "single-shot transaction
// primitive the backing store offers" spec.md §4.4 requires.
var appendEventScript = goredis.NewScript(`
local sessionKey = KEYS[1]
local eventJSON = ARGV[1]
local delta = cjson.decode(ARGV[2])
local occurredAt = ARGV[3]
local ttlSeconds = tonumber(ARGV[4])

local raw = redis.call("GET", sessionKey)
if raw == false then
	return redis.error_reply("session not found")
end

local sess = cjson.decode(raw)
if sess.state == nil or sess.state == cjson.null then
	sess.state = {}
end

for k, v in pairs(delta) do
	if type(v) == "table" and v["__del__"] == true then
		sess.state[k] = nil
	else
		sess.state[k] = v
	end
end

local event = cjson.decode(eventJSON)
if sess.events == nil or sess.events == cjson.null then
	sess.events = {}
end
table.insert(sess.events, event)
sess.lastUpdateTime = occurredAt

redis.call("SET", sessionKey, cjson.encode(sess), "EX", ttlSeconds)
return 1
`)

// Store implements session.Store over Redis.
type Store struct {
	client  *goredis.Client
	metrics *monitoring.Metrics
}

// NewStore wraps an existing go-redis client. metrics may be nil.
func NewStore(client *goredis.Client, metrics *monitoring.Metrics) *Store {
	return &Store{client: client, metrics: metrics}
}

// record instruments one session store operation's duration and outcome,
// attributing failures to the error code a *errors.DomainError carries.
func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		s.metrics.RecordSessionError(operation, sessionErrorCode(err))
	}
	s.metrics.RecordSessionOperation(operation, status, time.Since(start))
}

func sessionErrorCode(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[:idx]
	}
	return "unknown"
}

func sessionKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s:%s", appName, userID, sessionID)
}

func listKey(appName, userID string) string {
	return fmt.Sprintf("sessions-list:%s:%s", appName, userID)
}

// Create generates a sessionID if empty, writes the session key only if
// absent (SETNX semantics), adds it to the user's sessions-list set, and
// refreshes both TTLs.
func (s *Store) Create(ctx context.Context, appName, userID, sessionID string, initialState map[string]interface{}) (sess *session.Session, err error) {
	start := time.Now()
	defer func() { s.record("create", start, err) }()

	sess = session.New(appName, userID, sessionID, initialState)

	data, marshalErr := json.Marshal(sess)
	if marshalErr != nil {
		err = errors.Internal("failed to marshal session", marshalErr)
		return nil, err
	}

	key := sessionKey(appName, userID, sess.ID)
	ok, dbErr := s.client.SetNX(ctx, key, data, SessionTTL).Result()
	if dbErr != nil {
		err = errors.Internal("failed to create session", dbErr)
		return nil, err
	}
	if !ok {
		err = session.SessionAlreadyExists(sess.ID)
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, listKey(appName, userID), sess.ID)
	pipe.Expire(ctx, listKey(appName, userID), SessionTTL)
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		err = errors.Internal("failed to register session in sessions-list", execErr)
		return nil, err
	}

	return sess, nil
}

// Get reads a session and applies the optional event filters before
// returning a copy. Returns nil, nil if not found.
func (s *Store) Get(ctx context.Context, appName, userID, sessionID string, filter session.GetFilter) (result *session.Session, err error) {
	start := time.Now()
	defer func() { s.record("get", start, err) }()

	raw, getErr := s.client.Get(ctx, sessionKey(appName, userID, sessionID)).Bytes()
	if getErr == goredis.Nil {
		return nil, nil
	}
	if getErr != nil {
		err = errors.Internal("failed to read session", getErr)
		return nil, err
	}

	var sess session.Session
	if unmarshalErr := json.Unmarshal(raw, &sess); unmarshalErr != nil {
		err = errors.Internal("failed to unmarshal session", unmarshalErr)
		return nil, err
	}

	sess.Events = session.ApplyFilter(sess.Events, filter)
	return sess.Clone(), nil
}

// List returns identity-only summaries for every session under (appName, userID).
func (s *Store) List(ctx context.Context, appName, userID string) (summaries []session.Summary, err error) {
	start := time.Now()
	defer func() { s.record("list", start, err) }()

	ids, smembersErr := s.client.SMembers(ctx, listKey(appName, userID)).Result()
	if smembersErr != nil {
		err = errors.Internal("failed to list sessions", smembersErr)
		return nil, err
	}

	summaries = make([]session.Summary, 0, len(ids))
	for _, id := range ids {
		sess, getErr := s.Get(ctx, appName, userID, id, session.GetFilter{})
		if getErr != nil {
			err = getErr
			return nil, err
		}
		if sess == nil {
			continue
		}
		summaries = append(summaries, sess.Summary())
	}
	return summaries, nil
}

// Delete atomically removes the session key and its sessions-list membership.
func (s *Store) Delete(ctx context.Context, appName, userID, sessionID string) (err error) {
	start := time.Now()
	defer func() { s.record("delete", start, err) }()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(appName, userID, sessionID))
	pipe.SRem(ctx, listKey(appName, userID), sessionID)
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		err = errors.Internal("failed to delete session", execErr)
		return err
	}
	return nil
}

// AppendEvent folds event's stateDelta into the session atomically via
// appendEventScript and returns the appended event.
func (s *Store) AppendEvent(ctx context.Context, appName, userID, sessionID string, event session.Event) (result session.Event, err error) {
	start := time.Now()
	defer func() { s.record("append_event", start, err) }()

	eventJSON, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		err = errors.Internal("failed to marshal event", marshalErr)
		return session.Event{}, err
	}
	deltaJSON, marshalErr := json.Marshal(event.Actions.StateDelta)
	if marshalErr != nil {
		err = errors.Internal("failed to marshal state delta", marshalErr)
		return session.Event{}, err
	}

	key := sessionKey(appName, userID, sessionID)
	scriptErr := appendEventScript.Run(ctx, s.client, []string{key},
		string(eventJSON), string(deltaJSON), event.OccurredAt.Format(time.RFC3339Nano), int(SessionTTL.Seconds()),
	).Err()
	if scriptErr != nil {
		if isNotFoundScriptErr(scriptErr) {
			err = session.SessionNotFound(sessionID)
		} else {
			err = errors.Internal("failed to append event", scriptErr)
		}
		return session.Event{}, err
	}

	return event, nil
}

// PruneOrphanedSessionListEntries scans every sessions-list set this
// instance can discover and removes member IDs whose session key no longer
// exists — the belt-and-braces cleanup spec.md's janitor addendum calls for
// when a Delete crashes between its two writes (SessionTTL already expires
// the key itself).
func (s *Store) PruneOrphanedSessionListEntries(ctx context.Context) (int, error) {
	var cursor uint64
	pruned := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "sessions-list:*", 200).Result()
		if err != nil {
			return pruned, errors.Internal("failed to scan sessions-list keys", err)
		}
		for _, listK := range keys {
			ids, err := s.client.SMembers(ctx, listK).Result()
			if err != nil {
				return pruned, errors.Internal("failed to read sessions-list members", err)
			}
			appName, userID, ok := parseListKey(listK)
			if !ok {
				continue
			}
			for _, id := range ids {
				exists, err := s.client.Exists(ctx, sessionKey(appName, userID, id)).Result()
				if err != nil {
					return pruned, errors.Internal("failed to check session existence", err)
				}
				if exists == 0 {
					if err := s.client.SRem(ctx, listK, id).Err(); err != nil {
						return pruned, errors.Internal("failed to prune orphaned sessions-list entry", err)
					}
					pruned++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return pruned, nil
}

func parseListKey(key string) (appName, userID string, ok bool) {
	var rest string
	const prefix = "sessions-list:"
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return "", "", false
	}
	rest = key[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return rest[:i], rest[i+1:], true
		}
	}
	return "", "", false
}

func isNotFoundScriptErr(err error) bool {
	// go-redis surfaces Lua redis.error_reply as a plain error whose message
	// is exactly the string passed to error_reply.
	return err != nil && err.Error() == "session not found"
}
