package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duragraph/duragraph/internal/domain/canvas"
)

// canvasSnapshotLoader is the narrow slice of scheduler.SnapshotLoader this
// package decorates. Declared locally so this package doesn't import
// infrastructure/scheduler (which would create a cache<->scheduler cycle).
type canvasSnapshotLoader interface {
	LoadCanvasEntities(ctx context.Context, canvasID, userID string) (*canvas.Snapshot, error)
}

// cachedGraph is the subset of a canvas.Snapshot worth caching: the graph
// shape. Results, ephemeral task rows, and execution context (APIKey, Task)
// are never cached — they are per-run state, not per-canvas state.
type cachedGraph struct {
	Canvas  canvas.Canvas   `json:"canvas"`
	Nodes   []canvas.Node   `json:"nodes"`
	Edges   []canvas.Edge   `json:"edges"`
	Handles []canvas.Handle `json:"handles"`
}

// CachedCanvasSnapshotLoader wraps a canvasSnapshotLoader with a Redis-backed
// cache of canvas graph shape, invalidated on write rather than relying
// solely on TTL. The teacher's CachedRunRepository left this unimplemented
// ("we'll cache miss and always hit the database" — see
// internal/infrastructure/cache/cached_repository.go in the reference
// tree); this is the same decorator idea made to actually serialize and
// store its payload.
type CachedCanvasSnapshotLoader struct {
	loader canvasSnapshotLoader
	cache  *RedisCache
	ttl    time.Duration
}

// NewCachedCanvasSnapshotLoader wraps loader with a Redis cache of graph
// shape. A zero ttl defaults to 5 minutes.
func NewCachedCanvasSnapshotLoader(loader canvasSnapshotLoader, cache *RedisCache, ttl time.Duration) *CachedCanvasSnapshotLoader {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCanvasSnapshotLoader{loader: loader, cache: cache, ttl: ttl}
}

func cacheKey(canvasID string) string {
	return fmt.Sprintf("canvas:graph:%s", canvasID)
}

// LoadCanvasEntities returns a Snapshot for canvasID, serving the cached
// graph shape when present. A cache hit still calls through on every miss
// and on the owner-check short-circuit the underlying loader performs, so
// CANVAS_NOT_FOUND / ownership errors are never masked by a stale cache
// entry: only a successful load is ever cached.
func (c *CachedCanvasSnapshotLoader) LoadCanvasEntities(ctx context.Context, canvasID, userID string) (*canvas.Snapshot, error) {
	if raw, err := c.cache.GetString(ctx, cacheKey(canvasID)); err == nil {
		var g cachedGraph
		if jsonErr := json.Unmarshal([]byte(raw), &g); jsonErr == nil {
			if g.Canvas.UserID != userID {
				// Cached owner no longer matches the caller; fall through to
				// the real loader so its ownership check is authoritative.
			} else {
				return snapshotFromGraph(g), nil
			}
		}
	}

	snap, err := c.loader.LoadCanvasEntities(ctx, canvasID, userID)
	if err != nil {
		return nil, err
	}

	g := cachedGraph{Canvas: snap.Canvas, Nodes: snap.Nodes, Edges: snap.Edges, Handles: snap.Handles}
	if encoded, marshalErr := json.Marshal(g); marshalErr == nil {
		_ = c.cache.Set(ctx, cacheKey(canvasID), string(encoded), c.ttl)
	}

	return snap, nil
}

// Invalidate evicts canvasID's cached graph shape. Call this whenever a
// canvas's nodes, handles, or edges are mutated outside the scheduler
// (node results are never cached, so routine processing never needs this).
func (c *CachedCanvasSnapshotLoader) Invalidate(ctx context.Context, canvasID string) error {
	return c.cache.Delete(ctx, cacheKey(canvasID))
}

// snapshotFromGraph builds a fresh Snapshot from cached graph shape, with a
// deep-enough copy of Nodes that a run's Result writes never leak into the
// cached entry or into another concurrent run reading the same cache key.
func snapshotFromGraph(g cachedGraph) *canvas.Snapshot {
	nodes := make([]canvas.Node, len(g.Nodes))
	copy(nodes, g.Nodes)
	for i := range nodes {
		nodes[i].Result = nil
	}

	return &canvas.Snapshot{
		Canvas:  g.Canvas,
		Nodes:   nodes,
		Edges:   append([]canvas.Edge(nil), g.Edges...),
		Handles: append([]canvas.Handle(nil), g.Handles...),
	}
}
