package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duragraph/duragraph/internal/domain/canvas"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// CanvasRepository implements scheduler.SnapshotLoader and the node/template
// half of scheduler.Persistence. Grounded on the teacher's
// workflow.GraphRepository shape (a single aggregate-loading query set
// feeding validateGraph) but flattened to plain SQL over normalized tables
// instead of a single JSON graph column, since the scheduler needs to write
// back individual node results without re-serializing the whole graph.
type CanvasRepository struct {
	pool *pgxpool.Pool
}

// NewCanvasRepository creates a new canvas repository.
func NewCanvasRepository(pool *pgxpool.Pool) *CanvasRepository {
	return &CanvasRepository{pool: pool}
}

// LoadCanvasEntities implements scheduler.SnapshotLoader (spec.md §6
// Consumed #1): loads {canvas, nodes, edges, handles} scoped to userID,
// failing with CanvasNotFound if canvasID is unknown or not owned.
func (r *CanvasRepository) LoadCanvasEntities(ctx context.Context, canvasID, userID string) (*canvas.Snapshot, error) {
	var ownerID string
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM canvases WHERE id = $1`, canvasID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewDomainError("CANVAS_NOT_FOUND", "canvas not found", errors.ErrNotFound).WithDetails("canvasId", canvasID)
		}
		return nil, errors.Internal("failed to load canvas", err)
	}
	if ownerID != userID {
		return nil, errors.NewDomainError("CANVAS_NOT_FOUND", "canvas not found", errors.ErrNotFound).WithDetails("canvasId", canvasID)
	}

	nodes, err := r.loadNodes(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	handles, err := r.loadHandles(ctx, canvasID)
	if err != nil {
		return nil, err
	}
	edges, err := r.loadEdges(ctx, canvasID)
	if err != nil {
		return nil, err
	}

	return &canvas.Snapshot{
		Canvas:  canvas.Canvas{ID: canvasID, UserID: userID},
		Nodes:   nodes,
		Edges:   edges,
		Handles: handles,
	}, nil
}

func (r *CanvasRepository) loadNodes(ctx context.Context, canvasID string) ([]canvas.Node, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, name, config, result, is_dirty
		FROM nodes WHERE canvas_id = $1
		ORDER BY created_at ASC
	`, canvasID)
	if err != nil {
		return nil, errors.Internal("failed to load nodes", err)
	}
	defer rows.Close()

	nodes := make([]canvas.Node, 0)
	for rows.Next() {
		var n canvas.Node
		var nodeType string
		var configJSON, resultJSON []byte
		if err := rows.Scan(&n.ID, &nodeType, &n.Name, &configJSON, &resultJSON, &n.IsDirty); err != nil {
			return nil, errors.Internal("failed to scan node", err)
		}
		n.Type = canvas.NodeType(nodeType)
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &n.Config); err != nil {
				return nil, errors.Internal("failed to unmarshal node config", err)
			}
		}
		if len(resultJSON) > 0 {
			if err := json.Unmarshal(resultJSON, &n.Result); err != nil {
				return nil, errors.Internal("failed to unmarshal node result", err)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (r *CanvasRepository) loadHandles(ctx context.Context, canvasID string) ([]canvas.Handle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.id, h.node_id, h.type, h.data_types, h.label, h.order_idx, h.required
		FROM handles h
		JOIN nodes n ON n.id = h.node_id
		WHERE n.canvas_id = $1
	`, canvasID)
	if err != nil {
		return nil, errors.Internal("failed to load handles", err)
	}
	defer rows.Close()

	handles := make([]canvas.Handle, 0)
	for rows.Next() {
		var h canvas.Handle
		var handleType string
		var dataTypes []string
		if err := rows.Scan(&h.ID, &h.NodeID, &handleType, &dataTypes, &h.Label, &h.Order, &h.Required); err != nil {
			return nil, errors.Internal("failed to scan handle", err)
		}
		h.Type = canvas.HandleType(handleType)
		h.DataTypes = make([]canvas.DataType, len(dataTypes))
		for i, dt := range dataTypes {
			h.DataTypes[i] = canvas.DataType(dt)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (r *CanvasRepository) loadEdges(ctx context.Context, canvasID string) ([]canvas.Edge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, source_handle_id, target, target_handle_id
		FROM edges WHERE canvas_id = $1
	`, canvasID)
	if err != nil {
		return nil, errors.Internal("failed to load edges", err)
	}
	defer rows.Close()

	edges := make([]canvas.Edge, 0)
	for rows.Next() {
		var e canvas.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.SourceHandleID, &e.Target, &e.TargetHandleID); err != nil {
			return nil, errors.Internal("failed to scan edge", err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// FindNodeByID implements the node half of scheduler.Persistence's DB
// sanity check (spec.md §4.2 executeNode step 3).
func (r *CanvasRepository) FindNodeByID(ctx context.Context, canvasID, nodeID string) (*canvas.Node, error) {
	var n canvas.Node
	var nodeType string
	var configJSON, resultJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, type, name, config, result, is_dirty
		FROM nodes WHERE canvas_id = $1 AND id = $2
	`, canvasID, nodeID).Scan(&n.ID, &nodeType, &n.Name, &configJSON, &resultJSON, &n.IsDirty)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Internal("failed to find node", err)
	}
	n.Type = canvas.NodeType(nodeType)
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &n.Config); err != nil {
			return nil, errors.Internal("failed to unmarshal node config", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &n.Result); err != nil {
			return nil, errors.Internal("failed to unmarshal node result", err)
		}
	}
	return &n, nil
}

// UpdateNodeResult writes a non-transient node's result into its row.
// "Not found" is reported via errors.ErrNotFound so the scheduler can
// swallow it (spec.md §4.2 executeNode step 7).
func (r *CanvasRepository) UpdateNodeResult(ctx context.Context, canvasID, nodeID string, result *canvas.NodeResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return errors.Internal("failed to marshal node result", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE nodes SET result = $1, is_dirty = FALSE, updated_at = NOW()
		WHERE canvas_id = $2 AND id = $3
	`, resultJSON, canvasID, nodeID)
	if err != nil {
		return errors.Internal("failed to update node result", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("node", nodeID)
	}
	return nil
}

// FindTemplateByType loads the canonical template for a node type.
func (r *CanvasRepository) FindTemplateByType(ctx context.Context, nodeType canvas.NodeType) (*canvas.Template, error) {
	var tmpl canvas.Template
	var handlesJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT type, is_transient, is_terminal, handles FROM templates WHERE type = $1
	`, string(nodeType)).Scan(&tmpl.Type, &tmpl.IsTransient, &tmpl.IsTerminal, &handlesJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("template", string(nodeType))
		}
		return nil, errors.Internal("failed to find template", err)
	}
	if len(handlesJSON) > 0 {
		if err := json.Unmarshal(handlesJSON, &tmpl.Handles); err != nil {
			return nil, errors.Internal("failed to unmarshal template handles", err)
		}
	}
	return &tmpl, nil
}
