package dto

import "time"

// RunBatchRequest is the body of POST /canvases/:canvas_id/runs. An empty
// NodeIDs defaults the batch to every node in the canvas (spec.md §4.2).
type RunBatchRequest struct {
	NodeIDs []string `json:"node_ids,omitempty"`
}

// TaskSummary is the per-task projection embedded in a batch response.
type TaskSummary struct {
	ID         string     `json:"id"`
	NodeID     string     `json:"node_id"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMs int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

// BatchResponse is the shape returned by both the synchronous run endpoint
// and the batch-status polling endpoint.
type BatchResponse struct {
	BatchID    string        `json:"batch_id"`
	CanvasID   string        `json:"canvas_id"`
	UserID     string        `json:"user_id"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Tasks      []TaskSummary `json:"tasks"`
}

// ListBatchesResponse wraps a page of a canvas's batch history.
type ListBatchesResponse struct {
	Batches []BatchResponse `json:"batches"`
}
