package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/duragraph/duragraph/internal/application/service"
	"github.com/duragraph/duragraph/internal/domain/run"
	"github.com/duragraph/duragraph/internal/infrastructure/http/dto"
)

// SchedulerHandler handles canvas-run HTTP requests (spec.md §6).
type SchedulerHandler struct {
	scheduler *service.SchedulerService
}

// NewSchedulerHandler creates a new SchedulerHandler.
func NewSchedulerHandler(scheduler *service.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// currentUserID reads the authenticated user set by middleware.OptionalAuth,
// falling back to a header for unauthenticated deployments/tests.
func currentUserID(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return uid
	}
	return c.Request().Header.Get("X-User-ID")
}

// RunBatch handles POST /canvases/:canvas_id/runs.
func (h *SchedulerHandler) RunBatch(c echo.Context) error {
	canvasID := c.Param("canvas_id")
	if canvasID == "" {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "canvas_id is required in path"})
	}

	var req dto.RunBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	}

	batch, tasks, err := h.scheduler.RunBatch(c.Request().Context(), canvasID, currentUserID(c), req.NodeIDs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBatchResponse(batch, tasks))
}

// GetBatch handles GET /canvases/:canvas_id/runs/:batch_id.
func (h *SchedulerHandler) GetBatch(c echo.Context) error {
	batchID := c.Param("batch_id")
	batch, tasks, err := h.scheduler.GetBatch(c.Request().Context(), batchID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBatchResponse(batch, tasks))
}

// ListBatches handles GET /canvases/:canvas_id/runs.
func (h *SchedulerHandler) ListBatches(c echo.Context) error {
	canvasID := c.Param("canvas_id")
	limit, offset := pageParams(c)

	batches, err := h.scheduler.ListBatches(c.Request().Context(), canvasID, limit, offset)
	if err != nil {
		return err
	}

	resp := dto.ListBatchesResponse{Batches: make([]dto.BatchResponse, len(batches))}
	for i, b := range batches {
		resp.Batches[i] = toBatchResponse(b, nil)
	}
	return c.JSON(http.StatusOK, resp)
}

func pageParams(c echo.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func toBatchResponse(b *run.Batch, tasks []*run.Task) dto.BatchResponse {
	resp := dto.BatchResponse{
		BatchID:    b.ID(),
		CanvasID:   b.CanvasID(),
		UserID:     b.UserID(),
		CreatedAt:  b.CreatedAt(),
		FinishedAt: b.FinishedAt(),
		Tasks:      make([]dto.TaskSummary, len(tasks)),
	}
	for i, t := range tasks {
		resp.Tasks[i] = dto.TaskSummary{
			ID:         t.ID(),
			NodeID:     t.NodeID(),
			Status:     string(t.Status()),
			StartedAt:  t.StartedAt(),
			FinishedAt: t.FinishedAt(),
			DurationMs: t.DurationMs(),
			Error:      t.Error(),
		}
	}
	return resp
}
