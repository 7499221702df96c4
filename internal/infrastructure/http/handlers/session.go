package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/duragraph/duragraph/internal/application/service"
	"github.com/duragraph/duragraph/internal/domain/session"
	"github.com/duragraph/duragraph/internal/infrastructure/http/dto"
)

// SessionHandler handles session-store HTTP requests (spec.md §4.4/§6).
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create handles POST /sessions/:app/:user/:session_id.
func (h *SessionHandler) Create(c echo.Context) error {
	var req dto.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	}

	sess, err := h.sessions.Create(c.Request().Context(), c.Param("app"), c.Param("user"), c.Param("session_id"), req.InitialState)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// Get handles GET /sessions/:app/:user/:session_id.
func (h *SessionHandler) Get(c echo.Context) error {
	sess, err := h.sessions.Get(c.Request().Context(), c.Param("app"), c.Param("user"), c.Param("session_id"), session.GetFilter{})
	if err != nil {
		return err
	}
	if sess == nil {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "SESSION_NOT_FOUND", Message: "session not found"})
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// List handles GET /sessions/:app/:user.
func (h *SessionHandler) List(c echo.Context) error {
	summaries, err := h.sessions.List(c.Request().Context(), c.Param("app"), c.Param("user"))
	if err != nil {
		return err
	}

	resp := dto.ListSessionsResponse{Sessions: make([]dto.SessionSummaryResponse, len(summaries))}
	for i, s := range summaries {
		resp.Sessions[i] = dto.SessionSummaryResponse{ID: s.ID, AppName: s.AppName, UserID: s.UserID, LastUpdateTime: s.LastUpdateTime}
	}
	return c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /sessions/:app/:user/:session_id.
func (h *SessionHandler) Delete(c echo.Context) error {
	if err := h.sessions.Delete(c.Request().Context(), c.Param("app"), c.Param("user"), c.Param("session_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AppendEvent handles POST /sessions/:app/:user/:session_id/events.
func (h *SessionHandler) AppendEvent(c echo.Context) error {
	var req dto.AppendEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	}

	event, err := h.sessions.AppendEvent(c.Request().Context(), c.Param("app"), c.Param("user"), c.Param("session_id"), req.StateDelta)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.SessionEventResponse{
		ID:         event.ID,
		StateDelta: event.Actions.StateDelta,
		OccurredAt: event.OccurredAt,
	})
}

func toSessionResponse(sess *session.Session) dto.SessionResponse {
	events := make([]dto.SessionEventResponse, len(sess.Events))
	for i, e := range sess.Events {
		events[i] = dto.SessionEventResponse{ID: e.ID, StateDelta: e.Actions.StateDelta, OccurredAt: e.OccurredAt}
	}
	return dto.SessionResponse{
		ID:             sess.ID,
		AppName:        sess.AppName,
		UserID:         sess.UserID,
		State:          sess.State,
		Events:         events,
		LastUpdateTime: sess.LastUpdateTime,
	}
}
