package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentsift/assesshub-backend/internal/delivery"
	"github.com/talentsift/assesshub-backend/internal/middleware"
	"github.com/talentsift/assesshub-backend/internal/model"
	"github.com/talentsift/assesshub-backend/internal/repository"
	"github.com/talentsift/assesshub-backend/internal/response"
	"github.com/talentsift/assesshub-backend/internal/service"
	"github.com/talentsift/assesshub-backend/internal/session"
	"github.com/talentsift/assesshub-backend/internal/validator"
)

// SessionHandler handles candidate-facing session endpoints. Live input and
// environment signals travel over the WebSocket stream; these endpoints cover
// session bootstrap, snapshots and the persistence retry path.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartSession godoc
// POST /api/v1/candidate/tests/:test_id/session
// Creates a session for the candidate (idempotent: an existing live session
// is returned instead of a second one).
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctrl, err := h.sessionService.StartSession(c.Request.Context(), testID, claims.CandidateID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestNotOpen):
			response.Fail(c, http.StatusForbidden, response.ErrTestNotOpen)
		case errors.Is(err, delivery.ErrNoQuestionsAvailable):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, ctrl.Snapshot())
}

// ResolveCapabilities godoc
// POST /api/v1/candidate/tests/:test_id/session/capabilities
// Resolves the media prompt over REST. A grant through this endpoint carries
// no stream handle; proctored clients use the WebSocket path so release
// events reach the browser.
func (h *SessionHandler) ResolveCapabilities(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	var req model.ResolveCapabilitiesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !*req.Granted {
		if err := ctrl.DenyCapabilities(); err != nil && !errors.Is(err, session.ErrCapabilityDenied) {
			response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
			return
		}
		response.Fail(c, http.StatusForbidden, response.ErrCapabilityDenied)
		return
	}

	if err := ctrl.GrantCapabilities(c.Request.Context(), nil); err != nil {
		switch {
		case errors.Is(err, delivery.ErrNoQuestionsAvailable):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		case errors.Is(err, session.ErrInvalidTransition):
			response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
		case errors.Is(err, session.ErrPersistence):
			response.Fail(c, http.StatusServiceUnavailable, response.ErrPersistenceFailed)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusOK, ctrl.Snapshot())
}

// GetSnapshot godoc
// GET /api/v1/candidate/tests/:test_id/session
// Returns the live session projection for rendering.
func (h *SessionHandler) GetSnapshot(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, ctrl.Snapshot())
}

// Submit godoc
// POST /api/v1/candidate/tests/:test_id/session/submit
// Explicit finish over REST; a fallback for clients whose stream dropped.
func (h *SessionHandler) Submit(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	if err := ctrl.Submit(c.Request.Context()); err != nil {
		h.failSubmission(c, err)
		return
	}
	response.Success(c, http.StatusOK, ctrl.Snapshot())
}

// RetryCompletion godoc
// POST /api/v1/candidate/tests/:test_id/session/retry
// Re-attempts the completion write after a persistence failure, reusing the
// result already scored in memory.
func (h *SessionHandler) RetryCompletion(c *gin.Context) {
	ctrl, ok := h.liveSession(c)
	if !ok {
		return
	}

	if err := ctrl.RetryCompletion(c.Request.Context()); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
			return
		}
		h.failSubmission(c, err)
		return
	}
	response.Success(c, http.StatusOK, ctrl.Snapshot())
}

// Abandon godoc
// DELETE /api/v1/candidate/tests/:test_id/session
// Tears the session down; an in-flight attempt is marked abandoned.
func (h *SessionHandler) Abandon(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	h.sessionService.Teardown(testID, claims.CandidateID)
	response.Success(c, http.StatusOK, gin.H{"status": "closed"})
}

// ListAttempts godoc
// GET /api/v1/candidate/attempts
// Returns the candidate's persisted attempt history.
func (h *SessionHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.sessionService.ListAttempts(c.Request.Context(), claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// liveSession resolves claims, the test ID and the registered controller,
// writing the failure response itself when any step misses.
func (h *SessionHandler) liveSession(c *gin.Context) (*session.Controller, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	ctrl, err := h.sessionService.GetSession(testID, claims.CandidateID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return nil, false
	}
	return ctrl, true
}

// failSubmission maps submit/retry failures to response codes. On a
// persistence failure the controller has already queued the scored result
// durably; the client only needs to know it can retry.
func (h *SessionHandler) failSubmission(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrPersistence):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrPersistenceFailed)
	case errors.Is(err, session.ErrSessionClosed):
		response.Fail(c, http.StatusConflict, response.ErrSessionClosed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
