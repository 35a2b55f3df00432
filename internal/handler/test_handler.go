package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/talentsift/assesshub-backend/internal/response"
	"github.com/talentsift/assesshub-backend/internal/service"
)

// TestHandler exposes maintenance operations on test definitions for the
// authoring pipeline, which lives in a separate service.
type TestHandler struct {
	testService *service.TestService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService) *TestHandler {
	return &TestHandler{testService: testService}
}

// RefreshCache godoc
// POST /internal/v1/tests/:test_id/refresh-cache
// Drops the cached definition so the next session start re-reads it from
// PostgreSQL. Called by authoring tools after a test's bank or approval
// list changes.
func (h *TestHandler) RefreshCache(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Invalidate(c.Request.Context(), testID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "refreshed"})
}
