package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/talentsift/assesshub-backend/internal/delivery"
	"github.com/talentsift/assesshub-backend/internal/middleware"
	"github.com/talentsift/assesshub-backend/internal/service"
	"github.com/talentsift/assesshub-backend/internal/session"
	ws "github.com/talentsift/assesshub-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn wraps a WebSocket connection with a write mutex so the read loop
// and the controller's terminal callback can both push events safely.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = ws.WriteError(w.conn, msg)
}

// wsMediaStream is the controller's handle on the client's camera and
// microphone. Stop pushes a release event; the browser owns the actual
// tracks, so release is an instruction, not an RPC.
type wsMediaStream struct {
	conn *wsConn
	log  zerolog.Logger
}

func (m *wsMediaStream) Stop() {
	if err := m.conn.write(ws.ReleaseMediaResponse{Event: ws.EventReleaseMedia}); err != nil {
		m.log.Debug().Err(err).Msg("Media release push failed, client likely gone")
	}
}

// WSHandler handles WebSocket session streaming.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidate/tests/:test_id/stream
// Upgrades to WebSocket and relays candidate input, environment signals and
// the capability grant into the session controller.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer rawConn.Close()
	conn := &wsConn{conn: rawConn}

	ctrl, err := h.sessionService.GetSession(testID, claims.CandidateID)
	if err != nil {
		conn.writeError("no active session for this test")
		return
	}

	wsLog := h.log.With().
		Int("candidate_id", claims.CandidateID).
		Str("test_id", testID.String()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	h.pushState(conn, ctrl)

	for {
		raw, err := ws.ReadRaw(rawConn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := decode(raw, &envelope); err != nil {
			conn.writeError("malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, ctrl, raw)
		case ws.ActionClearAnswer:
			h.handleClearAnswer(conn, ctrl, raw)
		case ws.ActionNavigate:
			h.handleNavigate(conn, ctrl, raw)
		case ws.ActionVisibility:
			h.handleVisibility(c.Request.Context(), conn, ctrl, raw)
		case ws.ActionFullscreen:
			h.handleFullscreen(conn, ctrl, raw)
		case ws.ActionMedia:
			h.handleMedia(c.Request.Context(), conn, ctrl, raw, wsLog)
		case ws.ActionSubmit:
			h.handleSubmit(c.Request.Context(), conn, ctrl, wsLog)
		case ws.ActionPing:
			_ = conn.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			conn.writeError("unknown action: " + string(envelope.Action))
		}
	}
}

// handleMedia resolves the capability prompt. A grant hands the controller a
// media handle bound to this connection; a denial keeps the session waiting
// so the candidate may retry.
func (h *WSHandler) handleMedia(ctx context.Context, conn *wsConn, ctrl *session.Controller, raw []byte, wsLog zerolog.Logger) {
	var msg ws.MediaRequest
	if err := decode(raw, &msg); err != nil {
		conn.writeError("malformed media message")
		return
	}

	if !msg.Granted {
		if err := ctrl.DenyCapabilities(); err != nil && !errors.Is(err, session.ErrCapabilityDenied) {
			conn.writeError(wsErrorMessage(err))
			return
		}
		wsLog.Info().Msg("Capability grant denied by candidate")
		conn.writeError("camera and microphone access is required to start")
		return
	}

	media := &wsMediaStream{conn: conn, log: wsLog}
	if err := ctrl.GrantCapabilities(ctx, media); err != nil {
		conn.writeError(wsErrorMessage(err))
		return
	}
	h.pushState(conn, ctrl)
}

func (h *WSHandler) handleAnswer(conn *wsConn, ctrl *session.Controller, raw []byte) {
	var msg ws.AnswerRequest
	if err := decode(raw, &msg); err != nil {
		conn.writeError("malformed answer message")
		return
	}
	if err := ctrl.Answer(msg.Position, msg.Option); err != nil {
		h.writeControllerError(conn, ctrl, err)
		return
	}
	_ = conn.write(ws.AckResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (h *WSHandler) handleClearAnswer(conn *wsConn, ctrl *session.Controller, raw []byte) {
	var msg ws.ClearAnswerRequest
	if err := decode(raw, &msg); err != nil {
		conn.writeError("malformed clear_answer message")
		return
	}
	if err := ctrl.ClearAnswer(msg.Position); err != nil {
		h.writeControllerError(conn, ctrl, err)
		return
	}
	_ = conn.write(ws.AckResponse{Event: ws.EventSuccess, Status: "cleared"})
}

func (h *WSHandler) handleNavigate(conn *wsConn, ctrl *session.Controller, raw []byte) {
	var msg ws.NavigateRequest
	if err := decode(raw, &msg); err != nil {
		conn.writeError("malformed navigate message")
		return
	}
	if err := ctrl.Navigate(msg.Position); err != nil {
		h.writeControllerError(conn, ctrl, err)
		return
	}
	_ = conn.write(ws.AckResponse{Event: ws.EventSuccess, Status: "ok"})
}

func (h *WSHandler) handleVisibility(ctx context.Context, conn *wsConn, ctrl *session.Controller, raw []byte) {
	var msg ws.VisibilityRequest
	if err := decode(raw, &msg); err != nil {
		conn.writeError("malformed visibility message")
		return
	}
	// Only transitions into hidden count; returning to the tab is not an
	// integrity event.
	if msg.Hidden {
		ctrl.ReportVisibilityLoss(ctx)
	}
	snap := ctrl.Snapshot()
	_ = conn.write(ws.StateResponse{
		Event:            ws.EventState,
		State:            string(snap.State),
		Position:         snap.CurrentPosition,
		RemainingSeconds: snap.RemainingSeconds,
		ViolationCount:   snap.ViolationCount,
	})
}

func (h *WSHandler) handleFullscreen(conn *wsConn, ctrl *session.Controller, raw []byte) {
	var msg ws.FullscreenRequest
	if err := decode(raw, &msg); err != nil {
		conn.writeError("malformed fullscreen message")
		return
	}
	ctrl.ReportFullscreen(msg.Exited)
	_ = conn.write(ws.BlockedResponse{Event: ws.EventBlocked, Blocked: ctrl.Snapshot().Blocked})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *wsConn, ctrl *session.Controller, wsLog zerolog.Logger) {
	if err := ctrl.Submit(ctx); err != nil {
		if errors.Is(err, session.ErrPersistence) {
			// The controller has scored the result and queued it durably;
			// the client can retry the completion write.
			conn.writeError("result could not be saved yet, retry shortly")
			return
		}
		h.writeControllerError(conn, ctrl, err)
		return
	}

	snap := ctrl.Snapshot()
	graded := ws.GradedResponse{Event: ws.EventGraded}
	if snap.ScorePercent != nil {
		graded.ScorePercent = *snap.ScorePercent
	}
	if snap.Passed != nil {
		graded.Passed = *snap.Passed
	}
	wsLog.Info().Int("score", graded.ScorePercent).Msg("Attempt submitted and graded")
	_ = conn.write(graded)
}

// pushState sends the full snapshot, including the delivered questions
// without their correct indices.
func (h *WSHandler) pushState(conn *wsConn, ctrl *session.Controller) {
	snap := ctrl.Snapshot()
	resp := ws.StateResponse{
		Event:            ws.EventState,
		State:            string(snap.State),
		Position:         snap.CurrentPosition,
		RemainingSeconds: snap.RemainingSeconds,
		ViolationCount:   snap.ViolationCount,
		Answers:          snap.Answers,
	}
	for _, q := range snap.Questions {
		resp.Questions = append(resp.Questions, ws.StateQuestion{Prompt: q.Prompt, Options: q.Options})
	}
	_ = conn.write(resp)
}

func (h *WSHandler) writeControllerError(conn *wsConn, ctrl *session.Controller, err error) {
	if errors.Is(err, session.ErrInteractionBlocked) {
		_ = conn.write(ws.BlockedResponse{Event: ws.EventBlocked, Blocked: true})
		return
	}
	conn.writeError(wsErrorMessage(err))
}

func decode(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

// wsErrorMessage maps controller and delivery errors to client-facing text.
func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidPosition):
		return "question position out of range"
	case errors.Is(err, session.ErrInvalidOption):
		return "option index out of range"
	case errors.Is(err, session.ErrSessionClosed):
		return "session is no longer accepting input"
	case errors.Is(err, session.ErrInvalidTransition):
		return "action not valid in the current state"
	case errors.Is(err, delivery.ErrNoQuestionsAvailable):
		return "no questions are available for this test"
	case errors.Is(err, session.ErrInvalidDuration):
		return "this test has no running time configured"
	case errors.Is(err, session.ErrPersistence):
		return "a storage error occurred, retry shortly"
	default:
		return "internal error"
	}
}
