package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer      Action = "answer"
	ActionClearAnswer Action = "clear_answer"
	ActionNavigate    Action = "navigate"
	ActionVisibility  Action = "visibility"
	ActionFullscreen  Action = "fullscreen"
	ActionMedia       Action = "media"
	ActionSubmit      Action = "submit"
	ActionPing        Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records or overwrites the answer for one question.
type AnswerRequest struct {
	Action   Action `json:"action"`
	Position int    `json:"position"`
	Option   int    `json:"option"`
}

// ClearAnswerRequest clears the answer for one question.
type ClearAnswerRequest struct {
	Action   Action `json:"action"`
	Position int    `json:"position"`
}

// NavigateRequest moves the candidate's cursor to another question.
type NavigateRequest struct {
	Action   Action `json:"action"`
	Position int    `json:"position"`
}

// VisibilityRequest reports a tab or window visibility change.
type VisibilityRequest struct {
	Action Action `json:"action"`
	Hidden bool   `json:"hidden"`
}

// FullscreenRequest reports entering or leaving fullscreen.
type FullscreenRequest struct {
	Action Action `json:"action"`
	Exited bool   `json:"exited"`
}

// MediaRequest reports the outcome of the camera/microphone prompt.
type MediaRequest struct {
	Action  Action `json:"action"`
	Granted bool   `json:"granted"`
}

// The submit and ping actions carry no payload beyond the envelope.

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventSuccess      Event = "success"
	EventState        Event = "state"
	EventGraded       Event = "graded"
	EventBlocked      Event = "blocked"
	EventReleaseMedia Event = "release_media"
	EventPong         Event = "pong"
)

type AckResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// StateQuestion is one delivered question as the client sees it. The
// correct option index never crosses the wire.
type StateQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// StateResponse is the full session snapshot, pushed after the state
// machine advances.
type StateResponse struct {
	Event            Event           `json:"event"`
	State            string          `json:"state"`
	Questions        []StateQuestion `json:"questions,omitempty"`
	Answers          map[int]int     `json:"answers,omitempty"`
	Position         int             `json:"position"`
	RemainingSeconds int             `json:"remaining_seconds"`
	ViolationCount   int             `json:"violation_count"`
}

type GradedResponse struct {
	Event        Event `json:"event"`
	ScorePercent int   `json:"score_percent"`
	Passed       bool  `json:"passed"`
}

// BlockedResponse tells the client input is frozen until it returns to
// fullscreen.
type BlockedResponse struct {
	Event   Event `json:"event"`
	Blocked bool  `json:"blocked"`
}

// ReleaseMediaResponse tells the client to stop its camera/microphone
// tracks. Sent on every terminal transition.
type ReleaseMediaResponse struct {
	Event Event `json:"event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
