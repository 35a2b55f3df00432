package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the lifecycle states of a candidate attempt.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "NOT_STARTED"
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
	AttemptStatusAbandoned  AttemptStatus = "ABANDONED"
)

// Terminal reports whether the status forbids any further mutation.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusAbandoned
}

// DeliveredQuestion is the frozen, per-attempt form of a question: already
// selected from the eligible pool and, when enabled, with its options
// reordered and the correct index remapped. It is persisted verbatim with
// the attempt so grading can be replayed without re-running the shuffle.
type DeliveredQuestion struct {
	SourceID      uuid.UUID `json:"source_id"`
	Prompt        string    `json:"prompt"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Weight        int       `json:"weight"`
}

// Attempt is one candidate's single run through a test. The delivered
// question set is immutable once frozen at session start; answers is a
// sparse map from delivered position to chosen option index.
type Attempt struct {
	ID                 uuid.UUID           `json:"id"`
	TestID             uuid.UUID           `json:"test_id"`
	CandidateID        int                 `json:"candidate_id"`
	Status             AttemptStatus       `json:"status"`
	DeliveredQuestions []DeliveredQuestion `json:"delivered_questions"`
	Answers            map[int]int         `json:"answers"`
	ViolationCount     int                 `json:"violation_count"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	ScorePercent       *int                `json:"score_percent,omitempty"`
}

// ResolveCapabilitiesRequest reports the outcome of the camera/microphone
// prompt over REST. The WebSocket stream carries the same signal for
// proctored clients.
type ResolveCapabilitiesRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// ViolationKind labels an integrity signal recorded against an attempt.
type ViolationKind string

const (
	ViolationVisibilityLoss ViolationKind = "VISIBILITY_LOSS"
)
