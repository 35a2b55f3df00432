package session

import (
	"github.com/google/uuid"
)

// SnapshotQuestion is a delivered question as exposed for rendering: the
// correct option index is withheld.
type SnapshotQuestion struct {
	Position int      `json:"position"`
	SourceID string   `json:"source_id"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Weight   int      `json:"weight"`
}

// Snapshot is the read-only projection of a session for the surrounding UI:
// time remaining, violation count, current question, recorded answers, and
// the result once completed.
type Snapshot struct {
	TestID           uuid.UUID          `json:"test_id"`
	AttemptID        *uuid.UUID         `json:"attempt_id,omitempty"`
	State            State              `json:"state"`
	RemainingSeconds int                `json:"remaining_seconds"`
	CurrentPosition  int                `json:"current_position"`
	ViolationCount   int                `json:"violation_count"`
	Blocked          bool               `json:"blocked"`
	Questions        []SnapshotQuestion `json:"questions,omitempty"`
	Answers          map[int]int        `json:"answers,omitempty"`
	ScorePercent     *int               `json:"score_percent,omitempty"`
	Passed           *bool              `json:"passed,omitempty"`
}

// Snapshot builds the current projection. The returned value shares nothing
// mutable with the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		TestID:           c.test.ID,
		State:            c.state,
		RemainingSeconds: c.remaining,
		CurrentPosition:  c.current,
		ViolationCount:   c.monitor.Violations(),
		Blocked:          c.monitor.Blocked(),
	}

	if c.attempt == nil {
		return snap
	}

	id := c.attempt.ID
	snap.AttemptID = &id
	snap.ScorePercent = c.attempt.ScorePercent
	if c.attempt.ScorePercent != nil {
		passed := *c.attempt.ScorePercent >= c.test.PassingScorePercent
		snap.Passed = &passed
	}

	snap.Questions = make([]SnapshotQuestion, 0, len(c.attempt.DeliveredQuestions))
	for i, q := range c.attempt.DeliveredQuestions {
		snap.Questions = append(snap.Questions, SnapshotQuestion{
			Position: i,
			SourceID: q.SourceID.String(),
			Prompt:   q.Prompt,
			Options:  append([]string(nil), q.Options...),
			Weight:   q.Weight,
		})
	}

	snap.Answers = make(map[int]int, len(c.attempt.Answers))
	for pos, opt := range c.attempt.Answers {
		snap.Answers[pos] = opt
	}
	return snap
}
