package model

import (
	"time"

	"github.com/google/uuid"
)

// TestDefinition describes a published skill assessment: its question bank,
// the approved subset eligible for delivery, and the session parameters.
type TestDefinition struct {
	ID                  uuid.UUID   `json:"id"`
	Title               string      `json:"title"`
	QuestionBank        []Question  `json:"question_bank"`
	ApprovedQuestionIDs []uuid.UUID `json:"approved_question_ids,omitempty"`
	QuestionsToShow     int         `json:"questions_to_show"`
	ShuffleOptions      bool        `json:"shuffle_options"`
	DurationMinutes     int         `json:"duration_minutes"`
	PassingScorePercent int         `json:"passing_score_percent"`
	OpensAt             *time.Time  `json:"opens_at,omitempty"`
	ClosesAt            *time.Time  `json:"closes_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// EligiblePool returns the questions permitted for delivery. When an approval
// list exists the bank is filtered to it; an empty approval list falls back to
// the full flat bank (legacy tests authored before the approval model).
func (t *TestDefinition) EligiblePool() []Question {
	if len(t.ApprovedQuestionIDs) == 0 {
		return t.QuestionBank
	}

	approved := make(map[uuid.UUID]struct{}, len(t.ApprovedQuestionIDs))
	for _, id := range t.ApprovedQuestionIDs {
		approved[id] = struct{}{}
	}

	pool := make([]Question, 0, len(t.ApprovedQuestionIDs))
	for _, q := range t.QuestionBank {
		if _, ok := approved[q.ID]; ok {
			pool = append(pool, q)
		}
	}
	return pool
}

// ResolvedQuestionsToShow clamps the configured display count to the eligible
// pool size. Zero or negative means "deliver the full pool".
func (t *TestDefinition) ResolvedQuestionsToShow(poolSize int) int {
	if t.QuestionsToShow <= 0 || t.QuestionsToShow > poolSize {
		return poolSize
	}
	return t.QuestionsToShow
}

// IsOpen reports whether the test accepts new sessions at the given instant.
// Absent bounds mean open now / open indefinitely.
func (t *TestDefinition) IsOpen(now time.Time) bool {
	if t.OpensAt != nil && now.Before(*t.OpensAt) {
		return false
	}
	if t.ClosesAt != nil && now.After(*t.ClosesAt) {
		return false
	}
	return true
}
