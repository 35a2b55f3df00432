// Package scoring grades a completed attempt against its frozen delivered
// question set.
package scoring

import (
	"errors"
	"math"

	"github.com/talentsift/assesshub-backend/internal/model"
)

// ErrInvalidAttempt means scoring was invoked with zero delivered questions.
// The selector refuses to start sessions on an empty pool, so hitting this
// is a programming-invariant violation rather than a user-facing condition.
var ErrInvalidAttempt = errors.New("attempt has no delivered questions")

// Result is the outcome of grading one attempt.
type Result struct {
	Percent int  `json:"percent"`
	Correct int  `json:"correct"`
	Total   int  `json:"total"`
	Passed  bool `json:"passed"`
}

// Score compares the sparse answers map against the delivered question set.
// A position is correct iff an answer exists there and equals the delivered
// (already remapped) correct option; unanswered and cleared positions score
// as incorrect. Pure: identical inputs always yield identical results.
func Score(delivered []model.DeliveredQuestion, answers map[int]int, passingPercent int) (Result, error) {
	if len(delivered) == 0 {
		return Result{}, ErrInvalidAttempt
	}

	correct := 0
	for i, q := range delivered {
		if chosen, ok := answers[i]; ok && chosen == q.CorrectOption {
			correct++
		}
	}

	percent := int(math.Round(100 * float64(correct) / float64(len(delivered))))
	return Result{
		Percent: percent,
		Correct: correct,
		Total:   len(delivered),
		Passed:  percent >= passingPercent,
	}, nil
}
