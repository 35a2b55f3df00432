package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ChoiceOptionCount is the number of options an authored multiple-choice
// question carries. Questions with a different option count are delivered
// without option shuffling.
const ChoiceOptionCount = 4

// Question is a single authored question inside a test's bank.
type Question struct {
	ID            uuid.UUID `json:"id"`
	BankID        uuid.UUID `json:"bank_id"`
	Prompt        string    `json:"prompt"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Weight        int       `json:"weight"`
}

// Validate checks the authoring invariants: at least one option and a
// correct-option index that points inside the option list.
func (q *Question) Validate() error {
	if len(q.Options) == 0 {
		return fmt.Errorf("question %s: no options", q.ID)
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return fmt.Errorf("question %s: correct option %d out of range [0,%d)", q.ID, q.CorrectOption, len(q.Options))
	}
	return nil
}

// EffectiveWeight returns the question's mark value, defaulting to 1 when
// the authored weight is missing or non-positive.
func (q *Question) EffectiveWeight() int {
	if q.Weight < 1 {
		return 1
	}
	return q.Weight
}
