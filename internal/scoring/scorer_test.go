package scoring

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/talentsift/assesshub-backend/internal/model"
)

func deliveredSet(correct ...int) []model.DeliveredQuestion {
	qs := make([]model.DeliveredQuestion, 0, len(correct))
	for _, c := range correct {
		qs = append(qs, model.DeliveredQuestion{
			SourceID:      uuid.New(),
			Prompt:        "prompt",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: c,
			Weight:        1,
		})
	}
	return qs
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		delivered   []model.DeliveredQuestion
		answers     map[int]int
		passing     int
		wantPercent int
		wantPassed  bool
	}{
		{
			name:        "all correct",
			delivered:   deliveredSet(0, 3),
			answers:     map[int]int{0: 0, 1: 3},
			passing:     50,
			wantPercent: 100,
			wantPassed:  true,
		},
		{
			name:        "one correct one unanswered meets threshold",
			delivered:   deliveredSet(0, 3),
			answers:     map[int]int{0: 0},
			passing:     50,
			wantPercent: 50,
			wantPassed:  true,
		},
		{
			name:        "all wrong",
			delivered:   deliveredSet(0, 3),
			answers:     map[int]int{0: 1, 1: 2},
			passing:     50,
			wantPercent: 0,
			wantPassed:  false,
		},
		{
			name:        "no answers at all",
			delivered:   deliveredSet(0, 1, 2),
			answers:     nil,
			passing:     0,
			wantPercent: 0,
			wantPassed:  true,
		},
		{
			name:        "rounds to nearest",
			delivered:   deliveredSet(0, 0, 0),
			answers:     map[int]int{0: 0},
			passing:     33,
			wantPercent: 33,
			wantPassed:  true,
		},
		{
			name:        "rounds up",
			delivered:   deliveredSet(0, 0, 0),
			answers:     map[int]int{0: 0, 1: 0},
			passing:     67,
			wantPercent: 67,
			wantPassed:  true,
		},
		{
			name:        "answer out of agreement scores wrong not panics",
			delivered:   deliveredSet(2),
			answers:     map[int]int{0: 9},
			passing:     1,
			wantPercent: 0,
			wantPassed:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Score(tc.delivered, tc.answers, tc.passing)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got.Percent != tc.wantPercent {
				t.Errorf("percent = %d, want %d", got.Percent, tc.wantPercent)
			}
			if got.Passed != tc.wantPassed {
				t.Errorf("passed = %t, want %t", got.Passed, tc.wantPassed)
			}
			if got.Total != len(tc.delivered) {
				t.Errorf("total = %d, want %d", got.Total, len(tc.delivered))
			}
		})
	}
}

func TestScore_EmptyDelivered(t *testing.T) {
	_, err := Score(nil, map[int]int{}, 50)
	if !errors.Is(err, ErrInvalidAttempt) {
		t.Fatalf("err = %v, want ErrInvalidAttempt", err)
	}
}

func TestScore_Deterministic(t *testing.T) {
	delivered := deliveredSet(1, 2, 3, 0)
	answers := map[int]int{0: 1, 2: 3, 3: 0}

	first, err := Score(delivered, answers, 75)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	second, err := Score(delivered, answers, 75)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if first != second {
		t.Fatalf("same inputs scored differently: %+v vs %+v", first, second)
	}
}

func TestScore_UnansweredNeverCountsCorrect(t *testing.T) {
	delivered := deliveredSet(0, 1, 2, 3)
	got, err := Score(delivered, map[int]int{1: 1}, 100)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got.Correct != 1 {
		t.Fatalf("correct = %d, want 1 (missing positions must not contribute)", got.Correct)
	}
}
