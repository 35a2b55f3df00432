// Package delivery selects and shuffles the question set served to one
// attempt. Its output is frozen onto the attempt at session start and never
// recomputed, which is what makes scoring reproducible.
package delivery

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/talentsift/assesshub-backend/internal/model"
)

// ErrNoQuestionsAvailable means the test's eligible pool is empty. The
// caller must not start a session.
var ErrNoQuestionsAvailable = errors.New("no questions available for delivery")

// Selector produces per-attempt delivered question sets. The randomness
// source is injectable so tests can pin a seed; production uses a
// time-seeded source. A Selector is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector with a time-seeded randomness source.
func NewSelector() *Selector {
	return NewSelectorWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSelectorWithRand creates a Selector with the given randomness source.
func NewSelectorWithRand(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

// SelectDelivery builds the ordered question sequence for one attempt:
// an unbiased permutation of the eligible pool truncated to the resolved
// display count, with per-question option shuffling when enabled.
func (s *Selector) SelectDelivery(test *model.TestDefinition) ([]model.DeliveredQuestion, error) {
	pool := test.EligiblePool()
	if len(pool) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	n := test.ResolvedQuestionsToShow(len(pool))

	s.mu.Lock()
	defer s.mu.Unlock()

	// Fisher-Yates over the full pool, then take a prefix. Shuffling the
	// whole pool instead of sampling keeps the subset selection unbiased.
	shuffled := make([]model.Question, len(pool))
	copy(shuffled, pool)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	delivered := make([]model.DeliveredQuestion, 0, n)
	for _, q := range shuffled[:n] {
		delivered = append(delivered, s.deliverQuestion(&q, test.ShuffleOptions))
	}
	return delivered, nil
}

// deliverQuestion freezes one question for delivery. Option shuffling only
// applies to questions with exactly ChoiceOptionCount options; anything else
// passes through unchanged. The correct index is remapped so the semantic
// answer never changes, only its position.
func (s *Selector) deliverQuestion(q *model.Question, shuffle bool) model.DeliveredQuestion {
	d := model.DeliveredQuestion{
		SourceID:      q.ID,
		Prompt:        q.Prompt,
		Options:       append([]string(nil), q.Options...),
		CorrectOption: q.CorrectOption,
		Weight:        q.EffectiveWeight(),
	}

	if !shuffle || len(q.Options) != model.ChoiceOptionCount {
		return d
	}

	perm := s.rng.Perm(model.ChoiceOptionCount)
	options := make([]string, model.ChoiceOptionCount)
	for newPos, oldPos := range perm {
		options[newPos] = q.Options[oldPos]
		if oldPos == q.CorrectOption {
			d.CorrectOption = newPos
		}
	}
	d.Options = options
	return d
}
