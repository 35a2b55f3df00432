package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentsift/assesshub-backend/internal/delivery"
	"github.com/talentsift/assesshub-backend/internal/model"
)

// fakeStore counts calls and fails a configurable number of times per
// operation before succeeding.
type fakeStore struct {
	mu            sync.Mutex
	createCalls   int
	completeCalls int
	failCreates   int
	failCompletes int
	completed     []*model.Attempt
}

func (s *fakeStore) CreateAttempt(_ context.Context, _ uuid.UUID, _ int) (uuid.UUID, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.failCreates > 0 {
		s.failCreates--
		return uuid.Nil, time.Time{}, errors.New("insert failed")
	}
	return uuid.New(), time.Now(), nil
}

func (s *fakeStore) CompleteAttempt(_ context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	if s.failCompletes > 0 {
		s.failCompletes--
		return errors.New("update failed")
	}
	copied := *a
	s.completed = append(s.completed, &copied)
	return nil
}

type fakeMedia struct {
	mu    sync.Mutex
	stops int
}

func (m *fakeMedia) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *fakeMedia) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

type fakeSink struct {
	mu    sync.Mutex
	kinds []model.ViolationKind
}

func (s *fakeSink) RecordViolation(_ context.Context, _ uuid.UUID, kind model.ViolationKind, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func testDefinition(poolSize, show, durationMinutes int) *model.TestDefinition {
	bank := make([]model.Question, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		bank = append(bank, model.Question{
			ID:            uuid.New(),
			Prompt:        "prompt",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
		})
	}
	return &model.TestDefinition{
		ID:                  uuid.New(),
		Title:               "Go fundamentals",
		QuestionBank:        bank,
		QuestionsToShow:     show,
		ShuffleOptions:      true,
		DurationMinutes:     durationMinutes,
		PassingScorePercent: 50,
	}
}

func newTestController(test *model.TestDefinition, store *fakeStore, sink ViolationSink) *Controller {
	sel := delivery.NewSelectorWithRand(rand.New(rand.NewSource(42)))
	return NewController(test, 7, sel, store, sink, zerolog.Nop())
}

func startInProgress(t *testing.T, c *Controller, media MediaStream) {
	t.Helper()
	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.GrantCapabilities(context.Background(), media); err != nil {
		t.Fatalf("GrantCapabilities: %v", err)
	}
}

func TestController_BeginRequiresNotStarted(t *testing.T) {
	c := newTestController(testDefinition(3, 0, 1), &fakeStore{}, nil)

	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.Begin(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Begin err = %v, want ErrInvalidTransition", err)
	}
	if err := c.Answer(0, 0); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Answer before grant err = %v, want ErrSessionClosed", err)
	}
}

func TestController_DenyCapabilitiesIsRecoverable(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(3, 0, 1), store, nil)

	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.DenyCapabilities(); !errors.Is(err, ErrCapabilityDenied) {
		t.Fatalf("DenyCapabilities err = %v, want ErrCapabilityDenied", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("attempt created despite denial")
	}

	// The candidate may grant on a later retry.
	if err := c.GrantCapabilities(context.Background(), &fakeMedia{}); err != nil {
		t.Fatalf("GrantCapabilities after denial: %v", err)
	}
	if c.Snapshot().State != StateInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", c.Snapshot().State)
	}
	c.Teardown()
}

func TestController_GrantFreezesDeliverySet(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(5, 2, 1), store, nil)
	media := &fakeMedia{}

	startInProgress(t, c, media)
	defer c.Teardown()

	snap := c.Snapshot()
	if len(snap.Questions) != 2 {
		t.Fatalf("delivered %d questions, want 2", len(snap.Questions))
	}
	if snap.RemainingSeconds != 60 {
		t.Fatalf("remaining = %d, want 60", snap.RemainingSeconds)
	}
	if store.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", store.createCalls)
	}
	if media.stopCount() != 0 {
		t.Fatalf("media stopped during active session")
	}
}

func TestController_GrantEmptyPoolReleasesMedia(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(&model.TestDefinition{ID: uuid.New(), DurationMinutes: 1}, store, nil)
	media := &fakeMedia{}

	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err := c.GrantCapabilities(context.Background(), media)
	if !errors.Is(err, delivery.ErrNoQuestionsAvailable) {
		t.Fatalf("err = %v, want ErrNoQuestionsAvailable", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("attempt created despite empty pool")
	}
	if media.stopCount() != 1 {
		t.Fatalf("media not released on failed start")
	}
}

func TestController_CreateRetriesOnce(t *testing.T) {
	store := &fakeStore{failCreates: 1}
	c := newTestController(testDefinition(3, 0, 1), store, nil)

	startInProgress(t, c, &fakeMedia{})
	defer c.Teardown()

	if store.createCalls != 2 {
		t.Fatalf("createCalls = %d, want 2 (one retry)", store.createCalls)
	}
}

func TestController_CreateFailsAfterRetry(t *testing.T) {
	store := &fakeStore{failCreates: 2}
	c := newTestController(testDefinition(3, 0, 1), store, nil)
	media := &fakeMedia{}

	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err := c.GrantCapabilities(context.Background(), media)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if media.stopCount() != 1 {
		t.Fatalf("media not released on failed start")
	}
	if c.Snapshot().State != StateAwaitingCapabilities {
		t.Fatalf("state = %s, want AWAITING_CAPABILITIES", c.Snapshot().State)
	}
}

func TestController_AnswerValidation(t *testing.T) {
	c := newTestController(testDefinition(2, 0, 1), &fakeStore{}, nil)
	startInProgress(t, c, &fakeMedia{})
	defer c.Teardown()

	if err := c.Answer(5, 0); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("position err = %v, want ErrInvalidPosition", err)
	}
	if err := c.Answer(0, 9); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("option err = %v, want ErrInvalidOption", err)
	}
	if err := c.Answer(0, 2); err != nil {
		t.Errorf("Answer: %v", err)
	}
	if err := c.Answer(0, 1); err != nil {
		t.Errorf("overwrite: %v", err)
	}
	if got := c.Snapshot().Answers[0]; got != 1 {
		t.Errorf("answer = %d, want overwritten value 1", got)
	}
	if err := c.ClearAnswer(0); err != nil {
		t.Errorf("ClearAnswer: %v", err)
	}
	if _, ok := c.Snapshot().Answers[0]; ok {
		t.Errorf("cleared answer still present")
	}
}

func TestController_TimerAutoSubmit(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(3, 0, 1), store, nil)
	media := &fakeMedia{}
	startInProgress(t, c, media)

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		c.Tick(ctx)
	}

	snap := c.Snapshot()
	if snap.State != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED after 60 ticks", snap.State)
	}
	if snap.ScorePercent == nil || *snap.ScorePercent != 0 {
		t.Fatalf("score = %v, want 0 for an all-unanswered attempt", snap.ScorePercent)
	}
	if store.completeCalls != 1 {
		t.Fatalf("completeCalls = %d, want exactly 1", store.completeCalls)
	}
	if media.stopCount() != 1 {
		t.Fatalf("media stops = %d, want 1", media.stopCount())
	}

	// Late ticks and input are dropped.
	c.Tick(ctx)
	if err := c.Answer(0, 0); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Answer after completion err = %v, want ErrSessionClosed", err)
	}
	if store.completeCalls != 1 {
		t.Fatalf("late tick caused a second completion")
	}
}

func TestController_SubmitRacingTimerCompletesOnce(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(3, 0, 1), store, nil)
	startInProgress(t, c, &fakeMedia{})

	ctx := context.Background()
	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := c.Submit(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("second Submit err = %v, want ErrSessionClosed", err)
	}
	c.Tick(ctx) // a queued timer fire after submit

	if store.completeCalls != 1 {
		t.Fatalf("completeCalls = %d, want exactly 1", store.completeCalls)
	}
}

func TestController_ScoresRecordedAnswers(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(4, 2, 1), store, nil)
	startInProgress(t, c, &fakeMedia{})

	// Answer both delivered questions correctly using the frozen attempt.
	attempt := c.Attempt()
	for i, q := range attempt.DeliveredQuestions {
		if err := c.Answer(i, q.CorrectOption); err != nil {
			t.Fatalf("Answer(%d): %v", i, err)
		}
	}
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	persisted := store.completed[0]
	if persisted.ScorePercent == nil || *persisted.ScorePercent != 100 {
		t.Fatalf("score = %v, want 100", persisted.ScorePercent)
	}
	if persisted.Status != model.AttemptStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", persisted.Status)
	}
	if persisted.CompletedAt == nil {
		t.Fatalf("completedAt not set")
	}
}

func TestController_PersistenceFailureRetainsResult(t *testing.T) {
	store := &fakeStore{failCompletes: 2}
	c := newTestController(testDefinition(3, 0, 1), store, nil)
	media := &fakeMedia{}
	startInProgress(t, c, media)

	ctx := context.Background()
	err := c.Submit(ctx)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Submit err = %v, want ErrPersistence", err)
	}
	if store.completeCalls != 2 {
		t.Fatalf("completeCalls = %d, want 2 (original + one retry)", store.completeCalls)
	}

	// The computed result is not discarded.
	attempt := c.Attempt()
	if attempt.ScorePercent == nil {
		t.Fatalf("score discarded after failed persistence")
	}
	if err := c.Answer(0, 0); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("input accepted while completion pending")
	}

	// Manual retry reuses the in-memory result without rescoring.
	if err := c.RetryCompletion(ctx); err != nil {
		t.Fatalf("RetryCompletion: %v", err)
	}
	if c.Snapshot().State != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED", c.Snapshot().State)
	}
	if media.stopCount() != 1 {
		t.Fatalf("media not released after retried completion")
	}
	if err := c.RetryCompletion(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("RetryCompletion on completed err = %v, want ErrInvalidTransition", err)
	}
}

func TestController_AutoSubmitPersistFailureQueuesResult(t *testing.T) {
	store := &fakeStore{failCompletes: 2}
	c := newTestController(testDefinition(3, 0, 1), store, nil)
	queued := make(chan model.Attempt, 1)
	c.OnPersistFailure = func(attempt model.Attempt) {
		queued <- attempt
	}
	startInProgress(t, c, &fakeMedia{})

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		c.Tick(ctx)
	}

	// The timer-driven submit has no caller to hand the failure to; the
	// scored result must still reach the durable fallback.
	select {
	case attempt := <-queued:
		if attempt.ScorePercent == nil || *attempt.ScorePercent != 0 {
			t.Fatalf("queued score = %v, want 0", attempt.ScorePercent)
		}
		if attempt.Status != model.AttemptStatusCompleted {
			t.Fatalf("queued status = %s, want COMPLETED", attempt.Status)
		}
		if attempt.CompletedAt == nil {
			t.Fatalf("queued attempt has no completion time")
		}
	case <-time.After(time.Second):
		t.Fatal("persist failure hook not invoked")
	}

	if store.completeCalls != 2 {
		t.Fatalf("completeCalls = %d, want 2 (original + one retry)", store.completeCalls)
	}
	if c.Snapshot().State != StateSubmitting {
		t.Fatalf("state = %s, want SUBMITTING while completion pending", c.Snapshot().State)
	}

	// The in-memory result still supports a manual retry.
	if err := c.RetryCompletion(ctx); err != nil {
		t.Fatalf("RetryCompletion: %v", err)
	}
	if c.Snapshot().State != StateCompleted {
		t.Fatalf("state = %s, want COMPLETED after retry", c.Snapshot().State)
	}
}

func TestController_GrantRejectsZeroDuration(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(3, 0, 0), store, nil)
	media := &fakeMedia{}

	if err := c.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := c.GrantCapabilities(context.Background(), media); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("attempt created for a test with no running time")
	}
	if media.stopCount() != 1 {
		t.Fatalf("media not released on rejected start")
	}
	if c.Snapshot().State != StateAwaitingCapabilities {
		t.Fatalf("state = %s, want AWAITING_CAPABILITIES", c.Snapshot().State)
	}
}

func TestController_TerminalReflectsLifecycle(t *testing.T) {
	c := newTestController(testDefinition(3, 0, 1), &fakeStore{}, nil)

	if c.Terminal() {
		t.Fatalf("fresh controller reported terminal")
	}
	startInProgress(t, c, &fakeMedia{})
	if c.Terminal() {
		t.Fatalf("in-progress controller reported terminal")
	}

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !c.Terminal() {
		t.Fatalf("completed controller not reported terminal")
	}
}

func TestController_TeardownAbandonsAndReleasesMedia(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(testDefinition(3, 0, 1), store, nil)
	media := &fakeMedia{}
	startInProgress(t, c, media)

	c.Teardown()

	snap := c.Snapshot()
	if snap.State != StateAbandoned {
		t.Fatalf("state = %s, want ABANDONED", snap.State)
	}
	if media.stopCount() != 1 {
		t.Fatalf("media stops = %d, want 1", media.stopCount())
	}
	if c.Attempt().Status != model.AttemptStatusAbandoned {
		t.Fatalf("attempt status = %s, want ABANDONED", c.Attempt().Status)
	}

	c.Tick(context.Background())
	c.Teardown() // idempotent
	if media.stopCount() != 1 {
		t.Fatalf("media stopped twice")
	}
	if store.completeCalls != 0 {
		t.Fatalf("abandoned attempt was persisted as completed")
	}
}

func TestController_VisibilityLossAccumulates(t *testing.T) {
	sink := &fakeSink{}
	c := newTestController(testDefinition(3, 0, 1), &fakeStore{}, sink)
	startInProgress(t, c, &fakeMedia{})

	ctx := context.Background()
	c.ReportVisibilityLoss(ctx)
	c.ReportVisibilityLoss(ctx)
	c.ReportVisibilityLoss(ctx)

	if got := c.Snapshot().ViolationCount; got != 3 {
		t.Fatalf("violations = %d, want 3", got)
	}
	if len(sink.kinds) != 3 {
		t.Fatalf("sink received %d events, want 3", len(sink.kinds))
	}

	if err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.Attempt().ViolationCount != 3 {
		t.Fatalf("persisted violations = %d, want 3", c.Attempt().ViolationCount)
	}

	// Signals after completion are dropped.
	c.ReportVisibilityLoss(ctx)
	if c.Attempt().ViolationCount != 3 {
		t.Fatalf("violation recorded after completion")
	}
}

func TestController_FullscreenBlocksInputNotClock(t *testing.T) {
	c := newTestController(testDefinition(3, 0, 1), &fakeStore{}, nil)
	startInProgress(t, c, &fakeMedia{})
	defer c.Teardown()

	c.ReportFullscreen(true)
	if err := c.Answer(0, 0); !errors.Is(err, ErrInteractionBlocked) {
		t.Fatalf("Answer err = %v, want ErrInteractionBlocked", err)
	}
	if err := c.Navigate(1); !errors.Is(err, ErrInteractionBlocked) {
		t.Fatalf("Navigate err = %v, want ErrInteractionBlocked", err)
	}
	if c.Snapshot().ViolationCount != 0 {
		t.Fatalf("fullscreen exit counted as a violation")
	}

	before := c.Snapshot().RemainingSeconds
	c.Tick(context.Background())
	if got := c.Snapshot().RemainingSeconds; got != before-1 {
		t.Fatalf("countdown paused while blocked: %d -> %d", before, got)
	}

	c.ReportFullscreen(false)
	if err := c.Answer(0, 0); err != nil {
		t.Fatalf("Answer after restore: %v", err)
	}
}

func TestController_OnTerminalFires(t *testing.T) {
	c := newTestController(testDefinition(3, 0, 1), &fakeStore{}, nil)
	done := make(chan model.AttemptStatus, 1)
	c.OnTerminal = func(_ uuid.UUID, _ int, status model.AttemptStatus) {
		done <- status
	}
	startInProgress(t, c, &fakeMedia{})

	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case status := <-done:
		if status != model.AttemptStatusCompleted {
			t.Fatalf("terminal status = %s, want COMPLETED", status)
		}
	case <-time.After(time.Second):
		t.Fatal("OnTerminal not invoked")
	}
}
