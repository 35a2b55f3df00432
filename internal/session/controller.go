// Package session owns the attempt lifecycle: the state machine, the
// one-second countdown, integrity signal accumulation, and completion
// persistence. Every transition — candidate input, environment signals,
// timer ticks — is serialized through a single controller, so no two
// transitions ever apply concurrently.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/talentsift/assesshub-backend/internal/delivery"
	"github.com/talentsift/assesshub-backend/internal/model"
	"github.com/talentsift/assesshub-backend/internal/scoring"
)

// State is a session lifecycle state.
type State string

const (
	StateNotStarted           State = "NOT_STARTED"
	StateAwaitingCapabilities State = "AWAITING_CAPABILITIES"
	StateInProgress           State = "IN_PROGRESS"
	StateSubmitting           State = "SUBMITTING"
	StateCompleted            State = "COMPLETED"
	StateAbandoned            State = "ABANDONED"
)

// AttemptStore is the attempt repository as seen by the controller.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, testID uuid.UUID, candidateID int) (uuid.UUID, time.Time, error)
	CompleteAttempt(ctx context.Context, attempt *model.Attempt) error
}

// ViolationSink receives integrity events for durable persistence. It must
// be best-effort: a sink failure never interrupts the session.
type ViolationSink interface {
	RecordViolation(ctx context.Context, attemptID uuid.UUID, kind model.ViolationKind, at time.Time)
}

// Controller drives one candidate's attempt at one test. It is the sole
// writer of its Attempt; all methods are safe for concurrent use and the
// internal mutex provides the serialization guarantee.
type Controller struct {
	mu sync.Mutex

	test        *model.TestDefinition
	candidateID int

	state   State
	attempt *model.Attempt
	monitor *Monitor
	media   MediaStream

	remaining int // countdown seconds, decremented once per tick
	current   int // candidate's current question position

	selector *delivery.Selector
	store    AttemptStore
	sink     ViolationSink
	log      zerolog.Logger

	// pendingCompletion marks a fully-scored attempt whose write failed
	// twice; RetryCompletion reuses the in-memory result.
	pendingCompletion bool

	tickerStop chan struct{}

	// OnTerminal, when set before Begin, is invoked from its own goroutine
	// after every transition into Completed or Abandoned.
	OnTerminal func(testID uuid.UUID, candidateID int, status model.AttemptStatus)

	// OnPersistFailure, when set before Begin, receives a copy of the
	// scored attempt from its own goroutine after a completion write has
	// failed its bounded retry. It gives the owner a durable place to park
	// the result; the in-memory copy stays available for RetryCompletion.
	OnPersistFailure func(attempt model.Attempt)
}

// NewController creates a controller in NotStarted for the given test and
// candidate.
func NewController(test *model.TestDefinition, candidateID int, selector *delivery.Selector, store AttemptStore, sink ViolationSink, log zerolog.Logger) *Controller {
	return &Controller{
		test:        test,
		candidateID: candidateID,
		state:       StateNotStarted,
		monitor:     NewMonitor(),
		selector:    selector,
		store:       store,
		sink:        sink,
		log: log.With().
			Str("component", "session_controller").
			Str("test_id", test.ID.String()).
			Int("candidate_id", candidateID).
			Logger(),
	}
}

// Begin records candidate intent to start and moves to AwaitingCapabilities.
// The surface must now request camera+microphone access and report back via
// GrantCapabilities or DenyCapabilities.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateNotStarted {
		return ErrInvalidTransition
	}
	c.state = StateAwaitingCapabilities
	return nil
}

// DenyCapabilities records a refused media grant. The state stays at
// AwaitingCapabilities so the candidate may retry; no attempt exists yet.
func (c *Controller) DenyCapabilities() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingCapabilities {
		return ErrInvalidTransition
	}
	return ErrCapabilityDenied
}

// GrantCapabilities starts the attempt proper: it freezes the delivered
// question set, creates the attempt record, takes ownership of the media
// handle, activates the integrity monitor, and starts the countdown.
// On any failure the media handle is released and the state stays at
// AwaitingCapabilities.
func (c *Controller) GrantCapabilities(ctx context.Context, media MediaStream) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingCapabilities {
		if media != nil {
			media.Stop()
		}
		return ErrInvalidTransition
	}

	if c.test.DurationMinutes < 1 {
		if media != nil {
			media.Stop()
		}
		return ErrInvalidDuration
	}

	// Select before creating the attempt row so an empty pool leaves no
	// orphan attempt behind.
	delivered, err := c.selector.SelectDelivery(c.test)
	if err != nil {
		if media != nil {
			media.Stop()
		}
		return err
	}

	attemptID, startedAt, err := c.createAttemptWithRetry(ctx)
	if err != nil {
		if media != nil {
			media.Stop()
		}
		return err
	}

	c.attempt = &model.Attempt{
		ID:                 attemptID,
		TestID:             c.test.ID,
		CandidateID:        c.candidateID,
		Status:             model.AttemptStatusInProgress,
		DeliveredQuestions: delivered,
		Answers:            make(map[int]int),
		StartedAt:          startedAt,
	}
	c.remaining = c.test.DurationMinutes * 60
	c.current = 0
	c.media = media
	c.monitor.Activate()
	c.state = StateInProgress
	c.startCountdownLocked()

	c.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("questions", len(delivered)).
		Int("duration_s", c.remaining).
		Msg("Attempt started")
	return nil
}

func (c *Controller) createAttemptWithRetry(ctx context.Context) (uuid.UUID, time.Time, error) {
	id, startedAt, err := c.store.CreateAttempt(ctx, c.test.ID, c.candidateID)
	if err == nil {
		return id, startedAt, nil
	}
	c.log.Warn().Err(err).Msg("Attempt creation failed, retrying once")

	id, startedAt, err = c.store.CreateAttempt(ctx, c.test.ID, c.candidateID)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: create attempt: %v", ErrPersistence, err)
	}
	return id, startedAt, nil
}

// Answer records or overwrites the chosen option for a delivered position.
// In-memory only; nothing is persisted per keystroke.
func (c *Controller) Answer(position, option int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acceptingInputLocked(); err != nil {
		return err
	}
	if position < 0 || position >= len(c.attempt.DeliveredQuestions) {
		return ErrInvalidPosition
	}
	if option < 0 || option >= len(c.attempt.DeliveredQuestions[position].Options) {
		return ErrInvalidOption
	}
	c.attempt.Answers[position] = option
	return nil
}

// ClearAnswer removes the recorded answer at a position. Cleared positions
// score identically to never-answered ones.
func (c *Controller) ClearAnswer(position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acceptingInputLocked(); err != nil {
		return err
	}
	if position < 0 || position >= len(c.attempt.DeliveredQuestions) {
		return ErrInvalidPosition
	}
	delete(c.attempt.Answers, position)
	return nil
}

// Navigate moves the candidate's cursor. Navigation is free-order; no
// forced linear progression.
func (c *Controller) Navigate(position int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acceptingInputLocked(); err != nil {
		return err
	}
	if position < 0 || position >= len(c.attempt.DeliveredQuestions) {
		return ErrInvalidPosition
	}
	c.current = position
	return nil
}

func (c *Controller) acceptingInputLocked() error {
	if c.state != StateInProgress {
		return ErrSessionClosed
	}
	if c.monitor.Blocked() {
		return ErrInteractionBlocked
	}
	return nil
}

// ReportVisibilityLoss records one backgrounding event and forwards it to
// the violation sink. Signals arriving after Submitting began are dropped.
func (c *Controller) ReportVisibilityLoss(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return
	}
	count := c.monitor.RecordVisibilityLoss()
	c.attempt.ViolationCount = count
	if c.sink != nil {
		c.sink.RecordViolation(ctx, c.attempt.ID, model.ViolationVisibilityLoss, time.Now())
	}
	c.log.Debug().Int("violations", count).Msg("Visibility loss recorded")
}

// ReportFullscreen updates the blocking posture. Exit blocks interaction
// without pausing the countdown; restore lifts the block.
func (c *Controller) ReportFullscreen(exited bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return
	}
	c.monitor.SetFullscreenExited(exited)
}

// Tick advances the countdown by one second and auto-submits at zero.
// Ticks arriving in any state other than InProgress are dropped, which is
// what makes a late timer fire after submit or teardown harmless.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return
	}
	c.remaining--
	if c.remaining > 0 {
		return
	}
	c.remaining = 0
	c.log.Info().Msg("Countdown reached zero, auto-submitting")
	if err := c.submitLocked(ctx); err != nil {
		c.log.Error().Err(err).Msg("Auto-submit persistence failed")
	}
}

// Submit finishes the attempt on explicit candidate action. Racing an
// auto-submit is safe: whichever transition wins closes the session and the
// loser is rejected here.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return ErrSessionClosed
	}
	return c.submitLocked(ctx)
}

// submitLocked moves InProgress → Submitting, scores the frozen delivered
// set, and persists the completed attempt with one bounded retry. On double
// failure the scored attempt stays in memory for RetryCompletion.
func (c *Controller) submitLocked(ctx context.Context) error {
	c.state = StateSubmitting
	c.stopCountdownLocked()

	result, err := scoring.Score(c.attempt.DeliveredQuestions, c.attempt.Answers, c.test.PassingScorePercent)
	if err != nil {
		// Unreachable while the selector refuses empty pools.
		c.log.Error().Err(err).Msg("Scoring invariant violated")
		return err
	}

	now := time.Now()
	c.attempt.Status = model.AttemptStatusCompleted
	c.attempt.CompletedAt = &now
	c.attempt.ScorePercent = &result.Percent
	c.attempt.ViolationCount = c.monitor.Violations()

	return c.persistCompletionLocked(ctx)
}

func (c *Controller) persistCompletionLocked(ctx context.Context) error {
	err := c.store.CompleteAttempt(ctx, c.attempt)
	if err != nil {
		c.log.Warn().Err(err).Msg("Completion write failed, retrying once")
		err = c.store.CompleteAttempt(ctx, c.attempt)
	}
	if err != nil {
		c.pendingCompletion = true
		c.log.Error().Err(err).Msg("Completion write failed after retry, result retained in memory")
		if c.OnPersistFailure != nil {
			copied := *c.attempt
			go c.OnPersistFailure(copied)
		}
		return fmt.Errorf("%w: complete attempt: %v", ErrPersistence, err)
	}

	c.pendingCompletion = false
	c.finishLocked(StateCompleted, model.AttemptStatusCompleted)
	c.log.Info().
		Str("attempt_id", c.attempt.ID.String()).
		Int("score", *c.attempt.ScorePercent).
		Int("violations", c.attempt.ViolationCount).
		Msg("Attempt completed")
	return nil
}

// RetryCompletion re-attempts the completion write using the result already
// computed in memory. Only valid while a failed completion is pending.
func (c *Controller) RetryCompletion(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSubmitting || !c.pendingCompletion {
		return ErrInvalidTransition
	}
	return c.persistCompletionLocked(ctx)
}

// Teardown handles external session destruction: the countdown and monitor
// are deactivated and the media handle released before it returns, so no
// timer can fire into the unloaded state. An attempt caught mid-flight is
// marked Abandoned in memory; resuming is out of scope.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCompleted || c.state == StateAbandoned {
		return
	}
	c.stopCountdownLocked()
	if c.attempt != nil {
		c.attempt.Status = model.AttemptStatusAbandoned
	}
	c.finishLocked(StateAbandoned, model.AttemptStatusAbandoned)
	c.log.Info().Msg("Session torn down, attempt abandoned")
}

// finishLocked applies a terminal transition: deactivates the monitor,
// releases the media handle unconditionally, and fires OnTerminal.
func (c *Controller) finishLocked(state State, status model.AttemptStatus) {
	c.state = state
	c.monitor.Deactivate()
	if c.media != nil {
		c.media.Stop()
		c.media = nil
	}
	if c.OnTerminal != nil {
		go c.OnTerminal(c.test.ID, c.candidateID, status)
	}
}

// startCountdownLocked launches the one-second tick loop. The loop goroutine
// holds no session state of its own; every tick re-checks the state under
// the controller mutex.
func (c *Controller) startCountdownLocked() {
	stop := make(chan struct{})
	c.tickerStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Tick(context.Background())
			}
		}
	}()
}

func (c *Controller) stopCountdownLocked() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

// Attempt returns the controller's attempt, or nil before one exists.
// The caller must treat it as read-only.
func (c *Controller) Attempt() *model.Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Terminal reports whether the session has reached Completed or Abandoned.
func (c *Controller) Terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateCompleted || c.state == StateAbandoned
}
