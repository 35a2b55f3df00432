package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentsift/assesshub-backend/internal/config"
	"github.com/talentsift/assesshub-backend/internal/delivery"
	"github.com/talentsift/assesshub-backend/internal/model"
	"github.com/talentsift/assesshub-backend/internal/repository"
	"github.com/talentsift/assesshub-backend/internal/session"
)

var (
	// ErrTestNotOpen is returned when a candidate tries to start outside
	// the test's availability window.
	ErrTestNotOpen = errors.New("test is outside its availability window")

	// ErrNoActiveSession is returned when an operation targets a session
	// that is not registered for the candidate.
	ErrNoActiveSession = errors.New("no active session for candidate")
)

// activeAttemptTTL bounds the Redis session lock so a crashed server does
// not leave candidates locked out forever. Sized to the longest supported
// test duration plus slack.
const activeAttemptTTL = 6 * time.Hour

// SessionService owns the lifecycle of live sessions: it resolves the test
// definition, enforces the availability window, builds controllers and
// hands signals off to the durable queues that the workers drain.
type SessionService struct {
	tests       *TestService
	attemptRepo *repository.AttemptRepository
	manager     *session.Manager
	selector    *delivery.Selector
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	tests *TestService,
	attemptRepo *repository.AttemptRepository,
	manager *session.Manager,
	selector *delivery.Selector,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		tests:       tests,
		attemptRepo: attemptRepo,
		manager:     manager,
		selector:    selector,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// StartSession creates and registers a controller for the candidate, or
// returns the already-registered one so a reconnecting client resumes its
// attempt instead of forking a second one.
func (s *SessionService) StartSession(ctx context.Context, testID uuid.UUID, candidateID int) (*session.Controller, error) {
	if existing, ok := s.manager.Get(testID, candidateID); ok {
		if !existing.Terminal() {
			return existing, nil
		}
		// A finished controller whose asynchronous cleanup has not run yet;
		// clear it so the candidate gets a fresh session.
		s.manager.Remove(testID, candidateID, existing)
	}

	test, err := s.tests.GetDefinition(ctx, testID)
	if err != nil {
		return nil, err
	}
	if !test.IsOpen(time.Now()) {
		return nil, ErrTestNotOpen
	}
	// Surface a misconfigured definition or an empty pool before any
	// capability prompt is shown.
	if test.DurationMinutes < 1 {
		return nil, session.ErrInvalidDuration
	}
	if len(test.EligiblePool()) == 0 {
		return nil, delivery.ErrNoQuestionsAvailable
	}

	ctrl := session.NewController(test, candidateID, s.selector, s.attemptRepo, s.violationSink(), s.log)
	ctrl.OnTerminal = func(testID uuid.UUID, candidateID int, status model.AttemptStatus) {
		s.manager.Remove(testID, candidateID, ctrl)
		key := config.CacheKey.CandidateActiveAttemptKey(testID.String(), candidateID)
		if err := s.rdb.Del(context.Background(), key).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear active attempt lock")
		}
		s.log.Info().
			Str("test_id", testID.String()).
			Int("candidate_id", candidateID).
			Str("status", string(status)).
			Msg("Session finished")
	}
	ctrl.OnPersistFailure = func(attempt model.Attempt) {
		if err := s.QueueResultFallback(context.Background(), &attempt); err != nil {
			s.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Deferred result queueing failed")
		}
	}

	registered, created := s.manager.Register(testID, candidateID, ctrl)
	if !created {
		// Lost the race to a concurrent start; the winner's controller is
		// the candidate's session.
		return registered, nil
	}

	if err := ctrl.Begin(); err != nil {
		s.manager.Remove(testID, candidateID, ctrl)
		return nil, err
	}

	key := config.CacheKey.CandidateActiveAttemptKey(testID.String(), candidateID)
	if err := s.rdb.Set(ctx, key, time.Now().Unix(), activeAttemptTTL).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to set active attempt lock")
	}

	s.log.Info().
		Str("test_id", testID.String()).
		Int("candidate_id", candidateID).
		Msg("Session started")
	return ctrl, nil
}

// GetSession returns the candidate's live controller for the test.
func (s *SessionService) GetSession(testID uuid.UUID, candidateID int) (*session.Controller, error) {
	ctrl, ok := s.manager.Get(testID, candidateID)
	if !ok {
		return nil, ErrNoActiveSession
	}
	return ctrl, nil
}

// Teardown abandons the candidate's session if one is live. Idempotent.
func (s *SessionService) Teardown(testID uuid.UUID, candidateID int) {
	if ctrl, ok := s.manager.Get(testID, candidateID); ok {
		ctrl.Teardown()
	}
}

// ListAttempts returns the candidate's persisted attempt history.
func (s *SessionService) ListAttempts(ctx context.Context, candidateID int) ([]model.Attempt, error) {
	return s.attemptRepo.ListByCandidate(ctx, candidateID)
}

// violationPayload is the queue record drained by the violation worker.
type violationPayload struct {
	AttemptID  uuid.UUID           `json:"attempt_id"`
	Kind       model.ViolationKind `json:"kind"`
	OccurredAt time.Time           `json:"occurred_at"`
}

type redisViolationSink struct {
	rdb *redis.Client
	log zerolog.Logger
}

func (s *SessionService) violationSink() session.ViolationSink {
	return &redisViolationSink{rdb: s.rdb, log: s.log}
}

// RecordViolation pushes the event onto the persistence queue. Best-effort:
// the in-memory count on the attempt is authoritative for the session.
func (sink *redisViolationSink) RecordViolation(ctx context.Context, attemptID uuid.UUID, kind model.ViolationKind, at time.Time) {
	payload, err := json.Marshal(violationPayload{AttemptID: attemptID, Kind: kind, OccurredAt: at})
	if err != nil {
		sink.log.Error().Err(err).Msg("Failed to marshal violation")
		return
	}
	if err := sink.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		sink.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to queue violation")
	}
}

// resultPayload is the queue record drained by the result worker.
type resultPayload struct {
	AttemptID          uuid.UUID                 `json:"attempt_id"`
	Status             model.AttemptStatus       `json:"status"`
	ScorePercent       int                       `json:"score_percent"`
	ViolationCount     int                       `json:"violation_count"`
	CompletedAt        time.Time                 `json:"completed_at"`
	DeliveredQuestions []model.DeliveredQuestion `json:"delivered_questions"`
	Answers            map[int]int               `json:"answers"`
}

// QueueResultFallback hands a completed attempt whose direct persistence
// failed to the durable result queue, so the outcome survives a server
// restart and is retried by the worker.
func (s *SessionService) QueueResultFallback(ctx context.Context, attempt *model.Attempt) error {
	if attempt.ScorePercent == nil || attempt.CompletedAt == nil {
		return fmt.Errorf("attempt %s is not completed", attempt.ID)
	}
	payload, err := json.Marshal(resultPayload{
		AttemptID:          attempt.ID,
		Status:             attempt.Status,
		ScorePercent:       *attempt.ScorePercent,
		ViolationCount:     attempt.ViolationCount,
		CompletedAt:        *attempt.CompletedAt,
		DeliveredQuestions: attempt.DeliveredQuestions,
		Answers:            attempt.Answers,
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue result: %w", err)
	}
	s.log.Info().Str("attempt_id", attempt.ID.String()).Msg("Result queued for deferred persistence")
	return nil
}
