package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentsift/assesshub-backend/internal/model"
)

// ErrAttemptNotFound means no attempt exists for the requested id.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptRepository handles attempt data access. It implements the session
// controller's AttemptStore.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// CreateAttempt inserts a new in-progress attempt and returns its id and
// database start timestamp.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, testID uuid.UUID, candidateID int) (uuid.UUID, time.Time, error) {
	var (
		id        uuid.UUID
		startedAt time.Time
	)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (test_id, candidate_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, started_at`,
		testID, candidateID, model.AttemptStatusInProgress,
	).Scan(&id, &startedAt)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("create attempt: %w", err)
	}
	return id, startedAt, nil
}

// CompleteAttempt persists the terminal form of an attempt: the frozen
// delivered set, the answers map, score, and violation count.
func (r *AttemptRepository) CompleteAttempt(ctx context.Context, a *model.Attempt) error {
	delivered, err := json.Marshal(a.DeliveredQuestions)
	if err != nil {
		return fmt.Errorf("marshal delivered questions: %w", err)
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1,
		     delivered_questions = $2,
		     answers = $3,
		     score_percent = $4,
		     violation_count = $5,
		     completed_at = $6
		 WHERE id = $7`,
		a.Status, delivered, answers, a.ScorePercent, a.ViolationCount, a.CompletedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// GetByID loads one attempt, including its persisted delivered set and
// answers, for result display and replayable rescoring.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	var delivered, answers []byte

	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, candidate_id, status, delivered_questions, answers,
		        score_percent, violation_count, started_at, completed_at
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.TestID, &a.CandidateID, &a.Status, &delivered, &answers,
		&a.ScorePercent, &a.ViolationCount, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	if len(delivered) > 0 {
		if err := json.Unmarshal(delivered, &a.DeliveredQuestions); err != nil {
			return nil, fmt.Errorf("decode delivered questions: %w", err)
		}
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return a, nil
}

// ListByCandidate returns a candidate's attempts, newest first, for the
// result history surface.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, candidate_id, status, score_percent, violation_count,
		        started_at, completed_at
		 FROM attempts
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.TestID, &a.CandidateID, &a.Status, &a.ScorePercent,
			&a.ViolationCount, &a.StartedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
