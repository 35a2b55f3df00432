package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentsift/assesshub-backend/internal/model"
)

// ErrTestNotFound means no test definition exists for the requested id.
var ErrTestNotFound = errors.New("test definition not found")

// TestRepository handles test definition data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetTestDefinition loads a test with its full question bank and approval
// list. The engine filters eligibility in memory via EligiblePool.
func (r *TestRepository) GetTestDefinition(ctx context.Context, id uuid.UUID) (*model.TestDefinition, error) {
	t := &model.TestDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, questions_to_show, shuffle_options, duration_minutes,
		        passing_score_percent, opens_at, closes_at, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.QuestionsToShow, &t.ShuffleOptions, &t.DurationMinutes,
		&t.PassingScorePercent, &t.OpensAt, &t.ClosesAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	bank, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	t.QuestionBank = bank

	approved, err := r.listApprovedIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list approved questions: %w", err)
	}
	t.ApprovedQuestionIDs = approved

	return t, nil
}

func (r *TestRepository) listQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, prompt, options, correct_option, weight
		 FROM questions WHERE test_id = $1
		 ORDER BY created_at, id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.BankID, &q.Prompt, &options, &q.CorrectOption, &q.Weight); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("question %s: decode options: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *TestRepository) listApprovedIDs(ctx context.Context, testID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id FROM test_approved_questions WHERE test_id = $1`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
