package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentsift/assesshub-backend/internal/config"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker drains deferred completion writes. It only sees attempts whose
// direct persistence failed twice on the session path: the controller scored
// the attempt in memory and the handler queued the full result here so it
// survives a restart.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

type resultPayload struct {
	AttemptID          string          `json:"attempt_id"`
	Status             string          `json:"status"`
	ScorePercent       int             `json:"score_percent"`
	ViolationCount     int             `json:"violation_count"`
	CompletedAt        time.Time       `json:"completed_at"`
	DeliveredQuestions json.RawMessage `json:"delivered_questions"`
	Answers            json.RawMessage `json:"answers"`
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*resultPayload, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p resultPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, &p)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*resultPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpdateResults(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk result update failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Str("attempt_id", p.AttemptID).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
	}
}

// bulkUpdateResults applies the whole batch with a single UNNEST update. The
// jsonb columns travel as text arrays and are cast on the server.
func (w *ResultWorker) bulkUpdateResults(ctx context.Context, batch []*resultPayload) error {
	n := len(batch)

	attemptIDs := make([]uuid.UUID, 0, n)
	statuses := make([]string, 0, n)
	scores := make([]int, 0, n)
	violations := make([]int, 0, n)
	completedAts := make([]time.Time, 0, n)
	delivered := make([]string, 0, n)
	answers := make([]string, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		attemptIDs = append(attemptIDs, id)
		statuses = append(statuses, p.Status)
		scores = append(scores, p.ScorePercent)
		violations = append(violations, p.ViolationCount)
		completedAts = append(completedAts, p.CompletedAt)
		delivered = append(delivered, string(p.DeliveredQuestions))
		answers = append(answers, string(p.Answers))
	}

	query := `
		UPDATE attempts AS a
		SET status = t.status,
		    score_percent = t.score_percent,
		    violation_count = t.violation_count,
		    completed_at = t.completed_at,
		    delivered_questions = t.delivered::jsonb,
		    answers = t.answers::jsonb
		FROM (
			SELECT
				u.id,
				u.status,
				u.score_percent,
				u.violation_count,
				u.completed_at,
				u.delivered,
				u.answers
			FROM UNNEST(
				$1::uuid[],
				$2::text[],
				$3::int[],
				$4::int[],
				$5::timestamptz[],
				$6::text[],
				$7::text[]
			) AS u (id, status, score_percent, violation_count, completed_at, delivered, answers)
		) AS t
		WHERE a.id = t.id
	`

	_, err := w.pool.Exec(ctx, query, attemptIDs, statuses, scores, violations, completedAts, delivered, answers)
	return err
}

func (w *ResultWorker) persistSingle(ctx context.Context, p *resultPayload) error {
	id, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET status = $1,
		     score_percent = $2,
		     violation_count = $3,
		     completed_at = $4,
		     delivered_questions = $5::jsonb,
		     answers = $6::jsonb
		 WHERE id = $7`,
		p.Status, p.ScorePercent, p.ViolationCount, p.CompletedAt,
		string(p.DeliveredQuestions), string(p.Answers), id,
	)
	return err
}
