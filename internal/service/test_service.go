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
	"github.com/talentsift/assesshub-backend/internal/model"
	"github.com/talentsift/assesshub-backend/internal/repository"
)

// TestService serves test definitions with a Redis cache in front of
// PostgreSQL. Session starts are the hot path: a popular test is read once
// per candidate, so definitions are cached as JSON with a bounded TTL and
// self-healed on miss.
type TestService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *TestService {
	return &TestService{
		testRepo: testRepo,
		rdb:      rdb,
		ttl:      ttl,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// GetDefinition returns a test definition, preferring the cache. Redis
// being down degrades to direct PostgreSQL reads rather than failing the
// session start.
func (s *TestService) GetDefinition(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error) {
	key := config.CacheKey.TestDefinitionKey(testID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var test model.TestDefinition
		if err := json.Unmarshal(data, &test); err == nil {
			return &test, nil
		}
		// Corrupt cache entry: drop it and fall through to the database.
		s.log.Warn().Str("test_id", testID.String()).Msg("Corrupt cached definition, re-reading")
		_ = s.rdb.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Redis read failed, falling back to PostgreSQL")
	}

	test, err := s.testRepo.GetTestDefinition(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	if payload, err := json.Marshal(test); err == nil {
		if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache definition")
		}
	}
	return test, nil
}

// Invalidate drops a cached definition. Called when authoring tools change
// a published test's bank or approval list.
func (s *TestService) Invalidate(ctx context.Context, testID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.TestDefinitionKey(testID.String())).Err()
}
