package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestDefinitionKey returns the cache key for a test definition payload.
func (r *CacheKeyStruct) TestDefinitionKey(testID string) string {
	return fmt.Sprintf("test:%s:definition", testID)
}

// CandidateActiveAttemptKey returns the cache key marking a candidate's
// currently active attempt on a test.
func (r *CacheKeyStruct) CandidateActiveAttemptKey(testID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:test:%s:active_attempt", candidateID, testID)
}

var CacheKey = NewCacheKeyStruct()
