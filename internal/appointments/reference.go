package appointments

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	referencePrefix    = "APT"
	maxReferenceLength = 20
	maxSequenceValue   = 9_999_999
)

var referencePattern = regexp.MustCompile(`^APT-\d{4}-\d{7}$`)

// Sequence hands out monotonically increasing per-year counters for booking
// references. Counters survive restarts; two calls never return the same
// value for a year.
type Sequence interface {
	Next(ctx context.Context, year int) (int64, error)
}

// FormatReference builds the customer-facing booking reference from a year
// and a sequence value, e.g. APT-2026-0000042.
func FormatReference(year int, seq int64) (string, error) {
	if seq < 1 || seq > maxSequenceValue {
		return "", fmt.Errorf("appointments: %w: sequence %d outside 1..%d for year %d",
			ErrReferenceGeneration, seq, maxSequenceValue, year)
	}
	ref := fmt.Sprintf("%s-%04d-%07d", referencePrefix, year, seq)
	if len(ref) > maxReferenceLength {
		return "", fmt.Errorf("appointments: %w: reference %q exceeds %d characters",
			ErrReferenceGeneration, ref, maxReferenceLength)
	}
	return ref, nil
}

// ValidateReference checks the APT-YYYY-NNNNNNN shape.
func ValidateReference(ref string) error {
	if !referencePattern.MatchString(ref) {
		return fmt.Errorf("appointments: %w: %q does not match APT-YYYY-NNNNNNN", ErrInvalidReference, ref)
	}
	return nil
}

// RedisSequence allocates reference counters with a Redis INCR per year key.
// INCR is atomic across instances, so concurrent bookings cannot collide.
type RedisSequence struct {
	client *redis.Client
}

// NewRedisSequence panics on a nil client; lifecycle bugs surface at startup.
func NewRedisSequence(client *redis.Client) *RedisSequence {
	if client == nil {
		panic("appointments: redis client is required")
	}
	return &RedisSequence{client: client}
}

func (s *RedisSequence) Next(ctx context.Context, year int) (int64, error) {
	key := fmt.Sprintf("booking:reference:seq:%04d", year)
	seq, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("appointments: incr reference sequence: %w", err)
	}
	if seq > maxSequenceValue {
		return 0, fmt.Errorf("appointments: %w: year %d counter exhausted at %d",
			ErrReferenceGeneration, year, seq)
	}
	return seq, nil
}

// MemorySequence is an in-process Sequence for tests and local runs.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[int]int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[int]int64)}
}

func (s *MemorySequence) Next(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[year]++
	seq := s.counters[year]
	if seq > maxSequenceValue {
		return 0, fmt.Errorf("appointments: %w: year %d counter exhausted at %d",
			ErrReferenceGeneration, year, seq)
	}
	return seq, nil
}
