package appointments

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatReference(t *testing.T) {
	ref, err := FormatReference(2026, 42)
	require.NoError(t, err)
	assert.Equal(t, "APT-2026-0000042", ref)
	assert.LessOrEqual(t, len(ref), 20)
	require.NoError(t, ValidateReference(ref))

	ref, err = FormatReference(2026, 9_999_999)
	require.NoError(t, err)
	assert.Equal(t, "APT-2026-9999999", ref)
}

func TestFormatReferenceRejectsOutOfRange(t *testing.T) {
	_, err := FormatReference(2026, 0)
	assert.ErrorIs(t, err, ErrReferenceGeneration)

	_, err = FormatReference(2026, 10_000_000)
	assert.ErrorIs(t, err, ErrReferenceGeneration)
}

func TestValidateReference(t *testing.T) {
	assert.NoError(t, ValidateReference("APT-2026-0000001"))
	assert.ErrorIs(t, ValidateReference("APT-26-0000001"), ErrInvalidReference)
	assert.ErrorIs(t, ValidateReference("APT-2026-001"), ErrInvalidReference)
	assert.ErrorIs(t, ValidateReference("apt-2026-0000001"), ErrInvalidReference)
	assert.ErrorIs(t, ValidateReference(""), ErrInvalidReference)
}

func TestRedisSequenceMonotonic(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	seq := NewRedisSequence(client)
	ctx := context.Background()

	first, err := seq.Next(ctx, 2026)
	require.NoError(t, err)
	second, err := seq.Next(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	// Counters are independent per year.
	otherYear, err := seq.Next(ctx, 2027)
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherYear)
}

func TestRedisSequenceExhaustion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Set("booking:reference:seq:2026", fmt.Sprintf("%d", 9_999_999))

	seq := NewRedisSequence(client)
	_, err := seq.Next(context.Background(), 2026)
	assert.ErrorIs(t, err, ErrReferenceGeneration)
}

func TestMemorySequence(t *testing.T) {
	seq := NewMemorySequence()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
