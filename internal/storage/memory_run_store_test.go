package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/trackcheck/internal/validation"
)

func newRun(fileName, content string) *validation.Run {
	return validation.NewRun(validation.NewResult(fileName), ContentDigest([]byte(content)), "schema")
}

func TestMemoryRunStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	run := newRun("a.jsonl", "content")

	stored, duplicate, err := store.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.False(t, duplicate)

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.FileName, got.FileName)
	assert.Equal(t, run.ContentDigest, got.ContentDigest)
	assert.True(t, got.Result.Valid)
}

func TestMemoryRunStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()

	first := newRun("a.jsonl", "same")
	_, _, err := store.SaveRun(ctx, first)
	require.NoError(t, err)

	second := newRun("renamed.jsonl", "same")
	require.NotEqual(t, first.ID, second.ID)

	stored, duplicate, err := store.SaveRun(ctx, second)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.True(t, duplicate)
	assert.Equal(t, first.ID, second.ID, "duplicate adopts the stored run id")

	runs, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMemoryRunStore_GetMissing(t *testing.T) {
	_, err := NewMemoryRunStore().GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, validation.ErrRunNotFound)
}

func TestMemoryRunStore_SaveNil(t *testing.T) {
	_, _, err := NewMemoryRunStore().SaveRun(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRun)
}

func TestMemoryRunStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"a.jsonl", "b.jsonl", "a.jsonl"} {
		run := newRun(name, name+string(rune('0'+i)))
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)

		_, _, err := store.SaveRun(ctx, run)
		require.NoError(t, err)
	}

	all, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt), "newest first")

	limited, err := store.ListRuns(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	onlyA, err := store.ListRuns(ctx, "a.jsonl", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)

	for _, run := range onlyA {
		assert.Equal(t, "a.jsonl", run.FileName)
	}

	assert.NoError(t, store.HealthCheck(ctx))
}
