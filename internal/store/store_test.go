package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListExchanges(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordExchange(ctx, Exchange{
		Provider: "gemini", Version: "v1", Model: "gemini-2.0-flash",
		Prompt: "first", Error: "[404] model not found", CreatedAt: base,
	}))
	require.NoError(t, s.RecordExchange(ctx, Exchange{
		RequestID: "req-1",
		Provider:  "gemini", Version: "v1", Model: "gemini-1.5-flash",
		Prompt: "second", Response: "{}", Duration: 1500 * time.Millisecond,
		CreatedAt: base.Add(time.Second),
	}))

	got, err := s.RecentExchanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "second", got[0].Prompt)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.NotEmpty(t, got[0].ID)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(time.Second)))

	assert.Equal(t, "[404] model not found", got[1].Error)
	assert.Empty(t, got[1].Response)

	limited, err := s.RecentExchanges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordAndListRequests(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	require.NoError(t, s.RecordRequest(ctx, Request{
		Handle: "tibo_maker", Outcome: "degraded", ItemCount: 10, Degraded: true,
	}))

	got, err := s.RecentRequests(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "tibo_maker", got[0].Handle)
	assert.True(t, got[0].Degraded)
	assert.Equal(t, 10, got[0].ItemCount)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	now := time.Now()

	require.NoError(t, s.RecordExchange(ctx, Exchange{Provider: "gemini", Model: "m", Prompt: "old", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, s.RecordExchange(ctx, Exchange{Provider: "gemini", Model: "m", Prompt: "new", CreatedAt: now}))
	require.NoError(t, s.RecordRequest(ctx, Request{Handle: "a", Outcome: "live", CreatedAt: now.Add(-2 * time.Hour)}))

	removed, err := s.Prune(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	left, err := s.RecentExchanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Prompt)
}

func TestFileBackedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.db")
	s, err := New(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordRequest(context.Background(), Request{Handle: "a", Outcome: "live"}))
	got, err := s.RecentRequests(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
