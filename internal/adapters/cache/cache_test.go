package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-detector/internal/core"
)

type testCache interface {
	core.ResultCache
	Stop()
}

func sampleEntry(key string, ttl time.Duration) *core.CacheEntry {
	subject := "Account suspended"
	now := time.Now()
	return &core.CacheEntry{
		Key: key,
		Result: &core.AnalysisResult{
			Verdict:      core.VerdictPhishing,
			Confidence:   0.7583,
			ModelVersion: "0.1.0-ml",
			Metadata: core.EmailMetadata{
				Subject:     &subject,
				ToAddresses: []string{"alice@example.com"},
			},
			Highlights: []string{`Contains suspicious phrases: "click here"`},
			Insights: []core.Insight{
				{Name: "suspicious_keywords", Value: 3, Weight: 0.35, Description: "phrases"},
			},
		},
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func runCacheContract(t *testing.T, newCache func(t *testing.T) testCache) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		c := newCache(t)
		_, err := c.Get(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("round trip", func(t *testing.T) {
		c := newCache(t)
		entry := sampleEntry("k1", time.Hour)
		require.NoError(t, c.Set(ctx, entry))

		got, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "k1", got.Key)
		assert.Equal(t, entry.Result.Verdict, got.Result.Verdict)
		assert.Equal(t, entry.Result.Confidence, got.Result.Confidence)
		assert.Equal(t, entry.Result.Highlights, got.Result.Highlights)
		assert.Equal(t, entry.Result.Insights, got.Result.Insights)
		require.NotNil(t, got.Result.Metadata.Subject)
		assert.Equal(t, "Account suspended", *got.Result.Metadata.Subject)
		assert.Nil(t, got.Result.Metadata.FromAddress)
	})

	t.Run("overwrite", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Set(ctx, sampleEntry("k1", time.Hour)))

		updated := sampleEntry("k1", time.Hour)
		updated.Result.Verdict = core.VerdictSuspicious
		require.NoError(t, c.Set(ctx, updated))

		got, err := c.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, core.VerdictSuspicious, got.Result.Verdict)
	})

	t.Run("expired", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Set(ctx, sampleEntry("old", -time.Minute)))

		_, err := c.Get(ctx, "old")
		assert.True(t, errors.Is(err, ErrExpired))

		require.NoError(t, c.Cleanup(ctx))
		_, err = c.Get(ctx, "old")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("delete", func(t *testing.T) {
		c := newCache(t)
		require.NoError(t, c.Set(ctx, sampleEntry("k1", time.Hour)))
		require.NoError(t, c.Delete(ctx, "k1"))

		_, err := c.Get(ctx, "k1")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestMemoryCache(t *testing.T) {
	runCacheContract(t, func(t *testing.T) testCache {
		c := NewMemoryCache(zap.NewNop(), time.Hour)
		t.Cleanup(c.Stop)
		return c
	})
}

func TestMemoryCacheIsolatesStoredResults(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()

	entry := sampleEntry("k1", time.Hour)
	require.NoError(t, c.Set(ctx, entry))
	entry.Result.Highlights[0] = "mutated"

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	got.Result.Highlights = append(got.Result.Highlights, "also mutated")

	again, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []string{`Contains suspicious phrases: "click here"`}, again.Result.Highlights)
}

func TestMemoryCacheCleanupKeepsLiveEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()

	require.NoError(t, c.Set(ctx, sampleEntry("live", time.Hour)))
	require.NoError(t, c.Set(ctx, sampleEntry("dead", -time.Second)))
	require.NoError(t, c.Cleanup(ctx))

	_, err := c.Get(ctx, "live")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "dead")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCache(t *testing.T) {
	runCacheContract(t, func(t *testing.T) testCache {
		c, err := NewSQLiteCache(":memory:", zap.NewNop(), time.Hour)
		require.NoError(t, err)
		t.Cleanup(c.Stop)
		return c
	})
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(zap.NewNop(), time.Millisecond)
	c.Stop()
	assert.NotPanics(t, c.Stop)
}
