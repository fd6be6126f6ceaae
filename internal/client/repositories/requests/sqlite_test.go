package requests

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/store"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var base = time.UnixMilli(1700000000000).UTC()

func put(t *testing.T, r *SQLiteRepository, cache, key, resp string, ts time.Time) {
	t.Helper()
	require.NoError(t, r.Put(context.Background(), &models.CachedRequest{
		CacheName: cache, Key: key, Response: []byte(resp), Timestamp: ts,
	}))
}

func TestPut_UpdateNotDuplicate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	put(t, r, "requests", "k", "first", base)
	put(t, r, "requests", "k", "second", base.Add(time.Second))

	n, err := r.Count(ctx, "requests")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := r.Get(ctx, "requests", "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got.Response))
	assert.True(t, base.Add(time.Second).Equal(got.Timestamp))
}

func TestGet_MissAndCachePartitioning(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	put(t, r, "a", "k", "in-a", base)

	_, err := r.Get(ctx, "b", "k")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEvict_ByAgeThenByCount(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	put(t, r, "swr", "old", "x", base)
	put(t, r, "swr", "k1", "x", base.Add(10*time.Second))
	put(t, r, "swr", "k2", "x", base.Add(20*time.Second))
	put(t, r, "swr", "k3", "x", base.Add(30*time.Second))
	put(t, r, "other", "old", "x", base)

	removed, err := r.Evict(ctx, "swr", 2, base.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = r.Get(ctx, "swr", "old")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.Get(ctx, "swr", "k1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.Get(ctx, "swr", "k3")
	assert.NoError(t, err)

	n, err := r.Count(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "other caches are untouched")
}

func TestEvict_NoLimitsIsNoop(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	put(t, r, "swr", "k", "x", base)

	removed, err := r.Evict(context.Background(), "swr", 0, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, removed)
}
