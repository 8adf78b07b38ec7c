package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newMockStore(t *testing.T) (*CacheStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewCacheStore(db, fixedClock{now: now}).(*CacheStore)
	return store, mock, now
}

func TestCacheStore_Get_Hit(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectQuery("SELECT value").
		WithArgs("feed:bbc::en", now).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"items":[]}`)))

	value, err := store.Get(context.Background(), "feed:bbc::en")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"items":[]}`), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_Get_MissReturnsNil(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectQuery("SELECT value").
		WithArgs("feed:bbc::en", now).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := store.Get(context.Background(), "feed:bbc::en")
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_Get_QueryError(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectQuery("SELECT value").
		WithArgs("feed:bbc::en", now).
		WillReturnError(errors.New("connection refused by peer"))

	_, err := store.Get(context.Background(), "feed:bbc::en")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_Set_Upserts(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectExec("INSERT INTO feed_cache").
		WithArgs("feed:bbc::en", []byte(`payload`), now.Add(24*time.Hour), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Set(context.Background(), "feed:bbc::en", []byte(`payload`), 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_Purge_RemovesExpired(t *testing.T) {
	store, mock, now := newMockStore(t)

	mock.ExpectExec("DELETE FROM feed_cache").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := store.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheStore_BreakerOpensAfterFailures(t *testing.T) {
	store, mock, now := newMockStore(t)

	// Enough consecutive failures to trip the store breaker.
	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT value").
			WithArgs("feed:bbc::en", now).
			WillReturnError(errors.New("database down"))
	}

	for i := 0; i < 5; i++ {
		_, err := store.Get(context.Background(), "feed:bbc::en")
		require.Error(t, err)
	}

	// The breaker now rejects without touching the database.
	_, err := store.Get(context.Background(), "feed:bbc::en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.NoError(t, mock.ExpectationsWereMet())
}
