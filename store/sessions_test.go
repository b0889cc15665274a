package store

import (
	"context"
	"testing"
	"time"

	"seclab/crypto"
	"seclab/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(openSeeded(t, crypto.PlaintextHasher{}))
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	expiring := models.Session{Token: "t1", Username: "tim", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	forever := models.Session{Token: "t2", Username: "tim", CreatedAt: now}
	require.NoError(t, sessions.Insert(ctx, expiring))
	require.NoError(t, sessions.Insert(ctx, forever))

	got, err := sessions.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "tim", got.Username)
	assert.True(t, got.ExpiresAt.Equal(expiring.ExpiresAt))
	assert.True(t, got.CreatedAt.Equal(now))

	got, err = sessions.Get(ctx, "t2")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.IsZero())

	assert.ErrorIs(t, sessions.Insert(ctx, forever), ErrDuplicateToken)

	_, err = sessions.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, sessions.Delete(ctx, "t1"))
	_, err = sessions.Get(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsDeleteExpired(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(openSeeded(t, crypto.PlaintextHasher{}))
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, sessions.Insert(ctx, models.Session{Token: "old", Username: "tim", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, sessions.Insert(ctx, models.Session{Token: "live", Username: "tim", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Insert(ctx, models.Session{Token: "forever", Username: "tim", CreatedAt: now}))

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = sessions.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sessions.Get(ctx, "live")
	assert.NoError(t, err)
	_, err = sessions.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestSessionsDeleteForUser(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(openSeeded(t, crypto.PlaintextHasher{}))
	now := time.Now()

	for _, s := range []models.Session{
		{Token: "a", Username: "elliot", CreatedAt: now},
		{Token: "b", Username: "elliot", CreatedAt: now},
		{Token: "c", Username: "tim", CreatedAt: now},
	} {
		require.NoError(t, sessions.Insert(ctx, s))
	}

	n, err := sessions.DeleteForUser(ctx, "elliot", "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = sessions.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = sessions.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = sessions.Get(ctx, "c")
	assert.NoError(t, err)
}
