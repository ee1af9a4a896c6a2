// пакет storetest проверяет реализации session.Store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/rtemka/hnfront/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run прогоняет общий набор проверок хранилища.
func Run(t *testing.T, store session.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("save_get", func(t *testing.T) {
		s := session.New(time.Hour)
		s.Token, s.CSRF = "token", "csrf"
		s.UserID, s.Username = 7, "alice"

		require.NoError(t, store.Save(ctx, s))

		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.Token, got.Token)
		assert.Equal(t, s.CSRF, got.CSRF)
		assert.Equal(t, s.FormToken, got.FormToken)
		assert.Equal(t, s.UserID, got.UserID)
		assert.Equal(t, s.Username, got.Username)
		assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt), "expires_at = %v, want %v", got.ExpiresAt, s.ExpiresAt)
	})

	t.Run("update", func(t *testing.T) {
		s := session.New(time.Hour)
		require.NoError(t, store.Save(ctx, s))

		s.Token = "new-token"
		require.NoError(t, store.Save(ctx, s))

		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-token", got.Token)
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := session.New(time.Hour)
		require.NoError(t, store.Save(ctx, s))
		require.NoError(t, store.Delete(ctx, s.ID))

		_, err := store.Get(ctx, s.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.NoError(t, store.Delete(ctx, s.ID))
	})

	t.Run("expired", func(t *testing.T) {
		old := session.New(-time.Minute)
		require.NoError(t, store.Save(ctx, old))

		_, err := store.Get(ctx, old.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)

		live := session.New(time.Hour)
		require.NoError(t, store.Save(ctx, live))

		n, err := store.Purge(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		_, err = store.Get(ctx, live.ID)
		assert.NoError(t, err)
	})
}
