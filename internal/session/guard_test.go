package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/recipes/internal/tokenstore"
)

func TestGuard_RequiresAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("authenticated proceeds", func(t *testing.T) {
		s := New(ctx, tokenstore.NewMemoryStore())
		require.NoError(t, s.Login(ctx, "tok", testUser("member")))
		g := NewGuard(s)

		assert.True(t, g.RequiresAuth(ctx, true))
		assert.False(t, g.IsSessionExpired())
	})

	t.Run("first anonymous check prompts once", func(t *testing.T) {
		var prompts []string
		s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(msg string) {
			prompts = append(prompts, msg)
		}))
		g := NewGuard(s)

		assert.False(t, g.RequiresAuth(ctx, true))
		assert.False(t, g.RequiresAuth(ctx, true))

		assert.Equal(t, []string{LoginPromptMessage}, prompts)
		assert.True(t, g.IsSessionExpired())
	})

	t.Run("pending expiry blocks without a new prompt", func(t *testing.T) {
		var prompts []string
		s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(msg string) {
			prompts = append(prompts, msg)
		}))
		require.NoError(t, s.Login(ctx, "tok", testUser("member")))
		require.True(t, s.SignalExpiry(ctx, DefaultExpiredMessage))
		g := NewGuard(s)

		assert.False(t, g.RequiresAuth(ctx, true))

		msg, ok := s.ExpiredMessage()
		require.True(t, ok)
		assert.Equal(t, DefaultExpiredMessage, msg, "guard must not overwrite the expiry message")
		assert.Len(t, prompts, 1)
	})

	t.Run("no prompt after the banner is dismissed", func(t *testing.T) {
		calls := 0
		s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(string) { calls++ }))
		g := NewGuard(s)

		require.False(t, g.RequiresAuth(ctx, true))
		s.ClearExpiry()

		assert.False(t, g.RequiresAuth(ctx, true))
		assert.False(t, g.IsSessionExpired())
		assert.Equal(t, 1, calls)
	})

	t.Run("showPrompt false never prompts", func(t *testing.T) {
		calls := 0
		s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(string) { calls++ }))
		g := NewGuard(s)

		assert.False(t, g.RequiresAuth(ctx, false))
		assert.Equal(t, 0, calls)
		assert.False(t, s.ExpiryTriggered())

		// The silent check did not use up the epoch's prompt.
		assert.False(t, g.RequiresAuth(ctx, true))
		assert.Equal(t, 1, calls)
	})

	t.Run("login re-arms the prompt", func(t *testing.T) {
		calls := 0
		s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(string) { calls++ }))
		g := NewGuard(s)

		require.False(t, g.RequiresAuth(ctx, true))
		require.NoError(t, s.Login(ctx, "tok", testUser("member")))
		require.True(t, g.RequiresAuth(ctx, true))
		require.NoError(t, s.Logout(ctx))

		assert.False(t, g.RequiresAuth(ctx, true))
		assert.Equal(t, 2, calls)
	})
}

func TestGuard_ConcurrentChecksPromptOnce(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	calls := 0
	s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	g := NewGuard(s)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, g.RequiresAuth(ctx, true))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

func TestGuard_AfterExpiryRequestFailure(t *testing.T) {
	ctx := context.Background()
	var prompts []string
	s := New(ctx, tokenstore.NewMemoryStore(), WithExpiryHandler(func(msg string) {
		prompts = append(prompts, msg)
	}))
	require.NoError(t, s.Login(ctx, "tok", testUser("member")))
	g := NewGuard(s)

	// A request failed with 401 and the user dismissed the banner.
	require.True(t, s.SignalExpiry(ctx, DefaultExpiredMessage))
	s.ClearExpiry()

	assert.False(t, g.RequiresAuth(ctx, true))
	assert.Equal(t, []string{DefaultExpiredMessage}, prompts)
}
