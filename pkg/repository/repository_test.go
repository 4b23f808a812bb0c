package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedbridge/feedbridge/pkg/domain"
)

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	cfg := Config{
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Second,
	}

	repos, err := NewRepositories(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, repos.Close())
	})

	require.NoError(t, repos.Ping(context.Background()))
	return repos
}

func TestSeenRepository_RecordIfNew(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	item := domain.Item{Title: "First", Link: "https://news.example.com/1", GUID: "guid-1"}

	// first sighting is new
	isNew, err := repos.Seen.RecordIfNew(ctx, "news.example.com", item)
	require.NoError(t, err)
	assert.True(t, isNew)

	// same identity again is a duplicate, not an error
	isNew, err = repos.Seen.RecordIfNew(ctx, "news.example.com", item)
	require.NoError(t, err)
	assert.False(t, isNew)

	// changed later fallback fields keep the same identity
	changed := item
	changed.Title = "First (updated)"
	isNew, err = repos.Seen.RecordIfNew(ctx, "news.example.com", changed)
	require.NoError(t, err)
	assert.False(t, isNew)

	// different identity is new
	other := domain.Item{Title: "Second", GUID: "guid-2"}
	isNew, err = repos.Seen.RecordIfNew(ctx, "news.example.com", other)
	require.NoError(t, err)
	assert.True(t, isNew)

	// same identity under another source is independent
	isNew, err = repos.Seen.RecordIfNew(ctx, "other.example.com", item)
	require.NoError(t, err)
	assert.True(t, isNew)

	count, err := repos.Seen.Count(ctx, "news.example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSeenRepository_IdentityFallback(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	// items without guid dedup on link, then title, then description
	byLink := domain.Item{Title: "A", Link: "https://news.example.com/a"}
	isNew, err := repos.Seen.RecordIfNew(ctx, "news.example.com", byLink)
	require.NoError(t, err)
	assert.True(t, isNew)

	sameLink := domain.Item{Title: "A renamed", Link: "https://news.example.com/a"}
	isNew, err = repos.Seen.RecordIfNew(ctx, "news.example.com", sameLink)
	require.NoError(t, err)
	assert.False(t, isNew)

	byDescription := domain.Item{Description: "only text"}
	isNew, err = repos.Seen.RecordIfNew(ctx, "news.example.com", byDescription)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestSubscriptionRepository(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	t.Run("empty registry", func(t *testing.T) {
		hostnames, err := repos.Subscription.ListSourceHostnames(ctx)
		require.NoError(t, err)
		assert.Empty(t, hostnames)

		subs, err := repos.Subscription.ListSubscribers(ctx, "news.example.com")
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("subscribe and list", func(t *testing.T) {
		require.NoError(t, repos.Subscription.Subscribe(ctx, "news.example.com", "https://social.example.com/users/alice"))
		require.NoError(t, repos.Subscription.Subscribe(ctx, "news.example.com", "https://social.example.com/users/bob"))
		require.NoError(t, repos.Subscription.Subscribe(ctx, "blog.example.org", "https://social.example.com/users/alice"))

		hostnames, err := repos.Subscription.ListSourceHostnames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"blog.example.org", "news.example.com"}, hostnames)

		subs, err := repos.Subscription.ListSubscribers(ctx, "news.example.com")
		require.NoError(t, err)
		assert.Len(t, subs, 2)
		assert.Contains(t, subs, "https://social.example.com/users/alice")
		assert.Contains(t, subs, "https://social.example.com/users/bob")
	})

	t.Run("refollow does not duplicate", func(t *testing.T) {
		require.NoError(t, repos.Subscription.Subscribe(ctx, "news.example.com", "https://social.example.com/users/alice"))

		subs, err := repos.Subscription.ListSubscribers(ctx, "news.example.com")
		require.NoError(t, err)
		assert.Len(t, subs, 2)
	})

	t.Run("unsubscribe", func(t *testing.T) {
		require.NoError(t, repos.Subscription.Unsubscribe(ctx, "news.example.com", "https://social.example.com/users/bob"))

		subs, err := repos.Subscription.ListSubscribers(ctx, "news.example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://social.example.com/users/alice"}, subs)

		// unsubscribing a non-subscriber is a no-op
		require.NoError(t, repos.Subscription.Unsubscribe(ctx, "news.example.com", "https://social.example.com/users/mallory"))
	})
}
