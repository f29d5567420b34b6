package upload_test

import (
	"testing"
	"time"

	"breed-detector/internal/breeds"
	"breed-detector/internal/preview"
	"breed-detector/internal/upload"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionCache(t *testing.T, maxSize int) (*upload.SessionCache, *preview.Store) {
	catalog, err := breeds.Default()
	require.NoError(t, err)
	previews := preview.NewStore(0, "/previews")

	cache := upload.NewSessionCache(maxSize, func() *upload.Controller {
		return upload.NewController(newFakePredictor(), previews, catalog, upload.Options{})
	})
	return cache, previews
}

func TestSessionCacheCreateAndGet(t *testing.T) {
	cache, _ := newSessionCache(t, 10)

	id, controller := cache.Create()
	assert.NotEqual(t, uuid.Nil, id)

	got, ok := cache.Get(id)
	require.True(t, ok)
	assert.Same(t, controller, got)
	assert.Same(t, controller, cache.GetOrCreate(id))

	_, ok = cache.Get(uuid.New())
	assert.False(t, ok)

	other := cache.GetOrCreate(uuid.New())
	assert.NotSame(t, controller, other)
	assert.Equal(t, 2, cache.Len())
}

func TestSessionCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache, previews := newSessionCache(t, 2)

	firstID, first := cache.Create()
	require.NoError(t, first.SelectFile(photo(t, "first.png")))
	time.Sleep(2 * time.Millisecond)

	secondID, second := cache.Create()
	require.NoError(t, second.SelectFile(photo(t, "second.png")))
	time.Sleep(2 * time.Millisecond)

	_, ok := cache.Get(firstID)
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	cache.Create()
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get(secondID)
	assert.False(t, ok, "least recently used session evicted")
	_, ok = cache.Get(firstID)
	assert.True(t, ok)

	assert.Equal(t, upload.Idle, second.State(), "evicted controller is reset")
	assert.Equal(t, 1, previews.Len())
}

func TestSessionCacheClose(t *testing.T) {
	cache, previews := newSessionCache(t, 0)

	_, c := cache.Create()
	require.NoError(t, c.SelectFile(photo(t, "cow.png")))
	require.Equal(t, 1, previews.Len())

	cache.Close()
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, 0, previews.Len())
}
