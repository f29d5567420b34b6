package upload

import (
	"log/slog"
	"sync"
	"time"

	"breed-detector/internal/metrics"

	"github.com/google/uuid"
)

const DefaultMaxSessions = 1000

type sessionEntry struct {
	controller   *Controller
	lastAccessed time.Time
}

// SessionCache holds one Controller per browser session. When full, the least
// recently used session is evicted and reset so its preview is released.
type SessionCache struct {
	lock          sync.Mutex
	sessions      map[uuid.UUID]*sessionEntry
	maxSize       int
	newController func() *Controller
}

func NewSessionCache(maxSize int, newController func() *Controller) *SessionCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSessions
	}
	return &SessionCache{
		sessions:      make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:       maxSize,
		newController: newController,
	}
}

func (cache *SessionCache) Create() (uuid.UUID, *Controller) {
	id := uuid.New()
	return id, cache.GetOrCreate(id)
}

func (cache *SessionCache) Get(sessionID uuid.UUID) (*Controller, bool) {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	entry, exists := cache.sessions[sessionID]
	if !exists {
		return nil, false
	}

	entry.lastAccessed = time.Now()
	return entry.controller, true
}

func (cache *SessionCache) GetOrCreate(sessionID uuid.UUID) *Controller {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	if entry, exists := cache.sessions[sessionID]; exists {
		entry.lastAccessed = time.Now()
		return entry.controller
	}

	if len(cache.sessions) >= cache.maxSize {
		cache.evictOldest()
	}

	controller := cache.newController()
	cache.sessions[sessionID] = &sessionEntry{
		controller:   controller,
		lastAccessed: time.Now(),
	}
	metrics.ActiveSessions.Set(float64(len(cache.sessions)))

	return controller
}

func (cache *SessionCache) evictOldest() {
	oldestSessionID := uuid.Nil
	var oldestTime time.Time
	for id, entry := range cache.sessions {
		if oldestSessionID == uuid.Nil || entry.lastAccessed.Before(oldestTime) {
			oldestSessionID = id
			oldestTime = entry.lastAccessed
		}
	}

	if oldest, ok := cache.sessions[oldestSessionID]; ok {
		oldest.controller.Reset()
		delete(cache.sessions, oldestSessionID)
		slog.Info("evicted upload session", "session_id", oldestSessionID)
	}
}

func (cache *SessionCache) Len() int {
	cache.lock.Lock()
	defer cache.lock.Unlock()
	return len(cache.sessions)
}

// Close resets every session, releasing their previews.
func (cache *SessionCache) Close() {
	cache.lock.Lock()
	defer cache.lock.Unlock()

	for id, entry := range cache.sessions {
		entry.controller.Reset()
		delete(cache.sessions, id)
	}
	metrics.ActiveSessions.Set(0)
}
