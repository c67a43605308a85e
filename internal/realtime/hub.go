package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Publisher accepts change events for fan-out.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Hub fans changes out to in-process subscribers. Callbacks run on the
// publishing goroutine and must not block.
type Hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]func(Change)
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: map[uint64]func(Change){}, log: log}
}

func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, fn := range h.subs {
		fn(c)
	}
	return nil
}

// Subscribe registers fn and returns its unsubscribe. Calling the returned
// function more than once is harmless.
func (h *Hub) Subscribe(fn func(Change)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	h.log.Debug("realtime subscriber added", zap.Uint64("id", id))

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			h.log.Debug("realtime subscriber removed", zap.Uint64("id", id))
		})
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
