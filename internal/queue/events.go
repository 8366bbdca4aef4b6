package queue

import (
	"sync"

	"jobq/internal/models"
)

const eventBuffer = 64

// broker fans session events out to watchers. Sends never block: a watcher
// whose buffer is full misses the event.
type broker struct {
	mu       sync.Mutex
	watchers map[string]map[chan models.SessionEvent]struct{}
}

func newBroker() *broker {
	return &broker{watchers: make(map[string]map[chan models.SessionEvent]struct{})}
}

// subscribe registers a watcher for sessionID. cancel is idempotent and safe
// to call after the session was closed.
func (b *broker) subscribe(sessionID string) (<-chan models.SessionEvent, func()) {
	ch := make(chan models.SessionEvent, eventBuffer)

	b.mu.Lock()
	set, ok := b.watchers[sessionID]
	if !ok {
		set = make(map[chan models.SessionEvent]struct{})
		b.watchers[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			set, ok := b.watchers[sessionID]
			if !ok {
				return
			}
			if _, ok := set[ch]; !ok {
				return
			}
			delete(set, ch)
			close(ch)
			if len(set) == 0 {
				delete(b.watchers, sessionID)
			}
		})
	}
	return ch, cancel
}

// publish delivers ev to the session's watchers and reports how many missed
// it.
func (b *broker) publish(ev models.SessionEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for ch := range b.watchers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// closeSession delivers a final event and ends every stream of the session.
func (b *broker) closeSession(ev models.SessionEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for ch := range b.watchers[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			dropped++
		}
		close(ch)
	}
	delete(b.watchers, ev.SessionID)
	return dropped
}

func (b *broker) count(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers[sessionID])
}
