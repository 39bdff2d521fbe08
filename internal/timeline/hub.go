package timeline

import (
	"sync"

	"github.com/yaya56vv/cortex/pkg/models"
)

// subscriberBuffer is each subscriber's channel depth. A subscriber that
// falls behind loses events rather than stalling the append path.
const subscriberBuffer = 64

// hub fans appended events out to live subscribers.
type hub struct {
	mu   sync.RWMutex
	subs map[chan models.TimelineEvent]string
}

func newHub() *hub {
	return &hub{subs: make(map[chan models.TimelineEvent]string)}
}

// subscribe registers a listener. The filter restricts delivery to one
// session; empty means every session.
func (h *hub) subscribe(sessionID string) (<-chan models.TimelineEvent, func()) {
	ch := make(chan models.TimelineEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = sessionID
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// publish delivers an event to every matching subscriber without blocking.
func (h *hub) publish(event models.TimelineEvent) {
	h.mu.RLock()
	for ch, filter := range h.subs {
		if filter != "" && filter != event.SessionID {
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
	h.mu.RUnlock()
}
