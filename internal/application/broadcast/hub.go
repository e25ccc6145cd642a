// Package broadcast fans task events out to live subscribers.
package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/longregen/parallelproof/internal/adapters/metrics"
	"github.com/longregen/parallelproof/internal/domain/models"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

var ErrHubClosed = errors.New("broadcast hub is closed")

// Subscription receives the events of one task. Done is closed when the
// subscription ends, whether by Unsubscribe, by the hub dropping a
// subscriber that stopped draining, or by hub shutdown. Events is never
// closed; readers select on both.
type Subscription struct {
	taskID string
	events chan models.TaskEvent
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) TaskID() string                  { return s.taskID }
func (s *Subscription) Events() <-chan models.TaskEvent { return s.events }
func (s *Subscription) Done() <-chan struct{}           { return s.done }

func (s *Subscription) end() bool {
	ended := false
	s.once.Do(func() {
		close(s.done)
		ended = true
	})
	return ended
}

type topic struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Hub is the registry of subscribers per task id. Publishing for one task
// only locks that task's topic.
type Hub struct {
	mu         sync.Mutex
	topics     map[string]*topic
	closed     bool
	bufferSize int
	logger     *slog.Logger
}

func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics:     make(map[string]*topic),
		bufferSize: bufferSize,
		logger:     logger.With("component", "broadcast"),
	}
}

// Subscribe registers a new subscriber for taskID. Events published before
// this call are not replayed.
func (h *Hub) Subscribe(taskID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	t, ok := h.topics[taskID]
	if !ok {
		t = &topic{subs: make(map[*Subscription]struct{})}
		h.topics[taskID] = t
	}

	sub := &Subscription{
		taskID: taskID,
		events: make(chan models.TaskEvent, h.bufferSize),
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	metrics.Subscribers.Inc()
	return sub, nil
}

// Unsubscribe removes sub. Calling it more than once is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	t, ok := h.topics[sub.taskID]
	h.mu.Unlock()

	if ok {
		t.mu.Lock()
		delete(t.subs, sub)
		t.mu.Unlock()
		h.prune(sub.taskID, t)
	}

	if sub.end() {
		metrics.Subscribers.Dec()
	}
}

// Publish delivers event to every current subscriber of taskID without
// blocking. A subscriber whose buffer is full is dropped; the others still
// receive the event.
func (h *Hub) Publish(taskID string, event models.TaskEvent) {
	h.mu.Lock()
	t, ok := h.topics[taskID]
	h.mu.Unlock()
	if !ok {
		return
	}

	var dropped []*Subscription

	t.mu.Lock()
	for sub := range t.subs {
		select {
		case <-sub.done:
			delete(t.subs, sub)
			continue
		default:
		}

		select {
		case sub.events <- event:
		default:
			delete(t.subs, sub)
			dropped = append(dropped, sub)
		}
	}
	t.mu.Unlock()

	for _, sub := range dropped {
		if sub.end() {
			metrics.Subscribers.Dec()
		}
		metrics.EventsDropped.Inc()
		h.logger.Warn("dropped slow subscriber", "task_id", taskID, "event", event.Type)
	}
	h.prune(taskID, t)
}

// SubscriberCount returns the number of subscribers registered for taskID.
func (h *Hub) SubscriberCount(taskID string) int {
	h.mu.Lock()
	t, ok := h.topics[taskID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// TopicCount returns the number of task ids with at least one subscriber.
func (h *Hub) TopicCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for taskID, t := range h.topics {
		t.mu.Lock()
		for sub := range t.subs {
			if sub.end() {
				metrics.Subscribers.Dec()
			}
		}
		t.subs = nil
		t.mu.Unlock()
		delete(h.topics, taskID)
	}
}

// prune removes t from the registry when it has no subscribers left. Lock
// order is hub then topic.
func (h *Hub) prune(taskID string, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[taskID] != t {
		return
	}
	t.mu.Lock()
	empty := len(t.subs) == 0
	t.mu.Unlock()
	if empty {
		delete(h.topics, taskID)
	}
}
