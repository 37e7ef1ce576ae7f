package twitch

import "sync"

// Watch is a single-writer, many-reader published value, used for the
// Channel Agent's status watch: one writer (the Channel Agent), many
// readers (every Lobby Agent subscribed to that channel). Built with Go
// generics around a single always-current value rather than a message
// stream.
type Watch[T any] struct {
	mu   sync.Mutex
	val  T
	subs map[int]chan T
	next int
}

// NewWatch creates a Watch with the given initial value.
func NewWatch[T any](initial T) *Watch[T] {
	return &Watch[T]{val: initial, subs: make(map[int]chan T)}
}

// Set publishes a new value, non-blocking try-send to every subscriber —
// a reader that is not currently receiving simply sees the next Get().
func (w *Watch[T]) Set(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.val = v
	for _, ch := range w.subs {
		select {
		case ch <- v:
		default:
			// Drain the stale value and retry once; readers only ever care
			// about the latest status, not a backlog of transitions.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Get returns the current value.
func (w *Watch[T]) Get() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.val
}

// Subscribe registers a new reader, returning a receive-only channel
// (buffered, capacity 1, pre-loaded with the current value) and an
// unsubscribe function that must be called when the reader is done.
func (w *Watch[T]) Subscribe() (<-chan T, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.next
	w.next++
	ch := make(chan T, 1)
	ch <- w.val
	w.subs[id] = ch

	unsubscribe := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
	return ch, unsubscribe
}
