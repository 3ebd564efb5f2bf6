package events

// ChannelEvent fans values out to listener channels without blocking the
// publisher: a listener whose buffer is full misses that value.
// Live metrics and UI state snapshots travel through ChannelEvents.
type ChannelEvent[T any] struct {
	reg *registry[T, chan<- T]
}

// NewChannelEvent creates a ChannelEvent. When replayLast is true a new
// listener receives the most recent value as soon as it registers.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{reg: newRegistry[T, chan<- T](replayLast)}
}

// Listen registers ch and returns a function that removes it.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("events: channel cannot be nil")
	}
	id, last, replay := e.reg.add(ch)
	if replay {
		trySend(ch, last)
	}
	return func() { e.reg.remove(id) }
}

// Notify offers value to every listener.
func (e *ChannelEvent[T]) Notify(value T) {
	for _, ch := range e.reg.record(value) {
		trySend(ch, value)
	}
}

// Last returns the most recent value when replay is enabled.
func (e *ChannelEvent[T]) Last() (T, bool) {
	return e.reg.latest()
}

// ListenerCount returns the number of registered listeners.
func (e *ChannelEvent[T]) ListenerCount() int {
	return e.reg.count()
}

func trySend[T any](ch chan<- T, value T) {
	select {
	case ch <- value:
	default:
	}
}
