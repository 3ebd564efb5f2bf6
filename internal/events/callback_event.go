package events

// CallbackEvent delivers values synchronously to registered callbacks.
// The sequencer uses it for lifecycle transitions, where listeners must observe
// transitions in the order they happened.
type CallbackEvent[T any] struct {
	reg *registry[T, func(T)]
}

// NewCallbackEvent creates a CallbackEvent. When replayLast is true a new
// listener is immediately called with the most recent value, if there is one.
func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{reg: newRegistry[T, func(T)](replayLast)}
}

// Listen registers callback and returns a function that removes it.
// The returned function is safe to call more than once.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("events: callback cannot be nil")
	}
	id, last, replay := e.reg.add(callback)
	if replay {
		callback(last)
	}
	return func() { e.reg.remove(id) }
}

// Notify calls every listener with value. Listeners run outside the lock so
// they may unregister themselves or call Notify again.
func (e *CallbackEvent[T]) Notify(value T) {
	for _, callback := range e.reg.record(value) {
		callback(value)
	}
}

// Last returns the most recent value when replay is enabled.
func (e *CallbackEvent[T]) Last() (T, bool) {
	return e.reg.latest()
}

// ListenerCount returns the number of registered listeners.
func (e *CallbackEvent[T]) ListenerCount() int {
	return e.reg.count()
}
