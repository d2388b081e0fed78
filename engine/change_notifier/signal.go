package change_notifier

// Signal is an explicit subscriber list for a single event kind.
// The zero value is ready to use. Subscribers are called in subscription order.
type Signal[T any] struct {
	nextID      uint64
	subscribers []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is a no-op.
//
// Parameters:
//   - fn: the callback to invoke on Emit
//
// Returns:
//   - func(): unsubscribes fn
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscriber[T]{id: id, fn: fn})
	return func() {
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every subscriber with v. Subscribers added or removed during Emit take effect on the next Emit.
func (s *Signal[T]) Emit(v T) {
	subs := s.subscribers
	for _, sub := range subs {
		sub.fn(v)
	}
}

// Len returns the number of subscribers.
func (s *Signal[T]) Len() int {
	return len(s.subscribers)
}

// Clear removes every subscriber.
func (s *Signal[T]) Clear() {
	s.subscribers = nil
}
