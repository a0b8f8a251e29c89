package bus

import (
	"context"
	"slices"
	"sync"
)

// A broadcasting signal bus. Every waiter on a topic receives the next
// message emitted on it. You can also emit messages to topics nobody is
// waiting on, those messages are dropped.
type SignalBus[K comparable, T any] struct {
	channels map[K][]chan T
	lock     sync.Mutex
}

func NewSignalBus[K comparable, T any]() *SignalBus[K, T] {
	return &SignalBus[K, T]{
		channels: make(map[K][]chan T),
	}
}

// Emit a message on a topic.
func (s *SignalBus[K, T]) Emit(topic K, message T) {
	channels := func() []chan T {
		s.lock.Lock()
		defer s.lock.Unlock()

		if channels, ok := s.channels[topic]; ok {
			delete(s.channels, topic)
			return channels
		}
		return nil
	}()

	// Every channel is buffered and only ever receives this one message.
	for _, channel := range channels {
		channel <- message
		close(channel)
	}
}

// Wait for a message on the topic. Returns the message and a bool flag that
// indicates if the wait was aborted, either because the context is done or
// because the topic was cleaned up.
func (s *SignalBus[K, T]) Wait(ctx context.Context, topic K) (T, bool) {
	channel := make(chan T, 1)

	func() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.channels[topic] = append(s.channels[topic], channel)
	}()

	var zero T
	select {
	case value, ok := <-channel:
		if !ok {
			return zero, true
		}
		return value, false

	case <-ctx.Done():
		s.forget(topic, channel)
		return zero, true
	}
}

// Clean up a topic on the bus. All pending waits resolve as aborted.
func (s *SignalBus[K, T]) CleanUp(topic K) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if channels, ok := s.channels[topic]; ok {
		for _, channel := range channels {
			close(channel)
		}
		delete(s.channels, topic)
	}
}

// Number of waiters currently registered on a topic.
func (s *SignalBus[K, T]) Waiting(topic K) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.channels[topic])
}

func (s *SignalBus[K, T]) forget(topic K, channel chan T) {
	s.lock.Lock()
	defer s.lock.Unlock()

	channels := slices.DeleteFunc(s.channels[topic], func(c chan T) bool {
		return c == channel
	})
	if len(channels) == 0 {
		delete(s.channels, topic)
	} else {
		s.channels[topic] = channels
	}
}
