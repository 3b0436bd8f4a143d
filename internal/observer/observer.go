// Package observer provides an ordered list of handlers.
//
// Components register handlers once and notify them in registration order;
// handlers are never swapped out at run time.
package observer

import "sync"

type List[T any] struct {
	mu       sync.RWMutex
	handlers []func(T)
}

// Add - appends a handler to the end of the chain.
func (that *List[T]) Add(handler func(T)) {
	if handler == nil {
		return
	}

	that.mu.Lock()
	that.handlers = append(that.handlers, handler)
	that.mu.Unlock()
}

// Notify - calls every handler in order. Handlers may register more handlers;
// those only see later notifications.
func (that *List[T]) Notify(value T) {
	that.mu.RLock()
	handlers := make([]func(T), len(that.handlers))
	copy(handlers, that.handlers)
	that.mu.RUnlock()

	for _, handler := range handlers {
		handler(value)
	}
}

func (that *List[T]) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.handlers)
}
