// Package observable provides a value container that publishes every change
// to an explicit list of subscribers.
package observable

import "sync"

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Value holds a T. The zero Value is ready to use.
type Value[T any] struct {
	mu     sync.RWMutex
	v      T
	nextID int
	subs   []subscriber[T]
}

func New[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

func (o *Value[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// Set stores v and calls every subscriber with it, in subscription order.
// Subscribers run on the caller's goroutine after the lock is released.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	o.v = v
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(v)
	}
}

// Update replaces the value with fn(current) atomically and publishes it.
func (o *Value[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	v := fn(o.v)
	o.v = v
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(v)
	}
	return v
}

// Subscribe registers fn for future changes. The returned function removes
// the subscription and may be called more than once.
func (o *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs = append(o.subs, subscriber[T]{id: id, fn: fn})
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
				return
			}
		}
	}
}
