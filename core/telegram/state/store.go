package state

import (
	"fmt"
	"time"

	"github.com/maypok86/otter"
)

const (
	// DefaultTTL is how long an untouched session survives.
	DefaultTTL = 30 * time.Minute
	// DefaultCapacity bounds the number of concurrently open sessions.
	DefaultCapacity = 10_000
)

// Options configure a Store. Zero values fall back to the defaults.
type Options struct {
	TTL      time.Duration
	Capacity int
}

// Store maps a chat id to an in-progress session value.
// Every Put refreshes the session TTL.
type Store[V any] struct {
	cache otter.Cache[int64, V]
}

// NewStore builds a Store backed by an otter cache.
func NewStore[V any](opts Options) (*Store[V], error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	c, err := otter.MustBuilder[int64, V](opts.Capacity).WithTTL(opts.TTL).Build()
	if err != nil {
		return nil, fmt.Errorf("state: build session cache (capacity %d): %w", opts.Capacity, err)
	}
	return &Store[V]{cache: c}, nil
}

// Get returns the session of the chat, if any.
func (s *Store[V]) Get(chatID int64) (V, bool) {
	return s.cache.Get(chatID)
}

// Put stores or replaces the session of the chat.
func (s *Store[V]) Put(chatID int64, v V) {
	s.cache.Set(chatID, v)
}

// Delete drops the session of the chat.
func (s *Store[V]) Delete(chatID int64) {
	s.cache.Delete(chatID)
}

// InProgress reports whether the chat has an open session.
func (s *Store[V]) InProgress(chatID int64) bool {
	return s.cache.Has(chatID)
}

// Len returns the number of open sessions.
func (s *Store[V]) Len() int {
	return s.cache.Size()
}

// Close releases the cache background goroutines.
func (s *Store[V]) Close() {
	s.cache.Close()
}
