// Package memory provides the in-process KV backend for flow state.
// Every entry carries the TTL configured for its stage; a background
// janitor sweeps expired entries so abandoned transactions don't pile
// up between reads.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/openauthority/idp/internal/idp/store"
)

const defaultJanitorInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is a mutex-guarded map-of-maps keyed by stage then entry key.
// It implements store.KV.
type Store struct {
	mu     sync.Mutex
	stages map[store.Stage]map[string]entry

	ttls            map[store.Stage]time.Duration
	defaultTTL      time.Duration
	janitorInterval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithStageTTL overrides the TTL for a single stage.
func WithStageTTL(stage store.Stage, ttl time.Duration) Option {
	return func(s *Store) { s.ttls[stage] = ttl }
}

// WithJanitorInterval changes how often expired entries are swept.
// Intervals <= 0 disable the janitor; expired entries are then only
// dropped lazily on access.
func WithJanitorInterval(interval time.Duration) Option {
	return func(s *Store) { s.janitorInterval = interval }
}

// New creates a memory store where every stage defaults to defaultTTL.
func New(defaultTTL time.Duration, opts ...Option) *Store {
	s := &Store{
		stages:          make(map[store.Stage]map[string]entry),
		ttls:            make(map[store.Stage]time.Duration),
		defaultTTL:      defaultTTL,
		stop:            make(chan struct{}),
		janitorInterval: defaultJanitorInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.janitorInterval > 0 {
		go s.janitor()
	}
	return s
}

// Close stops the janitor goroutine.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *Store) Get(ctx context.Context, stage store.Stage, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(stage, key)
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *Store) Set(ctx context.Context, stage store.Stage, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(stage, key, value)
	return nil
}

func (s *Store) SetNX(ctx context.Context, stage store.Stage, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(stage, key); ok {
		return store.ErrAlreadyExists
	}
	s.put(stage, key, value)
	return nil
}

func (s *Store) GetDel(ctx context.Context, stage store.Stage, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(stage, key)
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.stages[stage], key)
	return e.value, nil
}

func (s *Store) Delete(ctx context.Context, stage store.Stage, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.stages[stage]; ok {
		delete(m, key)
	}
	return nil
}

// lookup finds a live entry, lazily discarding it when expired.
// Caller must hold s.mu.
func (s *Store) lookup(stage store.Stage, key string) (entry, bool) {
	m, ok := s.stages[stage]
	if !ok {
		return entry{}, false
	}
	e, ok := m[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(m, key)
		return entry{}, false
	}
	return e, true
}

// put stores a value with the stage's TTL. Caller must hold s.mu.
func (s *Store) put(stage store.Stage, key string, value []byte) {
	m, ok := s.stages[stage]
	if !ok {
		m = make(map[string]entry)
		s.stages[stage] = m
	}

	ttl, ok := s.ttls[stage]
	if !ok {
		ttl = s.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	m[key] = entry{value: buf, expiresAt: expiresAt}
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.stages {
		for key, e := range m {
			if e.expired(now) {
				delete(m, key)
			}
		}
	}
}
