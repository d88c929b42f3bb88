package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance; multi-instance deployments should use the Redis store so any
// replica can serve the commit.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore returns a store with a background janitor that reaps
// expired sessions every sweep interval.
func NewMemoryStore(sweep time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	if sweep > 0 {
		go s.janitor(sweep)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.lapse(sess) {
		return nil, ErrExpired
	}

	// Callers get a shallow copy so status changes go through the CAS
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) TransitionStatus(ctx context.Context, id string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.lapse(sess) {
		return ErrExpired
	}
	if sess.Status != from {
		return ErrConflict
	}
	sess.Status = to
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close stops the janitor goroutine
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// lapse marks a staged session expired once past its TTL. Committed
// sessions stay readable until the post-commit grace delete removes them.
// Caller must hold the lock.
func (s *MemoryStore) lapse(sess *Session) bool {
	if sess.Status == StatusStaged && time.Now().After(sess.ExpiresAt) {
		sess.Status = StatusExpired
		sess.ZipData = nil
	}
	return sess.Status == StatusExpired
}

func (s *MemoryStore) janitor(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for id, sess := range s.sessions {
				if sess.Status == StatusExpired || (sess.Status == StatusStaged && now.After(sess.ExpiresAt)) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
