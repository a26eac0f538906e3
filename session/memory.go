package session

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process [Store].
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty store using time.Now.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// WithClock replaces the clock used by CompareAndSwap.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, userID string) (Record, error) {
	if userID == "" {
		return Record{}, ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Put(_ context.Context, userID string, rec Record) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	s.records[userID] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, userID string, expected [32]byte, next Record) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[userID]
	if !ok {
		return ErrRecordNotFound
	}
	if subtle.ConstantTimeCompare(cur.TokenHash[:], expected[:]) != 1 {
		return ErrHashMismatch
	}
	if cur.Expired(s.now()) {
		return ErrRecordExpired
	}
	s.records[userID] = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	delete(s.records, userID)
	s.mu.Unlock()
	return nil
}
