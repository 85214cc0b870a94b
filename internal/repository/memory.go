package repository

import (
	"context"
	"sync"

	"github.com/safestake/registry/internal/domain"
)

// MemoryEventRetention is how many committed events a MemoryStore keeps.
// Nothing relays them, so older events are dropped.
const MemoryEventRetention = 1024

// MemoryStore is an in-process ComplianceStore. Writers for one identity are
// serialized by a per-identity mutex; readers see only committed snapshots.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[domain.IdentityKey]*domain.ComplianceRecord
	exclusions map[domain.IdentityKey]*domain.Exclusion
	events     []domain.OutboxDraft
	maxEvents  int

	locksMu sync.Mutex
	locks   map[domain.IdentityKey]*sync.Mutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[domain.IdentityKey]*domain.ComplianceRecord),
		exclusions: make(map[domain.IdentityKey]*domain.Exclusion),
		locks:      make(map[domain.IdentityKey]*sync.Mutex),
		maxEvents:  MemoryEventRetention,
	}
}

func (s *MemoryStore) Load(_ context.Context, id domain.IdentityKey) (domain.Snapshot, error) {
	return s.snapshot(id), nil
}

func (s *MemoryStore) Update(ctx context.Context, id domain.IdentityKey, fn UpdateFunc) error {
	lock := s.identityLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.snapshot(id)
	events, err := fn(&snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Record != nil {
		s.records[id] = snap.Record.Clone()
	}
	if snap.Exclusion != nil {
		ex := *snap.Exclusion
		s.exclusions[id] = &ex
	}
	s.events = append(s.events, events...)
	if over := len(s.events) - s.maxEvents; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Events returns the retained committed events, oldest first.
func (s *MemoryStore) Events() []domain.OutboxDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OutboxDraft{}, s.events...)
}

func (s *MemoryStore) snapshot(id domain.IdentityKey) domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{Record: s.records[id], Exclusion: s.exclusions[id]}.Clone()
}

func (s *MemoryStore) identityLock(id domain.IdentityKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}
