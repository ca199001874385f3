package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"huntcurator/internal/model"
)

// memorySessionStore keeps encoded sessions in a bounded, expiring LRU.
// Values are stored as JSON so callers never share maps or slices.
type memorySessionStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemorySessionStore is used when no Redis is configured and in tests
func NewMemorySessionStore(size int, ttl time.Duration) SessionStore {
	return &memorySessionStore{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (m *memorySessionStore) Save(_ context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	m.lru.Add(session.ID, data)
	return nil
}

func (m *memorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	data, ok := m.lru.Get(id)
	if !ok {
		return nil, nil
	}
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *memorySessionStore) Delete(_ context.Context, id string) error {
	m.lru.Remove(id)
	return nil
}
