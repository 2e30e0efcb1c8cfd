package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/viant/batchtester/service/status"
)

// Store keeps the last snapshot in memory. Snapshots are stored encoded so
// callers never share state with the store.
type Store struct {
	data  []byte
	saves int
	mux   sync.RWMutex
}

// New creates a memory store
func New() *Store {
	return &Store{}
}

// Save implements status.Store
func (s *Store) Save(_ context.Context, snapshot *status.Snapshot) error {
	if snapshot == nil {
		return status.ErrNilSnapshot
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Load implements status.Store
func (s *Store) Load(_ context.Context) (*status.Snapshot, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	if s.data == nil {
		return nil, status.ErrNotFound
	}
	ret := &status.Snapshot{}
	if err := json.Unmarshal(s.data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Saves returns how many snapshots were saved
func (s *Store) Saves() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.saves
}

var _ status.Store = (*Store)(nil)
