package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rvachhani/presenced/internal/attend/store"
)

type EmployeeStore struct {
	mu   sync.RWMutex
	recs map[string]store.EmployeeRecord
}

func NewEmployeeStore(recs ...store.EmployeeRecord) *EmployeeStore {
	m := make(map[string]store.EmployeeRecord, len(recs))
	for _, r := range recs {
		m[r.EmployeeCode] = r
	}
	return &EmployeeStore{recs: m}
}

func (s *EmployeeStore) GetAll(_ context.Context) ([]store.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.EmployeeRecord, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return out, nil
}

func (s *EmployeeStore) Get(_ context.Context, employeeCode string) (store.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[employeeCode]
	if !ok {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	return r, nil
}

func (s *EmployeeStore) Upsert(_ context.Context, rec store.EmployeeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.EmployeeCode] = rec
	return nil
}

func (s *EmployeeStore) Delete(_ context.Context, employeeCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[employeeCode]; !ok {
		return store.ErrEmployeeNotFound
	}
	delete(s.recs, employeeCode)
	return nil
}
