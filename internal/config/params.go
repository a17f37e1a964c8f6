package config

import (
	"sync"
	"sync/atomic"

	"dotsnatch-go/internal/detect"
)

// ParamStore hands out immutable DetectionParameters snapshots. Writers swap the
// whole value; readers never see a partially updated set.
type ParamStore struct {
	current atomic.Pointer[detect.Params]
	mu      sync.Mutex
	version atomic.Uint64
}

func NewParamStore(initial detect.Params) *ParamStore {
	s := &ParamStore{}
	p := initial.Clamped()
	s.current.Store(&p)
	return s
}

func (s *ParamStore) Snapshot() detect.Params {
	return *s.current.Load()
}

func (s *ParamStore) Version() uint64 {
	return s.version.Load()
}

func (s *ParamStore) Replace(p detect.Params) detect.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	clamped := p.Clamped()
	s.current.Store(&clamped)
	s.version.Add(1)
	return clamped
}

func (s *ParamStore) Adjust(name string, op detect.AdjustOp, step float64) (detect.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.current.Load().Adjust(name, op, step)
	if err != nil {
		return detect.Params{}, err
	}
	s.current.Store(&next)
	s.version.Add(1)
	return next, nil
}
