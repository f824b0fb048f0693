package devicerepo

import (
	"context"
	"sort"
	"sync"

	"physio-server/services/physio-api/internal/domain/device"
)

type sessionKey struct {
	patientID string
	kind      device.Kind
}

// InMemoryRepository keeps sessions in a map guarded by a mutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*device.Session
}

var _ device.Store = (*InMemoryRepository)(nil)

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[sessionKey]*device.Session)}
}

func (r *InMemoryRepository) Get(ctx context.Context, patientID string, kind device.Kind) (*device.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[sessionKey{patientID, kind}]
	if !ok {
		return nil, device.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (r *InMemoryRepository) ListByPatient(ctx context.Context, patientID string) ([]*device.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*device.Session, 0, len(device.Kinds))
	for key, sess := range r.sessions {
		if key.patientID == patientID {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (r *InMemoryRepository) ListRunning(ctx context.Context) ([]*device.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*device.Session, 0)
	for _, sess := range r.sessions {
		if sess.Status == device.StatusRunning {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Save(ctx context.Context, s *device.Session, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey{s.PatientID, s.Kind}
	current, exists := r.sessions[key]
	switch {
	case expectedVersion == 0 && exists:
		return device.ErrVersionConflict
	case expectedVersion != 0 && (!exists || current.Version != expectedVersion):
		return device.ErrVersionConflict
	}
	r.sessions[key] = s.Clone()
	return nil
}
