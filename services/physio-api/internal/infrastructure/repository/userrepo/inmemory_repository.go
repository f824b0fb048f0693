package userrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

// InMemoryRepository is a thread-safe repository for tests and DB_DRIVER=memory.
type InMemoryRepository struct {
	mu        sync.RWMutex
	users     map[string]user.User
	doctors   map[string]user.DoctorData
	patients  map[string]user.PatientData
	exercises map[string][]user.ExerciseRecord
}

var _ user.Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:     make(map[string]user.User),
		doctors:   make(map[string]user.DoctorData),
		patients:  make(map[string]user.PatientData),
		exercises: make(map[string][]user.ExerciseRecord),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, u *user.User, data user.RoleData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.ID]; exists {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "a user with this id already exists", nil, "")
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "a user with this email already exists", nil, "")
		}
	}

	r.users[u.ID] = *u
	if data.Doctor != nil {
		doc := *data.Doctor
		doc.PatientIDs = append([]string{}, doc.PatientIDs...)
		r.doctors[u.ID] = doc
	}
	if data.Patient != nil {
		r.patients[u.ID] = *data.Patient
	}
	return nil
}

func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "User data not found", nil, "")
	}
	return &u, nil
}

func (r *InMemoryRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "User data not found", nil, "")
}

func (r *InMemoryRepository) FindByIDs(ctx context.Context, ids []string) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			found := u
			out = append(out, &found)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Search(ctx context.Context, filter user.SearchFilter) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]*user.User, 0)
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.IsActive {
			continue
		}
		if !strings.Contains(strings.ToLower(u.FullName), needle) && !strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		found := u
		out = append(out, &found)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) GetDoctorData(ctx context.Context, doctorID string) (*user.DoctorData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.doctors[doctorID]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "doctor data not found", nil, "")
	}
	doc.PatientIDs = append([]string{}, doc.PatientIDs...)
	return &doc, nil
}

func (r *InMemoryRepository) GetPatientData(ctx context.Context, patientID string) (*user.PatientData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.patients[patientID]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "patient data not found", nil, "")
	}
	return &data, nil
}

func (r *InMemoryRepository) AssignPatient(ctx context.Context, doctorID, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.doctors[doctorID]
	if !ok {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "doctor data not found", nil, "")
	}
	for _, id := range doc.PatientIDs {
		if id == patientID {
			return nil
		}
	}
	doc.PatientIDs = append(append([]string{}, doc.PatientIDs...), patientID)
	doc.UpdatedAt = time.Now().UTC()
	r.doctors[doctorID] = doc
	return nil
}

func (r *InMemoryRepository) ListDoctorIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.doctors))
	for id := range r.doctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *InMemoryRepository) UpdateDoctorStatistics(ctx context.Context, doctorID string, stats user.DoctorStatistics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.doctors[doctorID]
	if !ok {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "doctor data not found", nil, "")
	}
	doc.Statistics = stats
	doc.UpdatedAt = time.Now().UTC()
	r.doctors[doctorID] = doc
	return nil
}

func (r *InMemoryRepository) AppendExercise(ctx context.Context, record *user.ExerciseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exercises[record.PatientID] = append(r.exercises[record.PatientID], *record)
	if record.Outcome == user.OutcomeCompleted {
		if data, ok := r.patients[record.PatientID]; ok {
			data.Progress.CompletedSessions++
			data.UpdatedAt = time.Now().UTC()
			r.patients[record.PatientID] = data
		}
	}
	return nil
}

func (r *InMemoryRepository) ListExercises(ctx context.Context, patientID string, limit int) ([]*user.ExerciseRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.exercises[patientID]
	out := make([]*user.ExerciseRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		out = append(out, &record)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
