package user

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/utils/functional"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

const (
	defaultSearchLimit   = 10
	defaultExerciseLimit = 100
)

// Service implements profile, role-document and patient-linkage operations.
type Service struct {
	repo        Repository
	cache       Cache
	sanitizer   *telemetry.Sanitizer
	searchLimit int
	now         func() time.Time
	log         zerolog.Logger
}

// NewService builds the profile service. cache may be nil.
func NewService(repo Repository, cache Cache, sanitizer *telemetry.Sanitizer, searchLimit int, log zerolog.Logger) *Service {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		sanitizer:   sanitizer,
		searchLimit: searchLimit,
		now:         time.Now,
		log:         log.With().Str("component", "user-service").Logger(),
	}
}

// CreateProfile writes the user document with createdAt and isActive=true
// plus the empty role document for its role.
func (s *Service) CreateProfile(ctx context.Context, input CreateProfileInput) (*User, error) {
	role, ok := ParseRole(string(input.Role))
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "role must be patient or doctor", nil, "")
	}
	email := NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "a valid email is required", nil, "")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "full name is required", nil, "")
	}
	if input.Age < 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "age cannot be negative", nil, "")
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	provider := input.AuthProvider
	if provider == "" {
		provider = AuthProviderPassword
	}

	now := s.now().UTC()
	u := &User{
		ID:           id,
		Email:        email,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
		AuthProvider: provider,
		PasswordHash: input.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var data RoleData
	switch role {
	case RoleDoctor:
		u.LicenseNumber = strings.TrimSpace(input.LicenseNumber)
		u.Specialization = strings.TrimSpace(input.Specialization)
		data.Doctor = &DoctorData{
			DoctorID:   id,
			PatientIDs: []string{},
			Schedule:   map[string]any{},
			UpdatedAt:  now,
		}
	case RolePatient:
		u.Age = input.Age
		u.Phone = strings.TrimSpace(input.Phone)
		data.Patient = &PatientData{
			PatientID:   id,
			Conditions:  []string{},
			Medications: []string{},
			UpdatedAt:   now,
		}
	}

	if err := s.repo.Create(ctx, u, data); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create user profile")
	}

	s.log.Info().
		Str("user_id", u.ID).
		Str("role", string(u.Role)).
		Str("email", s.sanitizer.SanitizeEmail(u.Email)).
		Msg("user profile created")
	return u, nil
}

// GetProfile returns the user document. A missing profile is a NOT_FOUND error.
func (s *Service) GetProfile(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "user id is required", nil, "")
	}
	if s.cache != nil {
		if u, ok := s.cache.Get(ctx, id); ok {
			return u, nil
		}
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "User data not found")
	}
	if s.cache != nil {
		s.cache.Set(ctx, u)
	}
	return u, nil
}

// FindByEmail looks a user up by normalised email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "User data not found")
	}
	return u, nil
}

// GetRoleSpecificData returns the doctor or patient document for the user.
func (s *Service) GetRoleSpecificData(ctx context.Context, id string, role Role) (*RoleData, error) {
	switch role {
	case RoleDoctor:
		data, err := s.repo.GetDoctorData(ctx, id)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load doctor data")
		}
		return &RoleData{Doctor: data}, nil
	case RolePatient:
		data, err := s.repo.GetPatientData(ctx, id)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load patient data")
		}
		return &RoleData{Patient: data}, nil
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown role", nil, "")
	}
}

// SearchUsers returns active users of the opposite role whose name or email
// contains the query, sorted by name and capped at the search limit.
func (s *Service) SearchUsers(ctx context.Context, query string, currentRole Role) ([]*User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*User{}, nil
	}
	if !currentRole.Valid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown role", nil, "")
	}

	users, err := s.repo.Search(ctx, SearchFilter{
		Query:      query,
		Role:       currentRole.Opposite(),
		ActiveOnly: true,
		Limit:      s.searchLimit,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to search users")
	}

	sortByName(users)
	return functional.Take(users, s.searchLimit), nil
}

// AssignPatient links a patient to a doctor. Assigning twice is a no-op.
func (s *Service) AssignPatient(ctx context.Context, doctorID, patientID string) error {
	doctor, err := s.GetProfile(ctx, doctorID)
	if err != nil {
		return err
	}
	if doctor.Role != RoleDoctor {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "only doctors can be assigned patients", nil, "")
	}
	patient, err := s.GetProfile(ctx, patientID)
	if err != nil {
		return err
	}
	if patient.Role != RolePatient {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "assigned user is not a patient", nil, "")
	}

	if err := s.repo.AssignPatient(ctx, doctorID, patientID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to assign patient")
	}
	s.log.Info().Str("doctor_id", doctorID).Str("patient_id", patientID).Msg("patient assigned")
	return nil
}

// GetDoctorPatients returns the profiles of the doctor's assigned patients.
func (s *Service) GetDoctorPatients(ctx context.Context, doctorID string) ([]*User, error) {
	data, err := s.repo.GetDoctorData(ctx, doctorID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return []*User{}, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load doctor data")
	}
	if len(data.PatientIDs) == 0 {
		return []*User{}, nil
	}
	patients, err := s.repo.FindByIDs(ctx, data.PatientIDs)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load patients")
	}
	sortByName(patients)
	return patients, nil
}

// IsDoctorOf reports whether the patient is assigned to the doctor.
func (s *Service) IsDoctorOf(ctx context.Context, doctorID, patientID string) (bool, error) {
	data, err := s.repo.GetDoctorData(ctx, doctorID)
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return false, nil
		}
		return false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load doctor data")
	}
	for _, id := range data.PatientIDs {
		if id == patientID {
			return true, nil
		}
	}
	return false, nil
}

// GetPatientExercises returns the patient's exercise history, newest first.
func (s *Service) GetPatientExercises(ctx context.Context, patientID string) ([]*ExerciseRecord, error) {
	records, err := s.repo.ListExercises(ctx, patientID, defaultExerciseLimit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load exercise history")
	}
	return records, nil
}

// RecordExercise appends a finished session to the patient's history.
func (s *Service) RecordExercise(ctx context.Context, record *ExerciseRecord) error {
	if record == nil || record.PatientID == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "exercise record requires a patient", nil, "")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = s.now().UTC()
	}
	if err := s.repo.AppendExercise(ctx, record); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to record exercise")
	}
	s.log.Info().
		Str("patient_id", record.PatientID).
		Str("device", record.DeviceKind).
		Str("outcome", string(record.Outcome)).
		Int("progress", record.FinalProgress).
		Msg("exercise recorded")
	return nil
}

// RefreshDoctorStatistics recomputes total and active patient counts for every doctor.
func (s *Service) RefreshDoctorStatistics(ctx context.Context) (int, error) {
	doctorIDs, err := s.repo.ListDoctorIDs(ctx)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list doctors")
	}

	updated := 0
	for _, doctorID := range doctorIDs {
		patients, err := s.GetDoctorPatients(ctx, doctorID)
		if err != nil {
			s.log.Error().Err(err).Str("doctor_id", doctorID).Msg("skip statistics refresh")
			continue
		}
		stats := DoctorStatistics{
			TotalPatients: len(patients),
			ActivePatients: functional.Reduce(patients, 0, func(acc int, p *User) int {
				if p.IsActive {
					return acc + 1
				}
				return acc
			}),
		}
		if err := s.repo.UpdateDoctorStatistics(ctx, doctorID, stats); err != nil {
			s.log.Error().Err(err).Str("doctor_id", doctorID).Msg("failed to store statistics")
			continue
		}
		updated++
	}
	return updated, nil
}

func sortByName(users []*User) {
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].FullName) < strings.ToLower(users[j].FullName)
	})
}
