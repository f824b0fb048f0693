package user

import "context"

// Repository persists profiles, role documents and exercise history.
type Repository interface {
	// Create stores the user and its role document atomically.
	Create(ctx context.Context, u *User, data RoleData) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
	// Search returns users matching the filter sorted by full name.
	Search(ctx context.Context, filter SearchFilter) ([]*User, error)

	GetDoctorData(ctx context.Context, doctorID string) (*DoctorData, error)
	GetPatientData(ctx context.Context, patientID string) (*PatientData, error)
	AssignPatient(ctx context.Context, doctorID, patientID string) error
	ListDoctorIDs(ctx context.Context) ([]string, error)
	UpdateDoctorStatistics(ctx context.Context, doctorID string, stats DoctorStatistics) error

	// AppendExercise stores the record and bumps completed sessions for completed outcomes.
	AppendExercise(ctx context.Context, record *ExerciseRecord) error
	ListExercises(ctx context.Context, patientID string, limit int) ([]*ExerciseRecord, error)
}

// Cache keeps recently loaded profiles close to the chat hot path.
type Cache interface {
	Get(ctx context.Context, id string) (*User, bool)
	Set(ctx context.Context, u *User)
	Invalidate(ctx context.Context, id string)
}
