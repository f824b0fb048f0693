package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(User{}, DoctorData{}, DoctorPatient{}, PatientData{}, ExerciseRecord{})
}

// User is the persisted profile document.
type User struct {
	ID             string    `gorm:"type:varchar(64);primaryKey"`
	Email          string    `gorm:"type:varchar(320);not null;uniqueIndex:ux_users_email"`
	FullName       string    `gorm:"type:varchar(255);not null"`
	Role           string    `gorm:"type:varchar(16);not null;index:idx_users_role_active"`
	LicenseNumber  string    `gorm:"type:varchar(64);not null;default:''"`
	Specialization string    `gorm:"type:varchar(128);not null;default:''"`
	Age            int       `gorm:"not null;default:0"`
	Phone          string    `gorm:"type:varchar(32);not null;default:''"`
	IsActive       bool      `gorm:"not null;index:idx_users_role_active"`
	AuthProvider   string    `gorm:"type:varchar(16);not null;default:'password'"`
	PasswordHash   string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

// NewSchemaUser converts a domain user into a schema instance.
func NewSchemaUser(u *user.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           string(u.Role),
		LicenseNumber:  u.LicenseNumber,
		Specialization: u.Specialization,
		Age:            u.Age,
		Phone:          u.Phone,
		IsActive:       u.IsActive,
		AuthProvider:   string(u.AuthProvider),
		PasswordHash:   u.PasswordHash,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// EtoD converts a schema user back to the domain representation.
func (u *User) EtoD() *user.User {
	if u == nil {
		return nil
	}
	return &user.User{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           user.Role(u.Role),
		LicenseNumber:  u.LicenseNumber,
		Specialization: u.Specialization,
		Age:            u.Age,
		Phone:          u.Phone,
		IsActive:       u.IsActive,
		AuthProvider:   user.AuthProvider(u.AuthProvider),
		PasswordHash:   u.PasswordHash,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// DoctorData is the doctor's role document. Assigned patients live in
// doctor_patients.
type DoctorData struct {
	DoctorID       string            `gorm:"type:varchar(64);primaryKey"`
	Schedule       datatypes.JSONMap `gorm:"not null"`
	TotalPatients  int               `gorm:"not null;default:0"`
	ActivePatients int               `gorm:"not null;default:0"`
	UpdatedAt      time.Time         `gorm:"not null"`
}

func (DoctorData) TableName() string { return "doctor_data" }

// DoctorPatient links a patient to a doctor.
type DoctorPatient struct {
	DoctorID  string    `gorm:"type:varchar(64);primaryKey"`
	PatientID string    `gorm:"type:varchar(64);primaryKey;index:idx_doctor_patients_patient"`
	CreatedAt time.Time `gorm:"not null"`
}

func (DoctorPatient) TableName() string { return "doctor_patients" }

// NewSchemaDoctorData converts the doctor document.
func NewSchemaDoctorData(d *user.DoctorData) *DoctorData {
	if d == nil {
		return nil
	}
	schedule := datatypes.JSONMap{}
	for k, v := range d.Schedule {
		schedule[k] = v
	}
	return &DoctorData{
		DoctorID:       d.DoctorID,
		Schedule:       schedule,
		TotalPatients:  d.Statistics.TotalPatients,
		ActivePatients: d.Statistics.ActivePatients,
		UpdatedAt:      d.UpdatedAt,
	}
}

// EtoD converts the doctor document back, attaching the patient links.
func (d *DoctorData) EtoD(patientIDs []string) *user.DoctorData {
	if d == nil {
		return nil
	}
	if patientIDs == nil {
		patientIDs = []string{}
	}
	schedule := map[string]any{}
	for k, v := range d.Schedule {
		schedule[k] = v
	}
	return &user.DoctorData{
		DoctorID:   d.DoctorID,
		PatientIDs: patientIDs,
		Schedule:   schedule,
		Statistics: user.DoctorStatistics{
			TotalPatients:  d.TotalPatients,
			ActivePatients: d.ActivePatients,
		},
		UpdatedAt: d.UpdatedAt,
	}
}

// PatientData is the patient's role document.
type PatientData struct {
	PatientID         string                      `gorm:"type:varchar(64);primaryKey"`
	Conditions        datatypes.JSONSlice[string] `gorm:"not null"`
	Medications       datatypes.JSONSlice[string] `gorm:"not null"`
	CurrentWeek       int                         `gorm:"not null;default:0"`
	CompletedSessions int                         `gorm:"not null;default:0"`
	UpdatedAt         time.Time                   `gorm:"not null"`
}

func (PatientData) TableName() string { return "patient_data" }

// NewSchemaPatientData converts the patient document.
func NewSchemaPatientData(p *user.PatientData) *PatientData {
	if p == nil {
		return nil
	}
	return &PatientData{
		PatientID:         p.PatientID,
		Conditions:        append(datatypes.JSONSlice[string]{}, p.Conditions...),
		Medications:       append(datatypes.JSONSlice[string]{}, p.Medications...),
		CurrentWeek:       p.Progress.CurrentWeek,
		CompletedSessions: p.Progress.CompletedSessions,
		UpdatedAt:         p.UpdatedAt,
	}
}

// EtoD converts the patient document back.
func (p *PatientData) EtoD() *user.PatientData {
	if p == nil {
		return nil
	}
	return &user.PatientData{
		PatientID:   p.PatientID,
		Conditions:  append([]string{}, p.Conditions...),
		Medications: append([]string{}, p.Medications...),
		Progress: user.PatientProgress{
			CurrentWeek:       p.CurrentWeek,
			CompletedSessions: p.CompletedSessions,
		},
		UpdatedAt: p.UpdatedAt,
	}
}

// ExerciseRecord is one row of a patient's exercise history.
type ExerciseRecord struct {
	ID            string `gorm:"type:varchar(64);primaryKey"`
	PatientID     string `gorm:"type:varchar(64);not null;index:idx_exercise_records_patient_ended,priority:1"`
	DeviceKind    string `gorm:"type:varchar(32);not null"`
	PresetID      string `gorm:"type:varchar(64);not null;default:''"`
	StartedAt     *time.Time
	EndedAt       time.Time `gorm:"not null;index:idx_exercise_records_patient_ended,priority:2,sort:desc"`
	FinalProgress int       `gorm:"not null;default:0"`
	Outcome       string    `gorm:"type:varchar(32);not null"`
}

func (ExerciseRecord) TableName() string { return "exercise_records" }

// NewSchemaExerciseRecord converts a domain record.
func NewSchemaExerciseRecord(r *user.ExerciseRecord) *ExerciseRecord {
	if r == nil {
		return nil
	}
	out := &ExerciseRecord{
		ID:            r.ID,
		PatientID:     r.PatientID,
		DeviceKind:    r.DeviceKind,
		PresetID:      r.PresetID,
		EndedAt:       r.EndedAt,
		FinalProgress: r.FinalProgress,
		Outcome:       string(r.Outcome),
	}
	if !r.StartedAt.IsZero() {
		started := r.StartedAt
		out.StartedAt = &started
	}
	return out
}

// EtoD converts a record back.
func (r *ExerciseRecord) EtoD() *user.ExerciseRecord {
	if r == nil {
		return nil
	}
	out := &user.ExerciseRecord{
		ID:            r.ID,
		PatientID:     r.PatientID,
		DeviceKind:    r.DeviceKind,
		PresetID:      r.PresetID,
		EndedAt:       r.EndedAt,
		FinalProgress: r.FinalProgress,
		Outcome:       user.ExerciseOutcome(r.Outcome),
	}
	if r.StartedAt != nil {
		out.StartedAt = *r.StartedAt
	}
	return out
}
