package user

import (
	"strings"
	"time"
)

// Role separates the two kinds of accounts. Conversations and search only
// ever pair a user with the opposite role.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Opposite returns the role a user of role r talks to.
func (r Role) Opposite() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// ParseRole normalises raw input into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// AuthProvider records how the account authenticates.
type AuthProvider string

const (
	AuthProviderPassword AuthProvider = "password"
	AuthProviderOIDC     AuthProvider = "oidc"
)

// User is the profile document every account owns.
type User struct {
	ID             string
	Email          string
	FullName       string
	Role           Role
	LicenseNumber  string
	Specialization string
	Age            int
	Phone          string
	IsActive       bool
	AuthProvider   AuthProvider
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DoctorStatistics is recomputed by the statistics job.
type DoctorStatistics struct {
	TotalPatients  int
	ActivePatients int
}

// DoctorData is the role document created alongside a doctor profile.
type DoctorData struct {
	DoctorID   string
	PatientIDs []string
	Schedule   map[string]any
	Statistics DoctorStatistics
	UpdatedAt  time.Time
}

// PatientProgress tracks the patient's programme.
type PatientProgress struct {
	CurrentWeek       int
	CompletedSessions int
}

// PatientData is the role document created alongside a patient profile.
type PatientData struct {
	PatientID   string
	Conditions  []string
	Medications []string
	Progress    PatientProgress
	UpdatedAt   time.Time
}

// RoleData holds whichever role document applies; the other is nil.
type RoleData struct {
	Doctor  *DoctorData
	Patient *PatientData
}

// ExerciseOutcome is how an exercise session ended.
type ExerciseOutcome string

const (
	OutcomeCompleted     ExerciseOutcome = "completed"
	OutcomeStopped       ExerciseOutcome = "stopped"
	OutcomeEmergencyStop ExerciseOutcome = "emergency_stop"
)

// ExerciseRecord is one finished device session in the patient's history.
type ExerciseRecord struct {
	ID            string
	PatientID     string
	DeviceKind    string
	PresetID      string
	StartedAt     time.Time
	EndedAt       time.Time
	FinalProgress int
	Outcome       ExerciseOutcome
}

// CreateProfileInput carries everything needed to create an account.
type CreateProfileInput struct {
	ID             string
	Email          string
	FullName       string
	Role           Role
	LicenseNumber  string
	Specialization string
	Age            int
	Phone          string
	PasswordHash   string
	AuthProvider   AuthProvider
}

// SearchFilter narrows user search.
type SearchFilter struct {
	Query      string
	Role       Role
	ActiveOnly bool
	Limit      int
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
