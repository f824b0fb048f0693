package responses

import (
	"time"

	"physio-server/services/physio-api/internal/domain/dashboard"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/utils/functional"
)

// UserResponse is the public part of a profile.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	LicenseNumber  string    `json:"license_number,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Age            int       `json:"age,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewUserResponse(u *user.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		Role:           string(u.Role),
		LicenseNumber:  u.LicenseNumber,
		Specialization: u.Specialization,
		Age:            u.Age,
		Phone:          u.Phone,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
	}
}

type UserListResponse struct {
	Data []*UserResponse `json:"data"`
}

func NewUserListResponse(users []*user.User) *UserListResponse {
	return &UserListResponse{Data: functional.Map(users, NewUserResponse)}
}

type DoctorDataResponse struct {
	PatientIDs     []string       `json:"patient_ids"`
	Schedule       map[string]any `json:"schedule"`
	TotalPatients  int            `json:"total_patients"`
	ActivePatients int            `json:"active_patients"`
}

type PatientDataResponse struct {
	Conditions        []string `json:"conditions"`
	Medications       []string `json:"medications"`
	CurrentWeek       int      `json:"current_week"`
	CompletedSessions int      `json:"completed_sessions"`
}

// ProfileResponse is the caller's own profile with their role document.
type ProfileResponse struct {
	User        *UserResponse        `json:"user"`
	DoctorData  *DoctorDataResponse  `json:"doctor_data,omitempty"`
	PatientData *PatientDataResponse `json:"patient_data,omitempty"`
}

func NewProfileResponse(u *user.User, data *user.RoleData) *ProfileResponse {
	resp := &ProfileResponse{User: NewUserResponse(u)}
	if data == nil {
		return resp
	}
	if d := data.Doctor; d != nil {
		resp.DoctorData = &DoctorDataResponse{
			PatientIDs:     nonNil(d.PatientIDs),
			Schedule:       d.Schedule,
			TotalPatients:  d.Statistics.TotalPatients,
			ActivePatients: d.Statistics.ActivePatients,
		}
	}
	if p := data.Patient; p != nil {
		resp.PatientData = &PatientDataResponse{
			Conditions:        nonNil(p.Conditions),
			Medications:       nonNil(p.Medications),
			CurrentWeek:       p.Progress.CurrentWeek,
			CompletedSessions: p.Progress.CompletedSessions,
		}
	}
	return resp
}

type ExerciseResponse struct {
	ID            string    `json:"id"`
	Device        string    `json:"device"`
	PresetID      string    `json:"preset_id,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	FinalProgress int       `json:"final_progress"`
	Outcome       string    `json:"outcome"`
}

type ExerciseListResponse struct {
	Data []*ExerciseResponse `json:"data"`
}

func NewExerciseListResponse(records []*user.ExerciseRecord) *ExerciseListResponse {
	return &ExerciseListResponse{Data: functional.Map(records, func(r *user.ExerciseRecord) *ExerciseResponse {
		return &ExerciseResponse{
			ID:            r.ID,
			Device:        r.DeviceKind,
			PresetID:      r.PresetID,
			StartedAt:     r.StartedAt,
			EndedAt:       r.EndedAt,
			FinalProgress: r.FinalProgress,
			Outcome:       string(r.Outcome),
		}
	})}
}

// DashboardRowResponse is one patient on the doctor dashboard.
type DashboardRowResponse struct {
	Patient           *UserResponse            `json:"patient"`
	Progress          int                      `json:"progress"`
	CompletedSessions int                      `json:"completed_sessions"`
	LastExerciseAt    *time.Time               `json:"last_exercise_at,omitempty"`
	Devices           []*DeviceSessionResponse `json:"devices"`
}

type DashboardResponse struct {
	Data []*DashboardRowResponse `json:"data"`
}

func NewDashboardResponse(rows []*dashboard.PatientRow) *DashboardResponse {
	return &DashboardResponse{Data: functional.Map(rows, func(row *dashboard.PatientRow) *DashboardRowResponse {
		return &DashboardRowResponse{
			Patient:           NewUserResponse(row.Patient),
			Progress:          row.Progress,
			CompletedSessions: row.CompletedSessions,
			LastExerciseAt:    row.LastExerciseAt,
			Devices:           functional.Map(row.Devices, NewDeviceSessionResponse),
		}
	})}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
