package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

// PatientRow is one line of the doctor dashboard.
type PatientRow struct {
	Patient           *user.User
	Progress          int
	CompletedSessions int
	LastExerciseAt    *time.Time
	Devices           []*device.Session
}

// Profiles is the profile surface the dashboard reads.
type Profiles interface {
	GetDoctorPatients(ctx context.Context, doctorID string) ([]*user.User, error)
	GetRoleSpecificData(ctx context.Context, id string, role user.Role) (*user.RoleData, error)
	GetPatientExercises(ctx context.Context, patientID string) ([]*user.ExerciseRecord, error)
}

// Devices is the device surface the dashboard reads.
type Devices interface {
	List(ctx context.Context, patientID string) ([]*device.Session, error)
}

// Service assembles the doctor's overview of their patients.
type Service struct {
	profiles Profiles
	devices  Devices
	log      zerolog.Logger
}

// NewService builds the dashboard service.
func NewService(profiles Profiles, devices Devices, log zerolog.Logger) *Service {
	return &Service{
		profiles: profiles,
		devices:  devices,
		log:      log.With().Str("component", "dashboard-service").Logger(),
	}
}

// DoctorDashboard lists the doctor's patients with their name and exercise
// progress, the highest progress across their devices.
func (s *Service) DoctorDashboard(ctx context.Context, doctorID string) ([]*PatientRow, error) {
	patients, err := s.profiles.GetDoctorPatients(ctx, doctorID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load doctor dashboard")
	}

	rows := make([]*PatientRow, 0, len(patients))
	for _, patient := range patients {
		row := &PatientRow{Patient: patient}

		sessions, err := s.devices.List(ctx, patient.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("patient_id", patient.ID).Msg("device state unavailable")
		}
		row.Devices = sessions
		for _, sess := range sessions {
			if sess.Progress > row.Progress {
				row.Progress = sess.Progress
			}
		}

		if data, err := s.profiles.GetRoleSpecificData(ctx, patient.ID, user.RolePatient); err == nil && data.Patient != nil {
			row.CompletedSessions = data.Patient.Progress.CompletedSessions
		}
		if history, err := s.profiles.GetPatientExercises(ctx, patient.ID); err == nil && len(history) > 0 {
			last := history[0].EndedAt
			row.LastExerciseAt = &last
		}
		rows = append(rows, row)
	}
	return rows, nil
}
