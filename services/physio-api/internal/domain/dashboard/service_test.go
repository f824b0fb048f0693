package dashboard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/pkg/telemetry"
	"physio-server/services/physio-api/internal/domain/dashboard"
	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/repository/userrepo"
)

type stubDevices map[string][]*device.Session

func (d stubDevices) List(_ context.Context, patientID string) ([]*device.Session, error) {
	sessions, ok := d[patientID]
	if !ok {
		return nil, errors.New("store offline")
	}
	return sessions, nil
}

func TestDoctorDashboard(t *testing.T) {
	ctx := context.Background()
	profiles := user.NewService(userrepo.NewInMemoryRepository(), nil,
		telemetry.NewSanitizer(telemetry.PIILevelHashed, "test"), 10, zerolog.Nop())

	for _, in := range []user.CreateProfileInput{
		{ID: "d1", Email: "d1@example.com", FullName: "Dr One", Role: user.RoleDoctor},
		{ID: "p1", Email: "p1@example.com", FullName: "Zed", Role: user.RolePatient},
		{ID: "p2", Email: "p2@example.com", FullName: "Amy", Role: user.RolePatient},
	} {
		_, err := profiles.CreateProfile(ctx, in)
		require.NoError(t, err)
	}
	require.NoError(t, profiles.AssignPatient(ctx, "d1", "p1"))
	require.NoError(t, profiles.AssignPatient(ctx, "d1", "p2"))

	ended := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, profiles.RecordExercise(ctx, &user.ExerciseRecord{
		PatientID:     "p1",
		DeviceKind:    string(device.KindGlove),
		EndedAt:       ended,
		FinalProgress: 100,
		Outcome:       user.OutcomeCompleted,
	}))

	devices := stubDevices{
		"p1": {
			{PatientID: "p1", Kind: device.KindGlove, Progress: 100},
			{PatientID: "p1", Kind: device.KindExoskeleton, Progress: 40},
		},
	}
	svc := dashboard.NewService(profiles, devices, zerolog.Nop())

	rows, err := svc.DoctorDashboard(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Rows follow patient name order.
	assert.Equal(t, "Amy", rows[0].Patient.FullName)
	assert.Zero(t, rows[0].Progress)
	assert.Nil(t, rows[0].LastExerciseAt)

	assert.Equal(t, "Zed", rows[1].Patient.FullName)
	assert.Equal(t, 100, rows[1].Progress)
	assert.Equal(t, 1, rows[1].CompletedSessions)
	require.NotNil(t, rows[1].LastExerciseAt)
	assert.WithinDuration(t, ended, *rows[1].LastExerciseAt, time.Second)
	assert.Len(t, rows[1].Devices, 2)
}

func TestDoctorDashboardWithoutPatients(t *testing.T) {
	profiles := user.NewService(userrepo.NewInMemoryRepository(), nil,
		telemetry.NewSanitizer(telemetry.PIILevelHashed, "test"), 10, zerolog.Nop())
	svc := dashboard.NewService(profiles, stubDevices{}, zerolog.Nop())

	rows, err := svc.DoctorDashboard(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
