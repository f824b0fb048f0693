package userrepo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/database"
	"physio-server/services/physio-api/internal/infrastructure/database/transaction"
	"physio-server/services/physio-api/internal/infrastructure/repository/userrepo"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

func newGormRepository(t *testing.T) *userrepo.UserGormRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(database.Config{
		Driver:     config.DatabaseDriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "users.db"),
		LogLevel:   gormlogger.Silent,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(ctx, db, config.DatabaseDriverSQLite, zerolog.Nop()))
	return userrepo.NewUserGormRepository(transaction.NewDatabase(db))
}

func createPatient(t *testing.T, repo user.Repository, id, email, name string, active bool) {
	t.Helper()
	now := time.Now().UTC()
	u := &user.User{ID: id, Email: email, FullName: name, Role: user.RolePatient, IsActive: active, AuthProvider: user.AuthProviderPassword, CreatedAt: now, UpdatedAt: now}
	data := user.RoleData{Patient: &user.PatientData{PatientID: id, Conditions: []string{"knee"}, UpdatedAt: now}}
	require.NoError(t, repo.Create(context.Background(), u, data))
}

func createDoctor(t *testing.T, repo user.Repository, id, email, name string) {
	t.Helper()
	now := time.Now().UTC()
	u := &user.User{ID: id, Email: email, FullName: name, Role: user.RoleDoctor, LicenseNumber: "LIC-" + id, IsActive: true, AuthProvider: user.AuthProviderPassword, CreatedAt: now, UpdatedAt: now}
	data := user.RoleData{Doctor: &user.DoctorData{DoctorID: id, UpdatedAt: now}}
	require.NoError(t, repo.Create(context.Background(), u, data))
}

func TestUserGormRepository_CreateAndFind(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	createPatient(t, repo, "p1", "ana@clinic.test", "Ana", true)

	byID, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "ana@clinic.test", byID.Email)
	assert.Equal(t, user.RolePatient, byID.Role)

	byEmail, err := repo.FindByEmail(ctx, "ana@clinic.test")
	require.NoError(t, err)
	assert.Equal(t, "p1", byEmail.ID)

	data, err := repo.GetPatientData(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"knee"}, data.Conditions)
	assert.Equal(t, []string{}, data.Medications)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	_, err = repo.GetDoctorData(ctx, "p1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))

	now := time.Now().UTC()
	dup := &user.User{ID: "p2", Email: "ana@clinic.test", FullName: "Other", Role: user.RolePatient, CreatedAt: now, UpdatedAt: now}
	err = repo.Create(ctx, dup, user.RoleData{Patient: &user.PatientData{PatientID: "p2"}})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
	_, err = repo.GetPatientData(ctx, "p2")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound), "a failed create leaves no role document")
}

func TestUserGormRepository_Search(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	createPatient(t, repo, "p1", "zed@clinic.test", "Zed Walker", true)
	createPatient(t, repo, "p2", "amy@clinic.test", "amy_50%", true)
	createPatient(t, repo, "p3", "amelia@clinic.test", "Amelia", false)
	createDoctor(t, repo, "d1", "dr.amy@clinic.test", "Amy Doctor")

	tests := []struct {
		name   string
		filter user.SearchFilter
		want   []string
	}{
		{name: "case insensitive name", filter: user.SearchFilter{Query: "AM", Role: user.RolePatient}, want: []string{"p3", "p2"}},
		{name: "active only", filter: user.SearchFilter{Query: "am", Role: user.RolePatient, ActiveOnly: true}, want: []string{"p2"}},
		{name: "percent is literal", filter: user.SearchFilter{Query: "50%", Role: user.RolePatient}, want: []string{"p2"}},
		{name: "underscore is literal", filter: user.SearchFilter{Query: "y_"}, want: []string{"p2"}},
		{name: "matches email", filter: user.SearchFilter{Query: "zed@"}, want: []string{"p1"}},
		{name: "role filter", filter: user.SearchFilter{Query: "amy", Role: user.RoleDoctor}, want: []string{"d1"}},
		{name: "limit", filter: user.SearchFilter{Query: "a", Limit: 2}, want: []string{"p3", "d1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repo.Search(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(found))
			for _, u := range found {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUserGormRepository_DoctorPatients(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	createDoctor(t, repo, "d1", "doc@clinic.test", "Doc")
	createPatient(t, repo, "p1", "ana@clinic.test", "Ana", true)
	createPatient(t, repo, "p2", "bo@clinic.test", "Bo", true)

	require.NoError(t, repo.AssignPatient(ctx, "d1", "p1"))
	require.NoError(t, repo.AssignPatient(ctx, "d1", "p2"))
	require.NoError(t, repo.AssignPatient(ctx, "d1", "p1"), "assigning twice is a no-op")

	data, err := repo.GetDoctorData(ctx, "d1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, data.PatientIDs)

	ids, err := repo.ListDoctorIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids)

	require.NoError(t, repo.UpdateDoctorStatistics(ctx, "d1", user.DoctorStatistics{TotalPatients: 2, ActivePatients: 1}))
	data, err = repo.GetDoctorData(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, user.DoctorStatistics{TotalPatients: 2, ActivePatients: 1}, data.Statistics)

	err = repo.UpdateDoctorStatistics(ctx, "nobody", user.DoctorStatistics{})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestUserGormRepository_Exercises(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	createPatient(t, repo, "p1", "ana@clinic.test", "Ana", true)

	base := time.Now().UTC().Truncate(time.Second)
	records := []*user.ExerciseRecord{
		{ID: "e1", PatientID: "p1", DeviceKind: "glove", StartedAt: base, EndedAt: base.Add(time.Minute), FinalProgress: 100, Outcome: user.OutcomeCompleted},
		{ID: "e2", PatientID: "p1", DeviceKind: "glove", StartedAt: base, EndedAt: base.Add(2 * time.Minute), FinalProgress: 30, Outcome: user.OutcomeStopped},
		{ID: "e3", PatientID: "p1", DeviceKind: "exoskeleton", StartedAt: base, EndedAt: base.Add(3 * time.Minute), FinalProgress: 100, Outcome: user.OutcomeCompleted},
	}
	for _, r := range records {
		require.NoError(t, repo.AppendExercise(ctx, r))
	}

	data, err := repo.GetPatientData(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, data.Progress.CompletedSessions, "only completed sessions count")

	history, err := repo.ListExercises(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "e3", history[0].ID)
	assert.Equal(t, "e2", history[1].ID)
	assert.Equal(t, user.OutcomeStopped, history[1].Outcome)
}
