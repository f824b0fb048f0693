package userrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/database/dbschema"
	"physio-server/services/physio-api/internal/infrastructure/database/transaction"
	"physio-server/services/physio-api/internal/utils/functional"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

type UserGormRepository struct {
	db *transaction.Database
}

var _ user.Repository = (*UserGormRepository)(nil)

func NewUserGormRepository(db *transaction.Database) *UserGormRepository {
	return &UserGormRepository{db: db}
}

// primary routes reads that must observe the caller's own writes.
func (repo *UserGormRepository) primary(ctx context.Context) *gorm.DB {
	return repo.db.GetTx(ctx).Clauses(dbresolver.Write)
}

func (repo *UserGormRepository) Create(ctx context.Context, u *user.User, data user.RoleData) error {
	return repo.db.InTx(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		if err := tx.Create(dbschema.NewSchemaUser(u)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict, "a user with this email already exists", err, "3f0d1c2a-8a41-4c36-9f0e-1e0b9d7f5a21")
			}
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create user", err, "c4b8e7a2-0d3f-4e59-8b1a-6f2e9d4c7a10")
		}
		if data.Doctor != nil {
			if err := tx.Create(dbschema.NewSchemaDoctorData(data.Doctor)).Error; err != nil {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create doctor data", err, "")
			}
		}
		if data.Patient != nil {
			if err := tx.Create(dbschema.NewSchemaPatientData(data.Patient)).Error; err != nil {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create patient data", err, "")
			}
		}
		return nil
	})
}

func (repo *UserGormRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	var entity dbschema.User
	err := repo.primary(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "User data not found", err, "")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find user by ID", err, "a9d3f8e4-21c7-4f5b-9a2e-6d8f9e1a2b3c")
	}
	return entity.EtoD(), nil
}

func (repo *UserGormRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var entity dbschema.User
	err := repo.primary(ctx).Where("email = ?", email).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "User data not found", err, "")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find user by email", err, "b2a7c2d5-53b2-44a3-8f8f-927f94e9a4db")
	}
	return entity.EtoD(), nil
}

func (repo *UserGormRepository) FindByIDs(ctx context.Context, ids []string) ([]*user.User, error) {
	if len(ids) == 0 {
		return []*user.User{}, nil
	}
	var entities []dbschema.User
	if err := repo.db.GetTx(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load users", err, "")
	}
	return functional.Map(entities, func(e dbschema.User) *user.User { return e.EtoD() }), nil
}

func (repo *UserGormRepository) Search(ctx context.Context, filter user.SearchFilter) ([]*user.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(filter.Query))) + "%"
	query := repo.db.GetTx(ctx).
		Where("(LOWER(full_name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\')", pattern, pattern)
	if filter.Role != "" {
		query = query.Where("role = ?", string(filter.Role))
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	query = query.Order("LOWER(full_name) ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entities []dbschema.User
	if err := query.Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to search users", err, "")
	}
	return functional.Map(entities, func(e dbschema.User) *user.User { return e.EtoD() }), nil
}

func (repo *UserGormRepository) GetDoctorData(ctx context.Context, doctorID string) (*user.DoctorData, error) {
	var entity dbschema.DoctorData
	err := repo.primary(ctx).Where("doctor_id = ?", doctorID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "doctor data not found", err, "")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load doctor data", err, "")
	}

	var patientIDs []string
	err = repo.primary(ctx).
		Model(&dbschema.DoctorPatient{}).
		Where("doctor_id = ?", doctorID).
		Order("created_at ASC").
		Pluck("patient_id", &patientIDs).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load doctor patients", err, "")
	}
	return entity.EtoD(patientIDs), nil
}

func (repo *UserGormRepository) GetPatientData(ctx context.Context, patientID string) (*user.PatientData, error) {
	var entity dbschema.PatientData
	err := repo.primary(ctx).Where("patient_id = ?", patientID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "patient data not found", err, "")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load patient data", err, "")
	}
	return entity.EtoD(), nil
}

func (repo *UserGormRepository) AssignPatient(ctx context.Context, doctorID, patientID string) error {
	link := dbschema.DoctorPatient{DoctorID: doctorID, PatientID: patientID, CreatedAt: time.Now().UTC()}
	err := repo.db.GetTx(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to assign patient", err, "")
	}
	return nil
}

func (repo *UserGormRepository) ListDoctorIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := repo.db.GetTx(ctx).
		Model(&dbschema.DoctorData{}).
		Order("doctor_id ASC").
		Pluck("doctor_id", &ids).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list doctors", err, "")
	}
	return ids, nil
}

func (repo *UserGormRepository) UpdateDoctorStatistics(ctx context.Context, doctorID string, stats user.DoctorStatistics) error {
	result := repo.db.GetTx(ctx).
		Model(&dbschema.DoctorData{}).
		Where("doctor_id = ?", doctorID).
		Updates(map[string]any{
			"total_patients":  stats.TotalPatients,
			"active_patients": stats.ActivePatients,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update doctor statistics", result.Error, "")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "doctor data not found", nil, "")
	}
	return nil
}

func (repo *UserGormRepository) AppendExercise(ctx context.Context, record *user.ExerciseRecord) error {
	return repo.db.InTx(ctx, func(ctx context.Context) error {
		tx := repo.db.GetTx(ctx)
		if err := tx.Create(dbschema.NewSchemaExerciseRecord(record)).Error; err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to store exercise record", err, "")
		}
		if record.Outcome != user.OutcomeCompleted {
			return nil
		}
		err := tx.Model(&dbschema.PatientData{}).
			Where("patient_id = ?", record.PatientID).
			Updates(map[string]any{
				"completed_sessions": gorm.Expr("completed_sessions + 1"),
				"updated_at":         time.Now().UTC(),
			}).Error
		if err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update patient progress", err, "")
		}
		return nil
	})
}

func (repo *UserGormRepository) ListExercises(ctx context.Context, patientID string, limit int) ([]*user.ExerciseRecord, error) {
	query := repo.db.GetTx(ctx).
		Where("patient_id = ?", patientID).
		Order("ended_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entities []dbschema.ExerciseRecord
	if err := query.Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list exercises", err, "")
	}
	return functional.Map(entities, func(e dbschema.ExerciseRecord) *user.ExerciseRecord { return e.EtoD() }), nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
