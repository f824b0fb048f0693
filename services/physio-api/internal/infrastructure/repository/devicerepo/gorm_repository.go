package devicerepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/infrastructure/database/dbschema"
	"physio-server/services/physio-api/internal/infrastructure/database/transaction"
	"physio-server/services/physio-api/internal/utils/functional"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

// DeviceGormRepository stores sessions with a compare-and-swap on version.
type DeviceGormRepository struct {
	db *transaction.Database
}

var _ device.Store = (*DeviceGormRepository)(nil)

func NewDeviceGormRepository(db *transaction.Database) *DeviceGormRepository {
	return &DeviceGormRepository{db: db}
}

func (repo *DeviceGormRepository) primary(ctx context.Context) *gorm.DB {
	return repo.db.GetTx(ctx).Clauses(dbresolver.Write)
}

func (repo *DeviceGormRepository) Get(ctx context.Context, patientID string, kind device.Kind) (*device.Session, error) {
	var entity dbschema.DeviceSession
	err := repo.primary(ctx).
		Where("patient_id = ? AND kind = ?", patientID, string(kind)).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, device.ErrSessionNotFound
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to load device session", err, "")
	}
	return entity.EtoD(), nil
}

func (repo *DeviceGormRepository) ListByPatient(ctx context.Context, patientID string) ([]*device.Session, error) {
	var entities []dbschema.DeviceSession
	if err := repo.primary(ctx).Where("patient_id = ?", patientID).Order("kind ASC").Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list device sessions", err, "")
	}
	return functional.Map(entities, func(e dbschema.DeviceSession) *device.Session { return e.EtoD() }), nil
}

func (repo *DeviceGormRepository) ListRunning(ctx context.Context) ([]*device.Session, error) {
	var entities []dbschema.DeviceSession
	if err := repo.primary(ctx).Where("status = ?", string(device.StatusRunning)).Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list running sessions", err, "")
	}
	return functional.Map(entities, func(e dbschema.DeviceSession) *device.Session { return e.EtoD() }), nil
}

func (repo *DeviceGormRepository) Save(ctx context.Context, s *device.Session, expectedVersion int64) error {
	entity := dbschema.NewSchemaDeviceSession(s)
	tx := repo.db.GetTx(ctx)

	if expectedVersion == 0 {
		err := tx.Create(entity).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return device.ErrVersionConflict
		}
		if err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create device session", err, "")
		}
		return nil
	}

	result := tx.Model(&dbschema.DeviceSession{}).
		Where("patient_id = ? AND kind = ? AND version = ?", entity.PatientID, entity.Kind, expectedVersion).
		Updates(map[string]any{
			"status":         entity.Status,
			"last_command":   entity.LastCommand,
			"preset_id":      entity.PresetID,
			"progress":       entity.Progress,
			"sensor_value":   entity.SensorValue,
			"sensor_history": entity.SensorHistory,
			"version":        entity.Version,
			"started_at":     entity.StartedAt,
			"updated_at":     entity.UpdatedAt,
		})
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update device session", result.Error, "")
	}
	if result.RowsAffected == 0 {
		return device.ErrVersionConflict
	}
	return nil
}
