package dbschema

import (
	"time"

	"gorm.io/datatypes"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(DeviceSession{})
}

// DeviceSession is the stored state of one patient's device.
type DeviceSession struct {
	PatientID     string                                   `gorm:"type:varchar(64);primaryKey"`
	Kind          string                                   `gorm:"type:varchar(32);primaryKey"`
	Status        string                                   `gorm:"type:varchar(32);not null;index:idx_device_sessions_status"`
	LastCommand   string                                   `gorm:"type:varchar(32);not null;default:''"`
	PresetID      string                                   `gorm:"type:varchar(64);not null;default:''"`
	Progress      int                                      `gorm:"not null;default:0"`
	SensorValue   float64                                  `gorm:"not null;default:0"`
	SensorHistory datatypes.JSONSlice[device.SensorSample] `gorm:"not null"`
	Version       int64                                    `gorm:"not null;default:0"`
	StartedAt     *time.Time
	UpdatedAt     time.Time `gorm:"not null"`
}

func (DeviceSession) TableName() string { return "device_sessions" }

// NewSchemaDeviceSession converts a domain session.
func NewSchemaDeviceSession(s *device.Session) *DeviceSession {
	if s == nil {
		return nil
	}
	return &DeviceSession{
		PatientID:     s.PatientID,
		Kind:          string(s.Kind),
		Status:        string(s.Status),
		LastCommand:   string(s.LastCommand),
		PresetID:      s.PresetID,
		Progress:      s.Progress,
		SensorValue:   s.SensorValue,
		SensorHistory: append(datatypes.JSONSlice[device.SensorSample]{}, s.SensorHistory...),
		Version:       s.Version,
		StartedAt:     s.StartedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// EtoD converts a stored session back.
func (s *DeviceSession) EtoD() *device.Session {
	if s == nil {
		return nil
	}
	return &device.Session{
		PatientID:     s.PatientID,
		Kind:          device.Kind(s.Kind),
		Status:        device.Status(s.Status),
		LastCommand:   device.Command(s.LastCommand),
		PresetID:      s.PresetID,
		Progress:      s.Progress,
		SensorValue:   s.SensorValue,
		SensorHistory: append([]device.SensorSample{}, s.SensorHistory...),
		Version:       s.Version,
		StartedAt:     s.StartedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}
