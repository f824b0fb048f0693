package responses

import (
	"time"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/utils/functional"
)

type SensorSampleResponse struct {
	Value float64 `json:"value"`
	At    int64   `json:"at"`
}

// DeviceSessionResponse is the state of one device.
type DeviceSessionResponse struct {
	PatientID     string                 `json:"patient_id"`
	Device        string                 `json:"device"`
	Status        string                 `json:"status"`
	LastCommand   string                 `json:"last_command,omitempty"`
	PresetID      string                 `json:"preset_id,omitempty"`
	Progress      int                    `json:"progress"`
	SensorValue   float64                `json:"sensor_value"`
	SensorHistory []SensorSampleResponse `json:"sensor_history"`
	Version       int64                  `json:"version"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	UpdatedAt     *time.Time             `json:"updated_at,omitempty"`
}

func NewDeviceSessionResponse(s *device.Session) *DeviceSessionResponse {
	resp := &DeviceSessionResponse{
		PatientID:   s.PatientID,
		Device:      string(s.Kind),
		Status:      string(s.Status),
		LastCommand: string(s.LastCommand),
		PresetID:    s.PresetID,
		Progress:    s.Progress,
		SensorValue: s.SensorValue,
		SensorHistory: functional.Map(s.SensorHistory, func(sample device.SensorSample) SensorSampleResponse {
			return SensorSampleResponse{Value: sample.Value, At: sample.At}
		}),
		Version:   s.Version,
		StartedAt: s.StartedAt,
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

type DeviceSessionListResponse struct {
	Data []*DeviceSessionResponse `json:"data"`
}

func NewDeviceSessionListResponse(sessions []*device.Session) *DeviceSessionListResponse {
	return &DeviceSessionListResponse{Data: functional.Map(sessions, NewDeviceSessionResponse)}
}

// PresetCatalogResponse lists presets grouped by device.
type PresetCatalogResponse struct {
	Data map[string][]device.Preset `json:"data"`
}
