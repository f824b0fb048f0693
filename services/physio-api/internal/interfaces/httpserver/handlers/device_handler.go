package handlers

import (
	"context"
	"time"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/interfaces/httpserver/requests"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

// DeviceHandler serves the patient's rehabilitation devices.
type DeviceHandler struct {
	devices *device.Service
}

func NewDeviceHandler(devices *device.Service) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// ParseKind validates the :kind path segment.
func ParseKind(ctx context.Context, raw string) (device.Kind, error) {
	kind, ok := device.ParseKind(raw)
	if !ok {
		return "", platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "unknown device, expected glove or exoskeleton", nil, "")
	}
	return kind, nil
}

func (h *DeviceHandler) List(ctx context.Context, patientID string) (*responses.DeviceSessionListResponse, error) {
	sessions, err := h.devices.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return responses.NewDeviceSessionListResponse(sessions), nil
}

func (h *DeviceHandler) Get(ctx context.Context, patientID string, kind device.Kind) (*responses.DeviceSessionResponse, error) {
	return sessionResponse(h.devices.Get(ctx, patientID, kind))
}

func (h *DeviceHandler) Presets() *responses.PresetCatalogResponse {
	catalog := make(map[string][]device.Preset, len(device.Kinds))
	for _, kind := range device.Kinds {
		catalog[string(kind)] = h.devices.Presets(kind)
	}
	return &responses.PresetCatalogResponse{Data: catalog}
}

func (h *DeviceHandler) Start(ctx context.Context, patientID string, kind device.Kind, req requests.StartDeviceRequest) (*responses.DeviceSessionResponse, error) {
	return sessionResponse(h.devices.Start(ctx, patientID, kind, req.PresetID))
}

func (h *DeviceHandler) Stop(ctx context.Context, patientID string, kind device.Kind) (*responses.DeviceSessionResponse, error) {
	return sessionResponse(h.devices.Stop(ctx, patientID, kind))
}

func (h *DeviceHandler) EmergencyStop(ctx context.Context, patientID string, kind device.Kind) (*responses.DeviceSessionResponse, error) {
	return sessionResponse(h.devices.EmergencyStop(ctx, patientID, kind))
}

func (h *DeviceHandler) SelectPreset(ctx context.Context, patientID string, kind device.Kind, req requests.SelectPresetRequest) (*responses.DeviceSessionResponse, error) {
	return sessionResponse(h.devices.SelectPreset(ctx, patientID, kind, req.PresetID))
}

// ApplyStatus ingests a report pushed by the controller over HTTP.
func (h *DeviceHandler) ApplyStatus(ctx context.Context, req requests.DeviceStatusRequest) (*responses.DeviceSessionResponse, error) {
	report := device.StatusReport{
		PatientID:   req.PatientID,
		Kind:        device.Kind(req.Device),
		Status:      device.Status(req.Status),
		Progress:    req.Progress,
		SensorValue: req.SensorValue,
	}
	if req.At > 0 {
		report.At = time.UnixMilli(req.At)
	}
	return sessionResponse(h.devices.ApplyStatus(ctx, report))
}

func (h *DeviceHandler) Subscribe(ctx context.Context, patientID string, kind device.Kind) (<-chan *device.Session, error) {
	return h.devices.Subscribe(ctx, patientID, kind)
}

func sessionResponse(sess *device.Session, err error) (*responses.DeviceSessionResponse, error) {
	if err != nil {
		return nil, err
	}
	return responses.NewDeviceSessionResponse(sess), nil
}
