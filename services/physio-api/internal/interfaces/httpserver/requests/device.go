package requests

// StartDeviceRequest starts an exercise; an empty preset keeps the selected one.
type StartDeviceRequest struct {
	PresetID string `json:"preset_id" validate:"max=64"`
}

// SelectPresetRequest picks the programme for the next exercise.
type SelectPresetRequest struct {
	PresetID string `json:"preset_id" validate:"required,max=64"`
}

// DeviceStatusRequest is a status report pushed by the controller.
type DeviceStatusRequest struct {
	PatientID   string   `json:"patient_id" validate:"required,max=128"`
	Device      string   `json:"device" validate:"required,oneof=glove exoskeleton"`
	Status      string   `json:"status" validate:"omitempty,oneof=idle running completed stopped emergency_stopped"`
	Progress    *int     `json:"progress"`
	SensorValue *float64 `json:"sensor_value"`
	// At is milliseconds since the Unix epoch; zero means now.
	At int64 `json:"at" validate:"gte=0"`
}
