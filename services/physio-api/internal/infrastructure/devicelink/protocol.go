package devicelink

import (
	"context"
	"time"

	"physio-server/services/physio-api/internal/domain/device"
)

// FrameType tells the two ends of the link what a frame carries.
type FrameType string

const (
	FrameCommand FrameType = "command"
	FrameStatus  FrameType = "status"
	FrameAck     FrameType = "ack"
	FrameError   FrameType = "error"
)

// Frame is one JSON object sent as a WebSocket text frame in either direction.
type Frame struct {
	Type        FrameType `json:"type" jsonschema:"enum=command,enum=status,enum=ack,enum=error"`
	RequestID   string    `json:"request_id,omitempty"`
	Command     string    `json:"command,omitempty" jsonschema:"enum=start,enum=stop,enum=emergency_stop,enum=select_preset"`
	Device      string    `json:"device" jsonschema:"enum=glove,enum=exoskeleton"`
	PatientID   string    `json:"patient_id"`
	PresetID    string    `json:"preset_id,omitempty"`
	Status      string    `json:"status,omitempty" jsonschema:"enum=idle,enum=running,enum=completed,enum=stopped,enum=emergency_stopped"`
	Progress    *int      `json:"progress,omitempty" jsonschema:"minimum=0,maximum=100"`
	SensorValue *float64  `json:"sensor_value,omitempty"`
	Message     string    `json:"message,omitempty"`
	// At is milliseconds since the Unix epoch.
	At int64 `json:"at"`
}

// Link is a controller connection that reports status frames back.
type Link interface {
	device.Controller
	OnStatus(handler StatusHandler)
	Run(ctx context.Context) error
}

var (
	_ Link = (*Client)(nil)
	_ Link = (*Simulator)(nil)
	_ Link = Disabled{}
)

// StatusHandler receives status reports from the controller.
type StatusHandler func(ctx context.Context, report device.StatusReport)

// CommandFrame encodes a controller command.
func CommandFrame(requestID string, cmd device.ControllerCommand) Frame {
	return Frame{
		Type:      FrameCommand,
		RequestID: requestID,
		Command:   string(cmd.Command),
		Device:    string(cmd.Kind),
		PatientID: cmd.PatientID,
		PresetID:  cmd.PresetID,
		At:        cmd.IssuedAt.UnixMilli(),
	}
}

// StatusFrame encodes a status report.
func StatusFrame(report device.StatusReport) Frame {
	return Frame{
		Type:        FrameStatus,
		Device:      string(report.Kind),
		PatientID:   report.PatientID,
		Status:      string(report.Status),
		Progress:    report.Progress,
		SensorValue: report.SensorValue,
		At:          report.At.UnixMilli(),
	}
}

// Report decodes a status frame.
func (f Frame) Report() device.StatusReport {
	report := device.StatusReport{
		PatientID:   f.PatientID,
		Kind:        device.Kind(f.Device),
		Status:      device.Status(f.Status),
		Progress:    f.Progress,
		SensorValue: f.SensorValue,
	}
	if f.At > 0 {
		report.At = time.UnixMilli(f.At)
	}
	return report
}
