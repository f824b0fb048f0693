package device

import (
	"strings"
	"time"
)

// Kind identifies the rehabilitation device.
type Kind string

const (
	KindGlove       Kind = "glove"
	KindExoskeleton Kind = "exoskeleton"
)

// Kinds lists every supported device.
var Kinds = []Kind{KindGlove, KindExoskeleton}

// ParseKind normalises raw input into a Kind.
func ParseKind(raw string) (Kind, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	return kind, kind == KindGlove || kind == KindExoskeleton
}

// Status is the session state shown on the dashboards.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusRunning          Status = "running"
	StatusCompleted        Status = "completed"
	StatusStopped          Status = "stopped"
	StatusEmergencyStopped Status = "emergency_stopped"
)

// Terminal reports whether the status ends an exercise.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusEmergencyStopped
}

// Command is sent to the device controller.
type Command string

const (
	CommandStart         Command = "start"
	CommandStop          Command = "stop"
	CommandEmergencyStop Command = "emergency_stop"
	CommandSelectPreset  Command = "select_preset"
)

// SensorSample is one reading from the device.
type SensorSample struct {
	Value float64 `json:"value"`
	At    int64   `json:"at"`
}

// Session is the state of one patient's device.
type Session struct {
	PatientID     string
	Kind          Kind
	Status        Status
	LastCommand   Command
	PresetID      string
	Progress      int
	SensorValue   float64
	SensorHistory []SensorSample
	// Version increases on every write and guards concurrent updates.
	Version   int64
	StartedAt *time.Time
	UpdatedAt time.Time
}

// NewIdleSession is the state of a device that has never been used.
func NewIdleSession(patientID string, kind Kind) *Session {
	return &Session{
		PatientID:     patientID,
		Kind:          kind,
		Status:        StatusIdle,
		SensorHistory: []SensorSample{},
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	out := *s
	out.SensorHistory = append([]SensorSample(nil), s.SensorHistory...)
	if s.StartedAt != nil {
		started := *s.StartedAt
		out.StartedAt = &started
	}
	return &out
}

// Preset is a named exercise programme selectable on a device.
type Preset struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	Kind            Kind   `yaml:"kind" json:"kind"`
	Description     string `yaml:"description" json:"description"`
	DurationSeconds int    `yaml:"duration_seconds" json:"duration_seconds"`
	Repetitions     int    `yaml:"repetitions" json:"repetitions"`
	Intensity       int    `yaml:"intensity" json:"intensity"`
}

// ControllerCommand is what the service asks the controller to do.
type ControllerCommand struct {
	Command   Command
	Kind      Kind
	PatientID string
	PresetID  string
	IssuedAt  time.Time
}

// StatusReport is what the controller tells the service. Nil fields are unchanged.
type StatusReport struct {
	PatientID   string
	Kind        Kind
	Status      Status
	Progress    *int
	SensorValue *float64
	At          time.Time
}
