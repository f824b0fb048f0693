package device

import (
	"context"
	"errors"
	"time"

	"physio-server/services/physio-api/internal/domain/user"
)

var (
	// ErrSessionNotFound is returned by stores for sessions never written.
	ErrSessionNotFound = errors.New("device session not found")
	// ErrVersionConflict is returned when the stored version moved on.
	ErrVersionConflict = errors.New("device session version conflict")
	// ErrControllerUnavailable is returned when no controller link is up.
	ErrControllerUnavailable = errors.New("device controller unavailable")
)

// Store persists device sessions with optimistic versioning.
type Store interface {
	Get(ctx context.Context, patientID string, kind Kind) (*Session, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Session, error)
	ListRunning(ctx context.Context) ([]*Session, error)
	// Save writes s if the stored version equals expectedVersion; expectedVersion
	// 0 means the session must not exist yet.
	Save(ctx context.Context, s *Session, expectedVersion int64) error
}

// Controller forwards commands to the hardware.
type Controller interface {
	Send(ctx context.Context, cmd ControllerCommand) error
	Connected() bool
}

// Locker serialises writers of the same session.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// ExerciseRecorder receives finished exercises.
type ExerciseRecorder interface {
	RecordExercise(ctx context.Context, record *user.ExerciseRecord) error
}

// PresetCatalog lists the exercise programmes per device.
type PresetCatalog interface {
	List(kind Kind) []Preset
	Find(kind Kind, id string) (Preset, bool)
}
