package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/realtime"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/metrics"
	"physio-server/services/physio-api/internal/utils/functional"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

const maxWriteAttempts = 5

// Config tunes the device service.
type Config struct {
	SensorHistoryLimit int
	LockTTL            time.Duration
	CommandTimeout     time.Duration
	StaleAfter         time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.SensorHistoryLimit <= 0 {
		out.SensorHistoryLimit = 100
	}
	if out.LockTTL <= 0 {
		out.LockTTL = 5 * time.Second
	}
	if out.CommandTimeout <= 0 {
		out.CommandTimeout = 5 * time.Second
	}
	if out.StaleAfter <= 0 {
		out.StaleAfter = 5 * time.Minute
	}
	return out
}

// Service owns device session state and the commands sent to the controller.
type Service struct {
	store      Store
	controller Controller
	locker     Locker
	recorder   ExerciseRecorder
	presets    PresetCatalog
	broker     realtime.Broker
	cfg        Config
	now        func() time.Time
	log        zerolog.Logger
}

// NewService builds the device service.
func NewService(
	store Store,
	controller Controller,
	locker Locker,
	recorder ExerciseRecorder,
	presets PresetCatalog,
	broker realtime.Broker,
	cfg Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:      store,
		controller: controller,
		locker:     locker,
		recorder:   recorder,
		presets:    presets,
		broker:     broker,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		log:        log.With().Str("component", "device-service").Logger(),
	}
}

// Get returns the session; a device never used reads as idle.
func (s *Service) Get(ctx context.Context, patientID string, kind Kind) (*Session, error) {
	sess, err := s.store.Get(ctx, patientID, kind)
	if errors.Is(err, ErrSessionNotFound) {
		return NewIdleSession(patientID, kind), nil
	}
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load device session")
	}
	return sess, nil
}

// List returns the patient's session for every device kind.
func (s *Service) List(ctx context.Context, patientID string) ([]*Session, error) {
	stored, err := s.store.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list device sessions")
	}
	byKind := functional.KeyBy(stored, func(sess *Session) Kind { return sess.Kind })

	sessions := make([]*Session, 0, len(Kinds))
	for _, kind := range Kinds {
		if sess, ok := byKind[kind]; ok {
			sessions = append(sessions, sess)
			continue
		}
		sessions = append(sessions, NewIdleSession(patientID, kind))
	}
	return sessions, nil
}

// Presets lists the programmes available on a device.
func (s *Service) Presets(kind Kind) []Preset {
	return s.presets.List(kind)
}

// Start begins an exercise with the given preset, or the one already selected.
func (s *Service) Start(ctx context.Context, patientID string, kind Kind, presetID string) (*Session, error) {
	var result *Session
	err := s.locked(ctx, patientID, kind, func(ctx context.Context) error {
		cur, err := s.Get(ctx, patientID, kind)
		if err != nil {
			return err
		}
		if cur.Status == StatusRunning {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "device session already running", nil, "")
		}

		presetID = strings.TrimSpace(presetID)
		if presetID == "" {
			presetID = cur.PresetID
		}
		if presetID == "" {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "preset is required", nil, "")
		}
		if _, ok := s.presets.Find(kind, presetID); !ok {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown preset for device", nil, "")
		}

		if err := s.send(ctx, CommandStart, patientID, kind, presetID); err != nil {
			return err
		}

		now := s.now().UTC()
		result, err = s.update(ctx, patientID, kind, false, func(sess *Session) (bool, error) {
			if sess.Status == StatusRunning {
				return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "device session already running", nil, "")
			}
			sess.Status = StatusRunning
			sess.LastCommand = CommandStart
			sess.PresetID = presetID
			sess.Progress = 0
			sess.SensorHistory = []SensorSample{}
			sess.StartedAt = &now
			return true, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stop ends a running exercise. Stopping a session that is not running is a no-op.
func (s *Service) Stop(ctx context.Context, patientID string, kind Kind) (*Session, error) {
	var result *Session
	err := s.locked(ctx, patientID, kind, func(ctx context.Context) error {
		cur, err := s.Get(ctx, patientID, kind)
		if err != nil {
			return err
		}
		if cur.Status != StatusRunning {
			result = cur
			return nil
		}
		if err := s.send(ctx, CommandStop, patientID, kind, cur.PresetID); err != nil {
			return err
		}
		result, err = s.update(ctx, patientID, kind, false, func(sess *Session) (bool, error) {
			if sess.Status != StatusRunning {
				return false, nil
			}
			sess.Status = StatusStopped
			sess.LastCommand = CommandStop
			return true, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmergencyStop halts the device unconditionally. It does not wait for the
// session lock, a controller failure is logged rather than returned, and the
// state write wins over any concurrent writer.
func (s *Service) EmergencyStop(ctx context.Context, patientID string, kind Kind) (*Session, error) {
	if err := s.send(ctx, CommandEmergencyStop, patientID, kind, ""); err != nil {
		s.log.Error().Err(err).
			Str("patient_id", patientID).
			Str("device", string(kind)).
			Msg("emergency stop could not reach the controller")
	}

	result, err := s.update(ctx, patientID, kind, true, func(sess *Session) (bool, error) {
		if sess.Status == StatusEmergencyStopped {
			return false, nil
		}
		sess.Status = StatusEmergencyStopped
		sess.LastCommand = CommandEmergencyStop
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn().Str("patient_id", patientID).Str("device", string(kind)).Msg("emergency stop")
	return result, nil
}

// SelectPreset changes the programme of an idle device.
func (s *Service) SelectPreset(ctx context.Context, patientID string, kind Kind, presetID string) (*Session, error) {
	presetID = strings.TrimSpace(presetID)
	if _, ok := s.presets.Find(kind, presetID); !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown preset for device", nil, "")
	}

	var result *Session
	err := s.locked(ctx, patientID, kind, func(ctx context.Context) error {
		cur, err := s.Get(ctx, patientID, kind)
		if err != nil {
			return err
		}
		if cur.Status == StatusRunning {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "cannot change preset while running", nil, "")
		}
		if err := s.send(ctx, CommandSelectPreset, patientID, kind, presetID); err != nil {
			return err
		}
		result, err = s.update(ctx, patientID, kind, false, func(sess *Session) (bool, error) {
			if sess.Status == StatusRunning {
				return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "cannot change preset while running", nil, "")
			}
			sess.PresetID = presetID
			sess.LastCommand = CommandSelectPreset
			return true, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyStatus folds a controller report into the session. A report claiming
// the device runs is ignored while the session is emergency stopped.
func (s *Service) ApplyStatus(ctx context.Context, report StatusReport) (*Session, error) {
	if strings.TrimSpace(report.PatientID) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "status report requires a patient", nil, "")
	}
	kind, ok := ParseKind(string(report.Kind))
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown device", nil, "")
	}
	report.Kind = kind
	if report.Status != "" && !validStatus(report.Status) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown device status", nil, "")
	}
	at := report.At
	if at.IsZero() {
		at = s.now()
	}

	var result *Session
	err := s.locked(ctx, report.PatientID, report.Kind, func(ctx context.Context) error {
		var err error
		result, err = s.update(ctx, report.PatientID, report.Kind, false, func(sess *Session) (bool, error) {
			changed := false
			if report.SensorValue != nil {
				sess.SensorValue = *report.SensorValue
				sess.SensorHistory = functional.TakeLast(
					append(sess.SensorHistory, SensorSample{Value: *report.SensorValue, At: at.UnixMilli()}),
					s.cfg.SensorHistoryLimit,
				)
				changed = true
			}
			if report.Progress != nil {
				progress := clampProgress(*report.Progress)
				if progress != sess.Progress {
					sess.Progress = progress
					changed = true
				}
			}
			if report.Status != "" && report.Status != sess.Status {
				if sess.Status == StatusEmergencyStopped && report.Status == StatusRunning {
					s.log.Warn().
						Str("patient_id", sess.PatientID).
						Str("device", string(sess.Kind)).
						Msg("ignoring running report after emergency stop")
				} else {
					sess.Status = report.Status
					changed = true
				}
			}
			if sess.Status == StatusRunning && sess.Progress >= 100 {
				sess.Status = StatusCompleted
				changed = true
			}
			return changed, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Subscribe streams the full session state after every change until ctx ends.
func (s *Service) Subscribe(ctx context.Context, patientID string, kind Kind) (<-chan *Session, error) {
	topic := realtime.DeviceTopic(patientID, string(kind))
	ch, err := realtime.Watch(ctx, s.broker, topic, func(ctx context.Context) (*Session, error) {
		return s.Get(ctx, patientID, kind)
	}, s.log)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to subscribe to device session")
	}
	return ch, nil
}

// SweepStale marks running sessions that stopped reporting as stopped.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	running, err := s.store.ListRunning(ctx)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list running sessions")
	}

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	swept := 0
	for _, sess := range running {
		if sess.UpdatedAt.After(cutoff) {
			continue
		}
		_, err := s.update(ctx, sess.PatientID, sess.Kind, false, func(cur *Session) (bool, error) {
			if cur.Status != StatusRunning || cur.UpdatedAt.After(cutoff) {
				return false, nil
			}
			cur.Status = StatusStopped
			cur.LastCommand = CommandStop
			return true, nil
		})
		if err != nil {
			s.log.Error().Err(err).Str("patient_id", sess.PatientID).Str("device", string(sess.Kind)).Msg("failed to stop stale session")
			continue
		}
		swept++
	}
	return swept, nil
}

type transition func(sess *Session) (bool, error)

// update applies apply to the freshest stored state with compare-and-swap,
// retrying on version conflicts. Unless force is set, a retry that finds a
// newly emergency-stopped session gives up instead of overriding it.
func (s *Service) update(ctx context.Context, patientID string, kind Kind, force bool, apply transition) (*Session, error) {
	var firstStatus Status
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		prev, err := s.Get(ctx, patientID, kind)
		if err != nil {
			return nil, err
		}
		if attempt == 0 {
			firstStatus = prev.Status
		} else if !force && prev.Status == StatusEmergencyStopped && firstStatus != StatusEmergencyStopped {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "device was emergency stopped", nil, "")
		}

		next := prev.Clone()
		changed, err := apply(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return prev, nil
		}
		next.Version = prev.Version + 1
		next.UpdatedAt = s.now().UTC()

		err = s.store.Save(ctx, next, prev.Version)
		if errors.Is(err, ErrVersionConflict) {
			metrics.RecordDeviceWriteConflict(string(kind))
			continue
		}
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to save device session")
		}

		s.afterWrite(ctx, prev, next)
		return next, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "device session is busy, retry", nil, "")
}

func (s *Service) afterWrite(ctx context.Context, prev, next *Session) {
	if prev.Status != next.Status {
		metrics.RecordDeviceTransition(string(next.Kind), string(prev.Status), string(next.Status))
	}

	event := realtime.NewEvent(realtime.DeviceTopic(next.PatientID, string(next.Kind)), realtime.EventDeviceChanged)
	if err := s.broker.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("topic", event.Topic).Msg("failed to publish device change")
	}

	if prev.Status != StatusRunning || !next.Status.Terminal() || s.recorder == nil {
		return
	}
	record := &user.ExerciseRecord{
		PatientID:     next.PatientID,
		DeviceKind:    string(next.Kind),
		PresetID:      next.PresetID,
		EndedAt:       next.UpdatedAt,
		FinalProgress: next.Progress,
		Outcome:       outcomeFor(next.Status),
	}
	if prev.StartedAt != nil {
		record.StartedAt = *prev.StartedAt
	}
	if err := s.recorder.RecordExercise(ctx, record); err != nil {
		s.log.Error().Err(err).Str("patient_id", next.PatientID).Msg("failed to record finished exercise")
	}
}

func (s *Service) locked(ctx context.Context, patientID string, kind Kind, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, "device-session:"+patientID+":"+string(kind), s.cfg.LockTTL, fn)
	if err != nil && platformerrors.GetPlatformError(err) == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "device session is busy, retry", err, "")
	}
	return err
}

func (s *Service) send(ctx context.Context, command Command, patientID string, kind Kind, presetID string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	err := s.controller.Send(sendCtx, ControllerCommand{
		Command:   command,
		Kind:      kind,
		PatientID: patientID,
		PresetID:  presetID,
		IssuedAt:  s.now().UTC(),
	})
	if err == nil {
		metrics.RecordDeviceCommand(string(kind), string(command), "sent")
		return nil
	}

	metrics.RecordDeviceCommand(string(kind), string(command), "failed")
	if errors.Is(err, ErrControllerUnavailable) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnavailable, "device controller unavailable", err, "")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "device controller rejected the command", err, "")
}

func outcomeFor(status Status) user.ExerciseOutcome {
	switch status {
	case StatusCompleted:
		return user.OutcomeCompleted
	case StatusEmergencyStopped:
		return user.OutcomeEmergencyStop
	default:
		return user.OutcomeStopped
	}
}

func validStatus(status Status) bool {
	switch status {
	case StatusIdle, StatusRunning, StatusCompleted, StatusStopped, StatusEmergencyStopped:
		return true
	}
	return false
}

func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
