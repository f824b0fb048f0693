package devicelink

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/infrastructure/metrics"
)

type simKey struct {
	patientID string
	kind      device.Kind
}

type simRun struct {
	progress int
	ticks    int
}

// Simulator stands in for the hardware in development. Started exercises
// advance by step percent every tick until they complete.
type Simulator struct {
	tick time.Duration
	step int
	log  zerolog.Logger

	mu      sync.Mutex
	running map[simKey]*simRun

	handlerMu sync.RWMutex
	handler   StatusHandler
}

var _ device.Controller = (*Simulator)(nil)

func NewSimulator(tick time.Duration, step int, log zerolog.Logger) *Simulator {
	if tick <= 0 {
		tick = time.Second
	}
	if step <= 0 {
		step = 10
	}
	return &Simulator{
		tick:    tick,
		step:    step,
		log:     log.With().Str("component", "device-simulator").Logger(),
		running: make(map[simKey]*simRun),
	}
}

func (s *Simulator) OnStatus(handler StatusHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handler = handler
}

func (s *Simulator) Connected() bool {
	return true
}

// Send applies the command to the simulated device.
func (s *Simulator) Send(_ context.Context, cmd device.ControllerCommand) error {
	key := simKey{cmd.PatientID, cmd.Kind}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd.Command {
	case device.CommandStart:
		s.running[key] = &simRun{}
	case device.CommandStop, device.CommandEmergencyStop:
		delete(s.running, key)
	case device.CommandSelectPreset:
	}
	s.log.Debug().Str("patient_id", cmd.PatientID).Str("device", string(cmd.Kind)).Str("command", string(cmd.Command)).Msg("simulated command")
	return nil
}

// Run ticks the running exercises and delivers reports until ctx ends.
func (s *Simulator) Run(ctx context.Context) error {
	metrics.SetControllerConnected(true)
	defer metrics.SetControllerConnected(false)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, report := range s.advance(time.Now()) {
				s.deliver(ctx, report)
			}
		}
	}
}

func (s *Simulator) advance(now time.Time) []device.StatusReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]device.StatusReport, 0, len(s.running))
	for key, run := range s.running {
		run.ticks++
		run.progress += s.step
		if run.progress > 100 {
			run.progress = 100
		}
		progress := run.progress
		// A smooth pressure-like curve in the 0..1 range.
		sensor := math.Round((0.5+0.5*math.Sin(float64(run.ticks)/2))*1000) / 1000

		report := device.StatusReport{
			PatientID:   key.patientID,
			Kind:        key.kind,
			Status:      device.StatusRunning,
			Progress:    &progress,
			SensorValue: &sensor,
			At:          now,
		}
		if progress >= 100 {
			report.Status = device.StatusCompleted
			delete(s.running, key)
		}
		reports = append(reports, report)
	}
	return reports
}

func (s *Simulator) deliver(ctx context.Context, report device.StatusReport) {
	s.handlerMu.RLock()
	handler := s.handler
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(ctx, report)
	}
}

// Disabled refuses every command.
type Disabled struct{}

var _ device.Controller = Disabled{}

func (Disabled) Send(context.Context, device.ControllerCommand) error {
	return device.ErrControllerUnavailable
}

func (Disabled) Connected() bool { return false }

func (Disabled) OnStatus(StatusHandler) {}

// Run waits for ctx so a disabled link can share the supervisor with real ones.
func (Disabled) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
