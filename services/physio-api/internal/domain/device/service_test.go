package device_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/lock"
	"physio-server/services/physio-api/internal/infrastructure/presets"
	"physio-server/services/physio-api/internal/infrastructure/pubsub"
	"physio-server/services/physio-api/internal/infrastructure/repository/devicerepo"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

type fakeController struct {
	mu       sync.Mutex
	commands []device.ControllerCommand
	err      error
}

func (c *fakeController) Send(_ context.Context, cmd device.ControllerCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.commands = append(c.commands, cmd)
	return nil
}

func (c *fakeController) Connected() bool { return c.err == nil }

func (c *fakeController) sent() []device.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]device.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		out = append(out, cmd.Command)
	}
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*user.ExerciseRecord
}

func (r *fakeRecorder) RecordExercise(_ context.Context, record *user.ExerciseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

type fixture struct {
	svc        *device.Service
	controller *fakeController
	recorder   *fakeRecorder
	store      *devicerepo.InMemoryRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := presets.Load("", zerolog.Nop())
	require.NoError(t, err)
	broker := pubsub.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })

	f := fixture{
		controller: &fakeController{},
		recorder:   &fakeRecorder{},
		store:      devicerepo.NewInMemoryRepository(),
	}
	f.svc = device.NewService(f.store, f.controller, lock.NewLocal(), f.recorder, catalog, broker,
		device.Config{SensorHistoryLimit: 3, StaleAfter: time.Minute}, zerolog.Nop())
	return f
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func isType(err error, typ platformerrors.ErrorType) bool {
	return platformerrors.IsErrorType(err, typ)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want device.Kind
		ok   bool
	}{
		{raw: "glove", want: device.KindGlove, ok: true},
		{raw: " Exoskeleton ", want: device.KindExoskeleton, ok: true},
		{raw: "treadmill", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			kind, ok := device.ParseKind(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, kind)
			}
		})
	}
}

func TestUnusedDevicesReadAsIdle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.svc.Get(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.Equal(t, device.StatusIdle, sess.Status)
	assert.Empty(t, sess.SensorHistory)

	list, err := f.svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, len(device.Kinds))
	assert.Equal(t, device.KindGlove, list[0].Kind)
	assert.Equal(t, device.KindExoskeleton, list[1].Kind)
}

func TestStartStopLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sess, err := f.svc.Start(ctx, "p1", device.KindGlove, "glove-basic")
	require.NoError(t, err)
	assert.Equal(t, device.StatusRunning, sess.Status)
	assert.Equal(t, device.CommandStart, sess.LastCommand)
	assert.Equal(t, "glove-basic", sess.PresetID)
	assert.NotNil(t, sess.StartedAt)
	assert.EqualValues(t, 1, sess.Version)

	_, err = f.svc.Start(ctx, "p1", device.KindGlove, "glove-basic")
	assert.True(t, isType(err, platformerrors.ErrorTypeConflict))

	sess, err = f.svc.Stop(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.Equal(t, device.StatusStopped, sess.Status)

	// Stopping again changes nothing and sends nothing.
	again, err := f.svc.Stop(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.Equal(t, sess.Version, again.Version)

	assert.Equal(t, []device.Command{device.CommandStart, device.CommandStop}, f.controller.sent())
	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, user.OutcomeStopped, f.recorder.records[0].Outcome)
	assert.Equal(t, "glove-basic", f.recorder.records[0].PresetID)
}

func TestStartValidatesPreset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Start(ctx, "p1", device.KindGlove, "")
	assert.True(t, isType(err, platformerrors.ErrorTypeValidation))

	_, err = f.svc.Start(ctx, "p1", device.KindGlove, "exo-range")
	assert.True(t, isType(err, platformerrors.ErrorTypeValidation))
	assert.Empty(t, f.controller.sent())

	_, err = f.svc.SelectPreset(ctx, "p1", device.KindGlove, "glove-pinch")
	require.NoError(t, err)
	sess, err := f.svc.Start(ctx, "p1", device.KindGlove, "")
	require.NoError(t, err)
	assert.Equal(t, "glove-pinch", sess.PresetID)

	_, err = f.svc.SelectPreset(ctx, "p1", device.KindGlove, "glove-basic")
	assert.True(t, isType(err, platformerrors.ErrorTypeConflict))
}

func TestControllerFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.controller.err = device.ErrControllerUnavailable

	_, err := f.svc.Start(ctx, "p1", device.KindGlove, "glove-basic")
	assert.True(t, isType(err, platformerrors.ErrorTypeUnavailable))

	sess, err := f.svc.Get(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.Equal(t, device.StatusIdle, sess.Status)

	f.controller.err = errors.New("bad frame")
	_, err = f.svc.SelectPreset(ctx, "p1", device.KindGlove, "glove-basic")
	assert.True(t, isType(err, platformerrors.ErrorTypeExternal))
}

func TestEmergencyStopAlwaysWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Start(ctx, "p1", device.KindExoskeleton, "exo-range")
	require.NoError(t, err)

	f.controller.err = device.ErrControllerUnavailable
	sess, err := f.svc.EmergencyStop(ctx, "p1", device.KindExoskeleton)
	require.NoError(t, err)
	assert.Equal(t, device.StatusEmergencyStopped, sess.Status)
	assert.Equal(t, device.CommandEmergencyStop, sess.LastCommand)

	sess, err = f.svc.ApplyStatus(ctx, device.StatusReport{
		PatientID: "p1",
		Kind:      device.KindExoskeleton,
		Status:    device.StatusRunning,
	})
	require.NoError(t, err)
	assert.Equal(t, device.StatusEmergencyStopped, sess.Status)

	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, user.OutcomeEmergencyStop, f.recorder.records[0].Outcome)
}

func TestApplyStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "p1", device.KindGlove, "glove-basic")
	require.NoError(t, err)

	for i, value := range []float64{1, 2, 3, 4} {
		_, err := f.svc.ApplyStatus(ctx, device.StatusReport{
			PatientID:   "p1",
			Kind:        device.KindGlove,
			SensorValue: floatPtr(value),
			Progress:    intPtr(i * 10),
		})
		require.NoError(t, err)
	}
	sess, err := f.svc.Get(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.Equal(t, 4.0, sess.SensorValue)
	require.Len(t, sess.SensorHistory, 3)
	assert.Equal(t, 2.0, sess.SensorHistory[0].Value)
	assert.Equal(t, 30, sess.Progress)

	sess, err = f.svc.ApplyStatus(ctx, device.StatusReport{PatientID: "p1", Kind: "GLOVE", Progress: intPtr(150)})
	require.NoError(t, err)
	assert.Equal(t, 100, sess.Progress)
	assert.Equal(t, device.StatusCompleted, sess.Status)
	require.Len(t, f.recorder.records, 1)
	assert.Equal(t, user.OutcomeCompleted, f.recorder.records[0].Outcome)
	assert.Equal(t, 100, f.recorder.records[0].FinalProgress)
}

func TestApplyStatusValidation(t *testing.T) {
	tests := []struct {
		name   string
		report device.StatusReport
	}{
		{name: "missing patient", report: device.StatusReport{Kind: device.KindGlove}},
		{name: "unknown device", report: device.StatusReport{PatientID: "p1", Kind: "treadmill"}},
		{name: "unknown status", report: device.StatusReport{PatientID: "p1", Kind: device.KindGlove, Status: "dancing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.ApplyStatus(context.Background(), tt.report)
			assert.True(t, isType(err, platformerrors.ErrorTypeValidation))
		})
	}
}

func TestConcurrentReportsKeepEverySample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, err := f.svc.ApplyStatus(ctx, device.StatusReport{
				PatientID:   "p1",
				Kind:        device.KindGlove,
				SensorValue: floatPtr(float64(v)),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := f.svc.Get(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.EqualValues(t, n, sess.Version)
}

func TestSweepStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Start(ctx, "p1", device.KindGlove, "glove-basic")
	require.NoError(t, err)

	swept, err := f.svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)

	sess, err := f.store.Get(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	sess.UpdatedAt = time.Now().Add(-2 * time.Minute)
	require.NoError(t, f.store.Save(ctx, sess, sess.Version))

	swept, err = f.svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	sess, err = f.svc.Get(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	assert.Equal(t, device.StatusStopped, sess.Status)
}

func TestSubscribeStreamsChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	ch, err := f.svc.Subscribe(ctx, "p1", device.KindGlove)
	require.NoError(t, err)
	initial := <-ch
	assert.Equal(t, device.StatusIdle, initial.Status)

	_, err = f.svc.Start(ctx, "p1", device.KindGlove, "glove-basic")
	require.NoError(t, err)

	select {
	case sess := <-ch:
		assert.Equal(t, device.StatusRunning, sess.Status)
	case <-time.After(time.Second):
		t.Fatal("no update after start")
	}
}
