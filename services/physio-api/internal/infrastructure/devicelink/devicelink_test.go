package devicelink

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"physio-server/services/physio-api/internal/domain/device"
)

func TestSimulatorCompletesExercise(t *testing.T) {
	sim := NewSimulator(time.Millisecond, 40, zerolog.Nop())
	require.NoError(t, sim.Send(context.Background(), device.ControllerCommand{
		Command: device.CommandStart, Kind: device.KindGlove, PatientID: "p1",
	}))

	var last device.StatusReport
	for i := 0; i < 3; i++ {
		reports := sim.advance(time.Now())
		require.Len(t, reports, 1)
		last = reports[0]
	}
	require.NotNil(t, last.Progress)
	assert.Equal(t, 100, *last.Progress)
	assert.Equal(t, device.StatusCompleted, last.Status)
	assert.Empty(t, sim.advance(time.Now()))
}

func TestSimulatorStopDropsRun(t *testing.T) {
	sim := NewSimulator(time.Millisecond, 10, zerolog.Nop())
	ctx := context.Background()
	require.NoError(t, sim.Send(ctx, device.ControllerCommand{Command: device.CommandStart, Kind: device.KindExoskeleton, PatientID: "p1"}))
	require.NoError(t, sim.Send(ctx, device.ControllerCommand{Command: device.CommandEmergencyStop, Kind: device.KindExoskeleton, PatientID: "p1"}))
	assert.Empty(t, sim.advance(time.Now()))
}

func TestDisabledController(t *testing.T) {
	err := Disabled{}.Send(context.Background(), device.ControllerCommand{})
	assert.ErrorIs(t, err, device.ErrControllerUnavailable)
	assert.False(t, Disabled{}.Connected())
}

func TestDiscoveryResolver(t *testing.T) {
	resolve := DiscoveryResolver(DiscoveryConfig{
		Timeout: time.Second,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			assert.Equal(t, "_physioctl._tcp", service)
			assert.Equal(t, "local.", domain)
			entry := zeroconf.NewServiceEntry("controller", service, domain)
			entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
			entry.Port = 9001
			entry.Text = []string{"path=controller"}
			go func() { entries <- entry }()
			return nil
		},
	})

	url, err := resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ws://192.168.1.20:9001/controller", url)
}

func TestDiscoveryResolverTimesOut(t *testing.T) {
	resolve := DiscoveryResolver(DiscoveryConfig{
		Timeout: 20 * time.Millisecond,
		browseFn: func(context.Context, string, string, chan<- *zeroconf.ServiceEntry) error {
			return nil
		},
	})
	_, err := resolve(context.Background())
	assert.Error(t, err)
}

func TestClientExchangesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	commands := make(chan Frame, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		commands <- frame

		progress := 30
		_ = conn.WriteJSON(StatusFrame(device.StatusReport{
			PatientID: frame.PatientID,
			Kind:      device.Kind(frame.Device),
			Status:    device.StatusRunning,
			Progress:  &progress,
			At:        time.Now(),
		}))
		// Hold the socket open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	client := NewClient(StaticResolver("ws"+strings.TrimPrefix(server.URL, "http")), 10*time.Millisecond, zerolog.Nop())
	reports := make(chan device.StatusReport, 1)
	client.OnStatus(func(_ context.Context, report device.StatusReport) {
		reports <- report
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = client.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, client.Connected, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, client.Send(ctx, device.ControllerCommand{
		Command:   device.CommandStart,
		Kind:      device.KindGlove,
		PatientID: "p1",
		PresetID:  "glove-basic",
		IssuedAt:  time.Now(),
	}))

	select {
	case frame := <-commands:
		assert.Equal(t, FrameCommand, frame.Type)
		assert.Equal(t, "start", frame.Command)
		assert.Equal(t, "glove-basic", frame.PresetID)
	case <-time.After(2 * time.Second):
		t.Fatal("controller never received the command")
	}

	select {
	case report := <-reports:
		assert.Equal(t, "p1", report.PatientID)
		assert.Equal(t, device.StatusRunning, report.Status)
		require.NotNil(t, report.Progress)
		assert.Equal(t, 30, *report.Progress)
	case <-time.After(2 * time.Second):
		t.Fatal("status report never arrived")
	}
}

func TestClientSendWhileDisconnected(t *testing.T) {
	client := NewClient(StaticResolver(""), time.Second, zerolog.Nop())
	err := client.Send(context.Background(), device.ControllerCommand{Command: device.CommandStop})
	assert.ErrorIs(t, err, device.ErrControllerUnavailable)
}

func TestFirstOfFallsBack(t *testing.T) {
	failing := func(context.Context) (string, error) { return "", errors.New("no controller advertised") }

	url, err := FirstOf(failing, StaticResolver("ws://controller.local/ws"))(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ws://controller.local/ws", url)

	_, err = FirstOf(failing, failing)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no controller advertised")
}
