// Package metrics provides Prometheus metrics for the physio-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "physio"

var (
	// MessagesSent counts chat messages by sender role.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_sent_total",
			Help:      "Total number of chat messages sent",
		},
		[]string{"sender_role"},
	)

	// ActiveStreams tracks open realtime streams by kind.
	ActiveStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_active_streams",
			Help:      "Number of open realtime streams",
		},
		[]string{"stream"},
	)

	// DeviceCommands counts commands sent to the controller by outcome.
	DeviceCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Total number of device commands by result",
		},
		[]string{"device", "command", "result"},
	)

	// DeviceTransitions counts session status changes.
	DeviceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_state_transitions_total",
			Help:      "Total number of device session status transitions",
		},
		[]string{"device", "from_state", "to_state"},
	)

	// DeviceWriteConflicts counts optimistic write retries.
	DeviceWriteConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_write_conflicts_total",
			Help:      "Total number of device session version conflicts",
		},
		[]string{"device"},
	)

	// ControllerConnected is 1 while the controller link is up.
	ControllerConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_controller_connected",
			Help:      "Whether the device controller link is connected",
		},
	)

	// ControllerReconnects counts reconnect attempts.
	ControllerReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_controller_reconnects_total",
			Help:      "Total number of device controller reconnect attempts",
		},
	)

	// CronRuns counts scheduled job runs by result.
	CronRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_runs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"job", "result"},
	)
)

// RecordMessageSent increments the message counter.
func RecordMessageSent(senderRole string) {
	MessagesSent.WithLabelValues(senderRole).Inc()
}

// StreamOpened marks a realtime stream as open and returns its closer.
func StreamOpened(stream string) func() {
	ActiveStreams.WithLabelValues(stream).Inc()
	return func() {
		ActiveStreams.WithLabelValues(stream).Dec()
	}
}

// RecordDeviceCommand records a controller command result.
func RecordDeviceCommand(device, command, result string) {
	DeviceCommands.WithLabelValues(device, command, result).Inc()
}

// RecordDeviceTransition records a session status change.
func RecordDeviceTransition(device, fromState, toState string) {
	DeviceTransitions.WithLabelValues(device, fromState, toState).Inc()
}

// RecordDeviceWriteConflict records a version conflict.
func RecordDeviceWriteConflict(device string) {
	DeviceWriteConflicts.WithLabelValues(device).Inc()
}

// SetControllerConnected updates the link gauge.
func SetControllerConnected(connected bool) {
	if connected {
		ControllerConnected.Set(1)
		return
	}
	ControllerConnected.Set(0)
}

// RecordCronRun records a scheduled job result.
func RecordCronRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CronRuns.WithLabelValues(job, result).Inc()
}
