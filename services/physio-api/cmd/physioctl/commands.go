package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/infrastructure/devicelink"
	"physio-server/services/physio-api/internal/infrastructure/presets"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show liveness and readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := clientFor(cmd)
		for _, path := range []string{"/healthz", "/readyz"} {
			body, err := client.get(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, body)
		}
		return nil
	},
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in and print the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		body, err := clientFor(cmd).post(cmd.Context(), "/v1/auth/signin", map[string]string{
			"email":    email,
			"password": password,
		})
		if err != nil {
			return err
		}
		var session struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &session); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.Token)
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Inspect and drive the signed-in patient's devices",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List device sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd, func() (json.RawMessage, error) {
			return clientFor(cmd).get(cmd.Context(), "/v1/devices")
		})
	},
}

var devicesStartCmd = &cobra.Command{
	Use:   "start [glove|exoskeleton]",
	Short: "Start an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		preset, _ := cmd.Flags().GetString("preset")
		return printResult(cmd, func() (json.RawMessage, error) {
			return clientFor(cmd).post(cmd.Context(), "/v1/devices/"+string(kind)+"/start", map[string]string{"preset_id": preset})
		})
	},
}

var devicesStopCmd = &cobra.Command{
	Use:   "stop [glove|exoskeleton]",
	Short: "Stop the exercise",
	Args:  cobra.ExactArgs(1),
	RunE:  deviceCommand("stop"),
}

var devicesEmergencyStopCmd = &cobra.Command{
	Use:     "emergency-stop [glove|exoskeleton]",
	Aliases: []string{"estop"},
	Short:   "Emergency stop the device",
	Args:    cobra.ExactArgs(1),
	RunE:    deviceCommand("emergency-stop"),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Act as a device controller",
}

var statusPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push a status report through the HTTP ingest endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		patientID, _ := cmd.Flags().GetString("patient")
		rawKind, _ := cmd.Flags().GetString("device")
		status, _ := cmd.Flags().GetString("status")
		key, _ := cmd.Flags().GetString("device-key")

		kind, err := parseKind(rawKind)
		if err != nil {
			return err
		}
		report := map[string]any{
			"patient_id": patientID,
			"device":     kind,
			"status":     status,
			"at":         time.Now().UnixMilli(),
		}
		if cmd.Flags().Changed("progress") {
			progress, _ := cmd.Flags().GetInt("progress")
			report["progress"] = progress
		}
		if cmd.Flags().Changed("sensor") {
			sensor, _ := cmd.Flags().GetFloat64("sensor")
			report["sensor_value"] = sensor
		}

		return printResult(cmd, func() (json.RawMessage, error) {
			return clientFor(cmd).do(cmd.Context(), "POST", "/v1/devices/status", report, map[string]string{"X-Device-Key": key})
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema frame",
	Short: "Print the JSON schema of controller link frames",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := frameSchema()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Preset catalogue tools",
}

var presetsValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a preset catalogue file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := presets.Load(args[0], zerolog.Nop())
		if err != nil {
			return err
		}
		for _, kind := range device.Kinds {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d presets\n", kind, len(catalog.List(kind)))
		}
		return nil
	},
}

func init() {
	signinCmd.Flags().String("email", "", "Account email")
	signinCmd.Flags().String("password", "", "Account password")
	_ = signinCmd.MarkFlagRequired("email")
	_ = signinCmd.MarkFlagRequired("password")

	devicesStartCmd.Flags().String("preset", "", "Preset id (defaults to the selected preset)")
	devicesCmd.AddCommand(devicesListCmd, devicesStartCmd, devicesStopCmd, devicesEmergencyStopCmd)

	statusPushCmd.Flags().String("patient", "", "Patient id")
	statusPushCmd.Flags().String("device", "glove", "glove or exoskeleton")
	statusPushCmd.Flags().String("status", "", "Session status")
	statusPushCmd.Flags().Int("progress", 0, "Progress 0..100")
	statusPushCmd.Flags().Float64("sensor", 0, "Sensor reading")
	statusPushCmd.Flags().String("device-key", os.Getenv("DEVICE_INGEST_API_KEY"), "Controller ingest key")
	_ = statusPushCmd.MarkFlagRequired("patient")
	statusCmd.AddCommand(statusPushCmd)

	presetsCmd.AddCommand(presetsValidateCmd)
}

func deviceCommand(action string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, func() (json.RawMessage, error) {
			return clientFor(cmd).post(cmd.Context(), "/v1/devices/"+string(kind)+"/"+action, nil)
		})
	}
}

func parseKind(raw string) (device.Kind, error) {
	kind, ok := device.ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("unknown device %q (want glove or exoskeleton)", raw)
	}
	return kind, nil
}

func printResult(cmd *cobra.Command, call func() (json.RawMessage, error)) error {
	body, err := call()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		out.Reset()
		out.Write(body)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}

func frameSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&devicelink.Frame{})
	schema.Title = "Device controller frame"
	schema.Description = "One JSON object per WebSocket text frame, in either direction"
	return json.MarshalIndent(schema, "", "  ")
}
