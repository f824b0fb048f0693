package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "physioctl",
	Short: "Operator tool for the physio API",
	Long: `physioctl talks to a running physio-api instance.

Examples:
  physioctl health
  physioctl signin --email doctor@example.com --password secret
  physioctl devices list --token $TOKEN
  physioctl devices start glove --preset glove-basic --token $TOKEN
  physioctl status push --patient p1 --device glove --status running --progress 40 --device-key $KEY
  physioctl schema frame
  physioctl presets validate presets.yml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(presetsCmd)

	rootCmd.PersistentFlags().String("server", envOr("PHYSIO_SERVER", "http://localhost:8190"), "Base URL of the physio API")
	rootCmd.PersistentFlags().String("token", os.Getenv("PHYSIO_TOKEN"), "Bearer token")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func clientFor(cmd *cobra.Command) *apiClient {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	return newAPIClient(server, token)
}
