package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"attendance-sync/internal/storage"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Manage biometric devices",
}

var deviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered devices",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		devices, err := provider.ListDevices(ctx)
		if err != nil {
			slog.Error("Failed to list devices", "error", err)
			os.Exit(1)
		}

		if len(devices) == 0 {
			fmt.Println("No devices registered")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERIAL\tNAME\tCOMPANY\tINTEGRATION\tENABLED\tONLINE\tLAST SYNC")
		for _, device := range devices {
			lastSync := "never"
			if device.LastSyncAt != nil {
				lastSync = device.LastSyncAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
				device.Serial, device.Name, device.Company, device.Integration,
				device.IsEnabled, device.IsOnline, lastSync)
		}
		w.Flush()
	},
}

// generateSecret returns a fresh 256-bit device secret, hex encoded.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var deviceAddCmd = &cobra.Command{
	Use:   "add <serial> <name>",
	Short: "Register a new device",
	Long: `Register a new biometric device. A shared secret is generated and
printed once; configure it on the device for webhook deliveries.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		serial, name := args[0], args[1]

		company, _ := cmd.Flags().GetString("company")
		integration, _ := cmd.Flags().GetString("integration")
		ip, _ := cmd.Flags().GetString("ip")
		port, _ := cmd.Flags().GetInt("port")

		switch storage.IntegrationType(integration) {
		case storage.IntegrationWebhook, storage.IntegrationAPIPull,
			storage.IntegrationSDKMiddleware, storage.IntegrationCSVUpload:
		default:
			slog.Error("Invalid integration mode", "integration", integration)
			fmt.Println("Valid modes: webhook, api_pull, sdk_middleware, csv_upload")
			os.Exit(1)
		}

		secret, err := generateSecret()
		if err != nil {
			slog.Error("Failed to generate device secret", "error", err)
			os.Exit(1)
		}

		device := storage.Device{
			Serial:      serial,
			Name:        name,
			Company:     company,
			Integration: storage.IntegrationType(integration),
			SecretKey:   &secret,
			IsEnabled:   true,
		}
		if ip != "" {
			device.IPAddress = &ip
		}
		if port != 0 {
			device.Port = &port
		}

		if err := provider.CreateDevice(ctx, device); err != nil {
			slog.Error("Failed to create device", "serial", serial, "error", err)
			os.Exit(1)
		}

		fmt.Printf("Device %s registered\n", serial)
		fmt.Printf("Secret (shown once): %s\n", secret)
	},
}

func setDeviceEnabled(serial string, enabled bool) {
	ctx := context.Background()

	device, err := provider.GetDeviceBySerial(ctx, serial)
	if err != nil {
		slog.Error("Device not found", "serial", serial, "error", err)
		os.Exit(1)
	}

	if err := provider.SetDeviceEnabled(ctx, device.ID, enabled); err != nil {
		slog.Error("Failed to update device", "serial", serial, "error", err)
		os.Exit(1)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Device %s %s\n", serial, state)
}

var deviceEnableCmd = &cobra.Command{
	Use:   "enable <serial>",
	Short: "Enable a device for ingestion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDeviceEnabled(args[0], true)
	},
}

var deviceDisableCmd = &cobra.Command{
	Use:   "disable <serial>",
	Short: "Disable a device",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDeviceEnabled(args[0], false)
	},
}

func init() {
	deviceAddCmd.Flags().StringP("company", "c", "generic", "Device vendor (zkteco, hikvision, suprema, anviz, essl, generic)")
	deviceAddCmd.Flags().StringP("integration", "i", "webhook", "Integration mode (webhook, api_pull, sdk_middleware, csv_upload)")
	deviceAddCmd.Flags().String("ip", "", "Device IP address (required for api_pull)")
	deviceAddCmd.Flags().Int("port", 0, "Device port")

	deviceCmd.AddCommand(deviceListCmd)
	deviceCmd.AddCommand(deviceAddCmd)
	deviceCmd.AddCommand(deviceEnableCmd)
	deviceCmd.AddCommand(deviceDisableCmd)
	rootCmd.AddCommand(deviceCmd)
}
