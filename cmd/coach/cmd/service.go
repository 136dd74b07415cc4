package cmd

import (
	"github.com/chris/coach/internal/service"
	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage coach as a systemd user service",
}

func init() {
	actions := []struct {
		use, short string
		run        func() error
	}{
		{"install", "Install the binary and enable the unit", service.Install},
		{"uninstall", "Disable the unit and remove the binary", service.Uninstall},
		{"start", "Start the service", service.Start},
		{"stop", "Stop the service", service.Stop},
		{"restart", "Restart the service", service.Restart},
		{"status", "Show service status", service.Status},
		{"logs", "Follow service logs", service.Logs},
	}
	for _, a := range actions {
		serviceCmd.AddCommand(&cobra.Command{
			Use:   a.use,
			Short: a.short,
			Args:  cobra.NoArgs,
			RunE:  func(*cobra.Command, []string) error { return a.run() },
		})
	}
	rootCmd.AddCommand(serviceCmd)
}
