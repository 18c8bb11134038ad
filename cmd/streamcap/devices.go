package main

import (
	"fmt"
	"io"

	"github.com/petems/streamcap/internal/audio"
	"github.com/petems/streamcap/internal/logging"
	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			log := logging.NewWithLevel(cfg.LogLevel)
			backend, err := audio.New(cfg.Audio.Backend, log)
			if err != nil {
				return err
			}
			defer backend.Terminate()

			devices, err := backend.Devices()
			if err != nil {
				return err
			}
			printDevices(cmd.OutOrStdout(), devices, cfg.Audio.DeviceIndex)
			return nil
		},
	}
}

// printDevices writes one line per device, marking the system default and
// the configured selection.
func printDevices(w io.Writer, devices []audio.AudioDevice, selected int) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "no capture devices found")
		return
	}
	for _, d := range devices {
		mark := " "
		if d.Index == selected || (selected == audio.DefaultDevice && d.Default) {
			mark = "*"
		}
		line := fmt.Sprintf("%s %2d  %s", mark, d.Index, d.Name)
		if d.Default {
			line += " (default)"
		}
		fmt.Fprintln(w, line)
	}
}
