package main

import (
	"fmt"
	"io"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/nickysemenza/gola"
	"github.com/robmorgan/metronome/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLampsCmd(v *viper.Viper, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lamps",
		Short: "Dump the beat lamp levels OLA currently holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, opts)
			if err != nil {
				return err
			}
			if cfg.OLAAddress == "" {
				return errors.WithStackTrace(config.InvalidConfigError{Field: "dmx.ola", Reason: "an OLA address is required"})
			}

			table, err := cfg.PatternTable()
			if err != nil {
				return err
			}

			client, err := gola.New(cfg.OLAAddress)
			if err != nil {
				return errors.WithStackTrace(err)
			}
			defer client.Close()

			x, err := client.GetDmx(cfg.DMXUniverse)
			if err != nil {
				return errors.WithStackTrace(err)
			}

			printLamps(cmd.OutOrStdout(), x.Data, cfg.DMXChannel, table.Len(cfg.Signature))
			return nil
		},
	}
}

// printLamps writes one line per lamp. Channels OLA didn't return read as 0.
func printLamps(w io.Writer, data []byte, start, lamps int) {
	for n := 0; n < lamps; n++ {
		channel := start + n
		level := 0
		if channel <= len(data) {
			level = int(data[channel-1])
		}
		fmt.Fprintf(w, "beat %2d  ch %3d  %3d\n", n+1, channel, level)
	}
}
