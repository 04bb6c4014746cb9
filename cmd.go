package main

import (
	"fmt"
	"strings"

	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type options struct {
	configFile string
	list       bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "metronome",
		Short:         "A metronome that keeps time against the audio clock",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, opts)
			if err != nil {
				return err
			}
			if opts.list {
				return listSignatures(cmd, cfg)
			}
			return Run(cmd.Context(), cfg)
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVarP(&opts.configFile, "config", "c", "", "config file (yaml, toml or json)")
	persistent.String("ola", "", "OLA address (e.g. localhost:9010) for DMX beat lamps")
	persistent.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	mustBindFlags(v, persistent, map[string]string{
		"ola":       "dmx.ola",
		"log-level": "log-level",
	})

	flags := cmd.Flags()
	flags.BoolVarP(&opts.list, "list", "l", false, "list the available time signatures and exit")
	flags.Float64P("tempo", "t", config.DefaultTempo, "tempo in beats per minute")
	flags.StringP("signature", "s", "4", "time signature id, see --list")
	flags.Bool("gate", false, "hold a quiet tone so the output device never sleeps")
	mustBindFlags(v, flags, map[string]string{
		"tempo":     "tempo",
		"signature": "signature",
		"gate":      "gate.enabled",
	})

	cmd.AddCommand(newLampsCmd(v, opts))
	return cmd
}

func loadConfig(v *viper.Viper, opts *options) (config.MetronomeConfig, error) {
	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return cfg, err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// bindFlags maps command line flags onto config keys. Flags left at their
// default don't override the config file or environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag --%s to %s: %w", name, key, err)
		}
	}
	return nil
}

func mustBindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	if err := bindFlags(v, flags, keys); err != nil {
		panic(err)
	}
}

func listSignatures(cmd *cobra.Command, cfg config.MetronomeConfig) error {
	table, err := cfg.PatternTable()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range table.IDs() {
		p, _ := table.Lookup(id)
		accents := make([]string, len(p))
		for i, a := range p {
			accents[i] = a.String()
		}
		fmt.Fprintf(out, "%-4s %s\n", id, strings.Join(accents, " "))
	}
	return nil
}
