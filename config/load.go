package config

import (
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/pattern"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by NewViper.
const EnvPrefix = "METRONOME"

// NewViper returns a viper instance that reads METRONOME_* environment
// variables, with dots in keys mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load overlays every key set in v onto the defaults and validates the result.
// If configFile is non-empty it is read into v first.
func Load(v *viper.Viper, configFile string) (MetronomeConfig, error) {
	cfg := NewMetronomeConfig()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.WithStackTrace(err)
		}
	}

	if v.IsSet("min-tempo") {
		cfg.MinTempo = v.GetFloat64("min-tempo")
	}
	if v.IsSet("max-tempo") {
		cfg.MaxTempo = v.GetFloat64("max-tempo")
	}
	if v.IsSet("tempo") {
		cfg.Tempo = v.GetFloat64("tempo")
	}
	if v.IsSet("signature") {
		cfg.Signature = v.GetString("signature")
	}
	if v.IsSet("lookahead") {
		cfg.Lookahead = v.GetDuration("lookahead")
	}
	if v.IsSet("schedule-ahead") {
		cfg.ScheduleAhead = v.GetDuration("schedule-ahead")
	}
	if v.IsSet("start-offset") {
		cfg.StartOffset = v.GetDuration("start-offset")
	}
	if v.IsSet("retract-on-stop") {
		cfg.RetractOnStop = v.GetBool("retract-on-stop")
	}

	// audio output
	if v.IsSet("audio.sample-rate") {
		cfg.SampleRate = v.GetInt("audio.sample-rate")
	}
	if v.IsSet("audio.latency") {
		cfg.Latency = v.GetDuration("audio.latency")
	}
	if v.IsSet("audio.max-voices") {
		cfg.MaxVoices = v.GetInt("audio.max-voices")
	}

	// noise gate
	if v.IsSet("gate.enabled") {
		cfg.GateEnabled = v.GetBool("gate.enabled")
	}
	if v.IsSet("gate.frequency") {
		cfg.GateFrequency = v.GetFloat64("gate.frequency")
	}
	if v.IsSet("gate.gain") {
		cfg.GateGain = v.GetFloat64("gate.gain")
	}

	// dmx beat lamps
	if v.IsSet("dmx.ola") {
		cfg.OLAAddress = v.GetString("dmx.ola")
	}
	if v.IsSet("dmx.universe") {
		cfg.DMXUniverse = v.GetInt("dmx.universe")
	}
	if v.IsSet("dmx.channel") {
		cfg.DMXChannel = v.GetInt("dmx.channel")
	}

	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}

	if v.IsSet("patterns") {
		patterns, err := loadPatterns(v)
		if err != nil {
			return cfg, err
		}
		cfg.Patterns = patterns
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.WithStackTrace(err)
	}
	return cfg, nil
}

func loadPatterns(v *viper.Viper) (map[string][]pattern.Accent, error) {
	raw := map[string][]int{}
	if err := v.UnmarshalKey("patterns", &raw); err != nil {
		return nil, errors.WithStackTrace(err)
	}

	out := make(map[string][]pattern.Accent, len(raw))
	for id, values := range raw {
		accents, err := pattern.FromInts(values)
		if err != nil {
			return nil, errors.WithStackTrace(pattern.InvalidPatternError{ID: id, Reason: err.Error()})
		}
		out[id] = accents
	}
	return out, nil
}
