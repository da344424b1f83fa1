package config

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ashureev/motion-coach/internal/coaching"
)

// LoadPolicy reads a coaching policy file. An empty path returns the
// built-in defaults and a nil viper instance. Unset keys keep their
// defaults and out-of-range values are clamped.
func LoadPolicy(path string) (coaching.Policy, *viper.Viper, error) {
	if path == "" {
		return coaching.DefaultPolicy(), nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	setPolicyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return coaching.Policy{}, nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	p, err := decodePolicy(v)
	if err != nil {
		return coaching.Policy{}, nil, err
	}
	return p, v, nil
}

// WatchPolicy reloads the policy into src whenever the file behind v
// changes. A file that fails to decode leaves the current policy in place.
func WatchPolicy(v *viper.Viper, src *coaching.PolicySource, logger *slog.Logger) {
	if v == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		p, err := decodePolicy(v)
		if err != nil {
			logger.Warn("Ignoring invalid policy file", "file", e.Name, "error", err)
			return
		}
		src.Store(p)
		logger.Info("Coaching policy reloaded",
			"file", e.Name,
			"batch_reps", p.BatchReps,
			"batch_window", p.BatchWindow,
			"analysis_timeout", p.AnalysisTimeout)
	})
	v.WatchConfig()
}

func decodePolicy(v *viper.Viper) (coaching.Policy, error) {
	var p coaching.Policy
	if err := v.Unmarshal(&p); err != nil {
		return coaching.Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	return p.Normalized(), nil
}

func setPolicyDefaults(v *viper.Viper) {
	def := coaching.DefaultPolicy()
	v.SetDefault("default_interval", def.DefaultInterval)
	v.SetDefault("batch_reps", def.BatchReps)
	v.SetDefault("batch_window", def.BatchWindow)
	v.SetDefault("batch_frames", def.BatchFrames)
	v.SetDefault("analysis_timeout", def.AnalysisTimeout)
}
