package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyDefaults are the fallback rule parameters applied when a strategy
// is created without explicit extra parameters.
type StrategyDefaults struct {
	Technical struct {
		EmaFast   int `yaml:"ema_fast"`
		EmaSlow   int `yaml:"ema_slow"`
		EmaSignal int `yaml:"ema_signal"`
		RsiLength int `yaml:"rsi_length"`
	} `yaml:"technical"`
	Breakout struct {
		MinVolume float64 `yaml:"min_volume"`
	} `yaml:"breakout"`
}

// BuiltinStrategyDefaults returns the conventional indicator settings.
func BuiltinStrategyDefaults() StrategyDefaults {
	var d StrategyDefaults
	d.Technical.EmaFast = 12
	d.Technical.EmaSlow = 26
	d.Technical.EmaSignal = 9
	d.Technical.RsiLength = 14
	d.Breakout.MinVolume = 0
	return d
}

// LoadStrategyDefaults reads a YAML defaults file; an empty path returns the
// built-in settings.
func LoadStrategyDefaults(path string) (StrategyDefaults, error) {
	defaults := BuiltinStrategyDefaults()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("read strategy defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, fmt.Errorf("parse strategy defaults: %w", err)
	}
	return defaults, nil
}
