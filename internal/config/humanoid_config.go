// File: internal/config/humanoid_config.go
// HumanoidConfig tunes the motion model used by the CDP input backend:
// Fitts's law timing for cursor travel, trajectory noise and click holds.
package config

import "github.com/spf13/viper"

// HumanoidConfig holds the parameters of the cursor motion model.
type HumanoidConfig struct {
	// Fitts's law: MT = A + B * log2(1 + D/W), in milliseconds.
	FittsA float64 `mapstructure:"fitts_a" yaml:"fitts_a"`
	FittsB float64 `mapstructure:"fitts_b" yaml:"fitts_b"`
	// Assumed target width W in pixels.
	FittsW float64 `mapstructure:"fitts_w" yaml:"fitts_w"`
	// Fractional +/- jitter applied to each computed movement time.
	FittsJitter float64 `mapstructure:"fitts_jitter" yaml:"fitts_jitter"`

	// Bezier control point displacement relative to travel distance.
	CurveBend float64 `mapstructure:"curve_bend" yaml:"curve_bend"`
	// Gaussian tremor (pixels) added to intermediate points.
	Tremor float64 `mapstructure:"tremor" yaml:"tremor"`
	// Move events dispatched per second of travel.
	StepsPerSecond int `mapstructure:"steps_per_second" yaml:"steps_per_second"`

	ClickHoldMinMs  int `mapstructure:"click_hold_min_ms" yaml:"click_hold_min_ms"`
	ClickHoldMaxMs  int `mapstructure:"click_hold_max_ms" yaml:"click_hold_max_ms"`
	DoubleClickGapMs int `mapstructure:"double_click_gap_ms" yaml:"double_click_gap_ms"`

	// Seed for the motion RNG; 0 means time-seeded.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

func setHumanoidDefaults(v *viper.Viper) {
	v.SetDefault("input.humanoid.fitts_a", 100.0)
	v.SetDefault("input.humanoid.fitts_b", 120.0)
	v.SetDefault("input.humanoid.fitts_w", 30.0)
	v.SetDefault("input.humanoid.fitts_jitter", 0.15)
	v.SetDefault("input.humanoid.curve_bend", 0.12)
	v.SetDefault("input.humanoid.tremor", 0.5)
	v.SetDefault("input.humanoid.steps_per_second", 100)
	v.SetDefault("input.humanoid.click_hold_min_ms", 50)
	v.SetDefault("input.humanoid.click_hold_max_ms", 120)
	v.SetDefault("input.humanoid.double_click_gap_ms", 90)
	v.SetDefault("input.humanoid.seed", 0)
}
