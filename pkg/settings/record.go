package settings

import (
	"fmt"

	"github.com/wntrblm/gemsettings/pkg/fix16"
)

// Valid ranges for the range-checked fields
const (
	MinAdcGainCorr   = 512
	MaxAdcGainCorr   = 4096
	MaxLedBrightness = 255
)

// Record holds the device calibration and UI tuning parameters
type Record struct {
	AdcGainCorr             uint16      `json:"adc_gain_corr" yaml:"adc_gain_corr"`
	AdcOffsetCorr           int16       `json:"adc_offset_corr" yaml:"adc_offset_corr"`
	LedBrightness           uint16      `json:"led_brightness" yaml:"led_brightness"`
	CastorKnobMin           fix16.Fix16 `json:"castor_knob_min" yaml:"castor_knob_min"`
	CastorKnobMax           fix16.Fix16 `json:"castor_knob_max" yaml:"castor_knob_max"`
	PolluxKnobMin           fix16.Fix16 `json:"pollux_knob_min" yaml:"pollux_knob_min"`
	PolluxKnobMax           fix16.Fix16 `json:"pollux_knob_max" yaml:"pollux_knob_max"`
	ChorusMaxIntensity      fix16.Fix16 `json:"chorus_max_intensity" yaml:"chorus_max_intensity"`
	ChorusFrequency         fix16.Fix16 `json:"chorus_frequency" yaml:"chorus_frequency"`
	KnobOffsetCorr          fix16.Fix16 `json:"knob_offset_corr" yaml:"knob_offset_corr"`
	KnobGainCorr            fix16.Fix16 `json:"knob_gain_corr" yaml:"knob_gain_corr"`
	SmoothInitialGain       fix16.Fix16 `json:"smooth_initial_gain" yaml:"smooth_initial_gain"`
	SmoothSensitivity       fix16.Fix16 `json:"smooth_sensitivity" yaml:"smooth_sensitivity"`
	PolluxFollowerThreshold uint16      `json:"pollux_follower_threshold" yaml:"pollux_follower_threshold"`
}

var defaults = Record{
	AdcGainCorr:             2048,
	AdcOffsetCorr:           0,
	LedBrightness:           127,
	CastorKnobMin:           fix16.FromFloat(-1.01),
	CastorKnobMax:           fix16.FromFloat(1.01),
	PolluxKnobMin:           fix16.FromFloat(-1.01),
	PolluxKnobMax:           fix16.FromFloat(1.01),
	ChorusMaxIntensity:      fix16.FromFloat(0.05),
	ChorusFrequency:         fix16.FromFloat(0.2),
	KnobOffsetCorr:          fix16.FromFloat(0.0),
	KnobGainCorr:            fix16.FromFloat(1.0),
	SmoothInitialGain:       fix16.FromFloat(0.1),
	SmoothSensitivity:       fix16.FromFloat(20.0),
	PolluxFollowerThreshold: 6,
}

// Defaults returns the factory default record. Every call returns a fresh
// copy; the defaults themselves cannot be modified.
func Defaults() Record {
	return defaults
}

// Validate applies the load-side range checks: ADC gain correction must be
// within [512, 4096] and LED brightness at most 255. Both errors wrap
// ErrInvalidRecord.
func (r Record) Validate() error {
	if r.AdcGainCorr < MinAdcGainCorr || r.AdcGainCorr > MaxAdcGainCorr {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrGainOutOfRange, r.AdcGainCorr, MinAdcGainCorr, MaxAdcGainCorr)
	}
	if r.LedBrightness > MaxLedBrightness {
		return fmt.Errorf("%w: %d > %d", ErrBrightnessOutOfRange, r.LedBrightness, MaxLedBrightness)
	}
	return nil
}
