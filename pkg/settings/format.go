package settings

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/wntrblm/gemsettings/pkg/fix16"
)

// FixedDecimals is the precision used to display Q16.16 fields.
const FixedDecimals = 2

type field struct {
	key    string
	label  string
	unit   string
	render func(r *Record) string
	set    func(r *Record, value string) error
}

func fixedField(key, label, unit string, ptr func(r *Record) *fix16.Fix16) field {
	return field{
		key:   key,
		label: label,
		unit:  unit,
		render: func(r *Record) string {
			return ptr(r).Format(FixedDecimals)
		},
		set: func(r *Record, value string) error {
			v, err := fix16.Parse(value)
			if err != nil {
				return err
			}
			*ptr(r) = v
			return nil
		},
	}
}

func uint16Field(key, label, unit string, ptr func(r *Record) *uint16) field {
	return field{
		key:   key,
		label: label,
		unit:  unit,
		render: func(r *Record) string {
			return strconv.FormatUint(uint64(*ptr(r)), 10)
		},
		set: func(r *Record, value string) error {
			v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 16)
			if err != nil {
				return err
			}
			*ptr(r) = uint16(v)
			return nil
		},
	}
}

// fields is in display order.
var fields = []field{
	{
		key:   "adc_offset_corr",
		label: "ADC offset",
		unit:  "code points",
		render: func(r *Record) string {
			return strconv.FormatInt(int64(r.AdcOffsetCorr), 10)
		},
		set: func(r *Record, value string) error {
			v, err := strconv.ParseInt(strings.TrimSpace(value), 0, 16)
			if err != nil {
				return err
			}
			r.AdcOffsetCorr = int16(v)
			return nil
		},
	},
	uint16Field("adc_gain_corr", "ADC gain", "", func(r *Record) *uint16 { return &r.AdcGainCorr }),
	uint16Field("led_brightness", "LED brightness", "/ 255", func(r *Record) *uint16 { return &r.LedBrightness }),
	fixedField("castor_knob_min", "Castor knob min", "v/oct", func(r *Record) *fix16.Fix16 { return &r.CastorKnobMin }),
	fixedField("castor_knob_max", "Castor knob max", "v/oct", func(r *Record) *fix16.Fix16 { return &r.CastorKnobMax }),
	fixedField("pollux_knob_min", "Pollux knob min", "v/oct", func(r *Record) *fix16.Fix16 { return &r.PolluxKnobMin }),
	fixedField("pollux_knob_max", "Pollux knob max", "v/oct", func(r *Record) *fix16.Fix16 { return &r.PolluxKnobMax }),
	fixedField("chorus_frequency", "Chorus frequency", "Hz", func(r *Record) *fix16.Fix16 { return &r.ChorusFrequency }),
	fixedField("chorus_max_intensity", "Chorus intensity", "v/oct", func(r *Record) *fix16.Fix16 { return &r.ChorusMaxIntensity }),
	fixedField("knob_offset_corr", "Knob offset", "code points", func(r *Record) *fix16.Fix16 { return &r.KnobOffsetCorr }),
	fixedField("knob_gain_corr", "Knob gain", "", func(r *Record) *fix16.Fix16 { return &r.KnobGainCorr }),
	fixedField("smooth_initial_gain", "Smooth initial gain", "", func(r *Record) *fix16.Fix16 { return &r.SmoothInitialGain }),
	fixedField("smooth_sensitivity", "Smooth sensitivity", "", func(r *Record) *fix16.Fix16 { return &r.SmoothSensitivity }),
	uint16Field("pollux_follower_threshold", "Pollux follower threshold", "code points", func(r *Record) *uint16 { return &r.PolluxFollowerThreshold }),
}

// Format returns the human-readable rendering of r: a header line followed
// by one line per field. The sequence is computed lazily and can be ranged
// over any number of times.
func Format(r Record) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !yield("Settings:") {
			return
		}
		for _, f := range fields {
			line := fmt.Sprintf(" %s: %s", f.label, f.render(&r))
			if f.unit != "" {
				line += " " + f.unit
			}
			if !yield(line) {
				return
			}
		}
	}
}

// FieldKeys returns the keys accepted by Set, in display order
func FieldKeys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Get renders a single field by key
func (r *Record) Get(key string) (string, error) {
	for _, f := range fields {
		if f.key == key {
			return f.render(r), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, key)
}

// Set parses value into the field named key. Integer fields accept decimal,
// 0x hex and 0o octal; Q16.16 fields accept a real number. Set does not
// validate ranges.
func (r *Record) Set(key, value string) error {
	for _, f := range fields {
		if f.key == key {
			if err := f.set(r, value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, key)
}
