// Package fix16 implements the signed Q16.16 fixed-point format used by the
// settings record: a 32-bit two's complement integer with 16 integer bits and
// 16 fractional bits.
package fix16

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// One is 1.0 in Q16.16.
const One Fix16 = 1 << 16

const (
	Max Fix16 = math.MaxInt32
	Min Fix16 = math.MinInt32
)

// MaxDecimals is the most fractional digits Format will produce. Five digits
// already cover the full resolution of 1/65536.
const MaxDecimals = 5

var scales = [MaxDecimals + 1]int64{1, 10, 100, 1000, 10000, 100000}

// Fix16 is a Q16.16 value. The zero value is 0.0.
type Fix16 int32

// FromFloat converts a real number to Q16.16 by multiplying by 65536 and
// rounding half away from zero. Values outside the representable range
// saturate to Min or Max; NaN converts to zero.
func FromFloat(x float64) Fix16 {
	if math.IsNaN(x) {
		return 0
	}
	v := math.Round(x * 65536.0)
	if v >= math.MaxInt32 {
		return Max
	}
	if v <= math.MinInt32 {
		return Min
	}
	return Fix16(v)
}

// FromInt converts an integer, saturating outside [-32768, 32767].
func FromInt(n int) Fix16 {
	if n > math.MaxInt16 {
		return Max
	}
	if n < math.MinInt16 {
		return Min
	}
	return Fix16(n << 16)
}

// FromRaw reinterprets raw bits as a Q16.16 value.
func FromRaw(raw uint32) Fix16 {
	return Fix16(int32(raw))
}

// Raw returns the two's complement bit pattern.
func (f Fix16) Raw() uint32 {
	return uint32(f)
}

// Float64 converts to a real number by dividing by 65536.
func (f Fix16) Float64() float64 {
	return float64(f) / 65536.0
}

// Format renders f with a fixed number of fractional digits. The fractional
// part is scaled with round-half-up and carries into the integer part, so
// 0.999 formats as "1.00" at two decimals. decimals is clamped to [0, 5].
func (f Fix16) Format(decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if decimals > MaxDecimals {
		decimals = MaxDecimals
	}

	var sb strings.Builder
	u := int64(f)
	if u < 0 {
		sb.WriteByte('-')
		u = -u
	}

	intPart := u >> 16
	scale := scales[decimals]
	fracPart := ((u&0xFFFF)*scale + 0x8000) >> 16
	if fracPart >= scale {
		intPart++
		fracPart -= scale
	}

	sb.WriteString(strconv.FormatInt(intPart, 10))
	if decimals > 0 {
		fmt.Fprintf(&sb, ".%0*d", decimals, fracPart)
	}
	return sb.String()
}

// String formats with two decimals.
func (f Fix16) String() string {
	return f.Format(2)
}

// MarshalText encodes the shortest decimal that converts back to the same
// bits, so values survive JSON and YAML unchanged.
func (f Fix16) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatFloat(f.Float64(), 'f', -1, 64)), nil
}

// MarshalYAML encodes f as a plain YAML float.
func (f Fix16) MarshalYAML() (interface{}, error) {
	return f.Float64(), nil
}

// UnmarshalText parses a decimal real number.
func (f *Fix16) UnmarshalText(text []byte) error {
	x, err := strconv.ParseFloat(strings.TrimSpace(string(text)), 64)
	if err != nil {
		return fmt.Errorf("invalid fixed-point value %q: %w", text, err)
	}
	*f = FromFloat(x)
	return nil
}

// Parse converts a decimal string to Q16.16.
func Parse(s string) (Fix16, error) {
	var f Fix16
	if err := f.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return f, nil
}

// MarshalJSON encodes f as a JSON number.
func (f Fix16) MarshalJSON() ([]byte, error) {
	return f.MarshalText()
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. null
// leaves f unchanged.
func (f *Fix16) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	return f.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}
