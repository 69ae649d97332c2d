package settings

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wntrblm/gemsettings/pkg/fix16"
)

// Marker is the first byte of every valid serialized record.
const Marker = 0x63

// Size is the length of a serialized record in bytes.
const Size = 49

// Field offsets within the serialized record
const (
	offMarker                  = 0
	offAdcGainCorr             = 1
	offAdcOffsetCorr           = 3
	offLedBrightness           = 5
	offCastorKnobMin           = 7
	offCastorKnobMax           = 11
	offPolluxKnobMin           = 15
	offPolluxKnobMax           = 19
	offChorusMaxIntensity      = 23
	offChorusFrequency         = 27
	offKnobOffsetCorr          = 31
	offKnobGainCorr            = 35
	offSmoothInitialGain       = 39
	offSmoothSensitivity       = 43
	offPolluxFollowerThreshold = 47
)

var order = binary.BigEndian

// Codec converts records to and from their 49-byte serialized form
type Codec struct {
	logger zerolog.Logger
}

// NewCodec creates a codec that reports rejected records to logger
func NewCodec(logger zerolog.Logger) *Codec {
	return &Codec{logger: logger}
}

// Serialize writes the marker and every field at its fixed offset. The
// record is not validated.
func (c *Codec) Serialize(r Record) [Size]byte {
	var buf [Size]byte

	buf[offMarker] = Marker
	order.PutUint16(buf[offAdcGainCorr:], r.AdcGainCorr)
	order.PutUint16(buf[offAdcOffsetCorr:], uint16(r.AdcOffsetCorr))
	order.PutUint16(buf[offLedBrightness:], r.LedBrightness)
	order.PutUint32(buf[offCastorKnobMin:], r.CastorKnobMin.Raw())
	order.PutUint32(buf[offCastorKnobMax:], r.CastorKnobMax.Raw())
	order.PutUint32(buf[offPolluxKnobMin:], r.PolluxKnobMin.Raw())
	order.PutUint32(buf[offPolluxKnobMax:], r.PolluxKnobMax.Raw())
	order.PutUint32(buf[offChorusMaxIntensity:], r.ChorusMaxIntensity.Raw())
	order.PutUint32(buf[offChorusFrequency:], r.ChorusFrequency.Raw())
	order.PutUint32(buf[offKnobOffsetCorr:], r.KnobOffsetCorr.Raw())
	order.PutUint32(buf[offKnobGainCorr:], r.KnobGainCorr.Raw())
	order.PutUint32(buf[offSmoothInitialGain:], r.SmoothInitialGain.Raw())
	order.PutUint32(buf[offSmoothSensitivity:], r.SmoothSensitivity.Raw())
	order.PutUint16(buf[offPolluxFollowerThreshold:], r.PolluxFollowerThreshold)

	return buf
}

// Encode is Serialize returning a slice
func (c *Codec) Encode(r Record) []byte {
	buf := c.Serialize(r)
	return buf[:]
}

// Decode parses and validates a serialized record. Checks run in order and
// stop at the first failure: length, marker, ADC gain, LED brightness.
func (c *Codec) Decode(data []byte) (Record, error) {
	if len(data) != Size {
		return Record{}, fmt.Errorf("%w: got %d", ErrInvalidLength, len(data))
	}
	if data[offMarker] != Marker {
		return Record{}, fmt.Errorf("%w: 0x%02x", ErrBadMarker, data[offMarker])
	}

	r := Record{
		AdcGainCorr:             order.Uint16(data[offAdcGainCorr:]),
		AdcOffsetCorr:           int16(order.Uint16(data[offAdcOffsetCorr:])),
		LedBrightness:           order.Uint16(data[offLedBrightness:]),
		CastorKnobMin:           fix16.FromRaw(order.Uint32(data[offCastorKnobMin:])),
		CastorKnobMax:           fix16.FromRaw(order.Uint32(data[offCastorKnobMax:])),
		PolluxKnobMin:           fix16.FromRaw(order.Uint32(data[offPolluxKnobMin:])),
		PolluxKnobMax:           fix16.FromRaw(order.Uint32(data[offPolluxKnobMax:])),
		ChorusMaxIntensity:      fix16.FromRaw(order.Uint32(data[offChorusMaxIntensity:])),
		ChorusFrequency:         fix16.FromRaw(order.Uint32(data[offChorusFrequency:])),
		KnobOffsetCorr:          fix16.FromRaw(order.Uint32(data[offKnobOffsetCorr:])),
		KnobGainCorr:            fix16.FromRaw(order.Uint32(data[offKnobGainCorr:])),
		SmoothInitialGain:       fix16.FromRaw(order.Uint32(data[offSmoothInitialGain:])),
		SmoothSensitivity:       fix16.FromRaw(order.Uint32(data[offSmoothSensitivity:])),
		PolluxFollowerThreshold: order.Uint16(data[offPolluxFollowerThreshold:]),
	}

	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Deserialize is the load-side entry point. It never fails: a buffer that
// does not decode yields the defaults and false, and one diagnostic line is
// logged. A valid buffer yields the decoded record and true.
func (c *Codec) Deserialize(data []byte) (Record, bool) {
	r, err := c.Decode(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to deserialize settings, invalid data")
		return Defaults(), false
	}
	return r, true
}
