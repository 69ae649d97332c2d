// Package settings persists the device's calibration and UI tuning record to
// non-volatile memory.
//
// # Record Format
//
// A record is serialized into a fixed 49-byte buffer. All multi-byte fields
// are big-endian:
//
//	offset  width  field
//	0       1      marker (always 0x63)
//	1       2      ADC gain correction (uint16, 512..4096)
//	3       2      ADC offset correction (int16, two's complement)
//	5       2      LED brightness (uint16, 0..255)
//	7       4      Castor knob min (Q16.16)
//	11      4      Castor knob max (Q16.16)
//	15      4      Pollux knob min (Q16.16)
//	19      4      Pollux knob max (Q16.16)
//	23      4      chorus max intensity (Q16.16)
//	27      4      chorus frequency (Q16.16)
//	31      4      knob offset correction (Q16.16)
//	35      4      knob gain correction (Q16.16)
//	39      4      smooth initial gain (Q16.16)
//	43      4      smooth sensitivity (Q16.16)
//	47      2      Pollux follower threshold (uint16)
//
// The layout is a compatibility contract with records already stored on
// devices. Changing any offset, width or the byte order invalidates them.
//
// # Validation
//
// Loading checks, in order, that the marker byte is 0x63, that the ADC gain
// correction is within [512, 4096] and that the LED brightness is at most 255.
// No other field is range checked. A record that fails any check is replaced
// by Defaults and reported as invalid; loading never fails hard, so a device
// always comes up with a usable configuration.
//
// Serializing performs no validation at all. Callers that build a record for
// saving are expected to call Record.Validate themselves.
//
// # Usage
//
//	store := nvm.NewMemoryStore(4096)
//	mgr := settings.NewManager(store, settings.ManagerConfig{Logger: logger})
//
//	rec, valid, err := mgr.Load()
//	if err != nil {
//	    // the store could not be read; rec holds the defaults
//	}
//	if !valid {
//	    // first boot or corrupted record; rec holds the defaults
//	}
//
//	rec.LedBrightness = 200
//	if err := rec.Validate(); err != nil {
//	    return err
//	}
//	if err := mgr.Save(rec); err != nil {
//	    return err
//	}
//
// Erase overwrites only the marker byte, which is enough for the next Load to
// fall back to the defaults.
//
// # Thread Safety
//
// Codec and Manager keep no mutable state between calls. Concurrent use is as
// safe as the underlying nvm.Store.
package settings
