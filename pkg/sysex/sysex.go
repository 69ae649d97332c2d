// Package sysex frames settings traffic for the device's MIDI System
// Exclusive command set.
//
// Every message is F0 77 <command> <payload...> F7. Payload bytes must stay
// below 0x80, so binary data is split into nibbles: each byte travels as two
// bytes holding its high and low four bits.
//
// The settings record is moved in a 64-byte buffer (49 bytes used, the rest
// zero) split into eight chunks of eight bytes, sixteen bytes once nibble
// encoded. Writes carry the chunk index after the command byte; read
// responses do not, the index is implied by the request being answered.
package sysex

import (
	"errors"
	"fmt"
)

// Framing bytes
const (
	Start  = 0xF0
	End    = 0xF7
	Marker = 0x77
)

// Command identifies a SysEx request
type Command byte

const (
	CmdHello          Command = 0x01
	CmdWriteADCGain   Command = 0x02
	CmdWriteADCOffset Command = 0x03
	CmdReadADC        Command = 0x04
	CmdSetDAC         Command = 0x05
	CmdSetFreq        Command = 0x06
	CmdResetSettings  Command = 0x07
	CmdReadSettings   Command = 0x08
	CmdWriteSettings  Command = 0x09
	CmdWriteLUTEntry  Command = 0x0A
	CmdWriteLUT       Command = 0x0B
	CmdEraseLUT       Command = 0x0C
	CmdDisableADCCorr Command = 0x0D
	CmdEnableADCCorr  Command = 0x0E
)

// Settings transfer geometry
const (
	BufferSize       = 64
	ChunkCount       = 8
	ChunkSize        = BufferSize / ChunkCount
	EncodedChunkSize = ChunkSize * 2
)

var (
	ErrMalformedMessage = errors.New("malformed sysex message")
	ErrChunkIndex       = errors.New("settings chunk index out of range")
	ErrPayloadTooLarge  = errors.New("settings payload larger than transfer buffer")
	ErrIncomplete       = errors.New("settings transfer incomplete")
)

func (c Command) String() string {
	switch c {
	case CmdHello:
		return "hello"
	case CmdWriteADCGain:
		return "write_adc_gain"
	case CmdWriteADCOffset:
		return "write_adc_offset"
	case CmdReadADC:
		return "read_adc"
	case CmdSetDAC:
		return "set_dac"
	case CmdSetFreq:
		return "set_freq"
	case CmdResetSettings:
		return "reset_settings"
	case CmdReadSettings:
		return "read_settings"
	case CmdWriteSettings:
		return "write_settings"
	case CmdWriteLUTEntry:
		return "write_lut_entry"
	case CmdWriteLUT:
		return "write_lut"
	case CmdEraseLUT:
		return "erase_lut"
	case CmdDisableADCCorr:
		return "disable_adc_corr"
	case CmdEnableADCCorr:
		return "enable_adc_corr"
	default:
		return fmt.Sprintf("command(0x%02x)", byte(c))
	}
}

// EncodeNibbles splits each byte of src into a high and a low nibble
func EncodeNibbles(src []byte) []byte {
	dst := make([]byte, len(src)*2)
	for n, b := range src {
		dst[n*2] = b >> 4 & 0xF
		dst[n*2+1] = b & 0xF
	}
	return dst
}

// DecodeNibbles joins nibble pairs back into bytes
func DecodeNibbles(src []byte) ([]byte, error) {
	if len(src)%2 != 0 {
		return nil, fmt.Errorf("%w: odd nibble count %d", ErrMalformedMessage, len(src))
	}
	dst := make([]byte, len(src)/2)
	for n := range dst {
		hi, lo := src[n*2], src[n*2+1]
		if hi > 0xF || lo > 0xF {
			return nil, fmt.Errorf("%w: byte %d is not a nibble", ErrMalformedMessage, n*2)
		}
		dst[n] = hi<<4 | lo
	}
	return dst, nil
}

// NewMessage frames a command and payload
func NewMessage(cmd Command, payload ...byte) []byte {
	msg := make([]byte, 0, len(payload)+4)
	msg = append(msg, Start, Marker, byte(cmd))
	msg = append(msg, payload...)
	return append(msg, End)
}

// ParseMessage checks framing and returns the command and payload
func ParseMessage(msg []byte) (Command, []byte, error) {
	if len(msg) < 4 {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrMalformedMessage, len(msg))
	}
	if msg[0] != Start || msg[len(msg)-1] != End {
		return 0, nil, fmt.Errorf("%w: missing start or end byte", ErrMalformedMessage)
	}
	if msg[1] != Marker {
		return 0, nil, fmt.Errorf("%w: marker 0x%02x", ErrMalformedMessage, msg[1])
	}
	payload := msg[3 : len(msg)-1]
	for i, b := range payload {
		if b >= 0x80 {
			return 0, nil, fmt.Errorf("%w: payload byte %d has high bit set", ErrMalformedMessage, i)
		}
	}
	return Command(msg[2]), payload, nil
}

// ResetSettingsMessage asks the device to erase its settings
func ResetSettingsMessage() []byte {
	return NewMessage(CmdResetSettings)
}

// ReadSettingsRequest asks the device for one chunk of its settings
func ReadSettingsRequest(chunk int) ([]byte, error) {
	if chunk < 0 || chunk >= ChunkCount {
		return nil, fmt.Errorf("%w: %d", ErrChunkIndex, chunk)
	}
	return NewMessage(CmdReadSettings, byte(chunk)), nil
}

// WriteSettingsMessages splits a serialized record into the eight
// write messages that transfer it to the device.
func WriteSettingsMessages(raw []byte) ([][]byte, error) {
	buf, err := padBuffer(raw)
	if err != nil {
		return nil, err
	}

	msgs := make([][]byte, ChunkCount)
	for n := range msgs {
		payload := append([]byte{byte(n)}, EncodeNibbles(buf[n*ChunkSize:(n+1)*ChunkSize])...)
		msgs[n] = NewMessage(CmdWriteSettings, payload...)
	}
	return msgs, nil
}

// ReadSettingsResponses builds the replies a device sends for each read
// request, in chunk order.
func ReadSettingsResponses(raw []byte) ([][]byte, error) {
	buf, err := padBuffer(raw)
	if err != nil {
		return nil, err
	}

	msgs := make([][]byte, ChunkCount)
	for n := range msgs {
		msgs[n] = NewMessage(CmdReadSettings, EncodeNibbles(buf[n*ChunkSize:(n+1)*ChunkSize])...)
	}
	return msgs, nil
}

func padBuffer(raw []byte) ([]byte, error) {
	if len(raw) > BufferSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(raw))
	}
	buf := make([]byte, BufferSize)
	copy(buf, raw)
	return buf, nil
}
