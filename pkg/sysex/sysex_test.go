package sysex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() []byte {
	raw := make([]byte, 49)
	for i := range raw {
		raw[i] = byte(i*37 + 0x63)
	}
	return raw
}

func TestNibbles(t *testing.T) {
	encoded := EncodeNibbles([]byte{0x63, 0x08, 0xFF, 0x00})
	assert.Equal(t, []byte{0x6, 0x3, 0x0, 0x8, 0xF, 0xF, 0x0, 0x0}, encoded)

	decoded, err := DecodeNibbles(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x63, 0x08, 0xFF, 0x00}, decoded)

	_, err = DecodeNibbles([]byte{0x1})
	assert.ErrorIs(t, err, ErrMalformedMessage)

	_, err = DecodeNibbles([]byte{0x1, 0x10})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestNewAndParseMessage(t *testing.T) {
	msg := NewMessage(CmdHello)
	assert.Equal(t, []byte{0xF0, 0x77, 0x01, 0xF7}, msg)

	cmd, payload, err := ParseMessage(NewMessage(CmdSetDAC, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, CmdSetDAC, cmd)
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestParseMessage_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		msg  []byte
	}{
		{"too short", []byte{0xF0, 0x77, 0xF7}},
		{"no start", []byte{0x00, 0x77, 0x01, 0xF7}},
		{"no end", []byte{0xF0, 0x77, 0x01, 0x00}},
		{"wrong marker", []byte{0xF0, 0x76, 0x01, 0xF7}},
		{"high bit in payload", []byte{0xF0, 0x77, 0x09, 0x80, 0xF7}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseMessage(tc.msg)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestFixedMessages(t *testing.T) {
	assert.Equal(t, []byte{0xF0, 0x77, 0x07, 0xF7}, ResetSettingsMessage())

	req, err := ReadSettingsRequest(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF0, 0x77, 0x08, 0x03, 0xF7}, req)

	_, err = ReadSettingsRequest(8)
	assert.ErrorIs(t, err, ErrChunkIndex)
	_, err = ReadSettingsRequest(-1)
	assert.ErrorIs(t, err, ErrChunkIndex)
}

func TestWriteSettingsMessages(t *testing.T) {
	raw := sampleRecord()

	msgs, err := WriteSettingsMessages(raw)
	require.NoError(t, err)
	require.Len(t, msgs, ChunkCount)

	for n, msg := range msgs {
		assert.Len(t, msg, 4+1+EncodedChunkSize)
		assert.Equal(t, []byte{0xF0, 0x77, 0x09, byte(n)}, msg[:4])
		assert.Equal(t, byte(0xF7), msg[len(msg)-1])
	}

	// First chunk carries the marker nibbles.
	assert.Equal(t, []byte{0x6, 0x3}, msgs[0][4:6])

	// Bytes past the record are zero padding. The record ends inside chunk 6.
	var encoded []byte
	for _, msg := range msgs {
		encoded = append(encoded, msg[4:4+EncodedChunkSize]...)
	}
	require.Len(t, encoded, 2*BufferSize)
	assert.Equal(t, bytes.Repeat([]byte{0}, 2*(BufferSize-49)), encoded[2*49:])
	assert.NotEqual(t, bytes.Repeat([]byte{0}, 2*49), encoded[:2*49])

	_, err = WriteSettingsMessages(make([]byte, BufferSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestAssembler_WriteMessagesAnyOrder(t *testing.T) {
	raw := sampleRecord()
	msgs, err := WriteSettingsMessages(raw)
	require.NoError(t, err)

	var a Assembler
	for _, n := range []int{7, 0, 3, 1, 6, 2, 5} {
		require.NoError(t, a.AddWriteMessage(msgs[n]))
		assert.False(t, a.Complete())
	}

	_, err = a.Bytes(49)
	assert.ErrorIs(t, err, ErrIncomplete)

	require.NoError(t, a.AddWriteMessage(msgs[4]))
	assert.True(t, a.Complete())

	got, err := a.Bytes(49)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	a.Reset()
	assert.False(t, a.Complete())
}

func TestAssembler_ReadResponses(t *testing.T) {
	raw := sampleRecord()
	responses, err := ReadSettingsResponses(raw)
	require.NoError(t, err)

	var a Assembler
	for n, msg := range responses {
		assert.Len(t, msg, 3+EncodedChunkSize+1)
		require.NoError(t, a.AddReadResponse(n, msg))
	}

	got, err := a.Bytes(len(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestAssembler_Errors(t *testing.T) {
	var a Assembler

	assert.ErrorIs(t, a.AddChunk(8, make([]byte, EncodedChunkSize)), ErrChunkIndex)
	assert.ErrorIs(t, a.AddChunk(0, make([]byte, 3)), ErrMalformedMessage)
	assert.ErrorIs(t, a.AddWriteMessage(NewMessage(CmdHello)), ErrMalformedMessage)
	assert.ErrorIs(t, a.AddWriteMessage([]byte{0xF0, 0x77, 0x09, 0xF7}), ErrMalformedMessage)
	assert.ErrorIs(t, a.AddReadResponse(0, NewMessage(CmdWriteSettings, make([]byte, EncodedChunkSize)...)), ErrMalformedMessage)

	bad := NewMessage(CmdWriteSettings, append([]byte{9}, make([]byte, EncodedChunkSize)...)...)
	assert.ErrorIs(t, a.AddWriteMessage(bad), ErrChunkIndex)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "write_settings", CmdWriteSettings.String())
	assert.Equal(t, "command(0x7f)", Command(0x7F).String())
}
