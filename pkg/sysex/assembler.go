package sysex

import "fmt"

// Assembler collects settings chunks, in any order, until the whole
// transfer buffer is present.
type Assembler struct {
	buf      [BufferSize]byte
	received uint8 // bit n set once chunk n arrived
}

// AddChunk stores the nibble-encoded payload of chunk n
func (a *Assembler) AddChunk(n int, encoded []byte) error {
	if n < 0 || n >= ChunkCount {
		return fmt.Errorf("%w: %d", ErrChunkIndex, n)
	}
	if len(encoded) != EncodedChunkSize {
		return fmt.Errorf("%w: chunk payload is %d bytes, want %d", ErrMalformedMessage, len(encoded), EncodedChunkSize)
	}

	data, err := DecodeNibbles(encoded)
	if err != nil {
		return err
	}

	copy(a.buf[n*ChunkSize:], data)
	a.received |= 1 << n
	return nil
}

// AddWriteMessage accepts a complete write-settings message
func (a *Assembler) AddWriteMessage(msg []byte) error {
	cmd, payload, err := ParseMessage(msg)
	if err != nil {
		return err
	}
	if cmd != CmdWriteSettings {
		return fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, CmdWriteSettings, cmd)
	}
	if len(payload) < 1 {
		return fmt.Errorf("%w: missing chunk index", ErrMalformedMessage)
	}
	return a.AddChunk(int(payload[0]), payload[1:])
}

// AddReadResponse accepts the device's reply to ReadSettingsRequest(n)
func (a *Assembler) AddReadResponse(n int, msg []byte) error {
	cmd, payload, err := ParseMessage(msg)
	if err != nil {
		return err
	}
	if cmd != CmdReadSettings {
		return fmt.Errorf("%w: expected %s, got %s", ErrMalformedMessage, CmdReadSettings, cmd)
	}
	return a.AddChunk(n, payload)
}

// Complete reports whether every chunk has arrived
func (a *Assembler) Complete() bool {
	return a.received == 1<<ChunkCount-1
}

// Bytes returns the first n bytes of the assembled buffer
func (a *Assembler) Bytes(n int) ([]byte, error) {
	if !a.Complete() {
		return nil, fmt.Errorf("%w: have chunks %08b", ErrIncomplete, a.received)
	}
	if n < 0 || n > BufferSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}
	out := make([]byte, n)
	copy(out, a.buf[:n])
	return out, nil
}

// Reset discards all received chunks
func (a *Assembler) Reset() {
	*a = Assembler{}
}
