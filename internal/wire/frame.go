// Package wire implements the length-prefixed TCP framing of spec §6: a
// 4-byte big-endian length prefix followed by that many payload bytes. No
// ecosystem framework in the retrieval pack fits a custom binary framing
// better than plain net.Conn + encoding/binary (see DESIGN.md); this
// package is deliberately stdlib-only.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxFrameLength bounds a single frame's payload size, guarding against a
// malformed or hostile length prefix forcing an unbounded allocation.
const MaxFrameLength = 64 << 20 // 64 MiB

// ErrFrameTooLarge is returned when a frame's declared length exceeds
// MaxFrameLength.
var ErrFrameTooLarge = errors.New("wire: frame length exceeds maximum")

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameLength {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
