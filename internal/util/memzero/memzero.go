// Package memzero wipes secret byte slices.
package memzero

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros in a constant-time friendly way.
//
//go:noinline
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
	runtime.KeepAlive(&b)
}

// Buffer is a byte slice that is wiped by Close. Callers should defer Close
// right after the buffer is produced so every exit path clears it.
type Buffer struct {
	b []byte
}

// Wrap takes ownership of b.
func Wrap(b []byte) *Buffer { return &Buffer{b: b} }

// Bytes returns the underlying slice. It is empty after Close.
func (z *Buffer) Bytes() []byte { return z.b }

// Close zeroes and releases the buffer. It is safe to call more than once.
func (z *Buffer) Close() error {
	Zero(z.b)
	z.b = nil
	return nil
}
