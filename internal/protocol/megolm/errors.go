package megolm

import (
	"errors"
	"fmt"
)

var (
	ErrBadVersion       = errors.New("megolm: unsupported version")
	ErrBadInput         = errors.New("megolm: malformed input")
	ErrInvalidMAC       = errors.New("megolm: message MAC mismatch")
	ErrInvalidSignature = errors.New("megolm: invalid signature")
	ErrBadConfig        = errors.New("megolm: unknown session config")
)

// UnknownMessageIndexError reports a message index below what the session
// can decrypt.
type UnknownMessageIndexError struct {
	FirstKnown uint32
	Requested  uint32
}

func (e *UnknownMessageIndexError) Error() string {
	return fmt.Sprintf("megolm: unknown message index %d, first known index is %d", e.Requested, e.FirstKnown)
}
