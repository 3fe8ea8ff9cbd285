package olm

import (
	"errors"
	"fmt"

	"roomkeys/internal/domain/types"
)

var (
	// ErrUnsupportedAlgorithm is returned when an encrypted event uses a
	// scheme this build cannot decrypt.
	ErrUnsupportedAlgorithm = errors.New("olm: unsupported encryption algorithm")
	// ErrNotAnObject is returned when a decrypted payload is not a JSON object.
	ErrNotAnObject = errors.New("olm: decrypted payload is not a JSON object")
	// ErrSessionIDMismatch is returned when an export names a session id that
	// does not match its key material.
	ErrSessionIDMismatch = errors.New("olm: session id does not match session key")
)

// SessionCreationError is returned when a session cannot be built for the
// requested algorithm.
type SessionCreationError struct {
	Algorithm types.EventEncryptionAlgorithm
	Err       error
}

func (e *SessionCreationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("olm: cannot create session for algorithm %q", e.Algorithm)
	}
	return fmt.Sprintf("olm: cannot create session for algorithm %q: %v", e.Algorithm, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// MismatchedRoomError is returned when a decrypted event names a different
// room than the session is bound to. Found is empty when the payload carried
// no usable room id.
type MismatchedRoomError struct {
	Expected types.RoomID
	Found    types.RoomID
}

func (e *MismatchedRoomError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("olm: decrypted event has no room id, expected %s", e.Expected)
	}
	return fmt.Sprintf("olm: decrypted event is for room %s, expected %s", e.Found, e.Expected)
}

// MigrationError is returned when a pickled session has contradictory or
// missing provenance.
type MigrationError struct {
	Reason string
}

func (e *MigrationError) Error() string { return "olm: cannot migrate pickle: " + e.Reason }

// DecryptionError wraps a ratchet-level failure: a malformed ciphertext, an
// unknown message index or a failed MAC or signature check.
type DecryptionError struct {
	SessionID string
	Err       error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("olm: decrypt with session %s: %v", e.SessionID, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }
