package backups

import "errors"

var (
	// ErrNotAnObject is returned when an extra envelope field cannot be
	// represented as canonical JSON.
	ErrNotAnObject = errors.New("backups: envelope is not a canonical JSON object")
	// ErrNoSignatureFound is returned by Verify when unsigned.backup_mac is absent.
	ErrNoSignatureFound = errors.New("backups: no backup MAC found")
	// ErrInvalidSignature is returned by Verify when the backup MAC does not match.
	ErrInvalidSignature = errors.New("backups: invalid backup MAC")
	// ErrNoVersion is returned by Encrypt before SetVersion has been called.
	ErrNoVersion = errors.New("backups: backup key has no version")
	// ErrBadKey is returned for malformed base64 keys.
	ErrBadKey = errors.New("backups: malformed key")
)
