package olm

import (
	"encoding/json"
	"slices"

	"roomkeys/internal/domain/types"
	"roomkeys/internal/protocol/megolm"
)

// SessionCreatorInfo identifies the device that created a session. How far
// it can be trusted depends on the session's KeySource.
type SessionCreatorInfo struct {
	Curve25519Key types.X25519Public
	SigningKeys   types.SigningKeys
}

// ExportedRoomKey is a room key in the key export file format.
type ExportedRoomKey struct {
	Algorithm         types.EventEncryptionAlgorithm `json:"algorithm"`
	RoomID            types.RoomID                   `json:"room_id"`
	SenderKey         types.X25519Public             `json:"sender_key"`
	SessionID         string                         `json:"session_id"`
	SessionKey        megolm.ExportedSessionKey      `json:"session_key"`
	SenderClaimedKeys types.SigningKeys              `json:"sender_claimed_keys"`
	// ForwardingChain is always empty for keys exported here.
	ForwardingChain []string `json:"forwarding_curve25519_key_chain"`
}

// Wipe zeroes the session key material.
func (k *ExportedRoomKey) Wipe() { k.SessionKey.Wipe() }

// BackedUpRoomKey is the plaintext of one session in a server-side backup.
type BackedUpRoomKey struct {
	Algorithm         types.EventEncryptionAlgorithm `json:"algorithm"`
	SenderKey         types.X25519Public             `json:"sender_key"`
	SessionKey        megolm.ExportedSessionKey      `json:"session_key"`
	SenderClaimedKeys types.SigningKeys              `json:"sender_claimed_keys"`
	ForwardingChain   []string                       `json:"forwarding_curve25519_key_chain"`
	// Unauthenticated is set when the key did not come from its creator.
	Unauthenticated *UnauthenticatedSource `json:"unauthenticated,omitempty"`
}

// Wipe zeroes the session key material.
func (k *BackedUpRoomKey) Wipe() { k.SessionKey.Wipe() }

// AppendJSON appends the JSON form of k to dst. dst is grown before the
// session key is written, so the only plaintext copy is the returned slice,
// which the caller should wipe.
func (k *BackedUpRoomKey) AppendJSON(dst []byte) ([]byte, error) {
	meta, err := json.Marshal(struct {
		Algorithm         types.EventEncryptionAlgorithm `json:"algorithm"`
		SenderKey         types.X25519Public             `json:"sender_key"`
		SenderClaimedKeys types.SigningKeys              `json:"sender_claimed_keys"`
		ForwardingChain   []string                       `json:"forwarding_curve25519_key_chain"`
		Unauthenticated   *UnauthenticatedSource         `json:"unauthenticated,omitempty"`
	}{k.Algorithm, k.SenderKey, k.SenderClaimedKeys, k.ForwardingChain, k.Unauthenticated})
	if err != nil {
		return nil, err
	}
	const field = `,"session_key":"`
	dst = slices.Grow(dst, len(meta)+len(field)+k.SessionKey.EncodedLen()+2)
	dst = append(dst, meta[:len(meta)-1]...)
	dst = append(dst, field...)
	dst = k.SessionKey.AppendBase64(dst)
	return append(dst, '"', '}'), nil
}

// backedUp converts an export into its backup form.
func (k ExportedRoomKey) backedUp() BackedUpRoomKey {
	return BackedUpRoomKey{
		Algorithm:         k.Algorithm,
		SenderKey:         k.SenderKey,
		SessionKey:        k.SessionKey,
		SenderClaimedKeys: k.SenderClaimedKeys,
		ForwardingChain:   k.ForwardingChain,
	}
}
