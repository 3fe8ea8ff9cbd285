// Package olm holds the receive side of room encryption: inbound group
// sessions ("room keys") and the provenance attached to them.
//
// # Sessions
//
// An InboundGroupSession wraps a Megolm ratchet together with the room it is
// bound to, the identity of its creator and where the key came from. It is
// created in one of four ways:
//
//   - NewInboundGroupSession: an m.room_key straight from the creator (Direct)
//   - FromExport: a key export file (OldStyleImport)
//   - FromBackup: a server-side key backup (Backup)
//   - FromForwardedRoomKey: an m.forwarded_room_key (Forward)
//
// Ratchet state sits behind a per-session lock. Clones share that state and
// the backed-up flag; everything else is immutable after construction.
//
// # Persistence
//
// Pickle snapshots a session; FromPickle restores it and recomputes the
// session id and first known index from the ratchet. PickledInboundGroupSession
// still accepts records written with the older boolean "imported" flag.
package olm
