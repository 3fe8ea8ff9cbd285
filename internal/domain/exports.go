package domain

import (
	interfaces "roomkeys/internal/domain/interfaces"
	types "roomkeys/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID                   = types.UserID
	RoomID                   = types.RoomID
	EventID                  = types.EventID
	EventEncryptionAlgorithm = types.EventEncryptionAlgorithm
	HistoryVisibility        = types.HistoryVisibility
	SigningKeys              = types.SigningKeys
	X25519Public             = types.X25519Public
	X25519Private            = types.X25519Private
	Ed25519Public            = types.Ed25519Public
	Ed25519Private           = types.Ed25519Private
	EncryptedEvent           = types.EncryptedEvent
	EncryptedContent         = types.EncryptedContent
	RoomKeyContent           = types.RoomKeyContent
	ForwardedRoomKeyContent  = types.ForwardedRoomKeyContent
	ForwardedRoomKeyEvent    = types.ForwardedRoomKeyEvent
	BackupKeyRecord          = types.BackupKeyRecord
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	GroupSessionStore = interfaces.GroupSessionStore
	BackupKeyStore    = interfaces.BackupKeyStore
	RoomKeyService    = interfaces.RoomKeyService
	BackupKeyService  = interfaces.BackupKeyService
)
