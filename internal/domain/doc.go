// Package domain defines the data models and interfaces shared across the
// app. It contains plain types (wire/state) and contracts (interfaces) only.
//
// Packages below the service layer (olm, backups, protocol/*) import
// internal/domain/types directly so that the interfaces here can refer to
// their types without an import cycle.
package domain
