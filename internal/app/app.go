package app

import (
	"fmt"
	"os"
	"unicode"

	"github.com/rs/zerolog"

	"roomkeys/internal/metrics"
	"roomkeys/internal/store"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when a new database would be created with
	// a passphrase that fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
	// ErrNoPassphrase is returned when no passphrase was given.
	ErrNoPassphrase = fmt.Errorf("passphrase required (-p or ROOMKEYS_PASSPHRASE)")
)

// App is an opened database plus the services built over it.
type App struct {
	*Wire
	Config Config
	Log    zerolog.Logger

	db *store.DB
}

// Open unlocks the database named by cfg and wires the services. A new
// database is only created for a passphrase that passes the strength policy.
func Open(cfg Config, log zerolog.Logger) (*App, error) {
	if cfg.Passphrase == "" {
		return nil, ErrNoPassphrase
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	path := cfg.DBPath()
	if !store.Exists(path) && !isSecurePassphrase(cfg.Passphrase) {
		return nil, ErrWeakPassphrase
	}

	db, err := store.Open(path, cfg.Passphrase, cfg.storeOptions())
	if err != nil {
		return nil, err
	}
	log.Debug().Str("db", path).Msg("opened room key store")

	return &App{
		Wire:   NewWire(db, metrics.New(), log),
		Config: cfg,
		Log:    log,
		db:     db,
	}, nil
}

func (c Config) storeOptions() *store.Options {
	if c.KDF == "" {
		return c.Store
	}
	opts := store.Options{}
	if c.Store != nil {
		opts = *c.Store
	}
	opts.KDF = c.KDF
	return &opts
}

// Close releases the database.
func (a *App) Close() error { return a.db.Close() }

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
