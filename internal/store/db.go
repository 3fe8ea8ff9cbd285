package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"roomkeys/internal/util/memzero"
)

const (
	// The current supported version of the key derivation record stored in the meta bucket.
	keystoreFormatVersion = 1

	checkPlaintext = "roomkeys"
)

// Passphrase key derivation functions.
const (
	KDFScrypt   = "scrypt"
	KDFArgon2id = "argon2id"
)

var (
	bucketMeta     = []byte("meta")
	bucketSessions = []byte("group_sessions")
	bucketBackup   = []byte("backup")

	metaKDF   = []byte("kdf")
	metaCheck = []byte("check")
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or a record has been modified / corrupted.
	ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted record")
	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("store: database closed")
)

// kdfParams is the JSON record holding the salt and key derivation
// parameters. A record without kdf is scrypt.
type kdfParams struct {
	V       int    `json:"v"`
	KDF     string `json:"kdf,omitempty"`
	Salt    []byte `json:"salt"`
	N       int    `json:"scrypt_N,omitempty"`
	R       int    `json:"scrypt_r,omitempty"`
	P       int    `json:"scrypt_p,omitempty"`
	Time    uint32 `json:"argon2_t,omitempty"`
	Memory  uint32 `json:"argon2_m,omitempty"`
	Threads uint8  `json:"argon2_p,omitempty"`
}

// Options tunes how the database is opened. A nil *Options uses defaults.
type Options struct {
	// Timeout bounds the wait for the file lock. Zero means one second.
	Timeout time.Duration
	// KDF selects the passphrase key derivation for a new database, KDFScrypt
	// when empty. Existing databases keep the function and parameters they
	// were created with.
	KDF string
	// Scrypt cost parameters used when creating a new database.
	ScryptN, ScryptR, ScryptP int
	// Argon2id cost parameters used when creating a new database. Memory is
	// in KiB.
	Argon2Time, Argon2Memory uint32
}

func (o *Options) kdfParams() (kdfParams, error) {
	kdf := KDFScrypt
	if o != nil && o.KDF != "" {
		kdf = o.KDF
	}
	params := kdfParams{V: keystoreFormatVersion, KDF: kdf}
	switch kdf {
	case KDFScrypt:
		params.N, params.R, params.P = scryptParamsDefault()
		if o == nil {
			break
		}
		if o.ScryptN > 0 {
			params.N = o.ScryptN
		}
		if o.ScryptR > 0 {
			params.R = o.ScryptR
		}
		if o.ScryptP > 0 {
			params.P = o.ScryptP
		}
	case KDFArgon2id:
		params.Time, params.Memory, params.Threads = argon2ParamsDefault()
		if o == nil {
			break
		}
		if o.Argon2Time > 0 {
			params.Time = o.Argon2Time
		}
		if o.Argon2Memory > 0 {
			params.Memory = o.Argon2Memory
		}
	default:
		return kdfParams{}, fmt.Errorf("store: unknown kdf %q", kdf)
	}
	return params, nil
}

// DB is a bbolt database whose records are sealed with a key derived from a
// passphrase.
type DB struct {
	path string
	bolt *bolt.DB
	aead cipher.AEAD
}

// Open opens (or creates) the database at path and unlocks it with
// passphrase.
func Open(path, passphrase string, opts *Options) (*DB, error) {
	boltOpts := &bolt.Options{Timeout: time.Second}
	if opts != nil && opts.Timeout > 0 {
		boltOpts.Timeout = opts.Timeout
	}
	bdb, err := bolt.Open(path, 0o600, boltOpts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db := &DB{path: path, bolt: bdb}
	if err := db.unlock(passphrase, opts); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database file.
func (db *DB) Close() error {
	if db.bolt == nil {
		return ErrClosed
	}
	err := db.bolt.Close()
	db.bolt = nil
	db.aead = nil
	return err
}

// Path returns the file backing the database.
func (db *DB) Path() string { return db.path }

func (db *DB) unlock(passphrase string, opts *Options) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		for _, name := range [][]byte{bucketSessions, bucketBackup} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		raw := meta.Get(metaKDF)
		if raw == nil {
			return db.initialise(meta, passphrase, opts)
		}

		var params kdfParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return fmt.Errorf("read kdf params: %w", err)
		}
		if params.V > keystoreFormatVersion {
			return fmt.Errorf("unsupported keystore version %d", params.V)
		}
		aead, err := deriveAEAD(passphrase, params)
		if err != nil {
			return err
		}
		db.aead = aead

		pt, err := db.open(bucketMeta, metaCheck, meta.Get(metaCheck))
		if err != nil {
			db.aead = nil
			return err
		}
		if string(pt) != checkPlaintext {
			db.aead = nil
			return ErrWrongPassphrase
		}
		return nil
	})
}

func (db *DB) initialise(meta *bolt.Bucket, passphrase string, opts *Options) error {
	params, err := opts.kdfParams()
	if err != nil {
		return err
	}
	params.Salt = make([]byte, 16)
	if _, err := rand.Read(params.Salt); err != nil {
		return err
	}
	aead, err := deriveAEAD(passphrase, params)
	if err != nil {
		return err
	}
	db.aead = aead

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	if err := meta.Put(metaKDF, raw); err != nil {
		return err
	}
	check, err := db.seal(bucketMeta, metaCheck, []byte(checkPlaintext))
	if err != nil {
		return err
	}
	return meta.Put(metaCheck, check)
}

func deriveAEAD(passphrase string, params kdfParams) (cipher.AEAD, error) {
	var key []byte
	switch params.KDF {
	case "", KDFScrypt:
		var err error
		key, err = scrypt.Key([]byte(passphrase), params.Salt, params.N, params.R, params.P, chacha20poly1305.KeySize)
		if err != nil {
			return nil, err
		}
	case KDFArgon2id:
		if params.Time == 0 || params.Memory == 0 || params.Threads == 0 {
			return nil, errors.New("store: bad argon2id parameters")
		}
		key = argon2.IDKey([]byte(passphrase), params.Salt, params.Time, params.Memory, params.Threads, chacha20poly1305.KeySize)
	default:
		return nil, fmt.Errorf("store: unknown kdf %q", params.KDF)
	}
	defer memzero.Zero(key)
	return chacha20poly1305.NewX(key)
}

// seal encrypts raw under the database key. The bucket and record key are
// bound as associated data, so a record cannot be moved to another slot.
func (db *DB) seal(bucket, key, raw []byte) ([]byte, error) {
	nonce := make([]byte, db.aead.NonceSize(), db.aead.NonceSize()+len(raw)+db.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return db.aead.Seal(nonce, nonce, raw, associatedData(bucket, key)), nil
}

func (db *DB) open(bucket, key, sealed []byte) ([]byte, error) {
	ns := db.aead.NonceSize()
	if len(sealed) < ns+db.aead.Overhead() {
		return nil, ErrWrongPassphrase
	}
	pt, err := db.aead.Open(nil, sealed[:ns], sealed[ns:], associatedData(bucket, key))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func associatedData(bucket, key []byte) []byte {
	ad := make([]byte, 0, len(bucket)+1+len(key))
	ad = append(ad, bucket...)
	ad = append(ad, 0)
	return append(ad, key...)
}

// putJSON seals the JSON form of v into bucket under key.
func (db *DB) putJSON(b *bolt.Bucket, bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	sealed, err := db.seal(bucket, key, raw)
	if err != nil {
		return err
	}
	return b.Put(key, sealed)
}

// getJSON opens the record at key and decodes it into out. A missing record
// reports false.
func (db *DB) getJSON(b *bolt.Bucket, bucket, key []byte, out any) (bool, error) {
	sealed := b.Get(key)
	if sealed == nil {
		return false, nil
	}
	raw, err := db.open(bucket, key, sealed)
	if err != nil {
		return false, err
	}
	defer memzero.Zero(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) update(fn func(*bolt.Tx) error) error {
	if db.bolt == nil {
		return ErrClosed
	}
	return db.bolt.Update(fn)
}

func (db *DB) view(fn func(*bolt.Tx) error) error {
	if db.bolt == nil {
		return ErrClosed
	}
	return db.bolt.View(fn)
}

// Exists reports whether a database file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// Tunables for argon2id key derivation.
func argon2ParamsDefault() (t, memory uint32, threads uint8) { return 1, 64 * 1024, 4 }
