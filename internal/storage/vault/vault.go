// Package vault persists the store encrypted at rest.
//
// File layout: magic, 16-byte salt, 24-byte nonce, secretbox ciphertext of
// the JSON store. The key is either 32 random bytes kept in a key file
// (mode 0600) or derived from a passphrase with scrypt and the stored salt.
package vault

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	keySize   = 32
	saltSize  = 16
	nonceSize = 24

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var magic = []byte("CGV1")

// ErrDecrypt is returned by Load when the store exists but cannot be opened
// with the current key. The returned store is then an empty skeleton.
var ErrDecrypt = errors.New("store cannot be decrypted")

// Vault reads and writes the encrypted store file.
type Vault struct {
	path       string
	keyPath    string
	passphrase []byte
}

// Option configures a Vault.
type Option func(*Vault)

// WithPassphrase derives the key from passphrase instead of the key file.
func WithPassphrase(passphrase string) Option {
	return func(v *Vault) {
		v.passphrase = []byte(passphrase)
	}
}

// WithKeyFile overrides the key file location.
func WithKeyFile(path string) Option {
	return func(v *Vault) {
		v.keyPath = path
	}
}

// New creates a vault for the store at path. The key file defaults to
// path + ".key".
func New(path string, opts ...Option) (*Vault, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create store dir")
	}

	v := &Vault{path: path, keyPath: path + ".key"}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Path returns the store file location.
func (v *Vault) Path() string {
	return v.path
}

// Load reads the store. A missing file yields a fresh store. A file that
// cannot be decrypted or decoded is moved aside and a fresh store is
// returned together with an error wrapping ErrDecrypt.
func (v *Vault) Load() (*domain.Store, error) {
	blob, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewStore(), nil
		}
		return nil, errors.Wrap(err, "read store")
	}

	plain, err := v.open(blob)
	if err == nil {
		var store *domain.Store
		store, err = decodeStore(plain)
		if err == nil {
			return store, nil
		}
	}

	backup := v.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405")
	if rerr := os.Rename(v.path, backup); rerr != nil {
		backup = ""
	}
	return domain.NewStore(), errors.Wrapf(ErrDecrypt, "%v (previous file kept at %q)", err, backup)
}

// Save encrypts and writes store atomically via temp file.
func (v *Vault) Save(store *domain.Store) error {
	if store == nil {
		store = domain.NewStore()
	}
	store.Normalize()

	plain, err := json.Marshal(store)
	if err != nil {
		return errors.Wrap(err, "encode store")
	}

	blob, err := v.seal(plain)
	if err != nil {
		return err
	}

	return writeAtomic(v.path, blob, 0o600)
}

// ExportPlain writes store as indented plain JSON to path.
func ExportPlain(store *domain.Store, path string) error {
	payload, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode store")
	}
	return writeAtomic(path, payload, 0o600)
}

func (v *Vault) seal(plain []byte) ([]byte, error) {
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, errors.Wrap(err, "generate salt")
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	key, err := v.key(salt[:], true)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, magic...)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, key), nil
}

func (v *Vault) open(blob []byte) ([]byte, error) {
	header := len(magic) + saltSize + nonceSize
	if len(blob) < header+secretbox.Overhead || string(blob[:len(magic)]) != string(magic) {
		return nil, errors.New("unrecognized store format")
	}

	salt := blob[len(magic) : len(magic)+saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], blob[len(magic)+saltSize:header])

	key, err := v.key(salt, false)
	if err != nil {
		return nil, err
	}

	plain, ok := secretbox.Open(nil, blob[header:], &nonce, key)
	if !ok {
		return nil, errors.New("authentication failed")
	}
	return plain, nil
}

// key returns the encryption key. The key file is created only when create
// is set, so a missing key never silently replaces an existing one on read.
func (v *Vault) key(salt []byte, create bool) (*[keySize]byte, error) {
	var key [keySize]byte

	if len(v.passphrase) > 0 {
		derived, err := scrypt.Key(v.passphrase, salt, scryptN, scryptR, scryptP, keySize)
		if err != nil {
			return nil, errors.Wrap(err, "derive key")
		}
		copy(key[:], derived)
		return &key, nil
	}

	raw, err := os.ReadFile(v.keyPath)
	switch {
	case err == nil:
		if len(raw) != keySize {
			return nil, errors.Errorf("key file %s has %d bytes, want %d", v.keyPath, len(raw), keySize)
		}
		copy(key[:], raw)
		return &key, nil
	case errors.Is(err, os.ErrNotExist) && create:
		if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
			return nil, errors.Wrap(err, "generate key")
		}
		if err := writeAtomic(v.keyPath, key[:], 0o600); err != nil {
			return nil, errors.Wrap(err, "write key file")
		}
		return &key, nil
	default:
		return nil, errors.Wrap(err, "read key file")
	}
}

// legacyStore is the single-account layout with orders at the top level.
type legacyStore struct {
	domain.Store
	Orders           []domain.Order           `json:"orders"`
	TrackedAddresses *domain.TrackedAddresses `json:"tracked_addresses"`
}

func decodeStore(plain []byte) (*domain.Store, error) {
	var raw legacyStore
	if err := json.Unmarshal(plain, &raw); err != nil {
		return nil, errors.Wrap(err, "decode store")
	}

	store := raw.Store
	store.Normalize()

	if len(raw.Orders) > 0 || raw.TrackedAddresses != nil {
		acc := store.Account(domain.DefaultAccountName)
		if len(acc.Orders) == 0 {
			acc.Orders = raw.Orders
		}
		if raw.TrackedAddresses != nil && len(acc.TrackedAddresses.BTC)+len(acc.TrackedAddresses.ETH) == 0 {
			acc.TrackedAddresses = *raw.TrackedAddresses
		}
	}
	return &store, nil
}

func writeAtomic(path string, payload []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, perm); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "persist file")
	}
	return nil
}
