// Package keystore manages the GPG key material used to sign deb/rpm
// artifacts (spec.md §1's KeyStore external collaborator). The engine
// only ever asks for key bytes and a passphrase, by name; where those
// live — a file, an agent, a secrets manager — is this package's
// concern, not the build pipeline's.
package keystore

import (
	"io/ioutil"

	"github.com/pkg/errors"
)

// KeyStore resolves a named GPG key to its importable bytes plus the
// passphrase the build pipeline must pass to `gpg --import`.
type KeyStore interface {
	// Key returns the GPG key material and passphrase for name.
	Key(name string) (keyBytes []byte, passphrase string, err error)
}

// FileKeyStore reads key bytes from a local file and its passphrase
// from a second local file (or returns "" if none is configured),
// mirroring how the teacher's configs package reads credential
// material off disk rather than embedding it.
type FileKeyStore struct {
	KeyPath        string
	PassphrasePath string
}

// NewFileKeyStore returns a FileKeyStore.
func NewFileKeyStore(keyPath, passphrasePath string) *FileKeyStore {
	return &FileKeyStore{KeyPath: keyPath, PassphrasePath: passphrasePath}
}

// Key implements KeyStore. name is currently unused by FileKeyStore,
// which manages exactly one configured key; it is part of the
// interface so a multi-key store can be substituted later.
func (f *FileKeyStore) Key(name string) ([]byte, string, error) {
	keyBytes, err := ioutil.ReadFile(f.KeyPath)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed reading gpg key %q", f.KeyPath)
	}

	if f.PassphrasePath == "" {
		return keyBytes, "", nil
	}

	passphraseBytes, err := ioutil.ReadFile(f.PassphrasePath)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed reading gpg passphrase %q", f.PassphrasePath)
	}
	return keyBytes, string(passphraseBytes), nil
}
