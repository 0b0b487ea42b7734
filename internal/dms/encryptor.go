package dms

import "io"

// Encryptor encrypts blob content with a public key and unlocks the matching
// private key for reads.
type Encryptor interface {
	// Setup generates a key pair, storing the public key in plaintext and the
	// private key encrypted with passphrase. Called by `dms keys init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. It fails on a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the life of
// a session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
