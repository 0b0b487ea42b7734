package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// EncryptedStore encrypts blobs on the way into an inner store and decrypts
// them on the way out. Writes only need the public key; reads fail with
// ErrLocked until Unlock is called.
type EncryptedStore struct {
	inner     dms.BlobStore
	encryptor dms.Encryptor

	mu  sync.RWMutex
	dec dms.DecryptionContext
}

// NewEncryptedStore wraps inner.
func NewEncryptedStore(inner dms.BlobStore, encryptor dms.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, encryptor: encryptor}
}

// Unlock enables reads with an unlocked private key.
func (s *EncryptedStore) Unlock(dec dms.DecryptionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dec = dec
}

// Encryptor returns the encryptor used for writes.
func (s *EncryptedStore) Encryptor() dms.Encryptor { return s.encryptor }

func (s *EncryptedStore) Put(ctx context.Context, key id.ID, r io.Reader) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.encryptor.Encrypt(r, pw))
	}()
	err := s.inner.Put(ctx, key, pr)
	// Unblocks the encrypting goroutine if the inner store stopped reading.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return fmt.Errorf("storing encrypted blob: %w", err)
	}
	return nil
}

func (s *EncryptedStore) Get(ctx context.Context, key id.ID) (io.ReadCloser, error) {
	s.mu.RLock()
	dec := s.dec
	s.mu.RUnlock()
	if dec == nil {
		return nil, ErrLocked
	}

	src, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	go func() {
		defer src.Close()
		pw.CloseWithError(dec.Decrypt(src, pw))
	}()
	return pr, nil
}

// Link reuses the ciphertext: both keys decrypt with the same identity.
func (s *EncryptedStore) Link(ctx context.Context, from, to id.ID) error {
	return s.inner.Link(ctx, from, to)
}

func (s *EncryptedStore) Remove(ctx context.Context, key id.ID) error {
	return s.inner.Remove(ctx, key)
}

func (s *EncryptedStore) ParseKey(text string) (id.ID, error) { return s.inner.ParseKey(text) }

func (s *EncryptedStore) GenerateKey() id.ID { return s.inner.GenerateKey() }

// Compile-time check that EncryptedStore implements dms.BlobStore
var _ dms.BlobStore = (*EncryptedStore)(nil)
