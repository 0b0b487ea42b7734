package encryption_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/DoctaneDMS/dms-service-sql/internal/blobstore"
	"github.com/DoctaneDMS/dms-service-sql/internal/config"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/encryption"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

const passphrase = "correct horse"

// encryptors returns every dms.Encryptor with keys ready for passphrase.
func encryptors(t *testing.T) map[string]dms.Encryptor {
	t.Helper()
	dir := t.TempDir()
	age := encryption.NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "dms.pub"),
		PrivateKeyPath: filepath.Join(dir, "dms.key"),
	})
	if err := age.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return map[string]dms.Encryptor{
		"age":  age,
		"test": &encryption.TestEncryptor{Passphrase: passphrase},
	}
}

func unlockedStore(t *testing.T, enc dms.Encryptor, inner dms.BlobStore) *blobstore.EncryptedStore {
	t.Helper()
	s := blobstore.NewEncryptedStore(inner, enc)
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	s.Unlock(dec)
	return s
}

func readAll(t *testing.T, s dms.BlobStore, key id.ID) ([]byte, error) {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func TestEncryptors_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	contents := map[string][]byte{
		"text":   []byte("quarterly report, draft 3"),
		"empty":  {},
		"binary": {0x00, 0xff, 0x01, 0xfe},
		"large":  bytes.Repeat([]byte("0123456789"), 50000),
	}

	for name, enc := range encryptors(t) {
		t.Run(name, func(t *testing.T) {
			inner := blobstore.NewMemoryStore()
			store := unlockedStore(t, enc, inner)

			for what, content := range contents {
				key := store.GenerateKey()
				if err := store.Put(ctx, key, bytes.NewReader(content)); err != nil {
					t.Fatalf("Put(%s) error = %v", what, err)
				}
				raw, err := readAll(t, inner, key)
				if err != nil {
					t.Fatalf("inner Get(%s) error = %v", what, err)
				}
				if bytes.Equal(raw, content) {
					t.Errorf("inner store holds %s as plaintext", what)
				}
				got, err := readAll(t, store, key)
				if err != nil {
					t.Fatalf("Get(%s) error = %v", what, err)
				}
				if !bytes.Equal(got, content) {
					t.Errorf("Get(%s) returned %d bytes, want %d", what, len(got), len(content))
				}
			}
		})
	}
}

func TestEncryptors_LinkedVersionDecrypts(t *testing.T) {
	ctx := context.Background()
	for name, enc := range encryptors(t) {
		t.Run(name, func(t *testing.T) {
			store := unlockedStore(t, enc, blobstore.NewMemoryStore())
			v1, v2 := store.GenerateKey(), store.GenerateKey()
			if err := store.Put(ctx, v1, bytes.NewReader([]byte("unchanged"))); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := store.Link(ctx, v1, v2); err != nil {
				t.Fatalf("Link() error = %v", err)
			}
			got, err := readAll(t, store, v2)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != "unchanged" {
				t.Errorf("Get(linked) = %q, want unchanged", got)
			}
		})
	}
}

func TestEncryptors_LockedStore(t *testing.T) {
	ctx := context.Background()
	for name, enc := range encryptors(t) {
		t.Run(name, func(t *testing.T) {
			store := blobstore.NewEncryptedStore(blobstore.NewMemoryStore(), enc)
			key := store.GenerateKey()
			if err := store.Put(ctx, key, bytes.NewReader([]byte("sealed"))); err != nil {
				t.Fatalf("Put() without Unlock error = %v", err)
			}
			if _, err := store.Get(ctx, key); !errors.Is(err, blobstore.ErrLocked) {
				t.Errorf("Get() error = %v, want ErrLocked", err)
			}
			if _, err := enc.Unlock("battery staple"); !errors.Is(err, encryption.ErrWrongPassphrase) {
				t.Errorf("Unlock(wrong) error = %v, want ErrWrongPassphrase", err)
			}
		})
	}
}

func TestEncryptors_ForeignBlob(t *testing.T) {
	ctx := context.Background()
	for name, enc := range encryptors(t) {
		t.Run(name, func(t *testing.T) {
			inner := blobstore.NewMemoryStore()
			store := unlockedStore(t, enc, inner)
			key := inner.GenerateKey()
			if err := inner.Put(ctx, key, bytes.NewReader([]byte("plain"))); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if _, err := readAll(t, store, key); err == nil {
				t.Error("Get() of a blob written without encryption error = nil, want error")
			}
		})
	}
}

// Only the test encryptor is deterministic; age seals every write with a
// fresh file key.
func TestEncryptors_Ciphertext(t *testing.T) {
	ctx := context.Background()
	wantSame := map[string]bool{"test": true, "age": false}
	for name, enc := range encryptors(t) {
		t.Run(name, func(t *testing.T) {
			inner := blobstore.NewMemoryStore()
			store := blobstore.NewEncryptedStore(inner, enc)
			a, b := store.GenerateKey(), store.GenerateKey()
			for _, key := range []id.ID{a, b} {
				if err := store.Put(ctx, key, bytes.NewReader([]byte("same content"))); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
			}
			rawA, _ := readAll(t, inner, a)
			rawB, _ := readAll(t, inner, b)
			if got := bytes.Equal(rawA, rawB); got != wantSame[name] {
				t.Errorf("identical ciphertext = %v, want %v", got, wantSame[name])
			}
		})
	}
}
