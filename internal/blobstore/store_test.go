package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/encryption"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// testStores returns one fresh instance of every store that runs without
// network access.
func testStores(t *testing.T) map[string]dms.BlobStore {
	t.Helper()
	fs, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	enc := NewEncryptedStore(NewMemoryStore(), encryption.NewTestEncryptor())
	enc.Unlock(&encryption.TestDecryptionContext{})
	return map[string]dms.BlobStore{
		"memory":     NewMemoryStore(),
		"filesystem": fs,
		"encrypted":  enc,
		"s3":         NewS3StoreWithClient(newFakeS3(), "bucket", "blobs/"),
	}
}

func readBlob(t *testing.T, s dms.BlobStore, key id.ID) []byte {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	return data
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("put and get", func(t *testing.T) {
				key := id.New()
				if err := store.Put(ctx, key, bytes.NewReader([]byte("hello world"))); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				if got := readBlob(t, store, key); string(got) != "hello world" {
					t.Errorf("Get() = %q, want %q", got, "hello world")
				}
			})

			t.Run("empty blob", func(t *testing.T) {
				key := id.New()
				if err := store.Put(ctx, key, bytes.NewReader(nil)); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				if got := readBlob(t, store, key); len(got) != 0 {
					t.Errorf("Get() = %q, want empty", got)
				}
			})

			t.Run("put replaces", func(t *testing.T) {
				key := id.New()
				store.Put(ctx, key, bytes.NewReader([]byte("old")))
				if err := store.Put(ctx, key, bytes.NewReader([]byte("new"))); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				if got := readBlob(t, store, key); string(got) != "new" {
					t.Errorf("Get() = %q, want %q", got, "new")
				}
			})

			t.Run("missing key", func(t *testing.T) {
				_, err := store.Get(ctx, id.New())
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Get() error = %v, want ErrNotFound", err)
				}
			})

			t.Run("link", func(t *testing.T) {
				from, to := id.New(), id.New()
				if err := store.Put(ctx, from, bytes.NewReader([]byte("shared"))); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				if err := store.Link(ctx, from, to); err != nil {
					t.Fatalf("Link() error = %v", err)
				}
				if err := store.Remove(ctx, from); err != nil {
					t.Fatalf("Remove() error = %v", err)
				}
				if got := readBlob(t, store, to); string(got) != "shared" {
					t.Errorf("Get(linked) = %q, want %q", got, "shared")
				}
			})

			t.Run("link missing source", func(t *testing.T) {
				err := store.Link(ctx, id.New(), id.New())
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Link() error = %v, want ErrNotFound", err)
				}
			})

			t.Run("remove", func(t *testing.T) {
				key := id.New()
				store.Put(ctx, key, bytes.NewReader([]byte("gone")))
				if err := store.Remove(ctx, key); err != nil {
					t.Fatalf("Remove() error = %v", err)
				}
				if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get() after Remove error = %v, want ErrNotFound", err)
				}
				if err := store.Remove(ctx, key); !errors.Is(err, ErrNotFound) {
					t.Errorf("second Remove() error = %v, want ErrNotFound", err)
				}
			})

			t.Run("keys", func(t *testing.T) {
				a, b := store.GenerateKey(), store.GenerateKey()
				if a == b || a.IsRoot() {
					t.Errorf("GenerateKey() = %s, %s, want two distinct non-root keys", a, b)
				}
				got, err := store.ParseKey(a.String())
				if err != nil {
					t.Fatalf("ParseKey() error = %v", err)
				}
				if got != a {
					t.Errorf("ParseKey() = %s, want %s", got, a)
				}
				if _, err := store.ParseKey("not-a-key"); err == nil {
					t.Error("ParseKey(not-a-key) error = nil, want error")
				}
			})
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestFileSystemStore_FailedPutLeavesNothing(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	key := id.New()
	if err := s.Put(ctx, key, failingReader{}); err == nil {
		t.Fatal("Put() expected error")
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()

	t.Run("stores ciphertext", func(t *testing.T) {
		inner := NewMemoryStore()
		s := NewEncryptedStore(inner, encryption.NewTestEncryptor())
		key := id.New()
		if err := s.Put(ctx, key, bytes.NewReader([]byte("secret"))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if raw := readBlob(t, inner, key); bytes.Equal(raw, []byte("secret")) {
			t.Error("inner store holds plaintext")
		}
	})

	t.Run("locked", func(t *testing.T) {
		s := NewEncryptedStore(NewMemoryStore(), encryption.NewTestEncryptor())
		key := id.New()
		s.Put(ctx, key, bytes.NewReader([]byte("secret")))
		if _, err := s.Get(ctx, key); !errors.Is(err, ErrLocked) {
			t.Errorf("Get() error = %v, want ErrLocked", err)
		}
	})

	t.Run("failed read propagates", func(t *testing.T) {
		s := NewEncryptedStore(NewMemoryStore(), encryption.NewTestEncryptor())
		if err := s.Put(ctx, id.New(), failingReader{}); err == nil {
			t.Error("Put() expected error")
		}
	})
}
