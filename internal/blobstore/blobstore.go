// Package blobstore keeps document payloads. Blobs are keyed by document
// version id and written once; a new version that reuses content links the
// previous blob instead of copying it through the service.
package blobstore

import (
	"errors"
	"fmt"

	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// ErrNotFound is returned for a key with no blob.
var ErrNotFound = dms.ErrBlobNotFound

// ErrLocked is returned when reading an encrypted store that was not
// unlocked.
var ErrLocked = errors.New("blob store is locked")

func notFound(key id.ID) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

// idKeys gives a store random version ids as keys.
type idKeys struct{}

func (idKeys) ParseKey(text string) (id.ID, error) {
	key, err := id.Parse(text)
	if err != nil {
		return id.Root, fmt.Errorf("parsing blob key: %w", err)
	}
	return key, nil
}

func (idKeys) GenerateKey() id.ID { return id.New() }
