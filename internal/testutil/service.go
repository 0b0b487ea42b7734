package testutil

import (
	"testing"

	"github.com/DoctaneDMS/dms-service-sql/internal/blobstore"
	"github.com/DoctaneDMS/dms-service-sql/internal/database"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/metrics"
)

// Harness bundles a service with the stores behind it.
type Harness struct {
	Service  *dms.Service
	Database *database.SQLiteDatabase
	Blobs    *blobstore.MemoryStore
	Clock    *StubClock
	Metrics  *metrics.Metrics
}

// NewHarness wires a service to an in-memory database and blob store.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	clock := FixedClock()
	ids := NewStubIDGenerator()
	m := metrics.New()
	db := NewTestDB(t, database.WithClock(clock), database.WithIDGenerator(ids), database.WithMetrics(m))
	blobs := blobstore.NewMemoryStore()

	return &Harness{
		Service:  dms.NewService(db, blobs, dms.NewNopLogger(), clock, ids, m),
		Database: db,
		Blobs:    blobs,
		Clock:    clock,
		Metrics:  m,
	}
}
