package dms

import (
	"time"

	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts id generation so tests are deterministic.
type IDGenerator interface {
	New() id.ID
}

// RandomIDs produces random ids.
type RandomIDs struct{}

func (RandomIDs) New() id.ID { return id.New() }
