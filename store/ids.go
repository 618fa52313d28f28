package store

import (
	"time"

	"github.com/google/uuid"
)

// newId returns a collision-safe record id. Wall-clock derived ids are
// deliberately not used here: rapid successive creation within one
// clock tick must still yield distinct ids.
func newId() string {
	return uuid.NewString()
}

// clock lets tests pin time; production stores use the real clock.
type clock func() time.Time

func realClock() time.Time { return time.Now() }
