package app

import (
	"time"

	"code.cloudfoundry.org/clock"
)

// now reads the clock in UTC at the precision Postgres stores.
func now(c clock.Clock) time.Time {
	return c.Now().UTC().Truncate(time.Microsecond)
}
