// Package runid mints globally unique, timestamp-sortable run identifiers.
package runid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID string for the given time. ULIDs sort
// lexicographically by creation time, which makes run-scoped object keys
// list in chronological order.
func New(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t.UTC()), rand.Reader).String()
}

// Parse validates a run id and returns its embedded timestamp.
func Parse(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(strings.TrimSpace(id))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()).UTC(), nil
}
