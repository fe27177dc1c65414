package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, so message
// ids double as a coarse send order in logs.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
