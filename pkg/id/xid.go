package id

import (
	"github.com/rs/xid"
)

// GetXid generates a new globally unique, lexicographically sortable 20
// character identifier. Cheaper than a UUID and sortable by creation time,
// used for the display hub's per-connection IDs.
func GetXid() string {
	return xid.New().String()
}
