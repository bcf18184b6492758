// Package identity synthesizes stable record identities for appliance
// records that arrive without an id.
package identity

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes synthesized identities to this tool.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/crimson-sun/fortiwatch/record"))

// Batch assigns identities within one fetched batch. Records with identical
// content get distinct identities through their occurrence number, so two
// equal events in the same poll are both kept while the same event seen
// again by an overlapping poll maps to the same identity.
//
// The occurrence number counts equal content in arrival order. If the
// appliance reorders identical events between polls they still collapse
// correctly; if it drops an earlier duplicate, later ones shift by one.
type Batch struct {
	seen map[string]int
}

// NewBatch starts a fresh batch.
func NewBatch() *Batch {
	return &Batch{seen: make(map[string]int)}
}

// Synthesize returns a deterministic identity for the given content fields.
func (b *Batch) Synthesize(fields ...string) string {
	key := strings.Join(fields, "\x1f")
	n := b.seen[key]
	b.seen[key] = n + 1
	return uuid.NewSHA1(namespace, []byte(key+"\x1e"+strconv.Itoa(n))).String()
}
