// Package idgen provides the short unique string IDs used for client-assigned
// ids of locally created events (spec.md §2 "Providers (leaf)"). Ids the
// parser synthesizes for inbound stanzas come from uuid, not from here.
package idgen

import "github.com/rs/xid"

// IdGen mints process-wide-unique short string identifiers.
type IdGen interface {
	New() string
}

// XidGen generates globally unique, lexicographically sortable ids using
// rs/xid, mirroring the id generator style already in use for correlation
// ids elsewhere in the stack.
type XidGen struct{}

func (XidGen) New() string { return xid.New().String() }
