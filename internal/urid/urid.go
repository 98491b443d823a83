// Package urid implements a bidirectional URI-to-integer mapping table, as
// used by LV2-style atom processors to agree on compact integer identifiers
// for well-known URIs without a coordination round-trip. Grounded on
// original_source/noisicaa/lv2/urid_mapper.h's Static/Dynamic/Proxy split.
package urid

import "sync"

// URID is the compact integer identifier for a URI.
type URID uint32

// firstDynamicURID is the first id handed out by the dynamic suffix; ids
// below it are reserved for the static, well-known prefix so every engine
// instance and every sidecar agree on them without coordination.
const firstDynamicURID URID = 1000

// staticPrefix is the closed set of well-known URIs assigned fixed, low
// integers. The list and ordering must never change across versions: doing
// so would silently renumber every peer's cached ids.
var staticPrefix = []string{
	"http://lv2plug.in/ns/ext/atom#Sequence",
	"http://lv2plug.in/ns/ext/atom#eventTransfer",
	"http://lv2plug.in/ns/ext/atom#Float",
	"http://lv2plug.in/ns/ext/atom#Int",
	"http://lv2plug.in/ns/ext/atom#frameTime",
	"http://lv2plug.in/ns/ext/midi#MidiEvent",
	"http://lv2plug.in/ns/ext/buf-size#minBlockLength",
	"http://lv2plug.in/ns/ext/buf-size#maxBlockLength",
	"http://lv2plug.in/ns/ext/buf-size#nominalBlockLength",
	"http://lv2plug.in/ns/ext/options#options",
}

// Table is a URI<->URID mapper. The zero value is not usable; construct one
// with New.
type Table struct {
	mu   sync.RWMutex
	fwd  map[string]URID
	back map[URID]string
	next URID
}

// New builds a table pre-seeded with the static prefix and ready to accept
// dynamic mappings starting at 1000.
func New() *Table {
	t := &Table{
		fwd:  make(map[string]URID, len(staticPrefix)*2),
		back: make(map[URID]string, len(staticPrefix)*2),
		next: firstDynamicURID,
	}
	for i, uri := range staticPrefix {
		id := URID(i + 1)
		t.fwd[uri] = id
		t.back[id] = uri
	}
	return t
}

// Map returns the URID for uri, assigning the next sequential dynamic id if
// this is the first time uri has been seen.
func (t *Table) Map(uri string) URID {
	t.mu.RLock()
	if id, ok := t.fwd[uri]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.fwd[uri]; ok {
		return id
	}
	id := t.next
	t.next++
	t.fwd[uri] = id
	t.back[id] = uri
	return id
}

// Unmap returns the URI previously assigned to id, or "" if id is unknown.
func (t *Table) Unmap(id URID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.back[id]
}

// Known reports whether uri has already been assigned an id.
func (t *Table) Known(uri string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.fwd[uri]
	return ok
}

// MapFunc is the callback signature a ProxyTable delegates unknown lookups
// to, matching the shape needed inside an out-of-process plugin host where
// URIDs must ultimately be resolved by the engine, not invented locally.
type MapFunc func(uri string) URID

// ProxyTable answers from its own static prefix and any uri it has already
// cached, but delegates genuinely new lookups to a remote Map callback —
// the shape a plugin host sidecar needs, since it cannot mint ids that the
// engine process wouldn't also agree on.
type ProxyTable struct {
	local *Table
	remap MapFunc
}

// NewProxy builds a ProxyTable that shares the same static prefix as New,
// but forwards first-sight lookups to remap instead of minting locally.
func NewProxy(remap MapFunc) *ProxyTable {
	return &ProxyTable{local: New(), remap: remap}
}

func (p *ProxyTable) Map(uri string) URID {
	if p.local.Known(uri) {
		return p.local.Map(uri)
	}
	id := p.remap(uri)
	p.local.mu.Lock()
	p.local.fwd[uri] = id
	p.local.back[id] = uri
	p.local.mu.Unlock()
	return id
}

func (p *ProxyTable) Unmap(id URID) string { return p.local.Unmap(id) }
