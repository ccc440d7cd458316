// Package graph implements kore's property-graph and document-collection
// overlay (spec.md §4.10): fixed key encodings over the same KV store the
// LSM Engine already serves, document secondary indices, node/edge
// creation with dual-write edge records and property indices, ID-only
// traversal primitives, and an atomic Transaction buffer.
package graph

import "bytes"

// presence is the single non-zero marker byte stored at index keys; its
// value never matters, only its presence (a live key vs. a tombstone).
var presence = []byte{1}

const sep = ':'

func join(parts ...string) []byte {
	n := len(parts) - 1 // separators
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, sep)
		}
		buf = append(buf, p...)
	}
	return buf
}

// docKey returns the key for coll's document id: doc:<coll>:<id>.
func docKey(coll, id string) []byte { return join("doc", coll, id) }

// docPrefix returns the scan prefix for every document in coll, or (with
// idPrefix) every document whose id begins with idPrefix.
func docPrefix(coll, idPrefix string) []byte { return join("doc", coll, idPrefix) }

// secondaryIndexKey returns the key holding the comma-joined id list for one
// (coll, name, value) secondary index bucket: idx:<coll>:<name>:<value>.
func secondaryIndexKey(coll, name, value string) []byte { return join("idx", coll, name, value) }

// nodeKey returns the key for node id's document: g:v:<id>.
func nodeKey(id string) []byte { return join("g", "v", id) }

// nodeLabelIndexKey returns the presence-marker key for (label, id): g:idx:v:<label>:<id>.
func nodeLabelIndexKey(label, id string) []byte { return join("g", "idx", "v", label, id) }

// nodeLabelIndexPrefix returns the scan prefix for every node with label.
func nodeLabelIndexPrefix(label string) []byte { return join("g", "idx", "v", label, "") }

// nodePropIndexKey returns the presence-marker key for a labeled node
// property value: g:idx:v_prop:<label>:<key>:<val>:<id>.
func nodePropIndexKey(label, key, val, id string) []byte {
	return join("g", "idx", "v_prop", label, key, val, id)
}

// nodePropIndexPrefix returns the scan prefix for every node carrying
// property key=val under label.
func nodePropIndexPrefix(label, key, val string) []byte {
	return join("g", "idx", "v_prop", label, key, val, "")
}

// edgeOutKey returns the outbound edge record key: g:e:out:<src>:<type>:<dst>.
func edgeOutKey(src, typ, dst string) []byte { return join("g", "e", "out", src, typ, dst) }

// edgeOutPrefix returns the scan prefix for every outbound edge of type typ
// from src: g:e:out:<src>:<type>:.
func edgeOutPrefix(src, typ string) []byte { return join("g", "e", "out", src, typ, "") }

// edgeInKey returns the inbound edge record key: g:e:in:<dst>:<type>:<src>.
func edgeInKey(dst, typ, src string) []byte { return join("g", "e", "in", dst, typ, src) }

// edgeInPrefix returns the scan prefix for every inbound edge of type typ
// into dst: g:e:in:<dst>:<type>:.
func edgeInPrefix(dst, typ string) []byte { return join("g", "e", "in", dst, typ, "") }

// edgePropIndexKey returns the presence-marker key for an edge property
// value: g:idx:e_prop:<type>:<key>:<val>:<src>:<dst>.
func edgePropIndexKey(typ, key, val, src, dst string) []byte {
	return join("g", "idx", "e_prop", typ, key, val, src, dst)
}

// lastComponent returns the substring of key after its final ':', the
// pattern outbound_target_ids/inbound_source_ids use to extract an id from
// a scanned traversal key without deserializing anything.
func lastComponent(key []byte) string {
	if i := bytes.LastIndexByte(key, sep); i >= 0 {
		return string(key[i+1:])
	}
	return string(key)
}
