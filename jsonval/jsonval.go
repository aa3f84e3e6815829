// Package jsonval provides path resolution over Go's natural JSON value
// representation (the tree of any, map[string]any, []any, string, float64,
// bool, nil that encoding/json decodes into). This is the "single
// tagged-variant JSON value type shared between the Mapping Engine and the
// HTTP layer" called for in spec.md's design notes — encoding/json's own
// decoding target already is that variant, so the mapping engine and the
// HTTP boundary both just operate on any.
package jsonval

import (
	"fmt"
	"strconv"
	"strings"
)

// Absent is returned by Get when a path does not resolve to a value,
// distinguishing "present but null" from "missing".
type absentType struct{}

// Absent is the sentinel value representing a missing path resolution.
var Absent = absentType{}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absentType)
	return ok
}

// segment is one step of a parsed path: either a map key or an array index.
type segment struct {
	key      string
	index    int
	isIndex  bool
}

// ParsePath parses a dotted path with optional [n] array indices into
// segments, e.g. "value.metadata.phone_number_id" or "entry[0].changes[0].value".
func ParsePath(path string) []segment {
	var segs []segment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segs = append(segs, segment{key: part})
				}
				break
			}
			if open > 0 {
				segs = append(segs, segment{key: part[:open]})
			}
			close := strings.IndexByte(part[open:], ']')
			if close < 0 {
				// Malformed index syntax; treat the remainder as a literal key.
				segs = append(segs, segment{key: part[open:]})
				break
			}
			idxStr := part[open+1 : open+close]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				segs = append(segs, segment{key: part[open : open+close+1]})
				part = part[open+close+1:]
				continue
			}
			segs = append(segs, segment{index: idx, isIndex: true})
			part = part[open+close+1:]
			if part == "" {
				break
			}
		}
	}
	return segs
}

// Get resolves a dotted/indexed path against root. Missing segments or
// out-of-bounds indices yield Absent rather than an error — per spec.md
// §4.A, bad paths are data conditions, not failures.
func Get(root any, path string) any {
	segs := ParsePath(path)
	cur := root
	for _, seg := range segs {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return Absent
			}
			cur = arr[seg.index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return Absent
		}
		v, exists := obj[seg.key]
		if !exists {
			return Absent
		}
		cur = v
	}
	return cur
}

// Set writes value into root at the given dotted path, creating intermediate
// map[string]any objects as needed. root must be a map[string]any (or will
// be treated as the object to mutate); writing into an existing scalar
// overwrites it with a fresh object per spec.md §4.A step 5. Array index
// segments within a target path are not supported (targets are always
// object paths in this engine) and are treated as literal keys.
func Set(root map[string]any, path string, value any) {
	segs := ParsePath(path)
	if len(segs) == 0 {
		return
	}
	cur := root
	for i, seg := range segs {
		key := seg.key
		if seg.isIndex {
			key = strconv.Itoa(seg.index)
		}
		if i == len(segs)-1 {
			cur[key] = value
			return
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
}

// String renders a JSON value as its string form for template substitution:
// strings pass through verbatim, numbers/bools use their natural textual
// form, nil and Absent render as the empty string, and any other type falls
// back to fmt.Sprintf("%v", ...).
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case absentType:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
