package history

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Fingerprint computes the deterministic FNV-1a 32-bit hash over the data
// selected by mask. Nested maps are flattened to dot-separated key paths,
// and the selected keys are canonicalized lexicographically before hashing,
// so the same mask and data always produce the same hash independent of
// map-entry ordering.
//
// A nil or empty mask selects the whole flattened payload. A selector that
// matches no key contributes nothing.
func Fingerprint(data map[string]any, mask []string) uint32 {
	flat := flatten("", data)

	keys := make([]string, 0, len(flat))
	if len(mask) == 0 {
		for k := range flat {
			keys = append(keys, k)
		}
	} else {
		for _, sel := range mask {
			if _, ok := flat[sel]; ok {
				keys = append(keys, sel)
			}
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(flat[k])
	}

	h := fnv.New32a()
	h.Write([]byte(sb.String()))
	return h.Sum32()
}

// flatten reduces a nested payload to dot-separated leaf paths with string
// values. Non-map values are formatted with %v; slices count as leaves.
func flatten(prefix string, data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(path, nested) {
				out[nk] = nv
			}
			continue
		}
		out[path] = fmt.Sprintf("%v", v)
	}
	return out
}
