package config

import (
	"strings"
)

// forbiddenSegments never address a config value.
var forbiddenSegments = map[string]struct{}{
	"__proto__":   {},
	"prototype":   {},
	"constructor": {},
}

// KeyPath addresses a value in the raw config tree, e.g. "gateway.auth.token".
type KeyPath []string

// ParseKeyPath splits a dotted key. Empty and forbidden segments are rejected.
func ParseKeyPath(raw string) (KeyPath, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	segs := strings.Split(raw, ".")
	for _, s := range segs {
		if s == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if _, bad := forbiddenSegments[s]; bad {
			return nil, &ConfigError{Message: "config path contains blocked key: " + s}
		}
	}
	return KeyPath(segs), nil
}

func (k KeyPath) String() string { return strings.Join(k, ".") }

// parent walks to the map holding the last segment. With create set, missing
// or non-map intermediates are replaced by empty maps.
func (k KeyPath) parent(root map[string]any, create bool) (map[string]any, bool) {
	node := root
	for _, seg := range k[:len(k)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	return node, true
}

// Lookup returns the value at k.
func (k KeyPath) Lookup(root map[string]any) (any, bool) {
	if len(k) == 0 {
		return nil, false
	}
	node, ok := k.parent(root, false)
	if !ok {
		return nil, false
	}
	v, ok := node[k[len(k)-1]]
	return v, ok
}

// Assign stores v at k, creating intermediate tables.
func (k KeyPath) Assign(root map[string]any, v any) {
	if len(k) == 0 {
		return
	}
	node, _ := k.parent(root, true)
	node[k[len(k)-1]] = v
}

// Delete removes the value at k and reports whether it existed.
func (k KeyPath) Delete(root map[string]any) bool {
	if _, ok := k.Lookup(root); !ok {
		return false
	}
	node, _ := k.parent(root, false)
	delete(node, k[len(k)-1])
	return true
}
