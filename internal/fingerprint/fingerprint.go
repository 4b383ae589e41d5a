// Package fingerprint builds the deterministic, order-insensitive request
// fingerprint described in spec §3/§4.4/§6.3: a cache key that changes iff
// something that changes the output changes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Options is an unordered set of recognized request options. Callers may
// build it from any source (query params, JSON body, struct fields); the
// map type already discards insertion order, which is what gives the
// fingerprint its order-independence.
type Options map[string]string

// Key formats the fingerprint as spec §6.3:
// {namespace?}:{version}:{hex(digest)}.
func Key(namespace, version, method, url string, options Options) string {
	digest := Digest(method, url, options)
	if namespace != "" {
		return namespace + ":" + version + ":" + digest
	}
	return version + ":" + digest
}

// Digest computes the collision-resistant hex digest of
// method || url || sorted(option=value; ...), independent of the order
// options were supplied in.
func Digest(method, url string, options Options) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('|')
	b.WriteString(url)
	b.WriteByte('|')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(options[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
