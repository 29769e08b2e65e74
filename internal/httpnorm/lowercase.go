// Package httpnorm holds small header-normalization helpers shared by
// the Request Envelope's inbound normalization and its response "end"
// hook (spec §4.1), kept in one place instead of duplicated inline.
package httpnorm

import (
	"net/http"
	"strings"
)

// Lowercase rewrites every header name in h to lowercase, in place.
// net/http canonicalizes header names on the wire, but the envelope's
// context bag and rule matching operate on the lowercase form, per
// spec §4.1 "Normalizes all header keys to lowercase."
func Lowercase(h http.Header) {
	for k, v := range h {
		lower := strings.ToLower(k)
		if lower == k {
			continue
		}
		delete(h, k)
		h[lower] = v
	}
}
