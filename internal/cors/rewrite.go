package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// corsResponseHeaders lists the headers ApplyToResponse owns and, when
// AllowResponseHeadersOverwrite is set, strips from the inbound
// upstream response before writing its own (spec §4.7 step 2: "the
// inbound upstream CORS headers are stripped before the rule's headers
// are applied").
var corsResponseHeaders = []string{
	HeaderACAO, HeaderACAC, HeaderACAM, HeaderACAH, HeaderACEH, HeaderACMA,
}

// ApplyToResponse rewrites header per the matched Rule and request
// Origin, per spec §4.7 step 2. It is a no-op if origin is empty (no
// CORS request in flight) or the rule forbids the origin.
func (r *Rule) ApplyToResponse(header http.Header, origin string) {
	if origin == "" || !r.AllowsOrigin(origin) {
		return
	}

	if r.AllowResponseHeadersOverwrite {
		for _, h := range corsResponseHeaders {
			header.Del(h)
		}
	}

	header.Set(HeaderACAO, origin)
	addVaryOrigin(header)

	if r.AllowCredentials {
		header.Set(HeaderACAC, "true")
	}
	if len(r.AllowedMethods) > 0 {
		header.Set(HeaderACAM, strings.Join(r.AllowedMethods, ","))
	}
	if len(r.AllowedHeaders) > 0 {
		header.Set(HeaderACAH, strings.Join(r.AllowedHeaders, ","))
	}
	if len(r.ExposedHeaders) > 0 {
		header.Set(HeaderACEH, strings.Join(r.ExposedHeaders, ","))
	}
	if r.MaxAge > 0 {
		header.Set(HeaderACMA, strconv.Itoa(r.MaxAge))
	}
}

func addVaryOrigin(header http.Header) {
	existing := header.Values(HeaderVary)
	for _, v := range existing {
		if v == HeaderOrigin {
			return
		}
	}
	header.Add(HeaderVary, HeaderOrigin)
}
