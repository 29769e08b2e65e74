package httperror

import (
	"html"
	"net/http"
)

// WriteHTML writes statusCode with no-cache headers and an HTML body
// built from title and message (spec §7: "All error response bodies
// are HTML with no-cache headers and HTML-escape any user-supplied
// values"). title is HTML-escaped; message is written as-is, so
// callers run any user-supplied substrings through html.EscapeString
// (or EscapeArgs) before passing it.
func WriteHTML(w http.ResponseWriter, statusCode int, title, message string) {
	w.Header().Set("cache-control", "no-cache, no-store, must-revalidate")
	w.Header().Set("pragma", "no-cache")
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte("<html><head><title>" + html.EscapeString(title) +
		"</title></head><body><h1>" + html.EscapeString(title) + "</h1><p>" + message + "</p></body></html>"))
}

// EscapeArgs HTML-escapes every string argument, for use when building
// a message via fmt.Sprintf before passing it to WriteHTML.
func EscapeArgs(args ...string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = html.EscapeString(a)
	}
	return out
}
