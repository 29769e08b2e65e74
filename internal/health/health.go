// Package health implements the Health & Info Responder (spec §4.3):
// it answers the configured health path with an identifying payload
// and never reaches the Forwarder.
package health

import (
	"fmt"
	"net/http"
)

// Config carries the responder's identity and behavior flags.
type Config struct {
	Paths        []string
	Hostname     string
	LocalAddress string
	ServerName   string
	PoweredBy    string
	ServiceName  string

	ARCDeployMode bool
	NodeURL       string
}

// Matches reports whether path is one of the configured health paths,
// per spec §4.3 "default /_lb/_/health, and /_lb/_/checkhealth".
func (c Config) Matches(path string) bool {
	for _, p := range c.Paths {
		if p == path {
			return true
		}
	}
	return false
}

// Respond writes the health payload, per spec §4.3: HTTP 200 with
// identification headers and, in ARC-deploy mode, a plaintext body
// naming the node's URL.
func Respond(w http.ResponseWriter, cfg Config) {
	w.Header().Set("server", cfg.ServerName)
	w.Header().Set("x-powered-by", cfg.PoweredBy)
	w.Header().Set("x-lb-service", fmt.Sprintf("%s (%s)", cfg.Hostname, cfg.LocalAddress))

	if cfg.ARCDeployMode {
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "%s\n", cfg.NodeURL)
		return
	}

	w.WriteHeader(http.StatusOK)
}
