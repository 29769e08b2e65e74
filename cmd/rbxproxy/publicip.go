package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// newPublicIPFetcher builds a safety.PublicIPFetcher that GETs
// discoveryURL and parses the trimmed response body as an IP literal,
// per spec §4.5 "fetched lazily once per process via the configured
// public-IP discovery service". The returned closure is invoked at
// most once, by safety.Filter's sync.Once.
func newPublicIPFetcher(discoveryURL string) func() (netip.Addr, error) {
	return func() (netip.Addr, error) {
		if discoveryURL == "" {
			return netip.Addr{}, fmt.Errorf("publicip: no discovery URL configured")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("publicip: building request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("publicip: requesting %s: %w", discoveryURL, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
		if err != nil {
			return netip.Addr{}, fmt.Errorf("publicip: reading response: %w", err)
		}

		addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
		if err != nil {
			return netip.Addr{}, fmt.Errorf("publicip: parsing %q as an IP address: %w", string(body), err)
		}
		return addr, nil
	}
}
