// Package server owns the HTTP(S) listen sockets (spec §6): a
// preflight bind probe that surfaces EACCES/EADDRINUSE/EADDRNOTAVAIL
// as fatal startup errors before the real listener starts serving,
// grounded on the teacher's own *Server.Listen in
// caddyhttp/httpserver/server.go.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// TLSConfig carries the PEM-or-file inputs described in spec §6
// ("Certificate, key, optional chain... Inputs are either PEM
// contents or filenames relative to a TLS base directory"). Only
// file-based loading is implemented; PEM-content detection by header
// prefix is the caller's job before populating CertFile/KeyFile.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Probe performs the preflight bind-and-immediately-close check
// described in spec §6, so a misconfigured port is reported as a
// fatal startup error instead of surfacing later as an opaque failure
// once the real *http.Server starts Serve.
func Probe(network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("server: %s is already in use: %w", addr, err)
		}
		if errors.Is(err, syscall.EACCES) {
			return fmt.Errorf("server: insufficient permission to bind %s: %w", addr, err)
		}
		if errors.Is(err, syscall.EADDRNOTAVAIL) {
			return fmt.Errorf("server: %s is not a local address: %w", addr, err)
		}
		return fmt.Errorf("server: failed to bind %s: %w", addr, err)
	}
	return ln.Close()
}

// Serve builds an *http.Server for handler bound to addr, probes the
// address first, then serves until ctx is cancelled, performing a
// graceful shutdown with shutdownGrace once it is.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownGrace time.Duration) error {
	if err := Probe("tcp", addr); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ServeTLS is Serve's counterpart for the optional HTTPS listener
// (spec §6 "optionally, one HTTPS listener").
func ServeTLS(ctx context.Context, addr string, handler http.Handler, cfg TLSConfig, shutdownGrace time.Duration) error {
	if err := Probe("tcp", addr); err != nil {
		return err
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("server: loading TLS certificate: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServeTLS("", "")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
