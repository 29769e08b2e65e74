// Package replicator implements the multicast configuration
// replicator of spec §4.8: a small IPv4 multicast peer that propagates
// settings-overlay writes across proxy replicas.
package replicator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mfdlabs/rbx-proxy/internal/settings"
)

// DefaultGroup and DefaultPort are the spec-mandated defaults.
const (
	DefaultGroup = "224.0.0.3"
	DefaultPort  = 5000
)

// message is the wire format of spec §4.8: a JSON object
// {environment, key, value, hostname}. Value is a *string so that
// "undefined/absent" (spec's removal trigger) is distinguishable from
// the empty string.
type message struct {
	Environment string  `json:"environment"`
	Key         string  `json:"key"`
	Value       *string `json:"value,omitempty"`
	Hostname    string  `json:"hostname"`
}

// Replicator is the multicast peer. The zero value is not usable;
// construct one with New.
type Replicator struct {
	group    *net.UDPAddr
	hostname string
	registry *settings.Registry
	log      *zap.Logger

	mu   sync.Mutex
	conn *net.UDPConn
}

// New constructs a Replicator bound to groupAddr:port, which will
// write received overrides into registry. It does not start listening
// until Start is called.
func New(groupAddr string, port int, registry *settings.Registry, log *zap.Logger) (*Replicator, error) {
	if groupAddr == "" {
		groupAddr = DefaultGroup
	}
	if port == 0 {
		port = DefaultPort
	}
	if log == nil {
		log = zap.NewNop()
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", groupAddr, port))
	if err != nil {
		return nil, fmt.Errorf("replicator: resolving group address: %w", err)
	}
	return &Replicator{
		group:    addr,
		hostname: hostname,
		registry: registry,
		log:      log,
	}, nil
}

// Start binds the UDP socket, joins the multicast group, and begins
// receiving in a background goroutine. The socket's broadcast option
// is not set; sends go only to the multicast group. Errors after
// Start has returned successfully (i.e. during receive) are logged and
// swallowed per spec §4.8 "Replication is best-effort".
func (r *Replicator) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return errors.New("replicator: already started")
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, r.group)
	if err != nil {
		return fmt.Errorf("replicator: joining multicast group: %w", err)
	}
	conn.SetReadBuffer(1 << 16)
	r.conn = conn
	go r.receiveLoop(conn)
	return nil
}

// Stop closes the socket immediately.
func (r *Replicator) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// StopAfter schedules a hard close after d, for callers that want a
// grace period during which in-flight sends can complete.
func (r *Replicator) StopAfter(d time.Duration) {
	time.AfterFunc(d, func() {
		if err := r.Stop(); err != nil {
			r.log.Warn("replicator: error during scheduled stop", zap.Error(err))
		}
	})
}

// Send broadcasts an override (or, if value is nil, a removal) for key
// in environment. Delivery failures are swallowed and logged, per
// spec's best-effort replication contract.
func (r *Replicator) Send(environment, key string, value *string) {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		r.log.Warn("replicator: send requires started state; dropping", zap.String("key", key))
		return
	}
	msg := message{Environment: environment, Key: key, Value: value, Hostname: r.hostname}
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Warn("replicator: failed to encode message", zap.Error(err))
		return
	}
	if _, err := conn.WriteToUDP(payload, r.group); err != nil {
		r.log.Warn("replicator: failed to send datagram", zap.Error(err))
	}
}

func (r *Replicator) receiveLoop(conn *net.UDPConn) {
	buf := make([]byte, 65535)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			// socket closed (Stop called) or transient read error; either
			// way this is swallowed per the best-effort contract.
			return
		}
		r.handle(buf[:n])
	}
}

func (r *Replicator) handle(payload []byte) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.log.Debug("replicator: dropping malformed datagram", zap.Error(err))
		return
	}
	if msg.Hostname == r.hostname {
		return // our own broadcast, looped back
	}
	if msg.Value == nil {
		r.registry.Reset(msg.Key)
		return
	}
	if err := r.registry.Override(msg.Environment, msg.Key, *msg.Value); err != nil {
		r.log.Warn("replicator: rejecting override", zap.Error(err),
			zap.String("key", msg.Key), zap.String("environment", msg.Environment))
	}
}
