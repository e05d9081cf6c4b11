// Package gateway implements the concrete application.Gateway: a UDP
// transport plus the endpoint and prefix routing tables Sessions register
// themselves into. It is grounded on the teacher's
// infrastructure/network/udp/adapters/{client,server}_udp_adapter.go
// (deadline-free ReadMsgUDPAddrPort/WriteToUDPAddrPort against a raw
// *net.UDPConn) and infrastructure/tunnel/session's ConcurrentRepository
// pattern for the routing tables themselves.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"overlaycore/application"
	"overlaycore/application/cert"
	"overlaycore/application/logging"
	"overlaycore/session"
)

const maxDatagramSize = 8192

// Gateway is the UDP-backed application.Gateway implementation. It owns the
// socket, the local credentials, the verification policy, and both routing
// tables.
type Gateway struct {
	conn        *net.UDPConn
	credentials application.Credentials
	policy      *cert.Policy
	keyring     cert.Keyring
	keyserver   cert.KeyserverClient
	logger      logging.Logger

	endpoints *endpointTable
	prefixes  *prefixTable

	upstream func([]byte)
}

// New binds a UDP socket at listenAddr and returns a ready Gateway.
func New(listenAddr netip.AddrPort, credentials application.Credentials, policy *cert.Policy, keyring cert.Keyring, keyserver cert.KeyserverClient, logger logging.Logger) (*Gateway, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(listenAddr))
	if err != nil {
		return nil, fmt.Errorf("gateway: listen %s: %w", listenAddr, err)
	}
	return &Gateway{
		conn:        conn,
		credentials: credentials,
		policy:      policy,
		keyring:     keyring,
		keyserver:   keyserver,
		logger:      logger,
		endpoints:   newEndpointTable(),
		prefixes:    newPrefixTable(),
		upstream:    func([]byte) {},
	}, nil
}

// SetUpstream installs the callback invoked by Decrypted. Wiring it is the
// caller's (cmd/overlaycore-gatewayd's) responsibility; the Gateway has no
// opinion on what sits above it, per spec §1's scope boundary.
func (g *Gateway) SetUpstream(fn func([]byte)) {
	g.upstream = fn
}

// Credentials implements application.Gateway.
func (g *Gateway) Credentials() application.Credentials {
	return g.credentials
}

// Send implements application.Gateway: a single non-blocking UDP write.
func (g *Gateway) Send(buf []byte, endpoint netip.AddrPort) (int, error) {
	return g.conn.WriteToUDPAddrPort(buf, endpoint)
}

// ConnectEndpoint implements application.Gateway.
func (g *Gateway) ConnectEndpoint(endpoint netip.AddrPort, s application.Session) (application.EndpointHandle, error) {
	if _, exists := g.endpoints.get(endpoint); exists {
		return nil, errDuplicateEndpoint
	}
	g.endpoints.add(endpoint, s)
	return endpointHandle{ep: endpoint}, nil
}

// ConnectPrefix implements application.Gateway.
func (g *Gateway) ConnectPrefix(prefix uint64, s application.Session) (application.PrefixHandle, error) {
	g.prefixes.add(prefix, s)
	return prefixHandle{prefix: prefix}, nil
}

// DisconnectEndpoint implements application.Gateway.
func (g *Gateway) DisconnectEndpoint(handle application.EndpointHandle) {
	if h, ok := handle.(endpointHandle); ok {
		g.endpoints.delete(h.ep)
	}
}

// DisconnectPrefix implements application.Gateway.
func (g *Gateway) DisconnectPrefix(handle application.PrefixHandle) {
	if h, ok := handle.(prefixHandle); ok {
		g.prefixes.delete(h.prefix)
	}
}

// Decrypted implements application.Gateway: deliver plaintext upward.
func (g *Gateway) Decrypted(buf []byte) {
	g.upstream(buf)
}

// Serve reads inbound datagrams until ctx is cancelled, routing each to its
// Session by source endpoint, creating a new server-role Session on first
// contact from an unknown endpoint (spec §3's Lifecycle: "Server Sessions
// are created on first inbound datagram from an unknown endpoint").
func (g *Gateway) Serve(ctx context.Context) error {
	buf := make([]byte, maxDatagramSize)
	oob := make([]byte, 1024)
	// Wake a read blocked in ReadMsgUDPAddrPort once ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = g.conn.SetReadDeadline(time.Now()) })
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, _, from, err := g.conn.ReadMsgUDPAddrPort(buf, oob)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Printf("gateway: read failed: %v", err)
			continue
		}
		g.dispatch(append([]byte(nil), buf[:n]...), from)
	}
}

func (g *Gateway) dispatch(ciphertext []byte, from netip.AddrPort) {
	s, ok := g.endpoints.get(from)
	if !ok {
		deps := session.Deps{Gateway: g, Policy: g.policy, Keyring: g.keyring, Keyserver: g.keyserver, Logger: g.logger}
		newSession, err := session.NewServer(deps, from)
		if err != nil {
			g.logger.Printf("gateway: new server session for %s failed: %v", from, err)
			return
		}
		s = newSession
	}

	scratch := make([]byte, len(ciphertext)+64)
	if err := s.Receive(ciphertext, scratch); err != nil {
		g.logger.Printf("gateway: session receive from %s failed: %v", from, err)
	}
}

// Close releases the underlying socket.
func (g *Gateway) Close() error {
	return g.conn.Close()
}
