package session

import (
	"net/netip"
	"sync"

	"overlaycore/application"
)

// fakeGateway is a hand-rolled application.Gateway test double: it records
// every Send and every routing-table mutation instead of touching a real
// socket, in the teacher's style of fakes over mocking frameworks.
type fakeGateway struct {
	mu sync.Mutex

	credentials application.Credentials

	sent []fakeSend

	connectedEndpoints    map[netip.AddrPort]application.Session
	disconnectedEndpoints []netip.AddrPort
	connectedPrefixes     map[uint64]application.Session
	disconnectedPrefixes  []uint64

	decrypted [][]byte
}

type fakeSend struct {
	buf      []byte
	endpoint netip.AddrPort
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		connectedEndpoints: make(map[netip.AddrPort]application.Session),
		connectedPrefixes:  make(map[uint64]application.Session),
	}
}

func (g *fakeGateway) Credentials() application.Credentials {
	return g.credentials
}

func (g *fakeGateway) Send(buf []byte, endpoint netip.AddrPort) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, fakeSend{buf: append([]byte(nil), buf...), endpoint: endpoint})
	return len(buf), nil
}

type fakeEndpointHandle struct{ ep netip.AddrPort }

func (fakeEndpointHandle) endpointHandle() {}

type fakePrefixHandle struct{ prefix uint64 }

func (fakePrefixHandle) prefixHandle() {}

func (g *fakeGateway) ConnectEndpoint(ep netip.AddrPort, s application.Session) (application.EndpointHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connectedEndpoints[ep] = s
	return fakeEndpointHandle{ep: ep}, nil
}

func (g *fakeGateway) ConnectPrefix(prefix uint64, s application.Session) (application.PrefixHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connectedPrefixes[prefix] = s
	return fakePrefixHandle{prefix: prefix}, nil
}

func (g *fakeGateway) DisconnectEndpoint(handle application.EndpointHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := handle.(fakeEndpointHandle); ok {
		delete(g.connectedEndpoints, h.ep)
		g.disconnectedEndpoints = append(g.disconnectedEndpoints, h.ep)
	}
}

func (g *fakeGateway) DisconnectPrefix(handle application.PrefixHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := handle.(fakePrefixHandle); ok {
		delete(g.connectedPrefixes, h.prefix)
		g.disconnectedPrefixes = append(g.disconnectedPrefixes, h.prefix)
	}
}

func (g *fakeGateway) Decrypted(buf []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.decrypted = append(g.decrypted, append([]byte(nil), buf...))
}

func (g *fakeGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}
