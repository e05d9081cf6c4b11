package application

import "net/netip"

// Credentials bundles the material a Session needs to authenticate itself
// during the handshake: the local OpenPGP certificate (presented to the
// peer) plus a Noise priority/pattern string reserved for future cipher
// suite negotiation.
type Credentials struct {
	Certificate []byte
	Priority    string
}

// Gateway is the subsystem that owns credentials, performs the underlying
// UDP send, routes plaintext to upper layers, and maintains the endpoint and
// prefix routing tables a Session registers itself into.
//
// Gateway methods must never call back into the Session that invoked them
// while that Session's internal lock is held — Send is called from inside
// the Session's serialisation lock via the transport push hook, and a
// synchronous re-entrant call back into the same Session would deadlock.
type Gateway interface {
	// Credentials returns the local certificate and priority string used to
	// authenticate this node to new peers.
	Credentials() Credentials

	// Send transmits buf to endpoint over the underlying datagram socket.
	// Non-blocking: it must not wait for the peer.
	Send(buf []byte, endpoint netip.AddrPort) (int, error)

	// ConnectEndpoint registers session under endpoint in the endpoint
	// routing table, returning a handle used to deregister it later.
	ConnectEndpoint(endpoint netip.AddrPort, session Session) (EndpointHandle, error)

	// ConnectPrefix registers session under the peer's overlay prefix,
	// returning a handle used to deregister it later. Called once
	// verification succeeds.
	ConnectPrefix(prefix uint64, session Session) (PrefixHandle, error)

	// DisconnectEndpoint removes an endpoint routing table entry.
	DisconnectEndpoint(handle EndpointHandle)

	// DisconnectPrefix removes a prefix routing table entry.
	DisconnectPrefix(handle PrefixHandle)

	// Decrypted delivers a decrypted plaintext datagram upward.
	Decrypted(buf []byte)
}

// EndpointHandle and PrefixHandle are opaque tokens a Gateway hands back
// from Connect* so a Session can later deregister itself exactly once.
type EndpointHandle interface{ endpointHandle() }

type PrefixHandle interface{ prefixHandle() }
