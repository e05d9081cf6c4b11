// Package session implements the secure datagram session core: the state
// machine that drives a handshake against one candidate endpoint, verifies
// the peer's OpenPGP certificate, maintains heartbeat liveness, and moves
// ciphertext and plaintext between the Gateway and the crypto engine.
//
// A Session is heap-owned by itself: the Gateway's endpoint and prefix
// routing tables are the only other holders of a *Session pointer, so in Go
// terms the Session simply stays alive for as long as those tables (or the
// grace timer below) reference it — there is no manual "delete this" to
// re-derive, only correct deregistration sequencing (see terminate/destroy
// in lifecycle.go).
package session

import (
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"overlaycore/application"
	"overlaycore/application/cert"
	"overlaycore/application/logging"
	"overlaycore/internal/noisecore"
)

const (
	handshakeRetransmitDelay = 500 * time.Millisecond
	handshakeHardDeadline    = 10 * time.Second
	heartbeatInterval        = 30 * time.Second
	heartbeatMaxMissed       = 3
	destructionGrace         = 3 * time.Second
	recordDataMTU            = 1280
	maxPullMessage           = 8192
)

// Session is one authenticated secure-datagram connection to a peer.
type Session struct {
	role    noisecore.Role
	gateway application.Gateway
	logger  logging.Logger

	policy    *cert.Policy
	keyring   cert.Keyring
	keyserver cert.KeyserverClient

	// mu serialises every entry into the crypto engine: handshake steps,
	// record send/recv, and cookie prestate installs (spec invariant 1).
	mu     sync.Mutex
	engine *noisecore.Engine

	primary    netip.AddrPort
	candidates []netip.AddrPort

	// pullBuf/pullAvailable implement the single-pending-datagram pull
	// buffer (spec invariant 2). Both are only touched while mu is held.
	pullBuf       []byte
	pullAvailable bool

	timerMu       sync.Mutex
	timer         *time.Timer
	deadlineTimer *time.Timer

	endpointHandle application.EndpointHandle

	prefixMu        sync.Mutex
	prefixHandle    application.PrefixHandle
	hasPrefixHandle bool

	handshakeCompleted atomic.Bool
	verified           atomic.Bool
	terminated         atomic.Bool
	alerted            atomic.Bool
	destroyOnce        sync.Once

	pingsMissed atomic.Int32

	// cookie holds a server-side anti-spoof prestate installed by SetCookie;
	// consumed (and cleared) by the next server-role handshake step in
	// handshake.go. Only touched while mu is held.
	cookie []byte

	// onSpawn, when set, is invoked with a successor's candidate set when
	// this Session's endpoint exhausts its handshake retries. Tests inject
	// a fake to observe fan-out without a real Gateway.
	onSpawn func(candidates []netip.AddrPort)
}

// Deps bundles the collaborators every constructor needs.
type Deps struct {
	Gateway   application.Gateway
	Policy    *cert.Policy
	Keyring   cert.Keyring
	Keyserver cert.KeyserverClient
	Logger    logging.Logger
}

// NewServer constructs a server-role Session for a remote endpoint that
// just sent the first datagram of an unknown connection. The handshake
// begins on the first call to Receive, not here.
func NewServer(deps Deps, remote netip.AddrPort) (*Session, error) {
	s := newSession(deps, noisecore.RoleServer, remote, nil)

	engine, err := noisecore.NewEngine(noisecore.RoleServer, deps.Gateway.Credentials().Certificate, s.verifyPeerCertificate)
	if err != nil {
		return nil, fmt.Errorf("session: new server engine: %w", err)
	}
	s.installEngine(engine)

	handle, err := deps.Gateway.ConnectEndpoint(remote, s)
	if err != nil {
		return nil, fmt.Errorf("session: register endpoint: %w", err)
	}
	s.endpointHandle = handle
	return s, nil
}

// NewClient constructs a client-role Session against the head of
// candidates, retaining the tail for endpoint fan-out, and immediately
// drives one handshake step plus arms the retry timer.
func NewClient(deps Deps, candidates []netip.AddrPort) (*Session, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("session: client requires at least one candidate endpoint")
	}
	primary := candidates[0]
	remaining := append([]netip.AddrPort(nil), candidates[1:]...)

	s := newSession(deps, noisecore.RoleClient, primary, remaining)

	engine, err := noisecore.NewEngine(noisecore.RoleClient, deps.Gateway.Credentials().Certificate, s.verifyPeerCertificate)
	if err != nil {
		return nil, fmt.Errorf("session: new client engine: %w", err)
	}
	s.installEngine(engine)

	handle, err := deps.Gateway.ConnectEndpoint(primary, s)
	if err != nil {
		return nil, fmt.Errorf("session: register endpoint: %w", err)
	}
	s.endpointHandle = handle

	s.mu.Lock()
	s.handshakeStepLocked()
	s.mu.Unlock()

	return s, nil
}

func newSession(deps Deps, role noisecore.Role, primary netip.AddrPort, candidates []netip.AddrPort) *Session {
	return &Session{
		role:       role,
		gateway:    deps.Gateway,
		logger:     deps.Logger,
		policy:     deps.Policy,
		keyring:    deps.Keyring,
		keyserver:  deps.Keyserver,
		primary:    primary,
		candidates: candidates,
		pullBuf:    make([]byte, maxPullMessage),
	}
}

func (s *Session) installEngine(engine *noisecore.Engine) {
	engine.SetTransport(s.pull, s.push)
	s.engine = engine
}

// SetCookie installs a DTLS cookie prestate for anti-spoof handshake resume.
// For a server-role Session the next handshake step consumes and clears it
// (see handshake.go); normally that is the first step, run when the
// client's first flight arrives, but a cookie set after the handshake has
// started and before it completes is stored and cleared by the next step
// the same way. A client-role Session stores the cookie and never consults
// it. A no-op once the handshake has completed or the Session has
// terminated.
func (s *Session) SetCookie(cookie []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshakeCompleted.Load() || s.terminated.Load() {
		return
	}
	s.cookie = append([]byte(nil), cookie...)
}
