package gateway

import (
	"fmt"
	"net/netip"
	"sync"

	"overlaycore/application"
)

// endpointTable and prefixTable are the Gateway's two routing tables (spec
// §1, §3), each guarded exactly the way the teacher's
// infrastructure/tunnel/session.ConcurrentRepository guards its peer map: a
// single RWMutex around a plain Go map, read-locked for lookups.
type endpointTable struct {
	mu   sync.RWMutex
	byEP map[netip.AddrPort]application.Session
}

func newEndpointTable() *endpointTable {
	return &endpointTable{byEP: make(map[netip.AddrPort]application.Session)}
}

func (t *endpointTable) add(ep netip.AddrPort, s application.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byEP[ep] = s
}

func (t *endpointTable) get(ep netip.AddrPort) (application.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byEP[ep]
	return s, ok
}

func (t *endpointTable) delete(ep netip.AddrPort) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byEP, ep)
}

type prefixTable struct {
	mu    sync.RWMutex
	byPfx map[uint64]application.Session
}

func newPrefixTable() *prefixTable {
	return &prefixTable{byPfx: make(map[uint64]application.Session)}
}

func (t *prefixTable) add(prefix uint64, s application.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byPfx[prefix] = s
}

func (t *prefixTable) get(prefix uint64) (application.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byPfx[prefix]
	return s, ok
}

func (t *prefixTable) delete(prefix uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byPfx, prefix)
}

// endpointHandle and prefixHandle are the opaque tokens returned from
// ConnectEndpoint/ConnectPrefix, carrying just enough to deregister later.
type endpointHandle struct{ ep netip.AddrPort }

func (endpointHandle) endpointHandle() {}

type prefixHandle struct{ prefix uint64 }

func (prefixHandle) prefixHandle() {}

var errDuplicateEndpoint = fmt.Errorf("gateway: endpoint already registered")
