package gateway

import (
	"net/netip"
	"testing"

	"overlaycore/application"
)

type fakeSession struct{}

func (fakeSession) Send([]byte) error             { return nil }
func (fakeSession) Receive([]byte, []byte) error  { return nil }
func (fakeSession) SetCookie([]byte)              {}

func newTestGateway() *Gateway {
	return &Gateway{
		endpoints: newEndpointTable(),
		prefixes:  newPrefixTable(),
		upstream:  func([]byte) {},
	}
}

func TestConnectEndpoint_RejectsDuplicate(t *testing.T) {
	g := newTestGateway()
	ep := netip.MustParseAddrPort("127.0.0.1:9000")
	var s application.Session = fakeSession{}

	if _, err := g.ConnectEndpoint(ep, s); err != nil {
		t.Fatalf("first ConnectEndpoint: %v", err)
	}
	if _, err := g.ConnectEndpoint(ep, s); err == nil {
		t.Fatal("expected duplicate endpoint registration to fail")
	}
}

func TestDisconnectEndpoint_RemovesEntry(t *testing.T) {
	g := newTestGateway()
	ep := netip.MustParseAddrPort("127.0.0.1:9000")
	var s application.Session = fakeSession{}

	handle, err := g.ConnectEndpoint(ep, s)
	if err != nil {
		t.Fatalf("ConnectEndpoint: %v", err)
	}
	g.DisconnectEndpoint(handle)

	if _, ok := g.endpoints.get(ep); ok {
		t.Fatal("endpoint should be removed after disconnect")
	}
}

func TestPrefixTable_AddGetDelete(t *testing.T) {
	g := newTestGateway()
	var s application.Session = fakeSession{}

	handle, err := g.ConnectPrefix(0xFC00000000000001, s)
	if err != nil {
		t.Fatalf("ConnectPrefix: %v", err)
	}
	if _, ok := g.prefixes.get(0xFC00000000000001); !ok {
		t.Fatal("expected prefix to be registered")
	}

	g.DisconnectPrefix(handle)
	if _, ok := g.prefixes.get(0xFC00000000000001); ok {
		t.Fatal("expected prefix to be removed after disconnect")
	}
}

func TestDecrypted_InvokesUpstream(t *testing.T) {
	g := newTestGateway()
	var got []byte
	g.SetUpstream(func(buf []byte) { got = buf })

	g.Decrypted([]byte("plaintext"))
	if string(got) != "plaintext" {
		t.Fatalf("upstream got %q, want plaintext", got)
	}
}
