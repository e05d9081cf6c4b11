package noisecore

import "testing"

func handshakeToCompletion(t *testing.T, client, server *Engine) {
	t.Helper()
	for i := 0; i < 20 && (!client.HandshakeCompleted() || !server.HandshakeCompleted()); i++ {
		if !client.HandshakeCompleted() {
			if _, _, err := client.Handshake(); err != nil {
				t.Fatalf("client step: %v", err)
			}
		}
		if !server.HandshakeCompleted() {
			if _, _, err := server.Handshake(); err != nil {
				t.Fatalf("server step: %v", err)
			}
		}
	}
	if !client.HandshakeCompleted() || !server.HandshakeCompleted() {
		t.Fatal("handshake did not complete")
	}
}

func newCompletedPair(t *testing.T) (*Engine, *Engine) {
	t.Helper()
	c2s, s2c := &wire{}, &wire{}
	client, err := NewEngine(RoleClient, []byte("client-cert"), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server, err := NewEngine(RoleServer, []byte("server-cert"), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	client.SetTransport(s2c.pull, c2s.push)
	server.SetTransport(c2s.pull, s2c.push)
	handshakeToCompletion(t, client, server)
	return client, server
}

func TestSend_FragmentsAtDataMTU(t *testing.T) {
	client, server := newCompletedPair(t)
	client.SetDataMTU(64)
	server.SetDataMTU(64)

	plaintext := make([]byte, 200)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	if _, err := client.Send(plaintext); err != nil {
		t.Fatalf("send: %v", err)
	}

	dst := make([]byte, 64)
	var reassembled []byte
	for {
		status, n, err := server.Recv(dst)
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if status == RecordWouldBlock {
			break
		}
		if status != RecordData {
			t.Fatalf("unexpected status %v", status)
		}
		reassembled = append(reassembled, dst[:n]...)
	}

	if string(reassembled) != string(plaintext) {
		t.Fatalf("reassembled %d bytes, want %d matching bytes", len(reassembled), len(plaintext))
	}
}

func TestSendAlert_RoundTrips(t *testing.T) {
	client, server := newCompletedPair(t)

	if err := client.SendAlert(AlertCloseNotify); err != nil {
		t.Fatalf("send alert: %v", err)
	}

	dst := make([]byte, 64)
	status, n, err := server.Recv(dst)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if status != RecordAlert {
		t.Fatalf("status = %v, want RecordAlert", status)
	}
	if AlertType(n) != AlertCloseNotify {
		t.Fatalf("alert = %v, want AlertCloseNotify", AlertType(n))
	}
}

func TestRecv_ErrorsOnCorruptedCiphertext(t *testing.T) {
	c2s, s2c := &wire{}, &wire{}
	client, err := NewEngine(RoleClient, []byte("client-cert"), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	server, err := NewEngine(RoleServer, []byte("server-cert"), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	client.SetTransport(s2c.pull, c2s.push)
	server.SetTransport(c2s.pull, s2c.push)
	handshakeToCompletion(t, client, server)

	if err := client.SendHeartbeatPing(); err != nil {
		t.Fatalf("send heartbeat ping: %v", err)
	}
	// Flip a byte in the ciphertext the server is about to receive,
	// simulating in-transit corruption or an off-path forged datagram.
	msg := c2s.pending[0]
	msg[len(msg)-1] ^= 0xFF

	dst := make([]byte, 64)
	status, _, err := server.Recv(dst)
	if status != RecordError {
		t.Fatalf("status = %v, want RecordError", status)
	}
	if err == nil {
		t.Fatal("expected a decrypt error")
	}
}

func TestRecv_WouldBlockWhenEmpty(t *testing.T) {
	client, server := newCompletedPair(t)
	_ = client

	dst := make([]byte, 64)
	status, _, err := server.Recv(dst)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if status != RecordWouldBlock {
		t.Fatalf("status = %v, want RecordWouldBlock", status)
	}
}
