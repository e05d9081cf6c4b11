package noisecore

// Direction mirrors a DTLS-style library's notion of which way a
// would-block handshake step is blocked: waiting for more inbound data, or
// waiting on a reply to data it already sent. Only the latter warrants a
// retry timer — the former is re-triggered by the next inbound datagram.
type Direction int

const (
	// PullPending means the engine is waiting for the next inbound
	// handshake message; no local timer is needed, the next call to
	// receive() will drive progress.
	PullPending Direction = iota
	// WritePending means the engine already sent its side of the current
	// flight and is waiting for a reply; a retry timer should re-invoke
	// Handshake to retransmit if no reply arrives in time.
	WritePending
)

// HandshakeStatus is the outcome of a single Handshake step.
type HandshakeStatus int

const (
	HandshakeWouldBlock HandshakeStatus = iota
	HandshakeComplete
	HandshakeError
)

// RecordStatus is the outcome of a single record-layer Recv.
type RecordStatus int

const (
	RecordWouldBlock RecordStatus = iota
	RecordData
	RecordHeartbeatPing
	RecordHeartbeatPong
	RecordAlert
	RecordClosed
	// RecordError is a decrypt/authentication failure: a record that parsed
	// as a datagram but failed AEAD verification, either corrupted in
	// transit or forged by an off-path attacker. Distinct from
	// RecordWouldBlock (no data present) because the session must
	// terminate on it rather than wait for the next datagram.
	RecordError
)

// AlertType is the certificate-verification alert sent to the peer before
// rejecting its handshake, per the verification callback's error taxonomy.
type AlertType int

const (
	AlertNone AlertType = iota
	AlertUnsupportedCertificate
	AlertBadCertificate
	AlertCertificateRevoked
	AlertCertificateExpired
	AlertCertificateUnknown
	AlertCloseNotify
)

func (a AlertType) String() string {
	switch a {
	case AlertUnsupportedCertificate:
		return "unsupported-certificate"
	case AlertBadCertificate:
		return "bad-certificate"
	case AlertCertificateRevoked:
		return "certificate-revoked"
	case AlertCertificateExpired:
		return "certificate-expired"
	case AlertCertificateUnknown:
		return "certificate-unknown"
	case AlertCloseNotify:
		return "close-notify"
	default:
		return "none"
	}
}

// VerifyError is returned by a VerifyFunc to reject a peer certificate; it
// carries the alert the engine sends before failing the handshake.
type VerifyError struct {
	Alert AlertType
	Err   error
}

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return e.Alert.String() + ": " + e.Err.Error()
	}
	return e.Alert.String()
}

func (e *VerifyError) Unwrap() error { return e.Err }
