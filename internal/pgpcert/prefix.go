package pgpcert

import "encoding/binary"

// overlayPrefixByte is forced into the leading byte of every derived
// prefix, marking it as belonging to the overlay's locally-assigned
// address range (RFC 4193-style fc00::/7 analogue, here truncated to a
// single leading byte of a 64-bit value).
const overlayPrefixByte = 0xFC

// Prefix derives the 64-bit overlay identity from a certificate
// fingerprint: bytes [4, 12) of the fingerprint, with the leading byte of
// the result overwritten with 0xFC. This is a hard compatibility
// constraint — it defines peer identity in the overlay routing table.
func Prefix(fingerprint []byte) (uint64, error) {
	if len(fingerprint) < 12 {
		return 0, errShortFingerprint(len(fingerprint))
	}
	var buf [8]byte
	copy(buf[:], fingerprint[4:12])
	buf[0] = overlayPrefixByte
	return binary.BigEndian.Uint64(buf[:]), nil
}

type errShortFingerprint int

func (e errShortFingerprint) Error() string {
	return "pgpcert: fingerprint too short to derive a prefix"
}
