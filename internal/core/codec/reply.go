package codec

import "io"

// SOCKS5 REP codes (spec.md §4.3 "Reply emitters").
const (
	Rep5Succeeded            byte = 0x00
	Rep5GeneralFailure       byte = 0x01
	Rep5NotAllowed           byte = 0x02
	Rep5NetworkUnreachable   byte = 0x03
	Rep5HostUnreachable      byte = 0x04
	Rep5ConnectionRefused    byte = 0x05
	Rep5TTLExpired           byte = 0x06
	Rep5CommandNotSupported  byte = 0x07
	Rep5AddrTypeNotSupported byte = 0x08
)

// SOCKS4 reply codes.
const (
	Rep4Granted  byte = 0x5A
	Rep4Rejected byte = 0x5B
)

// WriteSOCKS5Reply writes the fixed 10-byte success/failure reply shape: VER,
// REP, RSV, ATYP=IPv4, then a zeroed BND.ADDR/BND.PORT (spec.md §4.3:
// "Success/failure replies to the client always use a zero BND.ADDR/
// BND.PORT, ATYP=IPv4").
func WriteSOCKS5Reply(w io.Writer, rep byte) error {
	buf := [10]byte{0x05, rep, 0x00, byte(ATYPIPv4), 0, 0, 0, 0, 0, 0}
	_, err := w.Write(buf[:])
	return err
}

// WriteSOCKS4Reply writes the 8-byte SOCKS4 reply: VER=0, REP, then a
// zeroed port+address.
func WriteSOCKS4Reply(w io.Writer, rep byte) error {
	buf := [8]byte{0x00, rep, 0, 0, 0, 0, 0, 0}
	_, err := w.Write(buf[:])
	return err
}
