package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// WriteSOCKS5UpstreamGreeting offers no-auth, or no-auth plus
// username/password when the entry carries credentials (spec.md §4.3).
func WriteSOCKS5UpstreamGreeting(w io.Writer, hasCredentials bool) error {
	if hasCredentials {
		_, err := w.Write([]byte{0x05, 0x02, 0x00, 0x02})
		return err
	}
	_, err := w.Write([]byte{0x05, 0x01, 0x00})
	return err
}

// ReadSOCKS5UpstreamGreetingReply reads the upstream's method choice. A
// return of (true, nil) means the caller must now run the
// username/password subnegotiation.
func ReadSOCKS5UpstreamGreetingReply(r *bufio.Reader, offeredUserPass bool) (needsAuth bool, err error) {
	resp := make([]byte, 2)
	if _, err = io.ReadFull(r, resp); err != nil {
		return false, fmt.Errorf("read upstream greeting reply: %w", err)
	}
	if resp[0] != 0x05 {
		return false, fmt.Errorf("unexpected upstream SOCKS version %d in greeting reply", resp[0])
	}
	switch resp[1] {
	case 0x00:
		return false, nil
	case 0x02:
		if !offeredUserPass {
			return false, fmt.Errorf("upstream selected user/password auth we did not offer")
		}
		return true, nil
	default:
		return false, fmt.Errorf("upstream rejected all offered auth methods (method=%d)", resp[1])
	}
}

// WriteSOCKS5UpstreamAuth performs the username/password subnegotiation
// (RFC 1929): "01 ulen U plen P".
func WriteSOCKS5UpstreamAuth(w io.Writer, username, password string) error {
	buf := make([]byte, 0, 3+len(username)+len(password))
	buf = append(buf, 0x01, byte(len(username)))
	buf = append(buf, username...)
	buf = append(buf, byte(len(password)))
	buf = append(buf, password...)
	_, err := w.Write(buf)
	return err
}

// ReadSOCKS5UpstreamAuthReply expects "01 00"; anything else fails.
func ReadSOCKS5UpstreamAuthReply(r *bufio.Reader) error {
	resp := make([]byte, 2)
	if _, err := io.ReadFull(r, resp); err != nil {
		return fmt.Errorf("read upstream auth reply: %w", err)
	}
	if resp[0] != 0x01 || resp[1] != 0x00 {
		return fmt.Errorf("upstream authentication rejected (status=%d)", resp[1])
	}
	return nil
}

// WriteSOCKS5UpstreamRequest forwards "05 01 00 ATYP ..." using the
// client's own address type: IPv4 is re-emitted as dotted-quad bytes,
// IPv6 as the raw 16 bytes from canonical parsing, domain as
// length-prefixed bytes (spec.md §4.3).
func WriteSOCKS5UpstreamRequest(w io.Writer, target Target) error {
	buf := []byte{0x05, 0x01, 0x00, byte(target.ATYP)}

	switch target.ATYP {
	case ATYPIPv4:
		ip := net.ParseIP(target.Host).To4()
		if ip == nil {
			return fmt.Errorf("invalid IPv4 target host %q", target.Host)
		}
		buf = append(buf, ip...)
	case ATYPIPv6:
		ip := net.ParseIP(target.Host).To16()
		if ip == nil {
			return fmt.Errorf("invalid IPv6 target host %q", target.Host)
		}
		buf = append(buf, ip...)
	case ATYPDomain:
		if len(target.Host) > 255 {
			return fmt.Errorf("domain %q too long for SOCKS5 request", target.Host)
		}
		buf = append(buf, byte(len(target.Host)))
		buf = append(buf, target.Host...)
	default:
		return fmt.Errorf("unsupported address type %d", target.ATYP)
	}

	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, target.Port)
	buf = append(buf, portBuf...)

	_, err := w.Write(buf)
	return err
}

// ReadSOCKS5UpstreamReply reads "VER REP RSV ATYP ...", discards the bind
// address of the indicated length, and returns any bytes the upstream
// already queued after the reply so they can be forwarded to the client
// as the first tunneled chunk (spec.md §4.3/§5).
func ReadSOCKS5UpstreamReply(r *bufio.Reader) (rep byte, trailing []byte, err error) {
	hdr := make([]byte, 4)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return 0, nil, fmt.Errorf("read upstream reply header: %w", err)
	}
	if hdr[0] != 0x05 {
		return 0, nil, fmt.Errorf("unexpected upstream SOCKS version %d in reply", hdr[0])
	}
	rep = hdr[1]

	var addrLen int
	switch ATYP(hdr[3]) {
	case ATYPIPv4:
		addrLen = 4
	case ATYPIPv6:
		addrLen = 16
	case ATYPDomain:
		lenBuf := make([]byte, 1)
		if _, err = io.ReadFull(r, lenBuf); err != nil {
			return rep, nil, fmt.Errorf("read upstream reply domain length: %w", err)
		}
		addrLen = int(lenBuf[0])
	default:
		return rep, nil, fmt.Errorf("unsupported upstream reply address type %d", hdr[3])
	}

	if _, err = io.CopyN(io.Discard, r, int64(addrLen+2)); err != nil {
		return rep, nil, fmt.Errorf("discard upstream reply bind address: %w", err)
	}

	if rep != Rep5Succeeded {
		return rep, nil, nil
	}

	if n := r.Buffered(); n > 0 {
		trailing = make([]byte, n)
		if _, err = io.ReadFull(r, trailing); err != nil {
			return rep, nil, fmt.Errorf("drain upstream trailing bytes: %w", err)
		}
	}
	return rep, trailing, nil
}
