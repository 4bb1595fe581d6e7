package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// WriteSOCKS4UpstreamRequest emits "04 01 PP PP IP IP IP IP 00" for an
// IPv4 target, or the SOCKS4A variant (IP=0.0.0.1, empty userid, then the
// null-terminated domain) when the client's request carried a domain
// (spec.md §4.3).
func WriteSOCKS4UpstreamRequest(w io.Writer, target Target) error {
	if target.ATYP == ATYPIPv6 {
		return fmt.Errorf("SOCKS4 upstream cannot address an IPv6 target %q", target.Host)
	}

	buf := []byte{0x04, 0x01}
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, target.Port)
	buf = append(buf, portBuf...)

	if target.ATYP == ATYPDomain {
		buf = append(buf, 0, 0, 0, 1) // 0.0.0.1 marks the SOCKS4A variant
		buf = append(buf, 0x00)       // empty userid, null-terminated
		buf = append(buf, target.Host...)
		buf = append(buf, 0x00)
	} else {
		ip := net.ParseIP(target.Host).To4()
		if ip == nil {
			return fmt.Errorf("SOCKS4 upstream requires an IPv4 target, got %q", target.Host)
		}
		buf = append(buf, ip...)
		buf = append(buf, 0x00) // empty userid
	}

	_, err := w.Write(buf)
	return err
}

// ReadSOCKS4UpstreamReply expects "00 5A ...", reading and discarding the
// fixed 6 trailing port+address bytes, and returns anything the upstream
// already queued after the reply.
func ReadSOCKS4UpstreamReply(r *bufio.Reader) (rep byte, trailing []byte, err error) {
	hdr := make([]byte, 8)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return 0, nil, fmt.Errorf("read SOCKS4 upstream reply: %w", err)
	}
	if hdr[0] != 0x00 {
		return 0, nil, fmt.Errorf("unexpected SOCKS4 upstream reply VER %d", hdr[0])
	}
	rep = hdr[1]
	if rep != Rep4Granted {
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
