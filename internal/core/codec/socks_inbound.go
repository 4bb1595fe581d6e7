package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// ReadSOCKS5Greeting consumes the client's greeting (VER, NMETHODS,
// METHODS[...]). The methods offered are ignored; the orchestrator always
// replies no-auth (spec.md §4.3).
func ReadSOCKS5Greeting(r *bufio.Reader) error {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return fmt.Errorf("read greeting header: %w", err)
	}
	if hdr[0] != 0x05 {
		return fmt.Errorf("unsupported SOCKS version %d in greeting", hdr[0])
	}
	if _, err := io.CopyN(io.Discard, r, int64(hdr[1])); err != nil {
		return fmt.Errorf("read greeting methods: %w", err)
	}
	return nil
}

// WriteSOCKS5GreetingReply always selects no-auth (method 0x00).
func WriteSOCKS5GreetingReply(w io.Writer) error {
	_, err := w.Write([]byte{0x05, 0x00})
	return err
}

// ReadSOCKS5Request parses the client's CONNECT request. cmd is returned
// even on an unsupported command so the caller can choose the right reply
// code; target is only valid when err == nil.
func ReadSOCKS5Request(r *bufio.Reader) (cmd byte, target Target, err error) {
	hdr := make([]byte, 4)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return 0, Target{}, fmt.Errorf("read request header: %w", err)
	}
	if hdr[0] != 0x05 {
		return 0, Target{}, fmt.Errorf("unsupported SOCKS version %d in request", hdr[0])
	}
	cmd = hdr[1]
	atyp := ATYP(hdr[3])

	var host string
	switch atyp {
	case ATYPIPv4:
		addr := make([]byte, 4)
		if _, err = io.ReadFull(r, addr); err != nil {
			return cmd, Target{}, fmt.Errorf("read IPv4 address: %w", err)
		}
		host = net.IP(addr).String()
	case ATYPDomain:
		lenBuf := make([]byte, 1)
		if _, err = io.ReadFull(r, lenBuf); err != nil {
			return cmd, Target{}, fmt.Errorf("read domain length: %w", err)
		}
		domain := make([]byte, lenBuf[0])
		if _, err = io.ReadFull(r, domain); err != nil {
			return cmd, Target{}, fmt.Errorf("read domain: %w", err)
		}
		host = string(domain)
	case ATYPIPv6:
		addr := make([]byte, 16)
		if _, err = io.ReadFull(r, addr); err != nil {
			return cmd, Target{}, fmt.Errorf("read IPv6 address: %w", err)
		}
		host = canonicalIPv6(net.IP(addr))
	default:
		return cmd, Target{}, fmt.Errorf("unsupported address type %d", atyp)
	}

	portBuf := make([]byte, 2)
	if _, err = io.ReadFull(r, portBuf); err != nil {
		return cmd, Target{}, fmt.Errorf("read port: %w", err)
	}

	return cmd, Target{Host: host, Port: binary.BigEndian.Uint16(portBuf), ATYP: atyp}, nil
}

// ReadSOCKS4Request parses a SOCKS4 or SOCKS4A CONNECT request:
// VER=4, CMD, PORT(2), IP(4), USERID\0, and for SOCKS4A a domain
// terminated by a null byte following the userid. A 0.0.0.x address
// (x != 0) marks the SOCKS4A variant (spec.md §4.3).
func ReadSOCKS4Request(r *bufio.Reader) (cmd byte, target Target, err error) {
	hdr := make([]byte, 8)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return 0, Target{}, fmt.Errorf("read SOCKS4 header: %w", err)
	}
	cmd = hdr[1]
	port := binary.BigEndian.Uint16(hdr[2:4])
	ip := hdr[4:8]

	if _, err = readNullTerminated(r); err != nil { // USERID
		return cmd, Target{}, fmt.Errorf("read SOCKS4 userid: %w", err)
	}

	isSocks4a := ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] != 0
	if isSocks4a {
		domain, derr := readNullTerminated(r)
		if derr != nil {
			return cmd, Target{}, fmt.Errorf("read SOCKS4A domain: %w", derr)
		}
		return cmd, Target{Host: string(domain), Port: port, ATYP: ATYPDomain}, nil
	}

	return cmd, Target{Host: net.IP(ip).String(), Port: port, ATYP: ATYPIPv4}, nil
}

// readNullTerminated reads up to and including a 0x00 delimiter and
// returns the bytes before it.
func readNullTerminated(r *bufio.Reader) ([]byte, error) {
	b, err := r.ReadBytes(0x00)
	if err != nil {
		return nil, err
	}
	return b[:len(b)-1], nil
}
