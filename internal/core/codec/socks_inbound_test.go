package codec

import (
	"bufio"
	"bytes"
	"net"
	"testing"
)

func TestReadSOCKS5GreetingAndReply(t *testing.T) {
	input := []byte{0x05, 0x02, 0x00, 0x02}
	br := bufio.NewReader(bytes.NewReader(input))
	if err := ReadSOCKS5Greeting(br); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out bytes.Buffer
	if err := WriteSOCKS5GreetingReply(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{0x05, 0x00}) {
		t.Fatalf("got % x, want no-auth reply 05 00", out.Bytes())
	}
}

func TestReadSOCKS5GreetingRejectsWrongVersion(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{0x04, 0x00}))
	if err := ReadSOCKS5Greeting(br); err == nil {
		t.Fatal("expected an error for a non-SOCKS5 version byte")
	}
}

func TestReadSOCKS5RequestIPv4(t *testing.T) {
	req := []byte{0x05, 0x01, 0x00, byte(ATYPIPv4), 93, 184, 216, 34, 0x00, 0x50}
	cmd, target, err := ReadSOCKS5Request(bufio.NewReader(bytes.NewReader(req)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != 0x01 {
		t.Fatalf("cmd = %d, want 1", cmd)
	}
	if target.Host != "93.184.216.34" || target.Port != 80 || target.ATYP != ATYPIPv4 {
		t.Fatalf("got %+v", target)
	}
}

func TestReadSOCKS5RequestIPv6(t *testing.T) {
	ip := net.ParseIP("2001:db8::1").To16()
	req := append([]byte{0x05, 0x01, 0x00, byte(ATYPIPv6)}, ip...)
	req = append(req, 0x01, 0xbb) // port 443
	cmd, target, err := ReadSOCKS5Request(bufio.NewReader(bytes.NewReader(req)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != 0x01 || target.Host != "2001:db8::1" || target.Port != 443 {
		t.Fatalf("got %+v", target)
	}
}

func TestReadSOCKS5RequestDomainBoundaryLengths(t *testing.T) {
	for _, n := range []int{1, 63, 255} {
		domain := bytes.Repeat([]byte{'a'}, n)
		req := append([]byte{0x05, 0x01, 0x00, byte(ATYPDomain), byte(n)}, domain...)
		req = append(req, 0x00, 0x50)
		_, target, err := ReadSOCKS5Request(bufio.NewReader(bytes.NewReader(req)))
		if err != nil {
			t.Fatalf("domain length %d: unexpected error: %v", n, err)
		}
		if target.Host != string(domain) {
			t.Fatalf("domain length %d: got host %q", n, target.Host)
		}
	}
}

// partialReader trickles bytes one at a time to exercise io.ReadFull's
// retry behavior against a slow/fragmented client socket.
type partialReader struct {
	data []byte
}

func (p *partialReader) Read(buf []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, bytes.ErrTooLarge // any non-nil sentinel once exhausted
	}
	n := copy(buf[:1], p.data[:1])
	p.data = p.data[1:]
	return n, nil
}

func TestReadSOCKS5RequestToleratesByteAtATimeDelivery(t *testing.T) {
	req := []byte{0x05, 0x01, 0x00, byte(ATYPIPv4), 10, 0, 0, 1, 0x1f, 0x90}
	br := bufio.NewReader(&partialReader{data: req})
	cmd, target, err := ReadSOCKS5Request(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != 0x01 || target.Host != "10.0.0.1" || target.Port != 8080 {
		t.Fatalf("got %+v", target)
	}
}

func TestReadSOCKS4RequestPlainIPv4(t *testing.T) {
	req := []byte{0x04, 0x01, 0x00, 0x50, 93, 184, 216, 34, 'u', 's', 'r', 0x00}
	cmd, target, err := ReadSOCKS4Request(bufio.NewReader(bytes.NewReader(req)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != 0x01 || target.Host != "93.184.216.34" || target.Port != 80 || target.ATYP != ATYPIPv4 {
		t.Fatalf("got %+v", target)
	}
}

func TestReadSOCKS4ARequestWithDomain(t *testing.T) {
	req := []byte{0x04, 0x01, 0x00, 0x50, 0, 0, 0, 1, 'u', 's', 'r', 0x00}
	req = append(req, []byte("example.com")...)
	req = append(req, 0x00)
	cmd, target, err := ReadSOCKS4Request(bufio.NewReader(bytes.NewReader(req)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd != 0x01 || target.Host != "example.com" || target.Port != 80 || target.ATYP != ATYPDomain {
		t.Fatalf("got %+v", target)
	}
}
