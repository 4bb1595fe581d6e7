package codec

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteSOCKS4UpstreamRequestIPv4(t *testing.T) {
	var buf bytes.Buffer
	target := Target{Host: "93.184.216.34", Port: 80, ATYP: ATYPIPv4}
	if err := WriteSOCKS4UpstreamRequest(&buf, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x04, 0x01, 0x00, 0x50, 93, 184, 216, 34, 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
}

func TestWriteSOCKS4UpstreamRequestDomainUsesSOCKS4AMarker(t *testing.T) {
	var buf bytes.Buffer
	target := Target{Host: "example.com", Port: 443, ATYP: ATYPDomain}
	if err := WriteSOCKS4UpstreamRequest(&buf, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := buf.Bytes()
	if got[4] != 0 || got[5] != 0 || got[6] != 0 || got[7] != 1 {
		t.Fatalf("expected the 0.0.0.1 SOCKS4A marker, got % x", got[4:8])
	}
	if !bytes.HasSuffix(got, append([]byte("example.com"), 0x00)) {
		t.Fatalf("expected a null-terminated domain suffix, got % x", got)
	}
}

func TestWriteSOCKS4UpstreamRequestRejectsIPv6(t *testing.T) {
	target := Target{Host: "fe80::1", Port: 80, ATYP: ATYPIPv6}
	if err := WriteSOCKS4UpstreamRequest(&bytes.Buffer{}, target); err == nil {
		t.Fatal("SOCKS4 cannot address an IPv6 target, expected an error")
	}
}

func TestReadSOCKS4UpstreamReplyGrantedWithTrailingBytes(t *testing.T) {
	reply := []byte{0x00, Rep4Granted, 0, 0, 0, 0, 0, 0}
	reply = append(reply, []byte("tunneled")...)
	br := bufio.NewReader(bytes.NewReader(reply))
	rep, trailing, err := ReadSOCKS4UpstreamReply(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != Rep4Granted {
		t.Fatalf("rep = %d, want Rep4Granted", rep)
	}
	if string(trailing) != "tunneled" {
		t.Fatalf("trailing = %q, want tunneled", trailing)
	}
}

func TestReadSOCKS4UpstreamReplyRejected(t *testing.T) {
	reply := []byte{0x00, Rep4Rejected, 0, 0, 0, 0, 0, 0}
	br := bufio.NewReader(bytes.NewReader(reply))
	rep, _, err := ReadSOCKS4UpstreamReply(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != Rep4Rejected {
		t.Fatalf("rep = %d, want Rep4Rejected", rep)
	}
}
