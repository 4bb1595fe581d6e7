package codec

import (
	"bufio"
	"bytes"
	"testing"
)

func TestSOCKS5UpstreamGreetingNoCredentials(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSOCKS5UpstreamGreeting(&buf, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x05, 0x01, 0x00}) {
		t.Fatalf("got % x", buf.Bytes())
	}
}

func TestSOCKS5UpstreamGreetingWithCredentials(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSOCKS5UpstreamGreeting(&buf, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x05, 0x02, 0x00, 0x02}) {
		t.Fatalf("got % x", buf.Bytes())
	}
}

func TestReadSOCKS5UpstreamGreetingReplyNoAuth(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{0x05, 0x00}))
	needsAuth, err := ReadSOCKS5UpstreamGreetingReply(br, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if needsAuth {
		t.Fatal("method 0x00 must not require auth")
	}
}

func TestReadSOCKS5UpstreamGreetingReplyRequiresAuth(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{0x05, 0x02}))
	needsAuth, err := ReadSOCKS5UpstreamGreetingReply(br, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !needsAuth {
		t.Fatal("method 0x02 must require the auth subnegotiation")
	}
}

func TestReadSOCKS5UpstreamGreetingReplyRejectsUnofferedMethod(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{0x05, 0x02}))
	if _, err := ReadSOCKS5UpstreamGreetingReply(br, false); err == nil {
		t.Fatal("upstream selected user/pass auth we never offered, expected an error")
	}
}

func TestSOCKS5UpstreamAuthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSOCKS5UpstreamAuth(&buf, "alice", "hunter2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x01, 5, 'a', 'l', 'i', 'c', 'e', 7, 'h', 'u', 'n', 't', 'e', 'r', '2'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}

	br := bufio.NewReader(bytes.NewReader([]byte{0x01, 0x00}))
	if err := ReadSOCKS5UpstreamAuthReply(br); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadSOCKS5UpstreamAuthReplyRejected(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte{0x01, 0x01}))
	if err := ReadSOCKS5UpstreamAuthReply(br); err == nil {
		t.Fatal("expected an error for a nonzero auth status")
	}
}

func TestWriteSOCKS5UpstreamRequestIPv4(t *testing.T) {
	var buf bytes.Buffer
	target := Target{Host: "93.184.216.34", Port: 80, ATYP: ATYPIPv4}
	if err := WriteSOCKS5UpstreamRequest(&buf, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x05, 0x01, 0x00, byte(ATYPIPv4), 93, 184, 216, 34, 0x00, 0x50}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x, want % x", buf.Bytes(), want)
	}
}

func TestWriteSOCKS5UpstreamRequestDomain(t *testing.T) {
	var buf bytes.Buffer
	target := Target{Host: "example.com", Port: 443, ATYP: ATYPDomain}
	if err := WriteSOCKS5UpstreamRequest(&buf, target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := buf.Bytes()
	if got[0] != 0x05 || got[3] != byte(ATYPDomain) || got[4] != byte(len("example.com")) {
		t.Fatalf("got % x", got)
	}
}

func TestReadSOCKS5UpstreamReplySuccessWithTrailingBytes(t *testing.T) {
	reply := []byte{0x05, Rep5Succeeded, 0x00, byte(ATYPIPv4), 0, 0, 0, 0, 0, 0}
	reply = append(reply, []byte("tunneled")...)
	br := bufio.NewReader(bytes.NewReader(reply))
	rep, trailing, err := ReadSOCKS5UpstreamReply(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != Rep5Succeeded {
		t.Fatalf("rep = %d, want success", rep)
	}
	if string(trailing) != "tunneled" {
		t.Fatalf("trailing = %q, want tunneled", trailing)
	}
}

func TestReadSOCKS5UpstreamReplyFailureCodePropagates(t *testing.T) {
	reply := []byte{0x05, Rep5ConnectionRefused, 0x00, byte(ATYPIPv4), 0, 0, 0, 0, 0, 0}
	br := bufio.NewReader(bytes.NewReader(reply))
	rep, _, err := ReadSOCKS5UpstreamReply(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != Rep5ConnectionRefused {
		t.Fatalf("rep = %d, want Rep5ConnectionRefused", rep)
	}
}
