package codec

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"socksrotate/internal/shared/errs"
)

func TestWriteHTTPConnectRequestWithAuth(t *testing.T) {
	var buf bytes.Buffer
	target := Target{Host: "example.com", Port: 443}
	if err := WriteHTTPConnectRequest(&buf, target, "alice", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "CONNECT example.com:443 HTTP/1.1\r\n") {
		t.Fatalf("unexpected request line: %q", out)
	}
	if !strings.Contains(out, "Proxy-Authorization: Basic ") {
		t.Fatalf("expected a Proxy-Authorization header, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Fatalf("request must end with a blank line, got %q", out)
	}
}

func TestWriteHTTPConnectRequestWithoutAuth(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTTPConnectRequest(&buf, Target{Host: "example.com", Port: 80}, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "Proxy-Authorization") {
		t.Fatal("no credentials were given, Proxy-Authorization must be absent")
	}
}

func TestReadHTTPConnectResponseSuccessWithTrailingBytes(t *testing.T) {
	raw := "HTTP/1.1 200 Connection Established\r\nProxy-Agent: test\r\n\r\nHELLO"
	br := bufio.NewReader(strings.NewReader(raw))
	trailing, err := ReadHTTPConnectResponse(br)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(trailing) != "HELLO" {
		t.Fatalf("trailing = %q, want HELLO", trailing)
	}
}

func TestReadHTTPConnectResponse407IsASentinelError(t *testing.T) {
	raw := "HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	_, err := ReadHTTPConnectResponse(br)
	if !errors.Is(err, ErrHTTPUpstreamAuthFailed) {
		t.Fatalf("got %v, want errors.Is match against ErrHTTPUpstreamAuthFailed", err)
	}
}

func TestReadHTTPConnectResponseGenericFailure(t *testing.T) {
	raw := "HTTP/1.1 502 Bad Gateway\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	if _, err := ReadHTTPConnectResponse(br); err == nil {
		t.Fatal("expected an error for a non-200/407 status")
	}
}

// infiniteHeaderReader never produces the CRLF terminator, simulating a
// misbehaving upstream that streams headers forever.
type infiniteHeaderReader struct {
	sentStatusLine bool
}

func (r *infiniteHeaderReader) Read(buf []byte) (int, error) {
	if !r.sentStatusLine {
		r.sentStatusLine = true
		n := copy(buf, "HTTP/1.1 200 OK\r\n")
		return n, nil
	}
	n := copy(buf, bytes.Repeat([]byte{'X'}, len(buf)))
	return n, nil
}

func TestReadHTTPConnectResponseBoundsRunawayHeaders(t *testing.T) {
	br := bufio.NewReader(&infiniteHeaderReader{})
	_, err := ReadHTTPConnectResponse(br)
	if err == nil {
		t.Fatal("expected an error once the header block exceeds the size bound")
	}
	if !errors.Is(err, errs.ErrResource) {
		t.Fatalf("got %v, want errors.Is match against errs.ErrResource", err)
	}
}
