package codec

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"socksrotate/internal/shared/errs"
)

// readBoundedLine reads one CRLF-or-LF-terminated line, refusing to grow
// bufio.Reader's internal buffer past maxHTTPResponseHeaderBytes for a
// single line — ReadString('\n') alone has no such ceiling and will
// happily buffer forever against an upstream that never sends the
// delimiter.
func readBoundedLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			return string(line), nil
		}
		if err != bufio.ErrBufferFull {
			return "", err
		}
		if len(line) > maxHTTPResponseHeaderBytes {
			return "", fmt.Errorf("%w: upstream HTTP response line exceeded %d bytes", errs.ErrResource, maxHTTPResponseHeaderBytes)
		}
	}
}

const upstreamUserAgent = "socksrotate/1.0"

// maxHTTPResponseHeaderBytes bounds the status line plus header block a
// single upstream CONNECT response may occupy before it's treated as a
// resource-exhaustion attempt rather than a slow header write.
const maxHTTPResponseHeaderBytes = 16 * 1024

// ErrHTTPUpstreamAuthFailed marks a 407 response: a configuration
// mismatch, not a liveness failure, so the caller must not penalize the
// upstream for it (spec.md §7, §8 scenario 5).
var ErrHTTPUpstreamAuthFailed = errors.New("upstream HTTP proxy returned 407")

// WriteHTTPConnectRequest emits the fixed-shape CONNECT request spec.md
// §4.3 specifies, with an optional Basic Proxy-Authorization header.
func WriteHTTPConnectRequest(w io.Writer, target Target, username, password string) error {
	hostport := target.String()

	var b bytes.Buffer
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\n", hostport)
	fmt.Fprintf(&b, "Host: %s\r\n", hostport)
	if username != "" || password != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", auth)
	}
	b.WriteString("Connection: keep-alive\r\n")
	fmt.Fprintf(&b, "User-Agent: %s\r\n", upstreamUserAgent)
	b.WriteString("\r\n")

	_, err := w.Write(b.Bytes())
	return err
}

// ReadHTTPConnectResponse scans the status line and header block. "200"
// anywhere in the status line is success; "407" anywhere is an auth
// failure; anything else is a generic failure. The full "\r\n\r\n"
// terminator must arrive before a verdict is returned — readBoundedLine
// blocks on the underlying reader until it does, which is this module's
// non-blocking-wait equivalent of spec.md §4.3's "buffer partial bytes
// and wait for more". Bytes already queued after the terminator are
// returned as the first tunneled chunk.
func ReadHTTPConnectResponse(r *bufio.Reader) (trailing []byte, err error) {
	statusLine, err := readBoundedLine(r)
	if err != nil {
		return nil, fmt.Errorf("read upstream HTTP status line: %w", err)
	}

	headerBytes := len(statusLine)
	for {
		line, err := readBoundedLine(r)
		if err != nil {
			return nil, fmt.Errorf("read upstream HTTP headers: %w", err)
		}
		headerBytes += len(line)
		if headerBytes > maxHTTPResponseHeaderBytes {
			return nil, fmt.Errorf("%w: upstream HTTP response headers exceeded %d bytes", errs.ErrResource, maxHTTPResponseHeaderBytes)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	switch {
	case strings.Contains(statusLine, "407"):
		return nil, ErrHTTPUpstreamAuthFailed
	case strings.Contains(statusLine, "200"):
		// success
	default:
		return nil, fmt.Errorf("upstream HTTP CONNECT failed: %s", strings.TrimSpace(statusLine))
	}

	if n := r.Buffered(); n > 0 {
		trailing = make([]byte, n)
		if _, err = io.ReadFull(r, trailing); err != nil {
			return nil, fmt.Errorf("drain upstream trailing bytes: %w", err)
		}
	}
	return trailing, nil
}
