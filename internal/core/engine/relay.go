package engine

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"socksrotate/internal/shared/errs"
)

// activityReader touches cs on every non-empty read, giving the idle
// reaper byte-level granularity without needing a callback from
// io.Copy itself.
type activityReader struct {
	io.Reader
	cs *ConnectionState
}

func (a activityReader) Read(p []byte) (int, error) {
	n, err := a.Reader.Read(p)
	if n > 0 {
		a.cs.Touch()
	}
	return n, err
}

// relay copies bytes bidirectionally until either side EOFs or
// errors, then closes both legs — the same two-goroutine
// io.Copy-plus-CloseWrite shape the teacher pack's forwarder uses for
// every relay kind, sized by the connection's BufferPair instead of
// io.Copy's default 32 KiB.
func (e *Engine) relay(cs *ConnectionState, clientReader *bufio.Reader, clientConn, upstream net.Conn) {
	bufSize := cs.Buffers.Capacity()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		buf := make([]byte, bufSize)
		if _, err := io.CopyBuffer(upstream, activityReader{clientReader, cs}, buf); err != nil {
			e.log.Debug().Str("conn", cs.ID).Err(fmt.Errorf("%w: client->upstream: %v", errs.ErrTransport, err)).Msg("relay leg closed")
		}
		if tcp, ok := upstream.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, bufSize)
		if _, err := io.CopyBuffer(clientConn, activityReader{upstream, cs}, buf); err != nil {
			e.log.Debug().Str("conn", cs.ID).Err(fmt.Errorf("%w: upstream->client: %v", errs.ErrTransport, err)).Msg("relay leg closed")
		}
		if tcp, ok := clientConn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
	}()

	wg.Wait()
}
