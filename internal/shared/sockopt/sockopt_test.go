package sockopt

import (
	"context"
	"net"
	"testing"
)

func TestControlListenerProducesAWorkingListener(t *testing.T) {
	lc := net.ListenConfig{Control: ControlListener}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ln.Close()

	if ln.Addr().(*net.TCPAddr).Port == 0 {
		t.Fatal("expected the listener to be bound to a real port")
	}
}

func TestControlDialProducesAWorkingConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ln.Close()

	dialer := net.Dialer{Control: ControlDial}
	conn, err := dialer.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()
}

func TestControlDialLargeBuffersProducesAWorkingConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ln.Close()

	dialer := net.Dialer{Control: ControlDialLargeBuffers}
	conn, err := dialer.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()
}
