package pushio

import (
	"context"
	"sync"
	"testing"

	"nhooyr.io/websocket"
)

func TestEmitRequiresConnection(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:0", 0, 0)
	if err := ws.Emit(context.Background(), "submit-move", nil); err == nil {
		t.Fatalf("expected error emitting without a connection")
	}
}

// Emit runs concurrently with the reconnect path swapping the connection;
// both sides must agree on the lock guarding it.
func TestEmitSafeDuringConnSwap(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:0", 0, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = ws.Emit(context.Background(), "submit-move", map[string]int{"row": i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			ws.setConn(nil)
			ws.setState(WSStateConnected)
			_ = ws.closeConn(websocket.StatusNormalClosure, "swap")
			ws.setState(WSStateDisconnected)
		}
	}()
	wg.Wait()

	if got := ws.State(); got != WSStateDisconnected {
		t.Fatalf("expected disconnected after swaps, got %v", got)
	}
}
