package input

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type captureTransport struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (c *captureTransport) SendInput(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *captureTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *captureTransport) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func TestMove_DebouncesToLastSample(t *testing.T) {
	primary := &captureTransport{}
	s := NewSender(primary, nil)

	// A burst well inside the debounce window collapses to one send.
	for i := 0; i < 100; i++ {
		s.Move(MouseMove{X: float64(i) / 100, Y: 0.5})
	}

	time.Sleep(5 * MoveDebounce)

	if got := primary.count(); got != 1 {
		t.Fatalf("transmitted %d events, want 1", got)
	}

	ev, ok, err := Decode(primary.last())
	if err != nil || !ok {
		t.Fatalf("decode transmitted event: ok=%v err=%v", ok, err)
	}
	move := ev.(MouseMove)
	if move.X != 0.99 {
		t.Errorf("transmitted payload: got x=%v, want last sample 0.99", move.X)
	}
}

func TestMove_SeparateBurstsEachTransmit(t *testing.T) {
	primary := &captureTransport{}
	s := NewSender(primary, nil)

	s.Move(MouseMove{X: 0.1, Y: 0.1})
	time.Sleep(5 * MoveDebounce)
	s.Move(MouseMove{X: 0.2, Y: 0.2})
	time.Sleep(5 * MoveDebounce)

	if got := primary.count(); got != 2 {
		t.Errorf("transmitted %d events, want 2", got)
	}
}

func TestSend_FallsBackToRelay(t *testing.T) {
	primary := &captureTransport{err: errors.New("data channel closed")}
	fallback := &captureTransport{}
	s := NewSender(primary, fallback)

	s.Send(MouseScroll{DeltaX: 1, DeltaY: -2})

	if fallback.count() != 1 {
		t.Fatalf("fallback got %d events, want 1", fallback.count())
	}
}

func TestSend_DropsWhenAllTransportsFail(t *testing.T) {
	primary := &captureTransport{err: errors.New("closed")}
	fallback := &captureTransport{err: errors.New("offline")}
	s := NewSender(primary, fallback)

	// Must not panic or block; best-effort delivery.
	s.Send(KeyUp{Key: "Enter"})
}
