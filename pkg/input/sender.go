package input

import (
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// MoveDebounce is the trailing-edge window for pointer moves. Only the
// most recent move inside the window is transmitted; intermediate
// samples are dropped to cap bandwidth and input lag.
const MoveDebounce = 14 * time.Millisecond

// Transport sends one encoded input envelope to the host. The peer data
// channel is the preferred transport; the broker relay is the legacy
// fallback.
type Transport interface {
	SendInput(data []byte) error
}

// Sender encodes viewer input and pushes it to the host. Delivery is
// best effort: transport errors are logged and dropped.
type Sender struct {
	mu        sync.Mutex
	primary   Transport
	fallback  Transport
	debounced func(func())
	pending   MouseMove
}

// NewSender creates a sender with the given preferred transport.
// fallback may be nil.
func NewSender(primary, fallback Transport) *Sender {
	return &Sender{
		primary:   primary,
		fallback:  fallback,
		debounced: debounce.New(MoveDebounce),
	}
}

// Move queues a pointer move. Moves within MoveDebounce of each other
// collapse to the latest one.
func (s *Sender) Move(ev MouseMove) {
	s.mu.Lock()
	s.pending = ev
	s.mu.Unlock()

	s.debounced(func() {
		s.mu.Lock()
		ev := s.pending
		s.mu.Unlock()
		s.Send(ev)
	})
}

// Send transmits an event immediately.
func (s *Sender) Send(ev Event) {
	data, err := Encode(ev)
	if err != nil {
		log.Printf("[input] encode %s: %v", ev.Kind(), err)
		return
	}

	if err := s.primary.SendInput(data); err == nil {
		return
	}
	if s.fallback == nil {
		return
	}
	if err := s.fallback.SendInput(data); err != nil {
		log.Printf("[input] %s dropped: %v", ev.Kind(), err)
	}
}
