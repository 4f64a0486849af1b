package rtc

import (
	"strings"
	"sync"
	"testing"

	"github.com/pion/webrtc/v3"

	"github.com/alegralabs/remote-desk/pkg/session"
)

type recordEvents struct {
	mu     sync.Mutex
	states []session.PeerState
	cands  []string
	data   [][]byte
}

func (r *recordEvents) PeerStateChanged(state session.PeerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordEvents) LocalCandidate(candidate string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cands = append(r.cands, candidate)
}

func (r *recordEvents) DataReceived(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data)
}

func newTestPeer(t *testing.T) (*Peer, *recordEvents) {
	t.Helper()
	ev := &recordEvents{}
	p, err := NewFactory(ICEConfig{}, nil)(ev)
	if err != nil {
		t.Fatalf("build peer: %v", err)
	}
	t.Cleanup(p.Close)
	return p.(*Peer), ev
}

func TestCreateOfferCarriesInputChannel(t *testing.T) {
	p, _ := newTestPeer(t)

	sdp, err := p.CreateOffer()
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if !strings.Contains(sdp, "m=application") {
		t.Error("offer has no data channel media section")
	}
}

func TestOfferAnswerRoundTrip(t *testing.T) {
	host, _ := newTestPeer(t)
	viewer, _ := newTestPeer(t)

	offer, err := host.CreateOffer()
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	answer, err := viewer.HandleOffer(offer)
	if err != nil {
		t.Fatalf("handle offer: %v", err)
	}
	if answer == "" {
		t.Fatal("empty answer")
	}

	if err := host.HandleAnswer(answer); err != nil {
		t.Fatalf("handle answer: %v", err)
	}
}

func TestCandidatesQueueUntilRemoteDescription(t *testing.T) {
	host, _ := newTestPeer(t)
	viewer, _ := newTestPeer(t)

	// A candidate arriving before the remote description must be held,
	// not rejected.
	early := `{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host","sdpMid":"0","sdpMLineIndex":0}`
	if err := viewer.AddCandidate(early); err != nil {
		t.Fatalf("early candidate rejected: %v", err)
	}

	offer, err := host.CreateOffer()
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if _, err := viewer.HandleOffer(offer); err != nil {
		t.Fatalf("handle offer: %v", err)
	}
}

func TestSendInputBeforeChannelOpens(t *testing.T) {
	p, _ := newTestPeer(t)
	if err := p.SendInput([]byte(`{"type":"mouse-down"}`)); err == nil {
		t.Error("send succeeded with no open channel")
	}
}

func TestSetScreenWithoutSourceIsNoop(t *testing.T) {
	p, _ := newTestPeer(t)
	if err := p.SetScreen("screen:0:0"); err != nil {
		t.Errorf("input-only peer rejected SetScreen: %v", err)
	}
}

func TestCloseIsIdempotentAndSilencesEvents(t *testing.T) {
	p, ev := newTestPeer(t)
	p.Close()
	p.Close()

	if got := p.currentEvents(); got != nil {
		t.Error("events still hooked after close")
	}
	_ = ev
}

func TestBuildConfiguration(t *testing.T) {
	cfg := buildConfiguration(ICEConfig{})
	if len(cfg.ICEServers) != len(defaultICEServers) {
		t.Errorf("server count = %d, want %d", len(cfg.ICEServers), len(defaultICEServers))
	}
	if cfg.ICETransportPolicy != webrtc.ICETransportPolicyAll {
		t.Error("default policy is not all")
	}

	cfg = buildConfiguration(ICEConfig{
		TURNServer: "turn:turn.example.com:3478",
		TURNUser:   "user",
		TURNPass:   "pass",
		ForceRelay: true,
	})
	if len(cfg.ICEServers) != len(defaultICEServers)+1 {
		t.Fatal("TURN server was not appended")
	}
	turn := cfg.ICEServers[len(cfg.ICEServers)-1]
	if turn.Username != "user" || turn.Credential != "pass" {
		t.Errorf("TURN credentials not carried: %+v", turn)
	}
	if turn.CredentialType != webrtc.ICECredentialTypePassword {
		t.Error("TURN credential type not password")
	}
	if cfg.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Error("force-relay did not switch the transport policy")
	}
}
