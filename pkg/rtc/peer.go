// Package rtc wraps the Pion peer connection behind the session's Peer
// port: one connection per negotiation attempt, an "input" data channel
// for control events, and an optional screen track on the host side.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"

	"github.com/alegralabs/remote-desk/pkg/session"
)

// ICE servers for NAT traversal
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
	{URLs: []string{"stun:stun2.l.google.com:19302"}},
}

// ICEConfig holds ICE server configuration.
type ICEConfig struct {
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// TrackSource supplies a local media track for a capture surface. The
// host wires a platform capturer here; a nil source runs the session
// input-only.
type TrackSource interface {
	Track(screenID string) (webrtc.TrackLocal, error)
}

var errChannelClosed = errors.New("input channel is not open")

// Peer implements session.Peer on a Pion connection.
type Peer struct {
	pc     *webrtc.PeerConnection
	events session.PeerEvents
	source TrackSource

	mu        sync.Mutex
	dc        *webrtc.DataChannel
	dcOpen    bool
	sender    *webrtc.RTPSender
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	closed    bool
}

// NewFactory returns a session.PeerFactory building peers against the
// given ICE configuration.
func NewFactory(cfg ICEConfig, source TrackSource) session.PeerFactory {
	return func(ev session.PeerEvents) (session.Peer, error) {
		return newPeer(cfg, source, ev)
	}
}

func newPeer(cfg ICEConfig, source TrackSource, ev session.PeerEvents) (*Peer, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	reg := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, reg); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(reg),
	)

	pc, err := api.NewPeerConnection(buildConfiguration(cfg))
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	p := &Peer{pc: pc, events: ev, source: source}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		data, err := json.Marshal(init)
		if err != nil {
			return
		}
		if ev := p.currentEvents(); ev != nil {
			ev.LocalCandidate(string(data))
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Printf("[rtc] connection state: %s", state)
		ev := p.currentEvents()
		if ev == nil {
			return
		}
		switch state {
		case webrtc.PeerConnectionStateConnected:
			ev.PeerStateChanged(session.PeerConnected)
		case webrtc.PeerConnectionStateFailed:
			ev.PeerStateChanged(session.PeerFailed)
		case webrtc.PeerConnectionStateDisconnected:
			ev.PeerStateChanged(session.PeerDisconnected)
		case webrtc.PeerConnectionStateClosed:
			ev.PeerStateChanged(session.PeerClosed)
		}
	})

	// Answer side: the offerer owns the channel, we adopt it.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		p.adoptChannel(dc)
	})

	return p, nil
}

func buildConfiguration(cfg ICEConfig) webrtc.Configuration {
	iceServers := make([]webrtc.ICEServer, 0, len(defaultICEServers)+1)
	iceServers = append(iceServers, defaultICEServers...)

	if cfg.TURNServer != "" {
		turn := webrtc.ICEServer{
			URLs:     []string{cfg.TURNServer},
			Username: cfg.TURNUser,
		}
		if cfg.TURNPass != "" {
			turn.Credential = cfg.TURNPass
			turn.CredentialType = webrtc.ICECredentialTypePassword
		}
		iceServers = append(iceServers, turn)
	}

	policy := webrtc.ICETransportPolicyAll
	if cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func (p *Peer) currentEvents() session.PeerEvents {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	return p.events
}

func (p *Peer) adoptChannel(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		log.Printf("[rtc] input channel open")
		p.mu.Lock()
		p.dcOpen = true
		p.mu.Unlock()
	})
	dc.OnClose(func() {
		p.mu.Lock()
		p.dcOpen = false
		p.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if ev := p.currentEvents(); ev != nil {
			ev.DataReceived(msg.Data)
		}
	})
}

// SetScreen attaches (or replaces) the outgoing screen track. Without a
// track source the session runs input-only.
func (p *Peer) SetScreen(screenID string) error {
	if p.source == nil {
		return nil
	}
	track, err := p.source.Track(screenID)
	if err != nil {
		return fmt.Errorf("open capture for %s: %w", screenID, err)
	}

	p.mu.Lock()
	sender := p.sender
	p.mu.Unlock()

	if sender != nil {
		return sender.ReplaceTrack(track)
	}

	sender, err = p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	p.mu.Lock()
	p.sender = sender
	p.mu.Unlock()
	return nil
}

// CreateOffer builds the local offer. The offerer also owns the input
// data channel, created on the first offer and reused across
// renegotiations.
func (p *Peer) CreateOffer() (string, error) {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()

	if dc == nil {
		dc, err := p.pc.CreateDataChannel("input", nil)
		if err != nil {
			return "", fmt.Errorf("create input channel: %w", err)
		}
		p.adoptChannel(dc)
	}

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

// HandleOffer applies the remote offer and returns our answer.
func (p *Peer) HandleOffer(sdp string) (string, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return "", fmt.Errorf("set remote offer: %w", err)
	}
	p.flushCandidates()

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

// HandleAnswer applies the remote answer to a sent offer.
func (p *Peer) HandleAnswer(sdp string) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	p.flushCandidates()
	return nil
}

// AddCandidate applies a remote ICE candidate, queueing it when it
// arrives ahead of the remote description.
func (p *Peer) AddCandidate(candidate string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}

	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, init)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.pc.AddICECandidate(init)
}

func (p *Peer) flushCandidates() {
	p.mu.Lock()
	p.remoteSet = true
	queued := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, init := range queued {
		if err := p.pc.AddICECandidate(init); err != nil {
			log.Printf("[rtc] queued candidate rejected: %v", err)
		}
	}
}

// SendInput transmits one encoded input envelope over the data channel.
func (p *Peer) SendInput(data []byte) error {
	p.mu.Lock()
	dc, open := p.dc, p.dcOpen
	p.mu.Unlock()

	if dc == nil || !open {
		return errChannelClosed
	}
	return dc.Send(data)
}

// Close unhooks all callbacks and tears the connection down. Events
// racing the close are swallowed so a replacement peer never sees them.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.events = nil
	dc := p.dc
	p.mu.Unlock()

	if dc != nil {
		dc.Close()
	}
	if err := p.pc.Close(); err != nil {
		log.Printf("[rtc] close: %v", err)
	}
}
