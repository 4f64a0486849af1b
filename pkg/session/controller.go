package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/alegralabs/remote-desk/pkg/display"
	"github.com/alegralabs/remote-desk/pkg/input"
	"github.com/alegralabs/remote-desk/pkg/signal"
)

// Retry policy: fixed backoff, counted from the Connecting state only.
const (
	MaxAttempts  = 3
	SettleWindow = 5000 * time.Millisecond
)

// Config carries controller tuning. Zero values fall back to the
// defaults above.
type Config struct {
	HostName string
	Attempts int
	Settle   time.Duration
}

// Controller is the session state machine. It runs identically on host
// and viewer; the only asymmetry is which side initiates RequestAccess
// and which side answers the consent prompt. All state transitions
// happen on the single event-loop goroutine.
type Controller struct {
	cfg     Config
	sig     Signaler
	newPeer PeerFactory
	catalog display.Catalog
	geo     *display.Tracker
	applier *input.Applier
	sender  *input.Sender

	events   chan event
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	status Status
	peer   Peer // guarded by mu for cross-goroutine input sends

	// event-loop-owned; never touched outside run()
	gen        int
	attempt    int
	target     string
	targetHost string
	screens    []display.Screen
	current    display.Screen

	changeMu sync.Mutex
	onChange func()
}

type event interface{}

type (
	evSignal         struct{ msg signal.Message }
	evConnect        struct{ room string }
	evDisconnect     struct{}
	evRetry          struct{}
	evConsent        struct{ accept bool }
	evSelectScreen   struct{ screen display.Screen }
	evScreensChanged struct{}
	evOnline         struct{ online bool }
	evPeerState      struct {
		gen int
		st  PeerState
	}
	evCandidate struct {
		gen  int
		cand string
	}
	evData struct {
		gen  int
		data []byte
	}
	evSettle   struct{ attempt int }
	evShutdown struct{}
)

// NewController wires the collaborators together. inj applies remote
// input on the host side; a viewer-only endpoint may pass a no-op.
func NewController(cfg Config, sig Signaler, factory PeerFactory, catalog display.Catalog, inj input.Injector) *Controller {
	if cfg.Attempts == 0 {
		cfg.Attempts = MaxAttempts
	}
	if cfg.Settle == 0 {
		cfg.Settle = SettleWindow
	}

	geo := display.NewTracker(display.Geometry{ScaleFactor: 1})
	c := &Controller{
		cfg:     cfg,
		sig:     sig,
		newPeer: factory,
		catalog: catalog,
		geo:     geo,
		applier: input.NewApplier(inj, geo),
		events:  make(chan event, 64),
		done:    make(chan struct{}),
	}
	c.sender = input.NewSender(peerTransport{c}, relayTransport{c})
	return c
}

// Start binds a fresh local room and launches the event loop.
func (c *Controller) Start() {
	room := signal.NewRoomID()
	c.update(func(s *Status) {
		s.LocalRoom = room
		s.Online = true
	})
	if err := c.sig.Join(room, ""); err != nil {
		log.Printf("[session] host join failed: %v", err)
		c.update(func(s *Status) { s.Online = false })
	}
	c.refreshScreens()

	go c.run()
}

// Stop tears the session down and stops the event loop. The teardown
// runs on the loop itself so no event can slip in after it.
func (c *Controller) Stop() {
	c.post(evShutdown{})
}

// Status returns a snapshot safe to read from any goroutine.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetOnChange registers a callback fired after every processed event.
func (c *Controller) SetOnChange(fn func()) {
	c.changeMu.Lock()
	c.onChange = fn
	c.changeMu.Unlock()
}

// HandleSignal feeds one broker message into the state machine.
func (c *Controller) HandleSignal(msg signal.Message) { c.post(evSignal{msg}) }

// ConnectTo initiates a remote join against the target room.
func (c *Controller) ConnectTo(roomID string) { c.post(evConnect{roomID}) }

// Disconnect ends the active session and rotates the local room id.
func (c *Controller) Disconnect() { c.post(evDisconnect{}) }

// Retry re-runs negotiation after a Connected-state transport failure.
func (c *Controller) Retry() { c.post(evRetry{}) }

// Accept grants the pending consent request.
func (c *Controller) Accept() { c.post(evConsent{accept: true}) }

// Deny refuses the pending consent request.
func (c *Controller) Deny() { c.post(evConsent{accept: false}) }

// SelectScreen asks the remote host to share a different screen.
func (c *Controller) SelectScreen(screen display.Screen) { c.post(evSelectScreen{screen}) }

// NotifyScreensChanged re-enumerates local screens after a monitor was
// added or removed.
func (c *Controller) NotifyScreensChanged() { c.post(evScreensChanged{}) }

// SetOnline tracks broker connectivity; joins are refused while
// offline.
func (c *Controller) SetOnline(online bool) { c.post(evOnline{online}) }

// HasActiveConnection reports whether a remote session is live, for
// the quit-confirmation flow.
func (c *Controller) HasActiveConnection() bool {
	return c.Status().State == Connected
}

// Viewer input surface. All sends are best effort.

func (c *Controller) SendMouseMove(x, y float64) { c.sender.Move(input.MouseMove{X: x, Y: y}) }
func (c *Controller) SendMouseDown()             { c.sender.Send(input.MouseDown{}) }
func (c *Controller) SendMouseUp()               { c.sender.Send(input.MouseUp{}) }
func (c *Controller) SendMouseScroll(dx, dy float64) {
	c.sender.Send(input.MouseScroll{DeltaX: dx, DeltaY: dy})
}
func (c *Controller) SendMouseClick(x, y float64, button input.MouseButton) {
	c.sender.Send(input.MouseClick{X: x, Y: y, Button: button})
}
func (c *Controller) SendKeyUp(key string, modifiers []string) {
	c.sender.Send(input.KeyUp{Key: key, Modifiers: modifiers})
}

func (c *Controller) post(e event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

func (c *Controller) run() {
	for {
		select {
		case e := <-c.events:
			c.handle(e)
			c.fireChange()
		case <-c.done:
			return
		}
	}
}

func (c *Controller) fireChange() {
	c.changeMu.Lock()
	fn := c.onChange
	c.changeMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Controller) update(mut func(*Status)) {
	c.mu.Lock()
	mut(&c.status)
	c.mu.Unlock()
}

func (c *Controller) handle(e event) {
	switch ev := e.(type) {
	case evSignal:
		c.handleSignal(ev.msg)
	case evConnect:
		c.handleConnect(ev.room)
	case evDisconnect:
		c.teardown("")
	case evRetry:
		if c.Status().State != Failed {
			return
		}
		c.update(func(s *Status) {
			s.State = Connecting
			s.Err = ""
		})
		if c.target != "" {
			c.attempt = 0
			c.beginAttempt()
		} else {
			// Hosting role: the viewer is still a room member, so a
			// fresh offer renegotiates without a rejoin.
			c.handleGetOffer()
		}
	case evConsent:
		c.handleConsent(ev.accept)
	case evSelectScreen:
		c.handleSelectScreen(ev.screen)
	case evScreensChanged:
		c.refreshScreens()
		if c.Status().State == Connected && c.target == "" {
			c.sendScreens()
		}
	case evOnline:
		c.update(func(s *Status) { s.Online = ev.online })
	case evPeerState:
		if ev.gen == c.gen {
			c.handlePeerState(ev.st)
		}
	case evCandidate:
		if ev.gen == c.gen {
			c.relay(signal.Message{Type: "icecandidate", Room: c.activeRoom(), Candidate: ev.cand})
		}
	case evData:
		if ev.gen == c.gen {
			c.applier.ApplyRaw(ev.data)
		}
	case evSettle:
		c.handleSettle(ev.attempt)
	case evShutdown:
		c.closePeer()
		if c.target != "" {
			c.sig.Leave(c.target)
		}
		if room := c.Status().LocalRoom; room != "" {
			c.sig.Leave(room)
		}
		c.stopOnce.Do(func() { close(c.done) })
	}
}

// activeRoom is the room the current negotiation runs in: the target
// room when viewing, the hosted room otherwise.
func (c *Controller) activeRoom() string {
	if c.target != "" {
		return c.target
	}
	return c.Status().LocalRoom
}

func (c *Controller) handleConnect(room string) {
	st := c.Status()
	if st.State == Connecting || st.State == Connected {
		return
	}
	if !st.Online {
		c.update(func(s *Status) { s.Err = "No connection to server" })
		return
	}
	if room == st.LocalRoom {
		c.update(func(s *Status) { s.Err = "You can't join your own room" })
		return
	}

	// Rotate the hosted room up front so a fresh identifier is ready
	// for whatever follows this session.
	c.rebindLocalRoom()

	c.target = room
	c.targetHost = ""
	c.attempt = 0
	c.update(func(s *Status) {
		s.State = Connecting
		s.Err = ""
	})

	if err := c.sig.RequestAccess(room, c.cfg.HostName); err != nil {
		c.update(func(s *Status) {
			s.State = Disconnected
			s.Err = "No connection to server"
		})
		c.target = ""
	}
}

func (c *Controller) handleSignal(msg signal.Message) {
	switch {
	case msg.Type == "screen-share-request":
		c.update(func(s *Status) {
			s.Pending = &ConsentRequest{Requester: msg.Requester, HostName: msg.HostName}
		})

	case msg.Type == "screen-share-accepted":
		if c.Status().State != Connecting || msg.Room != c.target {
			return
		}
		c.targetHost = msg.HostID
		c.update(func(s *Status) { s.PeerID = msg.HostID })
		c.beginAttempt()

	case msg.Type == "screen-share-denied":
		if c.Status().State == Connecting {
			c.failAttempt("Access denied by remote host")
		}

	case msg.Type == "room-not-found":
		if c.Status().State == Connecting {
			c.failAttempt("Remote PC not found")
		}

	case msg.Type == "join-rejected":
		if c.Status().State == Connecting {
			c.failAttempt(msg.Error)
		}

	case msg.Type == "get-offer":
		c.handleGetOffer()

	case msg.Type == "offer":
		c.handleOffer(msg)

	case msg.Type == "answer":
		if p := c.currentPeer(); p != nil {
			if err := p.HandleAnswer(msg.SDP); err != nil {
				log.Printf("[session] apply answer: %v", err)
			}
		}

	case msg.Type == "icecandidate":
		if p := c.currentPeer(); p != nil {
			if err := p.AddCandidate(msg.Candidate); err != nil {
				log.Printf("[session] add candidate: %v", err)
			}
		}

	case msg.Type == "available-screens":
		if c.target == "" {
			return
		}
		c.update(func(s *Status) {
			s.Screens = msg.Screens
			if s.Active == "" && len(msg.Screens) > 0 {
				s.Active = msg.Screens[0].ID
			}
		})

	case msg.Type == "screen-change":
		if msg.Screen != nil {
			c.handleScreenChange(*msg.Screen)
		}

	case msg.Type == "user-left":
		// Only a live session reacts; a straggler from a room we
		// already departed must not rotate the hosted room again.
		st := c.Status()
		if c.target == "" && st.State == Disconnected && st.PeerID == "" {
			return
		}
		c.teardown("")

	case input.IsInputType(msg.Type):
		// Legacy relay mode: input arrives through the broker instead
		// of the data channel.
		env := struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload,omitempty"`
		}{msg.Type, msg.Payload}
		data, err := json.Marshal(env)
		if err == nil {
			c.applier.ApplyRaw(data)
		}
	}
}

// beginAttempt tears the previous peer down, rebuilds it, joins the
// target room and arms the settle timer. Called once per join attempt.
func (c *Controller) beginAttempt() {
	c.attempt++
	if !c.resetPeer() {
		c.failAttempt("Connection failed")
		return
	}

	if err := c.sig.Join(c.target, c.targetHost); err != nil {
		c.failAttempt("No connection to server")
		return
	}
	c.scheduleSettle(c.attempt)
}

func (c *Controller) scheduleSettle(attempt int) {
	time.AfterFunc(c.cfg.Settle, func() {
		c.post(evSettle{attempt})
	})
}

func (c *Controller) handleSettle(attempt int) {
	if attempt != c.attempt || c.Status().State != Connecting {
		return
	}
	if c.attempt < c.cfg.Attempts {
		c.beginAttempt()
		return
	}
	c.closePeer()
	if err := c.sig.Leave(c.target); err != nil {
		log.Printf("[session] leave %s: %v", c.target, err)
	}
	c.rebindLocalRoom()
	c.update(func(s *Status) {
		s.State = Disconnected
		s.Err = fmt.Sprintf("Connection failed after %d attempts", c.cfg.Attempts)
		s.PeerID = ""
	})
	c.target = ""
	c.targetHost = ""
}

// failAttempt surfaces a terminal join error and clears attempt state.
func (c *Controller) failAttempt(errText string) {
	c.closePeer()
	c.update(func(s *Status) {
		s.State = Disconnected
		s.Err = errText
		s.PeerID = ""
	})
	c.target = ""
	c.targetHost = ""
	c.attempt = 0
}

func (c *Controller) handleConsent(accept bool) {
	st := c.Status()
	if st.Pending == nil {
		return
	}
	req := *st.Pending
	c.update(func(s *Status) { s.Pending = nil })

	if err := c.sig.RespondAccess(st.LocalRoom, accept, req.Requester); err != nil {
		log.Printf("[session] consent response: %v", err)
		return
	}
	if accept {
		c.update(func(s *Status) { s.PeerID = req.Requester })
	}
}

// handleGetOffer runs on the host once its peer has joined the room:
// build a fresh peer, attach the active screen, offer.
func (c *Controller) handleGetOffer() {
	if !c.resetPeer() {
		return
	}
	c.refreshScreens()

	p := c.currentPeer()
	if c.current.ID != "" {
		if err := p.SetScreen(c.current.ID); err != nil {
			log.Printf("[session] attach screen: %v", err)
		}
	}

	offer, err := p.CreateOffer()
	if err != nil {
		log.Printf("[session] create offer: %v", err)
		return
	}
	c.update(func(s *Status) { s.State = Connecting })
	c.relay(signal.Message{Type: "offer", Room: c.activeRoom(), SDP: offer})
}

func (c *Controller) handleOffer(msg signal.Message) {
	p := c.currentPeer()
	if p == nil {
		return
	}
	answer, err := p.HandleOffer(msg.SDP)
	if err != nil {
		log.Printf("[session] handle offer: %v", err)
		return
	}
	c.relay(signal.Message{Type: "answer", Room: msg.Room, SDP: answer})
}

// handleScreenChange switches the captured screen on the host. All
// four geometry fields swap together before the track moves.
func (c *Controller) handleScreenChange(screen display.Screen) {
	for _, sc := range c.screens {
		if sc.ID != screen.ID {
			continue
		}
		c.current = sc
		c.swapGeometry(sc)

		p := c.currentPeer()
		if p == nil {
			return
		}
		if err := p.SetScreen(sc.ID); err != nil {
			log.Printf("[session] switch screen: %v", err)
			return
		}
		// Renegotiate so the new track reaches the viewer.
		offer, err := p.CreateOffer()
		if err != nil {
			log.Printf("[session] re-offer: %v", err)
			return
		}
		c.relay(signal.Message{Type: "offer", Room: c.activeRoom(), SDP: offer})
		return
	}
	log.Printf("[session] screen-change for unknown screen %q", screen.ID)
}

func (c *Controller) handleSelectScreen(screen display.Screen) {
	st := c.Status()
	if st.State != Connected || c.target == "" {
		return
	}
	c.update(func(s *Status) { s.Active = screen.ID })
	c.relay(signal.Message{Type: "screen-change", Room: c.target, Screen: &screen})
}

func (c *Controller) handlePeerState(st PeerState) {
	switch st {
	case PeerConnected:
		if c.Status().State != Connecting {
			return
		}
		joined := c.target
		c.update(func(s *Status) {
			s.State = Connected
			s.Err = ""
			s.Joined = joined
		})
		c.attempt = 0
		if c.target == "" && len(c.screens) > 1 {
			c.sendScreens()
		}

	case PeerFailed:
		switch c.Status().State {
		case Connected:
			c.update(func(s *Status) {
				s.State = Failed
				s.Err = "Connection failed"
			})
		case Connecting:
			// The armed settle timer re-checks and drives the retry.
		}
	}
}

// teardown implements explicit disconnect and remote departure: close
// the peer first so no stale callback can fire into the new session,
// leave whatever room the session ran in, then rehost under a fresh
// identifier.
func (c *Controller) teardown(errText string) {
	c.closePeer()

	if c.target != "" {
		if err := c.sig.Leave(c.target); err != nil {
			log.Printf("[session] leave %s: %v", c.target, err)
		}
	}
	c.rebindLocalRoom()

	c.target = ""
	c.targetHost = ""
	c.attempt = 0
	c.update(func(s *Status) {
		s.State = Disconnected
		s.Err = errText
		s.Joined = ""
		s.PeerID = ""
		s.Screens = nil
		s.Active = ""
	})
}

// rebindLocalRoom leaves the hosted room and binds a fresh identifier.
func (c *Controller) rebindLocalRoom() {
	old := c.Status().LocalRoom
	if old != "" {
		if err := c.sig.Leave(old); err != nil {
			log.Printf("[session] leave %s: %v", old, err)
		}
	}
	room := signal.NewRoomID()
	c.update(func(s *Status) { s.LocalRoom = room })
	if err := c.sig.Join(room, ""); err != nil {
		log.Printf("[session] rehost %s: %v", room, err)
	}
}

// resetPeer closes the current peer and builds its replacement. The
// generation counter fences events from the torn-down peer.
func (c *Controller) resetPeer() bool {
	c.closePeer()
	c.gen++

	p, err := c.newPeer(&peerEvents{c: c, gen: c.gen})
	if err != nil {
		log.Printf("[session] build peer: %v", err)
		return false
	}
	c.mu.Lock()
	c.peer = p
	c.mu.Unlock()
	return true
}

func (c *Controller) closePeer() {
	c.mu.Lock()
	p := c.peer
	c.peer = nil
	c.mu.Unlock()
	if p != nil {
		p.Close()
	}
}

func (c *Controller) currentPeer() Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peer
}

func (c *Controller) relay(msg signal.Message) {
	if err := c.sig.Relay(msg); err != nil {
		log.Printf("[session] relay %s: %v", msg.Type, err)
	}
}

func (c *Controller) sendScreens() {
	c.relay(signal.Message{Type: "available-screens", Room: c.activeRoom(), Screens: c.screens})
}

// refreshScreens re-enumerates local capture surfaces and swaps the
// geometry of the active one.
func (c *Controller) refreshScreens() {
	if c.catalog == nil {
		return
	}
	screens, err := c.catalog.Screens()
	if err != nil {
		log.Printf("[session] enumerate screens: %v", err)
		return
	}
	c.screens = screens
	if len(screens) == 0 {
		return
	}

	keep := false
	for _, sc := range screens {
		if sc.ID == c.current.ID {
			keep = true
			c.current = sc
			break
		}
	}
	if !keep {
		c.current = screens[0]
	}
	c.swapGeometry(c.current)
}

func (c *Controller) swapGeometry(sc display.Screen) {
	g, err := c.catalog.Geometry(sc.DisplayID)
	if err != nil {
		log.Printf("[session] geometry for display %s: %v", sc.DisplayID, err)
		return
	}
	c.geo.Swap(g)
}

// peerEvents bridges asynchronous peer callbacks into the event loop.
type peerEvents struct {
	c   *Controller
	gen int
}

func (p *peerEvents) PeerStateChanged(st PeerState) {
	p.c.post(evPeerState{gen: p.gen, st: st})
}

func (p *peerEvents) LocalCandidate(cand string) {
	p.c.post(evCandidate{gen: p.gen, cand: cand})
}

func (p *peerEvents) DataReceived(data []byte) {
	p.c.post(evData{gen: p.gen, data: data})
}

// peerTransport sends input over the data channel.
type peerTransport struct{ c *Controller }

func (t peerTransport) SendInput(data []byte) error {
	p := t.c.currentPeer()
	if p == nil {
		return errNoPeer
	}
	return p.SendInput(data)
}

// relayTransport is the legacy fallback: split the envelope and push it
// through the broker.
type relayTransport struct{ c *Controller }

func (t relayTransport) SendInput(data []byte) error {
	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	st := t.c.Status()
	room := st.Joined
	if room == "" {
		return errNoPeer
	}
	return t.c.sig.Relay(signal.Message{Type: env.Type, Room: room, Payload: env.Payload})
}
