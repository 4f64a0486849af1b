package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/alegralabs/remote-desk/pkg/session"
	"github.com/alegralabs/remote-desk/pkg/settings"
	"github.com/alegralabs/remote-desk/pkg/signal"
)

// DefaultSignalServer is the default rendezvous server
const DefaultSignalServer = "wss://signal.alegralabs.com"

// LocalSignalServer is the URL for a locally running rendezvous server
const LocalSignalServer = "ws://localhost:8080"

// Config holds runtime configuration
type Config struct {
	ServeMode bool
	Port      int
	SignalURL string
	Name      string
	Help      bool

	// TURN server configuration
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

func parseFlags() Config {
	config := Config{}
	var localMode bool

	flag.BoolVar(&config.ServeMode, "serve", false, "Run as rendezvous server only")
	flag.BoolVar(&config.ServeMode, "s", false, "Run as rendezvous server only (shorthand)")

	flag.IntVar(&config.Port, "port", 8080, "Rendezvous server port")
	flag.IntVar(&config.Port, "p", 8080, "Rendezvous server port (shorthand)")

	flag.StringVar(&config.SignalURL, "signal", "", "Custom rendezvous server URL (overrides default)")
	flag.BoolVar(&localMode, "local", false, "Use local rendezvous server (ws://localhost:8080)")

	flag.StringVar(&config.Name, "name", "", "Display name shown to the remote side")

	flag.StringVar(&config.TURNServer, "turn", "", "TURN server URL (e.g., turn:turn.example.com:3478)")
	flag.StringVar(&config.TURNUser, "turn-user", "", "TURN server username")
	flag.StringVar(&config.TURNPass, "turn-pass", "", "TURN server password")
	flag.BoolVar(&config.ForceRelay, "force-relay", false, "Force TURN relay (disable direct P2P)")

	flag.BoolVar(&config.Help, "help", false, "Show help")
	flag.BoolVar(&config.Help, "h", false, "Show help (shorthand)")

	flag.Parse()

	if localMode {
		config.SignalURL = LocalSignalServer
	}

	return config
}

func printHelp() {
	fmt.Println(`Remote-Desk - remote desktop over P2P

Usage: remote-desk [options]

By default, remote-desk connects to the rendezvous server at:
  ` + DefaultSignalServer + `

Your endpoint hosts a room identified by an 8-character id. Share it
with the remote side; knowing the id is the only credential.

Options:
  --local                Use local rendezvous server (` + LocalSignalServer + `)
  --signal <url>         Custom rendezvous server URL (overrides default)
  --name <name>          Display name shown to the remote side
  --serve, -s            Run as rendezvous server only
  --port, -p <port>      Rendezvous server port (default: 8080)
  --help, -h             Show help

Network Options:
  --turn <url>           TURN server URL (e.g., turn:turn.example.com:3478)
  --turn-user <user>     TURN server username
  --turn-pass <pass>     TURN server password
  --force-relay          Force TURN relay (disable direct P2P connections)

TUI Controls:
  Type an id + Enter    Connect to a remote PC
  C                     Copy your room id (c also works outside the id field)
  a / d                 Accept / deny an access request
  1-9                   Switch remote screen
  s                     Disconnect current session
  r                     Retry after a failed connection
  q                     Quit (asks for confirmation while connected)`)
}

func main() {
	config := parseFlags()

	if config.Help {
		printHelp()
		return
	}

	if config.ServeMode {
		runSignalServer(config.Port)
		return
	}

	if config.SignalURL == "" {
		config.SignalURL = DefaultSignalServer
	}

	if err := RunTUI(config); err != nil {
		log.Fatalf("TUI error: %v", err)
	}
}

// runSignalServer starts the rendezvous broker. A .env file or the
// PORT variable overrides the flag, for platform deployments.
func runSignalServer(port int) {
	_ = godotenv.Load()
	if env := os.Getenv("PORT"); env != "" {
		if p, err := strconv.Atoi(env); err == nil {
			port = p
		}
	}

	broker := signal.NewBroker()
	addr := fmt.Sprintf(":%d", port)

	fmt.Printf("Starting rendezvous server on http://localhost%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := broker.StartServer(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// loadSettings merges persisted preferences with command-line flags;
// flags win.
func loadSettings(config *Config) {
	mgr, err := settings.NewManager()
	if err != nil {
		log.Printf("settings unavailable: %v", err)
		return
	}
	s, err := mgr.Load()
	if err != nil {
		log.Printf("settings load: %v", err)
	}

	if config.Name == "" {
		config.Name = s.HostName
	}
	if config.SignalURL == DefaultSignalServer && s.SignalURL != "" {
		config.SignalURL = s.SignalURL
	}
	if config.TURNServer == "" {
		config.TURNServer = s.TURNServer
		config.TURNUser = s.TURNUser
		config.TURNPass = s.TURNPass
	}
	if !config.ForceRelay {
		config.ForceRelay = s.ForceRelay
	}
}

// signalLink is the session's view of the rendezvous connection. The
// underlying client is replaced on reconnect without the session
// noticing.
type signalLink struct {
	mu     sync.RWMutex
	client *signal.Client
}

var _ session.Signaler = (*signalLink)(nil)

func (l *signalLink) current() *signal.Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.client
}

func (l *signalLink) swap(c *signal.Client) {
	l.mu.Lock()
	l.client = c
	l.mu.Unlock()
}

var errServerOffline = fmt.Errorf("no connection to server")

func (l *signalLink) Join(roomID, expectedHostID string) error {
	c := l.current()
	if c == nil {
		return errServerOffline
	}
	return c.Join(roomID, expectedHostID)
}

func (l *signalLink) RequestAccess(roomID, hostName string) error {
	c := l.current()
	if c == nil {
		return errServerOffline
	}
	return c.RequestAccess(roomID, hostName)
}

func (l *signalLink) RespondAccess(roomID string, accepted bool, requesterID string) error {
	c := l.current()
	if c == nil {
		return errServerOffline
	}
	return c.RespondAccess(roomID, accepted, requesterID)
}

func (l *signalLink) Leave(roomID string) error {
	c := l.current()
	if c == nil {
		return errServerOffline
	}
	return c.Leave(roomID)
}

func (l *signalLink) Relay(msg signal.Message) error {
	c := l.current()
	if c == nil {
		return errServerOffline
	}
	return c.Relay(msg)
}

const reconnectDelay = 5 * time.Second

// maintainLink keeps the rendezvous connection alive: dial, pump
// messages into the session, and on loss mark the session offline and
// redial until stopped.
func maintainLink(url string, link *signalLink, ctrl *session.Controller, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		c, err := signal.Dial(url)
		if err != nil {
			log.Printf("rendezvous dial: %v", err)
			ctrl.SetOnline(false)
			select {
			case <-done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		link.swap(c)
		ctrl.SetOnline(true)

		// Rebind the hosted room; the server forgot it with the old
		// connection.
		if room := ctrl.Status().LocalRoom; room != "" {
			if err := c.Join(room, ""); err != nil {
				log.Printf("rebind room %s: %v", room, err)
			}
		}

		for msg := range c.Messages() {
			ctrl.HandleSignal(msg)
		}

		link.swap(nil)
		ctrl.SetOnline(false)
		c.Close()
		log.Printf("rendezvous connection lost, retrying in %s", reconnectDelay)
	}
}
