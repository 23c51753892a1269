package channel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"artbid-sync/internal/domain"
	"artbid-sync/pkg/logger"
)

// ConnState is the observable state of the push channel connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by Send while the channel is down. Room
// joins are deferred rather than failed when this happens.
var ErrNotConnected = errors.New("channel: not connected")

// Conn is one live push connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens push connections. The production implementation wraps a
// websocket dialer; tests inject fakes.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Config holds channel connection settings.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	// MaxRetries bounds consecutive failed connect attempts before the
	// manager gives up and surfaces a persistent disconnected state.
	// Zero means retry forever.
	MaxRetries int
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
}

// Manager owns at most one live push connection, authenticated with the
// latest token from its TokenSource. Connect failures are retried with
// bounded exponential backoff and never surfaced to Enable callers.
type Manager struct {
	cfg    Config
	dialer Dialer
	tokens domain.TokenSource
	log    logger.Logger

	mu        sync.Mutex
	enabled   bool
	gen       int
	stop      chan struct{}
	state     ConnState
	conn      Conn
	onMessage func([]byte)
	observers map[int64]func(ConnState)
	nextObsID int64

	// writeMu serializes WriteJSON calls on the underlying connection.
	writeMu sync.Mutex
}

func NewManager(cfg Config, dialer Dialer, tokens domain.TokenSource, log logger.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:       cfg,
		dialer:    dialer,
		tokens:    tokens,
		log:       log,
		state:     StateDisconnected,
		observers: make(map[int64]func(ConnState)),
	}
}

// Enable starts the connection loop. Idempotent: calling it while already
// connecting or connected does nothing.
func (m *Manager) Enable() {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = true
	m.gen++
	gen := m.gen
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	go m.run(gen, stop)
}

// Disable tears the connection down. Idempotent and safe to call while
// already disabled.
func (m *Manager) Disable() {
	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = false
	m.gen++
	close(m.stop)
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.transition(StateDisconnected)
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers an observer for connection-state transitions
// and returns a func that removes it.
func (m *Manager) OnStateChange(fn func(ConnState)) func() {
	m.mu.Lock()
	m.nextObsID++
	id := m.nextObsID
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// OnMessage installs the inbound message sink, typically a dispatcher.
func (m *Manager) OnMessage(fn func([]byte)) {
	m.mu.Lock()
	m.onMessage = fn
	m.mu.Unlock()
}

// Send writes a JSON message on the live connection.
func (m *Manager) Send(v interface{}) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (m *Manager) run(gen int, stop chan struct{}) {
	backoff := m.cfg.BackoffMin
	attempts := 0

	for {
		if !m.current(gen) {
			return
		}
		m.setState(gen, StateConnecting)

		conn, err := m.dial()
		if err != nil {
			attempts++
			m.log.Warn("channel connect failed", "attempt", attempts, "error", err)
			m.setState(gen, StateDisconnected)

			if m.cfg.MaxRetries > 0 && attempts >= m.cfg.MaxRetries {
				m.log.Error("channel giving up after repeated connect failures", "attempts", attempts)
				m.giveUp(gen)
				return
			}

			select {
			case <-stop:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > m.cfg.BackoffMax {
				backoff = m.cfg.BackoffMax
			}
			continue
		}

		attempts = 0
		backoff = m.cfg.BackoffMin

		if !m.adopt(gen, conn) {
			conn.Close()
			return
		}
		m.log.Info("channel connected", "url", m.cfg.URL)
		m.setState(gen, StateConnected)

		m.readLoop(conn)
		m.release(gen, conn)

		select {
		case <-stop:
			return
		default:
		}
		m.log.Warn("channel connection lost, reconnecting")
		m.setState(gen, StateDisconnected)
	}
}

// dial fetches the latest token and opens a connection carrying it. The
// token is read fresh here, not captured at Enable time, so reconnects
// after a token refresh authenticate with the new one.
func (m *Manager) dial() (Conn, error) {
	token, err := m.tokens.Token()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()
	return m.dialer.Dial(ctx, m.cfg.URL, header)
}

func (m *Manager) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}

		m.mu.Lock()
		sink := m.onMessage
		m.mu.Unlock()
		if sink != nil {
			sink(data)
		}
	}
}

func (m *Manager) current(gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen && m.enabled
}

func (m *Manager) adopt(gen int, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || !m.enabled {
		return false
	}
	m.conn = conn
	return true
}

func (m *Manager) release(gen int, conn Conn) {
	m.mu.Lock()
	if m.gen == gen && m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *Manager) giveUp(gen int) {
	m.mu.Lock()
	if m.gen == gen {
		m.enabled = false
	}
	m.mu.Unlock()
}

func (m *Manager) setState(gen int, s ConnState) {
	m.mu.Lock()
	if m.gen != gen || m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()

	m.notify(s)
}

func (m *Manager) transition(s ConnState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()

	m.notify(s)
}

func (m *Manager) notify(s ConnState) {
	m.mu.Lock()
	observers := make([]func(ConnState), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}
