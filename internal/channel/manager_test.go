package channel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"artbid-sync/internal/domain"
	"artbid-sync/pkg/logger"
)

type fakeConn struct {
	mu        sync.Mutex
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	written   []interface{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.inbound:
		return msg, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int // fail this many dials before succeeding
	tokens   []string
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tokens = append(d.tokens, header.Get("Authorization"))
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) token(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.tokens) {
		return ""
	}
	return d.tokens[i]
}

type mutableToken struct {
	mu    sync.Mutex
	token string
}

func (t *mutableToken) Token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token, nil
}

func (t *mutableToken) set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

func testConfig() Config {
	return Config{
		URL:              "ws://example.test/ws",
		HandshakeTimeout: time.Second,
		BackoffMin:       time.Millisecond,
		BackoffMax:       5 * time.Millisecond,
	}
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, within time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManager_EnableConnectsAndIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	tokens := &mutableToken{token: "tok-a"}
	m := NewManager(testConfig(), dialer, tokens, logger.NewNop())
	defer m.Disable()

	m.Enable()
	m.Enable()
	m.Enable()

	waitFor(t, time.Second, "connected state", func() bool { return m.State() == StateConnected })

	if got := dialer.dialCount(); got != 1 {
		t.Fatalf("want exactly 1 dial for repeated Enable, got %d", got)
	}
	if got := dialer.token(0); got != "Bearer tok-a" {
		t.Fatalf("want bearer header with current token, got %q", got)
	}
}

func TestManager_ReconnectUsesRefreshedToken(t *testing.T) {
	dialer := &fakeDialer{}
	tokens := &mutableToken{token: "tok-a"}
	m := NewManager(testConfig(), dialer, tokens, logger.NewNop())
	defer m.Disable()

	m.Enable()
	waitFor(t, time.Second, "first connect", func() bool { return m.State() == StateConnected })

	// Token rotates while connected; the server then force-disconnects.
	tokens.set("tok-b")
	dialer.lastConn().Close()

	waitFor(t, time.Second, "redial", func() bool { return dialer.dialCount() >= 2 })
	waitFor(t, time.Second, "reconnected", func() bool { return m.State() == StateConnected })

	if got := dialer.token(1); got != "Bearer tok-b" {
		t.Fatalf("reconnect used stale token: got %q", got)
	}
}

func TestManager_GivesUpAfterMaxRetries(t *testing.T) {
	dialer := &fakeDialer{failures: 1 << 30}
	cfg := testConfig()
	cfg.MaxRetries = 3
	m := NewManager(cfg, dialer, domain.StaticToken("tok"), logger.NewNop())

	m.Enable()

	waitFor(t, time.Second, "all attempts", func() bool { return dialer.dialCount() == 3 })
	waitFor(t, time.Second, "persistent disconnected", func() bool { return m.State() == StateDisconnected })

	// No further attempts after giving up.
	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 3 {
		t.Fatalf("manager kept dialing after giving up: %d attempts", got)
	}

	// Enable starts a fresh attempt cycle.
	dialer.mu.Lock()
	dialer.failures = 0
	dialer.mu.Unlock()
	m.Enable()
	waitFor(t, time.Second, "reconnect after re-enable", func() bool { return m.State() == StateConnected })
	m.Disable()
}

func TestManager_DisableStopsReconnectAndIsIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(), dialer, domain.StaticToken("tok"), logger.NewNop())

	m.Enable()
	waitFor(t, time.Second, "connected", func() bool { return m.State() == StateConnected })

	m.Disable()
	m.Disable()

	if m.State() != StateDisconnected {
		t.Fatalf("want disconnected after Disable, got %v", m.State())
	}

	time.Sleep(20 * time.Millisecond)
	if got := dialer.dialCount(); got != 1 {
		t.Fatalf("manager reconnected after Disable: %d dials", got)
	}
}

func TestManager_InboundMessagesReachSink(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(), dialer, domain.StaticToken("tok"), logger.NewNop())
	defer m.Disable()

	var mu sync.Mutex
	var received [][]byte
	m.OnMessage(func(data []byte) {
		mu.Lock()
		received = append(received, data)
		mu.Unlock()
	})

	m.Enable()
	waitFor(t, time.Second, "connected", func() bool { return m.State() == StateConnected })

	dialer.lastConn().inbound <- []byte(`{"type":"new_bid"}`)

	waitFor(t, time.Second, "message delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})
}

func TestManager_StateObservers(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(), dialer, domain.StaticToken("tok"), logger.NewNop())
	defer m.Disable()

	var mu sync.Mutex
	var states []ConnState
	remove := m.OnStateChange(func(s ConnState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	m.Enable()
	waitFor(t, time.Second, "connected", func() bool { return m.State() == StateConnected })

	mu.Lock()
	got := make([]ConnState, len(states))
	copy(got, states)
	mu.Unlock()

	if len(got) < 2 || got[0] != StateConnecting || got[len(got)-1] != StateConnected {
		t.Fatalf("want connecting then connected, got %v", got)
	}

	remove()
	dialer.lastConn().Close()
	waitFor(t, time.Second, "reconnect", func() bool { return dialer.dialCount() >= 2 })

	mu.Lock()
	after := len(states)
	mu.Unlock()
	if after != len(got) {
		t.Fatalf("removed observer still notified")
	}
}

func TestManager_SendWhileDisconnected(t *testing.T) {
	m := NewManager(testConfig(), &fakeDialer{}, domain.StaticToken("tok"), logger.NewNop())

	err := m.Send(domain.ControlMessage{Type: domain.ControlJoinArtwork, ArtworkID: 1})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("want ErrNotConnected, got %v", err)
	}
}

func TestManager_SendWritesToConnection(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(testConfig(), dialer, domain.StaticToken("tok"), logger.NewNop())
	defer m.Disable()

	m.Enable()
	waitFor(t, time.Second, "connected", func() bool { return m.State() == StateConnected })

	msg := domain.ControlMessage{Type: domain.ControlJoinArtwork, ArtworkID: 7}
	if err := m.Send(msg); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	conn := dialer.lastConn()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.written) != 1 {
		t.Fatalf("want 1 written message, got %d", len(conn.written))
	}
	if got := conn.written[0].(domain.ControlMessage); got != msg {
		t.Fatalf("want %+v written, got %+v", msg, got)
	}
}
