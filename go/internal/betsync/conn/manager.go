package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fanpool/betsync/go/internal/betsync/events"
	"github.com/fanpool/betsync/go/internal/betsync/metrics"
)

// ErrNotConnected is returned when a frame is emitted while the socket is
// down. Requests are never queued for later delivery; a stale action after a
// long outage is worse than an immediate failure.
var ErrNotConnected = errors.New("not connected")

// Config holds configuration for the shared connection.
type Config struct {
	URL          string
	WriteTimeout time.Duration
	Reconnect    ReconnectPolicy
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		WriteTimeout: 10 * time.Second,
		Reconnect:    DefaultReconnectPolicy(),
	}
}

// Handler receives an inbound push event. Handlers run on the read pump
// goroutine, so events for a stream are delivered strictly in arrival order.
type Handler func(evt *events.BetEvent)

// Subscription identifies one registered handler.
type Subscription struct {
	manager *Manager
	event   events.EventType
	id      uint64
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.manager == nil {
		return
	}
	s.manager.unsubscribe(s.event, s.id)
	s.manager = nil
}

// Manager owns the one persistent connection of an authenticated session,
// shared across every concurrently viewed stream via logical rooms. It is
// constructed at login and torn down at logout; per-stream orchestrators
// receive it by reference.
type Manager struct {
	config  Config
	dialer  Dialer
	clock   clockwork.Clock
	metrics metrics.Collector

	sessionID string

	mu           sync.RWMutex
	socket       Socket
	connected    bool
	closing      bool
	rooms        map[string]bool
	handlers     map[events.EventType]map[uint64]Handler
	nextSubID    uint64
	onReconnect  []func()
	onNotice     []func(message string)
	reconnecting bool

	writeMu sync.Mutex
}

// NewManager creates a connection manager. The manager is idle until
// Connect is called.
func NewManager(config Config, dialer Dialer, clock clockwork.Clock, collector metrics.Collector) *Manager {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Manager{
		config:    config,
		dialer:    dialer,
		clock:     clock,
		metrics:   collector,
		sessionID: uuid.New().String()[:8],
		rooms:     make(map[string]bool),
		handlers:  make(map[events.EventType]map[uint64]Handler),
	}
}

// Connect dials the server and starts the read pump. ctx bounds the lifetime
// of the connection including any reconnection attempts.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.closing = false
	m.mu.Unlock()

	socket, err := m.dialer.Dial(ctx, m.config.URL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.config.URL, err)
	}

	m.mu.Lock()
	m.socket = socket
	m.connected = true
	m.mu.Unlock()

	log.Info().
		Str("session", m.sessionID).
		Str("url", m.config.URL).
		Msg("socket connected")

	go m.readPump(ctx, socket)
	return nil
}

// Disconnect closes the connection on client request. No reconnection is
// attempted for a requested close.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	socket := m.socket
	m.socket = nil
	m.connected = false
	m.mu.Unlock()

	if socket != nil {
		_ = socket.Close()
		log.Info().Str("session", m.sessionID).Msg("socket disconnected by client")
	}
}

// Connected reports whether the socket is currently up.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// JoinRoom joins the logical room for a stream. The room membership is
// remembered and re-established after a reconnect.
func (m *Manager) JoinRoom(streamID string) error {
	m.mu.Lock()
	m.rooms[streamID] = true
	m.mu.Unlock()
	return m.Emit(events.EventTypeJoinStream, events.JoinStreamRequest{StreamID: streamID})
}

// LeaveRoom leaves the logical room for a stream.
func (m *Manager) LeaveRoom(streamID string) error {
	m.mu.Lock()
	delete(m.rooms, streamID)
	m.mu.Unlock()
	err := m.Emit(events.EventTypeLeaveStream, events.LeaveStreamRequest{StreamID: streamID})
	if errors.Is(err, ErrNotConnected) {
		// Nothing to leave on a dead socket.
		return nil
	}
	return err
}

// Subscribe registers a handler for one event name.
func (m *Manager) Subscribe(event events.EventType, handler Handler) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[uint64]Handler)
	}
	m.nextSubID++
	id := m.nextSubID
	m.handlers[event][id] = handler
	return &Subscription{manager: m, event: event, id: id}
}

func (m *Manager) unsubscribe(event events.EventType, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.handlers[event]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(m.handlers, event)
		}
	}
}

// OnReconnect registers a callback fired after a successful automatic
// reconnect, once rooms have been rejoined.
func (m *Manager) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// OnNotice registers a callback for non-fatal user-facing notices, e.g. when
// reconnection attempts are exhausted.
func (m *Manager) OnNotice(fn func(message string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNotice = append(m.onNotice, fn)
}

// Emit sends one frame to the server. Fails immediately with ErrNotConnected
// while the socket is down.
func (m *Manager) Emit(event events.EventType, payload any) error {
	m.mu.RLock()
	socket := m.socket
	connected := m.connected
	m.mu.RUnlock()

	if !connected || socket == nil {
		return ErrNotConnected
	}

	frame := struct {
		Event events.EventType `json:"event"`
		Data  any              `json:"data"`
	}{Event: event, Data: payload}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = socket.SetWriteDeadline(m.clock.Now().Add(m.config.WriteTimeout))
	if err := socket.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s frame: %w", event, err)
	}

	log.Debug().
		Str("session", m.sessionID).
		Str("event", string(event)).
		Msg("frame emitted")
	return nil
}

// readPump reads frames until the socket fails or the client disconnects.
// Dispatching from a single goroutine preserves per-stream delivery order.
func (m *Manager) readPump(ctx context.Context, socket Socket) {
	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if m.clientRequested() || ctx.Err() != nil {
				return
			}
			_ = socket.Close()
			log.Warn().
				Err(err).
				Str("session", m.sessionID).
				Msg("socket dropped unexpectedly")
			m.handleDisconnect(ctx)
			return
		}
		m.dispatch(data)
	}
}

func (m *Manager) clientRequested() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closing
}

func (m *Manager) dispatch(data []byte) {
	var evt events.BetEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Error().
			Err(err).
			Str("session", m.sessionID).
			Msg("dropping malformed frame")
		return
	}

	m.mu.RLock()
	subs := make([]Handler, 0, len(m.handlers[evt.Event]))
	for _, h := range m.handlers[evt.Event] {
		subs = append(subs, h)
	}
	m.mu.RUnlock()

	for _, h := range subs {
		h(&evt)
	}

	log.Debug().
		Str("session", m.sessionID).
		Str("event", string(evt.Event)).
		Str("stream_id", evt.StreamID).
		Int("handlers", len(subs)).
		Msg("event dispatched")
}

// handleDisconnect runs the bounded reconnection loop after an unrequested
// drop. The attempt counter starts fresh on every new outage.
func (m *Manager) handleDisconnect(ctx context.Context) {
	m.mu.Lock()
	if m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.connected = false
	m.socket = nil
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	policy := m.config.Reconnect
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-m.clock.After(policy.wait()):
		case <-ctx.Done():
			return
		}

		m.mu.RLock()
		closing, alreadyUp := m.closing, m.connected
		m.mu.RUnlock()
		if closing {
			return
		}
		if alreadyUp {
			// A manual Connect restored the session during the backoff
			// window; a second dial would leave two read pumps running.
			log.Debug().
				Str("session", m.sessionID).
				Msg("connection already restored, stopping retry")
			return
		}

		socket, err := m.dialer.Dial(ctx, m.config.URL)
		if err != nil {
			m.metrics.RecordReconnectAttempt(false)
			log.Warn().
				Err(err).
				Str("session", m.sessionID).
				Int("attempt", attempt).
				Int("max_attempts", policy.MaxAttempts).
				Msg("reconnect attempt failed")
			continue
		}

		m.mu.Lock()
		if m.connected || m.closing {
			// Lost the race to a manual Connect while dialing.
			m.mu.Unlock()
			_ = socket.Close()
			return
		}
		m.socket = socket
		m.connected = true
		rooms := make([]string, 0, len(m.rooms))
		for streamID := range m.rooms {
			rooms = append(rooms, streamID)
		}
		callbacks := append([]func(){}, m.onReconnect...)
		m.mu.Unlock()

		m.metrics.RecordReconnectAttempt(true)
		log.Info().
			Str("session", m.sessionID).
			Int("attempt", attempt).
			Msg("socket reconnected")

		for _, streamID := range rooms {
			if err := m.Emit(events.EventTypeJoinStream, events.JoinStreamRequest{StreamID: streamID}); err != nil {
				log.Error().
					Err(err).
					Str("session", m.sessionID).
					Str("stream_id", streamID).
					Msg("failed to rejoin room")
			}
		}

		go m.readPump(ctx, socket)

		for _, fn := range callbacks {
			fn()
		}
		return
	}

	log.Warn().
		Str("session", m.sessionID).
		Int("attempts", policy.MaxAttempts).
		Msg("reconnect attempts exhausted")
	m.notify("connection lost, retry when ready")
}

func (m *Manager) notify(message string) {
	m.mu.RLock()
	callbacks := append([]func(string){}, m.onNotice...)
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn(message)
	}
}
