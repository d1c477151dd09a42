// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     transport
// Description: WebSocket implementation of the transport channel
// Author:      Mike Stoffels
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
	"github.com/msto63/hatsuon/internal/practice/feedback"
	"github.com/msto63/hatsuon/pkg/core/logging"
)

const eventBuffer = 64

// WSConfig holds WebSocket endpoint settings
type WSConfig struct {
	// URL is the stream endpoint; the escaped lesson id is appended as last path segment
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	CloseTimeout     time.Duration
	Header           http.Header
}

// DefaultWSConfig returns the settings for a local backend
func DefaultWSConfig() WSConfig {
	return WSConfig{
		URL:              "ws://localhost:8000/api/v1/audio-stream/ws",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		CloseTimeout:     2 * time.Second,
	}
}

// WSDialer opens WebSocket channels
type WSDialer struct {
	cfg    WSConfig
	logger *logging.Logger
}

// NewWSDialer creates a dialer
func NewWSDialer(cfg WSConfig, logger *logging.Logger) *WSDialer {
	def := DefaultWSConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &WSDialer{cfg: cfg, logger: logger}
}

// Target returns the connection URL for a lesson
func (d *WSDialer) Target(lessonID string) string {
	return strings.TrimRight(d.cfg.URL, "/") + "/" + url.PathEscape(lessonID)
}

// Open dials the backend for lessonID
func (d *WSDialer) Open(ctx context.Context, lessonID string) (Channel, error) {
	target := d.Target(lessonID)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, target, d.cfg.Header)
	if err != nil {
		herr := hterror.Wrap(err, "failed to connect").
			WithCode(hterror.CodeConnectionError).
			WithOperation("transport.open").
			WithDetail("url", target)
		if resp != nil {
			herr = herr.WithDetail("status", resp.Status)
		}
		return nil, herr
	}

	c := &Conn{
		ws:       ws,
		lessonID: lessonID,
		cfg:      d.cfg,
		logger:   d.logger.With("lesson_id", lessonID),
		state:    StateOpen,
		events:   make(chan Event, eventBuffer),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.events <- Event{Type: EventOpened}
	go c.readLoop()

	c.logger.Debug("Channel opened", "url", target)
	return c, nil
}

// Conn is a WebSocket channel
type Conn struct {
	ws       *websocket.Conn
	lessonID string
	cfg      WSConfig
	logger   *logging.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	state    State
	writeErr error
	stopSent bool

	events    chan Event
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// Events implements Channel
func (c *Conn) Events() <-chan Event {
	return c.events
}

// State implements Channel
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LessonID returns the lesson this channel is addressed to
func (c *Conn) LessonID() string {
	return c.lessonID
}

func (c *Conn) writable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen && c.writeErr == nil
}

// Send implements Channel
func (c *Conn) Send(data []byte) bool {
	if !c.writable() {
		return false
	}
	return c.write(websocket.BinaryMessage, data)
}

// SendControl implements Channel
func (c *Conn) SendControl() bool {
	c.mu.Lock()
	if c.stopSent {
		c.mu.Unlock()
		return false
	}
	c.stopSent = true
	c.mu.Unlock()

	if !c.writable() {
		return false
	}
	return c.write(websocket.TextMessage, []byte(StopMessage))
}

func (c *Conn) write(messageType int, data []byte) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		c.fail(err)
		return false
	}
	return true
}

// fail marks the channel broken and shuts the socket so the read loop reports it
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.writeErr == nil {
		c.writeErr = err
	}
	c.mu.Unlock()
	c.logger.Warn("Channel write failed", "error", err)
	_ = c.ws.Close()
}

// Close implements Channel
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state == StateOpen {
			c.state = StateClosing
		}
		broken := c.writeErr != nil
		c.mu.Unlock()
		close(c.closing)

		if !broken {
			c.writeMu.Lock()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
		}

		// Force the socket shut if the peer does not answer the close frame
		go func() {
			select {
			case <-c.done:
			case <-time.After(c.cfg.CloseTimeout):
				_ = c.ws.Close()
			}
		}()
	})
	return nil
}

// Done is closed when the read loop has exited and Events is closed
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
		return
	default:
	}
	select {
	case c.events <- ev:
	case <-c.closing:
		// Owner stopped reading; drop
	}
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.events)
	defer c.ws.Close()

	for {
		messageType, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.emit(Event{Type: EventMessage, Feedback: feedback.Parse(payload)})
		case websocket.BinaryMessage:
			c.emit(Event{Type: EventMessage, Feedback: feedback.ProtocolViolation("unexpected binary frame")})
		}
	}
}

func (c *Conn) finish(readErr error) {
	c.mu.Lock()
	writeErr := c.writeErr
	c.state = StateClosed
	c.mu.Unlock()

	requested := false
	select {
	case <-c.closing:
		requested = true
	default:
	}

	code, reason := CloseAbnormal, readErr.Error()
	var ce *websocket.CloseError
	if errors.As(readErr, &ce) {
		code, reason = ce.Code, ce.Text
	}

	cause := readErr
	if writeErr != nil {
		cause = writeErr
	}
	clean := code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway
	if writeErr != nil || (!requested && !clean) {
		c.emit(Event{Type: EventError, Err: hterror.Wrap(cause, "connection lost").
			WithCode(hterror.CodeConnectionError).
			WithOperation("transport.read")})
		if writeErr != nil {
			code, reason = CloseAbnormal, writeErr.Error()
		}
	}

	c.emit(Event{Type: EventClosed, Code: code, Reason: reason})
	c.logger.Debug("Channel closed", "code", code, "reason", reason)
}
