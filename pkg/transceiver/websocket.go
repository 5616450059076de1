// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when the WebSocket bridge has gone away.
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketTransport talks to a module behind a serial-to-WebSocket bridge.
//
// The socket stays connected for the life of the transport. Open and Close
// only gate reception: bytes that arrive while the transport is closed are
// dropped, as they would be by a closed UART.
type WebSocketTransport struct {
	conn *websocket.Conn

	mu     sync.Mutex
	buf    []byte
	open   bool
	err    error
	closed chan struct{}
}

// WebSocketOptions configures DialWebSocket.
type WebSocketOptions struct {
	Username      string
	Password      string
	SkipSSLVerify bool
	Timeout       time.Duration
}

// DialWebSocket connects to a bridge at wsURL with optional HTTP Basic auth.
func DialWebSocket(ctx context.Context, wsURL string, opts WebSocketOptions) (*WebSocketTransport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	return NewWebSocketTransport(conn), nil
}

// NewWebSocketTransport wraps an established connection and starts reading.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	w := &WebSocketTransport{
		conn:   conn,
		closed: make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *WebSocketTransport) readLoop() {
	defer close(w.closed)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}
		// The bridge forwards UART bytes as binary messages only.
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.mu.Lock()
		if w.open {
			w.buf = append(w.buf, data...)
		}
		w.mu.Unlock()
	}
}

// Open starts accepting bytes. The bridge owns the UART settings, so baud
// is not sent.
func (w *WebSocketTransport) Open(baud int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, w.err)
	}
	w.open = true
	w.buf = w.buf[:0]
	return nil
}

func (w *WebSocketTransport) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
	w.buf = w.buf[:0]
	return nil
}

func (w *WebSocketTransport) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return errNotOpen
	}
	return nil
}

func (w *WebSocketTransport) WriteByte(b byte) error {
	w.mu.Lock()
	open, err := w.open, w.err
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	if !open {
		return errNotOpen
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, []byte{b})
}

func (w *WebSocketTransport) Available() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

func (w *WebSocketTransport) TryReadByte() (byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return 0, false
	}
	b := w.buf[0]
	w.buf = w.buf[1:]
	return b, true
}

// Disconnect closes the socket and waits for the reader to exit.
func (w *WebSocketTransport) Disconnect() error {
	err := w.conn.Close()
	<-w.closed
	return err
}
