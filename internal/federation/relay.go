package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// RelayMessage is the envelope-on-the-wire unit exchanged with a relay:
// a Nostr-style {kind, content} frame, where content is the JSON-encoded
// control message.
type RelayMessage struct {
	Kind    int    `json:"kind"`
	Content string `json:"content"`
}

// Relay maintains one reconnecting websocket connection to a single relay
// URL. Publish is best-effort; Run delivers every frame received to the
// handler until the context is canceled.
type Relay struct {
	URL        string
	MaxRetryMs int64 // backoff ceiling (spec §4.7 default 250ms min, operator-set max)

	mu     sync.Mutex
	conn   *websocket.Conn
	log    *slog.Logger
	dialer *websocket.Dialer
}

// NewRelay constructs a relay client. maxRetryMs bounds the reconnect
// backoff ceiling; 0 uses a 30s default.
func NewRelay(url string, maxRetryMs int64, log *slog.Logger) *Relay {
	if maxRetryMs <= 0 {
		maxRetryMs = 30_000
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{URL: url, MaxRetryMs: maxRetryMs, log: log, dialer: websocket.DefaultDialer}
}

// Run maintains the connection until ctx is canceled, redelivering every
// received frame to onMessage. Reconnects with exponential backoff (min
// 250ms, capped at MaxRetryMs, reset on a successful connection) per spec
// §4.7.
func (r *Relay) Run(ctx context.Context, onMessage func(kind int, content string)) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = time.Duration(r.MaxRetryMs) * time.Millisecond
	b.MaxElapsedTime = 0 // retry forever; caller's ctx is the only way out

	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := r.dialer.DialContext(ctx, r.URL, nil)
		if err != nil {
			delay := b.NextBackOff()
			r.log.Warn("relay dial failed, retrying", "relay", r.URL, "delay", delay, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		b.Reset()
		r.mu.Lock()
		r.conn = conn
		r.mu.Unlock()
		r.readLoop(ctx, conn, onMessage)

		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
	}
}

func (r *Relay) readLoop(ctx context.Context, conn *websocket.Conn, onMessage func(kind int, content string)) {
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn("relay read failed", "relay", r.URL, "err", err)
			}
			return
		}
		var msg RelayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		onMessage(msg.Kind, msg.Content)
	}
}

// Publish sends a frame if the connection is currently live; returns an
// error if not (the caller is expected to try other relays — publish
// succeeds if any one relay accepts, per spec §4.7).
func (r *Relay) Publish(kind int, content string) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("relay %s: not connected", r.URL)
	}
	frame, err := json.Marshal(RelayMessage{Kind: kind, Content: content})
	if err != nil {
		return fmt.Errorf("marshal relay frame: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Pool fans a control message out to every relay in turn, succeeding if
// at least one relay accepts the publish (spec §4.7 publish path).
type Pool struct {
	relays []*Relay
}

func NewPool(relays []*Relay) *Pool {
	return &Pool{relays: relays}
}

func (p *Pool) Run(ctx context.Context, onMessage func(relayURL string, kind int, content string)) {
	for _, r := range p.relays {
		r := r
		go r.Run(ctx, func(kind int, content string) {
			onMessage(r.URL, kind, content)
		})
	}
}

// PublishAll fans kind/content out to every relay, returning true if at
// least one accepted it.
func (p *Pool) PublishAll(kind int, content string) bool {
	accepted := false
	for _, r := range p.relays {
		if err := r.Publish(kind, content); err == nil {
			accepted = true
		}
	}
	return accepted
}
