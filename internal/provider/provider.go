// Package provider connects a local document and its awareness to a relay. It
// performs the sync handshake on every connection, streams local changes out,
// applies remote ones and reconnects with backoff.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inkdrift/inkdrift/internal/awareness"
	"github.com/inkdrift/inkdrift/internal/collab"
	"github.com/inkdrift/inkdrift/internal/crdt"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const (
	// OriginRemote tags changes received from the relay.
	OriginRemote = "remote"

	DefaultMinBackoff        = 250 * time.Millisecond
	DefaultMaxBackoff        = 10 * time.Second
	DefaultAwarenessInterval = 50 * time.Millisecond

	writeWait  = 10 * time.Second
	maxMsgSize = 4 << 20
	sendBuffer = 256
)

var errSlowConnection = errors.New("send buffer full")

type Options struct {
	// URL of the room endpoint, for example ws://host:8080/ws/room_123.
	URL       string
	Token     string
	Name      string
	Doc       *crdt.Doc
	Awareness *awareness.Awareness

	// Dispatch runs fn on the goroutine that owns the document's consumers.
	// Remote changes are always applied through it. Defaults to calling fn.
	Dispatch func(fn func())
	// OnStatus is told about every status change.
	OnStatus func(Status)

	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	AwarenessInterval time.Duration
	Logger            *slog.Logger
}

type Provider struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	synced    bool
	out       chan []byte
	conn      *websocket.Conn
	dirty     bool
	stopDoc   func()
	stopAware func()
}

func New(opts Options) *Provider {
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(DefaultMaxBackoff, opts.MinBackoff)
	}
	if opts.AwarenessInterval <= 0 {
		opts.AwarenessInterval = DefaultAwarenessInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{opts: opts, logger: logger, status: StatusDisconnected}

	p.stopDoc = opts.Doc.OnUpdate(func(update []byte, origin string) {
		if origin == OriginRemote {
			return
		}
		p.enqueue(collab.UpdateMessage(collab.TypeSyncUpdate, update))
	})
	p.stopAware = opts.Awareness.OnChange(func(ch awareness.Change) {
		if !ch.Local() {
			return
		}
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
	})
	return p
}

func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Synced reports whether the current connection finished the handshake.
func (p *Provider) Synced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.synced
}

// Peers is the number of other online peers.
func (p *Provider) Peers() int {
	states := p.opts.Awareness.States()
	delete(states, p.opts.Awareness.ClientID())
	return len(states)
}

func (p *Provider) setStatus(s Status) {
	p.mu.Lock()
	changed := p.status != s
	p.status = s
	if s != StatusConnected {
		p.synced = false
	}
	p.mu.Unlock()
	if changed && p.opts.OnStatus != nil {
		p.opts.OnStatus(s)
	}
}

// Run keeps a connection open until ctx is done. Local changes made while
// disconnected are exchanged by the handshake of the next connection.
func (p *Provider) Run(ctx context.Context) error {
	defer func() {
		p.stopDoc()
		p.stopAware()
	}()

	backoff := p.opts.MinBackoff
	for {
		p.setStatus(StatusConnecting)
		start := time.Now()
		err := p.connect(ctx)
		p.setStatus(StatusDisconnected)
		p.dropRemotePeers()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A connection that lived for a while resets the backoff.
		if time.Since(start) > p.opts.MaxBackoff {
			backoff = p.opts.MinBackoff
		}
		p.logger.Warn("relay connection lost", "error", err, "retry", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, p.opts.MaxBackoff)
	}
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	return min(cur*2, limit)
}

func (p *Provider) dialURL() (string, error) {
	u, err := url.Parse(p.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	if p.opts.Token != "" {
		q.Set("token", p.opts.Token)
	}
	if p.opts.Name != "" {
		q.Set("name", p.opts.Name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) connect(ctx context.Context) error {
	target, err := p.dialURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(maxMsgSize)
	defer conn.CloseNow()

	out := make(chan []byte, sendBuffer)
	p.mu.Lock()
	p.conn = conn
	p.out = out
	p.dirty = false
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.conn = nil
		p.out = nil
		p.mu.Unlock()
	}()

	step1, err := collab.NewMessage(collab.TypeSyncStep1, collab.SyncStep1Payload{StateVector: p.opts.Doc.StateVector()})
	if err != nil {
		return err
	}
	p.enqueue(step1)
	aw := p.opts.Awareness
	p.enqueue(collab.UpdateMessage(collab.TypeAwarenessUpdate, aw.EncodeUpdate(aw.ClientID())))
	p.setStatus(StatusConnected)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- p.writeLoop(connCtx, conn, out)
		cancel()
	}()

	readErr := p.readLoop(connCtx, conn)
	cancel()
	if err := <-writeErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return readErr
}

func (p *Provider) writeLoop(ctx context.Context, conn *websocket.Conn, out chan []byte) error {
	ticker := time.NewTicker(p.opts.AwarenessInterval)
	defer ticker.Stop()

	write := func(data []byte) error {
		wctx, cancel := context.WithTimeout(ctx, writeWait)
		defer cancel()
		return conn.Write(wctx, websocket.MessageText, data)
	}

	for {
		select {
		case data := <-out:
			if err := write(data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ticker.C:
			p.mu.Lock()
			dirty := p.dirty
			p.dirty = false
			p.mu.Unlock()
			if !dirty {
				continue
			}
			aw := p.opts.Awareness
			data, err := json.Marshal(collab.UpdateMessage(collab.TypeAwarenessUpdate, aw.EncodeUpdate(aw.ClientID())))
			if err != nil {
				return err
			}
			if err := write(data); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Provider) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var msg collab.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn("invalid relay message", "error", err)
			continue
		}
		p.handle(&msg)
	}
}

func (p *Provider) handle(msg *collab.Message) {
	switch msg.Type {
	case collab.TypeWelcome:
		var w collab.WelcomePayload
		if err := json.Unmarshal(msg.Payload, &w); err == nil {
			p.logger.Debug("joined room", "room", w.RoomID, "conn", w.ClientID)
		}

	case collab.TypeSyncStep1:
		var s collab.SyncStep1Payload
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			p.logger.Warn("invalid sync.step1", "error", err)
			return
		}
		p.enqueue(collab.UpdateMessage(collab.TypeSyncStep2, p.opts.Doc.EncodeStateAsUpdate(s.StateVector)))

	case collab.TypeSyncStep2, collab.TypeSyncUpdate:
		update, ok := p.decodeUpdate(msg)
		if !ok {
			return
		}
		p.opts.Dispatch(func() {
			if err := p.opts.Doc.ApplyUpdate(update, OriginRemote); err != nil {
				p.logger.Warn("apply remote update", "error", err)
			}
		})
		if msg.Type == collab.TypeSyncStep2 {
			p.mu.Lock()
			p.synced = true
			p.mu.Unlock()
		}

	case collab.TypeAwarenessUpdate:
		update, ok := p.decodeUpdate(msg)
		if !ok {
			return
		}
		p.opts.Dispatch(func() {
			if err := p.opts.Awareness.ApplyUpdate(update, OriginRemote); err != nil {
				p.logger.Warn("apply remote awareness", "error", err)
			}
		})

	case collab.TypeError:
		var e collab.ErrorPayload
		_ = json.Unmarshal(msg.Payload, &e)
		p.logger.Warn("relay error", "message", e.Message)
	}
}

func (p *Provider) decodeUpdate(msg *collab.Message) ([]byte, bool) {
	var u collab.UpdatePayload
	if err := json.Unmarshal(msg.Payload, &u); err != nil {
		p.logger.Warn("invalid update payload", "type", msg.Type, "error", err)
		return nil, false
	}
	return u.Update, true
}

// enqueue queues a message for the current connection. Without a connection
// the message is dropped; the next handshake carries the change instead.
func (p *Provider) enqueue(msg *collab.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshal message", "error", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		return
	}
	select {
	case p.out <- data:
	default:
		p.logger.Warn("relay send buffer full, reconnecting")
		go p.conn.Close(websocket.StatusTryAgainLater, errSlowConnection.Error())
	}
}

// dropRemotePeers forgets every remote peer, so no cursor lingers while the
// relay is unreachable.
func (p *Provider) dropRemotePeers() {
	aw := p.opts.Awareness
	states := aw.States()
	delete(states, aw.ClientID())
	if len(states) == 0 {
		return
	}
	ids := slices.Sorted(maps.Keys(states))
	p.opts.Dispatch(func() { aw.Remove(ids, OriginRemote) })
}
