// Package collab is the websocket relay. Peers of a room exchange CRDT sync
// messages and awareness updates through it; the relay keeps its own replica
// of every open room so late joiners catch up without another peer online.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/inkdrift/inkdrift/internal/crdt"
	"github.com/inkdrift/inkdrift/internal/replica"
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/store"
)

const (
	// originRelay tags changes the relay makes itself.
	originRelay = "relay"
	// originBroker tags changes received from another relay instance.
	originBroker = "broker"
)

type Room struct {
	id        string
	clients   map[string]*Client // connID -> client
	doc       *crdt.Doc
	replica   *replica.Replica
	presence  *Presence
	persister *replica.Persister

	stopUpdates func()
	unsubscribe func()
}

// Shapes returns the room's shapes as the relay currently sees them.
func (r *Room) Shapes() []shape.Shape { return r.replica.Shapes().All() }

type HubOptions struct {
	// Store persists room documents. Defaults to an in-memory store.
	Store store.Provider
	// Broker, when set, fans traffic out to other relay instances.
	Broker Broker
	// CompactAfter is the number of stored updates between snapshots of a
	// room. Defaults to replica.DefaultCompactAfter.
	CompactAfter int
	Logger       *slog.Logger
}

type registration struct {
	client *Client
	err    chan error
}

type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*Room // roomID -> room
	store    store.Provider
	broker   Broker
	logger   *slog.Logger
	instance string
	compact  int

	register   chan registration
	unregister chan *Client
	done       chan struct{}
}

var ErrHubStopped = errors.New("hub stopped")

func NewHub(opts HubOptions) *Hub {
	st := opts.Store
	if st == nil {
		st = store.NewMemory()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		store:      st,
		broker:     opts.Broker,
		logger:     logger,
		compact:    opts.CompactAfter,
		instance:   uuid.NewString(),
		register:   make(chan registration),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx is done, then closes every room.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case reg := <-h.register:
			reg.err <- h.addClient(ctx, reg.client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.Stop()
			return
		}
	}
}

// Register adds client to its room, opening the room on first use.
func (h *Hub) Register(client *Client) error {
	reg := registration{client: client, err: make(chan error, 1)}
	select {
	case h.register <- reg:
		return <-reg.err
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes client from its room. It is safe to call after the hub
// stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(ctx context.Context, client *Client) error {
	h.mu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		var err error
		room, err = h.openRoom(ctx, client.RoomID)
		if err != nil {
			h.mu.Unlock()
			return err
		}
		h.rooms[client.RoomID] = room
	}
	room.clients[client.ConnID] = client
	h.mu.Unlock()

	welcome, err := NewMessage(TypeWelcome, WelcomePayload{
		ClientID: client.ConnID,
		RoomID:   client.RoomID,
		PeerName: client.PeerName,
	})
	if err != nil {
		return err
	}
	client.Send(welcome)

	// Ask for what the relay lacks; the peer answers with sync.step2.
	step1, err := NewMessage(TypeSyncStep1, SyncStep1Payload{StateVector: room.doc.StateVector()})
	if err != nil {
		return err
	}
	client.Send(step1)

	if state := room.presence.StateUpdate(); state != nil {
		client.Send(UpdateMessage(TypeAwarenessUpdate, state))
	}

	h.logger.Info("client joined", "peer", client.PeerName, "room", client.RoomID, "conn", client.ConnID)
	return nil
}

// openRoom loads a room's document from the store and wires its updates to
// the connected clients. Called with h.mu held.
func (h *Hub) openRoom(ctx context.Context, roomID string) (*Room, error) {
	doc := crdt.NewDoc("relay-" + h.instance)
	room := &Room{
		id:       roomID,
		clients:  make(map[string]*Client),
		doc:      doc,
		replica:  replica.New(doc, replica.Options{Logger: h.logger}),
		presence: NewPresence("relay-" + h.instance),
	}

	p, err := replica.NewPersister(context.WithoutCancel(ctx), doc, h.store.KV(roomID), replica.PersistOptions{
		CompactAfter: h.compact,
		Logger:       h.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open room %s: %w", roomID, err)
	}
	room.persister = p

	room.stopUpdates = doc.OnUpdate(func(update []byte, origin string) {
		if origin == replica.OriginPersistence {
			return
		}
		msg := UpdateMessage(TypeSyncUpdate, update)
		h.broadcastToRoom(roomID, msg, origin)
		if origin != originBroker {
			h.publish(roomID, msg)
		}
	})

	if h.broker != nil {
		cancel, err := h.broker.Subscribe(ctx, roomID, func(data []byte) {
			h.handleBrokerMessage(room, data)
		})
		if err != nil {
			room.stopUpdates()
			p.Close()
			return nil, fmt.Errorf("open room %s: %w", roomID, err)
		}
		room.unsubscribe = cancel
	}

	h.logger.Debug("room opened", "room", roomID, "shapes", room.replica.Shapes().Len())
	return room, nil
}

func (r *Room) close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.stopUpdates()
	r.persister.Close()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ConnID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(room.clients, client.ConnID)
	client.close()

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.RoomID)
	}
	h.mu.Unlock()

	if removed := room.presence.Disconnect(client.ConnID); removed != nil {
		msg := UpdateMessage(TypeAwarenessUpdate, removed)
		h.broadcastToRoom(client.RoomID, msg, "")
		h.publish(client.RoomID, msg)
	}
	if empty {
		room.close()
		h.logger.Debug("room closed", "room", client.RoomID)
	}

	h.logger.Info("client left", "peer", client.PeerName, "room", client.RoomID, "conn", client.ConnID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	h.mu.RLock()
	room, ok := h.rooms[sender.RoomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	switch msg.Type {
	case TypeSyncStep1:
		var p SyncStep1Payload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("invalid sync.step1 payload", "error", err, "conn", sender.ConnID)
			sender.Send(errorMessage("invalid %s payload", msg.Type))
			return
		}
		sender.Send(UpdateMessage(TypeSyncStep2, room.doc.EncodeStateAsUpdate(p.StateVector)))

	case TypeSyncStep2, TypeSyncUpdate:
		var p UpdatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("invalid update payload", "error", err, "conn", sender.ConnID)
			sender.Send(errorMessage("invalid %s payload", msg.Type))
			return
		}
		if err := room.doc.ApplyUpdate(p.Update, sender.ConnID); err != nil {
			h.logger.Warn("apply update", "error", err, "conn", sender.ConnID)
			sender.Send(errorMessage("rejected update: %v", err))
		}

	case TypeAwarenessUpdate:
		var p UpdatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.logger.Warn("invalid awareness payload", "error", err, "conn", sender.ConnID)
			return
		}
		if err := room.presence.Apply(sender.ConnID, p.Update); err != nil {
			h.logger.Warn("apply awareness", "error", err, "conn", sender.ConnID)
			return
		}
		out := UpdateMessage(TypeAwarenessUpdate, p.Update)
		h.broadcastToRoom(sender.RoomID, out, sender.ConnID)
		h.publish(sender.RoomID, out)

	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "conn", sender.ConnID)
	}
}

func (h *Hub) publish(roomID string, msg *Message) {
	if h.broker == nil {
		return
	}
	data, err := json.Marshal(brokerMessage{Instance: h.instance, Message: *msg})
	if err != nil {
		h.logger.Error("marshal broker message", "error", err)
		return
	}
	if err := h.broker.Publish(context.Background(), roomID, data); err != nil {
		h.logger.Warn("broker publish", "room", roomID, "error", err)
	}
}

func (h *Hub) handleBrokerMessage(room *Room, data []byte) {
	var bm brokerMessage
	if err := json.Unmarshal(data, &bm); err != nil {
		h.logger.Warn("invalid broker message", "error", err)
		return
	}
	if bm.Instance == h.instance {
		return
	}
	var p UpdatePayload
	if err := json.Unmarshal(bm.Message.Payload, &p); err != nil {
		h.logger.Warn("invalid broker payload", "type", bm.Message.Type, "error", err)
		return
	}

	switch bm.Message.Type {
	case TypeSyncUpdate:
		if err := room.doc.ApplyUpdate(p.Update, originBroker); err != nil {
			h.logger.Warn("apply broker update", "room", room.id, "error", err)
		}
	case TypeAwarenessUpdate:
		if err := room.presence.Apply(originBroker, p.Update); err != nil {
			h.logger.Warn("apply broker awareness", "room", room.id, "error", err)
			return
		}
		h.broadcastToRoom(room.id, UpdateMessage(TypeAwarenessUpdate, p.Update), "")
	}
}

func (h *Hub) broadcastToRoom(roomID string, msg *Message, excludeConnID string) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ConnID != excludeConnID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// Room returns an open room.
func (h *Hub) Room(roomID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	return r, ok
}

// Shapes returns a room's shapes, from memory when the room is open and from
// the store otherwise.
func (h *Hub) Shapes(ctx context.Context, roomID string) ([]shape.Shape, error) {
	if r, ok := h.Room(roomID); ok {
		return r.Shapes(), nil
	}
	rep, err := replica.Restore(ctx, h.store.KV(roomID), h.logger)
	if err != nil {
		return nil, err
	}
	return rep.Shapes().All(), nil
}

// Peers reports how many awareness peers are online in an open room.
func (h *Hub) Peers(roomID string) int {
	r, ok := h.Room(roomID)
	if !ok {
		return 0
	}
	return r.presence.Len()
}

// Stop closes every room, flushing pending writes to the store.
func (h *Hub) Stop() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for id, r := range rooms {
		r.close()
		h.logger.Debug("room closed", "room", id)
	}
}
