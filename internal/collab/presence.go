package collab

import (
	"maps"
	"slices"
	"sync"

	"github.com/inkdrift/inkdrift/internal/awareness"
)

// Presence is the relay's view of a room's awareness. It remembers which
// awareness clients each connection has announced, so their entries can be
// withdrawn when the connection drops.
type Presence struct {
	aware *awareness.Awareness

	mu     sync.Mutex
	owners map[string]map[string]struct{} // connID -> awareness client IDs
}

func NewPresence(relayID string) *Presence {
	p := &Presence{
		aware:  awareness.New(relayID),
		owners: make(map[string]map[string]struct{}),
	}
	// The relay itself is not a peer.
	p.aware.SetLocalState(nil)
	p.aware.OnChange(p.track)
	return p
}

func (p *Presence) track(ch awareness.Change) {
	if ch.Origin == awareness.OriginLocal || ch.Origin == originBroker || ch.Origin == originRelay {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	owned, ok := p.owners[ch.Origin]
	if !ok {
		owned = make(map[string]struct{})
		p.owners[ch.Origin] = owned
	}
	for _, id := range ch.Added {
		owned[id] = struct{}{}
	}
	for _, id := range ch.Updated {
		owned[id] = struct{}{}
	}
}

// Apply merges an awareness update received from connID.
func (p *Presence) Apply(connID string, update []byte) error {
	return p.aware.ApplyUpdate(update, connID)
}

// Disconnect removes every awareness client announced by connID and returns
// the encoded removal, or nil when there was nothing to remove.
func (p *Presence) Disconnect(connID string) []byte {
	p.mu.Lock()
	owned := slices.Sorted(maps.Keys(p.owners[connID]))
	delete(p.owners, connID)
	p.mu.Unlock()

	if len(owned) == 0 {
		return nil
	}
	p.aware.Remove(owned, originRelay)
	return p.aware.EncodeUpdate(owned...)
}

// StateUpdate encodes every online peer, for a connection that just joined.
// It returns nil when the room has no peers yet.
func (p *Presence) StateUpdate() []byte {
	states := p.aware.States()
	delete(states, p.aware.ClientID())
	if len(states) == 0 {
		return nil
	}
	return p.aware.EncodeUpdate(slices.Sorted(maps.Keys(states))...)
}

// Len is the number of online peers.
func (p *Presence) Len() int {
	states := p.aware.States()
	delete(states, p.aware.ClientID())
	return len(states)
}
