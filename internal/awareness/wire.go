package awareness

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

type wireClient struct {
	ID    string `json:"id"`
	Clock uint64 `json:"clock"`
	State State  `json:"state"`
}

type wireUpdate struct {
	Clients []wireClient `json:"clients"`
}

// EncodeUpdate encodes the given peers, or every known peer when none are
// named. Removed peers are encoded with a null state.
func (a *Awareness) EncodeUpdate(clients ...string) []byte {
	a.mu.RLock()
	if len(clients) == 0 {
		clients = slices.Sorted(maps.Keys(a.entries))
	}
	u := wireUpdate{Clients: make([]wireClient, 0, len(clients))}
	for _, id := range clients {
		e, ok := a.entries[id]
		if !ok {
			continue
		}
		u.Clients = append(u.Clients, wireClient{ID: id, Clock: e.clock, State: e.state})
	}
	a.mu.RUnlock()

	data, _ := json.Marshal(u)
	return data
}

// ApplyUpdate merges a remote update. Entries about the local peer are
// ignored; every other entry wins only with a newer clock, or with the same
// clock when it announces a removal.
func (a *Awareness) ApplyUpdate(data []byte, origin string) error {
	var u wireUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}

	a.mu.Lock()
	ch := Change{Origin: origin}
	for _, c := range u.Clients {
		if c.ID == "" {
			continue
		}
		if c.ID == a.clientID {
			continue
		}
		cur, known := a.entries[c.ID]
		newer := !known || c.Clock > cur.clock || (c.Clock == cur.clock && c.State == nil && cur.state != nil)
		if !newer {
			continue
		}
		a.entries[c.ID] = entry{clock: c.Clock, state: c.State}

		switch {
		case c.State == nil:
			if known && cur.state != nil {
				ch.Removed = append(ch.Removed, c.ID)
			}
		case !known || cur.state == nil:
			ch.Added = append(ch.Added, c.ID)
		case !reflect.DeepEqual(normalize(cur.state), normalize(c.State)):
			ch.Updated = append(ch.Updated, c.ID)
		}
	}
	if len(ch.Touched()) == 0 {
		a.mu.Unlock()
		return nil
	}
	a.emitLocked(ch)
	return nil
}

// normalize compacts field values so formatting differences do not count as
// changes.
func normalize(s State) map[string]string {
	out := make(map[string]string, len(s))
	for k, v := range s {
		var x any
		if json.Unmarshal(v, &x) != nil {
			out[k] = string(v)
			continue
		}
		b, _ := json.Marshal(x)
		out[k] = string(b)
	}
	return out
}
