package crdt

import "encoding/json"

type wireItem struct {
	Array    string          `json:"a"`
	ID       ID              `json:"id"`
	Lamport  uint64          `json:"l"`
	Origin   *ID             `json:"o,omitempty"`
	Replaces *ID             `json:"r,omitempty"`
	Content  json.RawMessage `json:"v"`
}

type wireUpdate struct {
	Items   []wireItem `json:"items,omitempty"`
	Deleted []ID       `json:"deleted,omitempty"`
}

func toWire(it *item) wireItem {
	wi := wireItem{
		Array:   it.arr.name,
		ID:      it.id,
		Lamport: it.lamport,
		Content: it.content,
	}
	if it.origin != nil {
		id := it.origin.id
		wi.Origin = &id
	}
	if it.replaces != nil {
		id := it.replaces.id
		wi.Replaces = &id
	}
	return wi
}

// MergeUpdates combines several updates into one. Duplicate items and deletes
// are kept once.
func MergeUpdates(updates ...[]byte) ([]byte, error) {
	var merged wireUpdate
	seenItems := make(map[ID]struct{})
	seenDeletes := make(map[ID]struct{})
	for _, data := range updates {
		var u wireUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, err
		}
		for _, wi := range u.Items {
			if _, ok := seenItems[wi.ID]; ok {
				continue
			}
			seenItems[wi.ID] = struct{}{}
			merged.Items = append(merged.Items, wi)
		}
		for _, id := range u.Deleted {
			if _, ok := seenDeletes[id]; ok {
				continue
			}
			seenDeletes[id] = struct{}{}
			merged.Deleted = append(merged.Deleted, id)
		}
	}
	return json.Marshal(merged)
}
