package shape

import (
	"encoding/json"
	"fmt"

	"github.com/inkdrift/inkdrift/internal/geom"
)

// record is the wire form of a shape, shared by the replicated document,
// awareness drafts and the clipboard.
type record struct {
	ID        string       `json:"id"`
	Type      Kind         `json:"type"`
	Color     string       `json:"color"`
	X1        *float64     `json:"x1,omitempty"`
	Y1        *float64     `json:"y1,omitempty"`
	X2        *float64     `json:"x2,omitempty"`
	Y2        *float64     `json:"y2,omitempty"`
	Rotation  float64      `json:"rotation,omitempty"`
	Points    []geom.Point `json:"points,omitempty"`
	LineWidth float64      `json:"lineWidth,omitempty"`
}

func ptr(v float64) *float64 { return &v }

func toRecord(s Shape) record {
	r := record{ID: s.ID(), Type: s.Kind(), Color: s.Color()}
	switch v := s.(type) {
	case *Box:
		r.X1, r.Y1, r.X2, r.Y2 = ptr(v.Rect.X1), ptr(v.Rect.Y1), ptr(v.Rect.X2), ptr(v.Rect.Y2)
		r.Rotation = v.Angle
	case *Stroke:
		r.X1, r.Y1, r.X2, r.Y2 = ptr(v.Start.X), ptr(v.Start.Y), ptr(v.End.X), ptr(v.End.Y)
	case *Path:
		r.Points = v.Points
		r.LineWidth = v.Width
	}
	return r
}

func (r record) corners() (geom.Box, bool) {
	if r.X1 == nil || r.Y1 == nil || r.X2 == nil || r.Y2 == nil {
		return geom.Box{}, false
	}
	return geom.Box{X1: *r.X1, Y1: *r.Y1, X2: *r.X2, Y2: *r.Y2}, true
}

func fromRecord(r record) (Shape, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidShape)
	}
	switch r.Type {
	case KindRect, KindEllipse:
		c, ok := r.corners()
		if !ok {
			return nil, fmt.Errorf("%w: %s %s missing coordinates", ErrInvalidShape, r.Type, r.ID)
		}
		return NewBox(r.ID, r.Type, r.Color, c, r.Rotation), nil
	case KindLine, KindArrow:
		c, ok := r.corners()
		if !ok {
			return nil, fmt.Errorf("%w: %s %s missing coordinates", ErrInvalidShape, r.Type, r.ID)
		}
		return NewStroke(r.ID, r.Type, r.Color, geom.Point{X: c.X1, Y: c.Y1}, geom.Point{X: c.X2, Y: c.Y2}), nil
	case KindPencil:
		width := r.LineWidth
		if width <= 0 {
			width = DefaultLineWidth
		}
		return NewPath(r.ID, r.Color, r.Points, width), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, r.Type)
	}
}

// Marshal encodes a shape into its JSON wire form.
func Marshal(s Shape) ([]byte, error) {
	data, err := json.Marshal(toRecord(s))
	if err != nil {
		return nil, fmt.Errorf("marshal shape %s: %w", s.ID(), err)
	}
	return data, nil
}

// Unmarshal decodes a shape from its JSON wire form.
func Unmarshal(data []byte) (Shape, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal shape: %w", err)
	}
	return fromRecord(r)
}

// MarshalList encodes shapes as a JSON array.
func MarshalList(shapes []Shape) ([]byte, error) {
	recs := make([]record, len(shapes))
	for i, s := range shapes {
		recs[i] = toRecord(s)
	}
	return json.Marshal(recs)
}

// UnmarshalList decodes a JSON array of shapes.
func UnmarshalList(data []byte) ([]Shape, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal shapes: %w", err)
	}
	out := make([]Shape, 0, len(recs))
	for _, r := range recs {
		s, err := fromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
