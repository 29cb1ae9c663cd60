package draft

import (
	"log/slog"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
	"github.com/inkdrift/inkdrift/internal/typeid"
)

const (
	// PencilJitter is the smallest pointer move that adds a pencil point.
	PencilJitter = 2.0
	// PencilSmoothTail is how many trailing points are re-smoothed per move.
	PencilSmoothTail = 12
	// MinPencilPoints is the smallest stroke, after smoothing, that commits.
	MinPencilPoints = 9

	EraserWidth  = 15.0
	EraserWindow = 5
	EraserColor  = "rgba(255, 255, 255, 0.5)"
)

// LineTool draws a line or arrow from the start point to the pointer.
type LineTool struct {
	core
	creator Creator
	kind    shape.Kind
}

func NewLineTool(author string, creator Creator, publish Publisher, logger *slog.Logger) *LineTool {
	return &LineTool{core: newCore(author, publish, logger), creator: creator, kind: shape.KindLine}
}

// SetKind chooses between line and arrow for the next Start.
func (t *LineTool) SetKind(k shape.Kind) {
	if k == shape.KindLine || k == shape.KindArrow {
		t.kind = k
	}
}

func (t *LineTool) Start(p geom.Point) {
	t.begin(shape.NewStroke(typeid.NewDraftID(), t.kind, shape.RandomColor(), p, p))
}

func (t *LineTool) Update(p geom.Point) {
	if t.current == nil {
		return
	}
	t.current.Shape.(*shape.Stroke).End = p
	t.changed()
}

func (t *LineTool) Commit() (shape.Shape, bool) {
	if t.current == nil {
		return nil, false
	}
	d := t.current.Shape.(*shape.Stroke)
	s, err := shape.New(shape.Options{
		Kind:    d.Kind(),
		Color:   d.Color(),
		Corners: &geom.Box{X1: d.Start.X, Y1: d.Start.Y, X2: d.End.X, Y2: d.End.Y},
	})
	defer t.Clear()
	return t.store(t.creator, s, err)
}

// PencilTool draws a freehand stroke whose tail is smoothed as it grows.
type PencilTool struct {
	core
	creator Creator
}

func NewPencilTool(author string, creator Creator, publish Publisher, logger *slog.Logger) *PencilTool {
	return &PencilTool{core: newCore(author, publish, logger), creator: creator}
}

func (t *PencilTool) Start(p geom.Point) {
	t.begin(shape.NewPath(typeid.NewDraftID(), shape.RandomColor(), []geom.Point{p}, shape.DefaultLineWidth))
}

func (t *PencilTool) Update(p geom.Point) {
	if t.current == nil {
		return
	}
	path := t.current.Shape.(*shape.Path)
	if n := len(path.Points); n > 0 && p.Dist(path.Points[n-1]) < PencilJitter {
		return
	}
	path.Points = smoothTail(append(path.Points, p))
	t.changed()
}

// smoothTail re-smooths the last PencilSmoothTail points: downsample by two,
// then one Chaikin pass.
func smoothTail(pts []geom.Point) []geom.Point {
	n := min(len(pts), PencilSmoothTail)
	head := pts[:len(pts)-n]
	tail := geom.SmoothCurve(geom.DownsamplePoints(pts[len(pts)-n:], 2), 1)
	out := make([]geom.Point, 0, len(head)+len(tail))
	return append(append(out, head...), tail...)
}

// Commit stores strokes of at least MinPencilPoints points. Shorter ones are
// taken for accidental clicks and dropped.
func (t *PencilTool) Commit() (shape.Shape, bool) {
	if t.current == nil {
		return nil, false
	}
	defer t.Clear()
	d := t.current.Shape.(*shape.Path)
	if len(d.Points) < MinPencilPoints {
		t.logger.Debug("draft: pencil stroke too short", "points", len(d.Points))
		return nil, false
	}
	s, err := shape.New(shape.Options{
		Kind:      shape.KindPencil,
		Color:     d.Color(),
		Points:    append([]geom.Point(nil), d.Points...),
		LineWidth: d.Width,
	})
	return t.store(t.creator, s, err)
}

// Finder locates the shape under a world point.
type Finder interface {
	FindAt(x, y float64) (shape.Shape, bool)
}

// Remover deletes shapes in one batch. *replica.Replica implements it.
type Remover interface {
	RemoveByIDs(ids []string)
}

// EraserTool collects the shapes its path crosses and removes them together
// on commit. Its draft is a short trailing path, drawn but never stored.
type EraserTool struct {
	core
	finder  Finder
	remover Remover
	hits    []string
	seen    map[string]bool
}

func NewEraserTool(author string, finder Finder, remover Remover, publish Publisher, logger *slog.Logger) *EraserTool {
	return &EraserTool{core: newCore(author, publish, logger), finder: finder, remover: remover, seen: make(map[string]bool)}
}

func (t *EraserTool) Start(p geom.Point) {
	t.resetHits()
	t.begin(shape.NewPath(typeid.NewDraftID(), EraserColor, []geom.Point{p}, EraserWidth))
}

func (t *EraserTool) Update(p geom.Point) {
	if t.current == nil {
		return
	}
	path := t.current.Shape.(*shape.Path)
	path.Points = append(path.Points, p)
	if len(path.Points) > EraserWindow {
		path.Points = path.Points[len(path.Points)-EraserWindow:]
	}
	if s, ok := t.finder.FindAt(p.X, p.Y); ok && !t.seen[s.ID()] {
		t.seen[s.ID()] = true
		t.hits = append(t.hits, s.ID())
	}
	t.changed()
}

// Erased returns the IDs collected so far, in hit order.
func (t *EraserTool) Erased() []string {
	return append([]string(nil), t.hits...)
}

// Marked reports whether id will be removed on commit.
func (t *EraserTool) Marked(id string) bool { return t.seen[id] }

func (t *EraserTool) Commit() (shape.Shape, bool) {
	if len(t.hits) > 0 {
		t.remover.RemoveByIDs(t.Erased())
	}
	t.Clear()
	return nil, false
}

func (t *EraserTool) Clear() {
	t.resetHits()
	t.core.Clear()
}

func (t *EraserTool) resetHits() {
	t.hits = nil
	clear(t.seen)
}
