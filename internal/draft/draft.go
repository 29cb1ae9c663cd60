// Package draft implements the drawing tools whose shape exists only locally
// until committed: lines and arrows, pencil strokes and the eraser.
//
// A draft is never part of the registry. Every change is handed to a
// Publisher so peers can render a live preview.
package draft

import (
	"log/slog"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

// Draft is an uncommitted shape and the peer drawing it.
type Draft struct {
	AuthorID string
	Shape    shape.Shape
}

// Publisher receives the current draft, or nil once it is gone.
type Publisher func(d *Draft)

// Creator stores committed shapes. *replica.Replica implements it.
type Creator interface {
	Push(s shape.Shape) error
}

// Tool is the lifecycle shared by every drawing tool.
type Tool interface {
	Start(p geom.Point)
	Update(p geom.Point)
	// Commit stores the draft if it passes validation and clears it either
	// way. It returns the stored shape, if any.
	Commit() (shape.Shape, bool)
	Clear()
	Active() bool
	Draft() (*Draft, bool)
}

// core holds the draft of one tool and publishes its changes.
type core struct {
	author  string
	publish Publisher
	logger  *slog.Logger
	current *Draft
}

func newCore(author string, publish Publisher, logger *slog.Logger) core {
	if publish == nil {
		publish = func(*Draft) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return core{author: author, publish: publish, logger: logger}
}

func (c *core) Active() bool { return c.current != nil }

func (c *core) Draft() (*Draft, bool) {
	if c.current == nil {
		return nil, false
	}
	return &Draft{AuthorID: c.current.AuthorID, Shape: c.current.Shape.Clone()}, true
}

func (c *core) begin(s shape.Shape) {
	c.current = &Draft{AuthorID: c.author, Shape: s}
	c.changed()
}

func (c *core) changed() {
	d, _ := c.Draft()
	c.publish(d)
}

func (c *core) Clear() {
	if c.current == nil {
		return
	}
	c.current = nil
	c.publish(nil)
}

// store pushes s through creator and logs a failure.
func (c *core) store(creator Creator, s shape.Shape, err error) (shape.Shape, bool) {
	if err != nil {
		c.logger.Error("draft: build shape", "error", err)
		return nil, false
	}
	if err := creator.Push(s); err != nil {
		c.logger.Error("draft: push shape", "id", s.ID(), "error", err)
		return nil, false
	}
	return s, true
}
