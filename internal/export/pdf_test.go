package export

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/geom"
	"github.com/inkdrift/inkdrift/internal/shape"
)

func board() []shape.Shape {
	return []shape.Shape{
		shape.NewBox("shape_1", shape.KindRect, "hsl(340, 60%, 80%)", geom.Box{X1: 0, Y1: 0, X2: 100, Y2: 50}, 0.3),
		shape.NewBox("shape_2", shape.KindEllipse, "#3366cc", geom.Box{X1: 200, Y1: 0, X2: 260, Y2: 40}, 0),
		shape.NewStroke("shape_3", shape.KindArrow, "red", geom.Point{X: 0, Y: 100}, geom.Point{X: 150, Y: 200}),
		shape.NewPath("shape_4", "hsl(140, 50%, 80%)", []geom.Point{{X: 10, Y: 10}, {X: 20, Y: 30}, {X: 40, Y: 35}}, 3),
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, "room_1", board()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestPDFEmptyBoard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, "empty", nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestExtents(t *testing.T) {
	rotated := shape.NewBox("shape_1", shape.KindRect, "red", geom.Box{X1: -10, Y1: -10, X2: 10, Y2: 10}, 0.7853981633974483)
	b, ok := extents([]shape.Shape{rotated})
	require.True(t, ok)
	// A square turned 45 degrees reaches its half diagonal, plus the stroke pad.
	assert.InDelta(t, -14.142-shape.DefaultLineWidth, b.X1, 0.01)
	assert.InDelta(t, 14.142+shape.DefaultLineWidth, b.Y2, 0.01)

	_, ok = extents(nil)
	assert.False(t, ok)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
	}{
		{"hsl(0, 100%, 50%)", 255, 0, 0},
		{"hsl(120,100%,50%)", 0, 255, 0},
		{"hsl(240, 100%, 50%)", 0, 0, 255},
		{"hsl(0, 0%, 100%)", 255, 255, 255},
		{"#3366cc", 0x33, 0x66, 0xcc},
		{"#F0a", 0xff, 0x00, 0xaa},
		{"#12345g", 0, 0, 0},
		{"hsl(-120, 100%, 50%)", 0, 0, 255},
		{"red", 0, 0, 0},
		{"", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, g, b := parseColor(tt.in)
			assert.Equal(t, [3]int{tt.r, tt.g, tt.b}, [3]int{r, g, b})
		})
	}
}

type staticSource []shape.Shape

func (s staticSource) Shapes(context.Context, string) ([]shape.Shape, error) { return s, nil }

func TestHandler(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/rooms/{roomId}/export.pdf", NewHandler(staticSource(board()), nil).ExportPDF)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/room_1/export.pdf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `"room_1.pdf"`)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}
