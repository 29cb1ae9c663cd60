package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inkdrift/inkdrift/internal/shape"
)

// Source loads the current shapes of a room. A room that was never written
// has no shapes and exports as a blank page.
type Source interface {
	Shapes(ctx context.Context, roomID string) ([]shape.Shape, error)
}

type Handler struct {
	source Source
	logger *slog.Logger
}

func NewHandler(source Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{source: source, logger: logger}
}

// ExportPDF serves GET /rooms/{roomId}/export.pdf.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	shapes, err := h.source.Shapes(r.Context(), roomID)
	if err != nil {
		h.logger.Error("load room for export", "error", err, "room", roomID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := PDF(&buf, roomID, shapes); err != nil {
		h.logger.Error("export pdf", "error", err, "room", roomID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", roomID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())

	h.logger.Info("export complete", "room", roomID, "shapes", len(shapes), "size", buf.Len())
}
