package room

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inkdrift/inkdrift/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

type joinRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

type joinResponse struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

// Routes mounts the room endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/rooms", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/rooms", h.List).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}/join", h.Join).Methods(http.MethodPost)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	room, err := h.service.Create(r.Context(), req.Name, req.Password)
	if err != nil {
		slog.Error("create room failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.Get(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("list rooms failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	token, err := h.service.Join(r.Context(), roomID, req.Password, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{RoomID: roomID, Token: token})
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, auth.ErrInvalidPassword):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid password"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
