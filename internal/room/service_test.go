package room

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkdrift/inkdrift/internal/auth"
	"github.com/inkdrift/inkdrift/internal/store"
)

func newService() (*Service, *auth.Service) {
	a := auth.NewService("secret")
	return NewService(store.NewMemory().KV(Namespace), a), a
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newService()
	ctx := context.Background()

	open, err := s.Create(ctx, "open", "")
	require.NoError(t, err)
	assert.False(t, open.Protected)
	assert.Contains(t, open.ID, "room_")

	locked, err := s.Create(ctx, "locked", "pw")
	require.NoError(t, err)
	assert.True(t, locked.Protected)

	got, err := s.Get(ctx, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, "locked", got.Name)

	rooms, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	_, err = s.Get(ctx, "room_missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinAndAuthorize(t *testing.T) {
	s, a := newService()
	ctx := context.Background()
	locked, err := s.Create(ctx, "locked", "pw")
	require.NoError(t, err)
	open, err := s.Create(ctx, "open", "")
	require.NoError(t, err)

	_, err = s.Join(ctx, locked.ID, "wrong", "ada")
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	token, err := s.Join(ctx, locked.ID, "pw", "ada")
	require.NoError(t, err)
	name, err := s.Authorize(ctx, locked.ID, token)
	require.NoError(t, err)
	assert.Equal(t, "ada", name)

	_, err = s.Authorize(ctx, locked.ID, "")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	other, err := a.IssueJoinToken(open.ID, "bob")
	require.NoError(t, err)
	_, err = s.Authorize(ctx, locked.ID, other)
	assert.ErrorIs(t, err, ErrWrongRoom)

	name, err = s.Authorize(ctx, open.ID, "")
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = s.Authorize(ctx, "room_adhoc", "")
	assert.NoError(t, err)
}

func TestHandler(t *testing.T) {
	s, _ := newService()
	r := mux.NewRouter()
	NewHandler(s).Routes(r)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
		return w
	}

	w := do(http.MethodPost, "/rooms", createRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, "/rooms", createRequest{Name: "board", Password: "pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "passwordHash")
	var created Room
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	w = do(http.MethodGet, "/rooms/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(http.MethodGet, "/rooms/room_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodPost, "/rooms/"+created.ID+"/join", joinRequest{Name: "ada", Password: "no"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(http.MethodPost, "/rooms/"+created.ID+"/join", joinRequest{Name: "ada", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var joined joinResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&joined))
	assert.Equal(t, created.ID, joined.RoomID)
	assert.NotEmpty(t, joined.Token)
}
