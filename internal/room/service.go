// Package room manages room metadata and admission. A room without a password
// is open to anyone who knows its ID; a protected room admits only holders of
// a join token issued by Join.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inkdrift/inkdrift/internal/auth"
	"github.com/inkdrift/inkdrift/internal/store"
	"github.com/inkdrift/inkdrift/internal/typeid"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrWrongRoom    = errors.New("token was issued for another room")
)

// Namespace is the store namespace that holds room records. Boards never
// use a leading underscore, so it cannot clash with a room ID.
const Namespace = "_rooms"

type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Protected bool      `json:"protected"`
	CreatedAt time.Time `json:"createdAt"`
}

type record struct {
	Room
	PasswordHash string `json:"passwordHash,omitempty"`
}

type Service struct {
	kv   store.KV
	auth *auth.Service
	now  func() time.Time
}

func NewService(kv store.KV, authSvc *auth.Service) *Service {
	return &Service{kv: kv, auth: authSvc, now: time.Now}
}

func (s *Service) Create(ctx context.Context, name, password string) (*Room, error) {
	rec := record{Room: Room{
		ID:        typeid.NewRoomID(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return nil, err
		}
		rec.PasswordHash = hash
		rec.Protected = true
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal room: %w", err)
	}
	if err := s.kv.Put(ctx, rec.ID, data); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &rec.Room, nil
}

func (s *Service) Get(ctx context.Context, roomID string) (*Room, error) {
	rec, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &rec.Room, nil
}

// List returns every room ordered by ID, which follows creation order.
func (s *Service) List(ctx context.Context) ([]Room, error) {
	recs, err := s.kv.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms := make([]Room, 0, len(recs))
	for _, r := range recs {
		var rec record
		if err := json.Unmarshal(r.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode room %s: %w", r.Key, err)
		}
		rooms = append(rooms, rec.Room)
	}
	return rooms, nil
}

// Join checks the room password and returns a join token for peerName.
func (s *Service) Join(ctx context.Context, roomID, password, peerName string) (string, error) {
	rec, err := s.load(ctx, roomID)
	if err != nil {
		return "", err
	}
	if rec.Protected {
		if err := auth.CheckPassword(rec.PasswordHash, password); err != nil {
			return "", err
		}
	}
	return s.auth.IssueJoinToken(roomID, peerName)
}

// Authorize admits a websocket to roomID. Unknown rooms are ad-hoc boards
// and, like unprotected rooms, need no token.
func (s *Service) Authorize(ctx context.Context, roomID, token string) (string, error) {
	rec, err := s.load(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !rec.Protected && token == "" {
		return "", nil
	}

	claims, err := s.auth.ValidateJoinToken(token)
	if err != nil {
		return "", err
	}
	if claims.RoomID != roomID {
		return "", ErrWrongRoom
	}
	return claims.PeerName, nil
}

func (s *Service) load(ctx context.Context, roomID string) (*record, error) {
	if typeid.Validate(roomID, typeid.PrefixRoom) != nil {
		return nil, ErrRoomNotFound
	}
	data, err := s.kv.Get(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &rec, nil
}
