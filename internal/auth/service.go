package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
)

// TokenTTL is how long a join token stays valid.
const TokenTTL = 24 * time.Hour

const bcryptCost = 12

// Claims identify a peer admitted to one room.
type Claims struct {
	RoomID   string `json:"room"`
	PeerName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	jwtSecret []byte
	now       func() time.Time
}

func NewService(jwtSecret string) *Service {
	return &Service{jwtSecret: []byte(jwtSecret), now: time.Now}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// IssueJoinToken signs a token admitting peerName to roomID.
func (s *Service) IssueJoinToken(roomID, peerName string) (string, error) {
	now := s.now()
	claims := Claims{
		RoomID:   roomID,
		PeerName: peerName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   roomID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateJoinToken checks the signature and expiry of a join token.
func (s *Service) ValidateJoinToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.RoomID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
