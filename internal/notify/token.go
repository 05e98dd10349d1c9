package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"focustimer/backend/internal/clock"
)

var ErrInvalidToken = errors.New("invalid notification token")

// ActionClaims bind a notification action to the run it was drawn for.
type ActionClaims struct {
	Action Action `json:"act,omitempty"`
	Tag    string `json:"tag"`
	Run    uint64 `json:"run"`
	jwt.RegisteredClaims
}

type ActionSigner struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewActionSigner(secret string, ttl time.Duration, c clock.Clock) *ActionSigner {
	if c == nil {
		c = clock.System{}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ActionSigner{secret: []byte(secret), ttl: ttl, clock: c}
}

func (s *ActionSigner) Sign(action Action, tag string, run uint64) (string, error) {
	now := s.clock.Now()
	claims := ActionClaims{
		Action: action,
		Tag:    tag,
		Run:    run,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tag,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign action token: %w", err)
	}
	return signed, nil
}

func (s *ActionSigner) Parse(raw string) (*ActionClaims, error) {
	claims := &ActionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
