package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer mints and verifies resume tokens: short HS256 JWTs binding a
// session to its test and taker so a disconnected client can reclaim its
// state without server help.
type TokenIssuer struct{ hmac []byte }

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{hmac: []byte(secret)}
}

type Claims struct {
	SessionID string `json:"sid"`
	TestID    string `json:"tid"`
	jwt.RegisteredClaims
}

func (t *TokenIssuer) Issue(sessionID, testID, userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		TestID:    testID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "testnav",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.hmac)
}

func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return t.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.SessionID == "" {
		return nil, errors.New("session: invalid resume token")
	}
	return c, nil
}
