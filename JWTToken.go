package main

import (
	"errors"
	"fmt"

	jwt "github.com/dgrijalva/jwt-go"
)

var (
	// ErrInvalidCapabilities is returned if the set of capabilities is not coherent
	ErrInvalidCapabilities = errors.New("invalid capabilities")

	// ErrInvalidJWTToken is returned if the token isn't valid
	ErrInvalidJWTToken = errors.New("invalid JWT token")
)

// JWTTokenCaps lists what the token holder is allowed to do
type JWTTokenCaps struct {
	// Observe allows watching the floor through a websocket view
	Observe bool `json:"observe"`
	// Control allows adding agents and driving the simulation
	Control bool `json:"control"`
	// Layout allows moving racks and toggling the no-go zone
	Layout  bool       `json:"layout"`
	MaxView [2]float64 `json:"maxView"`
	HTTP    bool       `json:"http"`
}

func (cap *JWTTokenCaps) check() error {
	if !cap.Observe && !cap.Control && !cap.Layout && !cap.HTTP {
		return ErrInvalidCapabilities
	}
	return nil
}

// JWTToken describes the format of JWT Tokens
type JWTToken struct {
	jwt.StandardClaims

	ViewID       string       `json:"viewId"`
	Capabilities JWTTokenCaps `json:"caps"`
}

func parseJWTToken(b64tok string) (*JWTToken, error) {

	var jwttoken JWTToken

	token, err := jwt.ParseWithClaims(b64tok, &jwttoken, func(token *jwt.Token) (interface{}, error) {
		// Don't forget to validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(SecretKey), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTToken); ok && token.Valid {
		if err := claims.Capabilities.check(); err != nil {
			return nil, err
		}
		if claims.Capabilities.MaxView[0] == 0 {
			// the whole floor
			claims.Capabilities.MaxView = [2]float64{Floor.Width, Floor.Height}
		}
		return claims, nil
	}
	return nil, ErrInvalidJWTToken
}

// newJWTToken signs a token with the given capabilities
func newJWTToken(viewID string, caps JWTTokenCaps) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTToken{
		ViewID:       viewID,
		Capabilities: caps,
	})
	return token.SignedString([]byte(SecretKey))
}
