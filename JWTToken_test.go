package main

import (
	"testing"

	jwt "github.com/dgrijalva/jwt-go"
)

func TestParseJWTToken(t *testing.T) {
	SecretKey = "testKey"

	tok, err := newJWTToken("view1", JWTTokenCaps{Observe: true})
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := parseJWTToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.ViewID != "view1" || !parsed.Capabilities.Observe || parsed.Capabilities.Control {
		t.Errorf("unexpected token %+v", parsed)
	}
	if parsed.Capabilities.MaxView != [2]float64{1000, 700} {
		t.Errorf("max view should default to the floor, got %v", parsed.Capabilities.MaxView)
	}
}

func TestParseJWTTokenErrors(t *testing.T) {
	SecretKey = "testKey"

	if _, err := parseJWTToken("garbage"); err == nil {
		t.Error("garbage should not parse")
	}

	noCaps, _ := newJWTToken("", JWTTokenCaps{})
	if _, err := parseJWTToken(noCaps); err != ErrInvalidCapabilities {
		t.Errorf("expected ErrInvalidCapabilities, got %v", err)
	}

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTToken{Capabilities: JWTTokenCaps{HTTP: true}})
	signed, _ := other.SignedString([]byte("otherKey"))
	if _, err := parseJWTToken(signed); err == nil {
		t.Error("a token signed with another key should be rejected")
	}
}
