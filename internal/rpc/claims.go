package rpc

import "github.com/golang-jwt/jwt/v5"

// Claims are the access token claims. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
}
