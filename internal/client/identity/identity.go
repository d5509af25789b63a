// Package identity supplies the active principal to client components. A
// Provider is injected at construction time; nothing reads the current user
// from global state.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/rpc"
	"github.com/golang-jwt/jwt/v5"
)

// Provider returns the user on whose behalf the client acts and the access
// token presented to the authority.
type Provider interface {
	UserID(ctx context.Context) (string, error)
	AccessToken(ctx context.Context) (string, error)
}

// Static is a fixed principal.
type Static struct {
	ID    string
	Token string
}

func (s Static) UserID(ctx context.Context) (string, error) {
	if s.ID == "" {
		return "", common.ErrUnauthorized
	}
	return s.ID, nil
}

func (s Static) AccessToken(ctx context.Context) (string, error) {
	return s.Token, nil
}

// TokenProvider derives the user from the subject of a JWT access token.
// The signature is checked by the authority, not here.
type TokenProvider struct {
	mu    sync.RWMutex
	token string
	user  string
}

// NewTokenProvider parses token once and fails when it has no subject.
func NewTokenProvider(token string) (*TokenProvider, error) {
	p := &TokenProvider{}
	if err := p.SetToken(token); err != nil {
		return nil, err
	}
	return p, nil
}

// SetToken swaps the token, e.g. after a login from the REPL.
func (p *TokenProvider) SetToken(token string) error {
	claims := &rpc.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return fmt.Errorf("%w: token has no subject", common.ErrInvalidToken)
	}

	p.mu.Lock()
	p.token, p.user = token, sub
	p.mu.Unlock()
	return nil
}

func (p *TokenProvider) UserID(ctx context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == "" {
		return "", common.ErrUnauthorized
	}
	return p.user, nil
}

func (p *TokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return "", errors.New("no access token")
	}
	return p.token, nil
}
