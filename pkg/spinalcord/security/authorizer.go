package security

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrResetDenied indicates a reset request was not authorized.
var ErrResetDenied = errors.New("safe mode reset denied")

// ResetRequest describes an administrative attempt to leave safe mode.
type ResetRequest struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
	Token    string `json:"-"`
}

// Authorizer decides whether a reset request may proceed.
// A nil return grants the request.
type Authorizer interface {
	Authorize(ctx context.Context, req ResetRequest) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, req ResetRequest) error

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx context.Context, req ResetRequest) error {
	return f(ctx, req)
}

// DenyAll refuses every request. It is the default authorizer.
type DenyAll struct{}

// Authorize implements Authorizer.
func (DenyAll) Authorize(context.Context, ResetRequest) error {
	return ErrResetDenied
}

// TokenAuthorizer grants requests carrying a shared secret.
type TokenAuthorizer struct {
	token []byte
}

// NewTokenAuthorizer creates a TokenAuthorizer. An empty token denies
// everything.
func NewTokenAuthorizer(token string) *TokenAuthorizer {
	return &TokenAuthorizer{token: []byte(token)}
}

// Authorize implements Authorizer.
func (a *TokenAuthorizer) Authorize(_ context.Context, req ResetRequest) error {
	if len(a.token) == 0 {
		return ErrResetDenied
	}
	if req.Operator == "" {
		return errors.Join(ErrResetDenied, errors.New("operator is required"))
	}
	if subtle.ConstantTimeCompare(a.token, []byte(req.Token)) != 1 {
		return ErrResetDenied
	}
	return nil
}
