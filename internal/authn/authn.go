// Package authn verifies bearer credentials on chat routes. Every failure is
// reported as one of a closed set of kinds, mapped once here.
package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is a recognised authentication failure.
type Kind string

const (
	KindMissingCredentials   Kind = "missing_credentials"
	KindMalformedCredentials Kind = "malformed_credentials"
	KindTokenExpired         Kind = "token_expired"
	KindInvalidToken         Kind = "invalid_token"
	KindInvalidClaims        Kind = "invalid_claims"
	KindUnknown              Kind = "unknown"
)

var kinds = map[Kind]bool{
	KindMissingCredentials:   true,
	KindMalformedCredentials: true,
	KindTokenExpired:         true,
	KindInvalidToken:         true,
	KindInvalidClaims:        true,
}

// ParseKind maps a wire value back onto a Kind. Anything unrecognised is
// KindUnknown.
func ParseKind(s string) Kind {
	if k := Kind(s); kinds[k] {
		return k
	}
	return KindUnknown
}

// Failure is the only error type authenticators return.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("authentication failed: %s", f.Kind)
	}
	return fmt.Sprintf("authentication failed: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
}

// Authenticator validates a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", &Failure{Kind: KindMissingCredentials}
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", &Failure{Kind: KindMalformedCredentials}
	}
	return strings.TrimSpace(token), nil
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the principal attached by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
