package authn

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var _ Authenticator = (*JWTAuthenticator)(nil)

// JWTAuthenticator accepts HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWT(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Issue signs a token for subject that expires after ttl.
func (j *JWTAuthenticator) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTAuthenticator) Authenticate(_ context.Context, token string) (Principal, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, &Failure{Kind: classify(err), Err: err}
	}

	if claims.Subject == "" {
		return Principal{}, &Failure{Kind: KindInvalidClaims, Err: errors.New("missing subject")}
	}
	return Principal{Subject: claims.Subject}, nil
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return KindMalformedCredentials
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return KindInvalidClaims
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return KindInvalidToken
	}
	return KindUnknown
}
