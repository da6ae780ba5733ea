package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		kind   Kind
	}{
		{"valid", "Bearer abc.def", "abc.def", ""},
		{"lowercase scheme", "bearer abc", "abc", ""},
		{"missing", "", "", KindMissingCredentials},
		{"no scheme", "abc", "", KindMalformedCredentials},
		{"wrong scheme", "Basic dXNlcg==", "", KindMalformedCredentials},
		{"empty token", "Bearer   ", "", KindMalformedCredentials},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token, err := BearerToken(tc.header)
			if tc.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, tc.token, token)
				return
			}
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestJWT_IssueAndAuthenticate(t *testing.T) {
	j := NewJWT("secret")
	token, err := j.Issue("user-42", time.Minute)
	require.NoError(t, err)

	p, err := j.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", p.Subject)
}

func TestJWT_FailureKinds(t *testing.T) {
	j := NewJWT("secret")

	expired, err := j.Issue("user-42", -time.Minute)
	require.NoError(t, err)

	foreign, err := NewJWT("other-secret").Issue("user-42", time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		kind  Kind
	}{
		{"expired", expired, KindTokenExpired},
		{"bad signature", foreign, KindInvalidToken},
		{"garbage", "not-a-jwt", KindMalformedCredentials},
		{"missing subject", noSubject, KindInvalidClaims},
		{"wrong algorithm", wrongAlg, KindInvalidToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := j.Authenticate(context.Background(), tc.token)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindTokenExpired, ParseKind("token_expired"))
	assert.Equal(t, KindUnknown, ParseKind("auth/user-not-found"))
	assert.Equal(t, KindUnknown, ParseKind(""))
}

func TestKindOf_NonFailure(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Subject: "s"})
	p, ok := PrincipalFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s", p.Subject)
}
