package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	// GIVEN: An issuer
	issuer := NewIssuer("secret", time.Hour)

	// WHEN: A CHA token is issued and parsed
	token, err := issuer.Issue(RoleCHA, 7, "Grace")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)

	// THEN: The claims survive
	assert.Equal(t, RoleCHA, claims.Role)
	assert.Equal(t, "Grace", claims.Name)
	assert.NotEmpty(t, claims.ID)

	id, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestIssuer_DefaultTTL(t *testing.T) {
	issuer := NewIssuer("secret", 0)
	assert.Equal(t, 2*time.Hour, issuer.TTL)
}

func TestIssuer_ExpiredTokenRejected(t *testing.T) {
	// GIVEN: A token issued three hours ago with a two hour lifetime
	issuer := NewIssuer("secret", 2*time.Hour)
	issued := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.Issue(RoleCHW, 1, "Otieno")
	require.NoError(t, err)

	// WHEN: It is parsed later
	issuer.now = func() time.Time { return issued.Add(3 * time.Hour) }
	_, err = issuer.Parse(token)

	// THEN: It is rejected
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_WrongSecretRejected(t *testing.T) {
	token, err := NewIssuer("secret", time.Hour).Issue(RoleCHA, 1, "A")
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_UnknownRoleRejected(t *testing.T) {
	// GIVEN: A correctly signed token with a role we never issue
	issuer := NewIssuer("secret", time.Hour)
	now := time.Now()
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.Issuer,
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.Secret)
	require.NoError(t, err)

	// WHEN/THEN: Parsing fails
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_GarbageRejected(t *testing.T) {
	_, err := NewIssuer("secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
