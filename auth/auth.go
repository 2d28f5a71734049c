/*
Package auth issues and verifies login tokens.

PURPOSE:
  CHAs and CHWs receive an HS256-signed JWT on login. The token carries the
  role and account id so handlers can scope reviews to the caller.

TOKEN CLAIMS:
  role  "cha" or "chw"
  sub   Account id (decimal string)
  name  Display name
  jti   Random UUID
  iss, iat, exp

USAGE:
  issuer := auth.NewIssuer(secret, 2*time.Hour)
  token, err := issuer.Issue(auth.RoleCHA, cha.ID, cha.Name)
  claims, err := issuer.Parse(token)

SEE ALSO:
  - accounts/accounts.go: Issues tokens on login
  - api/middleware.go: Verifies bearer tokens
*/
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role identifies the kind of account a token was issued to.
type Role string

const (
	RoleCHA Role = "cha"
	RoleCHW Role = "chw"
)

// DefaultTTL is the lifetime of a login token.
const DefaultTTL = 2 * time.Hour

// ErrInvalidToken is returned for malformed, tampered or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the application claims carried by a token.
type Claims struct {
	Role Role   `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// SubjectID returns the account id encoded in the subject claim.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration

	// now is replaced in tests.
	now func() time.Time
}

// NewIssuer creates an issuer. A non-positive ttl selects DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		Secret: []byte(secret),
		Issuer: "commodity-engine",
		TTL:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for the account.
func (i *Issuer) Issue(role Role, id int64, name string) (string, error) {
	now := i.clock()
	claims := Claims{
		Role: role,
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.Issuer,
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Parse verifies tokenString and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleCHA && claims.Role != RoleCHW {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) clock() time.Time {
	if i.now == nil {
		return time.Now()
	}
	return i.now()
}
