package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified principal derived from a bearer token.
type Identity struct {
	UserID int64
	Roles  []string
}

type claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens issued by the auth service.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify checks signature, expiry and issuer, and extracts the user id from
// the subject claim.
func (v *Verifier) Verify(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, errors.New("invalid subject claim")
	}
	return Identity{UserID: userID, Roles: c.Roles}, nil
}
