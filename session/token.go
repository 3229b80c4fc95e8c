package session

import (
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

var (
	errMalformedToken = errors.New("malformed token")
	errTokenExpired   = errors.New("token expired")
)

// TokenInspector rejects bearer tokens that are certain to fail before
// they are stored. Only JWT-shaped tokens are inspected: a JWT is refused
// when it does not parse, its exp has passed or, when a key set is
// configured, its signature does not verify. Opaque tokens are left to
// the who-am-I lookup. Claims are never used to derive the role.
type TokenInspector struct {
	JWKS *keyfunc.JWKS

	parser *jwt.Parser
	leeway time.Duration
	now    func() time.Time
}

// NewTokenInspector creates an inspector. jwks may be nil, in which case
// signatures are not checked.
func NewTokenInspector(jwks *keyfunc.JWKS) *TokenInspector {
	return &TokenInspector{
		JWKS:   jwks,
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
		leeway: time.Minute,
		now:    time.Now,
	}
}

// Check returns nil when token may be used.
func (i *TokenInspector) Check(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errMalformedToken
	}
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := jwt.MapClaims{}
	var err error
	if i.JWKS != nil {
		_, err = i.parser.ParseWithClaims(token, claims, i.JWKS.Keyfunc)
	} else {
		_, _, err = i.parser.ParseUnverified(token, claims)
	}
	if err != nil {
		return err
	}

	// Tokens without exp are left to the backend to judge.
	if !claims.VerifyExpiresAt(i.now().Add(-i.leeway).Unix(), false) {
		return errTokenExpired
	}
	return nil
}
