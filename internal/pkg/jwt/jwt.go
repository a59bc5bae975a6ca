// Package jwt verifies Supabase access tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	jwtlib "github.com/golang-jwt/jwt/v5"
)

const defaultLeeway = 30 * time.Second

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoKey        = errors.New("no verification key for signing method")
)

// Claims are the Supabase token fields this service reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwtlib.RegisteredClaims
}

type Options struct {
	// Secret verifies HS256 tokens (legacy Supabase projects).
	Secret string
	// JWKSURL enables asymmetric tokens signed with the project's published keys.
	JWKSURL string
	// Issuer is checked when set, e.g. https://<project>.supabase.co/auth/v1.
	Issuer string
}

type Verifier struct {
	secret []byte
	jwks   keyfunc.Keyfunc
	parser *jwtlib.Parser
}

func NewVerifier(opts Options) (*Verifier, error) {
	if opts.Secret == "" && opts.JWKSURL == "" {
		return nil, errors.New("jwt: a secret or a JWKS URL is required")
	}

	v := &Verifier{}
	methods := []string{}
	if opts.Secret != "" {
		v.secret = []byte(opts.Secret)
		methods = append(methods, jwtlib.SigningMethodHS256.Name)
	}
	if opts.JWKSURL != "" {
		k, err := keyfunc.NewDefault([]string{opts.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("jwt: init JWKS keyfunc: %w", err)
		}
		v.jwks = k
		methods = append(methods,
			jwtlib.SigningMethodRS256.Name,
			jwtlib.SigningMethodES256.Name,
		)
	}

	parserOpts := []jwtlib.ParserOption{
		jwtlib.WithLeeway(defaultLeeway),
		jwtlib.WithValidMethods(methods),
		jwtlib.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwtlib.WithIssuer(opts.Issuer))
	}
	v.parser = jwtlib.NewParser(parserOpts...)
	return v, nil
}

// Verify parses and validates a bearer token. The subject is the user id.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyFor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims, nil
}

func (v *Verifier) keyFor(t *jwtlib.Token) (any, error) {
	switch t.Method.(type) {
	case *jwtlib.SigningMethodHMAC:
		if v.secret == nil {
			return nil, ErrNoKey
		}
		return v.secret, nil
	default:
		if v.jwks == nil {
			return nil, ErrNoKey
		}
		return v.jwks.Keyfunc(t)
	}
}
