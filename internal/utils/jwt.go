// Package utils provides helpers for password hashing and token issuing.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeyKind selects which signing key a token is verified against.
type KeyKind int

const (
	AccessKey KeyKind = iota
	RefreshKey
)

func (k KeyKind) String() string {
	if k == RefreshKey {
		return "refresh"
	}
	return "access"
}

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and unexpected
	// algorithms.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the signature is good but exp passed.
	ErrTokenExpired = errors.New("token expired")
)

// Identity is what a token says about its holder.
type Identity struct {
	ID       string
	FullName string
	Avatar   string
	Roles    []string
}

// Claims is the JWT payload carried by both access and refresh tokens.
type Claims struct {
	UserID   string   `json:"id"`
	FullName string   `json:"fullName"`
	Avatar   string   `json:"avatar"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Expired reports whether the exp claim lies before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time)
}

// TokenPair is an access token together with its refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer signs and verifies HS256 tokens with two independent secrets.
type Issuer struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer builds an Issuer.  Both secrets are required and must differ so
// a refresh token can never pass as an access token.
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &Issuer{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock replaces the issuer's time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Now is the issuer's notion of the current time.
func (i *Issuer) Now() time.Time { return i.now() }

// Issue signs a fresh access/refresh pair for id.
func (i *Issuer) Issue(id Identity) (TokenPair, error) {
	access, err := i.IssueAccess(id)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.IssueRefresh(id)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccess signs an access token with the access secret.
func (i *Issuer) IssueAccess(id Identity) (string, error) {
	return i.sign(id, AccessKey, i.accessKey, i.accessTTL)
}

// IssueRefresh signs a refresh token with the refresh secret.
func (i *Issuer) IssueRefresh(id Identity) (string, error) {
	return i.sign(id, RefreshKey, i.refreshKey, i.refreshTTL)
}

func (i *Issuer) sign(id Identity, kind KeyKind, key []byte, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := Claims{
		UserID:   id.ID,
		FullName: id.FullName,
		Avatar:   id.Avatar,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// jti keeps two tokens minted in the same second distinct.
			ID: uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry.  A well-signed but expired
// token returns its claims together with ErrTokenExpired so callers that
// handle expiry (refresh rotation) can still identify the holder.
func (i *Issuer) Verify(token string, kind KeyKind) (*Claims, error) {
	key := i.accessKey
	if kind == RefreshKey {
		key = i.refreshKey
	}
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing id claim", ErrTokenInvalid)
	}
	return claims, nil
}
