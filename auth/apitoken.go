package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seclab/models"
	"seclab/store"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of an API bearer token.
type Claims struct {
	SessionToken string `json:"sid"`
	jwt.RegisteredClaims
}

// APITokens issues and checks bearer tokens for the JSON API.
type APITokens interface {
	Issue(sess models.Session) (string, error)
	Verify(ctx context.Context, raw string) (models.User, error)
}

func sign(key []byte, sess models.Session) (string, error) {
	claims := Claims{
		SessionToken: sess.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sess.Username,
			IssuedAt: jwt.NewNumericDate(sess.CreatedAt),
		},
	}
	if !sess.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(sess.ExpiresAt)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign api token: %w", err)
	}
	return signed, nil
}

// VerifiedTokens checks the HS256 signature and expiry, then requires the
// embedded session to still be live.
type VerifiedTokens struct {
	key    []byte
	issuer *Issuer
	now    func() time.Time
}

func NewVerifiedTokens(key []byte, issuer *Issuer) *VerifiedTokens {
	return &VerifiedTokens{key: key, issuer: issuer, now: issuer.opts.Now}
}

func (t *VerifiedTokens) Issue(sess models.Session) (string, error) {
	return sign(t.key, sess)
}

func (t *VerifiedTokens) Verify(ctx context.Context, raw string) (models.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return models.User{}, ErrExpired
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	user, err := t.issuer.Validate(ctx, claims.SessionToken)
	if err != nil {
		return models.User{}, err
	}
	if user.Username != claims.Subject {
		return models.User{}, ErrInvalidSession
	}
	return user, nil
}

// UnverifiedTokens reads the claims without checking the signature and
// trusts the subject. Anyone can forge a token for any user. INSECURE.
type UnverifiedTokens struct {
	key   []byte
	users *store.Users
}

func NewUnverifiedTokens(key []byte, users *store.Users) *UnverifiedTokens {
	return &UnverifiedTokens{key: key, users: users}
}

func (t *UnverifiedTokens) Issue(sess models.Session) (string, error) {
	return sign(t.key, sess)
}

func (t *UnverifiedTokens) Verify(ctx context.Context, raw string) (models.User, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	user, err := t.users.Lookup(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidSession
	}
	return user, err
}
