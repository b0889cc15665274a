package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seclab/crypto"
	"seclab/models"
	"seclab/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrExpired            = errors.New("session expired")
)

const tokenBytes = 32

type IssuerOptions struct {
	// TTL bounds a session's lifetime. Zero issues sessions that never expire.
	TTL time.Duration
	// RevokeOnPasswordChange drops the user's other sessions when the
	// password changes.
	RevokeOnPasswordChange bool
	// AdoptPresentedToken reuses a token the client already holds instead of
	// minting a fresh one at login (session fixation).
	AdoptPresentedToken bool
	// RevealFailureReason says in the error which credential factor failed.
	RevealFailureReason bool
	Now                 func() time.Time
}

// Issuer checks credentials and owns the session lifecycle.
type Issuer struct {
	users    *store.Users
	sessions *store.Sessions
	opts     IssuerOptions
	// dummy is verified against when the username is unknown, so that a
	// missing account costs as much as a wrong password.
	dummy string
}

func NewIssuer(users *store.Users, sessions *store.Sessions, opts IssuerOptions) (*Issuer, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	dummy, err := users.Hasher().Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Issuer{users: users, sessions: sessions, opts: opts, dummy: dummy}, nil
}

func (i *Issuer) TTL() time.Duration {
	return i.opts.TTL
}

func (i *Issuer) Authenticate(ctx context.Context, username, password string) (models.Session, error) {
	return i.AuthenticateWithToken(ctx, username, password, "")
}

// AuthenticateWithToken is Authenticate for a client that may already carry
// a session token.
func (i *Issuer) AuthenticateWithToken(ctx context.Context, username, password, presented string) (models.Session, error) {
	hasher := i.users.Hasher()

	user, err := i.users.Lookup(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		hasher.Verify(password, i.dummy)
		return models.Session{}, i.failure("unknown user %q", username)
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("authenticate: %w", err)
	}
	if !hasher.Verify(password, user.Password) {
		return models.Session{}, i.failure("wrong password for %q", user.Username)
	}

	if i.opts.AdoptPresentedToken && presented != "" {
		sess := i.newSession(presented, user.Username)
		err := i.sessions.Insert(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, store.ErrDuplicateToken) {
			return models.Session{}, fmt.Errorf("authenticate: %w", err)
		}
	}

	token, err := crypto.GenerateToken(tokenBytes)
	if err != nil {
		return models.Session{}, fmt.Errorf("authenticate: %w", err)
	}
	sess := i.newSession(token, user.Username)
	if err := i.sessions.Insert(ctx, sess); err != nil {
		return models.Session{}, fmt.Errorf("authenticate: %w", err)
	}
	return sess, nil
}

func (i *Issuer) newSession(token, username string) models.Session {
	now := i.opts.Now()
	sess := models.Session{Token: token, Username: username, CreatedAt: now}
	if i.opts.TTL > 0 {
		sess.ExpiresAt = now.Add(i.opts.TTL)
	}
	return sess
}

func (i *Issuer) failure(format string, args ...any) error {
	if !i.opts.RevealFailureReason {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidCredentials}, args...)...)
}

// Validate resolves token to the user it was issued for.
func (i *Issuer) Validate(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrInvalidSession
	}

	sess, err := i.sessions.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidSession
	}
	if err != nil {
		return models.User{}, fmt.Errorf("validate session: %w", err)
	}

	if sess.Expired(i.opts.Now()) {
		if err := i.sessions.Delete(ctx, token); err != nil {
			return models.User{}, fmt.Errorf("drop expired session: %w", err)
		}
		return models.User{}, ErrExpired
	}

	user, err := i.users.Lookup(ctx, sess.Username)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrInvalidSession
	}
	if err != nil {
		return models.User{}, fmt.Errorf("validate session: %w", err)
	}
	return user, nil
}

func (i *Issuer) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return i.sessions.Delete(ctx, token)
}

// ChangePassword stores a new password for username. current is the token of
// the session making the change; it survives revocation.
func (i *Issuer) ChangePassword(ctx context.Context, username, newPassword, current string) error {
	if err := i.users.UpdatePassword(ctx, username, newPassword); err != nil {
		return err
	}
	if !i.opts.RevokeOnPasswordChange {
		return nil
	}
	if _, err := i.sessions.DeleteForUser(ctx, username, current); err != nil {
		return err
	}
	return nil
}

// Sweep deletes sessions whose expiry has passed.
func (i *Issuer) Sweep(ctx context.Context) (int64, error) {
	return i.sessions.DeleteExpired(ctx, i.opts.Now())
}
