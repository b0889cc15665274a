package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seclab/crypto"
	"seclab/db"
	"seclab/models"
	"seclab/query"
	"seclab/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	issuer   *Issuer
	users    *store.Users
	sessions *store.Sessions
	clock    *clock
}

func newFixture(t *testing.T, good bool) *fixture {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hasher crypto.PasswordHasher = crypto.PlaintextHasher{}
	builder := query.BuilderFunc(query.Splice)
	opts := IssuerOptions{AdoptPresentedToken: true, RevealFailureReason: true}
	if good {
		hasher = crypto.Argon2Hasher{}
		builder = query.BuilderFunc(query.Bind)
		opts = IssuerOptions{TTL: 30 * time.Minute, RevokeOnPasswordChange: true}
	}
	require.NoError(t, db.Seed(context.Background(), conn, hasher))

	clk := &clock{now: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}
	opts.Now = clk.Now

	users := store.NewUsers(conn, builder, hasher)
	sessions := store.NewSessions(conn)
	issuer, err := NewIssuer(users, sessions, opts)
	require.NoError(t, err)
	return &fixture{issuer: issuer, users: users, sessions: sessions, clock: clk}
}

func TestAuthenticateSeededAccounts(t *testing.T) {
	ctx := context.Background()
	for _, good := range []bool{true, false} {
		f := newFixture(t, good)
		for _, acct := range db.DefaultAccounts {
			sess, err := f.issuer.Authenticate(ctx, acct.Username, acct.Password)
			require.NoError(t, err, acct.Username)
			assert.Equal(t, acct.Username, sess.Username)
			assert.NotEmpty(t, sess.Token)

			_, err = f.issuer.Authenticate(ctx, acct.Username, "wrong")
			assert.ErrorIs(t, err, ErrInvalidCredentials, acct.Username)
		}
		_, err := f.issuer.Authenticate(ctx, "nobody", "SuperSecret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestFailureReasonDisclosure(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t, true).issuer.Authenticate(ctx, "nobody", "x")
	assert.Equal(t, ErrInvalidCredentials, err)
	_, err = newFixture(t, true).issuer.Authenticate(ctx, "admin", "x")
	assert.Equal(t, ErrInvalidCredentials, err)

	bad := newFixture(t, false)
	_, err = bad.issuer.Authenticate(ctx, "nobody", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "unknown user")
	_, err = bad.issuer.Authenticate(ctx, "admin", "x")
	assert.Contains(t, err.Error(), "wrong password")
}

func TestValidateUntilExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	sess, err := f.issuer.Authenticate(ctx, "admin", "SuperSecret")
	require.NoError(t, err)
	assert.Equal(t, f.clock.now.Add(30*time.Minute), sess.ExpiresAt)

	f.clock.now = f.clock.now.Add(29*time.Minute + 59*time.Second)
	user, err := f.issuer.Validate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)

	f.clock.now = sess.ExpiresAt
	_, err = f.issuer.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrExpired)

	// The expired row is gone, so a second look is simply invalid.
	_, err = f.issuer.Validate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestBadSessionsNeverExpire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	sess, err := f.issuer.Authenticate(ctx, "tim", "12345678")
	require.NoError(t, err)
	assert.True(t, sess.ExpiresAt.IsZero())

	f.clock.now = f.clock.now.Add(365 * 24 * time.Hour)
	_, err = f.issuer.Validate(ctx, sess.Token)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	for _, good := range []bool{true, false} {
		f := newFixture(t, good)
		sess, err := f.issuer.Authenticate(ctx, "elliot", "123123123")
		require.NoError(t, err)

		require.NoError(t, f.issuer.Logout(ctx, sess.Token))
		_, err = f.issuer.Validate(ctx, sess.Token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.issuer.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = f.issuer.Validate(context.Background(), "made-up")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionFixation(t *testing.T) {
	ctx := context.Background()

	bad := newFixture(t, false)
	sess, err := bad.issuer.AuthenticateWithToken(ctx, "tim", "12345678", "attacker-chosen")
	require.NoError(t, err)
	assert.Equal(t, "attacker-chosen", sess.Token)

	// A token already in use falls back to a fresh one.
	again, err := bad.issuer.AuthenticateWithToken(ctx, "elliot", "123123123", "attacker-chosen")
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", again.Token)

	good := newFixture(t, true)
	sess, err = good.issuer.AuthenticateWithToken(ctx, "tim", "12345678", "attacker-chosen")
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.Token)
}

func TestChangePasswordRevocation(t *testing.T) {
	ctx := context.Background()
	for _, good := range []bool{true, false} {
		f := newFixture(t, good)
		current, err := f.issuer.Authenticate(ctx, "tim", "12345678")
		require.NoError(t, err)
		other, err := f.issuer.Authenticate(ctx, "tim", "12345678")
		require.NoError(t, err)

		require.NoError(t, f.issuer.ChangePassword(ctx, "tim", "correct horse", current.Token))

		_, err = f.issuer.Authenticate(ctx, "tim", "12345678")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.issuer.Authenticate(ctx, "tim", "correct horse")
		assert.NoError(t, err)

		_, err = f.issuer.Validate(ctx, current.Token)
		assert.NoError(t, err)
		_, err = f.issuer.Validate(ctx, other.Token)
		if good {
			assert.ErrorIs(t, err, ErrInvalidSession)
		} else {
			assert.NoError(t, err)
		}
	}

	f := newFixture(t, true)
	assert.ErrorIs(t, f.issuer.ChangePassword(ctx, "nobody", "x", ""), store.ErrNotFound)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.issuer.Authenticate(ctx, "admin", "SuperSecret")
	require.NoError(t, err)
	n, err := f.issuer.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.now = f.clock.now.Add(time.Hour)
	n, err = f.issuer.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSecureCarrier(t *testing.T) {
	carrier := NewSecureCarrier("test-secret-key-12345678901234567890123456789012", 30*time.Minute, false)
	sess := models.Session{Token: "opaque-token", Username: "tim"}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/login", nil)
	require.NoError(t, carrier.Attach(w, r, sess))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 1800, cookies[0].MaxAge)
	assert.NotContains(t, cookies[0].Value, "opaque-token")

	r2 := httptest.NewRequest("GET", "/notes", nil)
	r2.AddCookie(cookies[0])
	assert.Equal(t, "opaque-token", carrier.Token(r2))

	// A cookie signed with another key is ignored.
	other := NewSecureCarrier("another-secret", 0, false)
	r3 := httptest.NewRequest("GET", "/notes", nil)
	r3.AddCookie(cookies[0])
	assert.Empty(t, other.Token(r3))

	// URL tokens are never honoured.
	r4 := httptest.NewRequest("GET", "/notes?sid=opaque-token", nil)
	assert.Empty(t, carrier.Token(r4))
}

func TestRawCarrier(t *testing.T) {
	carrier := RawCarrier{}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/login", nil)
	require.NoError(t, carrier.Attach(w, r, models.Session{Token: "plain"}))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "plain", cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly)

	r2 := httptest.NewRequest("GET", "/notes", nil)
	r2.AddCookie(cookies[0])
	assert.Equal(t, "plain", carrier.Token(r2))

	r3 := httptest.NewRequest("GET", "/login?sid=planted", nil)
	assert.Equal(t, "planted", carrier.Token(r3))

	w = httptest.NewRecorder()
	called := false
	carrier.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).ServeHTTP(w, r3)
	assert.True(t, called)
	planted := w.Result().Cookies()
	require.Len(t, planted, 1)
	assert.Equal(t, "sid", planted[0].Name)
	assert.Equal(t, "planted", planted[0].Value)
}
