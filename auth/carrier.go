package auth

import (
	"net/http"
	"time"

	"seclab/crypto"
	"seclab/models"

	"github.com/gorilla/sessions"
)

// Carrier moves the session token between server and browser.
type Carrier interface {
	Token(r *http.Request) string
	Attach(w http.ResponseWriter, r *http.Request, sess models.Session) error
	Clear(w http.ResponseWriter, r *http.Request)
	Wrap(next http.Handler) http.Handler
}

const SessionName = "seclab-session"

// SecureCarrier keeps the token in a signed and encrypted cookie.
type SecureCarrier struct {
	store *sessions.CookieStore
}

func NewSecureCarrier(secret string, ttl time.Duration, secure bool) *SecureCarrier {
	// Auth key for signing (HMAC), encryption key for content (AES)
	store := sessions.NewCookieStore(crypto.SubKey(secret, "auth"), crypto.SubKey(secret, "encryption"))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		store.MaxAge(int(ttl.Seconds()))
	}
	return &SecureCarrier{store: store}
}

func (c *SecureCarrier) Token(r *http.Request) string {
	session, err := c.store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values["token"].(string)
	return token
}

func (c *SecureCarrier) Attach(w http.ResponseWriter, r *http.Request, sess models.Session) error {
	// A cookie that fails to decode still yields a fresh session to fill.
	session, _ := c.store.Get(r, SessionName)
	session.Values["token"] = sess.Token
	return session.Save(r, w)
}

func (c *SecureCarrier) Clear(w http.ResponseWriter, r *http.Request) {
	session, _ := c.store.Get(r, SessionName)
	session.Options.MaxAge = -1
	session.Save(r, w)
}

func (c *SecureCarrier) Wrap(next http.Handler) http.Handler {
	return next
}

const rawCookie = "sid"

// RawCarrier is the vulnerable variant's transport: a bare cookie readable
// from scripts, with no expiry, that can also be set from the URL. INSECURE.
type RawCarrier struct{}

func (RawCarrier) Token(r *http.Request) string {
	if sid := r.URL.Query().Get(rawCookie); sid != "" {
		return sid
	}
	c, err := r.Cookie(rawCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (RawCarrier) Attach(w http.ResponseWriter, r *http.Request, sess models.Session) error {
	http.SetCookie(w, &http.Cookie{Name: rawCookie, Value: sess.Token, Path: "/"})
	return nil
}

func (RawCarrier) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: rawCookie, Value: "", Path: "/", MaxAge: -1})
}

// Wrap plants any ?sid= token from the URL as the browser's cookie.
func (RawCarrier) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid := r.URL.Query().Get(rawCookie); sid != "" {
			http.SetCookie(w, &http.Cookie{Name: rawCookie, Value: sid, Path: "/"})
		}
		next.ServeHTTP(w, r)
	})
}
