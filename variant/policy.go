// Package variant holds the two behaviour policies of the lab: the hardened
// GOOD policy and the deliberately vulnerable BAD policy. Each is a separate
// type so that every unsafe choice is visible at its definition.
package variant

import (
	"io"
	"io/fs"
	"net/http"
	"time"

	"seclab/auth"
	"seclab/crypto"
	"seclab/gate"
	"seclab/query"
	"seclab/store"
)

type Policy interface {
	query.Builder

	Mode() Mode
	Hasher() crypto.PasswordHasher
	Sealer() crypto.Sealer
	// SessionTTL is how long an issued session lives; zero means forever.
	SessionTTL() time.Duration
	Gate() gate.Gate
	Carrier() auth.Carrier
	IssuerOptions() auth.IssuerOptions
	APITokens(key []byte, issuer *auth.Issuer, users *store.Users) auth.APITokens

	// Render executes the named page inside templates/layout.html.
	Render(w io.Writer, files fs.FS, name string, funcs map[string]any, data any) error
	// Protect wraps the whole HTTP surface.
	Protect(next http.Handler) http.Handler

	// AllowOrigin decides whether the JSON API answers a cross-origin caller.
	AllowOrigin(origin string) bool
	VerboseErrors() bool
	RequireCaptcha() bool
	LimitLogins() bool
}

type Options struct {
	SessionKey string
	SessionTTL time.Duration
	// Hasher is used by the GOOD policy; BAD always stores plaintext.
	Hasher crypto.PasswordHasher
	// SecureCookies marks cookies Secure, for deployments behind TLS.
	SecureCookies  bool
	TrustedOrigins []string
}

func New(mode Mode, opts Options) Policy {
	if mode == Bad {
		return newBadPolicy(opts)
	}
	return newGoodPolicy(opts)
}
