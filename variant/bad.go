package variant

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"text/template"
	"time"

	"seclab/auth"
	"seclab/crypto"
	"seclab/gate"
	"seclab/query"
	"seclab/store"
)

// badPolicy is the intentionally vulnerable reference variant. Every method
// here reproduces a flaw the lab exists to demonstrate. Never use it outside
// the lab.
type badPolicy struct {
	opts Options
}

func newBadPolicy(opts Options) *badPolicy {
	return &badPolicy{opts: opts}
}

func (p *badPolicy) Mode() Mode { return Bad }

// BuildQuery pastes input straight into the SQL text (SQL injection).
func (p *badPolicy) BuildQuery(tmpl string, inputs ...string) query.Query {
	return query.Splice(tmpl, inputs...)
}

// Hasher stores passwords in plaintext.
func (p *badPolicy) Hasher() crypto.PasswordHasher { return crypto.PlaintextHasher{} }

// Sealer leaves note bodies readable in the database file.
func (p *badPolicy) Sealer() crypto.Sealer { return crypto.NopSealer{} }

// Gate lets any logged-in user act on any resource (broken access control).
func (p *badPolicy) Gate() gate.Gate { return gate.AuthenticatedGate{} }

// Carrier uses a script-readable cookie that the URL can set.
func (p *badPolicy) Carrier() auth.Carrier { return auth.RawCarrier{} }

// SessionTTL is zero: sessions never expire.
func (p *badPolicy) SessionTTL() time.Duration { return 0 }

// IssuerOptions: no expiry, no revocation, fixation, and which factor
// failed is disclosed.
func (p *badPolicy) IssuerOptions() auth.IssuerOptions {
	return auth.IssuerOptions{
		AdoptPresentedToken: true,
		RevealFailureReason: true,
	}
}

// APITokens trusts unsigned claims.
func (p *badPolicy) APITokens(key []byte, _ *auth.Issuer, users *store.Users) auth.APITokens {
	return auth.NewUnverifiedTokens(key, users)
}

// Render uses text/template, which interpolates values unescaped (XSS).
func (p *badPolicy) Render(w io.Writer, files fs.FS, name string, funcs map[string]any, data any) error {
	tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// Protect adds nothing: no CSRF tokens, no security headers.
func (p *badPolicy) Protect(next http.Handler) http.Handler { return next }

// AllowOrigin answers every origin.
func (p *badPolicy) AllowOrigin(string) bool { return true }

func (p *badPolicy) VerboseErrors() bool  { return true }
func (p *badPolicy) RequireCaptcha() bool { return false }
func (p *badPolicy) LimitLogins() bool    { return false }
