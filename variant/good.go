package variant

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"time"

	"seclab/auth"
	"seclab/crypto"
	"seclab/gate"
	"seclab/query"
	"seclab/store"

	"github.com/gorilla/csrf"
)

const defaultTTL = 30 * time.Minute

// goodPolicy is the hardened variant.
type goodPolicy struct {
	opts    Options
	hasher  crypto.PasswordHasher
	sealer  crypto.Sealer
	carrier *auth.SecureCarrier
	csrf    func(http.Handler) http.Handler
}

func newGoodPolicy(opts Options) *goodPolicy {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultTTL
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = crypto.Argon2Hasher{}
	}
	csrfOpts := []csrf.Option{
		csrf.Secure(opts.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	}
	if len(opts.TrustedOrigins) > 0 {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins(opts.TrustedOrigins))
	}
	return &goodPolicy{
		opts:    opts,
		hasher:  hasher,
		sealer:  crypto.NewAESSealer(crypto.SubKey(opts.SessionKey, "notes")),
		carrier: auth.NewSecureCarrier(opts.SessionKey, opts.SessionTTL, opts.SecureCookies),
		csrf:    csrf.Protect(crypto.SubKey(opts.SessionKey, "csrf"), csrfOpts...),
	}
}

func (p *goodPolicy) Mode() Mode { return Good }

// BuildQuery binds every input as a parameter; input never becomes SQL text.
func (p *goodPolicy) BuildQuery(tmpl string, inputs ...string) query.Query {
	return query.Bind(tmpl, inputs...)
}

func (p *goodPolicy) Hasher() crypto.PasswordHasher { return p.hasher }
func (p *goodPolicy) Sealer() crypto.Sealer         { return p.sealer }
func (p *goodPolicy) Gate() gate.Gate               { return gate.OwnerGate{} }
func (p *goodPolicy) Carrier() auth.Carrier         { return p.carrier }

func (p *goodPolicy) SessionTTL() time.Duration { return p.opts.SessionTTL }

func (p *goodPolicy) IssuerOptions() auth.IssuerOptions {
	return auth.IssuerOptions{
		TTL:                    p.SessionTTL(),
		RevokeOnPasswordChange: true,
	}
}

func (p *goodPolicy) APITokens(key []byte, issuer *auth.Issuer, _ *store.Users) auth.APITokens {
	return auth.NewVerifiedTokens(key, issuer)
}

// Render uses html/template, which escapes every value for its context.
func (p *goodPolicy) Render(w io.Writer, files fs.FS, name string, funcs map[string]any, data any) error {
	tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// Protect adds CSRF verification on state-changing requests and the
// security headers.
func (p *goodPolicy) Protect(next http.Handler) http.Handler {
	protected := p.csrf(next)
	return securityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		protected.ServeHTTP(w, r)
	}))
}

func (p *goodPolicy) AllowOrigin(origin string) bool {
	return slices.Contains(p.opts.TrustedOrigins, origin)
}

func (p *goodPolicy) VerboseErrors() bool  { return false }
func (p *goodPolicy) RequireCaptcha() bool { return true }
func (p *goodPolicy) LimitLogins() bool    { return true }

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; frame-ancestors 'self'")
		if !isStatic(r.URL.Path) {
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func isStatic(path string) bool {
	return strings.HasPrefix(path, "/captcha/")
}
