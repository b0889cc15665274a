package handlers

import (
	"bytes"
	"embed"
	"errors"
	"log/slog"
	"net/http"

	"seclab/auth"
	"seclab/gate"
	"seclab/i18n"
	"seclab/logging"
	"seclab/models"
	"seclab/store"
	"seclab/variant"

	"github.com/gorilla/csrf"
)

//go:embed templates/*.html
var templates embed.FS

type Deps struct {
	AppName string
	Policy  variant.Policy
	Issuer  *auth.Issuer
	Users   *store.Users
	Notes   *store.Notes
	Tokens  auth.APITokens
	Catalog i18n.Catalog
	Logger  *slog.Logger
}

// Server is the lab's HTTP surface. All variant-specific behaviour comes from
// its Policy.
type Server struct {
	Deps
	carrier      auth.Carrier
	loginLimiter *rateLimiter
	signupLimit  *rateLimiter
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		Deps:         d,
		carrier:      d.Policy.Carrier(),
		loginLimiter: newRateLimiter(maxAttempts, windowDuration, blockDuration),
		signupLimit:  newRateLimiter(maxAttempts, windowDuration, blockDuration),
	}
}

// Routes returns the complete handler: pages behind the policy's protection,
// and the JSON API behind CORS.
func (s *Server) Routes() http.Handler {
	pages := http.NewServeMux()
	s.registerPages(pages)

	api := http.NewServeMux()
	s.registerAPI(api)

	root := http.NewServeMux()
	root.Handle("/api/", s.corsMiddleware(api))
	root.Handle("/", s.Policy.Protect(s.carrier.Wrap(pages)))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return s.requestLogger(root)
}

func (s *Server) log(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), s.Logger)
}

// currentUser resolves the session presented with r. It returns the zero
// User and the validation error when there is none.
func (s *Server) currentUser(r *http.Request) (models.User, string, error) {
	token := s.carrier.Token(r)
	user, err := s.Issuer.Validate(r.Context(), token)
	if err != nil {
		return models.User{}, token, err
	}
	return user, token, nil
}

// message picks what the user is told about err: the raw error in the
// vulnerable variant, a generic translation otherwise.
func (s *Server) message(lang string, err error, key string) string {
	if err != nil && s.Policy.VerboseErrors() {
		return err.Error()
	}
	return s.Catalog.T(lang, key)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	lang := s.Catalog.DetectLanguage(r)

	funcMap := map[string]any{
		"T": func(key string) string {
			return s.Catalog.T(lang, key)
		},
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["AppName"]; !exists {
		data["AppName"] = s.AppName
	}
	if _, exists := data["User"]; !exists {
		if user, _, err := s.currentUser(r); err == nil {
			data["User"] = user
		}
	}
	data["Lang"] = lang
	data["Variant"] = s.Policy.Mode().String()
	data["csrfField"] = csrf.TemplateField(r)

	var buf bytes.Buffer
	if err := s.Policy.Render(&buf, templates, name, funcMap, data); err != nil {
		s.log(r).Error("render failed", "template", name, "error", err)
		http.Error(w, s.Catalog.T(lang, "InternalServerError"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// fail renders the error page with the status err maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	lang := s.Catalog.DetectLanguage(r)
	status, key := classify(err)
	if status == http.StatusInternalServerError {
		s.log(r).Error("request failed", "error", err)
	} else {
		s.log(r).Info("request refused", "status", status, "error", err)
	}
	s.render(w, r, status, "error.html", map[string]any{
		"Message": s.message(lang, err, key),
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return http.StatusUnauthorized, "SessionExpired"
	case errors.Is(err, auth.ErrInvalidSession), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, gate.ErrDenied):
		return http.StatusForbidden, "AccessDenied"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, store.ErrDuplicateUsername):
		return http.StatusConflict, "UsernameAlreadyExists"
	}
	return http.StatusInternalServerError, "InternalServerError"
}
