package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"seclab/auth"
	"seclab/gate"
	"seclab/models"
	"seclab/store"

	"github.com/dchest/captcha"
)

func (s *Server) registerPages(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.IndexHandler)
	mux.HandleFunc("GET /login", s.LoginPageHandler)
	mux.HandleFunc("POST /login", s.LoginHandler)
	mux.HandleFunc("GET /signup", s.SignupPageHandler)
	mux.HandleFunc("POST /signup", s.SignupHandler)
	mux.HandleFunc("POST /logout", s.LogoutHandler)
	mux.HandleFunc("GET /users", s.UsersHandler)
	mux.HandleFunc("GET /users/{username}", s.ProfileHandler)
	mux.HandleFunc("GET /notes", s.NotesHandler)
	mux.HandleFunc("POST /notes", s.CreateNoteHandler)
	mux.HandleFunc("GET /notes/{id}", s.NoteHandler)
	mux.HandleFunc("POST /notes/{id}/edit", s.EditNoteHandler)
	mux.HandleFunc("POST /notes/{id}/delete", s.DeleteNoteHandler)
	mux.HandleFunc("GET /account", s.AccountHandler)
	mux.HandleFunc("POST /account/password", s.ChangePasswordHandler)
	mux.Handle("GET /captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
}

func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.currentUser(r); err == nil {
		http.Redirect(w, r, "/notes", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "index.html", nil)
}

func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", nil)
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := s.Catalog.DetectLanguage(r)
	username := r.FormValue("username")
	password := r.FormValue("password")

	ip := getClientIP(r)
	if s.Policy.LimitLogins() && !s.loginLimiter.Allow(ip) {
		s.render(w, r, http.StatusTooManyRequests, "login.html", map[string]any{
			"Error": s.Catalog.T(lang, "TooManyAttempts"), "Username": username,
		})
		return
	}

	sess, err := s.Issuer.AuthenticateWithToken(r.Context(), username, password, s.carrier.Token(r))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.loginLimiter.RecordFailure(ip)
		s.log(r).Info("login failed", "username", username, "ip", ip)
		s.render(w, r, http.StatusUnauthorized, "login.html", map[string]any{
			"Error": s.message(lang, err, "InvalidCredentials"), "Username": username,
		})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.loginLimiter.Reset(ip)

	if err := s.carrier.Attach(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log(r).Info("login", "username", sess.Username)
	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

func (s *Server) SignupPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup.html", s.signupData(nil))
}

func (s *Server) signupData(data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	if s.Policy.RequireCaptcha() {
		data["CaptchaID"] = captcha.New()
	}
	return data
}

func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	lang := s.Catalog.DetectLanguage(r)
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	ip := getClientIP(r)
	if s.Policy.LimitLogins() && !s.signupLimit.Allow(ip) {
		s.render(w, r, http.StatusTooManyRequests, "signup.html", s.signupData(map[string]any{
			"Error": s.Catalog.T(lang, "TooManyAttempts"),
		}))
		return
	}

	if s.Policy.RequireCaptcha() && !captcha.VerifyString(r.FormValue("captcha_id"), r.FormValue("captcha")) {
		s.render(w, r, http.StatusBadRequest, "signup.html", s.signupData(map[string]any{
			"Error": s.Catalog.T(lang, "CaptchaFailed"), "Username": username,
		}))
		return
	}
	if username == "" || password == "" {
		s.render(w, r, http.StatusBadRequest, "signup.html", s.signupData(map[string]any{
			"Error": s.Catalog.T(lang, "MissingFields"), "Username": username,
		}))
		return
	}

	user, err := s.Users.Create(r.Context(), username, password)
	if errors.Is(err, store.ErrDuplicateUsername) {
		s.render(w, r, http.StatusConflict, "signup.html", s.signupData(map[string]any{
			"Error": s.message(lang, err, "UsernameAlreadyExists"), "Username": username,
		}))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// Record signups to limit account creation per IP
	s.signupLimit.RecordFailure(ip)
	s.log(r).Info("signup", "username", user.Username)

	sess, err := s.Issuer.Authenticate(r.Context(), username, password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.carrier.Attach(w, r, sess); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Issuer.Logout(r.Context(), s.carrier.Token(r)); err != nil {
		s.log(r).Error("logout failed", "error", err)
	}
	s.carrier.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UsersHandler lists the directory or, with ?q=, runs the user search.
func (s *Server) UsersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var users []models.User
	var err error
	if q != "" {
		users, err = s.Users.Search(r.Context(), q)
	} else {
		users, err = s.Users.List(r.Context())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "users.html", map[string]any{"Users": users, "Query": q})
}

func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	viewer, _, _ := s.currentUser(r)
	username := r.PathValue("username")

	if err := gate.Check(s.Policy.Gate(), viewer, models.ActionViewProfile, models.Profile(username)); err != nil {
		s.fail(w, r, err)
		return
	}
	owner, err := s.Users.Lookup(r.Context(), username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notes, err := s.Notes.ListByOwner(r.Context(), owner.Username, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	visible := notes[:0]
	for _, n := range notes {
		if s.Policy.Gate().Authorize(viewer, models.ActionRead, n.Resource()) == gate.Allow {
			visible = append(visible, n)
		}
	}
	s.render(w, r, http.StatusOK, "profile.html", map[string]any{"Owner": owner, "Notes": visible})
}

func (s *Server) NotesHandler(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.currentUser(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	notes, err := s.Notes.ListByOwner(r.Context(), user.Username, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "notes.html", map[string]any{"User": user, "Notes": notes})
}

func (s *Server) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note, err := s.Notes.Create(r.Context(), models.Note{
		Owner:  user.Username,
		Title:  r.FormValue("title"),
		Body:   r.FormValue("body"),
		Public: r.FormValue("public") == "on",
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/notes/"+strconv.Itoa(note.ID), http.StatusSeeOther)
}

// loadNote fetches the note named in the path and checks action against it.
func (s *Server) loadNote(r *http.Request, user models.User, action models.Action) (models.Note, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return models.Note{}, store.ErrNotFound
	}
	note, err := s.Notes.Get(r.Context(), id)
	if err != nil {
		return models.Note{}, err
	}
	if err := gate.Check(s.Policy.Gate(), user, action, note.Resource()); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

func (s *Server) NoteHandler(w http.ResponseWriter, r *http.Request) {
	user, _, authErr := s.currentUser(r)
	note, err := s.loadNote(r, user, models.ActionRead)
	if errors.Is(err, gate.ErrDenied) && authErr != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	canEdit := s.Policy.Gate().Authorize(user, models.ActionEdit, note.Resource()) == gate.Allow
	s.render(w, r, http.StatusOK, "note.html", map[string]any{"Note": note, "CanEdit": canEdit})
}

func (s *Server) EditNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note, err := s.loadNote(r, user, models.ActionEdit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note.Title = r.FormValue("title")
	note.Body = r.FormValue("body")
	note.Public = r.FormValue("public") == "on"
	if err := s.Notes.Update(r.Context(), note); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log(r).Info("note edited", "id", note.ID, "owner", note.Owner, "by", user.Username)
	http.Redirect(w, r, "/notes/"+strconv.Itoa(note.ID), http.StatusSeeOther)
}

func (s *Server) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	note, err := s.loadNote(r, user, models.ActionDelete)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Notes.Delete(r.Context(), note.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log(r).Info("note deleted", "id", note.ID, "owner", note.Owner, "by", user.Username)
	http.Redirect(w, r, "/notes", http.StatusSeeOther)
}

func (s *Server) AccountHandler(w http.ResponseWriter, r *http.Request) {
	user, _, err := s.currentUser(r)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "account.html", map[string]any{"User": user})
}

// ChangePasswordHandler changes the password of the account named in the
// form, defaulting to the caller's own.
func (s *Server) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	lang := s.Catalog.DetectLanguage(r)
	user, token, err := s.currentUser(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	target := r.FormValue("username")
	if target == "" {
		target = user.Username
	}
	if err := gate.Check(s.Policy.Gate(), user, models.ActionChangePassword, models.Account(target)); err != nil {
		s.fail(w, r, err)
		return
	}

	newPassword := r.FormValue("new_password")
	if newPassword == "" {
		s.render(w, r, http.StatusBadRequest, "account.html", map[string]any{
			"User": user, "Error": s.Catalog.T(lang, "PasswordEmpty"),
		})
		return
	}

	if err := s.Issuer.ChangePassword(r.Context(), target, newPassword, token); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log(r).Info("password changed", "account", target, "by", user.Username)
	s.render(w, r, http.StatusOK, "account.html", map[string]any{
		"User": user, "Notice": s.Catalog.T(lang, "PasswordUpdated"),
	})
}
