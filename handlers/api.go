package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"seclab/auth"
	"seclab/gate"
	"seclab/models"
	"seclab/store"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/login", s.APILoginHandler)
	mux.HandleFunc("GET /api/v1/users", s.APIUsersHandler)
	mux.HandleFunc("GET /api/v1/notes", s.APIListNotesHandler)
	mux.HandleFunc("GET /api/v1/notes/{id}", s.APINoteHandler)
}

// apiError writes err as a JSON error with the status it maps to.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	lang := s.Catalog.DetectLanguage(r)
	status, key := classify(err)
	if status == http.StatusInternalServerError {
		s.log(r).Error("api request failed", "error", err)
	}
	sendJSONResponse(w, status, APIResponse{Status: "error", Message: s.message(lang, err, key)})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-API-Token")
}

// apiUser resolves the caller from its bearer token.
func (s *Server) apiUser(r *http.Request) (models.User, error) {
	raw := bearerToken(r)
	if raw == "" {
		return models.User{}, auth.ErrInvalidSession
	}
	return s.Tokens.Verify(r.Context(), raw)
}

func (s *Server) APILoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := s.Catalog.DetectLanguage(r)

	ip := getClientIP(r)
	if s.Policy.LimitLogins() && !s.loginLimiter.Allow(ip) {
		sendJSONResponse(w, http.StatusTooManyRequests, APIResponse{Status: "error", Message: s.Catalog.T(lang, "TooManyAttempts")})
		return
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONResponse(w, http.StatusBadRequest, APIResponse{Status: "error", Message: s.Catalog.T(lang, "InvalidRequestBody")})
		return
	}

	sess, err := s.Issuer.Authenticate(r.Context(), input.Username, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.loginLimiter.RecordFailure(ip)
		sendJSONResponse(w, http.StatusUnauthorized, APIResponse{Status: "error", Message: s.message(lang, err, "InvalidCredentials")})
		return
	}
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	s.loginLimiter.Reset(ip)

	token, err := s.Tokens.Issue(sess)
	if err != nil {
		s.apiError(w, r, err)
		return
	}

	data := map[string]any{
		"token":    token,
		"username": sess.Username,
	}
	if !sess.ExpiresAt.IsZero() {
		data["expires_at"] = sess.ExpiresAt
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: data})
}

func (s *Server) APIUsersHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.apiUser(r); err != nil {
		s.apiError(w, r, err)
		return
	}

	var users []models.User
	var err error
	if q := r.URL.Query().Get("q"); q != "" {
		users, err = s.Users.Search(r.Context(), q)
	} else {
		users, err = s.Users.List(r.Context())
	}
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: users})
}

// APIListNotesHandler lists the caller's notes, or another owner's with
// ?owner=, keeping only those the gate lets the caller read.
func (s *Server) APIListNotesHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.apiUser(r)
	if err != nil {
		s.apiError(w, r, err)
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = user.Username
	}
	notes, err := s.Notes.ListByOwner(r.Context(), owner, false)
	if err != nil {
		s.apiError(w, r, err)
		return
	}

	visible := make([]models.Note, 0, len(notes))
	for _, n := range notes {
		if s.Policy.Gate().Authorize(user, models.ActionRead, n.Resource()) == gate.Allow {
			visible = append(visible, n)
		}
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: visible})
}

func (s *Server) APINoteHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.apiUser(r)
	if err != nil {
		s.apiError(w, r, err)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.apiError(w, r, store.ErrNotFound)
		return
	}
	note, err := s.Notes.Get(r.Context(), id)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	if err := gate.Check(s.Policy.Gate(), user, models.ActionRead, note.Resource()); err != nil {
		s.apiError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Data: note})
}
