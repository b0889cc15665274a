package models

import "time"

// Role is the authorization class of a user. Every account currently shares
// RoleStandard.
type Role string

const (
	RoleStandard Role = "standard"
)

func (r Role) Valid() bool {
	return r == RoleStandard
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // plaintext or hash, depending on the variant
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero means the session never expires
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Note struct {
	ID        int       `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
}

func (n Note) Resource() Resource {
	return Resource{Kind: KindNote, ID: n.ID, Owner: n.Owner, Public: n.Public}
}

type ResourceKind string

const (
	KindNote    ResourceKind = "note"
	KindProfile ResourceKind = "profile"
	KindAccount ResourceKind = "account"
)

// Resource is what the trust gate sees of anything a user owns.
type Resource struct {
	Kind   ResourceKind
	ID     int
	Owner  string
	Public bool
}

func Profile(username string) Resource {
	return Resource{Kind: KindProfile, Owner: username, Public: true}
}

func Account(username string) Resource {
	return Resource{Kind: KindAccount, Owner: username}
}

type Action string

const (
	ActionViewProfile    Action = "view-profile"
	ActionRead           Action = "read"
	ActionEdit           Action = "edit"
	ActionDelete         Action = "delete"
	ActionChangePassword Action = "change-password"
)

// PublicOn reports whether anyone may perform the action on res without
// owning it.
func (a Action) PublicOn(res Resource) bool {
	switch a {
	case ActionViewProfile:
		return true
	case ActionRead:
		return res.Public
	}
	return false
}
