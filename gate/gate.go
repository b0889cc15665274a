// Package gate makes the per-request authorization decision.
//
// The two gates are deliberately separate types rather than one function with
// a flag, so the missing ownership check in AuthenticatedGate stays visible in
// review.
package gate

import (
	"errors"
	"fmt"

	"seclab/models"
)

var ErrDenied = errors.New("access denied")

type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

type Gate interface {
	Authorize(user models.User, action models.Action, res models.Resource) Decision
}

// Check returns ErrDenied, wrapped with the refused action, when g denies.
func Check(g Gate, user models.User, action models.Action, res models.Resource) error {
	if g.Authorize(user, action, res) == Deny {
		return fmt.Errorf("%s %s %d of %s: %w", action, res.Kind, res.ID, res.Owner, ErrDenied)
	}
	return nil
}

// OwnerGate allows an action only on resources the user owns, unless the
// action is public on that resource.
type OwnerGate struct{}

func (OwnerGate) Authorize(user models.User, action models.Action, res models.Resource) Decision {
	if action.PublicOn(res) {
		return Allow
	}
	if user.Username == "" || !user.Role.Valid() {
		return Deny
	}
	if res.Owner == user.Username {
		return Allow
	}
	return Deny
}

// AuthenticatedGate reproduces the original flaw: any logged-in user may do
// anything to any resource. INSECURE, for the vulnerable variant only.
type AuthenticatedGate struct{}

func (AuthenticatedGate) Authorize(user models.User, action models.Action, res models.Resource) Decision {
	if action.PublicOn(res) {
		return Allow
	}
	if user.Username != "" {
		return Allow
	}
	return Deny
}
