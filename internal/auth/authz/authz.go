// Package authz decides whether an authenticated user may perform an action.
// Decisions are pure functions over the user's role flags; no I/O.
package authz

import (
	"github.com/gueripep/brainflash-server/internal/auth/domain"
	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

// Scope names the privilege an operation requires.
type Scope struct {
	// TargetID is the user the operation acts on. Empty means the operation
	// is not user-scoped.
	TargetID string
	// Superuser requires the superuser flag regardless of target.
	Superuser bool
}

// Self scopes an operation to the given target user: the subject must be
// that user, or a superuser.
func Self(targetID string) Scope {
	return Scope{TargetID: targetID}
}

// SuperuserOnly scopes an operation to superusers.
func SuperuserOnly() Scope {
	return Scope{Superuser: true}
}

// Authorize returns nil if user may act within scope, ErrForbidden
// otherwise. A deactivated user fails every check, whatever its flags.
func Authorize(user *domain.User, scope Scope) error {
	if user == nil || !user.IsActive {
		return autherror.ErrForbidden
	}

	if user.IsSuperuser {
		return nil
	}

	if scope.Superuser {
		return autherror.ErrForbidden
	}

	if scope.TargetID != "" && scope.TargetID != user.ID {
		return autherror.ErrForbidden
	}

	return nil
}
