package purchase

import (
	"errors"
	"fmt"
)

// Role is the part an actor plays in a purchase transition.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleSystem Role = "SYSTEM"
)

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError reports a rejected (current, requested) pair.
type TransitionError struct {
	From Status
	To   Status
	Role Role
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if e.From == StatusNone {
		from = "NONE"
	}
	return fmt.Sprintf("invalid status transition %s -> %s by %s", from, e.To, e.Role)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// transitions is the complete lifecycle table: current -> requested -> allowed roles.
var transitions = map[Status]map[Status][]Role{
	StatusNone: {
		StatusPendingPayment: {RoleBuyer, RoleSystem},
	},
	StatusPendingPayment: {
		StatusProcessing: {RoleSeller},
		StatusCancelled:  {RoleBuyer, RoleSeller},
	},
	StatusProcessing: {
		StatusCompleted: {RoleSeller},
		StatusCancelled: {RoleBuyer, RoleSeller},
	},
	StatusCompleted: {
		StatusConfirmed: {RoleBuyer, RoleSeller},
		StatusCancelled: {RoleBuyer, RoleSeller},
	},
}

// Authorize checks a requested transition against the lifecycle table.
func Authorize(from, to Status, role Role) error {
	for _, allowed := range transitions[from][to] {
		if allowed == role {
			return nil
		}
	}
	return &TransitionError{From: from, To: to, Role: role}
}

// CanTransition reports whether role may move a purchase from one status to another.
func CanTransition(from, to Status, role Role) bool {
	return Authorize(from, to, role) == nil
}
