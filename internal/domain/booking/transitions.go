package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("booking: invalid transition")
	ErrForbidden         = errors.New("booking: actor may not perform this action")
)

// transitions lists every allowed status change and the roles that may request it.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusAccepted:  {RoleOwner},
		StatusRejected:  {RoleOwner},
		StatusCancelled: {RoleRenter},
	},
	StatusAccepted: {
		StatusReturned:  {RoleOwner},
		StatusCompleted: {RoleOwner, RoleSystem},
	},
	StatusRejected:  {},
	StatusCancelled: {},
	StatusReturned:  {},
	StatusCompleted: {},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid},
	PaymentPaid:     {PaymentRefunded},
	PaymentRefunded: {},
}

// TransitionError describes a status change the table does not allow.
type TransitionError struct {
	From   string
	To     string
	Role   Role
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("booking: cannot move from %s to %s as %s", e.From, e.To, e.Role)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CanTransition returns true if from->to is in the table for any role.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// CheckTransition validates from->to for role against the table.
// Pairs outside the table are invalid; a known pair with the wrong role is forbidden.
func CheckTransition(from, to Status, role Role) error {
	roles, ok := transitions[from][to]
	if !ok {
		return &TransitionError{From: string(from), To: string(to), Role: role}
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot move %s booking to %s", ErrForbidden, role, from, to)
}

func checkPaymentTransition(from, to PaymentStatus, role Role) error {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &TransitionError{From: "payment " + string(from), To: string(to), Role: role}
}
