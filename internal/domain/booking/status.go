package booking

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusReturned  Status = "returned"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{
	StatusPending, StatusAccepted, StatusRejected,
	StatusCancelled, StatusReturned, StatusCompleted,
}

func (s Status) IsValid() bool {
	for _, candidate := range allStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Blocking reports whether a booking in this status holds its dates exclusively.
func (s Status) Blocking() bool {
	return s == StatusAccepted
}

func (s Status) String() string {
	return string(s)
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", raw)
	}
	return s, nil
}

// PaymentStatus is tracked independently of Status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	p := PaymentStatus(raw)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", raw)
	}
	return p, nil
}

// Role is the capacity in which an actor touches a booking.
type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleSystem Role = "system"
)

// SystemActor names the engine in events and logs. It is reserved: no caller
// may act under it.
const SystemActor = "system"

// IsReservedActor reports whether id may not be used by a caller.
func IsReservedActor(id string) bool {
	return strings.EqualFold(strings.TrimSpace(id), SystemActor)
}
