package domain

import (
	"fmt"
	"strings"
)

// Status is the booking lifecycle state. The set is closed; nothing outside
// this file should invent a status string.
type Status string

const (
	StatusRequested Status = "requested"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Statuses lists every member of the enum in lifecycle order.
var Statuses = []Status{StatusRequested, StatusAccepted, StatusRejected, StatusCompleted}

// transitions holds the only legal moves for the regular (worker) path.
// Rejected and Completed have no entry and are therefore terminal.
var transitions = map[Status][]Status{
	StatusRequested: {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusCompleted},
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Next returns the statuses reachable from s in one regular step.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// CanTransition reports whether from -> to is a legal regular transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing of a status name.
func ParseStatus(in string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(in)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown booking status %q", in)
	}
	return s, nil
}
