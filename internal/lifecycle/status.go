// Package lifecycle defines the admin-resolved request statuses shared by
// deposits, withdrawals, crypto deposits and KYC submissions.
package lifecycle

import (
	"fmt"

	"github.com/zjoart/varlixo/pkg/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Transition checks that a record of the given kind may move from one status
// to another. Only pending records move, and only into one of the allowed
// terminal statuses.
func Transition(kind string, from, to Status, allowed ...Status) error {
	if from != StatusPending {
		return apperr.InvalidState(fmt.Sprintf("%s is already %s", kind, from))
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.InvalidState(fmt.Sprintf("%s cannot move to %s", kind, to))
}

// ParseFilter validates an optional status query parameter.
func ParseFilter(value string, allowed ...Status) (Status, error) {
	if value == "" {
		return "", nil
	}
	for _, s := range append([]Status{StatusPending}, allowed...) {
		if Status(value) == s {
			return s, nil
		}
	}
	return "", apperr.Validation(fmt.Sprintf("unknown status %q", value))
}
