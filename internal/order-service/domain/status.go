package domain

import (
	"strings"

	"github.com/jcmexdev/storefront/internal/pkg/apperr"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusDispatched OrderStatus = "DISPATCHED"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCanceled   OrderStatus = "CANCELED"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusDispatched, StatusCanceled},
	StatusDispatched: {StatusCompleted, StatusCanceled},
}

// ParseStatus accepts the four known statuses, case-insensitively.
func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusDispatched, StatusCompleted, StatusCanceled:
		return st, nil
	}
	return "", apperr.New(apperr.KindInvalidStatus, "Invalid status %q", s)
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}
