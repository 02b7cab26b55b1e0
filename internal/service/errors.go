package service

import (
	"errors"
	"fmt"

	"order-status-service/internal/store"
)

var (
	ErrOrderNotFound        = store.ErrOrderNotFound
	ErrStatusNotFound       = store.ErrStatusNotFound
	ErrTransitionExists     = store.ErrTransitionExists
	ErrTransitionNotAllowed = errors.New("status transition not allowed for role")
	ErrSelfTransition       = errors.New("a status cannot transition to itself")
)

// RequirementError reports an order that does not meet the entry requirement of a status
type RequirementError struct {
	StatusCode string
	Message    string
	Err        error
}

func (e *RequirementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("requirement of status %s not met: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("requirement of status %s not met: %s", e.StatusCode, e.Message)
}

func (e *RequirementError) Unwrap() error {
	return e.Err
}
