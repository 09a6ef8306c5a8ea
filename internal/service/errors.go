package service

import (
	"errors"
	"fmt"

	"framium/internal/catalog"
)

var (
	// ErrUserNotFound is returned when the requesting user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrQuotaExceeded is returned when the monthly token quota would be
	// exceeded by admitting the request.
	ErrQuotaExceeded = errors.New("monthly token quota exceeded")
	// ErrUnauthorized is returned when a user accesses a resource they do
	// not own.
	ErrUnauthorized = errors.New("unauthorized access")
)

// ModelNotAllowedError rejects a model the user's plan does not grant. It
// carries the current and minimum required tiers so the client can offer
// an upgrade path.
type ModelNotAllowedError struct {
	Model        string
	CurrentPlan  catalog.Tier
	RequiredPlan catalog.Tier
}

func (e *ModelNotAllowedError) Error() string {
	return fmt.Sprintf("model %s requires plan %s (current plan %s)", e.Model, e.RequiredPlan, e.CurrentPlan)
}
