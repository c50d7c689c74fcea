package syncer

import (
	"errors"
	"fmt"
)

var (
	errMissingDatabase     = errors.New("database handle is required")
	errMissingAuthProvider = errors.New("auth provider is required")
	errMissingIDProvider   = errors.New("id provider is required")

	// ErrUserNotFound indicates the local account does not exist.
	ErrUserNotFound = errors.New("syncer: user not found")
)

// ServiceError carries a stable operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the stable operation.reason identifier.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "syncer.service.new"
	opSyncUser      = "syncer.sync_user"
	opSyncNotebooks = "syncer.sync_notebooks"
	opSyncNotes     = "syncer.sync_notes"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
