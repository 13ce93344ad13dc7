package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInvalidInput         = errors.New("invalid input")
	ErrExternalService      = errors.New("external service error")
	ErrPersistence          = errors.New("persistence error")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// NotFoundError builds a NotFound error for the given entity and key.
func NotFoundError(operation, entity, key string) error {
	return WrapError(ErrNotFound, operation, fmt.Errorf("%s %s", entity, key))
}
