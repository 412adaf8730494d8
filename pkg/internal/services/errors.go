package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrProvider     = errors.New("room provider error")

	ErrAlreadyActive   = fmt.Errorf("%w: this channel already has an ongoing meeting", ErrInvalidState)
	ErrNoActiveMeeting = fmt.Errorf("%w: this channel has no ongoing meeting", ErrInvalidState)

	// ErrConflictRace is returned to the loser of two concurrent starts.
	// Callers see it as ErrAlreadyActive.
	ErrConflictRace = fmt.Errorf("%w (lost concurrent start)", ErrAlreadyActive)
)

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func wrapProviderError(err error) error {
	if errors.Is(err, ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}
