package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPayload     = errors.New("invalid scan payload")
	ErrCooldownActive     = errors.New("scan cooldown active")
	ErrToggleFailed       = errors.New("attendance toggle failed")
	ErrRegistrationFailed = errors.New("employee registration failed")
	ErrDataUnavailable    = errors.New("data unavailable")
	ErrPredictionError    = errors.New("prediction failed")
	ErrValidation         = errors.New("validation failed")
)

// CooldownError reports a suppressed duplicate scan and how long to wait.
type CooldownError struct {
	ID        ID
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s, retry in %s", ErrCooldownActive, e.ID, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldownActive }

// ValidationError lists the fields that failed a required-field check.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing %v", ErrValidation, e.Fields)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
