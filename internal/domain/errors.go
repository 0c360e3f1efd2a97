package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrCaptureFailure     = errors.New("capture failed")
	ErrCompositionFailure = errors.New("composition failed")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInvalidState       = errors.New("operation not valid in current stage")
)

// ValidationError rejects a caller-supplied product or template.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CaptureFailureError reports a shot the camera could not produce.
type CaptureFailureError struct {
	Shot int
	Err  error
}

func (e *CaptureFailureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture of shot %d failed", e.Shot+1)
	}
	return fmt.Sprintf("capture of shot %d failed: %v", e.Shot+1, e.Err)
}

func (e *CaptureFailureError) Is(target error) bool {
	return target == ErrCaptureFailure
}

func (e *CaptureFailureError) Unwrap() error {
	return e.Err
}

// CompositionFailureError reports a failed compose request.
type CompositionFailureError struct {
	Message string
	Err     error
}

func (e *CompositionFailureError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("composition failed: %v", e.Err)
	case e.Message != "":
		return "composition failed: " + e.Message
	default:
		return "composition failed"
	}
}

func (e *CompositionFailureError) Is(target error) bool {
	return target == ErrCompositionFailure
}

func (e *CompositionFailureError) Unwrap() error {
	return e.Err
}

// InsufficientCreditError blocks a transition whose total exceeds the balance.
type InsufficientCreditError struct {
	Required Money
	Balance  Money
}

// Shortfall is the amount still missing.
func (e *InsufficientCreditError) Shortfall() Money {
	return e.Required - e.Balance
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: required %s, balance %s, short %s",
		e.Required, e.Balance, e.Shortfall())
}

func (e *InsufficientCreditError) Is(target error) bool {
	return target == ErrInsufficientCredit
}

// InvalidStateError rejects an operation invoked outside its stage.
type InvalidStateError struct {
	Op    string
	Stage Stage
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in stage %s", e.Op, e.Stage)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
