// Package fault defines the error taxonomy shared by the checkout core.
//
// Every failure that crosses the service boundary is one of three kinds:
// a validation failure (the request cannot be fulfilled as submitted), a
// missing entity, or an illegal state transition. Storage errors are
// translated into this taxonomy at the orchestration boundary and never
// leak to callers as raw driver errors.
package fault

import "fmt"

// ValidationError indicates the request is not fulfillable as submitted:
// empty cart, inactive or under-stocked product, missing postal code,
// unavailable shipping method, ineligible coupon. The message is
// user-facing and names the offending entity where possible.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q não encontrado", e.Entity, e.Key)
}

// ServiceError indicates a business-rule conflict, such as canceling an
// order that has already shipped.
type ServiceError struct {
	Msg string
}

func (e *ServiceError) Error() string { return e.Msg }

// Servicef builds a ServiceError from a format string.
func Servicef(format string, args ...any) *ServiceError {
	return &ServiceError{Msg: fmt.Sprintf(format, args...)}
}
