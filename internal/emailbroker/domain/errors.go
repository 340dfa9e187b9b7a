package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmailNotFound indicates the record for a pointer's email id does
	// not exist in the store.
	ErrEmailNotFound = errors.New("email record not found")

	// ErrStoreUnreachable covers connectivity, throttling and throughput
	// failures talking to the record store. Always retryable.
	ErrStoreUnreachable = errors.New("email store unreachable")

	// ErrStatusConflict indicates a conditional status update found a
	// different stored status than expected. The write had no effect;
	// another consumer advanced the record first.
	ErrStatusConflict = errors.New("email status conflict")
)

// FieldMissingError indicates a stored record lacks a field the broker
// requires to build an EmailMessage.
type FieldMissingError struct {
	Field string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("email record missing required field %q", e.Field)
}
