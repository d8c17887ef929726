package site

import "errors"

var (
	// ErrInvalidName is returned when the appointment form has no name.
	ErrInvalidName = errors.New("name is required")

	// ErrMissingPhone is returned when the appointment form has no phone number.
	ErrMissingPhone = errors.New("phone number is required")

	// ErrUnknownReason is returned for a reason outside the form's options.
	ErrUnknownReason = errors.New("reason is not one of the offered options")

	// ErrUnknownSlot is returned for a slot outside the form's options.
	ErrUnknownSlot = errors.New("preferred slot is not one of the offered options")

	// ErrFormBusy is returned when a submit arrives while the form is not idle.
	ErrFormBusy = errors.New("appointment request already in progress")
)
