package domain

import "errors"

// Sentinel errors shared by services and repositories. The delivery layer maps
// each of them to a stable (status, code) pair.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyRegistered   = errors.New("already registered for this event")
	ErrEventFull           = errors.New("event is full")
	ErrRegistrationClosed  = errors.New("registrations are closed for this event")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidState        = errors.New("invalid participant state")
	ErrInvalidTransition   = errors.New("invalid rsvp transition")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateEmail      = errors.New("email already in use")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrNotificationFailure = errors.New("notification could not be sent")
)
