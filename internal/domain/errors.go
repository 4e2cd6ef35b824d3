package domain

import "errors"

// Sentinel errors shared by services, repositories and the HTTP layer.
var (
	ErrNotFound           = errors.New("not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrAttendeeNotFound   = errors.New("attendee not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCheckInNotOpen     = errors.New("check-in only allowed on event day")
)

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEventNotFound) || errors.Is(err, ErrAttendeeNotFound)
}
