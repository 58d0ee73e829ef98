// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrRideNotFound indicates that no ride document exists for
// the requested id, while ErrVersionConflict signals that an aggregate
// write lost a compare-and-swap race and should be retried against a
// fresh copy of the document.
package repository

import "errors"

// ErrRideNotFound is returned when no ride exists for the given id.
// Handlers should translate this into an HTTP 404 response.
var ErrRideNotFound = errors.New("ride not found")

// ErrVersionConflict is returned when a ride write did not match the
// version it was read at, meaning a concurrent operation modified the
// document in between. Callers re-read and re-apply; handlers that
// exhaust their retries should translate this into HTTP 409.
var ErrVersionConflict = errors.New("ride version conflict")

// ErrInvalidRideID is returned when a supplied ride id is not a valid
// object id. Handlers should translate this into HTTP 400.
var ErrInvalidRideID = errors.New("invalid ride id")
