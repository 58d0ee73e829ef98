// Package ride implements the ride lifecycle state machine.  All
// functions operate on a model.Ride aggregate in memory and take the
// caller's identity as an explicit parameter; persistence and HTTP
// concerns live in the repository and handler layers.  These sentinel
// errors allow handlers to translate each failure scenario into the
// right HTTP status without string matching.
package ride

import (
    "errors"

    "github.com/iliyamo/ride-share/internal/model"
)

// ErrRideFull is returned by Join when the number of approved
// passengers has already reached the ride's seat capacity.  Handlers
// should translate this into an HTTP 400 response.
var ErrRideFull = errors.New("ride is already full")

// ErrDuplicateRequest is returned by Join when the rider already has a
// roster record on this ride, regardless of that record's status.  A
// rejected record therefore blocks the same rider from rejoining.
var ErrDuplicateRequest = errors.New("already requested to join this ride")

// ErrNotDriver is returned by Respond when the caller is not the
// ride's driver.  Handlers should translate this into HTTP 403.
var ErrNotDriver = errors.New("caller is not the ride driver")

// ErrPassengerNotFound is returned by Respond when no roster record
// exists for the target user.  Handlers should translate this into 404.
var ErrPassengerNotFound = errors.New("passenger not found on this ride")

// ErrInvalidStatus is returned by Respond when the requested status is
// neither approved nor rejected.
var ErrInvalidStatus = errors.New("status must be approved or rejected")

// ErrNoPendingRequest is returned by Cancel when the rider has no
// pending record on the ride.
var ErrNoPendingRequest = errors.New("no pending request for this ride")

// ErrNotApproved is returned by Leave when the rider has no approved
// record on the ride.
var ErrNotApproved = errors.New("not an approved passenger on this ride")

// ApprovedCount returns the number of approved passengers on the ride.
func ApprovedCount(r *model.Ride) int {
    n := 0
    for _, p := range r.Passengers {
        if p.Status == model.PassengerApproved {
            n++
        }
    }
    return n
}

// OpenSeats returns the number of seats still available for approval.
// It is computed on demand; AvailableSeats is the total capacity, not a
// live counter.  The result can be negative when the driver has
// shrunk the capacity below the approved count via an update.
func OpenSeats(r *model.Ride) int {
    return r.AvailableSeats - ApprovedCount(r)
}

// Join appends a pending request for riderID to the end of the roster.
// The capacity check runs before the duplicate check so that a full
// ride reports ErrRideFull even to riders who already have a record.
// Capacity counts only approved passengers; any number of pending
// requests may queue up.  Departure time is deliberately not checked.
func Join(r *model.Ride, riderID uint64) error {
    if ApprovedCount(r) >= r.AvailableSeats {
        return ErrRideFull
    }
    for _, p := range r.Passengers {
        if p.UserID == riderID {
            return ErrDuplicateRequest
        }
    }
    r.Passengers = append(r.Passengers, model.PassengerRequest{
        UserID: riderID,
        Status: model.PassengerPending,
    })
    return nil
}

// Respond sets the status of targetID's roster record to approved or
// rejected on behalf of the driver.  The driver check runs first so a
// non-driver caller always sees ErrNotDriver, even with a bogus status.
// Capacity is not re-checked here: approval past AvailableSeats is
// allowed, matching the join-time-only enforcement of the seat
// invariant.
func Respond(r *model.Ride, callerID, targetID uint64, status string) error {
    if r.DriverID != callerID {
        return ErrNotDriver
    }
    if status != model.PassengerApproved && status != model.PassengerRejected {
        return ErrInvalidStatus
    }
    for i := range r.Passengers {
        if r.Passengers[i].UserID == targetID {
            r.Passengers[i].Status = status
            return nil
        }
    }
    return ErrPassengerNotFound
}

// Cancel removes riderID's pending request from the roster.  Only a
// pending record can be cancelled; approved passengers must use Leave.
func Cancel(r *model.Ride, riderID uint64) error {
    return removePassenger(r, riderID, model.PassengerPending, ErrNoPendingRequest)
}

// Leave removes riderID's approved record from the roster, freeing one
// seat.  Only an approved record qualifies; pending riders must Cancel.
func Leave(r *model.Ride, riderID uint64) error {
    return removePassenger(r, riderID, model.PassengerApproved, ErrNotApproved)
}

// removePassenger deletes the first roster record matching the user and
// status.  The record is removed outright rather than transitioned to a
// terminal state, so the same user may request the ride again later.
func removePassenger(r *model.Ride, riderID uint64, status string, missing error) error {
    for i, p := range r.Passengers {
        if p.UserID == riderID && p.Status == status {
            r.Passengers = append(r.Passengers[:i], r.Passengers[i+1:]...)
            return nil
        }
    }
    return missing
}
