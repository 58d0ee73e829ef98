package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-share/internal/model"
    "github.com/iliyamo/ride-share/internal/repository"
    "github.com/iliyamo/ride-share/internal/ride"
)

// RideStore abstracts the ride document store so the lifecycle handlers
// can be exercised against an in-memory fake in tests.  The Mongo-backed
// repository.RideRepo is the production implementation.
type RideStore interface {
    Create(ctx context.Context, r *model.Ride) error
    GetByID(ctx context.Context, id string) (*model.Ride, error)
    Replace(ctx context.Context, r *model.Ride) error
    Delete(ctx context.Context, id string) error
    List(ctx context.Context, q repository.RideQuery) ([]*model.Ride, int64, error)
    ListByDriver(ctx context.Context, driverID uint64) ([]*model.Ride, error)
    ListByPassenger(ctx context.Context, userID uint64, status string) ([]*model.Ride, error)
    ListScheduled(ctx context.Context) ([]*model.Ride, error)
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// ok writes the success envelope shared by every endpoint.
func ok(c echo.Context, status int, data interface{}) error {
    return c.JSON(status, echo.Map{"success": true, "data": data})
}

// fail writes the failure envelope shared by every endpoint.
func fail(c echo.Context, status int, msg string) error {
    return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// rideError translates a lifecycle or repository sentinel into the HTTP
// response the API contract promises: 400 for bad input and precondition
// failures, 403 for non-driver callers, 404 for missing rides or
// passengers, 409 when optimistic locking gives up, 500 otherwise.
func rideError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrInvalidRideID):
        return fail(c, http.StatusBadRequest, "invalid ride id")
    case errors.Is(err, repository.ErrRideNotFound):
        return fail(c, http.StatusNotFound, "ride not found")
    case errors.Is(err, ride.ErrPassengerNotFound):
        return fail(c, http.StatusNotFound, err.Error())
    case errors.Is(err, ride.ErrNotDriver):
        return fail(c, http.StatusForbidden, err.Error())
    case errors.Is(err, ride.ErrRideFull),
        errors.Is(err, ride.ErrDuplicateRequest),
        errors.Is(err, ride.ErrNoPendingRequest),
        errors.Is(err, ride.ErrNotApproved),
        errors.Is(err, ride.ErrInvalidStatus):
        return fail(c, http.StatusBadRequest, err.Error())
    case errors.Is(err, repository.ErrVersionConflict):
        return fail(c, http.StatusConflict, "ride was modified concurrently, retry")
    default:
        return fail(c, http.StatusInternalServerError, "server error")
    }
}

// casRetries bounds how many times a lifecycle mutation is re-applied
// when the aggregate write loses its compare-and-swap race.
const casRetries = 3

// mutateRide loads the ride, applies fn to the in-memory aggregate and
// writes it back under the version read.  On a version conflict the
// whole read-apply-write cycle is retried against a fresh copy, which
// makes join/approve/cancel/leave atomic with respect to each other.
func mutateRide(ctx context.Context, store RideStore, id string, fn func(*model.Ride) error) (*model.Ride, error) {
    var lastErr error
    for attempt := 0; attempt < casRetries; attempt++ {
        r, err := store.GetByID(ctx, id)
        if err != nil {
            return nil, err
        }
        if err := fn(r); err != nil {
            return nil, err
        }
        err = store.Replace(ctx, r)
        if errors.Is(err, repository.ErrVersionConflict) {
            lastErr = err
            continue
        }
        if err != nil {
            return nil, err
        }
        return r, nil
    }
    return nil, lastErr
}
