package handler

import (
    "context"
    "log"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-share/internal/model"
    "github.com/iliyamo/ride-share/internal/queue"
    "github.com/iliyamo/ride-share/internal/ride"
)

// Join handles POST /v1/rides/:id/join.  The caller is appended to the
// roster as pending, provided the ride still has an open seat and the
// caller has no existing record on it.
func (h *RideHandler) Join(c echo.Context) error {
    riderID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    r, err := mutateRide(ctx, h.Rides, c.Param("id"), func(r *model.Ride) error {
        return ride.Join(r, riderID)
    })
    if err != nil {
        return rideError(c, err)
    }
    return ok(c, http.StatusOK, r)
}

// Leave handles POST /v1/rides/:id/leave.  The caller's approved record
// is removed, freeing one seat.
func (h *RideHandler) Leave(c echo.Context) error {
    riderID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    r, err := mutateRide(ctx, h.Rides, c.Param("id"), func(r *model.Ride) error {
        return ride.Leave(r, riderID)
    })
    if err != nil {
        return rideError(c, err)
    }
    return ok(c, http.StatusOK, r)
}

// CancelRequest handles POST /v1/rides/:id/cancel.  The caller's
// pending record is removed, letting them request the ride again later.
func (h *RideHandler) CancelRequest(c echo.Context) error {
    riderID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    r, err := mutateRide(ctx, h.Rides, c.Param("id"), func(r *model.Ride) error {
        return ride.Cancel(r, riderID)
    })
    if err != nil {
        return rideError(c, err)
    }
    return ok(c, http.StatusOK, r)
}

type respondReq struct {
    Status string `json:"status" validate:"required"`
}

// Respond handles PUT /v1/rides/:id/passengers/:userId.  Only the
// ride's driver may approve or reject a join request.  On approval a
// ride.approved event is published best-effort; a broker outage never
// fails the request.
func (h *RideHandler) Respond(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
    if err != nil || targetID == 0 {
        return fail(c, http.StatusBadRequest, "invalid passenger user id")
    }
    var req respondReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, http.StatusBadRequest, "status is required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    r, err := mutateRide(ctx, h.Rides, c.Param("id"), func(r *model.Ride) error {
        return ride.Respond(r, callerID, targetID, req.Status)
    })
    if err != nil {
        return rideError(c, err)
    }

    if req.Status == model.PassengerApproved && h.publishApproved != nil {
        ev := queue.PassengerApprovedEvent{
            RideID:         r.ID.Hex(),
            DriverID:       r.DriverID,
            RiderID:        targetID,
            StartLocation:  r.StartLocation,
            EndLocation:    r.EndLocation,
            DepartureTime:  r.DepartureTime.UTC().Format(time.RFC3339),
            SeatsRemaining: ride.OpenSeats(r),
            ApprovedAt:     time.Now().UTC().Format(time.RFC3339),
        }
        if err := h.publishApproved(ctx, ev); err != nil {
            log.Printf("publish ride.approved failed for ride %s: %v", ev.RideID, err)
        }
    }
    return ok(c, http.StatusOK, r)
}
