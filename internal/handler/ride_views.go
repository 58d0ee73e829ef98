package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-share/internal/model"
    "github.com/iliyamo/ride-share/internal/ride"
)

// UserRides handles GET /v1/rides/user: every ride the caller offers as
// driver plus every ride where they appear on a roster, in one payload.
func (h *RideHandler) UserRides(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    driverRides, err := h.Rides.ListByDriver(ctx, userID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rides failed")
    }
    passengerRides, err := h.Rides.ListByPassenger(ctx, userID, "")
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rides failed")
    }
    return ok(c, http.StatusOK, echo.Map{
        "driver_rides":    driverRides,
        "passenger_rides": passengerRides,
    })
}

// OfferedRides handles GET /v1/rides/user/offered.
func (h *RideHandler) OfferedRides(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    rides, err := h.Rides.ListByDriver(ctx, userID)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rides failed")
    }
    return listOK(c, rides)
}

// JoinedRides handles GET /v1/rides/user/joined: rides where the caller
// is an approved passenger.
func (h *RideHandler) JoinedRides(c echo.Context) error {
    return h.ridesByPassengerStatus(c, model.PassengerApproved)
}

// PendingRides handles GET /v1/rides/user/pending: rides where the
// caller's join request is still awaiting the driver's decision.
func (h *RideHandler) PendingRides(c echo.Context) error {
    return h.ridesByPassengerStatus(c, model.PassengerPending)
}

func (h *RideHandler) ridesByPassengerStatus(c echo.Context, status string) error {
    userID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    rides, err := h.Rides.ListByPassenger(ctx, userID, status)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rides failed")
    }
    return listOK(c, rides)
}

type matchReq struct {
    StartLocation string `json:"start_location" validate:"required"`
    EndLocation   string `json:"end_location" validate:"required"`
}

// Match handles POST /v1/rides/match.  Every scheduled ride is scored
// against the caller's desired route and returned ordered by descending
// match percentage; ties keep the store's query order.
func (h *RideHandler) Match(c echo.Context) error {
    if _, err := getUserID(c); err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    var req matchReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, http.StatusBadRequest, "start_location and end_location are required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    rides, err := h.Rides.ListScheduled(ctx)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rides failed")
    }
    matches := ride.Rank(rides, ride.Route{Start: req.StartLocation, End: req.EndLocation}, h.Scorer)
    return c.JSON(http.StatusOK, echo.Map{
        "success": true,
        "count":   len(matches),
        "data":    matches,
    })
}

// listOK writes the list envelope with a count, shared by the user view
// endpoints.
func listOK(c echo.Context, rides []*model.Ride) error {
    return c.JSON(http.StatusOK, echo.Map{
        "success": true,
        "count":   len(rides),
        "data":    rides,
    })
}
