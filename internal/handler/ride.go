package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-share/internal/model"
    "github.com/iliyamo/ride-share/internal/queue"
    "github.com/iliyamo/ride-share/internal/repository"
    "github.com/iliyamo/ride-share/internal/ride"
    queue_publisher "github.com/iliyamo/ride-share/internal/service"
)

// RideHandler bundles the ride store and the route scorer behind every
// ride endpoint.  All methods assume JWT authentication has already run
// where the route requires it; the caller's identity is read from the
// context and passed explicitly into the lifecycle functions.
type RideHandler struct {
    Rides  RideStore
    Scorer ride.Scorer

    // publishApproved is swapped out in tests; in production it points
    // at the RabbitMQ publisher.
    publishApproved func(ctx context.Context, ev queue.PassengerApprovedEvent) error
}

// NewRideHandler constructs a RideHandler with the provided store and
// scorer.  Both dependencies must be non-nil.
func NewRideHandler(store RideStore, scorer ride.Scorer) *RideHandler {
    if store == nil || scorer == nil {
        panic("nil dependency passed to NewRideHandler")
    }
    return &RideHandler{
        Rides:           store,
        Scorer:          scorer,
        publishApproved: queue_publisher.PublishPassengerApproved,
    }
}

// ----- DTOs -----

type vehicleReq struct {
    Model        string `json:"model" validate:"required"`
    Color        string `json:"color"`
    LicensePlate string `json:"license_plate" validate:"required"`
}

type preferencesReq struct {
    Smoking     bool   `json:"smoking"`
    PetFriendly bool   `json:"pet_friendly"`
    Music       bool   `json:"music"`
    FemaleOnly  bool   `json:"female_only"`
    Notes       string `json:"notes"`
}

type createRideReq struct {
    StartLocation  string         `json:"start_location" validate:"required"`
    EndLocation    string         `json:"end_location" validate:"required"`
    DepartureTime  time.Time      `json:"departure_time" validate:"required"`
    AvailableSeats int            `json:"available_seats" validate:"required,min=1"`
    Vehicle        vehicleReq     `json:"vehicle"`
    Preferences    preferencesReq `json:"preferences"`
}

// updateRideReq is a partial patch; nil fields are left untouched.
// Validation of present fields happens in apply().
type updateRideReq struct {
    StartLocation  *string         `json:"start_location"`
    EndLocation    *string         `json:"end_location"`
    DepartureTime  *time.Time      `json:"departure_time"`
    AvailableSeats *int            `json:"available_seats"`
    Vehicle        *vehicleReq     `json:"vehicle"`
    Preferences    *preferencesReq `json:"preferences"`
}

// apply patches the ride in place, re-running field-level validation on
// every field present.  The seats-vs-approved invariant is deliberately
// not re-checked: shrinking capacity below the approved count yields an
// over-subscribed ride, exactly as at the join-time-only enforcement.
func (req *updateRideReq) apply(r *model.Ride) error {
    if req.StartLocation != nil {
        if *req.StartLocation == "" {
            return errValidation("start_location must not be empty")
        }
        r.StartLocation = *req.StartLocation
    }
    if req.EndLocation != nil {
        if *req.EndLocation == "" {
            return errValidation("end_location must not be empty")
        }
        r.EndLocation = *req.EndLocation
    }
    if req.DepartureTime != nil {
        if req.DepartureTime.IsZero() {
            return errValidation("departure_time must not be zero")
        }
        r.DepartureTime = *req.DepartureTime
    }
    if req.AvailableSeats != nil {
        if *req.AvailableSeats < 1 {
            return errValidation("available_seats must be at least 1")
        }
        r.AvailableSeats = *req.AvailableSeats
    }
    if req.Vehicle != nil {
        if req.Vehicle.Model == "" || req.Vehicle.LicensePlate == "" {
            return errValidation("vehicle model and license_plate are required")
        }
        r.Vehicle = model.VehicleDetails{
            Model:        req.Vehicle.Model,
            Color:        req.Vehicle.Color,
            LicensePlate: req.Vehicle.LicensePlate,
        }
    }
    if req.Preferences != nil {
        r.Preferences = model.Preferences{
            Smoking:     req.Preferences.Smoking,
            PetFriendly: req.Preferences.PetFriendly,
            Music:       req.Preferences.Music,
            FemaleOnly:  req.Preferences.FemaleOnly,
            Notes:       req.Preferences.Notes,
        }
    }
    return nil
}

// validationError carries a field-level message through the mutate loop.
type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func errValidation(msg string) *validationError { return &validationError{msg: msg} }

// Create handles POST /v1/rides.  The caller becomes the ride's driver;
// the roster starts empty and the ride is scheduled.
func (h *RideHandler) Create(c echo.Context) error {
    driverID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    var req createRideReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if err := c.Validate(&req); err != nil {
        return fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
    }

    r := &model.Ride{
        DriverID:       driverID,
        StartLocation:  req.StartLocation,
        EndLocation:    req.EndLocation,
        DepartureTime:  req.DepartureTime.UTC(),
        AvailableSeats: req.AvailableSeats,
        Vehicle: model.VehicleDetails{
            Model:        req.Vehicle.Model,
            Color:        req.Vehicle.Color,
            LicensePlate: req.Vehicle.LicensePlate,
        },
        Preferences: model.Preferences{
            Smoking:     req.Preferences.Smoking,
            PetFriendly: req.Preferences.PetFriendly,
            Music:       req.Preferences.Music,
            FemaleOnly:  req.Preferences.FemaleOnly,
            Notes:       req.Preferences.Notes,
        },
        Passengers: []model.PassengerRequest{},
        Status:     model.RideStatusScheduled,
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    if err := h.Rides.Create(ctx, r); err != nil {
        return fail(c, http.StatusInternalServerError, "create ride failed")
    }
    return ok(c, http.StatusCreated, r)
}

// List handles GET /v1/rides with filtering, sorting and pagination.
func (h *RideHandler) List(c echo.Context) error {
    q := repository.RideQuery{
        StartLocation: c.QueryParam("start_location"),
        EndLocation:   c.QueryParam("end_location"),
        Sort:          c.QueryParam("sort"),
        Page:          atoiDefault(c.QueryParam("page"), 1),
        Limit:         atoiDefault(c.QueryParam("limit"), 10),
    }
    if v := c.QueryParam("driver_id"); v != "" {
        if n, err := strconv.ParseUint(v, 10, 64); err == nil {
            q.DriverID = n
        }
    }
    if v := c.QueryParam("seats_min"); v != "" {
        q.SeatsMin = atoiDefault(v, 0)
    }
    if v := c.QueryParam("departure_after"); v != "" {
        if t, err := time.Parse(time.RFC3339, v); err == nil {
            q.DepartureAfter = t
        }
    }
    if v := c.QueryParam("departure_before"); v != "" {
        if t, err := time.Parse(time.RFC3339, v); err == nil {
            q.DepartureBefore = t
        }
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    rides, total, err := h.Rides.List(ctx, q)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "list rides failed")
    }

    pagination := echo.Map{}
    if int64(q.Page*q.Limit) < total {
        pagination["next"] = echo.Map{"page": q.Page + 1, "limit": q.Limit}
    }
    if q.Page > 1 {
        pagination["prev"] = echo.Map{"page": q.Page - 1, "limit": q.Limit}
    }
    return c.JSON(http.StatusOK, echo.Map{
        "success":    true,
        "count":      len(rides),
        "total":      total,
        "pagination": pagination,
        "data":       rides,
    })
}

// Get handles GET /v1/rides/:id.
func (h *RideHandler) Get(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    r, err := h.Rides.GetByID(ctx, c.Param("id"))
    if err != nil {
        return rideError(c, err)
    }
    return ok(c, http.StatusOK, r)
}

// Update handles PUT /v1/rides/:id.  Only the driver may patch a ride.
func (h *RideHandler) Update(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    var req updateRideReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    r, err := mutateRide(ctx, h.Rides, c.Param("id"), func(r *model.Ride) error {
        if r.DriverID != callerID {
            return ride.ErrNotDriver
        }
        return req.apply(r)
    })
    if err != nil {
        var ve *validationError
        if errors.As(err, &ve) {
            return fail(c, http.StatusBadRequest, ve.msg)
        }
        return rideError(c, err)
    }
    return ok(c, http.StatusOK, r)
}

// Delete handles DELETE /v1/rides/:id.  The ride document and every
// embedded passenger record are removed permanently; passengers are not
// notified.
func (h *RideHandler) Delete(c echo.Context) error {
    callerID, err := getUserID(c)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    r, err := h.Rides.GetByID(ctx, c.Param("id"))
    if err != nil {
        return rideError(c, err)
    }
    if r.DriverID != callerID {
        return rideError(c, ride.ErrNotDriver)
    }
    if err := h.Rides.Delete(ctx, c.Param("id")); err != nil {
        return rideError(c, err)
    }
    return ok(c, http.StatusOK, echo.Map{})
}

func atoiDefault(s string, def int) int {
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil || n < 1 {
        return def
    }
    return n
}
