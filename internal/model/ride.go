package model

import (
    "time"

    "go.mongodb.org/mongo-driver/bson/primitive"
)

// Ride statuses. The status field is stored on every ride and used by the
// match endpoint to select candidate rides; no operation currently
// transitions a ride out of StatusScheduled.
const (
    RideStatusScheduled  = "scheduled"
    RideStatusInProgress = "in-progress"
    RideStatusCompleted  = "completed"
    RideStatusCancelled  = "cancelled"
)

// Passenger request statuses.  A request is created as pending and is
// moved to approved or rejected by the driver.  Cancelling a pending
// request or leaving an approved ride removes the record outright, so
// no terminal "cancelled" status exists on the roster.
const (
    PassengerPending  = "pending"
    PassengerApproved = "approved"
    PassengerRejected = "rejected"
)

// Ride is the aggregate root stored as a single document in the rides
// collection.  The passenger roster is embedded so that every lifecycle
// operation reads and writes the ride as one unit of consistency.
//
// Fields:
//  ID             – document identifier, immutable.
//  DriverID       – owning user; set at creation, immutable thereafter.
//  StartLocation  – free-text origin.
//  EndLocation    – free-text destination.
//  DepartureTime  – scheduled departure; not validated against the clock.
//  AvailableSeats – total seat capacity (>= 1), not a live counter.
//  Vehicle        – descriptive vehicle details, no invariants.
//  Preferences    – boolean ride preferences plus free-text notes.
//  Passengers     – ordered roster of join requests (insertion order).
//  Status         – one of the RideStatus* constants.
//  Version        – optimistic concurrency counter, bumped on every write.
//  CreatedAt      – set at creation, immutable.
type Ride struct {
    ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
    DriverID       uint64             `bson:"driver_id" json:"driver_id"`
    StartLocation  string             `bson:"start_location" json:"start_location"`
    EndLocation    string             `bson:"end_location" json:"end_location"`
    DepartureTime  time.Time          `bson:"departure_time" json:"departure_time"`
    AvailableSeats int                `bson:"available_seats" json:"available_seats"`
    Vehicle        VehicleDetails     `bson:"vehicle" json:"vehicle"`
    Preferences    Preferences        `bson:"preferences" json:"preferences"`
    Passengers     []PassengerRequest `bson:"passengers" json:"passengers"`
    Status         string             `bson:"status" json:"status"`
    Version        int64              `bson:"version" json:"-"`
    CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// PassengerRequest is a rider's intent to join a ride.  At most one record
// exists per (ride, user) at any time; rejected records are kept and block
// the same user from requesting again.
type PassengerRequest struct {
    UserID uint64 `bson:"user_id" json:"user_id"`
    Status string `bson:"status" json:"status"`
}

// VehicleDetails describes the driver's car.  Purely informational.
type VehicleDetails struct {
    Model        string `bson:"model" json:"model"`
    Color        string `bson:"color,omitempty" json:"color,omitempty"`
    LicensePlate string `bson:"license_plate" json:"license_plate"`
}

// Preferences holds the ride's boolean flags plus free-text notes.
type Preferences struct {
    Smoking     bool   `bson:"smoking" json:"smoking"`
    PetFriendly bool   `bson:"pet_friendly" json:"pet_friendly"`
    Music       bool   `bson:"music" json:"music"`
    FemaleOnly  bool   `bson:"female_only" json:"female_only"`
    Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`
}
