// Package queue defines message payloads exchanged over the message broker.
package queue

// PassengerApprovedEvent is published when a driver approves a join
// request.  It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the ride store.
// SeatsRemaining reflects open seats right after the approval and can
// be negative when the driver approves past capacity.
type PassengerApprovedEvent struct {
    RideID         string `json:"ride_id"`
    DriverID       uint64 `json:"driver_id"`
    RiderID        uint64 `json:"rider_id"`
    StartLocation  string `json:"start_location"`
    EndLocation    string `json:"end_location"`
    DepartureTime  string `json:"departure_time"`
    SeatsRemaining int    `json:"seats_remaining"`
    ApprovedAt     string `json:"approved_at"`
}
