package repository

import (
    "context"
    "errors"
    "strings"
    "time"

    "go.mongodb.org/mongo-driver/bson"
    "go.mongodb.org/mongo-driver/bson/primitive"
    "go.mongodb.org/mongo-driver/mongo"
    "go.mongodb.org/mongo-driver/mongo/options"

    "github.com/iliyamo/ride-share/internal/model"
)

// RideRepo persists ride aggregates in a MongoDB collection, one
// document per ride with the passenger roster embedded.  Every
// lifecycle mutation replaces the whole document through a
// compare-and-swap on the version field, so concurrent writers can
// never silently overwrite each other's roster changes.
type RideRepo struct {
    coll *mongo.Collection
}

// NewRideRepo returns a new RideRepo bound to the given collection.
func NewRideRepo(coll *mongo.Collection) *RideRepo { return &RideRepo{coll: coll} }

// Create inserts a new ride document.  It assigns the id, creation
// timestamp and initial version on the provided aggregate.
func (r *RideRepo) Create(ctx context.Context, ride *model.Ride) error {
    ride.ID = primitive.NewObjectID()
    ride.CreatedAt = time.Now().UTC()
    ride.Version = 1
    if ride.Passengers == nil {
        ride.Passengers = []model.PassengerRequest{}
    }
    _, err := r.coll.InsertOne(ctx, ride)
    return err
}

// GetByID fetches a single ride by its hex id.  It returns
// ErrInvalidRideID when the id does not parse and ErrRideNotFound when
// no document exists.
func (r *RideRepo) GetByID(ctx context.Context, id string) (*model.Ride, error) {
    oid, err := primitive.ObjectIDFromHex(id)
    if err != nil {
        return nil, ErrInvalidRideID
    }
    var ride model.Ride
    if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&ride); err != nil {
        if errors.Is(err, mongo.ErrNoDocuments) {
            return nil, ErrRideNotFound
        }
        return nil, err
    }
    return &ride, nil
}

// Replace writes the aggregate back, guarded by the version it was
// read at.  On success the in-memory version is bumped to match the
// stored document.  ErrVersionConflict means another writer got there
// first; the caller should re-read and re-apply its mutation.
func (r *RideRepo) Replace(ctx context.Context, ride *model.Ride) error {
    next := *ride
    next.Version = ride.Version + 1
    res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": ride.ID, "version": ride.Version}, &next)
    if err != nil {
        return err
    }
    if res.MatchedCount == 0 {
        return ErrVersionConflict
    }
    ride.Version = next.Version
    return nil
}

// Delete removes a ride document and, with it, every embedded
// passenger record.  Ownership checks are the caller's responsibility.
func (r *RideRepo) Delete(ctx context.Context, id string) error {
    oid, err := primitive.ObjectIDFromHex(id)
    if err != nil {
        return ErrInvalidRideID
    }
    res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
    if err != nil {
        return err
    }
    if res.DeletedCount == 0 {
        return ErrRideNotFound
    }
    return nil
}

// RideQuery captures the filtering, sorting and pagination options of
// the public ride listing.  Zero values mean "no filter".
type RideQuery struct {
    StartLocation   string    // exact start location (case-insensitive)
    EndLocation     string    // exact end location (case-insensitive)
    DriverID        uint64    // rides offered by a specific driver
    SeatsMin        int       // minimum total seat capacity
    DepartureAfter  time.Time // departure_time >= bound
    DepartureBefore time.Time // departure_time <= bound
    Sort            string    // field name, "-" prefix for descending
    Page            int       // 1-based page number
    Limit           int       // page size
}

// sortableRideFields whitelists the fields a client may sort the ride
// listing by.
var sortableRideFields = map[string]bool{
    "created_at":      true,
    "departure_time":  true,
    "available_seats": true,
}

// List returns one page of rides matching the query plus the total
// match count for building the pagination envelope.  The default order
// is newest first.
func (r *RideRepo) List(ctx context.Context, q RideQuery) ([]*model.Ride, int64, error) {
    filter := bson.M{}
    if q.StartLocation != "" {
        filter["start_location"] = caseInsensitiveExact(q.StartLocation)
    }
    if q.EndLocation != "" {
        filter["end_location"] = caseInsensitiveExact(q.EndLocation)
    }
    if q.DriverID != 0 {
        filter["driver_id"] = q.DriverID
    }
    if q.SeatsMin > 0 {
        filter["available_seats"] = bson.M{"$gte": q.SeatsMin}
    }
    departure := bson.M{}
    if !q.DepartureAfter.IsZero() {
        departure["$gte"] = q.DepartureAfter
    }
    if !q.DepartureBefore.IsZero() {
        departure["$lte"] = q.DepartureBefore
    }
    if len(departure) > 0 {
        filter["departure_time"] = departure
    }

    page := q.Page
    if page < 1 {
        page = 1
    }
    limit := q.Limit
    if limit < 1 {
        limit = 10
    }

    total, err := r.coll.CountDocuments(ctx, filter)
    if err != nil {
        return nil, 0, err
    }

    opts := options.Find().
        SetSort(parseSort(q.Sort)).
        SetSkip(int64((page - 1) * limit)).
        SetLimit(int64(limit))
    cur, err := r.coll.Find(ctx, filter, opts)
    if err != nil {
        return nil, 0, err
    }
    rides, err := decodeRides(ctx, cur)
    if err != nil {
        return nil, 0, err
    }
    return rides, total, nil
}

// ListByDriver returns every ride offered by the driver, newest first.
func (r *RideRepo) ListByDriver(ctx context.Context, driverID uint64) ([]*model.Ride, error) {
    return r.findSorted(ctx, bson.M{"driver_id": driverID})
}

// ListByPassenger returns rides where the user appears on the roster.
// When status is non-empty only records with that status match; an
// empty status matches any roster record for the user.
func (r *RideRepo) ListByPassenger(ctx context.Context, userID uint64, status string) ([]*model.Ride, error) {
    match := bson.M{"user_id": userID}
    if status != "" {
        match["status"] = status
    }
    return r.findSorted(ctx, bson.M{"passengers": bson.M{"$elemMatch": match}})
}

// ListScheduled returns all rides still in the scheduled state.  The
// match endpoint scores these candidates in memory.
func (r *RideRepo) ListScheduled(ctx context.Context) ([]*model.Ride, error) {
    return r.findSorted(ctx, bson.M{"status": model.RideStatusScheduled})
}

// findSorted runs a filter with the default newest-first order.
func (r *RideRepo) findSorted(ctx context.Context, filter bson.M) ([]*model.Ride, error) {
    cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
    if err != nil {
        return nil, err
    }
    return decodeRides(ctx, cur)
}

func decodeRides(ctx context.Context, cur *mongo.Cursor) ([]*model.Ride, error) {
    defer cur.Close(ctx)
    rides := make([]*model.Ride, 0)
    for cur.Next(ctx) {
        var ride model.Ride
        if err := cur.Decode(&ride); err != nil {
            return nil, err
        }
        rides = append(rides, &ride)
    }
    if err := cur.Err(); err != nil {
        return nil, err
    }
    return rides, nil
}

// parseSort maps a "field" or "-field" client value onto a Mongo sort
// document, falling back to newest first for unknown fields.
func parseSort(s string) bson.D {
    field := strings.TrimSpace(s)
    dir := 1
    if strings.HasPrefix(field, "-") {
        dir = -1
        field = field[1:]
    }
    if !sortableRideFields[field] {
        return bson.D{{Key: "created_at", Value: -1}}
    }
    return bson.D{{Key: field, Value: dir}}
}

// caseInsensitiveExact builds an anchored case-insensitive equality
// match, mirroring the string comparison used by the route scorer.
func caseInsensitiveExact(v string) bson.M {
    return bson.M{"$regex": "^" + escapeRegex(v) + "$", "$options": "i"}
}

// escapeRegex quotes regex metacharacters so user input matches
// literally.
func escapeRegex(v string) string {
    var b strings.Builder
    for _, r := range v {
        if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
            b.WriteRune('\\')
        }
        b.WriteRune(r)
    }
    return b.String()
}
