package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/ride-share/internal/model"
	"github.com/iliyamo/ride-share/internal/queue"
	"github.com/iliyamo/ride-share/internal/repository"
	"github.com/iliyamo/ride-share/internal/ride"
	"github.com/iliyamo/ride-share/internal/validation"
)

// memStore is an in-memory RideStore with the same CAS semantics as the
// Mongo repository: Replace only succeeds when the stored version matches
// the version the caller read.
type memStore struct {
	mu    sync.Mutex
	rides map[string]*model.Ride
}

func newMemStore() *memStore {
	return &memStore{rides: make(map[string]*model.Ride)}
}

func cloneRide(r *model.Ride) *model.Ride {
	cp := *r
	cp.Passengers = append([]model.PassengerRequest(nil), r.Passengers...)
	return &cp
}

func (s *memStore) Create(_ context.Context, r *model.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = primitive.NewObjectID()
	r.Version = 1
	if r.Passengers == nil {
		r.Passengers = []model.PassengerRequest{}
	}
	s.rides[r.ID.Hex()] = cloneRide(r)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, repository.ErrInvalidRideID
	}
	r, okr := s.rides[id]
	if !okr {
		return nil, repository.ErrRideNotFound
	}
	return cloneRide(r), nil
}

func (s *memStore) Replace(_ context.Context, r *model.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, okr := s.rides[r.ID.Hex()]
	if !okr {
		return repository.ErrRideNotFound
	}
	if cur.Version != r.Version {
		return repository.ErrVersionConflict
	}
	r.Version++
	s.rides[r.ID.Hex()] = cloneRide(r)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, okr := s.rides[id]; !okr {
		return repository.ErrRideNotFound
	}
	delete(s.rides, id)
	return nil
}

func (s *memStore) List(_ context.Context, _ repository.RideQuery) ([]*model.Ride, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Ride, 0, len(s.rides))
	for _, r := range s.rides {
		out = append(out, cloneRide(r))
	}
	return out, int64(len(out)), nil
}

func (s *memStore) ListByDriver(_ context.Context, driverID uint64) ([]*model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Ride
	for _, r := range s.rides {
		if r.DriverID == driverID {
			out = append(out, cloneRide(r))
		}
	}
	return out, nil
}

func (s *memStore) ListByPassenger(_ context.Context, userID uint64, status string) ([]*model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Ride
	for _, r := range s.rides {
		for _, p := range r.Passengers {
			if p.UserID == userID && (status == "" || p.Status == status) {
				out = append(out, cloneRide(r))
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) ListScheduled(_ context.Context) ([]*model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Ride
	for _, r := range s.rides {
		if r.Status == model.RideStatusScheduled {
			out = append(out, cloneRide(r))
		}
	}
	return out, nil
}

// seed inserts a scheduled ride owned by driverID with the given roster.
func seed(t *testing.T, s *memStore, driverID uint64, seats int, roster []model.PassengerRequest) *model.Ride {
	t.Helper()
	r := &model.Ride{
		DriverID:       driverID,
		StartLocation:  "Tehran",
		EndLocation:    "Karaj",
		AvailableSeats: seats,
		Passengers:     roster,
		Status:         model.RideStatusScheduled,
	}
	if err := s.Create(context.Background(), r); err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return r
}

func newTestHandler(s *memStore) *RideHandler {
	h := NewRideHandler(s, ride.ExactMatchScorer{})
	h.publishApproved = func(context.Context, queue.PassengerApprovedEvent) error { return nil }
	return h
}

// do runs an echo request with user_id pre-set, mimicking the JWT middleware.
func do(method, target, body string, userID uint64, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validation.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateRide(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)

	body := `{"start_location":"Tehran","end_location":"Karaj",` +
		`"departure_time":"2026-09-01T08:00:00Z","available_seats":3,` +
		`"vehicle":{"model":"Peugeot 206","license_plate":"12A345"}}`
	c, rec := do(http.MethodPost, "/v1/rides", body, 7)
	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env["success"] != true {
		t.Fatalf("success = %v", env["success"])
	}
	data := env["data"].(map[string]interface{})
	if data["driver_id"] != float64(7) {
		t.Errorf("driver_id = %v, want 7", data["driver_id"])
	}
	if data["status"] != model.RideStatusScheduled {
		t.Errorf("status = %v, want scheduled", data["status"])
	}
	if ps, okp := data["passengers"].([]interface{}); !okp || len(ps) != 0 {
		t.Errorf("passengers = %v, want empty array", data["passengers"])
	}
}

func TestCreateRideRejectsZeroSeats(t *testing.T) {
	h := newTestHandler(newMemStore())
	body := `{"start_location":"A","end_location":"B",` +
		`"departure_time":"2026-09-01T08:00:00Z","available_seats":0,` +
		`"vehicle":{"model":"X","license_plate":"Y"}}`
	c, rec := do(http.MethodPost, "/v1/rides", body, 7)
	if err := h.Create(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestJoinFullRide(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 1, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerApproved},
	})

	c, rec := do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 3, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env["error"] != ride.ErrRideFull.Error() {
		t.Errorf("error = %v, want %q", env["error"], ride.ErrRideFull)
	}
}

func TestJoinAfterRejectionBlocked(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerRejected},
	})

	c, rec := do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 2, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env["error"] != ride.ErrDuplicateRequest.Error() {
		t.Errorf("error = %v, want %q", env["error"], ride.ErrDuplicateRequest)
	}
}

func TestJoinUnknownRide(t *testing.T) {
	h := newTestHandler(newMemStore())
	id := primitive.NewObjectID().Hex()
	c, rec := do(http.MethodPost, "/v1/rides/"+id+"/join", "", 2, "id", id)
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRespondNonDriverForbidden(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerPending},
	})

	c, rec := do(http.MethodPut, "/v1/rides/"+r.ID.Hex()+"/passengers/2",
		`{"status":"approved"}`, 5, "id", r.ID.Hex())
	c.SetParamNames("id", "userId")
	c.SetParamValues(r.ID.Hex(), "2")
	if err := h.Respond(c); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestRespondApprovePublishesEvent(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerPending},
	})

	var published []queue.PassengerApprovedEvent
	h.publishApproved = func(_ context.Context, ev queue.PassengerApprovedEvent) error {
		published = append(published, ev)
		return nil
	}

	c, rec := do(http.MethodPut, "/v1/rides/"+r.ID.Hex()+"/passengers/2",
		`{"status":"approved"}`, 1, "id", r.ID.Hex())
	c.SetParamNames("id", "userId")
	c.SetParamValues(r.ID.Hex(), "2")
	if err := h.Respond(c); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	ev := published[0]
	if ev.RideID != r.ID.Hex() || ev.RiderID != 2 || ev.DriverID != 1 {
		t.Errorf("event = %+v", ev)
	}
	if ev.SeatsRemaining != 2 {
		t.Errorf("seats_remaining = %d, want 2", ev.SeatsRemaining)
	}

	got, err := s.GetByID(context.Background(), r.ID.Hex())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Passengers[0].Status != model.PassengerApproved {
		t.Errorf("roster status = %q, want approved", got.Passengers[0].Status)
	}
}

func TestRespondRejectDoesNotPublish(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerPending},
	})

	h.publishApproved = func(context.Context, queue.PassengerApprovedEvent) error {
		t.Fatal("publish called on rejection")
		return nil
	}

	c, rec := do(http.MethodPut, "/v1/rides/"+r.ID.Hex()+"/passengers/2",
		`{"status":"rejected"}`, 1, "id", r.ID.Hex())
	c.SetParamNames("id", "userId")
	c.SetParamValues(r.ID.Hex(), "2")
	if err := h.Respond(c); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRespondBrokerOutageDoesNotFailRequest(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerPending},
	})

	h.publishApproved = func(context.Context, queue.PassengerApprovedEvent) error {
		return errors.New("broker down")
	}

	c, rec := do(http.MethodPut, "/v1/rides/"+r.ID.Hex()+"/passengers/2",
		`{"status":"approved"}`, 1, "id", r.ID.Hex())
	c.SetParamNames("id", "userId")
	c.SetParamValues(r.ID.Hex(), "2")
	if err := h.Respond(c); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteThenGet(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	// Approved passengers go down with the document; no tombstone or
	// separate roster survives the delete.
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerApproved},
		{UserID: 3, Status: model.PassengerApproved},
	})

	c, rec := do(http.MethodDelete, "/v1/rides/"+r.ID.Hex(), "", 1, "id", r.ID.Hex())
	if err := h.Delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}

	c, rec = do(http.MethodGet, "/v1/rides/"+r.ID.Hex(), "", 1, "id", r.ID.Hex())
	if err := h.Get(c); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get status = %d, want 404", rec.Code)
	}

	// The embedded roster is gone with the document.
	c, rec = do(http.MethodGet, "/v1/rides/user/joined", "", 2)
	if err := h.JoinedRides(c); err != nil {
		t.Fatalf("joined: %v", err)
	}
	if env := decodeEnvelope(t, rec); env["count"] != float64(0) {
		t.Errorf("joined count after delete = %v, want 0", env["count"])
	}
}

func TestDeleteNonDriverForbidden(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, nil)

	c, rec := do(http.MethodDelete, "/v1/rides/"+r.ID.Hex(), "", 9, "id", r.ID.Hex())
	if err := h.Delete(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestUpdateShrinkSeatsBelowApproved(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 4, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerApproved},
		{UserID: 3, Status: model.PassengerApproved},
		{UserID: 4, Status: model.PassengerApproved},
	})

	c, rec := do(http.MethodPut, "/v1/rides/"+r.ID.Hex(),
		`{"available_seats":2}`, 1, "id", r.ID.Hex())
	if err := h.Update(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	got, err := s.GetByID(context.Background(), r.ID.Hex())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AvailableSeats != 2 {
		t.Errorf("available_seats = %d, want 2", got.AvailableSeats)
	}
	// The ride is now over-subscribed; further joins must see it as full.
	c, rec = do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 9, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("join status = %d, want 400", rec.Code)
	}
}

func TestCancelThenRejoin(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 3, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerPending},
	})

	c, rec := do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/cancel", "", 2, "id", r.ID.Hex())
	if err := h.CancelRequest(c); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", rec.Code)
	}

	c, rec = do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 2, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("rejoin status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestLeaveFreesSeat(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	r := seed(t, s, 1, 1, []model.PassengerRequest{
		{UserID: 2, Status: model.PassengerApproved},
	})

	c, rec := do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/leave", "", 2, "id", r.ID.Hex())
	if err := h.Leave(c); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d, want 200", rec.Code)
	}

	c, rec = do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 3, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

// conflictingStore wraps memStore so Replace loses the version race a
// fixed number of times (forever when conflicts < 0) before succeeding.
type conflictingStore struct {
	*memStore
	conflicts int
	replaces  int
}

func (s *conflictingStore) Replace(ctx context.Context, r *model.Ride) error {
	s.replaces++
	if s.conflicts < 0 || s.replaces <= s.conflicts {
		return repository.ErrVersionConflict
	}
	return s.memStore.Replace(ctx, r)
}

func TestJoinRetriesAfterVersionConflict(t *testing.T) {
	mem := newMemStore()
	s := &conflictingStore{memStore: mem, conflicts: 1}
	h := NewRideHandler(s, ride.ExactMatchScorer{})
	h.publishApproved = func(context.Context, queue.PassengerApprovedEvent) error { return nil }
	r := seed(t, mem, 1, 3, nil)

	c, rec := do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 2, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 after retry: %s", rec.Code, rec.Body.String())
	}
	if s.replaces != 2 {
		t.Errorf("replace attempts = %d, want 2 (one conflict, one success)", s.replaces)
	}

	got, err := mem.GetByID(context.Background(), r.ID.Hex())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Passengers) != 1 || got.Passengers[0].UserID != 2 {
		t.Errorf("roster = %+v, want the retried join applied once", got.Passengers)
	}
}

func TestJoinConflictExhaustionReturns409(t *testing.T) {
	mem := newMemStore()
	s := &conflictingStore{memStore: mem, conflicts: -1}
	h := NewRideHandler(s, ride.ExactMatchScorer{})
	h.publishApproved = func(context.Context, queue.PassengerApprovedEvent) error { return nil }
	r := seed(t, mem, 1, 3, nil)

	c, rec := do(http.MethodPost, "/v1/rides/"+r.ID.Hex()+"/join", "", 2, "id", r.ID.Hex())
	if err := h.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 after exhausted retries: %s", rec.Code, rec.Body.String())
	}
	if s.replaces != casRetries {
		t.Errorf("replace attempts = %d, want %d", s.replaces, casRetries)
	}
	env := decodeEnvelope(t, rec)
	if env["success"] != false {
		t.Errorf("success = %v, want false", env["success"])
	}
}

func TestMatchOrdersByPercentage(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	seed(t, s, 1, 3, nil) // Tehran -> Karaj, both match
	partial := seed(t, s, 2, 3, nil)
	partial.EndLocation = "Qom"
	if err := s.Replace(context.Background(), partial); err != nil {
		t.Fatalf("replace: %v", err)
	}

	c, rec := do(http.MethodPost, "/v1/rides/match",
		`{"start_location":"tehran","end_location":"karaj"}`, 5)
	if err := h.Match(c); err != nil {
		t.Fatalf("match: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", env["count"])
	}
	data := env["data"].([]interface{})
	first := data[0].(map[string]interface{})
	second := data[1].(map[string]interface{})
	if first["match_percentage"] != float64(100) {
		t.Errorf("first match = %v, want 100", first["match_percentage"])
	}
	if second["match_percentage"] != float64(50) {
		t.Errorf("second match = %v, want 50", second["match_percentage"])
	}
}

func TestUserViews(t *testing.T) {
	s := newMemStore()
	h := newTestHandler(s)
	seed(t, s, 1, 3, nil)
	seed(t, s, 2, 3, []model.PassengerRequest{
		{UserID: 1, Status: model.PassengerApproved},
	})
	seed(t, s, 3, 3, []model.PassengerRequest{
		{UserID: 1, Status: model.PassengerPending},
	})

	c, rec := do(http.MethodGet, "/v1/rides/user/offered", "", 1)
	if err := h.OfferedRides(c); err != nil {
		t.Fatalf("offered: %v", err)
	}
	if env := decodeEnvelope(t, rec); env["count"] != float64(1) {
		t.Errorf("offered count = %v, want 1", env["count"])
	}

	c, rec = do(http.MethodGet, "/v1/rides/user/joined", "", 1)
	if err := h.JoinedRides(c); err != nil {
		t.Fatalf("joined: %v", err)
	}
	if env := decodeEnvelope(t, rec); env["count"] != float64(1) {
		t.Errorf("joined count = %v, want 1", env["count"])
	}

	c, rec = do(http.MethodGet, "/v1/rides/user/pending", "", 1)
	if err := h.PendingRides(c); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if env := decodeEnvelope(t, rec); env["count"] != float64(1) {
		t.Errorf("pending count = %v, want 1", env["count"])
	}
}
