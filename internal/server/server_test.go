package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"homeward/internal/config"
	"homeward/internal/db"
	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("homeward")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func createUserHTTP(t *testing.T, srv *testServer, name string, verified bool) domain.User {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/users", map[string]any{
		"display_name":   name,
		"email":          strings.ToLower(name) + "@example.com",
		"email_verified": verified,
		"phone_verified": verified,
	}, asActor("admin"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user %s: %d %s", name, res.StatusCode, string(data))
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	return u
}

// confirmedListing walks a pet through intervention, request, listing and
// moderation approval, returning the active listing.
func confirmedListing(t *testing.T, srv *testServer, ownerID string) domain.RehomingListing {
	t.Helper()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/pets", map[string]any{
		"owner_id": ownerID,
		"name":     "Biscuit",
		"species":  "dog",
		"breed":    "beagle",
	}, asActor(ownerID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pet: %d %s", res.StatusCode, string(data))
	}
	var pet domain.Pet
	_ = json.Unmarshal(data, &pet)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/interventions", map[string]any{
		"owner_id":        ownerID,
		"reason_category": "moving",
		"urgency":         "immediate",
	}, asActor(ownerID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start intervention: %d %s", res.StatusCode, string(data))
	}
	var iv domain.Intervention
	_ = json.Unmarshal(data, &iv)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/interventions/"+iv.ID+"/acknowledge", nil, asActor(ownerID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("acknowledge intervention: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests", map[string]any{
		"pet_id":         pet.ID,
		"owner_id":       ownerID,
		"urgency":        "immediate",
		"terms_accepted": true,
		"location_city":  "Portland",
		"location_state": "OR",
	}, asActor(ownerID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create request: %d %s", res.StatusCode, string(data))
	}
	var req domain.RehomingRequest
	_ = json.Unmarshal(data, &req)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests/"+req.ID+"/confirm", nil, asActor(ownerID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm request: %d %s", res.StatusCode, string(data))
	}

	story := strings.Repeat("Biscuit is a gentle beagle who loves long walks and children. ", 20)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/listings", map[string]any{
		"request_id":     req.ID,
		"rehoming_story": story,
		"adoption_fee":   120,
		"photos":         []string{"p1.jpg", "p2.jpg", "p3.jpg", "p4.jpg", "p5.jpg"},
		"medical_profile": map[string]any{
			"vaccinated":             true,
			"vaccination_record_ref": "vax-2024.pdf",
			"spayed_neutered":        true,
		},
	}, asActor(ownerID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create listing: %d %s", res.StatusCode, string(data))
	}
	var listing domain.RehomingListing
	_ = json.Unmarshal(data, &listing)
	if listing.Status != "pending_review" {
		t.Fatalf("listing status = %s, want pending_review", listing.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/listings/"+listing.ID+"/decision", map[string]any{
		"decision": "approved",
	}, asActor("moderator"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decide listing: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &listing)
	if listing.Status != "active" {
		t.Fatalf("listing status = %s, want active", listing.Status)
	}
	return listing
}

func TestAdoptionFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	owner := createUserHTTP(t, srv, "Morgan", true)
	adopter := createUserHTTP(t, srv, "Casey", true)
	listing := confirmedListing(t, srv, owner.ID)

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v1/profiles/"+adopter.ID, map[string]any{
		"housing_type":     "house_with_yard",
		"adults_count":     2,
		"experience_years": 5,
		"references_count": 2,
	}, asActor(adopter.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upsert profile: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications", map[string]any{
		"listing_id": listing.ID,
		"message":    "We would love to give Biscuit a home.",
	}, asActor(adopter.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit application: %d %s", res.StatusCode, string(data))
	}
	var app domain.AdoptionApplication
	_ = json.Unmarshal(data, &app)
	if app.Status != "pending_review" {
		t.Fatalf("application status = %s", app.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/advance", map[string]any{
		"status": "approved_meet_greet",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance application: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/meet-greets", map[string]any{
		"scheduled_at": "2030-01-02T10:00:00Z",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("schedule meet greet: %d %s", res.StatusCode, string(data))
	}
	var mg domain.MeetGreetSchedule
	_ = json.Unmarshal(data, &mg)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/meet-greets/"+mg.ID+"/complete", map[string]any{
		"outcome": "success",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete meet greet: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/home-checks", map[string]any{
		"scheduled_at": "2030-01-05T10:00:00Z",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("schedule home check: %d %s", res.StatusCode, string(data))
	}
	var hc domain.HomeCheck
	_ = json.Unmarshal(data, &hc)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/home-checks/"+hc.ID+"/complete", map[string]any{
		"passed": true,
		"checklist": map[string]any{
			"safety": map[string]bool{"fenced_yard": true, "no_hazards": true},
		},
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete home check: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/advance", map[string]any{
		"status": "ready_for_adoption",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance to ready: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/finalize", nil, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("finalize: %d %s", res.StatusCode, string(data))
	}
	var result engine.FinalizeResult
	_ = json.Unmarshal(data, &result)
	if result.Application.Status != "adopted" {
		t.Fatalf("application status = %s, want adopted", result.Application.Status)
	}
	if result.Contract.Status != "draft" {
		t.Fatalf("contract status = %s, want draft", result.Contract.Status)
	}
	if result.Payment.Amount != listing.AdoptionFee {
		t.Fatalf("payment amount = %d, want %d", result.Payment.Amount, listing.AdoptionFee)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/listings/"+listing.ID, nil, asActor(adopter.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get listing: %d %s", res.StatusCode, string(data))
	}
	var final domain.RehomingListing
	_ = json.Unmarshal(data, &final)
	if final.Status != "rehomed" {
		t.Fatalf("listing status = %s, want rehomed", final.Status)
	}
}

func TestCoolingOffEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	owner := createUserHTTP(t, srv, "Robin", true)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/pets", map[string]any{
		"owner_id": owner.ID,
		"name":     "Clover",
		"species":  "cat",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pet: %d %s", res.StatusCode, string(data))
	}
	var pet domain.Pet
	_ = json.Unmarshal(data, &pet)

	// non-immediate urgency starts the cooling-off window on acknowledgement
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/interventions", map[string]any{
		"owner_id":        owner.ID,
		"reason_category": "allergies",
		"urgency":         "soon",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start intervention: %d %s", res.StatusCode, string(data))
	}
	var iv domain.Intervention
	_ = json.Unmarshal(data, &iv)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/interventions/"+iv.ID+"/acknowledge", nil, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("acknowledge: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests", map[string]any{
		"pet_id":         pet.ID,
		"owner_id":       owner.ID,
		"urgency":        "immediate",
		"terms_accepted": true,
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create request: %d %s", res.StatusCode, string(data))
	}
	var req domain.RehomingRequest
	_ = json.Unmarshal(data, &req)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests/"+req.ID+"/confirm", nil, asActor(owner.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm request: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/listings", map[string]any{
		"request_id":     req.ID,
		"rehoming_story": "Clover needs a quieter home.",
		"adoption_fee":   50,
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "precondition_not_met" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
	secs, ok := envelope.Error.Details["seconds_remaining"].(float64)
	if !ok || secs <= 0 {
		t.Fatalf("seconds_remaining missing: %v", envelope.Error.Details)
	}
}

func TestOwnershipForbidden(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	owner := createUserHTTP(t, srv, "Avery", true)
	stranger := createUserHTTP(t, srv, "Quinn", true)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/pets", map[string]any{
		"owner_id": owner.ID,
		"name":     "Pepper",
		"species":  "dog",
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pet: %d %s", res.StatusCode, string(data))
	}
	var pet domain.Pet
	_ = json.Unmarshal(data, &pet)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests", map[string]any{
		"pet_id":         pet.ID,
		"owner_id":       owner.ID,
		"urgency":        "immediate",
		"terms_accepted": true,
	}, asActor(owner.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create request: %d %s", res.StatusCode, string(data))
	}
	var req domain.RehomingRequest
	_ = json.Unmarshal(data, &req)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/requests/"+req.ID+"/confirm", nil, asActor(stranger.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
	var envelope errorEnvelope
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "forbidden" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/listings", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/listings", nil, asActor("anyone"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("legacy header should pass, got %d %s", res.StatusCode, string(data))
	}
}

func TestDevLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"actor_id": "dev-user",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("token missing: %v %s", err, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.ActorID != "dev-user" || who.Source != "jwt" {
		t.Fatalf("unexpected principal: %+v", who)
	}
}

func TestEventsCursorPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	owner := createUserHTTP(t, srv, "Jamie", true)
	confirmedListing(t, srv, owner.ID)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?limit=2", nil, asActor("admin"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatal("expected next_cursor")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/events?limit=50&cursor="+page.NextCursor, nil, asActor("admin"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events page 2: %d %s", res.StatusCode, string(data))
	}
	var rest paginatedEvents
	_ = json.Unmarshal(data, &rest)
	if len(rest.Items) == 0 {
		t.Fatal("expected more events after cursor")
	}
	if rest.Items[0].ID <= page.Items[len(page.Items)-1].ID {
		t.Fatalf("cursor did not advance: %d then %d", page.Items[len(page.Items)-1].ID, rest.Items[0].ID)
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/api-keys", map[string]any{
		"name": "ci",
	}, asActor("keeper"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var created CreateAPIKeyResponse
	if err := json.Unmarshal(data, &created); err != nil || created.Key == "" {
		t.Fatalf("key missing: %v %s", err, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"X-Api-Key": created.Key,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me via api key: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.ActorID != "keeper" || who.Source != "api_key" {
		t.Fatalf("unexpected principal: %+v", who)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/api-keys/"+created.ID, nil, asActor("keeper"))
	if res.StatusCode >= 300 {
		t.Fatalf("delete key: %d %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"X-Api-Key": created.Key,
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted key should fail, got %d", res.StatusCode)
	}
}
