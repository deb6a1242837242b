package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"

	"villagehub/internal/config"
	"villagehub/internal/db"
	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), nil)
	if _, err := e.RegisterAdmin(context.Background(), "root", "secret1"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	handler, err := New(Config{Engine: e, Auth: auth, BasePath: "/v0"})
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
		Engine: e,
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

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func login(t *testing.T, srv *testServer, role domain.Role, name, password string) (string, int64) {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"role": role, "login": name, "password": password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login %s status %d: %s", name, res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return out.Token, out.ActorID
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

type parties struct {
	Customer, Worker, Admin string
	CustomerID, WorkerID    int64
}

func registerParties(t *testing.T, srv *testServer) parties {
	t.Helper()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/customers", map[string]any{
		"name": "Asha", "email": "asha@example.com", "password": "secret1",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register customer status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/workers", map[string]any{
		"name": "Ravi", "phone": "555-0100", "skill": "Plumber", "price_per_hour": 12, "password": "secret1",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register worker status %d: %s", res.StatusCode, string(data))
	}
	var p parties
	p.Customer, p.CustomerID = login(t, srv, domain.RoleCustomer, "asha@example.com", "secret1")
	p.Worker, p.WorkerID = login(t, srv, domain.RoleWorker, "555-0100", "secret1")
	p.Admin, _ = login(t, srv, domain.RoleAdmin, "root", "secret1")
	return p
}

func TestBookingFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: testSecret})
	defer cleanup()
	client := srv.Client()
	p := registerParties(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bookings", map[string]any{
		"worker_id": p.WorkerID, "service_date": "2024-02-01", "address": "12 Well Road",
	}, bearer(p.Customer))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create booking status %d: %s", res.StatusCode, string(data))
	}
	var b domain.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("unmarshal booking: %v", err)
	}
	if b.Status != domain.StatusRequested || b.CustomerID == nil || *b.CustomerID != p.CustomerID {
		t.Fatalf("unexpected booking %+v", b)
	}
	bookingURL := fmt.Sprintf("%s/v0/bookings/%d", srv.URL, b.ID)

	// The customer cannot drive the lifecycle.
	res, data = doJSON(t, client, http.MethodPost, bookingURL+"/transitions", map[string]any{"status": "accepted"}, bearer(p.Customer))
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "authorization" {
		t.Fatalf("customer transition status %d: %s", res.StatusCode, string(data))
	}

	// Not reviewable yet.
	res, data = doJSON(t, client, http.MethodPost, bookingURL+"/review", map[string]any{"rating": 5, "review_text": "great"}, bearer(p.Customer))
	if res.StatusCode != http.StatusUnprocessableEntity || errorCode(t, data) != "not_eligible" {
		t.Fatalf("early review status %d: %s", res.StatusCode, string(data))
	}

	for _, status := range []string{"accepted", "completed"} {
		res, data = doJSON(t, client, http.MethodPost, bookingURL+"/transitions", map[string]any{"status": status}, bearer(p.Worker))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s status %d: %s", status, res.StatusCode, string(data))
		}
	}
	res, data = doJSON(t, client, http.MethodPost, bookingURL+"/transitions", map[string]any{"status": "accepted"}, bearer(p.Worker))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "invalid_transition" {
		t.Fatalf("terminal transition status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, bookingURL+"/review-eligibility", nil, bearer(p.Customer))
	var el EligibilityResponse
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &el) != nil || el.Eligibility != domain.EligibilityEligible {
		t.Fatalf("eligibility status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, bookingURL+"/review", map[string]any{"rating": 4, "review_text": "tidy work"}, bearer(p.Customer))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("review status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, bookingURL+"/review", map[string]any{"rating": 2, "review_text": "again"}, bearer(p.Customer))
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "duplicate_review" {
		t.Fatalf("duplicate review status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v0/workers/%d/rating", srv.URL, p.WorkerID), nil, bearer(p.Customer))
	var rating WorkerRatingResponse
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &rating) != nil || rating.Rating != 4 {
		t.Fatalf("rating status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me/bookings", nil, bearer(p.Customer))
	var list BookingList
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &list) != nil {
		t.Fatalf("my bookings status %d: %s", res.StatusCode, string(data))
	}
	if len(list.Items) != 1 || !list.Items[0].Reviewed || list.Items[0].Status != domain.StatusCompleted {
		t.Fatalf("unexpected booking list %+v", list.Items)
	}
}

func TestMessagesPollWithCursor(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: testSecret})
	defer cleanup()
	client := srv.Client()
	p := registerParties(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/bookings", map[string]any{
		"worker_id": p.WorkerID, "service_date": "2024-02-01", "address": "12 Well Road",
	}, bearer(p.Customer))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create booking status %d: %s", res.StatusCode, string(data))
	}
	var b domain.Booking
	_ = json.Unmarshal(data, &b)
	msgsURL := fmt.Sprintf("%s/v0/bookings/%d/messages", srv.URL, b.ID)

	for _, send := range []struct{ token, text string }{{p.Customer, "hello"}, {p.Worker, "on my way"}} {
		res, data = doJSON(t, client, http.MethodPost, msgsURL, map[string]any{"message_text": send.text}, bearer(send.token))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("post message status %d: %s", res.StatusCode, string(data))
		}
	}
	res, data = doJSON(t, client, http.MethodPost, msgsURL, map[string]any{"message_text": "   "}, bearer(p.Customer))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank message status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, msgsURL, map[string]any{"message_text": "hi"}, bearer(p.Admin))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("admin message status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, msgsURL, nil, bearer(p.Worker))
	var page MessageList
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &page) != nil {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	if len(page.Items) != 2 || page.Items[0].Text != "hello" || page.Items[1].SenderRole != domain.RoleWorker {
		t.Fatalf("unexpected history %+v", page.Items)
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s?after=%d", msgsURL, page.LastID), nil, bearer(p.Worker))
	var next MessageList
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &next) != nil {
		t.Fatalf("poll status %d: %s", res.StatusCode, string(data))
	}
	if len(next.Items) != 0 || next.LastID != page.LastID {
		t.Fatalf("expected empty poll at cursor %d, got %+v", page.LastID, next)
	}

	res, data = doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/v0/bookings/%d/messages", srv.URL, b.ID+100), nil, bearer(p.Admin))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing booking status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: testSecret})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me/bookings", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("anonymous status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me/bookings", nil, bearer("not-a-token"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/login", map[string]any{
		"role": "admin", "login": "root", "password": "wrong-password",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("bad login status %d: %s", res.StatusCode, string(data))
	}
	// Actor headers are ignored unless enabled.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Actor-Id": "1", "X-Actor-Role": "admin"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("actor headers accepted without opt-in: %d", res.StatusCode)
	}
}

func TestActorHeadersWhenAllowed(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{AllowActorHeaders: true})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/admin/stats", nil, map[string]string{"X-Actor-Id": "1", "X-Actor-Role": "admin"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/admin/stats", nil, map[string]string{"X-Actor-Id": "99", "X-Actor-Role": "admin"})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unknown_actor" {
		t.Fatalf("unknown actor status %d: %s", res.StatusCode, string(data))
	}
}

func TestAdminRoutes(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: testSecret})
	defer cleanup()
	client := srv.Client()
	p := registerParties(t, srv)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/admin/stats", nil, bearer(p.Customer))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("customer stats status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/admin/stats", nil, bearer(p.Admin))
	var st domain.Stats
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &st) != nil {
		t.Fatalf("stats status %d: %s", res.StatusCode, string(data))
	}
	if st.Customers != 1 || st.Workers != 1 || st.Bookings != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}

	res, data = doJSON(t, client, http.MethodDelete, fmt.Sprintf("%s/v0/admin/workers/%d", srv.URL, p.WorkerID), nil, bearer(p.Admin))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete worker status %d: %s", res.StatusCode, string(data))
	}
	// The deleted worker's token no longer authenticates.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, bearer(p.Worker))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted worker status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/admin/events?limit=1", nil, bearer(p.Admin))
	var page paginatedEvents
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &page) != nil {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	if len(page.Items) != 1 || page.Items[0].Type != "worker.deleted" || page.NextCursor == "" {
		t.Fatalf("unexpected events page %+v", page)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/admin/events?cursor="+page.NextCursor, nil, bearer(p.Admin))
	var older paginatedEvents
	if res.StatusCode != http.StatusOK || json.Unmarshal(data, &older) != nil {
		t.Fatalf("older events status %d: %s", res.StatusCode, string(data))
	}
	for _, ev := range older.Items {
		if ev.Type == "worker.deleted" {
			t.Fatalf("cursor did not page past newest event")
		}
	}
}

func TestOpenAPIConcurrentFetch(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: testSecret})
	defer cleanup()

	const n = 8
	bodies := make([][]byte, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := srv.client.Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				errs[i] = err
				return
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusOK {
				errs[i] = fmt.Errorf("status %d", res.StatusCode)
				return
			}
			bodies[i], errs[i] = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("fetch %d: %v", i, errs[i])
		}
		if !bytes.Equal(bodies[i], bodies[0]) {
			t.Fatalf("fetch %d returned a different document", i)
		}
	}
	var doc map[string]any
	if err := json.Unmarshal(bodies[0], &doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	if _, ok := doc["paths"]; !ok {
		t.Fatalf("openapi document has no paths")
	}
}
