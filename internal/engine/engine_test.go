package engine_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"villagehub/internal/apperr"
	"villagehub/internal/config"
	"villagehub/internal/db"
	"villagehub/internal/domain"
	"villagehub/internal/engine"
	"villagehub/internal/migrate"
	"villagehub/internal/repo"
)

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Customer domain.Actor
	Worker   domain.Actor
	Admin    domain.Actor
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), nil)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }

	c, err := eng.RegisterCustomer(ctx, engine.CustomerRegistration{Name: "Asha", Email: "asha@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register customer: %v", err)
	}
	w, err := eng.RegisterWorker(ctx, engine.WorkerRegistration{Name: "Ravi", Phone: "555-0100", Skill: "Plumber", PricePerHour: 12, Password: "secret1"})
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	a, err := eng.RegisterAdmin(ctx, "root", "secret1")
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	return testEnv{
		Engine:   eng,
		Ctx:      ctx,
		Customer: domain.Actor{ID: c.ID, Role: domain.RoleCustomer},
		Worker:   domain.Actor{ID: w.ID, Role: domain.RoleWorker},
		Admin:    domain.Actor{ID: a.ID, Role: domain.RoleAdmin},
	}
}

func (env testEnv) book(t *testing.T) domain.Booking {
	t.Helper()
	b, err := env.Engine.CreateBooking(env.Ctx, engine.BookingCreateOptions{
		CustomerID:  env.Customer.ID,
		WorkerID:    env.Worker.ID,
		ServiceDate: "2024-02-01",
		Address:     "12 Well Road",
		Actor:       env.Customer,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// bookingIn returns a booking that reached status through the regular path.
func (env testEnv) bookingIn(t *testing.T, status domain.Status) domain.Booking {
	t.Helper()
	b := env.book(t)
	var path []domain.Status
	switch status {
	case domain.StatusAccepted:
		path = []domain.Status{domain.StatusAccepted}
	case domain.StatusRejected:
		path = []domain.Status{domain.StatusRejected}
	case domain.StatusCompleted:
		path = []domain.Status{domain.StatusAccepted, domain.StatusCompleted}
	}
	for _, s := range path {
		var err error
		if b, err = env.Engine.TransitionBooking(env.Ctx, b.ID, env.Worker, s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	return b
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t)
	b := env.book(t)
	if b.Status != domain.StatusRequested || b.ID == 0 {
		t.Fatalf("unexpected booking %+v", b)
	}
	got, err := env.Engine.GetBooking(env.Ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsCustomer(env.Customer.ID) || !got.IsWorker(env.Worker.ID) || got.CreatedAt != "2024-01-01T09:00:00Z" {
		t.Fatalf("stored booking mismatch: %+v", got)
	}
}

func TestCreateBookingErrors(t *testing.T) {
	env := newTestEnv(t)
	base := engine.BookingCreateOptions{
		CustomerID: env.Customer.ID, WorkerID: env.Worker.ID,
		ServiceDate: "2024-02-01", Address: "12 Well Road", Actor: env.Customer,
	}
	cases := []struct {
		name string
		mod  func(o *engine.BookingCreateOptions)
		want error
	}{
		{"blank date", func(o *engine.BookingCreateOptions) { o.ServiceDate = "  " }, apperr.ErrValidation},
		{"blank address", func(o *engine.BookingCreateOptions) { o.Address = "" }, apperr.ErrValidation},
		{"other customer", func(o *engine.BookingCreateOptions) { o.Actor = domain.Actor{ID: env.Customer.ID + 1, Role: domain.RoleCustomer} }, apperr.ErrAuthorization},
		{"worker actor", func(o *engine.BookingCreateOptions) { o.Actor = env.Worker }, apperr.ErrAuthorization},
		{"missing worker", func(o *engine.BookingCreateOptions) { o.WorkerID = 999 }, apperr.ErrReference},
		{"missing customer", func(o *engine.BookingCreateOptions) { o.CustomerID = 999; o.Actor = env.Admin }, apperr.ErrReference},
	}
	for _, tc := range cases {
		opts := base
		tc.mod(&opts)
		_, err := env.Engine.CreateBooking(env.Ctx, opts)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestTransitionGrid(t *testing.T) {
	env := newTestEnv(t)
	for _, from := range domain.Statuses {
		for _, to := range domain.Statuses {
			b := env.bookingIn(t, from)
			_, err := env.Engine.TransitionBooking(env.Ctx, b.ID, env.Worker, to)
			legal := domain.CanTransition(from, to)
			if legal && err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
			if !legal && !errors.Is(err, apperr.ErrInvalidTransition) {
				t.Errorf("%s -> %s: got %v, want invalid transition", from, to, err)
			}
			got, _ := env.Engine.GetBooking(env.Ctx, b.ID)
			want := from
			if legal {
				want = to
			}
			if got.Status != want {
				t.Errorf("%s -> %s: status now %s, want %s", from, to, got.Status, want)
			}
		}
	}
}

func TestTransitionRoleGating(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.RegisterWorker(env.Ctx, engine.WorkerRegistration{Name: "Other", Email: "o@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	b := env.book(t)
	for _, actor := range []domain.Actor{env.Customer, env.Admin, {ID: other.ID, Role: domain.RoleWorker}} {
		if _, err := env.Engine.TransitionBooking(env.Ctx, b.ID, actor, domain.StatusAccepted); !errors.Is(err, apperr.ErrAuthorization) {
			t.Errorf("actor %+v: got %v, want authorization", actor, err)
		}
	}
	if _, err := env.Engine.TransitionBooking(env.Ctx, 4242, env.Worker, domain.StatusAccepted); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing booking: got %v", err)
	}
	got, _ := env.Engine.GetBooking(env.Ctx, b.ID)
	if got.Status != domain.StatusRequested {
		t.Fatalf("status changed by unauthorized actor: %s", got.Status)
	}
}

func TestForceTransition(t *testing.T) {
	env := newTestEnv(t)
	b := env.bookingIn(t, domain.StatusRejected)
	if _, err := env.Engine.ForceTransition(env.Ctx, b.ID, env.Worker, domain.StatusRequested, "reopen"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("worker force: got %v", err)
	}
	if _, err := env.Engine.ForceTransition(env.Ctx, b.ID, env.Admin, domain.StatusRejected, "noop"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("self force: got %v", err)
	}
	got, err := env.Engine.ForceTransition(env.Ctx, b.ID, env.Admin, domain.StatusRequested, "customer called back")
	if err != nil || got.Status != domain.StatusRequested {
		t.Fatalf("force: %v %+v", err, got)
	}
	evts, err := env.Engine.Events(env.Ctx, env.Admin, repo.EventFilters{Type: "booking.status.forced"})
	if err != nil || len(evts) != 1 || evts[0].EntityID != b.ID {
		t.Fatalf("forced event not recorded: %v %+v", err, evts)
	}
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	env := newTestEnv(t)
	b := env.book(t)
	targets := []domain.Status{domain.StatusAccepted, domain.StatusRejected, domain.StatusAccepted, domain.StatusRejected, domain.StatusAccepted, domain.StatusRejected}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for _, target := range targets {
		wg.Add(1)
		go func(s domain.Status) {
			defer wg.Done()
			_, err := env.Engine.TransitionBooking(env.Ctx, b.ID, env.Worker, s)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errs = append(errs, err)
			}
		}(target)
	}
	wg.Wait()
	if oks != 1 {
		t.Fatalf("expected exactly one transition to apply, got %d", oks)
	}
	for _, err := range errs {
		if !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("loser got %v, want invalid transition", err)
		}
	}
	evts, _ := env.Engine.Events(env.Ctx, env.Admin, repo.EventFilters{Type: "booking.status.changed", EntityID: b.ID})
	if len(evts) != 1 {
		t.Fatalf("expected one status event, got %d", len(evts))
	}
}

func TestReviewEligibilityCombinations(t *testing.T) {
	env := newTestEnv(t)

	// completed, no review -> review accepted
	done := env.bookingIn(t, domain.StatusCompleted)
	if e, _ := env.Engine.CheckReviewEligibility(env.Ctx, done.ID); e != domain.EligibilityEligible {
		t.Fatalf("eligibility = %s", e)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, done.ID, env.Customer.ID, 4, "Good"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if e, _ := env.Engine.CheckReviewEligibility(env.Ctx, done.ID); e != domain.EligibilityReviewed {
		t.Fatalf("eligibility = %s", e)
	}

	// completed, review exists -> duplicate
	if _, err := env.Engine.SubmitReview(env.Ctx, done.ID, env.Customer.ID, 5, "Again"); !errors.Is(err, apperr.ErrDuplicateReview) {
		t.Fatalf("second review: %v", err)
	}

	// not completed, no review -> not eligible
	for _, s := range []domain.Status{domain.StatusRequested, domain.StatusAccepted, domain.StatusRejected} {
		b := env.bookingIn(t, s)
		if e, _ := env.Engine.CheckReviewEligibility(env.Ctx, b.ID); e != domain.EligibilityNone {
			t.Fatalf("%s eligibility = %s", s, e)
		}
		if _, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, 5, "Early"); !errors.Is(err, apperr.ErrNotEligible) {
			t.Fatalf("%s review: got %v", s, err)
		}
	}

	// not completed, review exists (reopened by an admin) -> not eligible
	if _, err := env.Engine.ForceTransition(env.Ctx, done.ID, env.Admin, domain.StatusAccepted, "dispute"); err != nil {
		t.Fatalf("force: %v", err)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, done.ID, env.Customer.ID, 1, "Reopened"); !errors.Is(err, apperr.ErrNotEligible) {
		t.Fatalf("reopened review: got %v", err)
	}
	if e, _ := env.Engine.CheckReviewEligibility(env.Ctx, done.ID); e != domain.EligibilityReviewed {
		t.Fatalf("reopened eligibility = %s", e)
	}
	if _, err := env.Engine.CheckReviewEligibility(env.Ctx, 4242); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing booking eligibility: %v", err)
	}
}

func TestSubmitReviewPreconditionOrder(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SubmitReview(env.Ctx, 4242, env.Customer.ID, 9, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing booking: %v", err)
	}
	open := env.book(t)
	// Authorization beats eligibility and validation.
	if _, err := env.Engine.SubmitReview(env.Ctx, open.ID, env.Customer.ID+7, 9, ""); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("wrong customer: %v", err)
	}
	// Eligibility beats validation.
	if _, err := env.Engine.SubmitReview(env.Ctx, open.ID, env.Customer.ID, 9, ""); !errors.Is(err, apperr.ErrNotEligible) {
		t.Fatalf("open booking: %v", err)
	}
	done := env.bookingIn(t, domain.StatusCompleted)
	for _, tc := range []struct {
		rating int
		text   string
	}{{0, "ok"}, {6, "ok"}, {3, "   "}} {
		if _, err := env.Engine.SubmitReview(env.Ctx, done.ID, env.Customer.ID, tc.rating, tc.text); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("rating %d text %q: got %v", tc.rating, tc.text, err)
		}
	}
	if e, _ := env.Engine.CheckReviewEligibility(env.Ctx, done.ID); e != domain.EligibilityEligible {
		t.Fatalf("rejected reviews must leave nothing behind, eligibility = %s", e)
	}
}

func TestWorkerRatingMean(t *testing.T) {
	env := newTestEnv(t)
	if r, err := env.Engine.WorkerRating(env.Ctx, env.Worker.ID); err != nil || r != 0 {
		t.Fatalf("initial rating = %v, %v", r, err)
	}
	for _, rating := range []int{5, 3, 4} {
		b := env.bookingIn(t, domain.StatusCompleted)
		if _, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, rating, "ok"); err != nil {
			t.Fatalf("submit %d: %v", rating, err)
		}
	}
	r, err := env.Engine.WorkerRating(env.Ctx, env.Worker.ID)
	if err != nil || r != 4.0 {
		t.Fatalf("rating = %v, %v; want 4", r, err)
	}
}

func TestConcurrentReviewsSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	b := env.bookingIn(t, domain.StatusCompleted)
	const n = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, rating, "race")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else {
				errs = append(errs, err)
			}
		}(i%5 + 1)
	}
	wg.Wait()
	if oks != 1 {
		t.Fatalf("expected one accepted review, got %d", oks)
	}
	for _, err := range errs {
		if !errors.Is(err, apperr.ErrDuplicateReview) {
			t.Fatalf("loser got %v, want duplicate review", err)
		}
	}
	rv, err := env.Engine.Repo.GetReviewByBooking(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := env.Engine.WorkerRating(env.Ctx, env.Worker.ID)
	if r != float64(rv.Rating) {
		t.Fatalf("rating %v does not match the single review %d", r, rv.Rating)
	}
}

func TestMessageOrderingWithIdenticalTimestamps(t *testing.T) {
	env := newTestEnv(t)
	b := env.book(t)
	posts := []struct {
		actor domain.Actor
		text  string
	}{{env.Customer, "A"}, {env.Worker, "B"}, {env.Customer, "C"}}
	for _, p := range posts {
		if _, err := env.Engine.PostMessage(env.Ctx, b.ID, p.actor.ID, p.actor.Role, p.text); err != nil {
			t.Fatalf("post %s: %v", p.text, err)
		}
	}
	hist, err := env.Engine.MessageHistory(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, m := range hist {
		got = append(got, m.Text)
	}
	if !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("history = %v", got)
	}
	tail, err := env.Engine.MessagesAfter(env.Ctx, b.ID, hist[0].ID)
	if err != nil || len(tail) != 2 || tail[0].Text != "B" {
		t.Fatalf("tail = %+v, %v", tail, err)
	}
}

func TestPostMessageChecks(t *testing.T) {
	env := newTestEnv(t)
	b := env.book(t)
	if _, err := env.Engine.PostMessage(env.Ctx, 4242, env.Customer.ID, domain.RoleCustomer, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing booking: %v", err)
	}
	if _, err := env.Engine.PostMessage(env.Ctx, b.ID, 999, domain.RoleWorker, " "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank text: %v", err)
	}
	if _, err := env.Engine.PostMessage(env.Ctx, b.ID, env.Customer.ID+100, domain.RoleCustomer, "stranger"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("unknown customer: %v", err)
	}

	// Customers and workers are numbered independently, so a second worker
	// gets an id no customer on this booking holds.
	other, err := env.Engine.RegisterWorker(env.Ctx, engine.WorkerRegistration{Name: "Meena", Phone: "555-0101", Skill: "Painter", PricePerHour: 10, Password: "secret1"})
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	if other.ID == env.Customer.ID {
		t.Fatalf("worker id %d collides with customer id", other.ID)
	}
	if _, err := env.Engine.PostMessage(env.Ctx, b.ID, other.ID, domain.RoleCustomer, "spoof"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("worker posing as customer: %v", err)
	}
	if _, err := env.Engine.PostMessage(env.Ctx, b.ID, other.ID, domain.RoleWorker, "not mine"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("unassigned worker: %v", err)
	}
	if _, err := env.Engine.PostMessage(env.Ctx, b.ID, env.Admin.ID, domain.RoleAdmin, "hi"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("admin post: %v", err)
	}
}

func TestPollingIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	b := env.bookingIn(t, domain.StatusAccepted)
	env.book(t)
	if _, err := env.Engine.PostMessage(env.Ctx, b.ID, env.Customer.ID, domain.RoleCustomer, "on my way?"); err != nil {
		t.Fatal(err)
	}
	first, err := env.Engine.ListBookingsForCustomer(env.Ctx, env.Customer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].ID <= first[1].ID {
		t.Fatalf("expected newest first: %+v", first)
	}
	if first[1].WorkerName == nil || *first[1].WorkerName != "Ravi" {
		t.Fatalf("worker name not joined: %+v", first[1])
	}
	h1, _ := env.Engine.MessageHistory(env.Ctx, b.ID)
	for i := 0; i < 3; i++ {
		again, _ := env.Engine.ListBookingsForCustomer(env.Ctx, env.Customer.ID)
		h2, _ := env.Engine.MessageHistory(env.Ctx, b.ID)
		if !reflect.DeepEqual(first, again) || !reflect.DeepEqual(h1, h2) {
			t.Fatalf("poll %d returned different results", i)
		}
	}
	id, _ := env.Engine.Repo.LatestEventID(env.Ctx)
	env.Engine.ListBookingsForWorker(env.Ctx, env.Worker.ID)
	env.Engine.CheckReviewEligibility(env.Ctx, b.ID)
	if again, _ := env.Engine.Repo.LatestEventID(env.Ctx); again != id {
		t.Fatalf("reads appended events")
	}
}

func TestEndToEndBooking(t *testing.T) {
	env := newTestEnv(t)
	b := env.book(t)
	if b.Status != domain.StatusRequested {
		t.Fatalf("status = %s", b.Status)
	}
	if _, err := env.Engine.TransitionBooking(env.Ctx, b.ID, env.Worker, domain.StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := env.Engine.TransitionBooking(env.Ctx, b.ID, env.Worker, domain.StatusRequested); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("back to requested: %v", err)
	}
	if _, err := env.Engine.TransitionBooking(env.Ctx, b.ID, env.Worker, domain.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, 5, "Great"); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, 5, "Great"); !errors.Is(err, apperr.ErrDuplicateReview) {
		t.Fatalf("duplicate: %v", err)
	}
	if r, _ := env.Engine.WorkerRating(env.Ctx, env.Worker.ID); r != 5 {
		t.Fatalf("rating = %v", r)
	}
	list, _ := env.Engine.ListBookingsForWorker(env.Ctx, env.Worker.ID)
	if len(list) != 1 || !list[0].Reviewed || list[0].CustomerName == nil || *list[0].CustomerName != "Asha" {
		t.Fatalf("worker dashboard = %+v", list)
	}
}

func TestAdminDeleteNullifiesReferences(t *testing.T) {
	env := newTestEnv(t)
	b := env.bookingIn(t, domain.StatusCompleted)
	if _, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, 4, "Fine"); err != nil {
		t.Fatal(err)
	}
	env.Engine.PostMessage(env.Ctx, b.ID, env.Customer.ID, domain.RoleCustomer, "thanks")
	env.Engine.PostMessage(env.Ctx, b.ID, env.Worker.ID, domain.RoleWorker, "welcome")

	if err := env.Engine.DeleteCustomer(env.Ctx, env.Worker, env.Customer.ID); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-admin delete: %v", err)
	}
	if err := env.Engine.DeleteCustomer(env.Ctx, env.Admin, env.Customer.ID); err != nil {
		t.Fatalf("delete customer: %v", err)
	}
	got, err := env.Engine.GetBooking(env.Ctx, b.ID)
	if err != nil {
		t.Fatalf("booking must survive: %v", err)
	}
	if got.CustomerID != nil || !got.IsWorker(env.Worker.ID) {
		t.Fatalf("references after delete: %+v", got)
	}
	rv, _ := env.Engine.Repo.GetReviewByBooking(env.Ctx, b.ID)
	if rv.CustomerID != nil {
		t.Fatalf("review customer not nulled")
	}
	hist, _ := env.Engine.MessageHistory(env.Ctx, b.ID)
	if len(hist) != 1 || hist[0].SenderRole != domain.RoleWorker {
		t.Fatalf("history after delete = %+v", hist)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, 5, "ghost"); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("review by deleted customer: %v", err)
	}
	if err := env.Engine.DeleteCustomer(env.Ctx, env.Admin, env.Customer.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestAdminDeleteBookingCascades(t *testing.T) {
	env := newTestEnv(t)
	b := env.bookingIn(t, domain.StatusCompleted)
	env.Engine.SubmitReview(env.Ctx, b.ID, env.Customer.ID, 2, "Late")
	env.Engine.PostMessage(env.Ctx, b.ID, env.Customer.ID, domain.RoleCustomer, "where?")
	if err := env.Engine.DeleteBooking(env.Ctx, env.Admin, b.ID); err != nil {
		t.Fatalf("delete booking: %v", err)
	}
	if _, err := env.Engine.Repo.GetReviewByBooking(env.Ctx, b.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("review not cascaded: %v", err)
	}
	msgs, _ := env.Engine.Repo.ListMessages(env.Ctx, b.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages not cascaded: %d", len(msgs))
	}
	if r, _ := env.Engine.WorkerRating(env.Ctx, env.Worker.ID); r != 0 {
		t.Fatalf("rating after cascade = %v", r)
	}
	stats, err := env.Engine.Stats(env.Ctx, env.Admin)
	if err != nil || stats.Bookings != 0 || stats.Customers != 1 || stats.Workers != 1 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
}
