package service

import (
	"context"
	"testing"
	"time"

	"workspacemgr/pkg/events"
	"workspacemgr/pkg/model"
)

func newSweepEnv(t *testing.T) (*noShowService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	sweeper := NewNoShowService(testConfig(), env.repo, env.locks, env.publisher, testLogger()).(*noShowService)
	return sweeper, env
}

func seedConfirmed(t *testing.T, env *testEnv, caller model.Caller, resourceID, date, start, end string) string {
	t.Helper()
	b := deskBooking(date, start, end)
	b.Resource.ID = resourceID
	view, err := env.svc.Create(context.Background(), caller, b)
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	return view.ID
}

func TestSweepFlagsOverdueBookings(t *testing.T) {
	sweeper, env := newSweepEnv(t)
	ctx := context.Background()

	// Started at 08:00, grace ends 10:00; at 12:00 this is overdue.
	overdue := seedConfirmed(t, env, alice(), "desk-1", "2026-09-01", "08:00", "09:00")
	// Started at 11:00; still within grace at 12:00.
	within := seedConfirmed(t, env, alice(), "desk-2", "2026-09-01", "11:00", "13:00")

	sweeper.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T12:00:00Z"))
	flagged, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if flagged != 1 {
		t.Fatalf("expected 1 flagged booking, got %d", flagged)
	}

	got, err := env.repo.FindByID(ctx, "tenant-1", overdue)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.Status != model.StatusNoShow || !got.IsNoShow {
		t.Errorf("expected no-show, got status=%s is_no_show=%v", got.Status, got.IsNoShow)
	}

	untouched, err := env.repo.FindByID(ctx, "tenant-1", within)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if untouched.Status != model.StatusConfirmed {
		t.Errorf("expected booking within grace to stay confirmed, got %s", untouched.Status)
	}

	found := false
	for _, e := range env.publisher.published() {
		if e == events.TypeBookingNoShow {
			found = true
		}
	}
	if !found {
		t.Error("expected a no-show event to be published")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	sweeper, env := newSweepEnv(t)
	ctx := context.Background()

	seedConfirmed(t, env, alice(), "desk-1", "2026-09-01", "08:00", "09:00")
	sweeper.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T12:00:00Z"))

	first, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected 1 flagged on first sweep, got %d", first)
	}

	second, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if second != 0 {
		t.Errorf("expected second sweep to flag nothing, got %d", second)
	}
}

func TestSweepSkipsCheckedInBookings(t *testing.T) {
	sweeper, env := newSweepEnv(t)
	ctx := context.Background()

	id := seedConfirmed(t, env, alice(), "desk-1", "2026-09-01", "08:00", "12:00")
	env.svc.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T08:05:00Z"))
	if _, err := env.svc.CheckIn(ctx, alice(), id); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	sweeper.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T11:00:00Z"))
	flagged, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if flagged != 0 {
		t.Errorf("expected checked-in booking to be skipped, got %d flagged", flagged)
	}
}

func TestSweepSkipsWhenCutoffBeforeToday(t *testing.T) {
	sweeper, env := newSweepEnv(t)

	seedConfirmed(t, env, alice(), "desk-1", "2026-09-01", "08:00", "09:00")

	// At 01:00 the two hour grace reaches into yesterday; nothing today can
	// be overdue yet.
	sweeper.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T01:00:00Z"))
	flagged, err := sweeper.Run(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if flagged != 0 {
		t.Errorf("expected nothing flagged before grace can elapse, got %d", flagged)
	}
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	sweeper, env := newSweepEnv(t)
	ctx := context.Background()

	seedConfirmed(t, env, alice(), "desk-1", "2026-09-01", "08:00", "09:00")
	sweeper.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T12:00:00Z"))

	if err := env.locks.Acquire(ctx, sweepLockID, time.Minute); err != nil {
		t.Fatalf("failed to pre-acquire sweep lock: %v", err)
	}

	flagged, err := sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("expected held lock to be a clean skip, got: %v", err)
	}
	if flagged != 0 {
		t.Errorf("expected 0 flagged while lock held, got %d", flagged)
	}
}

func TestMarkNoShowLosesToConcurrentCheckIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := seedConfirmed(t, env, alice(), "desk-1", "2026-09-01", "08:00", "12:00")

	// Simulate a check-in committing between the candidate scan and the
	// conditional mark: the mark must observe the new state and back off.
	env.svc.now = fixedClock(mustTime(time.RFC3339, "2026-09-01T10:30:00Z"))
	if _, err := env.svc.CheckIn(ctx, alice(), id); err != nil {
		t.Fatalf("check-in failed: %v", err)
	}

	marked, err := env.repo.MarkNoShow(ctx, id)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if marked {
		t.Error("expected conditional mark to refuse a checked-in booking")
	}
}
