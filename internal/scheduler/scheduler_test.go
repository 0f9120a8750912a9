package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOnceScheduleFiresOnce(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := onceSchedule{at: at}
	if got := s.Next(at.Add(-time.Hour)); !got.Equal(at) {
		t.Fatalf("want %v, got %v", at, got)
	}
	if got := s.Next(at); !got.IsZero() {
		t.Fatalf("must not fire again, got %v", got)
	}
}

func TestAddRecurringRejectsBadSpec(t *testing.T) {
	s := New(nil)
	if err := s.AddRecurring("bad", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected error")
	}
	if err := s.AddRecurring("praise", "15 14 * * 1", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestAddOnceOverdueRunsImmediately(t *testing.T) {
	s := New(nil)
	done := make(chan struct{})
	s.AddOnce("digest", time.Now().Add(-time.Minute), func(context.Context) error {
		close(done)
		return errors.New("logged, not fatal")
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("overdue job did not run")
	}
	if s.Pending("digest") {
		t.Fatalf("overdue job must not stay pending")
	}
}

func TestAddOnceRunsAtTimeAndIsForgotten(t *testing.T) {
	s := New(nil)
	s.Start()
	defer s.Stop()

	done := make(chan struct{})
	s.AddOnce("digest", time.Now().Add(100*time.Millisecond), func(context.Context) error {
		close(done)
		return nil
	})
	if !s.Pending("digest") {
		t.Fatalf("job should be pending")
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("one-shot job did not run")
	}
	deadline := time.Now().Add(time.Second)
	for s.Pending("digest") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Pending("digest") {
		t.Fatalf("fired job still pending")
	}
}

func TestAddOnceReplacesAndCancel(t *testing.T) {
	s := New(nil)
	at := time.Now().Add(time.Hour)
	s.AddOnce("digest", at, func(context.Context) error { return nil })
	s.AddOnce("digest", at.Add(time.Hour), func(context.Context) error { return nil })
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("want 1 entry, got %d", n)
	}
	s.Cancel("digest")
	if s.Pending("digest") || len(s.cron.Entries()) != 0 {
		t.Fatalf("cancel did not remove the job")
	}
}
