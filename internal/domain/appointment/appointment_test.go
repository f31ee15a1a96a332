package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func ts(hour, min int) time.Time {
	return time.Date(2030, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical", ts(9, 0), ts(9, 30), ts(9, 0), ts(9, 30), true},
		{"partial overlap", ts(9, 0), ts(9, 30), ts(9, 15), ts(9, 45), true},
		{"contained", ts(9, 0), ts(10, 0), ts(9, 15), ts(9, 30), true},
		{"touching end-start", ts(9, 0), ts(9, 30), ts(9, 30), ts(10, 0), false},
		{"touching start-end", ts(9, 30), ts(10, 0), ts(9, 0), ts(9, 30), false},
		{"disjoint", ts(9, 0), ts(9, 30), ts(11, 0), ts(11, 30), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Errorf("Overlaps(%v,%v,%v,%v) = %v, want %v", tc.s1, tc.e1, tc.s2, tc.e2, got, tc.want)
			}
			// the overlap relation is symmetric
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Errorf("Overlaps not symmetric for %s", tc.name)
			}
		})
	}
}

func TestDurationMins(t *testing.T) {
	a := &Appointment{StartAt: ts(9, 0), EndAt: ts(9, 30)}
	if got := a.DurationMins(); got != 30 {
		t.Errorf("DurationMins() = %d, want 30", got)
	}

	// rounds to nearest whole minute
	a = &Appointment{StartAt: ts(9, 0), EndAt: ts(9, 0).Add(90 * time.Second)}
	if got := a.DurationMins(); got != 2 {
		t.Errorf("DurationMins() = %d, want 2", got)
	}

	// clamped to zero for inverted ranges
	a = &Appointment{StartAt: ts(10, 0), EndAt: ts(9, 0)}
	if got := a.DurationMins(); got != 0 {
		t.Errorf("DurationMins() = %d, want 0", got)
	}
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusCheckedIn, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusCheckedIn, StatusCompleted, true},
		{StatusCheckedIn, StatusCanceled, true},
		{StatusCheckedIn, StatusNoShow, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusScheduled, false},
		{StatusNoShow, StatusCheckedIn, false},
	}

	for _, tc := range cases {
		a := &Appointment{Status: tc.from}
		if got := a.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCancel(t *testing.T) {
	by := uuid.New()

	a := &Appointment{Status: StatusScheduled}
	if err := a.Cancel("patient called in", by); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if a.Status != StatusCanceled {
		t.Errorf("status = %s, want canceled", a.Status)
	}
	if a.CanceledAt == nil || a.CanceledBy == nil || *a.CanceledBy != by {
		t.Error("cancellation tracking fields not set")
	}
	if a.CountsForConflict() {
		t.Error("canceled appointment must not block the slot")
	}

	done := &Appointment{Status: StatusCompleted}
	if err := done.Cancel("too late", by); err != ErrInvalidStatusTransition {
		t.Errorf("Cancel() on completed = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusCheckedIn, StatusCompleted, StatusCanceled, StatusNoShow} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("pending").IsValid() {
		t.Error("arbitrary status strings must be rejected")
	}
}
