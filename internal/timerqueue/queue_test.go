package timerqueue_test

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/momentics/evreactor/internal/timerqueue"
)

func TestQueueFiresNoEarlierThanDuration(t *testing.T) {
	mock := clock.NewMock()
	q := timerqueue.New(mock)

	q.Add(5*time.Second, timerqueue.KindUser, "tag", false, false)

	if q.Due() {
		t.Fatal("timer fired before its duration elapsed")
	}
	mock.Add(4999 * time.Millisecond)
	if q.Due() {
		t.Fatal("timer fired 1ms early")
	}
	mock.Add(1 * time.Millisecond)
	if !q.Due() {
		t.Fatal("timer did not fire at its exact expiry")
	}
}

func TestQueueOrdersByExpiry(t *testing.T) {
	mock := clock.NewMock()
	q := timerqueue.New(mock)

	q.Add(3*time.Second, timerqueue.KindUser, "later", false, false)
	q.Add(1*time.Second, timerqueue.KindUser, "sooner", false, false)
	q.Add(2*time.Second, timerqueue.KindUser, "middle", false, false)

	mock.Add(3 * time.Second)

	var order []any
	for q.Due() {
		e, ok := q.Next()
		if !ok {
			break
		}
		order = append(order, e.Tag())
	}
	if len(order) != 3 || order[0] != "sooner" || order[1] != "middle" || order[2] != "later" {
		t.Fatalf("unexpected fire order: %v", order)
	}
}

func TestQueueRecurringReschedules(t *testing.T) {
	mock := clock.NewMock()
	q := timerqueue.New(mock)

	q.Add(1*time.Second, timerqueue.KindUser, "tick", true, false)

	fires := 0
	for i := 0; i < 3; i++ {
		mock.Add(1 * time.Second)
		if !q.Due() {
			t.Fatalf("recurring timer did not fire at tick %d", i)
		}
		if _, ok := q.Next(); ok {
			fires++
		}
	}
	if fires != 3 {
		t.Fatalf("expected 3 fires, got %d", fires)
	}
	if q.Len() != 1 {
		t.Fatalf("expected exactly one live recurring entry, got %d", q.Len())
	}
}

func TestQueueCancelDropsEntryLazily(t *testing.T) {
	mock := clock.NewMock()
	q := timerqueue.New(mock)

	e := q.Add(1*time.Second, timerqueue.KindUser, "cancel-me", false, false)
	q.Add(2*time.Second, timerqueue.KindUser, "survivor", false, false)

	q.Cancel(e)
	mock.Add(2 * time.Second)

	var tags []any
	for q.Due() {
		popped, ok := q.Next()
		if !ok {
			break
		}
		tags = append(tags, popped.Tag())
	}
	if len(tags) != 1 || tags[0] != "survivor" {
		t.Fatalf("expected only survivor to fire, got %v", tags)
	}
}

func TestQueueImmediateFiresOnNextDrain(t *testing.T) {
	mock := clock.NewMock()
	q := timerqueue.New(mock)

	q.Add(time.Hour, timerqueue.KindUser, "now", false, true)
	if !q.Due() {
		t.Fatal("immediate timer was not due on the same pass")
	}
}

func TestQueueTimeToNextClampsAtZero(t *testing.T) {
	mock := clock.NewMock()
	q := timerqueue.New(mock)

	q.Add(1*time.Second, timerqueue.KindUser, "x", false, false)
	mock.Add(2 * time.Second)

	d, ok := q.TimeToNext()
	if !ok || d != 0 {
		t.Fatalf("expected clamped 0 duration, got %v (ok=%v)", d, ok)
	}
}
