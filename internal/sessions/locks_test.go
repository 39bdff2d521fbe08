package sessions

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLockSerializesAccess(t *testing.T) {
	m := newLockManager(time.Second)
	release, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r2, err := m.Acquire(context.Background(), "s1")
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		r2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never completed after release")
	}
}

func TestLockTimeout(t *testing.T) {
	m := newLockManager(30 * time.Millisecond)
	release, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, err := m.Acquire(context.Background(), "s1"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
}

func TestLockContextCancel(t *testing.T) {
	m := newLockManager(time.Minute)
	release, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Acquire(ctx, "s1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLockIndependentSessions(t *testing.T) {
	m := newLockManager(50 * time.Millisecond)
	r1, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire s1: %v", err)
	}
	defer r1()

	// Holding s1 must not delay s2.
	r2, err := m.Acquire(context.Background(), "s2")
	if err != nil {
		t.Fatalf("Acquire s2: %v", err)
	}
	r2()
}

func TestLockReleaseIdempotent(t *testing.T) {
	m := newLockManager(time.Second)
	release, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release()

	r2, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("reacquire after double release: %v", err)
	}
	r2()
}

func TestLockMapShrinks(t *testing.T) {
	m := newLockManager(time.Second)
	release, err := m.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	m.mu.Lock()
	n := len(m.locks)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("lock map holds %d entries after release, want 0", n)
	}
}
