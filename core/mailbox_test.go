package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// TestMailbox_HandleAppliesInOrder verifies updates run FIFO
// Main test items:
// 1. Every queued update runs exactly once
// 2. Updates apply in submission order
func TestMailbox_HandleAppliesInOrder(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, []int(nil))
	defer m.Close()

	for i := 0; i < 20; i++ {
		i := i
		m.Handle(func(v *[]int) { *v = append(*v, i) })
	}

	got, err := Call(context.Background(), m, func(v *[]int) []int {
		return append([]int(nil), *v...)
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("Expected 20 applied updates, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("Update order broken at %d: got %d", i, v)
		}
	}
}

// TestMailbox_GlobalOrderAcrossProducers verifies the queue keeps one
// global order even when producers alternate
func TestMailbox_GlobalOrderAcrossProducers(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, []string(nil))
	defer m.Close()

	// Two producers hand the turn back and forth, so the submission
	// order is fully determined.
	aTurn := make(chan struct{}, 1)
	bTurn := make(chan struct{}, 1)
	done := make(chan struct{}, 2)
	producer := func(name string, mine, theirs chan struct{}) {
		for i := 0; i < 5; i++ {
			<-mine
			tag := fmt.Sprintf("%s-%d", name, i)
			m.Handle(func(v *[]string) { *v = append(*v, tag) })
			theirs <- struct{}{}
		}
		done <- struct{}{}
	}
	go producer("a", aTurn, bTurn)
	go producer("b", bTurn, aTurn)
	aTurn <- struct{}{}
	<-done
	<-done

	got, err := Call(context.Background(), m, func(v *[]string) []string {
		return append([]string(nil), *v...)
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	expected := []string{"a-0", "b-0", "a-1", "b-1", "a-2", "b-2", "a-3", "b-3", "a-4", "b-4"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d updates, got %d: %v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("Order broken at %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}

// TestMailbox_CallComputesReply verifies the request/reply path
func TestMailbox_CallComputesReply(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 10)
	defer m.Close()

	m.Handle(func(v *int) { *v += 5 })
	got, err := Call(context.Background(), m, func(v *int) int { return *v * 2 })
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != 30 {
		t.Errorf("Expected 30, got %d", got)
	}
}

// TestMailbox_CallFromTaskParks verifies calling from inside a spawned
// computation suspends instead of holding the worker
func TestMailbox_CallFromTaskParks(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 1)
	defer m.Close()

	task := Spawn(p, func(ctx context.Context) (int, error) {
		return Call(ctx, m, func(v *int) int { return *v + 41 })
	})

	v, err := task.Await(context.Background())
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}
}

// TestMailbox_CallAfterClosePanics verifies the fatal contract: a
// closed mailbox can never produce the reply
func TestMailbox_CallAfterClosePanics(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 0)
	m.Close()
	waitClosed(t, m)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic calling a closed mailbox")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrMailboxClosed) {
			t.Errorf("Expected ErrMailboxClosed, got %v", r)
		}
	}()
	Call(context.Background(), m, func(v *int) int { return *v })
}

// TestMailbox_HandleAfterCloseDropped verifies silent drop semantics
// for fire-and-forget updates
func TestMailbox_HandleAfterCloseDropped(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	applied := make(chan struct{}, 1)
	m := NewMailbox(p, 0)
	m.Close()
	waitClosed(t, m)

	m.Handle(func(v *int) { applied <- struct{}{} })

	select {
	case <-applied:
		t.Error("Update ran on a closed mailbox")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestMailbox_CloseDrainsPending verifies close lets queued updates
// finish before the drain task exits
func TestMailbox_CloseDrainsPending(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	applied := make(chan int, 10)
	m := NewMailbox(p, 0)
	for i := 0; i < 10; i++ {
		i := i
		m.Handle(func(v *int) { applied <- i })
	}
	m.Close()

	for i := 0; i < 10; i++ {
		select {
		case got := <-applied:
			if got != i {
				t.Fatalf("Expected update %d, got %d", i, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Update %d never ran", i)
		}
	}
}

// TestMailbox_CloseIdempotent verifies repeated closes are harmless
func TestMailbox_CloseIdempotent(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 0)
	m.Close()
	m.Close()
}

// TestMailbox_CallPanicReturnsPanicError verifies a panicking reply
// closure travels to the caller and leaves the mailbox alive
func TestMailbox_CallPanicReturnsPanicError(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 1)
	defer m.Close()

	_, err := Call(context.Background(), m, func(v *int) int {
		panic("reply boom")
	})
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected PanicError, got %v", err)
	}
	if pe.Value != "reply boom" {
		t.Errorf("Expected reply boom, got %v", pe.Value)
	}

	// Still usable afterwards.
	got, err := Call(context.Background(), m, func(v *int) int { return *v })
	if err != nil {
		t.Fatalf("Call after panic failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
}

// TestMailbox_HandlePanicKillsDrain verifies a panicking update ends
// the drain task and the mailbox behaves closed from then on
func TestMailbox_HandlePanicKillsDrain(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 0)
	m.Handle(func(v *int) { panic("update boom") })
	waitClosed(t, m)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected panic calling the dead mailbox")
		}
	}()
	Call(context.Background(), m, func(v *int) int { return *v })
}

// TestMailbox_AbandonedCallPanics verifies a call queued behind a
// panicking update fails loudly once the drain task dies
// Main test items:
// 1. The queued call does not wait forever
// 2. The failure is the ErrMailboxClosed panic, not a silent zero value
func TestMailbox_AbandonedCallPanics(t *testing.T) {
	p := newTestPlatform()
	defer p.close()

	m := NewMailbox(p, 0)

	started := make(chan struct{})
	gate := make(chan struct{})
	m.Handle(func(v *int) {
		close(started)
		<-gate
	})
	<-started
	m.Handle(func(v *int) { panic("update boom") })

	recovered := make(chan any, 1)
	go func() {
		defer func() { recovered <- recover() }()
		Call(context.Background(), m, func(v *int) int { return *v })
	}()

	// Let the call join the queue behind the panicking update, then
	// release the drain.
	time.Sleep(50 * time.Millisecond)
	close(gate)

	select {
	case r := <-recovered:
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrMailboxClosed) {
			t.Errorf("Expected ErrMailboxClosed, got %v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Abandoned call never failed")
	}
}

// waitClosed polls until pushes are rejected; a drain death closes the
// mailbox from inside the dying task, not synchronously.
func waitClosed[T any](t *testing.T, m *Mailbox[T]) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.st.mu.Lock()
		closed := m.st.closed
		m.st.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Mailbox never closed")
}
