package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/ferrovia/tasktree/internal/task"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(string(task.StatusInProgress), 10)

	bus.Publish(Transition("task-1", task.StatusPending, task.StatusInProgress, ""))

	select {
	case received := <-ch:
		if received.TaskID != "task-1" {
			t.Errorf("expected task ID 'task-1', got '%s'", received.TaskID)
		}
		if received.To != task.StatusInProgress {
			t.Errorf("expected transition to in_progress, got '%s'", received.To)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(string(task.StatusCompleted), 10)
	ch2 := bus.Subscribe(string(task.StatusCompleted), 10)

	bus.Publish(Transition("task-2", task.StatusInProgress, task.StatusCompleted, ""))

	// Both channels should receive the event
	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID != "task-2" {
				t.Errorf("subscriber %d: expected task ID 'task-2', got '%s'", i+1, received.TaskID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	// Subscribe with buffer size 1
	ch := bus.Subscribe(string(task.StatusInProgress), 1)

	// Publish 10 events - should not deadlock
	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Transition(fmt.Sprintf("task-%d", i), task.StatusPending, task.StatusInProgress, ""))
		}
		done <- true
	}()

	// Publisher should complete immediately (non-blocking)
	select {
	case <-done:
		// Success - publisher didn't block
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	// Verify we received at least one event (buffer size 1)
	select {
	case received := <-ch:
		if received.TaskID == "" {
			t.Error("received empty event")
		}
	default:
		t.Error("expected at least one event in buffer")
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()

	ch := bus.Subscribe(string(task.StatusFailed), 10)

	// Close the bus
	bus.Close()

	// Channel should be closed (range loop should exit immediately)
	received := 0
	for range ch {
		received++
	}

	if received != 0 {
		t.Errorf("expected 0 events after close, got %d", received)
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(string(task.StatusCompleted), 10)

	bus.Close()

	// This should not panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(Transition("task-1", task.StatusInProgress, task.StatusCompleted, ""))

	// Channel is closed, so we shouldn't receive anything
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received event after bus was closed")
		}
	default:
		// Expected - channel closed, no data
	}
}

// TestTopicIsolation verifies events only reach their status topic.
func TestTopicIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	failedCh := bus.Subscribe(string(task.StatusFailed), 10)
	completedCh := bus.Subscribe(string(task.StatusCompleted), 10)

	bus.Publish(Transition("task-1", task.StatusInProgress, task.StatusFailed, "boom"))
	bus.Publish(Transition("task-2", task.StatusInProgress, task.StatusCompleted, ""))

	select {
	case received := <-failedCh:
		if received.TaskID != "task-1" || received.Error != "boom" {
			t.Errorf("failed channel: got %+v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("failed channel: timeout waiting for event")
	}

	select {
	case received := <-completedCh:
		if received.TaskID != "task-2" {
			t.Errorf("completed channel: got %+v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("completed channel: timeout waiting for event")
	}

	// Neither channel should see the other topic's event.
	select {
	case ev := <-failedCh:
		t.Errorf("failed channel received unexpected event %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
	select {
	case ev := <-completedCh:
		t.Errorf("completed channel received unexpected event %+v", ev)
	case <-time.After(10 * time.Millisecond):
	}
}

// TestSubscribeAll verifies that SubscribeAll receives events from all topics.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	allCh := bus.SubscribeAll(20)

	bus.Publish(Transition("task-1", task.StatusPending, task.StatusInProgress, ""))
	bus.Publish(Transition("task-1", task.StatusInProgress, task.StatusCompleted, ""))

	receivedStatuses := make(map[task.Status]bool)
	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedStatuses[received.To] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	if !receivedStatuses[task.StatusInProgress] || !receivedStatuses[task.StatusCompleted] {
		t.Errorf("SubscribeAll missed transitions: %v", receivedStatuses)
	}

	// Should not have any more events
	select {
	case <-allCh:
		t.Error("received unexpected third event")
	case <-time.After(10 * time.Millisecond):
		// Expected - no more events
	}
}
