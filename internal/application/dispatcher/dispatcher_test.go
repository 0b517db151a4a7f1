package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hotelops/requisition-approval/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newApproved() *event.Event {
	return event.NewEvent(event.TypeRequisitionApproved, "req-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe("first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	}, event.TypeRequisitionApproved)
	d.Subscribe("second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	}, event.TypeRequisitionApproved, event.TypeRequisitionRejected)

	if err := d.Dispatch(context.Background(), newApproved()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}

	if got := d.Handlers(event.TypeRequisitionRejected); len(got) != 1 || got[0] != "second" {
		t.Errorf("Handlers(rejected) = %v, want [second]", got)
	}
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	called := false

	d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	}, event.TypeRequisitionApproved)
	d.Subscribe("after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	}, event.TypeRequisitionApproved)

	err := d.Dispatch(context.Background(), newApproved())
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want wrapped %v", err, boom)
	}
	if called {
		t.Error("handler after the failing one should not run")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe("panicky", func(ctx context.Context, evt *event.Event) error {
		panic("unexpected")
	}, event.TypeRequisitionApproved)

	err := d.Dispatch(context.Background(), newApproved())
	if err == nil {
		t.Fatal("Dispatch() should return an error for a panicking handler")
	}
}

func TestDispatch_NoHandlers(t *testing.T) {
	d := NewDispatcher()
	if err := d.Dispatch(context.Background(), newApproved()); err != nil {
		t.Errorf("Dispatch() error = %v, want nil", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	var calls int32
	h := func(ctx context.Context, evt *event.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	d.Subscribe("notify", h, event.TypeRequisitionApproved, event.TypeRequisitionIssued)
	d.Subscribe("audit", h, event.TypeRequisitionApproved)

	d.Unsubscribe("notify")

	if got := d.Handlers(event.TypeRequisitionApproved); len(got) != 1 || got[0] != "audit" {
		t.Errorf("Handlers(approved) = %v, want [audit]", got)
	}
	if got := d.Handlers(event.TypeRequisitionIssued); len(got) != 0 {
		t.Errorf("Handlers(issued) = %v, want none", got)
	}
}

func TestDispatchAsync_IgnoresCallerCancellation(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	var calls int32
	d.Subscribe("slow", func(ctx context.Context, evt *event.Event) error {
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		atomic.AddInt32(&calls, 1)
		return nil
	}, event.TypeRequisitionApproved)
	d.Subscribe("failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("lark unavailable")
	}, event.TypeRequisitionApproved)

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, newApproved())
	cancel()

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("slow handler calls = %d, want 1", calls)
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", logger.ErrorCount())
	}
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want %v", err, ErrClosed)
	}
	if err := d.Dispatch(context.Background(), newApproved()); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch() after Close error = %v, want %v", err, ErrClosed)
	}
}

func TestClose_WaitsForEveryAcceptedAsyncDispatch(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := NewDispatcher()

		var started, finished int32
		d.Subscribe("count", func(ctx context.Context, evt *event.Event) error {
			atomic.AddInt32(&started, 1)
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&finished, 1)
			return nil
		}, event.TypeRequisitionApproved)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					d.DispatchAsync(context.Background(), newApproved())
				}
			}()
		}

		if err := d.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if s, f := atomic.LoadInt32(&started), atomic.LoadInt32(&finished); s != f {
			t.Fatalf("round %d: %d handlers started but only %d finished when Close returned", round, s, f)
		}
		wg.Wait()

		// dispatches after Close are dropped, never run
		if s := atomic.LoadInt32(&started); s != atomic.LoadInt32(&finished) {
			t.Fatalf("round %d: handler ran after Close", round)
		}
	}
}
