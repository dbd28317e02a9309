package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func waitForCounter(t *testing.T, metrics *observability.Metrics, name string, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if metrics.Snapshot().Counters[name] >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("counter %s = %d, want %d", name, metrics.Snapshot().Counters[name], want)
}

func TestWebhookWorkerDelivers(t *testing.T) {
	received := make(chan events.Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-Event-Type") != string(events.EventTicketCreated) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var event events.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- event
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	metrics := observability.NewMetrics()
	worker := NewWebhookWorker(server.URL, 4, zap.NewNop(), metrics)
	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	event := events.NewEvent(events.EventTicketCreated, "t-1", events.Actor{Name: "Juan"}, time.Now(), nil)
	if !worker.Enqueue(event) {
		t.Fatal("Enqueue() = false on an empty queue")
	}

	select {
	case got := <-received:
		if got.ID != event.ID || got.TicketID != "t-1" {
			t.Errorf("received %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
	waitForCounter(t, metrics, "notifications.delivered", 1)

	cancel()
	worker.Wait()
}

func TestWebhookWorkerCountsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	metrics := observability.NewMetrics()
	worker := NewWebhookWorker(server.URL, 4, zap.NewNop(), metrics)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		worker.Wait()
	}()
	worker.Start(ctx)

	worker.Enqueue(events.NewEvent(events.EventTicketAssigned, "t-1", events.Actor{Name: "Sistema"}, time.Now(), nil))
	waitForCounter(t, metrics, "notifications.failed", 1)
}

func TestWebhookWorkerDropsWhenFull(t *testing.T) {
	metrics := observability.NewMetrics()
	worker := NewWebhookWorker("http://127.0.0.1:0", 1, zap.NewNop(), metrics)

	event := events.NewEvent(events.EventTicketCommentAdded, "t-1", events.Actor{}, time.Now(), nil)
	if !worker.Enqueue(event) {
		t.Fatal("first Enqueue() = false")
	}
	if worker.Enqueue(event) {
		t.Fatal("Enqueue() on a full queue = true")
	}
	if got := metrics.Snapshot().Counters["notifications.dropped"]; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

type fakeEscalator struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEscalator) EscalatePriorities(context.Context) (service.EscalationResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return service.EscalationResult{}, f.err
	}
	return service.EscalationResult{Checked: 2, Escalated: 1}, nil
}

func TestEscalationWorkerSweepsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failure", errors.New("database down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escalator := &fakeEscalator{err: tt.err}
			metrics := observability.NewMetrics()
			ctx, cancel := context.WithCancel(context.Background())
			done := StartEscalationWorker(ctx, escalator, time.Hour, zap.NewNop(), metrics)

			deadline := time.Now().Add(2 * time.Second)
			for escalator.calls.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not stop")
			}

			if escalator.calls.Load() != 1 {
				t.Fatalf("calls = %d, want 1", escalator.calls.Load())
			}
			sweeps := metrics.Snapshot().Counters["escalation.sweeps"]
			if tt.err == nil && sweeps != 1 {
				t.Errorf("sweeps = %d, want 1", sweeps)
			}
			if tt.err != nil && sweeps != 0 {
				t.Errorf("sweeps = %d, want 0", sweeps)
			}
		})
	}
}
