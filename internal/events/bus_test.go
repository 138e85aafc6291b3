package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestEventWireShape(t *testing.T) {
	data, err := json.Marshal(CountUpdate(0))
	if err != nil {
		t.Fatalf("marshal count update: %v", err)
	}
	if string(data) != `{"type":"PHISHING_COUNT_UPDATE","count":0}` {
		t.Fatalf("unexpected count update json: %s", data)
	}

	data, err = json.Marshal(Detected(DetectionDetails{MessageID: "m1", Warnings: []string{"urgency"}}))
	if err != nil {
		t.Fatalf("marshal detected: %v", err)
	}
	want := `{"type":"PHISHING_DETECTED","details":{"message_id":"m1","warnings":["urgency"]}}`
	if string(data) != want {
		t.Fatalf("unexpected detected json: %s", data)
	}
}

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(8, zap.NewNop())

	var (
		mu  sync.Mutex
		got = map[string][]int{}
	)
	for _, name := range []string{"a", "b"} {
		name := name
		bus.Subscribe(name, func(ev Event) {
			mu.Lock()
			got[name] = append(got[name], ev.Count)
			mu.Unlock()
		})
	}

	bus.Publish(CountUpdate(1))
	bus.Publish(CountUpdate(2))
	bus.Close()

	for _, name := range []string{"a", "b"} {
		if len(got[name]) != 2 || got[name][0] != 1 || got[name][1] != 2 {
			t.Fatalf("subscriber %s got %v", name, got[name])
		}
	}
}

func TestBusDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewBus(1, zap.NewNop())

	release := make(chan struct{})
	var (
		mu        sync.Mutex
		delivered int
	)
	bus.Subscribe("slow", func(ev Event) {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(CountUpdate(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	close(release)
	bus.Close()

	if delivered >= 10 {
		t.Fatalf("expected some events to be dropped, delivered %d", delivered)
	}
	if delivered == 0 {
		t.Fatal("expected at least one event to be delivered")
	}
}

func TestBusSurvivesPanickingSubscriber(t *testing.T) {
	bus := NewBus(4, zap.NewNop())

	var (
		mu    sync.Mutex
		count int
	)
	bus.Subscribe("panics", func(ev Event) { panic("boom") })
	bus.Subscribe("ok", func(ev Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	bus.Publish(CountUpdate(1))
	bus.Publish(CountUpdate(2))
	bus.Close()

	if count != 2 {
		t.Fatalf("expected 2 deliveries, got %d", count)
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(1, zap.NewNop())
	bus.Close()
	bus.Publish(CountUpdate(1))
	bus.Close()
}
