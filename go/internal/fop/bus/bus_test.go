package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/fop/events"
)

func notification(typ events.NotificationType, origin string) events.Notification {
	return events.NewNotification("A", typ, origin, time.Now(), nil)
}

func receive(t *testing.T, s *Subscription) events.Notification {
	t.Helper()
	select {
	case n, ok := <-s.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	return events.Notification{}
}

func expectNothing(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case n := <-s.C():
		t.Fatalf("unexpected notification %s", n.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSelfEchoSuppression(t *testing.T) {
	b := New("A")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	timekeeper := b.Subscribe("timekeeper")
	scoreboard := b.Subscribe("scoreboard")
	relay := b.Subscribe("")

	if err := b.Publish(ctx, notification(events.TypeStopTime, "timekeeper")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	if n := receive(t, scoreboard); n.Type != events.TypeStopTime {
		t.Errorf("scoreboard got %s, want StopTime", n.Type)
	}
	if n := receive(t, relay); n.Type != events.TypeStopTime {
		t.Errorf("relay got %s, want StopTime", n.Type)
	}
	expectNothing(t, timekeeper)
}

func TestDeliveryKeepsOrder(t *testing.T) {
	b := New("A")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	s := b.Subscribe("display")
	sequence := []events.NotificationType{
		events.TypeDecision, events.TypeLiftingOrderUpdated, events.TypeStartTime, events.TypeStopTime,
	}
	for _, typ := range sequence {
		_ = b.Publish(ctx, notification(typ, ""))
	}
	for i, want := range sequence {
		if got := receive(t, s).Type; got != want {
			t.Fatalf("notification %d = %s, want %s", i, got, want)
		}
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := NewWithSizes("A", 16, 1)

	slow := b.Subscribe("slow")
	fast := b.Subscribe("fast")

	b.deliver(notification(events.TypeSetTime, ""))
	<-fast.C()
	b.deliver(notification(events.TypeSetTime, ""))

	if got := b.Stats().Subscribers; got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}
	<-slow.C()
	if _, ok := <-slow.C(); ok {
		t.Error("slow subscription channel should be closed")
	}
	if got := receive(t, fast).Type; got != events.TypeSetTime {
		t.Errorf("fast subscriber got %s", got)
	}
}

func TestSlowSubscribersRemovedAfterBroadcast(t *testing.T) {
	b := NewWithSizes("A", 16, 1)

	first := b.Subscribe("first")
	second := b.Subscribe("second")
	b.deliver(notification(events.TypeSetTime, ""))
	fast := b.Subscribe("fast")

	b.deliver(notification(events.TypeStopTime, ""))

	stats := b.Stats()
	if stats.Subscribers != 1 || stats.Dropped != 2 {
		t.Fatalf("stats = %+v, want 1 subscriber and 2 dropped", stats)
	}
	for _, s := range []*Subscription{first, second} {
		<-s.C()
		if _, ok := <-s.C(); ok {
			t.Errorf("%s should be closed", s.Token)
		}
	}
	if got := receive(t, fast).Type; got != events.TypeStopTime {
		t.Errorf("fast subscriber got %s", got)
	}
}

func TestConcurrentSubscribeDuringBroadcast(t *testing.T) {
	b := NewWithSizes("A", 1024, 1024)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	steady := b.Subscribe("steady")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s := b.Subscribe("")
			s.Close()
		}
	}()

	const total = 200
	for i := 0; i < total; i++ {
		if err := b.Publish(ctx, notification(events.TypeSetTime, "")); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}
	wg.Wait()

	for i := 0; i < total; i++ {
		receive(t, steady)
	}
}

func TestRunClosesSubscriptionsOnShutdown(t *testing.T) {
	b := New("A")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	s := b.Subscribe("x")
	cancel()
	<-done

	if _, ok := <-s.C(); ok {
		t.Error("subscription should be closed after shutdown")
	}
	s.Close()
}
