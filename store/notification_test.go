package store

import "testing"

func TestUnreadCountTracksMutations(t *testing.T) {
	broker := NewBroker()
	s := NewNotificationStore(broker)

	first := s.Add(NewNotification{Title: "a", Type: NotificationTypeSystem, Severity: NotificationSeverityInfo})
	s.Add(NewNotification{Title: "b", Type: NotificationTypeSystem, Severity: NotificationSeverityInfo})

	if got := s.UnreadCount(); got != 2 {
		t.Fatalf("unread count = %d, want 2", got)
	}

	s.MarkRead(first.Id)
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("unread count after MarkRead = %d, want 1", got)
	}

	s.MarkAllRead()
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("unread count after MarkAllRead = %d, want 0", got)
	}
}

func TestNotificationsNewestFirst(t *testing.T) {
	s := NewNotificationStore(NewBroker())
	s.Add(NewNotification{Title: "first"})
	s.Add(NewNotification{Title: "second"})

	all := s.Notifications()
	if len(all) != 2 || all[0].Title != "second" {
		t.Fatalf("want newest first, got %+v", all)
	}
}

func TestMarkReadUnknownIdPublishesNothing(t *testing.T) {
	broker := NewBroker()
	s := NewNotificationStore(broker)
	s.Add(NewNotification{Title: "a"})

	events := 0
	unsubscribe := broker.Subscribe(func(Event) { events++ })
	defer unsubscribe()

	s.MarkRead("missing")
	if events != 0 {
		t.Fatalf("MarkRead on unknown id published %d events, want 0", events)
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	broker := NewBroker()
	calls := 0
	unsubscribe := broker.Subscribe(func(Event) { calls++ })

	broker.Publish(Event{Property: "x"})
	unsubscribe()
	unsubscribe() // second call is harmless
	broker.Publish(Event{Property: "x"})

	if calls != 1 {
		t.Fatalf("subscriber ran %d times, want 1", calls)
	}
}
