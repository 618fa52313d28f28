package store

import (
	"sync"
	"time"
)

type Notification struct {
	Id        string               `json:"id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Type      NotificationType     `json:"type"`
	Severity  NotificationSeverity `json:"severity"`
	Timestamp time.Time            `json:"timestamp"`
	Read      bool                 `json:"read"`
	RelatedId string               `json:"related_id,omitempty"`
	Target    string               `json:"target,omitempty"`
}

type NewNotification struct {
	Title     string
	Message   string
	Type      NotificationType
	Severity  NotificationSeverity
	RelatedId string
	Target    string
}

// NotificationStore keeps notifications newest-first. The unread count
// is recomputed on every mutation; it is never cached.
type NotificationStore struct {
	mu            sync.Mutex
	notifications []*Notification
	broker        *Broker
	now           clock
}

func NewNotificationStore(broker *Broker) *NotificationStore {
	return &NotificationStore{
		broker: broker,
		now:    realClock,
	}
}

func (s *NotificationStore) Add(input NewNotification) *Notification {
	n := &Notification{
		Id:        newId(),
		Title:     input.Title,
		Message:   input.Message,
		Type:      input.Type,
		Severity:  input.Severity,
		Timestamp: s.now(),
		Read:      false,
		RelatedId: input.RelatedId,
		Target:    input.Target,
	}

	s.mu.Lock()
	s.notifications = append([]*Notification{n}, s.notifications...)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "notifications", EntityId: n.Id})
	s.broker.Publish(Event{Property: "unreadCount"})
	return n
}

func (s *NotificationStore) MarkRead(id string) {
	s.mu.Lock()
	var found bool
	for _, n := range s.notifications {
		if n.Id == id {
			n.Read = true
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.broker.Publish(Event{Property: "notifications", EntityId: id})
		s.broker.Publish(Event{Property: "unreadCount"})
	}
}

func (s *NotificationStore) MarkAllRead() {
	s.mu.Lock()
	for _, n := range s.notifications {
		n.Read = true
	}
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "notifications"})
	s.broker.Publish(Event{Property: "unreadCount"})
}

// UnreadCount equals count(notifications where read=false) at every
// observation point.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

// Notifications returns a snapshot copy, newest first.
func (s *NotificationStore) Notifications() []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}
