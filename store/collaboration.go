package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var mentionPattern = regexp.MustCompile(`@[\w-]+`)

type Comment struct {
	BaseRecord
	EntityType string              `json:"entity_type"`
	EntityId   string              `json:"entity_id"`
	Author     string              `json:"author"`
	Text       string              `json:"text"`
	Mentions   []string            `json:"mentions"`
	Reactions  map[string][]string `json:"reactions"`
	Edited     bool                `json:"edited"`
}

type ActivityType string

const (
	ActivityStatusChange        ActivityType = "status_change"
	ActivityCommentAdded        ActivityType = "comment_added"
	ActivityDeficiencyCreated   ActivityType = "deficiency_created"
	ActivityPhotoUploaded       ActivityType = "photo_uploaded"
	ActivityAssignment          ActivityType = "assignment"
	ActivityInspectionScheduled ActivityType = "inspection_scheduled"
)

type Activity struct {
	BaseRecord
	Type       ActivityType      `json:"type"`
	Actor      string            `json:"actor"`
	EntityType string            `json:"entity_type"`
	EntityId   string            `json:"entity_id"`
	Data       map[string]string `json:"data,omitempty"`
}

// CollaborationStore holds comments, the activity feed, and user
// presence. Comments parse @mentions and notify each mentioned user;
// activity records fan out notifications whose severity escalates with
// the activity's severity data. Presence is an explicit set: users are
// active from MarkActive until MarkInactive.
type CollaborationStore struct {
	mu            sync.Mutex
	comments      []*Comment
	activities    []*Activity
	active        map[string]bool
	notifications *NotificationStore
	broker        *Broker
	now           clock
}

func NewCollaborationStore(notifications *NotificationStore, broker *Broker) *CollaborationStore {
	return &CollaborationStore{
		active:        map[string]bool{},
		notifications: notifications,
		broker:        broker,
		now:           realClock,
	}
}

// ParseMentions extracts mentioned usernames from comment text, with
// the leading @ stripped.
func ParseMentions(text string) []string {
	var mentions []string
	for _, match := range mentionPattern.FindAllString(text, -1) {
		mentions = append(mentions, strings.TrimPrefix(match, "@"))
	}
	return mentions
}

// AddComment records the comment, raises one notification per
// mentioned user, and logs a comment activity.
func (s *CollaborationStore) AddComment(entityType, entityId, author, text string) *Comment {
	now := s.now()
	comment := &Comment{
		BaseRecord: BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		EntityType: entityType,
		EntityId:   entityId,
		Author:     author,
		Text:       text,
		Mentions:   ParseMentions(text),
		Reactions:  map[string][]string{},
	}

	s.mu.Lock()
	s.comments = append(s.comments, comment)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "comments", EntityId: comment.Id})

	for _, mention := range comment.Mentions {
		s.notifications.Add(NewNotification{
			Type:      NotificationTypeSystem,
			Severity:  NotificationSeverityInfo,
			Title:     "You were mentioned",
			Message:   fmt.Sprintf("%s mentioned you in a comment", author),
			RelatedId: comment.Id,
			Target:    mention,
		})
	}

	s.RecordActivity(ActivityCommentAdded, author, entityType, entityId, map[string]string{"comment_id": comment.Id})

	return comment
}

func (s *CollaborationStore) Comments(entityType, entityId string) []*Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Comment
	for _, comment := range s.comments {
		if comment.EntityType == entityType && comment.EntityId == entityId {
			out = append(out, comment)
		}
	}
	return out
}

// React records the user's reaction of the given emoji on a comment.
// Reacting again with the same emoji is a no-op.
func (s *CollaborationStore) React(commentId, emoji, username string) error {
	s.mu.Lock()
	comment := s.findCommentLocked(commentId)
	if comment == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	for _, u := range comment.Reactions[emoji] {
		if u == username {
			s.mu.Unlock()
			return nil
		}
	}
	comment.Reactions[emoji] = append(comment.Reactions[emoji], username)
	comment.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "comments", EntityId: commentId})
	return nil
}

func (s *CollaborationStore) findCommentLocked(commentId string) *Comment {
	for _, c := range s.comments {
		if c.Id == commentId {
			return c
		}
	}
	return nil
}

// EditComment replaces the comment text. Only the original author may
// edit; anyone else is ignored. Mentions are re-parsed and only users
// newly mentioned by the edit are notified.
func (s *CollaborationStore) EditComment(commentId, author, text string) error {
	s.mu.Lock()
	comment := s.findCommentLocked(commentId)
	if comment == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	if comment.Author != author {
		s.mu.Unlock()
		return nil
	}
	previous := map[string]bool{}
	for _, mention := range comment.Mentions {
		previous[mention] = true
	}
	comment.Text = text
	comment.Mentions = ParseMentions(text)
	comment.Edited = true
	comment.UpdatedAt = s.now()
	var added []string
	for _, mention := range comment.Mentions {
		if !previous[mention] {
			previous[mention] = true
			added = append(added, mention)
		}
	}
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "comments", EntityId: commentId})

	for _, mention := range added {
		s.notifications.Add(NewNotification{
			Type:      NotificationTypeSystem,
			Severity:  NotificationSeverityInfo,
			Title:     "You were mentioned",
			Message:   fmt.Sprintf("%s mentioned you in a comment", author),
			RelatedId: commentId,
			Target:    mention,
		})
	}
	return nil
}

func activityTitle(activityType ActivityType) string {
	switch activityType {
	case ActivityStatusChange:
		return "Status Updated"
	case ActivityCommentAdded:
		return "New Comment"
	case ActivityDeficiencyCreated:
		return "Deficiency Created"
	case ActivityPhotoUploaded:
		return "Photo Uploaded"
	case ActivityAssignment:
		return "Assignment Changed"
	case ActivityInspectionScheduled:
		return "Inspection Scheduled"
	}
	return "Activity"
}

// RecordActivity appends to the feed and raises a notification. The
// notification severity escalates when the activity data carries a
// high or medium severity.
func (s *CollaborationStore) RecordActivity(activityType ActivityType, actor, entityType, entityId string, data map[string]string) *Activity {
	now := s.now()
	activity := &Activity{
		BaseRecord: BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		Type:       activityType,
		Actor:      actor,
		EntityType: entityType,
		EntityId:   entityId,
		Data:       data,
	}

	s.mu.Lock()
	s.activities = append([]*Activity{activity}, s.activities...)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "activities", EntityId: activity.Id})

	severity := NotificationSeverityInfo
	switch data["severity"] {
	case "high":
		severity = NotificationSeverityCritical
	case "medium":
		severity = NotificationSeverityWarning
	}

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeSystem,
		Severity:  severity,
		Title:     activityTitle(activityType),
		Message:   fmt.Sprintf("%s on %s", actor, entityType),
		RelatedId: entityId,
	})

	return activity
}

func (s *CollaborationStore) Activities() []*Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Activity{}, s.activities...)
}

func (s *CollaborationStore) ActivitiesByEntity(entityType, entityId string) []*Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Activity
	for _, activity := range s.activities {
		if activity.EntityType == entityType && activity.EntityId == entityId {
			out = append(out, activity)
		}
	}
	return out
}

// PruneActivities drops feed entries older than 30 days and reports
// how many were removed.
func (s *CollaborationStore) PruneActivities() int {
	cutoff := s.now().Add(-30 * 24 * time.Hour)
	s.mu.Lock()
	kept := s.activities[:0]
	removed := 0
	for _, activity := range s.activities {
		if activity.CreatedAt.Before(cutoff) {
			removed++
		} else {
			kept = append(kept, activity)
		}
	}
	s.activities = kept
	s.mu.Unlock()

	if removed > 0 {
		s.broker.Publish(Event{Property: "activities"})
	}
	return removed
}

// MarkActive adds the user to the active set. The user stays active
// until MarkInactive is called; there is no expiry.
func (s *CollaborationStore) MarkActive(username string) {
	s.mu.Lock()
	s.active[username] = true
	s.mu.Unlock()
	s.broker.Publish(Event{Property: "presence"})
}

// MarkInactive removes the user from the active set.
func (s *CollaborationStore) MarkInactive(username string) {
	s.mu.Lock()
	delete(s.active, username)
	s.mu.Unlock()
	s.broker.Publish(Event{Property: "presence"})
}

// ActiveUsers returns the active usernames in sorted order.
func (s *CollaborationStore) ActiveUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.active))
	for username := range s.active {
		out = append(out, username)
	}
	sort.Strings(out)
	return out
}
