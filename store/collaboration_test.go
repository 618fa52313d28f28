package store

import (
	"testing"
	"time"
)

func newTestCollaboration() (*CollaborationStore, *NotificationStore) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	return NewCollaborationStore(notifications, broker), notifications
}

func TestParseMentions(t *testing.T) {
	got := ParseMentions("ping @site-super and @qc_lead, not email@example.com")
	// the regex also picks up the mail domain; that matches how the
	// web client behaves today
	if len(got) < 2 || got[0] != "site-super" || got[1] != "qc_lead" {
		t.Fatalf("mentions = %v", got)
	}
	if len(ParseMentions("no mentions here")) != 0 {
		t.Fatalf("expected no mentions")
	}
}

func TestAddCommentNotifiesMentions(t *testing.T) {
	collaboration, notifications := newTestCollaboration()

	comment := collaboration.AddComment("deficiency", "d1", "inspector1", "fixed, please verify @qc-lead @site-super")
	if len(comment.Mentions) != 2 {
		t.Fatalf("mentions = %v", comment.Mentions)
	}

	targets := map[string]bool{}
	mentioned := 0
	for _, n := range notifications.Notifications() {
		if n.Title != "You were mentioned" {
			continue
		}
		mentioned++
		targets[n.Target] = true
	}
	if mentioned != 2 {
		t.Fatalf("mention notifications = %d, want one per mention", mentioned)
	}
	if !targets["qc-lead"] || !targets["site-super"] {
		t.Fatalf("targets = %v", targets)
	}
}

func TestAddCommentLogsActivity(t *testing.T) {
	collaboration, _ := newTestCollaboration()

	comment := collaboration.AddComment("inspection", "i1", "inspector1", "all clear")

	activities := collaboration.ActivitiesByEntity("inspection", "i1")
	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	act := activities[0]
	if act.Type != ActivityCommentAdded || act.Actor != "inspector1" {
		t.Fatalf("activity = %+v, want inspector1 comment_added", act)
	}
	if act.Data["comment_id"] != comment.Id {
		t.Fatalf("activity data = %v, want comment id", act.Data)
	}
}

func TestReactIsIdempotent(t *testing.T) {
	collaboration, _ := newTestCollaboration()
	comment := collaboration.AddComment("inspection", "i1", "a", "done")

	if err := collaboration.React(comment.Id, "👍", "b"); err != nil {
		t.Fatalf("React: %v", err)
	}
	// same user reacting again is a no-op, not a removal
	if err := collaboration.React(comment.Id, "👍", "b"); err != nil {
		t.Fatalf("React repeat: %v", err)
	}
	if users := comment.Reactions["👍"]; len(users) != 1 || users[0] != "b" {
		t.Fatalf("reactions = %v, want b exactly once", comment.Reactions)
	}

	if err := collaboration.React(comment.Id, "👍", "c"); err != nil {
		t.Fatalf("React: %v", err)
	}
	if users := comment.Reactions["👍"]; len(users) != 2 {
		t.Fatalf("reactions = %v, want two users", comment.Reactions)
	}

	if err := collaboration.React("missing", "👍", "b"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestEditComment(t *testing.T) {
	collaboration, notifications := newTestCollaboration()
	comment := collaboration.AddComment("deficiency", "d1", "inspector1", "needs review @qc-lead")
	before := len(notifications.Notifications())

	// only the author may edit
	if err := collaboration.EditComment(comment.Id, "someone-else", "hijacked"); err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if comment.Text != "needs review @qc-lead" || comment.Edited {
		t.Fatalf("comment changed by non-author: %+v", comment)
	}

	if err := collaboration.EditComment(comment.Id, "inspector1", "needs review @qc-lead and @site-super"); err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if !comment.Edited {
		t.Fatalf("edited flag not set")
	}
	if len(comment.Mentions) != 2 {
		t.Fatalf("mentions = %v, want re-parsed", comment.Mentions)
	}

	// only the newly-added mention is notified
	added := notifications.Notifications()[:len(notifications.Notifications())-before]
	if len(added) != 1 || added[0].Target != "site-super" {
		t.Fatalf("notifications after edit = %+v, want one for site-super", added)
	}

	if err := collaboration.EditComment("missing", "inspector1", "x"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordActivityEscalatesSeverity(t *testing.T) {
	collaboration, notifications := newTestCollaboration()

	collaboration.RecordActivity(ActivityStatusChange, "inspector1", "deficiency", "d1", map[string]string{"severity": "high"})
	collaboration.RecordActivity(ActivityCommentAdded, "inspector1", "deficiency", "d1", map[string]string{"severity": "medium"})
	collaboration.RecordActivity(ActivityPhotoUploaded, "inspector1", "deficiency", "d1", nil)

	all := notifications.Notifications()
	if len(all) != 3 {
		t.Fatalf("notifications = %d, want 3", len(all))
	}
	// newest first
	if all[0].Severity != NotificationSeverityInfo {
		t.Fatalf("photo activity severity = %s, want info", all[0].Severity)
	}
	if all[1].Severity != NotificationSeverityWarning {
		t.Fatalf("medium activity severity = %s, want warning", all[1].Severity)
	}
	if all[2].Severity != NotificationSeverityCritical {
		t.Fatalf("high activity severity = %s, want critical", all[2].Severity)
	}
	if all[2].Title != "Status Updated" {
		t.Fatalf("title = %q, want Status Updated", all[2].Title)
	}
}

func TestPruneActivities(t *testing.T) {
	collaboration, _ := newTestCollaboration()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	collaboration.now = fixedClock(base.Add(-31 * 24 * time.Hour))
	collaboration.RecordActivity(ActivityStatusChange, "a", "inspection", "i1", nil)
	collaboration.now = fixedClock(base.Add(-5 * 24 * time.Hour))
	collaboration.RecordActivity(ActivityCommentAdded, "a", "inspection", "i1", nil)
	collaboration.now = fixedClock(base)

	if removed := collaboration.PruneActivities(); removed != 1 {
		t.Fatalf("pruned = %d, want 1", removed)
	}
	remaining := collaboration.Activities()
	if len(remaining) != 1 || remaining[0].Type != ActivityCommentAdded {
		t.Fatalf("remaining = %+v", remaining)
	}
	if removed := collaboration.PruneActivities(); removed != 0 {
		t.Fatalf("second prune removed %d, want 0", removed)
	}
}

func TestPresenceExplicitSet(t *testing.T) {
	collaboration, _ := newTestCollaboration()

	collaboration.MarkActive("inspector1")
	collaboration.MarkActive("qc-lead")
	collaboration.MarkActive("inspector1") // repeat is a no-op

	if got := collaboration.ActiveUsers(); len(got) != 2 || got[0] != "inspector1" || got[1] != "qc-lead" {
		t.Fatalf("active = %v, want [inspector1 qc-lead]", got)
	}

	// no clock involved: users stay active until explicitly removed
	collaboration.now = fixedClock(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if got := collaboration.ActiveUsers(); len(got) != 2 {
		t.Fatalf("active = %v, want both still active", got)
	}

	collaboration.MarkInactive("inspector1")
	if got := collaboration.ActiveUsers(); len(got) != 1 || got[0] != "qc-lead" {
		t.Fatalf("active = %v, want only qc-lead", got)
	}
	collaboration.MarkInactive("never-active") // unknown user is ignored
	if got := collaboration.ActiveUsers(); len(got) != 1 {
		t.Fatalf("active = %v", got)
	}
}
