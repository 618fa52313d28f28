package store

import (
	"testing"
	"time"
)

func newTestSchedule() (*ScheduleStore, *InspectionStore, *CollaborationStore, *NotificationStore) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	collaboration := NewCollaborationStore(notifications, broker)
	inspections := NewInspectionStore(notifications, collaboration, nil, broker)
	schedule := NewScheduleStore(inspections, notifications, collaboration, broker)
	return schedule, inspections, collaboration, notifications
}

func fixedClock(ts time.Time) clock {
	return func() time.Time { return ts }
}

func TestScheduleCreatesPendingInspection(t *testing.T) {
	schedule, inspections, _, _ := newTestSchedule()

	inspection, err := schedule.Schedule(NewInspection{
		Title:         "Footing pour",
		Type:          "structural",
		ScheduledDate: time.Now().Add(24 * time.Hour),
		JobNumber:     "J-100",
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if inspection.Status != StatusPending {
		t.Fatalf("status = %s, want pending", inspection.Status)
	}
	if got := len(inspections.Inspections()); got != 1 {
		t.Fatalf("inspections = %d, want 1", got)
	}
}

func TestScheduleNotifiesAndLogsActivity(t *testing.T) {
	schedule, _, collaboration, notifications := newTestSchedule()

	date := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	inspection, err := schedule.Schedule(NewInspection{
		Title:         "Footing pour",
		Priority:      PriorityHigh,
		ScheduledDate: date,
		Location:      "Pier 3",
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	var scheduled *Notification
	for _, n := range notifications.Notifications() {
		if n.Title == "New Inspection Scheduled" {
			scheduled = n
			break
		}
	}
	if scheduled == nil {
		t.Fatalf("no scheduling notification raised")
	}
	if scheduled.Severity != NotificationSeverityCritical {
		t.Fatalf("severity = %s, want critical for high priority", scheduled.Severity)
	}
	want := "Footing pour scheduled for 2025-06-10 (Pier 3)"
	if scheduled.Message != want {
		t.Fatalf("message = %q, want %q", scheduled.Message, want)
	}

	activities := collaboration.ActivitiesByEntity("inspection", inspection.Id)
	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	act := activities[0]
	if act.Type != ActivityInspectionScheduled || act.Actor != "system" {
		t.Fatalf("activity = %+v, want system inspection_scheduled", act)
	}
	if act.Data["action"] != "scheduled" || act.Data["location"] != "Pier 3" {
		t.Fatalf("activity data = %v", act.Data)
	}
}

func TestSchedulePriorityMapsNotificationSeverity(t *testing.T) {
	schedule, _, _, notifications := newTestSchedule()

	schedule.Schedule(NewInspection{Title: "a", Priority: PriorityLow})
	schedule.Schedule(NewInspection{Title: "b", Priority: PriorityMedium})

	var severities []NotificationSeverity
	for _, n := range notifications.Notifications() {
		if n.Title == "New Inspection Scheduled" {
			severities = append(severities, n.Severity)
		}
	}
	// newest first
	if len(severities) != 2 || severities[0] != NotificationSeverityWarning || severities[1] != NotificationSeverityInfo {
		t.Fatalf("severities = %v, want [warning info]", severities)
	}
}

func TestSchedulePrerequisiteGate(t *testing.T) {
	schedule, inspections, _, _ := newTestSchedule()

	prereq, _ := schedule.Schedule(NewInspection{Title: "Rebar check", Type: "structural"})

	// prerequisite still pending: creation must be refused outright
	if _, err := schedule.Schedule(NewInspection{Title: "Pour", Prerequisites: []string{prereq.Id}}); err != ErrPrerequisiteNotMet {
		t.Fatalf("err = %v, want ErrPrerequisiteNotMet", err)
	}
	if _, err := schedule.Schedule(NewInspection{Title: "Pour", Prerequisites: []string{"missing"}}); err != ErrPrerequisiteNotMet {
		t.Fatalf("unknown prereq err = %v, want ErrPrerequisiteNotMet", err)
	}
	if got := len(inspections.Inspections()); got != 1 {
		t.Fatalf("failed schedules must not create inspections, have %d", got)
	}

	if err := schedule.UpdateStatus(prereq.Id, StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := schedule.Schedule(NewInspection{Title: "Pour", Prerequisites: []string{prereq.Id}}); err != nil {
		t.Fatalf("schedule with completed prereq: %v", err)
	}
}

func TestUpdateStatusTracksDuration(t *testing.T) {
	schedule, _, _, _ := newTestSchedule()

	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	schedule.now = fixedClock(t0)
	schedule.inspections.now = fixedClock(t0)
	inspection, _ := schedule.Schedule(NewInspection{Title: "Pour"})

	schedule.now = fixedClock(t0.Add(30 * time.Minute))
	if err := schedule.UpdateStatus(inspection.Id, StatusInProgress, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if inspection.StartedAt == nil {
		t.Fatalf("StartedAt not stamped")
	}

	schedule.now = fixedClock(t0.Add(105 * time.Minute))
	if err := schedule.UpdateStatus(inspection.Id, StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	// measured from StartedAt, not creation
	if inspection.ActualDuration != 75 {
		t.Fatalf("actual duration = %d minutes, want 75", inspection.ActualDuration)
	}
	if inspection.CompletedAt == nil {
		t.Fatalf("CompletedAt not stamped")
	}
}

func TestEveryTransitionRaisesNotification(t *testing.T) {
	schedule, _, collaboration, notifications := newTestSchedule()
	inspection, _ := schedule.Schedule(NewInspection{Title: "Weld survey"})

	if err := schedule.UpdateStatus(inspection.Id, StatusInProgress, "Crew on site"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	// newest first
	n := notifications.Notifications()[0]
	if n.Title != "Inspection Status Updated" || n.Severity != NotificationSeverityInfo {
		t.Fatalf("notification = %+v, want info status update", n)
	}
	want := "Weld survey status changed from pending to in-progress"
	if n.Message != want {
		t.Fatalf("message = %q, want %q", n.Message, want)
	}

	comments := collaboration.Comments("inspection", inspection.Id)
	if len(comments) != 1 || comments[0].Author != "system" || comments[0].Text != "Crew on site" {
		t.Fatalf("comments = %+v, want one system comment", comments)
	}
}

func TestFailedInspectionRaisesCriticalNotification(t *testing.T) {
	schedule, _, _, notifications := newTestSchedule()
	inspection, _ := schedule.Schedule(NewInspection{Title: "Weld survey"})

	if err := schedule.UpdateStatus(inspection.Id, StatusFailed, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// newest first: the status transition notification
	n := notifications.Notifications()[0]
	if n.Severity != NotificationSeverityCritical {
		t.Fatalf("severity = %s, want critical", n.Severity)
	}
	want := "Weld survey status changed from pending to failed"
	if n.Message != want {
		t.Fatalf("message = %q, want %q", n.Message, want)
	}
}

func TestDueAndOverdue(t *testing.T) {
	schedule, _, _, _ := newTestSchedule()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	schedule.now = fixedClock(now)

	past, _ := schedule.Schedule(NewInspection{Title: "past", ScheduledDate: now.Add(-2 * time.Hour)})
	soon, _ := schedule.Schedule(NewInspection{Title: "soon", ScheduledDate: now.Add(12 * time.Hour)})
	later, _ := schedule.Schedule(NewInspection{Title: "later", ScheduledDate: now.Add(72 * time.Hour)})
	done, _ := schedule.Schedule(NewInspection{Title: "done", ScheduledDate: now.Add(-1 * time.Hour)})
	schedule.UpdateStatus(done.Id, StatusCompleted, "")

	due := schedule.Due(24)
	if len(due) != 2 {
		t.Fatalf("due = %d, want 2 (past and soon)", len(due))
	}
	for _, inspection := range due {
		if inspection.Id != past.Id && inspection.Id != soon.Id {
			t.Fatalf("unexpected due inspection %s", inspection.Title)
		}
	}

	overdue := schedule.Overdue()
	if len(overdue) != 1 || overdue[0].Id != past.Id {
		t.Fatalf("overdue = %+v, want only the past pending inspection", overdue)
	}
	_ = later
}

func TestByDateRangeInclusiveBounds(t *testing.T) {
	schedule, _, _, _ := newTestSchedule()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)

	onStart, _ := schedule.Schedule(NewInspection{Title: "on start", ScheduledDate: start})
	inside, _ := schedule.Schedule(NewInspection{Title: "inside", ScheduledDate: start.Add(72 * time.Hour)})
	onEnd, _ := schedule.Schedule(NewInspection{Title: "on end", ScheduledDate: end})
	schedule.Schedule(NewInspection{Title: "before", ScheduledDate: start.Add(-time.Minute)})
	schedule.Schedule(NewInspection{Title: "after", ScheduledDate: end.Add(time.Minute)})

	got := schedule.ByDateRange(start, end)
	if len(got) != 3 {
		t.Fatalf("ByDateRange = %d, want 3 (both bounds inclusive)", len(got))
	}
	want := map[string]bool{onStart.Id: true, inside.Id: true, onEnd.Id: true}
	for _, inspection := range got {
		if !want[inspection.Id] {
			t.Fatalf("unexpected inspection %s in range", inspection.Title)
		}
	}
}

func TestReschedule(t *testing.T) {
	schedule, _, _, _ := newTestSchedule()
	inspection, _ := schedule.Schedule(NewInspection{Title: "Pour"})

	target := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	if err := schedule.Reschedule(inspection.Id, target); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !inspection.ScheduledDate.Equal(target) {
		t.Fatalf("scheduled date = %v, want %v", inspection.ScheduledDate, target)
	}
	if err := schedule.Reschedule("missing", target); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
