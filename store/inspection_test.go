package store

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newTestInspections() (*InspectionStore, *CollaborationStore, *NotificationStore) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	collaboration := NewCollaborationStore(notifications, broker)
	return NewInspectionStore(notifications, collaboration, nil, broker), collaboration, notifications
}

func TestAddDeficiencyNotifiesBySeverity(t *testing.T) {
	inspections, _, notifications := newTestInspections()

	inspections.AddDeficiency(NewDeficiency{Title: "Honeycombing", Severity: SeverityHigh, Location: "Pier 3"})
	inspections.AddDeficiency(NewDeficiency{Title: "Surface void", Severity: SeverityMedium, Location: "Pier 3"})
	inspections.AddDeficiency(NewDeficiency{Title: "Stain", Severity: SeverityLow, Location: "Pier 4"})

	var deficiencyNotifs []*Notification
	for _, n := range notifications.Notifications() {
		if n.Title == "New Deficiency" {
			deficiencyNotifs = append(deficiencyNotifs, n)
		}
	}
	if len(deficiencyNotifs) != 3 {
		t.Fatalf("deficiency notifications = %d, want 3", len(deficiencyNotifs))
	}
	// newest first: low, medium, high
	wantSeverities := []NotificationSeverity{NotificationSeverityInfo, NotificationSeverityWarning, NotificationSeverityCritical}
	for i, want := range wantSeverities {
		if deficiencyNotifs[i].Severity != want {
			t.Fatalf("notification %d severity = %s, want %s", i, deficiencyNotifs[i].Severity, want)
		}
	}
}

func TestAddDeficiencyLogsCreatedActivity(t *testing.T) {
	inspections, collaboration, _ := newTestInspections()

	deficiency := inspections.AddDeficiency(NewDeficiency{Title: "Honeycombing", Severity: SeverityHigh, Location: "Pier 3"})

	activities := collaboration.ActivitiesByEntity("deficiency", deficiency.Id)
	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	act := activities[0]
	if act.Type != ActivityDeficiencyCreated || act.Actor != "system" {
		t.Fatalf("activity = %+v, want system deficiency_created", act)
	}
	if act.Data["action"] != "created" || act.Data["severity"] != "high" {
		t.Fatalf("activity data = %v", act.Data)
	}
}

func TestResolveDeficiency(t *testing.T) {
	inspections, _, _ := newTestInspections()
	deficiency := inspections.AddDeficiency(NewDeficiency{Title: "Honeycombing", Severity: SeverityHigh})

	if err := inspections.ResolveDeficiency(deficiency.Id, "Grouted and retested"); err != nil {
		t.Fatalf("ResolveDeficiency: %v", err)
	}
	if deficiency.Status != StatusResolved || deficiency.ResolvedAt == nil {
		t.Fatalf("deficiency = %+v, want resolved with timestamp", deficiency)
	}
	if got := len(inspections.OpenDeficiencies()); got != 0 {
		t.Fatalf("open deficiencies = %d, want 0", got)
	}
	if err := inspections.ResolveDeficiency("missing", ""); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDeficiencyStatus(t *testing.T) {
	inspections, collaboration, _ := newTestInspections()
	deficiency := inspections.AddDeficiency(NewDeficiency{Title: "Honeycombing", Severity: SeverityMedium})

	inspections.UpdateDeficiencyStatus(deficiency.Id, StatusInProgress, "Crew dispatched")
	if deficiency.Status != StatusInProgress {
		t.Fatalf("status = %s, want in-progress", deficiency.Status)
	}
	comments := collaboration.Comments("deficiency", deficiency.Id)
	if len(comments) != 1 || comments[0].Author != "system" || comments[0].Text != "Crew dispatched" {
		t.Fatalf("comments = %+v, want one system comment", comments)
	}

	inspections.UpdateDeficiencyStatus(deficiency.Id, StatusResolved, "")
	if deficiency.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", deficiency.Status)
	}
	if got := collaboration.Comments("deficiency", deficiency.Id); len(got) != 1 {
		t.Fatalf("empty comment must not be recorded, have %d", len(got))
	}

	// unknown ids are ignored
	inspections.UpdateDeficiencyStatus("missing", StatusOpen, "ignored")
	if got := collaboration.Comments("deficiency", "missing"); len(got) != 0 {
		t.Fatalf("comments on missing deficiency = %d, want 0", len(got))
	}
}

func TestAddDeficiencyWithPhotosAppendsAnalysis(t *testing.T) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	engine := NewAnalysisEngine()
	engine.randFloat = pinnedRand(0.9)
	collaboration := NewCollaborationStore(notifications, broker)
	media := NewMediaStore(engine, notifications, broker)
	inspections := NewInspectionStore(notifications, collaboration, media, broker)

	photo := media.AddPhoto(NewPhoto{Filename: "crack.jpg", JobType: "steel"})

	deficiency := inspections.AddDeficiency(NewDeficiency{
		Title:       "Corroded bracket",
		Description: "Bracket at grid B-4",
		Severity:    SeverityMedium,
		PhotoIds:    []string{photo.Id},
	})

	if len(deficiency.PhotoIds) != 1 || deficiency.PhotoIds[0] != photo.Id {
		t.Fatalf("photo ids = %v", deficiency.PhotoIds)
	}
	if !strings.HasPrefix(deficiency.Description, "Bracket at grid B-4\n") {
		t.Fatalf("original description lost: %q", deficiency.Description)
	}
	if !strings.Contains(deficiency.Description, "AI Analysis: corrosion detected") {
		t.Fatalf("description = %q, want analysis summary appended", deficiency.Description)
	}
}

func TestAddDeficiencyUnknownPhotoIsLoggedAndSkipped(t *testing.T) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	media := NewMediaStore(NewAnalysisEngine(), notifications, broker)
	inspections := NewInspectionStore(notifications, nil, media, broker)
	logger, hook := logtest.NewNullLogger()
	inspections.log = logger

	deficiency := inspections.AddDeficiency(NewDeficiency{
		Title:       "Crack",
		Description: "original",
		Severity:    SeverityLow,
		PhotoIds:    []string{"missing"},
	})

	if deficiency.Description != "original" {
		t.Fatalf("description = %q, want unchanged", deficiency.Description)
	}
	if len(deficiency.PhotoIds) != 1 {
		t.Fatalf("photo ids = %v, want the supplied id kept", deficiency.PhotoIds)
	}

	entries := hook.AllEntries()
	if len(entries) != 1 || entries[0].Level != logrus.ErrorLevel {
		t.Fatalf("log entries = %+v, want one error", entries)
	}
	if entries[0].Data["photo_id"] != "missing" {
		t.Fatalf("log fields = %v, want photo_id", entries[0].Data)
	}
}

func TestAttachAnalyzedPhotoAppendsSummary(t *testing.T) {
	inspections, _, _ := newTestInspections()
	deficiency := inspections.AddDeficiency(NewDeficiency{Title: "Crack", Description: "Vertical crack at base", Severity: SeverityMedium})

	photo := &PhotoAttachment{
		BaseRecord: BaseRecord{Id: "photo-1"},
		Analysis: &AnalysisResult{Defects: []DefectDetection{
			{Type: "crack", Confidence: 0.92},
		}},
	}
	if err := inspections.AttachAnalyzedPhoto(deficiency.Id, photo); err != nil {
		t.Fatalf("AttachAnalyzedPhoto: %v", err)
	}

	if len(deficiency.PhotoIds) != 1 || deficiency.PhotoIds[0] != "photo-1" {
		t.Fatalf("photo ids = %v", deficiency.PhotoIds)
	}
	if !strings.HasSuffix(deficiency.Description, "AI Analysis: crack detected (92.0% confidence)") {
		t.Fatalf("description = %q", deficiency.Description)
	}
	if !strings.HasPrefix(deficiency.Description, "Vertical crack at base\n") {
		t.Fatalf("original description lost: %q", deficiency.Description)
	}
}

func TestAttachPhotoWithoutDefectsLeavesDescription(t *testing.T) {
	inspections, _, _ := newTestInspections()
	deficiency := inspections.AddDeficiency(NewDeficiency{Title: "Crack", Description: "original", Severity: SeverityLow})

	photo := &PhotoAttachment{BaseRecord: BaseRecord{Id: "photo-1"}}
	if err := inspections.AttachAnalyzedPhoto(deficiency.Id, photo); err != nil {
		t.Fatalf("AttachAnalyzedPhoto: %v", err)
	}
	if deficiency.Description != "original" {
		t.Fatalf("description = %q, want unchanged", deficiency.Description)
	}
}

func TestGenerateChecklistFromTemplate(t *testing.T) {
	inspections, _, _ := newTestInspections()
	inspections.AddTemplate("structural", "Structural basics",
		[]string{"Verify rebar spacing", "Check formwork", "Confirm embed locations"},
		[]string{"Verify rebar spacing"})

	items := inspections.GenerateChecklist("structural")
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if !items[0].Required || items[1].Required {
		t.Fatalf("required flags wrong: %+v", items)
	}
	for _, item := range items {
		if item.Completed {
			t.Fatalf("new checklist item already completed: %+v", item)
		}
	}
	if got := inspections.GenerateChecklist("unknown"); got != nil {
		t.Fatalf("unknown type checklist = %v, want nil", got)
	}
}

func TestChecklistProgress(t *testing.T) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	inspections := NewInspectionStore(notifications, nil, nil, broker)
	schedule := NewScheduleStore(inspections, notifications, nil, broker)

	inspections.AddTemplate("structural", "Basics", []string{"a", "b"}, nil)
	inspection, err := schedule.Schedule(NewInspection{Title: "Pour", Type: "structural"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if err := inspections.CompleteChecklistItem(inspection.Id, inspection.Checklist[0].Id, "inspector1"); err != nil {
		t.Fatalf("CompleteChecklistItem: %v", err)
	}
	completed, total, err := inspections.ChecklistProgress(inspection.Id)
	if err != nil || completed != 1 || total != 2 {
		t.Fatalf("progress = %d/%d err=%v, want 1/2", completed, total, err)
	}
	if inspection.Checklist[0].CompletedBy != "inspector1" || inspection.Checklist[0].CompletedAt == nil {
		t.Fatalf("completion stamp missing: %+v", inspection.Checklist[0])
	}

	if err := inspections.CompleteChecklistItem(inspection.Id, "missing", "x"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
