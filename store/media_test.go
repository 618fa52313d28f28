package store

import (
	"strings"
	"testing"
)

func newTestMedia(randValues ...float64) (*MediaStore, *NotificationStore) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	engine := NewAnalysisEngine()
	if len(randValues) > 0 {
		engine.randFloat = pinnedRand(randValues...)
	}
	return NewMediaStore(engine, notifications, broker), notifications
}

func TestAddPhotoAnalyzesAsynchronously(t *testing.T) {
	media, _ := newTestMedia(0.9)

	photo := media.AddPhoto(NewPhoto{Filename: "wall.jpg", JobNumber: "J-100", JobType: "concrete", UploadedBy: "inspector1"})
	settled, err := media.WaitForAnalysis(photo.Id)
	if err != nil {
		t.Fatalf("WaitForAnalysis: %v", err)
	}
	if settled.AnalysisStatus != AnalysisCompleted {
		t.Fatalf("status = %s, want completed", settled.AnalysisStatus)
	}
	if settled.Analysis == nil || len(settled.Analysis.Defects) != 2 {
		t.Fatalf("analysis = %+v, want 2 defects", settled.Analysis)
	}
}

func TestWaitForAnalysisUnknownPhoto(t *testing.T) {
	media, _ := newTestMedia()
	if _, err := media.WaitForAnalysis("missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDefectNotificationSeverityTracksConfidence(t *testing.T) {
	// confidence 0.7 + 0.9*0.3 = 0.97, above the critical threshold
	media, notifications := newTestMedia(0.9)

	photo := media.AddPhoto(NewPhoto{Filename: "wall.jpg", JobType: "steel"})
	if _, err := media.WaitForAnalysis(photo.Id); err != nil {
		t.Fatalf("WaitForAnalysis: %v", err)
	}

	all := notifications.Notifications()
	if len(all) != 1 {
		t.Fatalf("notifications = %d, want 1", len(all))
	}
	n := all[0]
	if n.Severity != NotificationSeverityCritical {
		t.Fatalf("severity = %s, want critical", n.Severity)
	}
	if !strings.Contains(n.Message, "corrosion detected") {
		t.Fatalf("message = %q", n.Message)
	}
}

func TestNoNotificationWhenNoDefects(t *testing.T) {
	media, notifications := newTestMedia(0.1)

	photo := media.AddPhoto(NewPhoto{Filename: "wall.jpg", JobType: "concrete"})
	if _, err := media.WaitForAnalysis(photo.Id); err != nil {
		t.Fatalf("WaitForAnalysis: %v", err)
	}
	if got := len(notifications.Notifications()); got != 0 {
		t.Fatalf("notifications = %d, want 0", got)
	}
}

func TestPhotoTagging(t *testing.T) {
	media, _ := newTestMedia(0.1)
	photo := media.AddPhoto(NewPhoto{Filename: "a.jpg", JobNumber: "j1", Tags: []string{"north"}})

	if err := media.AddTag(photo.Id, "rebar"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if err := media.AddTag(photo.Id, "rebar"); err != nil {
		t.Fatalf("AddTag repeat: %v", err)
	}

	got, _ := media.GetPhoto(photo.Id)
	if len(got.Tags) != 2 {
		t.Fatalf("tags = %v, want 2 distinct", got.Tags)
	}
	if byTag := media.PhotosByTag("rebar"); len(byTag) != 1 {
		t.Fatalf("PhotosByTag = %d, want 1", len(byTag))
	}
}

func TestPhotoQueries(t *testing.T) {
	media, _ := newTestMedia(0.1)
	media.AddPhoto(NewPhoto{Filename: "a.jpg", JobNumber: "j1", InspectionId: "i1", DeficiencyId: "d1", Location: "Pier 3 north face"})
	media.AddPhoto(NewPhoto{Filename: "b.jpg", JobNumber: "j2", Location: "Pier 4"})

	if got := media.PhotosByJob("j1"); len(got) != 1 {
		t.Fatalf("PhotosByJob = %d, want 1", len(got))
	}
	if got := media.PhotosByInspection("i1"); len(got) != 1 {
		t.Fatalf("PhotosByInspection = %d, want 1", len(got))
	}
	if got := media.PhotosByDeficiency("d1"); len(got) != 1 || got[0].Filename != "a.jpg" {
		t.Fatalf("PhotosByDeficiency = %+v, want a.jpg", got)
	}
	if got := media.PhotosByDeficiency("d2"); len(got) != 0 {
		t.Fatalf("PhotosByDeficiency unknown = %d, want 0", len(got))
	}
}

func TestPhotosByLocationSubstring(t *testing.T) {
	media, _ := newTestMedia(0.1)
	media.AddPhoto(NewPhoto{Filename: "a.jpg", Location: "Pier 3 north face"})
	media.AddPhoto(NewPhoto{Filename: "b.jpg", Location: "Pier 31 deck"})
	media.AddPhoto(NewPhoto{Filename: "c.jpg", Location: "Abutment A"})

	if got := media.PhotosByLocation("Pier 3"); len(got) != 2 {
		t.Fatalf("PhotosByLocation = %d, want 2 substring matches", len(got))
	}
	if got := media.PhotosByLocation("Pier 4"); len(got) != 0 {
		t.Fatalf("PhotosByLocation = %d, want 0", len(got))
	}
}

func TestAnalysisSummaryText(t *testing.T) {
	result := &AnalysisResult{Defects: []DefectDetection{
		{Type: "crack", Confidence: 0.92},
		{Type: "spalling", Confidence: 0.85},
	}}
	got := AnalysisSummaryText(result)
	want := "AI Analysis: crack detected (92.0% confidence), spalling detected (85.0% confidence)"
	if got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
	if AnalysisSummaryText(nil) != "" {
		t.Fatalf("nil analysis should render empty")
	}
}
