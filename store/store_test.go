package store

import "testing"

func TestNewWiresSharedBroker(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var events []Event
	unsubscribe := s.Events().Subscribe(func(e Event) { events = append(events, e) })
	defer unsubscribe()

	s.Inspections().AddDeficiency(NewDeficiency{Title: "Crack", Severity: SeverityLow})

	// one deficiency event plus the notification fan-out, all on the
	// same broker
	properties := map[string]bool{}
	for _, e := range events {
		properties[e.Property] = true
	}
	if !properties["deficiencies"] || !properties["notifications"] || !properties["unreadCount"] {
		t.Fatalf("events = %v, want deficiencies, notifications, unreadCount", properties)
	}
}

func TestEndToEndPhotoToDeficiency(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Analysis().randFloat = pinnedRand(0.9)

	deficiency := s.Inspections().AddDeficiency(NewDeficiency{Title: "Crack", Description: "base", Severity: SeverityMedium, JobNumber: "J-100"})
	photo := s.Media().AddPhoto(NewPhoto{Filename: "crack.jpg", JobNumber: "J-100", JobType: "concrete", DeficiencyId: deficiency.Id})

	settled, err := s.Media().WaitForAnalysis(photo.Id)
	if err != nil {
		t.Fatalf("WaitForAnalysis: %v", err)
	}
	if err := s.Inspections().AttachAnalyzedPhoto(deficiency.Id, settled); err != nil {
		t.Fatalf("AttachAnalyzedPhoto: %v", err)
	}

	got, _ := s.Inspections().GetDeficiency(deficiency.Id)
	if len(got.PhotoIds) != 1 {
		t.Fatalf("photo not linked: %+v", got)
	}

	summary := s.Analytics().Summary()
	if summary.OpenDeficiencies != 1 {
		t.Fatalf("summary = %+v, want 1 open deficiency", summary)
	}
}
