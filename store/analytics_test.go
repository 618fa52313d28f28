package store

import (
	"testing"
	"time"
)

func TestAnalyticsSummary(t *testing.T) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	inspections := NewInspectionStore(notifications, nil, nil, broker)
	schedule := NewScheduleStore(inspections, notifications, nil, broker)
	analytics := NewAnalyticsView(inspections)

	done, _ := schedule.Schedule(NewInspection{Title: "a"})
	schedule.Schedule(NewInspection{Title: "b"})
	schedule.UpdateStatus(done.Id, StatusCompleted, "")

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	inspections.now = fixedClock(base)
	open := inspections.AddDeficiency(NewDeficiency{Title: "open", Severity: SeverityHigh, Location: "Pier 3"})
	resolved := inspections.AddDeficiency(NewDeficiency{Title: "resolved", Severity: SeverityLow, Location: "Pier 3"})
	inspections.now = fixedClock(base.Add(6 * time.Hour))
	inspections.ResolveDeficiency(resolved.Id, "fixed")

	summary := analytics.Summary()
	if summary.TotalInspections != 2 || summary.CompletedInspections != 1 {
		t.Fatalf("inspections = %d/%d, want 2 total 1 completed", summary.TotalInspections, summary.CompletedInspections)
	}
	if summary.OpenDeficiencies != 1 || summary.ResolvedDeficiencies != 1 {
		t.Fatalf("deficiencies = %d open %d resolved", summary.OpenDeficiencies, summary.ResolvedDeficiencies)
	}
	if summary.AverageResolutionTime != 6 {
		t.Fatalf("avg resolution = %v hours, want 6", summary.AverageResolutionTime)
	}
	if summary.DeficienciesBySeverity[SeverityHigh] != 1 || summary.DeficienciesBySeverity[SeverityLow] != 1 {
		t.Fatalf("by severity = %v", summary.DeficienciesBySeverity)
	}
	if summary.LocationHeatmap["Pier 3"] != 2 {
		t.Fatalf("heatmap = %v", summary.LocationHeatmap)
	}
	_ = open
}

func TestAnalyticsEmptyStore(t *testing.T) {
	broker := NewBroker()
	inspections := NewInspectionStore(NewNotificationStore(broker), nil, nil, broker)
	summary := NewAnalyticsView(inspections).Summary()

	if summary.TotalInspections != 0 || summary.AverageResolutionTime != 0 {
		t.Fatalf("summary = %+v, want zero values", summary)
	}
	if summary.DeficienciesBySeverity == nil || summary.LocationHeatmap == nil {
		t.Fatalf("maps must be initialized")
	}
}
