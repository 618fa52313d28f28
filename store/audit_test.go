package store

import (
	"errors"
	"testing"
)

func newTestAudits() (*AuditStore, *NotificationStore) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	return NewAuditStore(notifications, broker), notifications
}

func TestIssueInstructionRequiresCompetencies(t *testing.T) {
	audits, _ := newTestAudits()

	_, err := audits.IssueInstruction(StaffInstruction{
		Subject:             "Fit-up checks",
		ReferencedStandards: []string{"AWS D1.1"},
	})
	var precheck *PrecheckError
	if !errors.As(err, &precheck) {
		t.Fatalf("err = %v, want PrecheckError", err)
	}

	_, err = audits.IssueInstruction(StaffInstruction{
		Subject:                "Fit-up checks",
		CompetencyRequirements: []string{"CWI"},
	})
	if !errors.As(err, &precheck) {
		t.Fatalf("missing standards err = %v, want PrecheckError", err)
	}

	instruction, err := audits.IssueInstruction(StaffInstruction{
		Subject:                "Fit-up checks",
		CompetencyRequirements: []string{"CWI"},
		ReferencedStandards:    []string{"AWS D1.1"},
	})
	if err != nil {
		t.Fatalf("IssueInstruction: %v", err)
	}
	if err := audits.Acknowledge(instruction.Id, "welder1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if err := audits.Acknowledge(instruction.Id, "welder1"); err != nil {
		t.Fatalf("repeat Acknowledge: %v", err)
	}
	if got := audits.Instructions(); len(got[0].Acknowledgements) != 1 {
		t.Fatalf("acknowledgements = %v", got[0].Acknowledgements)
	}
}

func TestRecordAuditValidatesFindings(t *testing.T) {
	audits, _ := newTestAudits()

	_, err := audits.RecordAudit(PackageAudit{
		PackageName: "Pipe rack A",
		JobNumber:   "J-100",
		Auditor:     "qc-manager",
		Findings:    []AuditFinding{{Description: "missing weld log"}},
	})
	var precheck *PrecheckError
	if !errors.As(err, &precheck) || precheck.Field != "Findings" {
		t.Fatalf("err = %v, want Findings precheck", err)
	}

	_, err = audits.RecordAudit(PackageAudit{
		PackageName:       "Pipe rack A",
		JobNumber:         "J-100",
		Auditor:           "qc-manager",
		CorrectiveActions: []CorrectiveAction{{Description: "retrain crew"}},
	})
	if !errors.As(err, &precheck) || precheck.Field != "CorrectiveActions" {
		t.Fatalf("err = %v, want CorrectiveActions precheck", err)
	}

	if got := audits.Audits(); len(got) != 0 {
		t.Fatalf("failed audits must not be stored, have %d", len(got))
	}
}

func TestThirdPartyQueueThreshold(t *testing.T) {
	audits, notifications := newTestAudits()

	passing := QualityMetrics{
		WeldAcceptanceRate:    0.95,
		DocumentationScore:    0.90,
		ChecklistCompletion:   0.88,
		DeficiencyClosureRate: 0.85,
	}
	if _, err := audits.RecordAudit(PackageAudit{PackageName: "Rack A", JobNumber: "J-1", Auditor: "qc", Metrics: passing}); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}

	failing := passing
	failing.DocumentationScore = 0.84
	if _, err := audits.RecordAudit(PackageAudit{PackageName: "Rack B", JobNumber: "J-1", Auditor: "qc", Metrics: failing}); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}

	queue := audits.ThirdPartyQueue()
	if len(queue) != 1 || queue[0].PackageName != "Rack A" {
		t.Fatalf("queue = %+v, want only Rack A", queue)
	}
	if queue[0].Status != StatusPending {
		t.Fatalf("queued status = %s, want pending", queue[0].Status)
	}
	if got := notifications.Notifications(); len(got) != 1 || got[0].Title != "Third-Party Inspection Queued" {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestCloseAction(t *testing.T) {
	audits, _ := newTestAudits()
	audit, err := audits.RecordAudit(PackageAudit{
		PackageName: "Rack A",
		JobNumber:   "J-1",
		Auditor:     "qc",
		CorrectiveActions: []CorrectiveAction{{
			Description:        "retrain crew",
			PreventiveMeasures: []string{"monthly refresher"},
		}},
	})
	if err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}

	if err := audits.CloseAction(audit.Id, audit.CorrectiveActions[0].Id); err != nil {
		t.Fatalf("CloseAction: %v", err)
	}
	if audits.Audits()[0].CorrectiveActions[0].ClosedAt == nil {
		t.Fatalf("action not stamped closed")
	}
	if err := audits.CloseAction(audit.Id, "missing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
