package store

import "testing"

func newTestNde() (*NdeStore, *NotificationStore) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	return NewNdeStore(notifications, broker), notifications
}

func TestNdeLifecycle(t *testing.T) {
	nde, notifications := newTestNde()

	request := nde.RequestExamination("J-1", "W-101", "RT", "supervisor1")
	if request.Status != StatusPending {
		t.Fatalf("request status = %s, want pending", request.Status)
	}

	report, err := nde.FileReport(request.Id, "reject", "tech1")
	if err != nil {
		t.Fatalf("FileReport: %v", err)
	}
	if report.Verified {
		t.Fatalf("fresh report must be unverified")
	}
	if request.Status != StatusCompleted {
		t.Fatalf("request status = %s, want completed after report", request.Status)
	}

	if err := nde.VerifyReport(report.Id, "qc-lead"); err != nil {
		t.Fatalf("VerifyReport: %v", err)
	}
	if !report.Verified || report.VerifiedBy != "qc-lead" || report.VerifiedAt == nil {
		t.Fatalf("report = %+v, want verified stamp", report)
	}

	weldMap, err := nde.WeldMapByJob("J-1")
	if err != nil {
		t.Fatalf("WeldMapByJob: %v", err)
	}
	if len(weldMap.Results) != 1 || weldMap.Results[0].WeldId != "W-101" || weldMap.Results[0].Result != "reject" {
		t.Fatalf("weld map results = %+v", weldMap.Results)
	}

	// rejection raises a warning
	found := false
	for _, n := range notifications.Notifications() {
		if n.Title == "NDE Rejection" && n.Severity == NotificationSeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected NDE rejection warning")
	}
}

func TestFileReportUnknownRequest(t *testing.T) {
	nde, _ := newTestNde()
	if _, err := nde.FileReport("missing", "accept", "tech1"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWeldMapAccumulates(t *testing.T) {
	nde, _ := newTestNde()
	for _, weld := range []string{"W-1", "W-2"} {
		request := nde.RequestExamination("J-1", weld, "UT", "supervisor1")
		report, _ := nde.FileReport(request.Id, "accept", "tech1")
		nde.VerifyReport(report.Id, "qc-lead")
	}

	weldMap, err := nde.WeldMapByJob("J-1")
	if err != nil {
		t.Fatalf("WeldMapByJob: %v", err)
	}
	if len(weldMap.Results) != 2 {
		t.Fatalf("results = %d, want 2 on one map", len(weldMap.Results))
	}
	if _, err := nde.WeldMapByJob("J-2"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNcrLifecycle(t *testing.T) {
	nde, notifications := newTestNde()

	ncr := nde.RaiseNcr("J-1", "Wrong filler metal used", SeverityHigh, "supervisor1")
	if ncr.Status != StatusOpen {
		t.Fatalf("ncr status = %s, want open", ncr.Status)
	}
	if got := notifications.Notifications(); len(got) != 1 || got[0].Severity != NotificationSeverityCritical {
		t.Fatalf("notifications = %+v, want one critical", got)
	}

	if err := nde.DispositionNcr(ncr.Id, "use-as-is per engineering"); err != nil {
		t.Fatalf("DispositionNcr: %v", err)
	}
	if ncr.Status != StatusResolved || ncr.Disposition == "" {
		t.Fatalf("ncr = %+v, want resolved with disposition", ncr)
	}
	if err := nde.DispositionNcr("missing", ""); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTurnoverReview(t *testing.T) {
	nde, _ := newTestNde()

	log := nde.LogTurnover("J-1", "night", "supervisor1", "two welds left open", []string{"W-7 fit-up"})
	if err := nde.ReviewTurnover(log.Id, "supervisor2"); err != nil {
		t.Fatalf("ReviewTurnover: %v", err)
	}
	if log.ReviewedBy != "supervisor2" || log.ReviewedAt == nil {
		t.Fatalf("log = %+v, want review stamp", log)
	}
	if got := nde.TurnoverLogs("J-1"); len(got) != 1 {
		t.Fatalf("logs = %d, want 1", len(got))
	}
}
