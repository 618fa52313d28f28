package store

import (
	"sync"
	"time"
)

type NdeRequest struct {
	BaseRecord
	JobNumber   string `json:"job_number"`
	WeldId      string `json:"weld_id"`
	Method      string `json:"method"`
	RequestedBy string `json:"requested_by"`
	Status      Status `json:"status"`
}

type NdeReport struct {
	BaseRecord
	RequestId  string     `json:"request_id"`
	Result     string     `json:"result"`
	Technician string     `json:"technician"`
	Verified   bool       `json:"verified"`
	VerifiedBy string     `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

type WeldResult struct {
	WeldId   string    `json:"weld_id"`
	Method   string    `json:"method"`
	Result   string    `json:"result"`
	ReportId string    `json:"report_id"`
	At       time.Time `json:"at"`
}

type WeldMap struct {
	BaseRecord
	JobNumber string       `json:"job_number"`
	Drawing   string       `json:"drawing"`
	Results   []WeldResult `json:"results"`
}

type Ncr struct {
	BaseRecord
	JobNumber   string   `json:"job_number"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	RaisedBy    string   `json:"raised_by"`
	Status      Status   `json:"status"`
	Disposition string   `json:"disposition,omitempty"`
}

type TurnoverLog struct {
	BaseRecord
	JobNumber  string     `json:"job_number"`
	Shift      string     `json:"shift"`
	Supervisor string     `json:"supervisor"`
	Summary    string     `json:"summary"`
	OpenItems  []string   `json:"open_items"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// NdeStore covers non-destructive examination tracking plus the shift
// supervisor workflows that hang off it: weld maps accumulate verified
// results, NCRs track nonconformances, and turnover logs hand work
// between shifts.
type NdeStore struct {
	mu            sync.Mutex
	requests      []*NdeRequest
	reports       []*NdeReport
	weldMaps      []*WeldMap
	ncrs          []*Ncr
	turnoverLogs  []*TurnoverLog
	notifications *NotificationStore
	broker        *Broker
	now           clock
}

func NewNdeStore(notifications *NotificationStore, broker *Broker) *NdeStore {
	return &NdeStore{
		notifications: notifications,
		broker:        broker,
		now:           realClock,
	}
}

// RequestExamination queues an NDE request in the pending state.
func (s *NdeStore) RequestExamination(jobNumber, weldId, method, requestedBy string) *NdeRequest {
	now := s.now()
	request := &NdeRequest{
		BaseRecord:  BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		JobNumber:   jobNumber,
		WeldId:      weldId,
		Method:      method,
		RequestedBy: requestedBy,
		Status:      StatusPending,
	}
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "ndeRequests", EntityId: request.Id})
	return request
}

// FileReport attaches an unverified report to a request and marks the
// request completed.
func (s *NdeStore) FileReport(requestId, result, technician string) (*NdeReport, error) {
	s.mu.Lock()
	var request *NdeRequest
	for _, r := range s.requests {
		if r.Id == requestId {
			request = r
			break
		}
	}
	if request == nil {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	now := s.now()
	report := &NdeReport{
		BaseRecord: BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		RequestId:  requestId,
		Result:     result,
		Technician: technician,
	}
	request.Status = StatusCompleted
	request.UpdatedAt = now
	s.reports = append(s.reports, report)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "ndeReports", EntityId: report.Id})
	return report, nil
}

// VerifyReport marks a report verified and records the result on the
// weld map for the request's job. Rejected results raise a warning.
func (s *NdeStore) VerifyReport(reportId, verifiedBy string) error {
	s.mu.Lock()
	var report *NdeReport
	for _, r := range s.reports {
		if r.Id == reportId {
			report = r
			break
		}
	}
	if report == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	now := s.now()
	report.Verified = true
	report.VerifiedBy = verifiedBy
	report.VerifiedAt = &now
	report.UpdatedAt = now

	var request *NdeRequest
	for _, r := range s.requests {
		if r.Id == report.RequestId {
			request = r
			break
		}
	}
	if request != nil {
		s.recordWeldResultLocked(request, report)
	}
	result := report.Result
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "ndeReports", EntityId: reportId})

	if result == "reject" && request != nil {
		s.notifications.Add(NewNotification{
			Type:      NotificationTypeInspection,
			Severity:  NotificationSeverityWarning,
			Title:     "NDE Rejection",
			Message:   "Weld " + request.WeldId + " rejected by " + request.Method,
			RelatedId: reportId,
		})
	}
	return nil
}

func (s *NdeStore) recordWeldResultLocked(request *NdeRequest, report *NdeReport) {
	var weldMap *WeldMap
	for _, m := range s.weldMaps {
		if m.JobNumber == request.JobNumber {
			weldMap = m
			break
		}
	}
	now := s.now()
	if weldMap == nil {
		weldMap = &WeldMap{
			BaseRecord: BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
			JobNumber:  request.JobNumber,
		}
		s.weldMaps = append(s.weldMaps, weldMap)
	}
	weldMap.Results = append(weldMap.Results, WeldResult{
		WeldId:   request.WeldId,
		Method:   request.Method,
		Result:   report.Result,
		ReportId: report.Id,
		At:       now,
	})
	weldMap.UpdatedAt = now
}

func (s *NdeStore) Requests() []*NdeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*NdeRequest{}, s.requests...)
}

func (s *NdeStore) Reports() []*NdeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*NdeReport{}, s.reports...)
}

func (s *NdeStore) WeldMapByJob(jobNumber string) (*WeldMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.weldMaps {
		if m.JobNumber == jobNumber {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

// RaiseNcr opens a nonconformance report and raises a notification
// matching its severity.
func (s *NdeStore) RaiseNcr(jobNumber, description string, severity Severity, raisedBy string) *Ncr {
	now := s.now()
	ncr := &Ncr{
		BaseRecord:  BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		JobNumber:   jobNumber,
		Description: description,
		Severity:    severity,
		RaisedBy:    raisedBy,
		Status:      StatusOpen,
	}
	s.mu.Lock()
	s.ncrs = append(s.ncrs, ncr)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "ncrs", EntityId: ncr.Id})

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeSystem,
		Severity:  mapSeverityToNotification(severity),
		Title:     "NCR Raised",
		Message:   description,
		RelatedId: ncr.Id,
	})
	return ncr
}

// DispositionNcr closes an NCR with its disposition.
func (s *NdeStore) DispositionNcr(ncrId, disposition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ncr := range s.ncrs {
		if ncr.Id == ncrId {
			ncr.Disposition = disposition
			ncr.Status = StatusResolved
			ncr.UpdatedAt = s.now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *NdeStore) Ncrs() []*Ncr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Ncr{}, s.ncrs...)
}

// LogTurnover records a shift handover.
func (s *NdeStore) LogTurnover(jobNumber, shift, supervisor, summary string, openItems []string) *TurnoverLog {
	now := s.now()
	log := &TurnoverLog{
		BaseRecord: BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		JobNumber:  jobNumber,
		Shift:      shift,
		Supervisor: supervisor,
		Summary:    summary,
		OpenItems:  append([]string{}, openItems...),
	}
	s.mu.Lock()
	s.turnoverLogs = append(s.turnoverLogs, log)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "turnoverLogs", EntityId: log.Id})
	return log
}

// ReviewTurnover stamps the incoming supervisor's review.
func (s *NdeStore) ReviewTurnover(logId, reviewedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, log := range s.turnoverLogs {
		if log.Id == logId {
			now := s.now()
			log.ReviewedBy = reviewedBy
			log.ReviewedAt = &now
			log.UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}

func (s *NdeStore) TurnoverLogs(jobNumber string) []*TurnoverLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*TurnoverLog
	for _, log := range s.turnoverLogs {
		if log.JobNumber == jobNumber {
			out = append(out, log)
		}
	}
	return out
}
