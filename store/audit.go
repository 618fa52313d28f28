package store

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type AuditFinding struct {
	Id                  string   `json:"id"`
	Description         string   `json:"description"`
	Severity            Severity `json:"severity"`
	EvidenceAttachments []string `json:"evidence_attachments"`
}

type CorrectiveAction struct {
	Id                 string     `json:"id"`
	Description        string     `json:"description"`
	PreventiveMeasures []string   `json:"preventive_measures"`
	DueDate            time.Time  `json:"due_date"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
}

type StaffInstruction struct {
	BaseRecord
	Subject                string   `json:"subject" validate:"required"`
	Body                   string   `json:"body"`
	CompetencyRequirements []string `json:"competency_requirements" validate:"required,min=1"`
	ReferencedStandards    []string `json:"referenced_standards" validate:"required,min=1"`
	IssuedBy               string   `json:"issued_by"`
	Acknowledgements       []string `json:"acknowledgements"`
}

type QualityMetrics struct {
	WeldAcceptanceRate    float64 `json:"weld_acceptance_rate"`
	DocumentationScore    float64 `json:"documentation_score"`
	ChecklistCompletion   float64 `json:"checklist_completion"`
	DeficiencyClosureRate float64 `json:"deficiency_closure_rate"`
}

type PackageAudit struct {
	BaseRecord
	PackageName       string             `json:"package_name" validate:"required"`
	JobNumber         string             `json:"job_number" validate:"required"`
	Auditor           string             `json:"auditor" validate:"required"`
	Findings          []AuditFinding     `json:"findings"`
	CorrectiveActions []CorrectiveAction `json:"corrective_actions"`
	Metrics           QualityMetrics     `json:"metrics"`
	Status            Status             `json:"status"`
}

type ThirdPartyRequest struct {
	BaseRecord
	AuditId     string `json:"audit_id"`
	PackageName string `json:"package_name"`
	JobNumber   string `json:"job_number"`
	Status      Status `json:"status"`
}

// thirdPartyThreshold gates external inspection: every quality metric
// must meet it before a package is queued.
const thirdPartyThreshold = 0.85

// AuditStore covers QC-manager workflows: staff instructions with
// competency requirements, package audits with findings and corrective
// actions, and the third-party inspection queue.
type AuditStore struct {
	mu            sync.Mutex
	instructions  []*StaffInstruction
	audits        []*PackageAudit
	thirdParty    []*ThirdPartyRequest
	validate      *validator.Validate
	notifications *NotificationStore
	broker        *Broker
	now           clock
}

func NewAuditStore(notifications *NotificationStore, broker *Broker) *AuditStore {
	return &AuditStore{
		validate:      validator.New(),
		notifications: notifications,
		broker:        broker,
		now:           realClock,
	}
}

// IssueInstruction validates that competency requirements and
// referenced standards are present before recording the instruction.
func (s *AuditStore) IssueInstruction(instruction StaffInstruction) (*StaffInstruction, error) {
	now := s.now()
	instruction.BaseRecord = BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now}
	if instruction.Acknowledgements == nil {
		instruction.Acknowledgements = []string{}
	}

	if err := s.validate.Struct(instruction); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return nil, &PrecheckError{Field: errs[0].Field(), Reason: "failed " + errs[0].Tag() + " validation"}
		}
		return nil, err
	}

	s.mu.Lock()
	s.instructions = append(s.instructions, &instruction)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "instructions", EntityId: instruction.Id})
	return &instruction, nil
}

// Acknowledge records that a user has read the instruction.
func (s *AuditStore) Acknowledge(instructionId, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, instruction := range s.instructions {
		if instruction.Id != instructionId {
			continue
		}
		for _, ack := range instruction.Acknowledgements {
			if ack == username {
				return nil
			}
		}
		instruction.Acknowledgements = append(instruction.Acknowledgements, username)
		instruction.UpdatedAt = s.now()
		return nil
	}
	return ErrNotFound
}

func (s *AuditStore) Instructions() []*StaffInstruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*StaffInstruction{}, s.instructions...)
}

// RecordAudit validates the audit before storing it: every finding
// needs evidence attachments and every corrective action needs
// preventive measures. Audits whose quality metrics all meet the
// third-party threshold are queued for external inspection.
func (s *AuditStore) RecordAudit(audit PackageAudit) (*PackageAudit, error) {
	now := s.now()
	audit.BaseRecord = BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now}
	audit.Status = StatusOpen

	if err := s.validate.Struct(audit); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return nil, &PrecheckError{Field: errs[0].Field(), Reason: "failed " + errs[0].Tag() + " validation"}
		}
		return nil, err
	}
	for i := range audit.Findings {
		if len(audit.Findings[i].EvidenceAttachments) == 0 {
			return nil, &PrecheckError{Field: "Findings", Reason: "audit findings require evidence attachments"}
		}
		if audit.Findings[i].Id == "" {
			audit.Findings[i].Id = newId()
		}
	}
	for i := range audit.CorrectiveActions {
		if len(audit.CorrectiveActions[i].PreventiveMeasures) == 0 {
			return nil, &PrecheckError{Field: "CorrectiveActions", Reason: "corrective actions require preventive measures"}
		}
		if audit.CorrectiveActions[i].Id == "" {
			audit.CorrectiveActions[i].Id = newId()
		}
	}

	s.mu.Lock()
	s.audits = append(s.audits, &audit)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "audits", EntityId: audit.Id})

	if metricsMeetThreshold(audit.Metrics) {
		s.enqueueThirdParty(&audit)
	}

	return &audit, nil
}

func metricsMeetThreshold(m QualityMetrics) bool {
	return m.WeldAcceptanceRate >= thirdPartyThreshold &&
		m.DocumentationScore >= thirdPartyThreshold &&
		m.ChecklistCompletion >= thirdPartyThreshold &&
		m.DeficiencyClosureRate >= thirdPartyThreshold
}

func (s *AuditStore) enqueueThirdParty(audit *PackageAudit) {
	now := s.now()
	request := &ThirdPartyRequest{
		BaseRecord:  BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		AuditId:     audit.Id,
		PackageName: audit.PackageName,
		JobNumber:   audit.JobNumber,
		Status:      StatusPending,
	}
	s.mu.Lock()
	s.thirdParty = append(s.thirdParty, request)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "thirdParty", EntityId: request.Id})

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeInspection,
		Severity:  NotificationSeverityInfo,
		Title:     "Third-Party Inspection Queued",
		Message:   audit.PackageName + " meets quality thresholds for external inspection",
		RelatedId: request.Id,
	})
}

// CloseAction stamps a corrective action closed.
func (s *AuditStore) CloseAction(auditId, actionId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, audit := range s.audits {
		if audit.Id != auditId {
			continue
		}
		for i := range audit.CorrectiveActions {
			if audit.CorrectiveActions[i].Id == actionId {
				now := s.now()
				audit.CorrectiveActions[i].ClosedAt = &now
				audit.UpdatedAt = now
				return nil
			}
		}
		return ErrNotFound
	}
	return ErrNotFound
}

func (s *AuditStore) Audits() []*PackageAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*PackageAudit{}, s.audits...)
}

func (s *AuditStore) ThirdPartyQueue() []*ThirdPartyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ThirdPartyRequest{}, s.thirdParty...)
}
