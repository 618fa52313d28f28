package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type ChecklistItem struct {
	Id          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Required    bool       `json:"required"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ChecklistTemplate struct {
	BaseRecord
	InspectionType string   `json:"inspection_type"`
	Name           string   `json:"name"`
	Items          []string `json:"items"`
	RequiredItems  []string `json:"required_items,omitempty"`
}

type Inspection struct {
	BaseRecord
	Title          string          `json:"title"`
	Type           string          `json:"type"`
	Status         Status          `json:"status"`
	Priority       Priority        `json:"priority"`
	ScheduledDate  time.Time       `json:"scheduled_date"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Location       string          `json:"location"`
	Inspector      string          `json:"inspector"`
	JobNumber      string          `json:"job_number"`
	Checklist      []ChecklistItem `json:"checklist"`
	Prerequisites  []string        `json:"prerequisites"`
	ActualDuration int             `json:"actual_duration,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

type Deficiency struct {
	BaseRecord
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Severity     Severity   `json:"severity"`
	Status       Status     `json:"status"`
	Location     string     `json:"location"`
	JobNumber    string     `json:"job_number"`
	InspectionId string     `json:"inspection_id,omitempty"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
	PhotoIds     []string   `json:"photo_ids"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Resolution   string     `json:"resolution,omitempty"`
}

type NewDeficiency struct {
	Title        string
	Description  string
	Severity     Severity
	Location     string
	JobNumber    string
	InspectionId string
	AssignedTo   string
	PhotoIds     []string
}

// InspectionStore owns inspections, their checklists, deficiencies,
// and the checklist templates used to generate checklists per
// inspection type. Scheduling, prerequisite checks, and status
// transitions live in ScheduleStore.
type InspectionStore struct {
	mu            sync.Mutex
	inspections   []*Inspection
	deficiencies  []*Deficiency
	templates     []*ChecklistTemplate
	notifications *NotificationStore
	collaboration *CollaborationStore
	media         *MediaStore
	broker        *Broker
	log           *logrus.Logger
	now           clock
}

// NewInspectionStore wires the collaboration store for activity and
// system-comment side effects and the media store for resolving photo
// analyses when deficiencies are created with photos. Both may be nil.
func NewInspectionStore(notifications *NotificationStore, collaboration *CollaborationStore, media *MediaStore, broker *Broker) *InspectionStore {
	return &InspectionStore{
		notifications: notifications,
		collaboration: collaboration,
		media:         media,
		broker:        broker,
		log:           logrus.StandardLogger(),
		now:           realClock,
	}
}

func (s *InspectionStore) findInspectionLocked(id string) *Inspection {
	for _, inspection := range s.inspections {
		if inspection.Id == id {
			return inspection
		}
	}
	return nil
}

func (s *InspectionStore) findDeficiencyLocked(id string) *Deficiency {
	for _, deficiency := range s.deficiencies {
		if deficiency.Id == id {
			return deficiency
		}
	}
	return nil
}

func (s *InspectionStore) GetInspection(id string) (*Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inspection := s.findInspectionLocked(id); inspection != nil {
		return inspection, nil
	}
	return nil, ErrNotFound
}

func (s *InspectionStore) Inspections() []*Inspection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Inspection{}, s.inspections...)
}

func (s *InspectionStore) InspectionsByJob(jobNumber string) []*Inspection {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Inspection
	for _, inspection := range s.inspections {
		if inspection.JobNumber == jobNumber {
			out = append(out, inspection)
		}
	}
	return out
}

// CompleteChecklistItem marks the item done and stamps who and when.
func (s *InspectionStore) CompleteChecklistItem(inspectionId, itemId, completedBy string) error {
	s.mu.Lock()
	inspection := s.findInspectionLocked(inspectionId)
	if inspection == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	found := false
	for i := range inspection.Checklist {
		if inspection.Checklist[i].Id == itemId {
			now := s.now()
			inspection.Checklist[i].Completed = true
			inspection.Checklist[i].CompletedBy = completedBy
			inspection.Checklist[i].CompletedAt = &now
			inspection.UpdatedAt = now
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrNotFound
	}
	s.broker.Publish(Event{Property: "inspections", EntityId: inspectionId})
	return nil
}

// ChecklistProgress reports completed and total item counts.
func (s *InspectionStore) ChecklistProgress(inspectionId string) (completed, total int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inspection := s.findInspectionLocked(inspectionId)
	if inspection == nil {
		return 0, 0, ErrNotFound
	}
	for _, item := range inspection.Checklist {
		if item.Completed {
			completed++
		}
	}
	return completed, len(inspection.Checklist), nil
}

// AddTemplate registers a checklist template for an inspection type.
func (s *InspectionStore) AddTemplate(inspectionType, name string, items []string, requiredItems []string) *ChecklistTemplate {
	now := s.now()
	template := &ChecklistTemplate{
		BaseRecord:     BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		InspectionType: inspectionType,
		Name:           name,
		Items:          append([]string{}, items...),
		RequiredItems:  append([]string{}, requiredItems...),
	}
	s.mu.Lock()
	s.templates = append(s.templates, template)
	s.mu.Unlock()
	return template
}

func (s *InspectionStore) Templates() []*ChecklistTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ChecklistTemplate{}, s.templates...)
}

// GenerateChecklist builds checklist items from the first template
// matching the inspection type. Unknown types get an empty checklist.
func (s *InspectionStore) GenerateChecklist(inspectionType string) []ChecklistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, template := range s.templates {
		if template.InspectionType != inspectionType {
			continue
		}
		required := map[string]bool{}
		for _, item := range template.RequiredItems {
			required[item] = true
		}
		items := make([]ChecklistItem, 0, len(template.Items))
		for _, description := range template.Items {
			items = append(items, ChecklistItem{
				Id:          newId(),
				Description: description,
				Required:    required[description],
			})
		}
		return items
	}
	return nil
}

// AddDeficiency records an open deficiency, raises a notification
// whose severity follows the deficiency severity, and logs a created
// activity. When photo ids are supplied the store waits for each
// photo's analysis and appends the analysis summary to the
// description; a photo that cannot be resolved is logged and skipped.
func (s *InspectionStore) AddDeficiency(input NewDeficiency) *Deficiency {
	now := s.now()
	deficiency := &Deficiency{
		BaseRecord:   BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		Title:        input.Title,
		Description:  input.Description,
		Severity:     input.Severity,
		Status:       StatusOpen,
		Location:     input.Location,
		JobNumber:    input.JobNumber,
		InspectionId: input.InspectionId,
		AssignedTo:   input.AssignedTo,
		PhotoIds:     append([]string{}, input.PhotoIds...),
	}

	if s.media != nil {
		for _, photoId := range input.PhotoIds {
			photo, err := s.media.WaitForAnalysis(photoId)
			if err != nil {
				s.log.WithFields(logrus.Fields{
					"photo_id":      photoId,
					"deficiency_id": deficiency.Id,
				}).WithError(err).Error("photo analysis failed")
				continue
			}
			if summary := AnalysisSummaryText(photo.Analysis); summary != "" {
				deficiency.Description = deficiency.Description + "\n" + summary
			}
		}
	}

	s.mu.Lock()
	s.deficiencies = append(s.deficiencies, deficiency)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "deficiencies", EntityId: deficiency.Id})

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeDeficiency,
		Severity:  mapSeverityToNotification(input.Severity),
		Title:     "New Deficiency",
		Message:   fmt.Sprintf("%s at %s", input.Title, input.Location),
		RelatedId: deficiency.Id,
	})

	if s.collaboration != nil {
		s.collaboration.RecordActivity(ActivityDeficiencyCreated, "system", "deficiency", deficiency.Id,
			map[string]string{"action": "created", "severity": string(input.Severity)})
	}

	return deficiency
}

func (s *InspectionStore) GetDeficiency(id string) (*Deficiency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deficiency := s.findDeficiencyLocked(id); deficiency != nil {
		return deficiency, nil
	}
	return nil, ErrNotFound
}

func (s *InspectionStore) Deficiencies() []*Deficiency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Deficiency{}, s.deficiencies...)
}

func (s *InspectionStore) OpenDeficiencies() []*Deficiency {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Deficiency
	for _, deficiency := range s.deficiencies {
		if deficiency.Status != StatusResolved {
			out = append(out, deficiency)
		}
	}
	return out
}

func (s *InspectionStore) DeficienciesByJob(jobNumber string) []*Deficiency {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Deficiency
	for _, deficiency := range s.deficiencies {
		if deficiency.JobNumber == jobNumber {
			out = append(out, deficiency)
		}
	}
	return out
}

// ResolveDeficiency closes the deficiency with a resolution note.
func (s *InspectionStore) ResolveDeficiency(id, resolution string) error {
	s.mu.Lock()
	deficiency := s.findDeficiencyLocked(id)
	if deficiency == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	now := s.now()
	deficiency.Status = StatusResolved
	deficiency.Resolution = resolution
	deficiency.ResolvedAt = &now
	deficiency.UpdatedAt = now
	title := deficiency.Title
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "deficiencies", EntityId: id})

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeDeficiency,
		Severity:  NotificationSeverityInfo,
		Title:     "Deficiency Resolved",
		Message:   title,
		RelatedId: id,
	})
	return nil
}

// UpdateDeficiencyStatus moves the deficiency to the given status. A
// missing id is ignored. A non-empty comment is recorded against the
// deficiency as a system comment.
func (s *InspectionStore) UpdateDeficiencyStatus(id string, status Status, comment string) {
	s.mu.Lock()
	deficiency := s.findDeficiencyLocked(id)
	if deficiency == nil {
		s.mu.Unlock()
		return
	}
	deficiency.Status = status
	deficiency.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "deficiencies", EntityId: id})

	if comment != "" && s.collaboration != nil {
		s.collaboration.AddComment("deficiency", id, "system", comment)
	}
}

// AttachAnalyzedPhoto links a photo to the deficiency and, when the
// photo carries analysis defects, appends the analysis summary to the
// deficiency description.
func (s *InspectionStore) AttachAnalyzedPhoto(deficiencyId string, photo *PhotoAttachment) error {
	summary := AnalysisSummaryText(photo.Analysis)

	s.mu.Lock()
	deficiency := s.findDeficiencyLocked(deficiencyId)
	if deficiency == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	deficiency.PhotoIds = append(deficiency.PhotoIds, photo.Id)
	if summary != "" {
		deficiency.Description = deficiency.Description + "\n" + summary
	}
	deficiency.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "deficiencies", EntityId: deficiencyId})
	return nil
}

// appendInspection is used by ScheduleStore, which owns creation.
func (s *InspectionStore) appendInspection(inspection *Inspection) {
	s.mu.Lock()
	s.inspections = append(s.inspections, inspection)
	s.mu.Unlock()
	s.broker.Publish(Event{Property: "inspections", EntityId: inspection.Id})
}
