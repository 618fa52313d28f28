package store

import (
	"fmt"
	"time"
)

type NewInspection struct {
	Title         string
	Type          string
	Priority      Priority
	ScheduledDate time.Time
	Location      string
	Inspector     string
	JobNumber     string
	Prerequisites []string
	Notes         string
}

// ScheduleStore layers scheduling rules over InspectionStore:
// prerequisite gating on creation, status transitions with duration
// tracking, and due/overdue queries.
type ScheduleStore struct {
	inspections   *InspectionStore
	notifications *NotificationStore
	collaboration *CollaborationStore
	broker        *Broker
	now           clock
}

func NewScheduleStore(inspections *InspectionStore, notifications *NotificationStore, collaboration *CollaborationStore, broker *Broker) *ScheduleStore {
	return &ScheduleStore{
		inspections:   inspections,
		notifications: notifications,
		collaboration: collaboration,
		broker:        broker,
		now:           realClock,
	}
}

// Schedule creates a pending inspection. Every prerequisite id must
// name an existing, completed inspection; otherwise nothing is created
// and ErrPrerequisiteNotMet is returned. Scheduling raises a
// notification whose severity follows the priority and logs a
// scheduled activity.
func (s *ScheduleStore) Schedule(input NewInspection) (*Inspection, error) {
	for _, prereqId := range input.Prerequisites {
		prereq, err := s.inspections.GetInspection(prereqId)
		if err != nil || prereq.Status != StatusCompleted {
			return nil, ErrPrerequisiteNotMet
		}
	}

	now := s.now()
	inspection := &Inspection{
		BaseRecord:    BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		Title:         input.Title,
		Type:          input.Type,
		Status:        StatusPending,
		Priority:      input.Priority,
		ScheduledDate: input.ScheduledDate,
		Location:      input.Location,
		Inspector:     input.Inspector,
		JobNumber:     input.JobNumber,
		Checklist:     s.inspections.GenerateChecklist(input.Type),
		Prerequisites: append([]string{}, input.Prerequisites...),
		Notes:         input.Notes,
	}
	s.inspections.appendInspection(inspection)

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeInspection,
		Severity:  mapPriorityToNotification(input.Priority),
		Title:     "New Inspection Scheduled",
		Message:   fmt.Sprintf("%s scheduled for %s (%s)", input.Title, input.ScheduledDate.Format("2006-01-02"), input.Location),
		RelatedId: inspection.Id,
	})

	if s.collaboration != nil {
		s.collaboration.RecordActivity(ActivityInspectionScheduled, "system", "inspection", inspection.Id,
			map[string]string{"action": "scheduled", "location": input.Location})
	}

	return inspection, nil
}

// UpdateStatus transitions the inspection. Moving to in-progress stamps
// StartedAt; completing stamps CompletedAt and records the actual
// duration in minutes, measured from StartedAt when available and from
// creation otherwise. Every transition raises a notification, critical
// when the inspection failed and informational otherwise. A non-empty
// comment is recorded against the inspection as a system comment.
func (s *ScheduleStore) UpdateStatus(inspectionId string, status Status, comment string) error {
	inspection, err := s.inspections.GetInspection(inspectionId)
	if err != nil {
		return err
	}

	s.inspections.mu.Lock()
	oldStatus := inspection.Status
	now := s.now()
	inspection.Status = status
	inspection.UpdatedAt = now

	switch status {
	case StatusInProgress:
		if inspection.StartedAt == nil {
			inspection.StartedAt = &now
		}
	case StatusCompleted:
		inspection.CompletedAt = &now
		from := inspection.CreatedAt
		if inspection.StartedAt != nil {
			from = *inspection.StartedAt
		}
		inspection.ActualDuration = int(now.Sub(from).Minutes())
	}
	title := inspection.Title
	s.inspections.mu.Unlock()

	s.broker.Publish(Event{Property: "inspections", EntityId: inspectionId})

	if comment != "" && s.collaboration != nil {
		s.collaboration.AddComment("inspection", inspectionId, "system", comment)
	}

	severity := NotificationSeverityInfo
	if status == StatusFailed {
		severity = NotificationSeverityCritical
	}
	s.notifications.Add(NewNotification{
		Type:      NotificationTypeInspection,
		Severity:  severity,
		Title:     "Inspection Status Updated",
		Message:   fmt.Sprintf("%s status changed from %s to %s", title, oldStatus, status),
		RelatedId: inspectionId,
	})
	return nil
}

// Reschedule moves a pending inspection to a new date.
func (s *ScheduleStore) Reschedule(inspectionId string, date time.Time) error {
	inspection, err := s.inspections.GetInspection(inspectionId)
	if err != nil {
		return err
	}
	s.inspections.mu.Lock()
	inspection.ScheduledDate = date
	inspection.UpdatedAt = s.now()
	s.inspections.mu.Unlock()

	s.broker.Publish(Event{Property: "inspections", EntityId: inspectionId})
	return nil
}

// Due returns pending inspections scheduled within the next N hours.
func (s *ScheduleStore) Due(withinHours int) []*Inspection {
	cutoff := s.now().Add(time.Duration(withinHours) * time.Hour)
	var out []*Inspection
	for _, inspection := range s.inspections.Inspections() {
		if inspection.Status == StatusPending && !inspection.ScheduledDate.After(cutoff) {
			out = append(out, inspection)
		}
	}
	return out
}

// ByDateRange returns inspections scheduled inside [start, end], both
// ends inclusive.
func (s *ScheduleStore) ByDateRange(start, end time.Time) []*Inspection {
	var out []*Inspection
	for _, inspection := range s.inspections.Inspections() {
		if !inspection.ScheduledDate.Before(start) && !inspection.ScheduledDate.After(end) {
			out = append(out, inspection)
		}
	}
	return out
}

// Overdue returns pending inspections whose scheduled date has passed.
func (s *ScheduleStore) Overdue() []*Inspection {
	now := s.now()
	var out []*Inspection
	for _, inspection := range s.inspections.Inspections() {
		if inspection.Status == StatusPending && inspection.ScheduledDate.Before(now) {
			out = append(out, inspection)
		}
	}
	return out
}
