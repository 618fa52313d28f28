package store

import "time"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusResolved   Status = "resolved"
	StatusCancelled  Status = "cancelled"
	StatusOpen       Status = "open"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type NotificationType string

const (
	NotificationTypeDeficiency NotificationType = "deficiency"
	NotificationTypeInspection NotificationType = "inspection"
	NotificationTypeTask       NotificationType = "task"
	NotificationTypeSystem     NotificationType = "system"
)

type NotificationSeverity string

const (
	NotificationSeverityInfo     NotificationSeverity = "info"
	NotificationSeverityWarning  NotificationSeverity = "warning"
	NotificationSeverityCritical NotificationSeverity = "critical"
)

type DocumentType string

const (
	DocumentTypeSpec        DocumentType = "spec"
	DocumentTypeCode        DocumentType = "code"
	DocumentTypeRequirement DocumentType = "requirement"
)

type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "draft"
	DocumentStatusActive   DocumentStatus = "active"
	DocumentStatusArchived DocumentStatus = "archived"
)

// BaseRecord is the shape every store entity shares.
type BaseRecord struct {
	Id        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapSeverityToNotification(severity Severity) NotificationSeverity {
	switch severity {
	case SeverityHigh:
		return NotificationSeverityCritical
	case SeverityMedium:
		return NotificationSeverityWarning
	default:
		return NotificationSeverityInfo
	}
}

func mapPriorityToNotification(priority Priority) NotificationSeverity {
	switch priority {
	case PriorityHigh:
		return NotificationSeverityCritical
	case PriorityMedium:
		return NotificationSeverityWarning
	default:
		return NotificationSeverityInfo
	}
}
