package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

const (
	InspectionStatusPending    = "pending"
	InspectionStatusInProgress = "in-progress"
	InspectionStatusCompleted  = "completed"
	InspectionStatusFailed     = "failed"
	InspectionStatusCancelled  = "cancelled"
)

type Inspection struct {
	ID             int        `gorm:"primary_key" json:"id"`
	ProjectId      string     `gorm:"index;not null;size:64" json:"project_id"`
	Title          string     `gorm:"size:255;not null" json:"title" binding:"required"`
	Type           string     `gorm:"size:100" json:"type"`
	Status         string     `gorm:"size:20;index;not null;default:'pending'" json:"status"`
	ScheduledDate  time.Time  `gorm:"index" json:"scheduled_date"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Location       string     `gorm:"size:255" json:"location"`
	Inspector      string     `gorm:"size:100;index" json:"inspector"`
	JobNumber      string     `gorm:"size:100;index" json:"job_number"`
	Checklist      string     `gorm:"type:text" json:"checklist"`
	Prerequisites  string     `gorm:"type:text" json:"prerequisites"`
	ActualDuration int        `json:"actual_duration"`
	Notes          string     `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInspection struct {
	Title         string    `json:"title" binding:"required"`
	Type          string    `json:"type"`
	ScheduledDate time.Time `json:"scheduled_date"`
	Location      string    `json:"location"`
	Inspector     string    `json:"inspector"`
	JobNumber     string    `json:"job_number"`
	Prerequisites []int     `json:"prerequisites"`
	Notes         string    `json:"notes"`
}

type InspectionChecklistItem struct {
	Id          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Required    bool       `json:"required"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (inspection *Inspection) ChecklistItems() []InspectionChecklistItem {
	var items []InspectionChecklistItem
	if inspection.Checklist != "" {
		_ = json.Unmarshal([]byte(inspection.Checklist), &items)
	}
	return items
}

func (inspection *Inspection) PrerequisiteIds() []int {
	var ids []int
	if inspection.Prerequisites != "" {
		_ = json.Unmarshal([]byte(inspection.Prerequisites), &ids)
	}
	return ids
}

// CreateInspection refuses to create when any prerequisite is not a
// completed inspection on the same project.
func CreateInspection(ctx context.Context, input *NewInspection) (*Inspection, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	if len(input.Prerequisites) > 0 {
		var count int64
		err := db.WithContext(ctx).Model(&Inspection{}).
			Where("project_id = ?", projectId).
			Where("id IN ? AND status = ?", input.Prerequisites, InspectionStatusCompleted).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count != int64(len(utils.UniqueSlice(input.Prerequisites))) {
			return nil, errors.New("prerequisites must be completed before scheduling this inspection")
		}
	}

	checklist, _ := json.Marshal(generateChecklistItems(ctx, input.Type))
	prereqs, _ := json.Marshal(input.Prerequisites)

	inspection := Inspection{
		ProjectId:     projectId,
		Title:         input.Title,
		Type:          input.Type,
		Status:        InspectionStatusPending,
		ScheduledDate: input.ScheduledDate,
		Location:      input.Location,
		Inspector:     input.Inspector,
		JobNumber:     input.JobNumber,
		Checklist:     string(checklist),
		Prerequisites: string(prereqs),
		Notes:         input.Notes,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inspection).Error; err != nil {
			return err
		}
		if err := createHistory(tx, "C", inspection.ID, "inspection", nil, inspection, "Inspection "+inspection.Title+" scheduled."); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "inspections", inspection.ID, ChangeFeedCreate, inspection)
	})
	if err != nil {
		return nil, err
	}
	return &inspection, nil
}

// UpdateInspectionStatus transitions the inspection, stamping StartedAt
// on in-progress, CompletedAt and the actual duration on completion,
// and raising a critical notification on failure.
func UpdateInspectionStatus(ctx context.Context, id int, status string) (*Inspection, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	inspection, err := utils.FetchModel[Inspection](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	before := *inspection
	oldStatus := inspection.Status

	now := time.Now()
	inspection.Status = status
	switch status {
	case InspectionStatusInProgress:
		if inspection.StartedAt == nil {
			inspection.StartedAt = &now
		}
	case InspectionStatusCompleted:
		inspection.CompletedAt = &now
		from := inspection.CreatedAt
		if inspection.StartedAt != nil {
			from = *inspection.StartedAt
		}
		inspection.ActualDuration = int(now.Sub(from).Minutes())
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(inspection).Error; err != nil {
			return err
		}
		message := fmt.Sprintf("%s status changed from %s to %s", inspection.Title, oldStatus, status)
		if err := createHistory(tx, "U", inspection.ID, "inspection", before, inspection, message); err != nil {
			return err
		}
		if status == InspectionStatusFailed {
			if err := createNotification(tx, &Notification{
				Type:        "inspection",
				Severity:    "critical",
				Title:       "Inspection Failed",
				Message:     message,
				ReferenceID: inspection.ID,
			}); err != nil {
				return err
			}
		}
		return enqueueChangeFeed(tx, "inspections", inspection.ID, ChangeFeedUpdate, inspection)
	})
	if err != nil {
		return nil, err
	}
	return inspection, nil
}

// CompleteInspectionChecklistItem marks one checklist item done.
func CompleteInspectionChecklistItem(ctx context.Context, id int, itemId string) (*Inspection, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	_, userName, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	inspection, err := utils.FetchModel[Inspection](ctx, projectId, id)
	if err != nil {
		return nil, err
	}

	items := inspection.ChecklistItems()
	found := false
	now := time.Now()
	for i := range items {
		if items[i].Id == itemId {
			items[i].Completed = true
			items[i].CompletedBy = userName
			items[i].CompletedAt = &now
			found = true
			break
		}
	}
	if !found {
		return nil, utils.ErrorRecordNotFound
	}

	checklist, _ := json.Marshal(items)
	inspection.Checklist = string(checklist)
	if err := db.WithContext(ctx).Save(inspection).Error; err != nil {
		return nil, err
	}
	return inspection, nil
}

func GetInspection(ctx context.Context, id int) (*Inspection, error) {
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Inspection](ctx, projectId, id)
}

func GetInspections(ctx context.Context, status *string, jobNumber *string) ([]*Inspection, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Inspection
	dbCtx := db.WithContext(ctx).Where("project_id = ?", projectId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if jobNumber != nil && *jobNumber != "" {
		dbCtx = dbCtx.Where("job_number = ?", jobNumber)
	}
	if err := dbCtx.Order("scheduled_date").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetDueInspections returns pending inspections scheduled within the
// next N hours, including any already past due.
func GetDueInspections(ctx context.Context, withinHours int) ([]*Inspection, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Inspection
	cutoff := time.Now().Add(time.Duration(withinHours) * time.Hour)
	err = db.WithContext(ctx).
		Where("project_id = ?", projectId).
		Where("status = ? AND scheduled_date <= ?", InspectionStatusPending, cutoff).
		Order("scheduled_date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetOverdueInspections(ctx context.Context) ([]*Inspection, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Inspection
	err = db.WithContext(ctx).
		Where("project_id = ?", projectId).
		Where("status = ? AND scheduled_date < ?", InspectionStatusPending, time.Now()).
		Order("scheduled_date").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
