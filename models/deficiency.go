package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

const (
	DeficiencyStatusOpen       = "open"
	DeficiencyStatusInProgress = "in-progress"
	DeficiencyStatusResolved   = "resolved"
)

type Deficiency struct {
	ID           int        `gorm:"primary_key" json:"id"`
	ProjectId    string     `gorm:"index;not null;size:64" json:"project_id"`
	Title        string     `gorm:"size:255;not null" json:"title" binding:"required"`
	Description  string     `gorm:"type:text" json:"description"`
	Severity     string     `gorm:"size:20;index;not null" json:"severity" binding:"required"`
	Status       string     `gorm:"size:20;index;not null;default:'open'" json:"status"`
	Location     string     `gorm:"size:255" json:"location"`
	JobNumber    string     `gorm:"size:100;index" json:"job_number"`
	InspectionId int        `gorm:"index" json:"inspection_id"`
	AssignedTo   string     `gorm:"size:100;index" json:"assigned_to"`
	ResolvedAt   *time.Time `json:"resolved_at"`
	Resolution   string     `gorm:"type:text" json:"resolution"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDeficiency struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	Severity     string `json:"severity" binding:"required"`
	Location     string `json:"location"`
	JobNumber    string `json:"job_number"`
	InspectionId int    `json:"inspection_id"`
	AssignedTo   string `json:"assigned_to"`
}

func notificationSeverityFor(severity string) string {
	switch severity {
	case "high":
		return "critical"
	case "medium":
		return "warning"
	}
	return "info"
}

func CreateDeficiency(ctx context.Context, input *NewDeficiency) (*Deficiency, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	if input.InspectionId > 0 {
		if err := utils.ValidateResourceId[Inspection](ctx, projectId, input.InspectionId); err != nil {
			return nil, err
		}
	}

	deficiency := Deficiency{
		ProjectId:    projectId,
		Title:        input.Title,
		Description:  input.Description,
		Severity:     input.Severity,
		Status:       DeficiencyStatusOpen,
		Location:     input.Location,
		JobNumber:    input.JobNumber,
		InspectionId: input.InspectionId,
		AssignedTo:   input.AssignedTo,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deficiency).Error; err != nil {
			return err
		}
		if err := createHistory(tx, "C", deficiency.ID, "deficiency", nil, deficiency, "Deficiency "+deficiency.Title+" recorded."); err != nil {
			return err
		}
		if err := createNotification(tx, &Notification{
			Type:          "deficiency",
			Severity:      notificationSeverityFor(input.Severity),
			Title:         "New Deficiency",
			Message:       fmt.Sprintf("%s at %s", input.Title, input.Location),
			ReferenceID:   deficiency.ID,
			ReferenceType: "deficiency",
		}); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "deficiencies", deficiency.ID, ChangeFeedCreate, deficiency)
	})
	if err != nil {
		return nil, err
	}

	_ = utils.RemoveRedis[Deficiency](deficiency.ID, projectId)
	return &deficiency, nil
}

func ResolveDeficiency(ctx context.Context, id int, resolution string) (*Deficiency, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	deficiency, err := utils.FetchModel[Deficiency](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	before := *deficiency

	now := time.Now()
	deficiency.Status = DeficiencyStatusResolved
	deficiency.Resolution = resolution
	deficiency.ResolvedAt = &now

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(deficiency).Error; err != nil {
			return err
		}
		if err := createHistory(tx, "U", deficiency.ID, "deficiency", before, deficiency, "Deficiency "+deficiency.Title+" resolved."); err != nil {
			return err
		}
		if err := createNotification(tx, &Notification{
			Type:          "deficiency",
			Severity:      "info",
			Title:         "Deficiency Resolved",
			Message:       deficiency.Title,
			ReferenceID:   deficiency.ID,
			ReferenceType: "deficiency",
		}); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "deficiencies", deficiency.ID, ChangeFeedUpdate, deficiency)
	})
	if err != nil {
		return nil, err
	}

	_ = utils.RemoveRedis[Deficiency](deficiency.ID, projectId)
	return deficiency, nil
}

// AppendAnalysisToDeficiency attaches a photo's defect summary to the
// deficiency description, matching what the reactive store does.
func AppendAnalysisToDeficiency(ctx context.Context, id int, summary string) (*Deficiency, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	deficiency, err := utils.FetchModel[Deficiency](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return deficiency, nil
	}

	deficiency.Description = deficiency.Description + "\n" + summary
	if err := db.WithContext(ctx).Save(deficiency).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Deficiency](deficiency.ID, projectId)
	return deficiency, nil
}

func GetDeficiency(ctx context.Context, id int) (*Deficiency, error) {
	return GetResource[Deficiency](ctx, id)
}

func GetDeficiencies(ctx context.Context, status *string, severity *string, jobNumber *string) ([]*Deficiency, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Deficiency
	dbCtx := db.WithContext(ctx).Where("project_id = ?", projectId)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if severity != nil && *severity != "" {
		dbCtx = dbCtx.Where("severity = ?", severity)
	}
	if jobNumber != nil && *jobNumber != "" {
		dbCtx = dbCtx.Where("job_number = ?", jobNumber)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
