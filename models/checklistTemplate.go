package models

import (
	"context"
	"encoding/json"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"github.com/google/uuid"
)

type ChecklistTemplate struct {
	ID             int    `gorm:"primary_key" json:"id"`
	ProjectId      string `gorm:"index;not null;size:64" json:"project_id"`
	InspectionType string `gorm:"size:100;index;not null" json:"inspection_type" binding:"required"`
	Name           string `gorm:"size:255;not null" json:"name" binding:"required"`
	Items          string `gorm:"type:text" json:"items"`
	RequiredItems  string `gorm:"type:text" json:"required_items"`
}

type NewChecklistTemplate struct {
	InspectionType string   `json:"inspection_type" binding:"required"`
	Name           string   `json:"name" binding:"required"`
	Items          []string `json:"items"`
	RequiredItems  []string `json:"required_items"`
}

func CreateChecklistTemplate(ctx context.Context, input *NewChecklistTemplate) (*ChecklistTemplate, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	items, _ := json.Marshal(input.Items)
	required, _ := json.Marshal(input.RequiredItems)

	template := ChecklistTemplate{
		ProjectId:      projectId,
		InspectionType: input.InspectionType,
		Name:           input.Name,
		Items:          string(items),
		RequiredItems:  string(required),
	}
	if err := db.WithContext(ctx).Create(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}

func GetChecklistTemplates(ctx context.Context) ([]*ChecklistTemplate, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*ChecklistTemplate
	if err := db.WithContext(ctx).Where("project_id = ?", projectId).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// generateChecklistItems expands the first matching template for the
// inspection type into fresh checklist items. No template means no
// checklist.
func generateChecklistItems(ctx context.Context, inspectionType string) []InspectionChecklistItem {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil
	}

	var template ChecklistTemplate
	err = db.WithContext(ctx).
		Where("project_id = ? AND inspection_type = ?", projectId, inspectionType).
		First(&template).Error
	if err != nil {
		return nil
	}

	var descriptions, requiredList []string
	_ = json.Unmarshal([]byte(template.Items), &descriptions)
	_ = json.Unmarshal([]byte(template.RequiredItems), &requiredList)
	required := map[string]bool{}
	for _, item := range requiredList {
		required[item] = true
	}

	items := make([]InspectionChecklistItem, 0, len(descriptions))
	for _, description := range descriptions {
		items = append(items, InspectionChecklistItem{
			Id:          uuid.NewString(),
			Description: description,
			Required:    required[description],
		})
	}
	return items
}
