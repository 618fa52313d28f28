package models

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
)

// Default checklist templates seeded for every new project.
var defaultTemplates = []NewChecklistTemplate{
	{
		InspectionType: "structural",
		Name:           "Structural Inspection",
		Items: []string{
			"Verify formwork dimensions",
			"Check rebar placement and spacing",
			"Confirm concrete mix design",
			"Inspect embedded items",
		},
		RequiredItems: []string{
			"Verify formwork dimensions",
			"Check rebar placement and spacing",
		},
	},
	{
		InspectionType: "electrical",
		Name:           "Electrical Rough-In",
		Items: []string{
			"Verify conduit routing",
			"Check box placement and support",
			"Confirm grounding continuity",
		},
		RequiredItems: []string{
			"Confirm grounding continuity",
		},
	},
	{
		InspectionType: "welding",
		Name:           "Welding Inspection",
		Items: []string{
			"Verify welder qualification",
			"Check fit-up and joint preparation",
			"Confirm filler material certification",
			"Visual examination of completed welds",
		},
		RequiredItems: []string{
			"Verify welder qualification",
			"Visual examination of completed welds",
		},
	},
}

func CreateDefaultTemplates(tx *gorm.DB, ctx context.Context, projectId string) ([]ChecklistTemplate, error) {

	var templates []ChecklistTemplate
	for _, seed := range defaultTemplates {
		items, _ := json.Marshal(seed.Items)
		required, _ := json.Marshal(seed.RequiredItems)
		templates = append(templates, ChecklistTemplate{
			ProjectId:      projectId,
			InspectionType: seed.InspectionType,
			Name:           seed.Name,
			Items:          string(items),
			RequiredItems:  string(required),
		})
	}

	if err := tx.WithContext(ctx).Create(&templates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return templates, nil
}

func CreateDefaultDocuments(tx *gorm.DB, ctx context.Context, projectId string) ([]Document, error) {

	documents := []Document{
		{
			ProjectId: projectId,
			Title:     "Foundation Specifications",
			Type:      "specification",
			Content:   "Concrete strength, reinforcement, and tolerance requirements for foundation work.",
			Version:   1,
			Status:    DocumentStatusActive,
			Author:    "system",
		},
		{
			ProjectId: projectId,
			Title:     "Building Code 2024",
			Type:      "standard",
			Content:   "Adopted building code edition governing this project.",
			Version:   1,
			Status:    DocumentStatusActive,
			Author:    "system",
		},
	}

	if err := tx.WithContext(ctx).Create(&documents).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, document := range documents {
		revision := DocumentRevision{
			DocumentId: document.ID,
			Version:    1,
			Author:     "system",
			Changes:    "Initial creation",
		}
		if err := tx.WithContext(ctx).Create(&revision).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	return documents, nil
}
