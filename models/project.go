package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

// Project is the tenancy root. Every scoped table carries its id.
type Project struct {
	ID          string    `gorm:"primary_key;size:64" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Client      string    `gorm:"size:255" json:"client"`
	Location    string    `gorm:"size:255" json:"location"`
	JobNumbers  string    `gorm:"type:text" json:"job_numbers"`
	Timezone    string    `gorm:"size:64" json:"timezone"`
	IsActive    *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	ID         string `json:"id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Client     string `json:"client"`
	Location   string `json:"location"`
	JobNumbers string `json:"job_numbers"`
	Timezone   string `json:"timezone"`
}

func CreateProject(ctx context.Context, input *NewProject) (*Project, error) {

	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Project{}).Where("id = ?", input.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate project id")
	}

	project := Project{
		ID:         input.ID,
		Name:       input.Name,
		Client:     input.Client,
		Location:   input.Location,
		JobNumbers: input.JobNumbers,
		Timezone:   input.Timezone,
		IsActive:   utils.NewTrue(),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		if _, err := CreateDefaultTemplates(tx, ctx, project.ID); err != nil {
			return err
		}
		if _, err := CreateDefaultDocuments(tx, ctx, project.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func GetProject(ctx context.Context, id string) (*Project, error) {

	db := config.GetDB()
	var result Project
	if err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func GetProjects(ctx context.Context) ([]*Project, error) {

	db := config.GetDB()
	var results []*Project
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
