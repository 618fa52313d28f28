package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ProjectId     string    `gorm:"index;not null" json:"project_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type" binding:"required"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// createHistory writes an audit row inside the caller's transaction.
// Actor identity comes from the transaction context.
func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	projectId, ok := utils.GetProjectIdFromContext(ctx)
	if !ok || projectId == "" {
		return errors.New("project id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user name is required")
	}

	history := History{
		ProjectId:     projectId,
		ActionType:    actionType,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		ReferenceID:   referenceId,
		ReferenceType: referenceType,
		UserId:        userId,
		UserName:      userName,
	}
	return tx.Create(&history).Error
}

func GetHistories(ctx context.Context, referenceId int, referenceType string) ([]*History, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*History
	err = db.WithContext(ctx).
		Where("project_id = ?", projectId).
		Where("reference_id = ? AND reference_type = ?", referenceId, referenceType).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
