package models

import (
	"context"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

type Notification struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ProjectId     string    `gorm:"index;not null;size:64" json:"project_id"`
	Type          string    `gorm:"size:20;not null" json:"type"`
	Severity      string    `gorm:"size:20;not null" json:"severity"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Message       string    `gorm:"type:text" json:"message"`
	Target        string    `gorm:"size:100;index" json:"target"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:64" json:"reference_type"`
	Read          bool      `gorm:"index;not null;default:false" json:"read"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// createNotification writes the row inside the caller's transaction so
// a rolled-back mutation never leaves a stray notification behind.
func createNotification(tx *gorm.DB, notification *Notification) error {
	if notification.ProjectId == "" {
		projectId, ok := utils.GetProjectIdFromContext(tx.Statement.Context)
		if ok {
			notification.ProjectId = projectId
		}
	}
	return tx.Create(notification).Error
}

func GetNotifications(ctx context.Context, unreadOnly bool, page, pageSize int) ([]*Notification, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	limit, offset := Pagination(page, pageSize)
	var results []*Notification
	dbCtx := db.WithContext(ctx).Where("project_id = ?", projectId)
	if unreadOnly {
		dbCtx = dbCtx.Where("`read` = ?", false)
	}
	err = dbCtx.Order("created_at DESC").Limit(limit).Offset(offset).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetUnreadNotificationCount(ctx context.Context) (int64, error) {
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return 0, err
	}
	return utils.ResourceCountWhere[Notification](ctx, projectId, "`read` = ?", false)
}

func MarkNotificationRead(ctx context.Context, id int) (*Notification, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	notification, err := utils.FetchModel[Notification](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	notification.Read = true
	if err := db.WithContext(ctx).Save(notification).Error; err != nil {
		return nil, err
	}
	return notification, nil
}

func MarkAllNotificationsRead(ctx context.Context) (int64, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return 0, err
	}

	result := db.WithContext(ctx).Model(&Notification{}).
		Where("project_id = ? AND `read` = ?", projectId, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}
