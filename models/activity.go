package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"gorm.io/gorm"
)

// activityRetention is how long feed entries are kept before the
// cleanup workflow removes them.
const activityRetention = 30 * 24 * time.Hour

const presenceLifespan = 5 * time.Minute

type Activity struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ProjectId  string    `gorm:"index;not null;size:64" json:"project_id"`
	Type       string    `gorm:"size:50;index;not null" json:"type" binding:"required"`
	Title      string    `gorm:"size:255;not null" json:"title"`
	Actor      string    `gorm:"size:100" json:"actor"`
	EntityType string    `gorm:"size:50" json:"entity_type"`
	EntityId   string    `gorm:"size:64" json:"entity_id"`
	Data       string    `gorm:"type:text" json:"data"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

type NewActivity struct {
	Type       string            `json:"type" binding:"required"`
	EntityType string            `json:"entity_type"`
	EntityId   string            `json:"entity_id"`
	Data       map[string]string `json:"data"`
}

func activityTitle(activityType string) string {
	switch activityType {
	case "status_change":
		return "Status Updated"
	case "comment_added":
		return "New Comment"
	case "deficiency_created":
		return "Deficiency Created"
	case "photo_uploaded":
		return "Photo Uploaded"
	case "assignment":
		return "Assignment Changed"
	}
	return "Activity"
}

// RecordActivity appends to the feed and raises a notification. The
// notification severity escalates when the activity data carries a
// high or medium severity.
func RecordActivity(ctx context.Context, input *NewActivity) (*Activity, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	_, userName, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	data := ""
	if len(input.Data) > 0 {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return nil, err
		}
		data = string(encoded)
	}

	severity := "info"
	switch input.Data["severity"] {
	case "high":
		severity = "critical"
	case "medium":
		severity = "warning"
	}

	activity := Activity{
		ProjectId:  projectId,
		Type:       input.Type,
		Title:      activityTitle(input.Type),
		Actor:      userName,
		EntityType: input.EntityType,
		EntityId:   input.EntityId,
		Data:       data,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&activity).Error; err != nil {
			return err
		}
		return createNotification(tx, &Notification{
			Type:          "system",
			Severity:      severity,
			Title:         activity.Title,
			Message:       fmt.Sprintf("%s on %s", userName, input.EntityType),
			ReferenceID:   activity.ID,
			ReferenceType: "activity",
		})
	})
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func GetActivities(ctx context.Context, page, pageSize int) ([]*Activity, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	limit, offset := Pagination(page, pageSize)
	var results []*Activity
	err = db.WithContext(ctx).
		Where("project_id = ?", projectId).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// PruneActivities deletes feed entries older than the retention window
// across every project. Called from the cleanup workflow.
func PruneActivities(ctx context.Context) (int64, error) {
	db := config.GetDB()
	cutoff := time.Now().Add(-activityRetention)
	result := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Activity{})
	return result.RowsAffected, result.Error
}

// Heartbeat marks the user active for the presence window. Presence is
// tracked in redis so it survives across instances and expires on its
// own.
func Heartbeat(ctx context.Context) error {
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return err
	}
	_, userName, err := requireUser(ctx)
	if err != nil {
		return err
	}
	return config.SetRedisValue("Presence:"+projectId+":"+userName, time.Now().Format(time.RFC3339), presenceLifespan)
}

func ActiveUsers(ctx context.Context) ([]string, error) {
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	redisDb := config.GetRedisDB()
	keys, err := redisDb.Keys(config.GetRedisContext(), "Presence:"+projectId+":*").Result()
	if err != nil {
		return nil, err
	}

	prefix := "Presence:" + projectId + ":"
	users := make([]string, 0, len(keys))
	for _, key := range keys {
		users = append(users, key[len(prefix):])
	}
	return users, nil
}
