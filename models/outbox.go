package models

import (
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for ChangeFeedRecord.PublishStatus.
// Stored as strings so the DB values stay readable.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type ChangeFeedAction string

const (
	ChangeFeedCreate ChangeFeedAction = "C"
	ChangeFeedUpdate ChangeFeedAction = "U"
	ChangeFeedDelete ChangeFeedAction = "D"
)

// ChangeFeedRecord is written in the same transaction as the row change
// it describes. The dispatcher publishes committed rows to Pub/Sub
// after the fact; publish never happens inside the transaction.
type ChangeFeedRecord struct {
	ID               int              `gorm:"primary_key;index:idx_changefeed_dispatch,priority:3" json:"id"`
	ProjectId        string           `gorm:"size:64;not null;index" json:"project_id"`
	TableName        string           `gorm:"size:64;not null" json:"table_name"`
	RowId            int              `gorm:"index" json:"row_id"`
	Action           ChangeFeedAction `gorm:"type:enum('C','U','D')" json:"action"`
	Row              []byte           `gorm:"type:blob" json:"row"`
	PublishStatus    string           `gorm:"size:20;index;not null;default:'PENDING';index:idx_changefeed_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time       `gorm:"index" json:"published_at"`
	PubSubMessageId  *string          `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int              `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time       `gorm:"index;index:idx_changefeed_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time       `gorm:"index" json:"locked_at"`
	LockedBy         *string          `gorm:"size:100" json:"locked_by"`
	LastPublishError *string          `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string           `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// enqueueChangeFeed records a row change inside the caller's
// transaction. The row snapshot is marshalled as JSON.
func enqueueChangeFeed(tx *gorm.DB, tableName string, rowId int, action ChangeFeedAction, row interface{}) error {
	ctx := tx.Statement.Context
	projectId, ok := utils.GetProjectIdFromContext(ctx)
	if !ok || projectId == "" {
		return errors.New("project id is required")
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	snapshot, err := json.Marshal(row)
	if err != nil {
		return err
	}

	record := ChangeFeedRecord{
		ProjectId:     projectId,
		TableName:     tableName,
		RowId:         rowId,
		Action:        action,
		Row:           snapshot,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}
