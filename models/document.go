package models

import (
	"context"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

const (
	DocumentStatusDraft    = "draft"
	DocumentStatusActive   = "active"
	DocumentStatusArchived = "archived"
)

type Document struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ProjectId  string    `gorm:"index;not null;size:64" json:"project_id"`
	Title      string    `gorm:"size:255;not null" json:"title" binding:"required"`
	Type       string    `gorm:"size:20;index;not null" json:"type"`
	Content    string    `gorm:"type:longtext" json:"content"`
	Version    int       `gorm:"not null;default:1" json:"version"`
	Status     string    `gorm:"size:20;index;not null;default:'draft'" json:"status"`
	Author     string    `gorm:"size:100" json:"author"`
	ApprovedBy string    `gorm:"size:100" json:"approved_by"`
	Tags       string    `gorm:"type:text" json:"tags"`
	JobNumbers string    `gorm:"type:text" json:"job_numbers"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Revisions []DocumentRevision `gorm:"foreignKey:DocumentId" json:"revisions,omitempty"`
}

type DocumentRevision struct {
	ID         int       `gorm:"primary_key" json:"id"`
	DocumentId int       `gorm:"index;not null" json:"document_id"`
	Version    int       `gorm:"not null" json:"version"`
	Author     string    `gorm:"size:100" json:"author"`
	Changes    string    `gorm:"type:text" json:"changes"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewDocument struct {
	Title      string `json:"title" binding:"required"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	Author     string `json:"author"`
	Tags       string `json:"tags"`
	JobNumbers string `json:"job_numbers"`
}

type DocumentUpdateInput struct {
	Title   *string `json:"title"`
	Type    *string `json:"type"`
	Content *string `json:"content"`
	Status  *string `json:"status"`
	Tags    *string `json:"tags"`
}

func CreateDocument(ctx context.Context, input *NewDocument) (*Document, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	document := Document{
		ProjectId:  projectId,
		Title:      input.Title,
		Type:       input.Type,
		Content:    input.Content,
		Version:    1,
		Status:     DocumentStatusDraft,
		Author:     input.Author,
		Tags:       input.Tags,
		JobNumbers: input.JobNumbers,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&document).Error; err != nil {
			return err
		}
		revision := DocumentRevision{
			DocumentId: document.ID,
			Version:    1,
			Author:     input.Author,
			Changes:    "Initial creation",
		}
		if err := tx.Create(&revision).Error; err != nil {
			return err
		}
		if err := createHistory(tx, "C", document.ID, "document", nil, document, "Document "+document.Title+" created."); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "documents", document.ID, ChangeFeedCreate, document)
	})
	if err != nil {
		return nil, err
	}
	return &document, nil
}

// UpdateDocument bumps the version by exactly one and records exactly
// one revision row, however many fields changed.
func UpdateDocument(ctx context.Context, id int, input *DocumentUpdateInput) (*Document, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	document, err := utils.FetchModel[Document](ctx, projectId, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		document.Title = *input.Title
	}
	if input.Type != nil {
		document.Type = *input.Type
	}
	if input.Content != nil {
		document.Content = *input.Content
	}
	if input.Status != nil {
		document.Status = *input.Status
	}
	if input.Tags != nil {
		document.Tags = *input.Tags
	}
	document.Version++

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(document).Error; err != nil {
			return err
		}
		revision := DocumentRevision{
			DocumentId: document.ID,
			Version:    document.Version,
			Author:     document.Author,
			Changes:    "Updated document content and metadata",
		}
		if err := tx.Create(&revision).Error; err != nil {
			return err
		}
		if err := createHistory(tx, "U", document.ID, "document", nil, document, "Document "+document.Title+" updated."); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "documents", document.ID, ChangeFeedUpdate, document)
	})
	if err != nil {
		return nil, err
	}

	_ = utils.RemoveRedis[Document](document.ID, projectId)
	return document, nil
}

// ArchiveDocument keeps the row; only the status flips and a revision
// records the reason.
func ArchiveDocument(ctx context.Context, id int, reason string) (*Document, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	document, err := utils.FetchModel[Document](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	document.Status = DocumentStatusArchived

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(document).Error; err != nil {
			return err
		}
		revision := DocumentRevision{
			DocumentId: document.ID,
			Version:    document.Version,
			Author:     "system",
			Changes:    "Archived: " + reason,
		}
		return tx.Create(&revision).Error
	})
	if err != nil {
		return nil, err
	}

	_ = utils.RemoveRedis[Document](document.ID, projectId)
	return document, nil
}

func GetDocument(ctx context.Context, id int) (*Document, error) {
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Document](ctx, projectId, id, "Revisions")
}

func GetDocuments(ctx context.Context, docType *string, tag *string, jobNumber *string) ([]*Document, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Document
	dbCtx := db.WithContext(ctx).Where("project_id = ?", projectId)
	if docType != nil && *docType != "" {
		dbCtx = dbCtx.Where("type = ?", docType)
	}
	if tag != nil && *tag != "" {
		dbCtx = dbCtx.Where("tags LIKE ?", "%"+*tag+"%")
	}
	if jobNumber != nil && *jobNumber != "" {
		dbCtx = dbCtx.Where("job_numbers LIKE ?", "%"+*jobNumber+"%")
	}
	if err := dbCtx.Order("title").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
