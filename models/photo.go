package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/store"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

const (
	PhotoAnalysisPending   = "pending"
	PhotoAnalysisCompleted = "completed"
	PhotoAnalysisFailed    = "failed"
)

// photoEngine is shared across requests so repeated analyses of the
// same photo id reuse the cached result.
var photoEngine = store.NewAnalysisEngine()

type Photo struct {
	ID             int       `gorm:"primary_key" json:"id"`
	ProjectId      string    `gorm:"index;not null;size:64" json:"project_id"`
	Filename       string    `gorm:"size:255;not null" json:"filename" binding:"required"`
	Url            string    `gorm:"size:500" json:"url"`
	ThumbnailUrl   string    `gorm:"size:500" json:"thumbnail_url"`
	Description    string    `gorm:"type:text" json:"description"`
	JobNumber      string    `gorm:"size:100;index" json:"job_number"`
	InspectionId   int       `gorm:"index" json:"inspection_id"`
	DeficiencyId   int       `gorm:"index" json:"deficiency_id"`
	Tags           string    `gorm:"type:text" json:"tags"`
	AnalysisStatus string    `gorm:"size:20;index;not null;default:'pending'" json:"analysis_status"`
	Analysis       string    `gorm:"type:longtext" json:"analysis"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPhotoInput struct {
	Filename     string   `json:"filename" binding:"required"`
	Url          string   `json:"url"`
	ThumbnailUrl string   `json:"thumbnail_url"`
	Description  string   `json:"description"`
	JobNumber    string   `json:"job_number"`
	InspectionId int      `json:"inspection_id"`
	DeficiencyId int      `json:"deficiency_id"`
	Tags         []string `json:"tags"`
}

func (p *Photo) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	return strings.Split(p.Tags, ",")
}

// AnalysisResult decodes the stored analysis payload. Photos still
// pending analysis return nil.
func (p *Photo) AnalysisResult() *store.AnalysisResult {
	if p.Analysis == "" {
		return nil
	}
	var result store.AnalysisResult
	if err := json.Unmarshal([]byte(p.Analysis), &result); err != nil {
		return nil
	}
	return &result
}

func CreatePhoto(ctx context.Context, input *NewPhotoInput) (*Photo, error) {

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
	if input.DeficiencyId > 0 {
		if err := utils.ValidateResourceId[Deficiency](ctx, projectId, input.DeficiencyId); err != nil {
			return nil, err
		}
	}

	photo := Photo{
		ProjectId:      projectId,
		Filename:       input.Filename,
		Url:            input.Url,
		ThumbnailUrl:   input.ThumbnailUrl,
		Description:    input.Description,
		JobNumber:      input.JobNumber,
		InspectionId:   input.InspectionId,
		DeficiencyId:   input.DeficiencyId,
		Tags:           strings.Join(input.Tags, ","),
		AnalysisStatus: PhotoAnalysisPending,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&photo).Error; err != nil {
			return err
		}
		if err := createHistory(tx, "C", photo.ID, "photo", nil, photo, "Photo "+photo.Filename+" uploaded."); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "photos", photo.ID, ChangeFeedCreate, photo)
	})
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

// AnalyzePhoto runs defect detection for an uploaded photo and settles
// its analysis status. Completed photos raise a defect notification
// sized to the highest defect confidence, and photos linked to a
// deficiency get the defect summary appended to its description.
func AnalyzePhoto(ctx context.Context, id int) (*Photo, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	photo, err := utils.FetchModel[Photo](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	if photo.AnalysisStatus == PhotoAnalysisCompleted {
		return photo, nil
	}

	attachment := &store.PhotoAttachment{
		BaseRecord: store.BaseRecord{Id: strconv.Itoa(photo.ID)},
		Filename:  photo.Filename,
		JobNumber: photo.JobNumber,
	}
	result, analysisErr := photoEngine.Analyze(attachment)

	if analysisErr != nil {
		photo.AnalysisStatus = PhotoAnalysisFailed
		if err := db.WithContext(ctx).Save(photo).Error; err != nil {
			return nil, err
		}
		_ = utils.RemoveRedis[Photo](photo.ID, projectId)
		return photo, nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	photo.AnalysisStatus = PhotoAnalysisCompleted
	photo.Analysis = string(payload)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(photo).Error; err != nil {
			return err
		}
		if len(result.Defects) > 0 {
			if err := createNotification(tx, defectNotification(photo, result)); err != nil {
				return err
			}
		}
		return enqueueChangeFeed(tx, "photos", photo.ID, ChangeFeedUpdate, photo)
	})
	if err != nil {
		return nil, err
	}

	if photo.DeficiencyId > 0 && len(result.Defects) > 0 {
		if _, err := AppendAnalysisToDeficiency(ctx, photo.DeficiencyId, store.AnalysisSummaryText(result)); err != nil {
			return nil, err
		}
	}

	_ = utils.RemoveRedis[Photo](photo.ID, projectId)
	return photo, nil
}

func defectNotification(photo *Photo, result *store.AnalysisResult) *Notification {
	maxConfidence := 0.0
	var descriptions []string
	for _, defect := range result.Defects {
		if defect.Confidence > maxConfidence {
			maxConfidence = defect.Confidence
		}
		descriptions = append(descriptions, fmt.Sprintf("%s detected (%.1f%% confidence)", defect.Type, defect.Confidence*100))
	}

	severity := "info"
	if maxConfidence > 0.9 {
		severity = "critical"
	} else if maxConfidence > 0.7 {
		severity = "warning"
	}

	return &Notification{
		Type:          "deficiency",
		Severity:      severity,
		Title:         "Defects Detected",
		Message:       fmt.Sprintf("Photo %s: %s", photo.Filename, strings.Join(descriptions, ", ")),
		ReferenceID:   photo.ID,
		ReferenceType: "photo",
	}
}

func AddPhotoTag(ctx context.Context, id int, tag string) (*Photo, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	photo, err := utils.FetchModel[Photo](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	for _, existing := range photo.TagList() {
		if existing == tag {
			return photo, nil
		}
	}

	tags := append(photo.TagList(), tag)
	photo.Tags = strings.Join(tags, ",")
	if err := db.WithContext(ctx).Save(photo).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Photo](photo.ID, projectId)
	return photo, nil
}

func UpdatePhotoDescription(ctx context.Context, id int, description string) (*Photo, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	photo, err := utils.FetchModel[Photo](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	photo.Description = description
	if err := db.WithContext(ctx).Save(photo).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Photo](photo.ID, projectId)
	return photo, nil
}

func GetPhoto(ctx context.Context, id int) (*Photo, error) {
	return GetResource[Photo](ctx, id)
}

func GetPhotos(ctx context.Context, jobNumber *string, inspectionId *int, tag *string) ([]*Photo, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Photo
	dbCtx := db.WithContext(ctx).Where("project_id = ?", projectId)
	if jobNumber != nil && *jobNumber != "" {
		dbCtx = dbCtx.Where("job_number = ?", jobNumber)
	}
	if inspectionId != nil && *inspectionId > 0 {
		dbCtx = dbCtx.Where("inspection_id = ?", inspectionId)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	if tag != nil && *tag != "" {
		filtered := results[:0]
		for _, photo := range results {
			for _, existing := range photo.TagList() {
				if existing == *tag {
					filtered = append(filtered, photo)
					break
				}
			}
		}
		results = filtered
	}
	return results, nil
}
