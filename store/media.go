package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

type PhotoAttachment struct {
	BaseRecord
	Url            string          `json:"url"`
	ThumbnailUrl   string          `json:"thumbnail_url,omitempty"`
	Filename       string          `json:"filename"`
	Description    string          `json:"description,omitempty"`
	JobNumber      string          `json:"job_number"`
	JobType        string          `json:"job_type,omitempty"`
	Location       string          `json:"location,omitempty"`
	InspectionId   string          `json:"inspection_id,omitempty"`
	DeficiencyId   string          `json:"deficiency_id,omitempty"`
	Tags           []string        `json:"tags"`
	UploadedBy     string          `json:"uploaded_by"`
	Timestamp      time.Time       `json:"timestamp"`
	AnalysisStatus AnalysisStatus  `json:"analysis_status"`
	Analysis       *AnalysisResult `json:"analysis,omitempty"`
}

type NewPhoto struct {
	Url          string
	Filename     string
	Description  string
	JobNumber    string
	JobType      string
	Location     string
	InspectionId string
	DeficiencyId string
	Tags         []string
	UploadedBy   string
}

// MediaStore owns photo attachments and drives the analysis engine.
// AddPhoto returns immediately with the photo in the pending state and
// runs analysis on a separate goroutine; WaitForAnalysis blocks until
// that run settles. Completion raises a notification whose severity
// tracks the highest defect confidence.
type MediaStore struct {
	mu            sync.Mutex
	photos        []*PhotoAttachment
	pending       map[string]chan struct{}
	engine        *AnalysisEngine
	notifications *NotificationStore
	broker        *Broker
	log           *logrus.Logger
	now           clock
}

func NewMediaStore(engine *AnalysisEngine, notifications *NotificationStore, broker *Broker) *MediaStore {
	return &MediaStore{
		pending:       map[string]chan struct{}{},
		engine:        engine,
		notifications: notifications,
		broker:        broker,
		log:           logrus.StandardLogger(),
		now:           realClock,
	}
}

// AddPhoto registers the attachment and kicks off analysis in the
// background. The returned photo is a live pointer; its analysis
// fields settle asynchronously.
func (s *MediaStore) AddPhoto(input NewPhoto) *PhotoAttachment {
	now := s.now()
	photo := &PhotoAttachment{
		BaseRecord:     BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		Url:            input.Url,
		Filename:       input.Filename,
		Description:    input.Description,
		JobNumber:      input.JobNumber,
		JobType:        input.JobType,
		Location:       input.Location,
		InspectionId:   input.InspectionId,
		DeficiencyId:   input.DeficiencyId,
		Tags:           append([]string{}, input.Tags...),
		UploadedBy:     input.UploadedBy,
		Timestamp:      now,
		AnalysisStatus: AnalysisPending,
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.photos = append(s.photos, photo)
	s.pending[photo.Id] = done
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "photos", EntityId: photo.Id})

	go s.runAnalysis(photo, done)

	return photo
}

func (s *MediaStore) runAnalysis(photo *PhotoAttachment, done chan struct{}) {
	result, err := s.engine.Analyze(photo)

	s.mu.Lock()
	if err != nil {
		photo.AnalysisStatus = AnalysisFailed
		s.log.WithFields(logrus.Fields{
			"photo_id": photo.Id,
			"filename": photo.Filename,
		}).WithError(err).Error("photo analysis failed")
	} else {
		photo.AnalysisStatus = AnalysisCompleted
		photo.Analysis = result
	}
	photo.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "photos", EntityId: photo.Id})

	if err == nil && len(result.Defects) > 0 {
		s.notifyDefects(photo, result)
	}

	// settle last so waiters observe the notification side effects
	s.mu.Lock()
	delete(s.pending, photo.Id)
	s.mu.Unlock()
	close(done)
}

func (s *MediaStore) notifyDefects(photo *PhotoAttachment, result *AnalysisResult) {
	maxConfidence := 0.0
	var descriptions []string
	for _, defect := range result.Defects {
		if defect.Confidence > maxConfidence {
			maxConfidence = defect.Confidence
		}
		descriptions = append(descriptions, fmt.Sprintf("%s detected (%.1f%% confidence)", defect.Type, defect.Confidence*100))
	}

	severity := NotificationSeverityInfo
	if maxConfidence > 0.9 {
		severity = NotificationSeverityCritical
	} else if maxConfidence > 0.7 {
		severity = NotificationSeverityWarning
	}

	s.notifications.Add(NewNotification{
		Type:      NotificationTypeDeficiency,
		Severity:  severity,
		Title:     "Defects Detected",
		Message:   fmt.Sprintf("Photo %s: %s", photo.Filename, strings.Join(descriptions, ", ")),
		RelatedId: photo.Id,
	})
}

// WaitForAnalysis blocks until analysis for the photo has settled and
// returns the photo. Photos whose analysis already finished return
// immediately.
func (s *MediaStore) WaitForAnalysis(photoId string) (*PhotoAttachment, error) {
	s.mu.Lock()
	photo := s.findLocked(photoId)
	if photo == nil {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	done, waiting := s.pending[photoId]
	s.mu.Unlock()

	if waiting {
		<-done
	}
	return photo, nil
}

func (s *MediaStore) findLocked(photoId string) *PhotoAttachment {
	for _, photo := range s.photos {
		if photo.Id == photoId {
			return photo
		}
	}
	return nil
}

func (s *MediaStore) GetPhoto(photoId string) (*PhotoAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if photo := s.findLocked(photoId); photo != nil {
		return photo, nil
	}
	return nil, ErrNotFound
}

func (s *MediaStore) Photos() []*PhotoAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*PhotoAttachment{}, s.photos...)
}

func (s *MediaStore) PhotosByJob(jobNumber string) []*PhotoAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PhotoAttachment
	for _, photo := range s.photos {
		if photo.JobNumber == jobNumber {
			out = append(out, photo)
		}
	}
	return out
}

func (s *MediaStore) PhotosByInspection(inspectionId string) []*PhotoAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PhotoAttachment
	for _, photo := range s.photos {
		if photo.InspectionId == inspectionId {
			out = append(out, photo)
		}
	}
	return out
}

func (s *MediaStore) PhotosByDeficiency(deficiencyId string) []*PhotoAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PhotoAttachment
	for _, photo := range s.photos {
		if photo.DeficiencyId == deficiencyId {
			out = append(out, photo)
		}
	}
	return out
}

// PhotosByLocation matches on location substring.
func (s *MediaStore) PhotosByLocation(location string) []*PhotoAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PhotoAttachment
	for _, photo := range s.photos {
		if strings.Contains(photo.Location, location) {
			out = append(out, photo)
		}
	}
	return out
}

func (s *MediaStore) PhotosByTag(tag string) []*PhotoAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PhotoAttachment
	for _, photo := range s.photos {
		for _, t := range photo.Tags {
			if t == tag {
				out = append(out, photo)
				break
			}
		}
	}
	return out
}

func (s *MediaStore) AddTag(photoId, tag string) error {
	s.mu.Lock()
	photo := s.findLocked(photoId)
	if photo == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	for _, t := range photo.Tags {
		if t == tag {
			s.mu.Unlock()
			return nil
		}
	}
	photo.Tags = append(photo.Tags, tag)
	photo.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "photos", EntityId: photoId})
	return nil
}

func (s *MediaStore) UpdateDescription(photoId, description string) error {
	s.mu.Lock()
	photo := s.findLocked(photoId)
	if photo == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	photo.Description = description
	photo.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "photos", EntityId: photoId})
	return nil
}

// AnalysisSummaryText renders the defect findings for appending to a
// deficiency description: "AI Analysis: crack detected (92.0% confidence)".
func AnalysisSummaryText(result *AnalysisResult) string {
	if result == nil || len(result.Defects) == 0 {
		return ""
	}
	var parts []string
	for _, defect := range result.Defects {
		parts = append(parts, fmt.Sprintf("%s detected (%.1f%% confidence)", defect.Type, defect.Confidence*100))
	}
	return "AI Analysis: " + strings.Join(parts, ", ")
}
