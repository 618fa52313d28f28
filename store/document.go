package store

import (
	"sync"
	"time"
)

type DocumentMetadata struct {
	Author           string     `json:"author"`
	ApprovedBy       string     `json:"approved_by,omitempty"`
	ApprovalDate     *time.Time `json:"approval_date,omitempty"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
	Tags             []string   `json:"tags"`
	RelatedDocuments []string   `json:"related_documents"`
	JobNumbers       []string   `json:"job_numbers"`
}

type DocumentRevision struct {
	Version int       `json:"version"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
	Changes string    `json:"changes"`
}

type Document struct {
	BaseRecord
	Title           string             `json:"title"`
	Type            DocumentType       `json:"type"`
	Content         string             `json:"content"`
	Version         int                `json:"version"`
	Status          DocumentStatus     `json:"status"`
	Metadata        DocumentMetadata   `json:"metadata"`
	RevisionHistory []DocumentRevision `json:"revision_history"`
}

type NewDocument struct {
	Title    string
	Type     DocumentType
	Content  string
	Metadata DocumentMetadata
}

type DocumentUpdate struct {
	Title    *string
	Type     *DocumentType
	Content  *string
	Status   *DocumentStatus
	Metadata *DocumentMetadata
}

// DocumentStore owns versioned documents and a tag -> document ids
// inverted index. The index is rebuilt per document on every add and
// update, so a tag bucket only ever reflects the latest tag list.
type DocumentStore struct {
	mu        sync.Mutex
	documents []*Document
	tagIndex  map[string][]string
	broker    *Broker
	now       clock
}

func NewDocumentStore(broker *Broker) *DocumentStore {
	return &DocumentStore{
		tagIndex: map[string][]string{},
		broker:   broker,
		now:      realClock,
	}
}

func (s *DocumentStore) Add(input NewDocument) *Document {
	now := s.now()
	doc := &Document{
		BaseRecord: BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now},
		Title:      input.Title,
		Type:       input.Type,
		Content:    input.Content,
		Version:    1,
		Status:     DocumentStatusDraft,
		Metadata:   input.Metadata,
		RevisionHistory: []DocumentRevision{{
			Version: 1,
			Date:    now,
			Author:  input.Metadata.Author,
			Changes: "Initial creation",
		}},
	}

	s.mu.Lock()
	s.documents = append(s.documents, doc)
	s.reindex(doc)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "documents", EntityId: doc.Id})
	return doc
}

// Update increments the version by exactly 1 and appends exactly one
// revision-history entry, regardless of how many fields changed.
func (s *DocumentStore) Update(id string, updates DocumentUpdate) (*Document, error) {
	s.mu.Lock()
	doc := s.find(id)
	if doc == nil {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	if updates.Title != nil {
		doc.Title = *updates.Title
	}
	if updates.Type != nil {
		doc.Type = *updates.Type
	}
	if updates.Content != nil {
		doc.Content = *updates.Content
	}
	if updates.Status != nil {
		doc.Status = *updates.Status
	}
	author := doc.Metadata.Author
	if updates.Metadata != nil {
		doc.Metadata = *updates.Metadata
		if updates.Metadata.Author != "" {
			author = updates.Metadata.Author
		}
	}

	now := s.now()
	doc.Version++
	doc.UpdatedAt = now
	doc.RevisionHistory = append(doc.RevisionHistory, DocumentRevision{
		Version: doc.Version,
		Date:    now,
		Author:  author,
		Changes: "Updated document content and metadata",
	})
	s.reindex(doc)
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "documents", EntityId: id})
	return doc, nil
}

// Archive keeps the document in the collection and tag index; only the
// status changes and a revision entry records the reason.
func (s *DocumentStore) Archive(id string, reason string) {
	s.mu.Lock()
	doc := s.find(id)
	if doc == nil {
		s.mu.Unlock()
		return
	}
	doc.Status = DocumentStatusArchived
	doc.RevisionHistory = append(doc.RevisionHistory, DocumentRevision{
		Version: doc.Version,
		Date:    s.now(),
		Author:  "system",
		Changes: "Archived: " + reason,
	})
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "documents", EntityId: id})
}

// LinkRelated is symmetric: each document gains the other's id unless
// already present. A missing id on either side is a silent no-op.
func (s *DocumentStore) LinkRelated(sourceId, targetId string) {
	s.mu.Lock()
	source := s.find(sourceId)
	target := s.find(targetId)
	if source == nil || target == nil {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if !contains(source.Metadata.RelatedDocuments, targetId) {
		source.Metadata.RelatedDocuments = append(source.Metadata.RelatedDocuments, targetId)
		source.UpdatedAt = now
	}
	if !contains(target.Metadata.RelatedDocuments, sourceId) {
		target.Metadata.RelatedDocuments = append(target.Metadata.RelatedDocuments, sourceId)
		target.UpdatedAt = now
	}
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "documents"})
}

func (s *DocumentStore) Get(id string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.find(id)
	return doc, doc != nil
}

func (s *DocumentStore) Documents() []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Document, len(s.documents))
	copy(out, s.documents)
	return out
}

func (s *DocumentStore) GetByType(docType DocumentType) []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Document
	for _, doc := range s.documents {
		if doc.Type == docType {
			out = append(out, doc)
		}
	}
	return out
}

// GetByTag answers from the inverted index, never by scanning tags.
func (s *DocumentStore) GetByTag(tag string) []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.tagIndex[tag]
	var out []*Document
	for _, doc := range s.documents {
		if contains(ids, doc.Id) {
			out = append(out, doc)
		}
	}
	return out
}

func (s *DocumentStore) GetByJob(jobNumber string) []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Document
	for _, doc := range s.documents {
		if contains(doc.Metadata.JobNumbers, jobNumber) {
			out = append(out, doc)
		}
	}
	return out
}

func (s *DocumentStore) ActiveDocuments() []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Document
	for _, doc := range s.documents {
		if doc.Status == DocumentStatusActive {
			out = append(out, doc)
		}
	}
	return out
}

// reindex removes the document from every tag bucket and re-adds it for
// its current tags. O(tags x docs), fine at this scale. Caller holds mu.
func (s *DocumentStore) reindex(doc *Document) {
	for tag, ids := range s.tagIndex {
		filtered := ids[:0]
		for _, id := range ids {
			if id != doc.Id {
				filtered = append(filtered, id)
			}
		}
		s.tagIndex[tag] = filtered
	}
	for _, tag := range doc.Metadata.Tags {
		if !contains(s.tagIndex[tag], doc.Id) {
			s.tagIndex[tag] = append(s.tagIndex[tag], doc.Id)
		}
	}
}

func (s *DocumentStore) find(id string) *Document {
	for _, doc := range s.documents {
		if doc.Id == id {
			return doc
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
