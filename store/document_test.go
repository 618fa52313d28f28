package store

import "testing"

func newTestDocumentStore() *DocumentStore {
	return NewDocumentStore(NewBroker())
}

func TestDocumentAddStartsAtVersionOne(t *testing.T) {
	s := newTestDocumentStore()
	doc := s.Add(NewDocument{
		Title:    "Foundation Specifications",
		Type:     DocumentTypeSpec,
		Content:  "section 3.1",
		Metadata: DocumentMetadata{Author: "qc-manager", Tags: []string{"foundation"}},
	})

	if doc.Version != 1 {
		t.Fatalf("version = %d, want 1", doc.Version)
	}
	if doc.Status != DocumentStatusDraft {
		t.Fatalf("status = %s, want draft", doc.Status)
	}
	if len(doc.RevisionHistory) != 1 || doc.RevisionHistory[0].Changes != "Initial creation" {
		t.Fatalf("revision history = %+v", doc.RevisionHistory)
	}
}

func TestDocumentUpdateAddsExactlyOneRevision(t *testing.T) {
	s := newTestDocumentStore()
	doc := s.Add(NewDocument{Title: "t", Type: DocumentTypeCode, Metadata: DocumentMetadata{Author: "a"}})

	title := "renamed"
	content := "new content"
	updated, err := s.Update(doc.Id, DocumentUpdate{Title: &title, Content: &content})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}
	if len(updated.RevisionHistory) != 2 {
		t.Fatalf("revision count = %d, want 2 after multi-field update", len(updated.RevisionHistory))
	}
}

func TestDocumentUpdateUnknownId(t *testing.T) {
	s := newTestDocumentStore()
	if _, err := s.Update("missing", DocumentUpdate{}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDocumentArchiveStaysQueryable(t *testing.T) {
	s := newTestDocumentStore()
	doc := s.Add(NewDocument{Title: "t", Type: DocumentTypeSpec, Metadata: DocumentMetadata{Author: "a", Tags: []string{"steel"}}})

	s.Archive(doc.Id, "superseded")

	got, ok := s.Get(doc.Id)
	if !ok || got.Status != DocumentStatusArchived {
		t.Fatalf("archived doc missing or wrong status: %+v", got)
	}
	if byTag := s.GetByTag("steel"); len(byTag) != 1 {
		t.Fatalf("archived doc dropped from tag index")
	}
	last := got.RevisionHistory[len(got.RevisionHistory)-1]
	if last.Changes != "Archived: superseded" {
		t.Fatalf("archive revision = %q", last.Changes)
	}
}

func TestTagIndexFollowsUpdates(t *testing.T) {
	s := newTestDocumentStore()
	doc := s.Add(NewDocument{Title: "t", Type: DocumentTypeSpec, Metadata: DocumentMetadata{Author: "a", Tags: []string{"old"}}})

	meta := DocumentMetadata{Author: "a", Tags: []string{"new"}}
	if _, err := s.Update(doc.Id, DocumentUpdate{Metadata: &meta}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := s.GetByTag("old"); len(got) != 0 {
		t.Fatalf("stale tag bucket still answers: %d docs", len(got))
	}
	if got := s.GetByTag("new"); len(got) != 1 {
		t.Fatalf("new tag bucket has %d docs, want 1", len(got))
	}
}

func TestLinkRelatedIsSymmetricAndIdempotent(t *testing.T) {
	s := newTestDocumentStore()
	a := s.Add(NewDocument{Title: "a", Type: DocumentTypeSpec, Metadata: DocumentMetadata{Author: "x"}})
	b := s.Add(NewDocument{Title: "b", Type: DocumentTypeSpec, Metadata: DocumentMetadata{Author: "x"}})

	s.LinkRelated(a.Id, b.Id)
	s.LinkRelated(a.Id, b.Id)

	gotA, _ := s.Get(a.Id)
	gotB, _ := s.Get(b.Id)
	if len(gotA.Metadata.RelatedDocuments) != 1 || gotA.Metadata.RelatedDocuments[0] != b.Id {
		t.Fatalf("a related = %v", gotA.Metadata.RelatedDocuments)
	}
	if len(gotB.Metadata.RelatedDocuments) != 1 || gotB.Metadata.RelatedDocuments[0] != a.Id {
		t.Fatalf("b related = %v", gotB.Metadata.RelatedDocuments)
	}
}

func TestLinkRelatedMissingDocIsNoOp(t *testing.T) {
	s := newTestDocumentStore()
	a := s.Add(NewDocument{Title: "a", Type: DocumentTypeSpec, Metadata: DocumentMetadata{Author: "x"}})

	s.LinkRelated(a.Id, "missing")

	got, _ := s.Get(a.Id)
	if len(got.Metadata.RelatedDocuments) != 0 {
		t.Fatalf("related = %v, want empty", got.Metadata.RelatedDocuments)
	}
}
