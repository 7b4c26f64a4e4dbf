package storage

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
)

// SaveRequest carries one document snapshot to a backend.
type SaveRequest struct {
	Document documents.Document
	AutoSave bool
}

// Store is the persistence port every backend implements. List returns all
// documents newest first. Save persists the snapshot and echoes it back with
// backend-assigned identity and timestamps. Delete reports whether the
// document existed; a missing document is not an error.
type Store interface {
	List(ctx context.Context) ([]documents.Document, error)
	Save(ctx context.Context, request SaveRequest) (documents.Document, error)
	Delete(ctx context.Context, storageKey string) (bool, error)
}

// PersistenceError wraps a backend failure with the backend name and the
// operation that failed.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func newPersistenceError(backend, op string, err error) error {
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}

type documentPayload struct {
	ID               string `json:"id"`
	StorageKey       string `json:"storage_key"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	PlainText        string `json:"plain_text"`
	Favorite         bool   `json:"favorite"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

func payloadFromDocument(doc documents.Document) documentPayload {
	return documentPayload{
		ID:               doc.ID,
		StorageKey:       doc.StorageKey,
		Title:            doc.Title,
		Content:          doc.Content,
		PlainText:        doc.PlainText,
		Favorite:         doc.Favorite,
		CreatedAtSeconds: doc.CreatedAtSeconds,
		UpdatedAtSeconds: doc.UpdatedAtSeconds,
	}
}

func (p documentPayload) toDocument() documents.Document {
	return documents.Document{
		ID:               p.ID,
		StorageKey:       p.StorageKey,
		Title:            p.Title,
		Content:          p.Content,
		PlainText:        p.PlainText,
		Favorite:         p.Favorite,
		CreatedAtSeconds: p.CreatedAtSeconds,
		UpdatedAtSeconds: p.UpdatedAtSeconds,
	}
}
