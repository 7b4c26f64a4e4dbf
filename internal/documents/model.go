package documents

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidStorageKey indicates that a storage key is empty or exceeds storage bounds.
	ErrInvalidStorageKey = errors.New("documents: invalid storage key")
	// ErrInvalidTimestamp indicates that a unix timestamp value is not positive.
	ErrInvalidTimestamp = errors.New("documents: invalid unix timestamp")
)

// StorageKey represents a validated backend storage key.
type StorageKey string

// NewStorageKey validates raw input and returns a StorageKey.
func NewStorageKey(rawInput string) (StorageKey, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidStorageKey)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidStorageKey, maxIdentifierLength)
	}
	return StorageKey(trimmed), nil
}

// String returns the underlying key.
func (k StorageKey) String() string {
	return string(k)
}

// UnixTimestamp represents a validated unix timestamp in seconds.
type UnixTimestamp int64

// NewUnixTimestamp validates the value and returns a UnixTimestamp.
func NewUnixTimestamp(value int64) (UnixTimestamp, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamp, value)
	}
	return UnixTimestamp(value), nil
}

// Int64 exposes the raw unix seconds value.
func (ts UnixTimestamp) Int64() int64 {
	return int64(ts)
}

// Document is the single editable unit: an opaque rich-text body plus the
// metadata the document list renders. Identity fields are assigned by the
// persistence backend on first save.
type Document struct {
	ID               string
	StorageKey       string
	Title            string
	Content          string
	PlainText        string
	Favorite         bool
	CreatedAtSeconds int64
	UpdatedAtSeconds int64
}

// Persisted reports whether the backend has assigned storage identity.
func (d Document) Persisted() bool {
	return d.StorageKey != ""
}

// StoredDocument models the documents table.
type StoredDocument struct {
	StorageKey       string `gorm:"column:storage_key;primaryKey;size:190;not null"`
	DocumentID       string `gorm:"column:document_id;size:190;not null;uniqueIndex:idx_documents_document_id"`
	Title            string `gorm:"column:title;type:text;not null;default:''"`
	Content          string `gorm:"column:content;type:text;not null;default:''"`
	PlainText        string `gorm:"column:plain_text;type:text;not null;default:''"`
	Favorite         bool   `gorm:"column:favorite;not null;default:false"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_documents_created"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (StoredDocument) TableName() string {
	return "documents"
}

func toDocument(record StoredDocument) Document {
	return Document{
		ID:               record.DocumentID,
		StorageKey:       record.StorageKey,
		Title:            record.Title,
		Content:          record.Content,
		PlainText:        record.PlainText,
		Favorite:         record.Favorite,
		CreatedAtSeconds: record.CreatedAtSeconds,
		UpdatedAtSeconds: record.UpdatedAtSeconds,
	}
}

func toRecord(doc Document) StoredDocument {
	return StoredDocument{
		StorageKey:       doc.StorageKey,
		DocumentID:       doc.ID,
		Title:            doc.Title,
		Content:          doc.Content,
		PlainText:        doc.PlainText,
		Favorite:         doc.Favorite,
		CreatedAtSeconds: doc.CreatedAtSeconds,
		UpdatedAtSeconds: doc.UpdatedAtSeconds,
	}
}
