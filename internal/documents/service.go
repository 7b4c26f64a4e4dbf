package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingKeyProvider = errors.New("key provider is required")
	noOpLogger            = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "documents.service.new"
	opListDocuments  = "documents.list_documents"
	opSaveDocument   = "documents.save_document"
	opDeleteDocument = "documents.delete_document"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	KeyProvider KeyProvider
	Logger      *zap.Logger
}

type IDProvider interface {
	NewID() (string, error)
}

type KeyProvider interface {
	NewKey(at time.Time) (string, error)
}

type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	keyProvider KeyProvider
	logger      *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.KeyProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_key_provider", errMissingKeyProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		keyProvider: cfg.KeyProvider,
		logger:      logger,
	}, nil
}

// ListDocuments returns every persisted document, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]Document, error) {
	if s.db == nil {
		s.logError(opListDocuments, "missing_database", errMissingDatabase)
		return nil, newServiceError(opListDocuments, "missing_database", errMissingDatabase)
	}

	var records []StoredDocument
	if err := s.db.WithContext(ctx).
		Order("created_at_s DESC, storage_key DESC").
		Find(&records).Error; err != nil {
		s.logError(opListDocuments, "query_failed", err)
		return nil, newServiceError(opListDocuments, "query_failed", err)
	}

	docs := make([]Document, 0, len(records))
	for _, record := range records {
		docs = append(docs, toDocument(record))
	}
	return docs, nil
}

// SaveDocument persists the snapshot and returns it with assigned identity and
// timestamps. A snapshot without a storage key is treated as a first save: the
// service mints the document id and storage key and stamps created_at_s.
// Subsequent saves keep the stored identity and creation time.
func (s *Service) SaveDocument(ctx context.Context, doc Document) (Document, error) {
	if s.db == nil {
		s.logError(opSaveDocument, "missing_database", errMissingDatabase)
		return Document{}, newServiceError(opSaveDocument, "missing_database", errMissingDatabase)
	}

	now := s.clock().UTC()
	record := toRecord(doc)

	if record.StorageKey == "" {
		key, err := s.keyProvider.NewKey(now)
		if err != nil {
			s.logError(opSaveDocument, "key_generation_failed", err)
			return Document{}, newServiceError(opSaveDocument, "key_generation_failed", err)
		}
		record.StorageKey = key
		if record.CreatedAtSeconds <= 0 {
			record.CreatedAtSeconds = now.Unix()
		}
	} else {
		var existing StoredDocument
		err := s.db.WithContext(ctx).
			Where("storage_key = ?", record.StorageKey).
			Take(&existing).Error
		switch {
		case err == nil:
			record.DocumentID = existing.DocumentID
			record.CreatedAtSeconds = existing.CreatedAtSeconds
		case errors.Is(err, gorm.ErrRecordNotFound):
			if record.CreatedAtSeconds <= 0 {
				record.CreatedAtSeconds = now.Unix()
			}
		default:
			s.logError(opSaveDocument, "document_select_failed", err,
				zap.String("storage_key", record.StorageKey))
			return Document{}, newServiceError(opSaveDocument, "document_select_failed", err)
		}
	}

	if record.DocumentID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSaveDocument, "id_generation_failed", err)
			return Document{}, newServiceError(opSaveDocument, "id_generation_failed", err)
		}
		record.DocumentID = id
	}

	record.UpdatedAtSeconds = now.Unix()

	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		s.logError(opSaveDocument, "upsert_failed", err,
			zap.String("storage_key", record.StorageKey))
		return Document{}, newServiceError(opSaveDocument, "upsert_failed", err)
	}

	return toDocument(record), nil
}

// DeleteDocument removes the document stored under the key. The boolean
// reports whether a stored document existed; a missing document is not an
// error.
func (s *Service) DeleteDocument(ctx context.Context, rawKey string) (bool, error) {
	if s.db == nil {
		s.logError(opDeleteDocument, "missing_database", errMissingDatabase)
		return false, newServiceError(opDeleteDocument, "missing_database", errMissingDatabase)
	}

	key, err := NewStorageKey(rawKey)
	if err != nil {
		s.logError(opDeleteDocument, "invalid_storage_key", err)
		return false, newServiceError(opDeleteDocument, "invalid_storage_key", err)
	}

	result := s.db.WithContext(ctx).
		Where("storage_key = ?", key.String()).
		Delete(&StoredDocument{})
	if result.Error != nil {
		s.logError(opDeleteDocument, "delete_failed", result.Error,
			zap.String("storage_key", key.String()))
		return false, newServiceError(opDeleteDocument, "delete_failed", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("documents service error", attrs...)
}
