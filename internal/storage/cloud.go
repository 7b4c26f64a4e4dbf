package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const cloudDocumentFolder = "documents"

var errMissingBucket = errors.New("storage: bucket is required")

// S3Client is the S3 surface the cloud store uses.
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type CloudStoreConfig struct {
	Bucket      string
	Region      string
	Endpoint    string
	AccessKeyID string
	SecretKey   string
	Prefix      string
	Client      S3Client
	Clock       func() time.Time
	IDProvider  documents.IDProvider
	KeyProvider documents.KeyProvider
	Logger      *zap.Logger
}

// CloudStore keeps each document as one JSON object in an S3-compatible
// bucket, keyed by its storage key.
type CloudStore struct {
	bucket      string
	prefix      string
	client      S3Client
	clock       func() time.Time
	idProvider  documents.IDProvider
	keyProvider documents.KeyProvider
	logger      *zap.Logger
}

func NewCloudStore(ctx context.Context, cfg CloudStoreConfig) (*CloudStore, error) {
	if cfg.Bucket == "" {
		return nil, errMissingBucket
	}

	client := cfg.Client
	if client == nil {
		loadOptions := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" {
			loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
		if err != nil {
			return nil, err
		}
		client = s3.NewFromConfig(awsCfg, func(options *s3.Options) {
			if cfg.Endpoint != "" {
				options.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = documents.NewUUIDProvider()
	}
	keyProvider := cfg.KeyProvider
	if keyProvider == nil {
		keyProvider = documents.NewULIDKeyProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CloudStore{
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		client:      client,
		clock:       clock,
		idProvider:  idProvider,
		keyProvider: keyProvider,
		logger:      logger,
	}, nil
}

func (s *CloudStore) List(ctx context.Context) ([]documents.Document, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectPrefix()),
	})

	var docs []documents.Document
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, newPersistenceError(BackendCloud, "list", err)
		}
		for _, object := range page.Contents {
			doc, found, err := s.fetchDocument(ctx, aws.ToString(object.Key))
			if err != nil {
				return nil, err
			}
			if found {
				docs = append(docs, doc)
			}
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAtSeconds != docs[j].CreatedAtSeconds {
			return docs[i].CreatedAtSeconds > docs[j].CreatedAtSeconds
		}
		return docs[i].StorageKey > docs[j].StorageKey
	})
	return docs, nil
}

func (s *CloudStore) Save(ctx context.Context, request SaveRequest) (documents.Document, error) {
	doc := request.Document
	now := s.clock().UTC()

	if doc.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return documents.Document{}, newPersistenceError(BackendCloud, "save", err)
		}
		doc.ID = id
	}
	if doc.StorageKey == "" {
		key, err := s.keyProvider.NewKey(now)
		if err != nil {
			return documents.Document{}, newPersistenceError(BackendCloud, "save", err)
		}
		doc.StorageKey = key
		if doc.CreatedAtSeconds <= 0 {
			doc.CreatedAtSeconds = now.Unix()
		}
	} else if doc.CreatedAtSeconds <= 0 {
		doc.CreatedAtSeconds = now.Unix()
	}
	doc.UpdatedAtSeconds = now.Unix()

	body, err := json.Marshal(payloadFromDocument(doc))
	if err != nil {
		return documents.Document{}, newPersistenceError(BackendCloud, "save", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(doc.StorageKey)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return documents.Document{}, newPersistenceError(BackendCloud, "save", err)
	}
	return doc, nil
}

func (s *CloudStore) Delete(ctx context.Context, storageKey string) (bool, error) {
	key, err := documents.NewStorageKey(storageKey)
	if err != nil {
		return false, newPersistenceError(BackendCloud, "delete", err)
	}
	objectKey := s.objectKey(key.String())

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, newPersistenceError(BackendCloud, "delete", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return false, newPersistenceError(BackendCloud, "delete", err)
	}
	return true, nil
}

func (s *CloudStore) fetchDocument(ctx context.Context, objectKey string) (documents.Document, bool, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return documents.Document{}, false, nil
		}
		return documents.Document{}, false, newPersistenceError(BackendCloud, "list", err)
	}
	defer output.Body.Close()

	raw, err := io.ReadAll(output.Body)
	if err != nil {
		return documents.Document{}, false, newPersistenceError(BackendCloud, "list", err)
	}
	var payload documentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn("skipping undecodable document object", zap.String("key", objectKey), zap.Error(err))
		return documents.Document{}, false, nil
	}
	return payload.toDocument(), true, nil
}

func (s *CloudStore) objectPrefix() string {
	return path.Join(s.prefix, cloudDocumentFolder) + "/"
}

func (s *CloudStore) objectKey(storageKey string) string {
	return path.Join(s.prefix, cloudDocumentFolder, storageKey+".json")
}
