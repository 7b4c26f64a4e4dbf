package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
	"go.uber.org/zap"
)

const defaultHTTPTimeout = 30 * time.Second

var errMissingBaseURL = errors.New("storage: base url is required")

type HTTPStoreConfig struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

// HTTPStore talks to the local document server over its JSON API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPStore(cfg HTTPStoreConfig) (*HTTPStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPStore{baseURL: baseURL, client: client, logger: logger}, nil
}

type listResponsePayload struct {
	Documents []documentPayload `json:"documents"`
}

type saveRequestPayload struct {
	Document documentPayload `json:"document"`
	AutoSave bool            `json:"auto_save"`
}

type saveResponsePayload struct {
	Document documentPayload `json:"document"`
}

type deleteResponsePayload struct {
	Deleted bool `json:"deleted"`
}

type errorResponsePayload struct {
	Error string `json:"error"`
}

func (s *HTTPStore) List(ctx context.Context) ([]documents.Document, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/documents", nil)
	if err != nil {
		return nil, newPersistenceError(BackendLocal, "list", err)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, newPersistenceError(BackendLocal, "list", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, newPersistenceError(BackendLocal, "list", responseError(response))
	}

	var payload listResponsePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, newPersistenceError(BackendLocal, "list", err)
	}

	docs := make([]documents.Document, 0, len(payload.Documents))
	for _, entry := range payload.Documents {
		docs = append(docs, entry.toDocument())
	}
	return docs, nil
}

func (s *HTTPStore) Save(ctx context.Context, saveRequest SaveRequest) (documents.Document, error) {
	body, err := json.Marshal(saveRequestPayload{
		Document: payloadFromDocument(saveRequest.Document),
		AutoSave: saveRequest.AutoSave,
	})
	if err != nil {
		return documents.Document{}, newPersistenceError(BackendLocal, "save", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/documents", bytes.NewReader(body))
	if err != nil {
		return documents.Document{}, newPersistenceError(BackendLocal, "save", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return documents.Document{}, newPersistenceError(BackendLocal, "save", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return documents.Document{}, newPersistenceError(BackendLocal, "save", responseError(response))
	}

	var payload saveResponsePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return documents.Document{}, newPersistenceError(BackendLocal, "save", err)
	}
	return payload.Document.toDocument(), nil
}

func (s *HTTPStore) Delete(ctx context.Context, storageKey string) (bool, error) {
	key, err := documents.NewStorageKey(storageKey)
	if err != nil {
		return false, newPersistenceError(BackendLocal, "delete", err)
	}

	target := s.baseURL + "/documents/" + url.PathEscape(key.String())
	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return false, newPersistenceError(BackendLocal, "delete", err)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return false, newPersistenceError(BackendLocal, "delete", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return false, newPersistenceError(BackendLocal, "delete", responseError(response))
	}

	var payload deleteResponsePayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return false, newPersistenceError(BackendLocal, "delete", err)
	}
	return payload.Deleted, nil
}

func responseError(response *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(response.Body, 4096))
	if err != nil {
		return fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	var payload errorResponsePayload
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, payload.Error)
	}
	return fmt.Errorf("unexpected status %d", response.StatusCode)
}
