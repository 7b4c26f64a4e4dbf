package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/inkwell/internal/documents"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errMissingDocumentsService = errors.New("documents service dependency required")

type Dependencies struct {
	DocumentsService *documents.Service
	Logger           *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.DocumentsService == nil {
		return nil, errMissingDocumentsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		documentsService: deps.DocumentsService,
		logger:           logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/documents", handler.handleListDocuments)
	router.POST("/documents", handler.handleSaveDocument)
	router.DELETE("/documents/:storage_key", handler.handleDeleteDocument)

	return router, nil
}

type httpHandler struct {
	documentsService *documents.Service
	logger           *zap.Logger
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

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	listed, err := h.documentsService.ListDocuments(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list documents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	response := listResponsePayload{Documents: make([]documentPayload, 0, len(listed))}
	for _, document := range listed {
		response.Documents = append(response.Documents, payloadFromDocument(document))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleSaveDocument(c *gin.Context) {
	var request saveRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	saved, err := h.documentsService.SaveDocument(c.Request.Context(), documentFromPayload(request.Document))
	if err != nil {
		h.logger.Error("failed to save document", zap.Error(err), zap.Bool("auto_save", request.AutoSave))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	h.logger.Debug("document saved",
		zap.String("storage_key", saved.StorageKey),
		zap.Bool("auto_save", request.AutoSave))
	c.JSON(http.StatusOK, saveResponsePayload{Document: payloadFromDocument(saved)})
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	deleted, err := h.documentsService.DeleteDocument(c.Request.Context(), c.Param("storage_key"))
	if err != nil {
		if errors.Is(err, documents.ErrInvalidStorageKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		h.logger.Error("failed to delete document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.JSON(http.StatusOK, deleteResponsePayload{Deleted: deleted})
}

func payloadFromDocument(document documents.Document) documentPayload {
	return documentPayload{
		ID:               document.ID,
		StorageKey:       document.StorageKey,
		Title:            document.Title,
		Content:          document.Content,
		PlainText:        document.PlainText,
		Favorite:         document.Favorite,
		CreatedAtSeconds: document.CreatedAtSeconds,
		UpdatedAtSeconds: document.UpdatedAtSeconds,
	}
}

func documentFromPayload(payload documentPayload) documents.Document {
	return documents.Document{
		ID:               payload.ID,
		StorageKey:       payload.StorageKey,
		Title:            payload.Title,
		Content:          payload.Content,
		PlainText:        payload.PlainText,
		Favorite:         payload.Favorite,
		CreatedAtSeconds: payload.CreatedAtSeconds,
		UpdatedAtSeconds: payload.UpdatedAtSeconds,
	}
}
