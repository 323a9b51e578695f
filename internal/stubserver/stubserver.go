// Package stubserver is an in-memory ingestion endpoint for local
// development and end-to-end tests. It implements the same wire contract the
// agent delivers against, including checksum-based duplicate detection.
package stubserver

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/ingestd/ingestd/internal/ingestsdk"
	sloggin "github.com/samber/slog-gin"
)

// Document is one accepted upload.
type Document struct {
	ID           string         `json:"id"`
	ConnectorID  string         `json:"connector_id"`
	RelativePath string         `json:"relative_path"`
	Checksum     string         `json:"checksum"`
	Size         int64          `json:"size"`
	Metadata     map[string]any `json:"metadata"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Server holds accepted documents keyed by (connector, relative path).
// Checksum-based dedup is authoritative: re-sending identical content for the
// same logical document never creates a second record.
type Server struct {
	authToken string

	mu     sync.Mutex
	docs   map[string]*Document // key: connectorID + "/" + relativePath
	byID   map[string]*Document
	engine *gin.Engine
}

func New(authToken string) *Server {
	s := &Server{
		authToken: authToken,
		docs:      make(map[string]*Document),
		byID:      make(map[string]*Document),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(sloggin.New(slog.Default()), gin.Recovery())

	v1 := engine.Group("/v1", s.requireAuth)
	v1.POST("/documents", s.handleUpload)
	v1.DELETE("/documents/:id", s.handleDelete)
	v1.GET("/documents", s.handleList)

	s.engine = engine
	return s
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Count returns the number of stored documents.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Document returns the stored document for a connector-relative path.
func (s *Server) Document(connectorID, relativePath string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[connectorID+"/"+relativePath]
	return doc, ok
}

func (s *Server) requireAuth(c *gin.Context) {
	if s.authToken == "" {
		return
	}
	header := c.GetHeader("Authorization")
	if header != "Bearer "+s.authToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":  ingestsdk.CodeAccessDenied,
			"error": "missing or invalid bearer token",
		})
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	connectorID := c.PostForm("connector_id")
	metaRaw := c.PostForm("metadata")
	if connectorID == "" || metaRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  ingestsdk.CodeInvalidRequest,
			"error": "connector_id and metadata are required",
		})
		return
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  ingestsdk.CodeInvalidRequest,
			"error": "metadata is not valid json",
		})
		return
	}

	checksum, _ := meta["checksum"].(string)
	relativePath, _ := meta["relative_path"].(string)
	if checksum == "" || relativePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  ingestsdk.CodeInvalidRequest,
			"error": "metadata must carry checksum and relative_path",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  ingestsdk.CodeInvalidRequest,
			"error": "file part is required",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  ingestsdk.CodeInternalError,
			"error": err.Error(),
		})
		return
	}
	defer file.Close()
	size, _ := io.Copy(io.Discard, file)

	key := connectorID + "/" + relativePath

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.docs[key]; ok {
		if existing.Checksum == checksum {
			c.JSON(http.StatusConflict, gin.H{
				"code":        ingestsdk.CodeDuplicateChecksum,
				"error":       "content already accepted with identical checksum",
				"document_id": existing.ID,
			})
			return
		}

		existing.Checksum = checksum
		existing.Size = size
		existing.Metadata = meta
		existing.UpdatedAt = time.Now().UTC()
		c.JSON(http.StatusOK, gin.H{
			"document_id": existing.ID,
			"status":      ingestsdk.StatusUpdated,
		})
		return
	}

	doc := &Document{
		ID:           uuid.NewString(),
		ConnectorID:  connectorID,
		RelativePath: relativePath,
		Checksum:     checksum,
		Size:         size,
		Metadata:     meta,
		UpdatedAt:    time.Now().UTC(),
	}
	s.docs[key] = doc
	s.byID[doc.ID] = doc

	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID,
		"status":      ingestsdk.StatusCreated,
	})
}

func (s *Server) handleDelete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  ingestsdk.CodeDocumentNotFound,
			"error": "no such document",
		})
		return
	}

	delete(s.byID, id)
	delete(s.docs, doc.ConnectorID+"/"+doc.RelativePath)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleList(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}
