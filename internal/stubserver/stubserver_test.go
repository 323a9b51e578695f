package stubserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, connectorID string, metadata map[string]any, content string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if connectorID != "" {
		require.NoError(t, writer.WriteField("connector_id", connectorID))
	}
	if metadata != nil {
		metaJSON, err := json.Marshal(metadata)
		require.NoError(t, err)
		require.NoError(t, writer.WriteField("metadata", string(metaJSON)))
	}

	part, err := writer.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, handler http.Handler, connectorID string, metadata map[string]any, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, connectorID, metadata, content)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestUploadLifecycle(t *testing.T) {
	srv := New("")
	handler := srv.Handler()

	meta := map[string]any{"relative_path": "docs/a.txt", "checksum": "hash-1"}

	rec := doUpload(t, handler, "c1", meta, "hello")
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "created", created.Status)
	assert.NotEmpty(t, created.DocumentID)
	assert.Equal(t, 1, srv.Count())

	// Same checksum conflicts with the stored document.
	rec = doUpload(t, handler, "c1", meta, "hello")
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict struct {
		Code       string `json:"code"`
		DocumentID string `json:"document_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflict))
	assert.Equal(t, "E_DUPLICATE_CHECKSUM", conflict.Code)
	assert.Equal(t, created.DocumentID, conflict.DocumentID)

	// New checksum for the same path updates in place.
	meta["checksum"] = "hash-2"
	rec = doUpload(t, handler, "c1", meta, "world")
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "updated", updated.Status)
	assert.Equal(t, created.DocumentID, updated.DocumentID)
	assert.Equal(t, 1, srv.Count())

	doc, ok := srv.Document("c1", "docs/a.txt")
	require.True(t, ok)
	assert.Equal(t, "hash-2", doc.Checksum)
	assert.Equal(t, int64(5), doc.Size)
}

func TestConnectorsAreIsolated(t *testing.T) {
	srv := New("")
	handler := srv.Handler()

	meta := map[string]any{"relative_path": "a.txt", "checksum": "hash-1"}
	require.Equal(t, http.StatusOK, doUpload(t, handler, "c1", meta, "hello").Code)
	require.Equal(t, http.StatusOK, doUpload(t, handler, "c2", meta, "hello").Code)
	assert.Equal(t, 2, srv.Count())
}

func TestUploadValidation(t *testing.T) {
	srv := New("")
	handler := srv.Handler()

	// Missing connector id.
	rec := doUpload(t, handler, "", map[string]any{"relative_path": "a", "checksum": "x"}, "hi")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing metadata.
	rec = doUpload(t, handler, "c1", nil, "hi")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Metadata without checksum.
	rec = doUpload(t, handler, "c1", map[string]any{"relative_path": "a"}, "hi")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUnknownDocument(t *testing.T) {
	srv := New("")
	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "E_DOCUMENT_NOT_FOUND", resp.Code)
}

func TestAuthRequired(t *testing.T) {
	srv := New("secret")
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
