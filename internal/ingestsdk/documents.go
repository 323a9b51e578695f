package ingestsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/ingestd/ingestd/internal/utils"
)

const v1Documents = "/v1/documents"

// Upload statuses returned by the ingestion API.
const (
	StatusCreated   = "created"
	StatusUpdated   = "updated"
	StatusDuplicate = "duplicate"
)

// UploadParams describes one document upload. Metadata is serialized as a
// JSON form part alongside the raw file bytes.
type UploadParams struct {
	FilePath string
	Metadata any
	// ExistingDocID, when set, asks the server to update that document
	// instead of creating a new one.
	ExistingDocID string
}

// UploadResponse is the success envelope of a document upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// UploadDocument sends file bytes plus metadata to the ingestion endpoint.
// The endpoint is idempotent per checksum: identical content for the same
// logical document yields StatusDuplicate with the existing document id,
// returned here as a success.
func (c *Client) UploadDocument(ctx context.Context, params *UploadParams) (*UploadResponse, error) {
	if !utils.FileExists(params.FilePath) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, params.FilePath)
	}

	metaJSON, err := jsonMarshal(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	form := map[string]string{
		"metadata":     string(metaJSON),
		"connector_id": c.connectorID,
	}
	if params.ExistingDocID != "" {
		form["document_id"] = params.ExistingDocID
	}

	var uploadResp UploadResponse
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", params.FilePath).
		SetFormData(form).
		SetSuccessResult(&uploadResp).
		SetErrorResult(&apiErr).
		Post(v1Documents)

	if err := handleAPIError(resp, err, "document upload"); err != nil {
		// Duplicate checksum is a successful outcome from the engine's
		// point of view: the remote already holds these exact bytes.
		var dup *APIError
		if errors.As(err, &dup) && dup.Code == CodeDuplicateChecksum {
			return &UploadResponse{DocumentID: dup.DocumentID, Status: StatusDuplicate}, nil
		}
		return nil, err
	}

	return &uploadResp, nil
}

// DeleteDocument removes a document from the ingestion endpoint. A missing
// document counts as success: the desired state is already true.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	if docID == "" {
		// Nothing was ever created remotely for this path.
		return nil
	}

	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetErrorResult(&apiErr).
		Delete(v1Documents + "/" + docID)

	if err := handleAPIError(resp, err, "document delete"); err != nil {
		var missing *APIError
		if errors.As(err, &missing) && missing.Code == CodeDocumentNotFound {
			return nil
		}
		return err
	}

	return nil
}
