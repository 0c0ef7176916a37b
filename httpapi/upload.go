package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// maxUploadSize caps letter-of-intention documents at 10 MiB.
const maxUploadSize = 10 << 20

// UploadResult carries the hosted location of an uploaded document.
type UploadResult struct {
	URL string `json:"url"`
}

// Upload streams a document to the backend file endpoint and returns its
// hosted URL. Used for re-uploaded letter-of-intention counter-offers.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	if filename == "" {
		return UploadResult{}, fmt.Errorf("httpapi: upload missing filename")
	}

	data, err := io.ReadAll(io.LimitReader(r, maxUploadSize+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("httpapi: read upload: %w", err)
	}
	if len(data) > maxUploadSize {
		return UploadResult{}, fmt.Errorf("httpapi: upload exceeds %d bytes", maxUploadSize)
	}
	if len(data) == 0 {
		return UploadResult{}, fmt.Errorf("httpapi: upload is empty")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return UploadResult{}, fmt.Errorf("httpapi: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("httpapi: write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("httpapi: finish multipart body: %w", err)
	}

	var result UploadResult
	if err := c.do(ctx, http.MethodPost, "/upload-file", buf.Bytes(), writer.FormDataContentType(), &result); err != nil {
		return UploadResult{}, err
	}
	if result.URL == "" {
		return UploadResult{}, fmt.Errorf("httpapi: upload response missing url")
	}
	return result, nil
}
