package moodle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/unige/moodle-ws-mcp-server/internal/base"
	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
	"github.com/unige/moodle-ws-mcp-server/metrics"
	"github.com/unige/moodle-ws-mcp-server/tracing"
)

// DraftFile describes one file stored by the upload script.
type DraftFile struct {
	Component string `json:"component"`
	ContextID int    `json:"contextid"`
	UserID    int    `json:"userid"`
	FileArea  string `json:"filearea"`
	FileName  string `json:"filename"`
	FilePath  string `json:"filepath"`
	ItemID    int    `json:"itemid"`
	License   string `json:"license,omitempty"`
	Author    string `json:"author,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Upload sends the local file at path to the user's draft file area, under
// directory dir (default "/"). The file is streamed, not buffered.
//
// The raw response body is returned; ParseUploadResponse decodes it.
func (c *Client) Upload(ctx context.Context, path, dir string) (string, error) {
	token := c.GetToken()
	if token == "" {
		metrics.RecordAuthFailure("missing_token")
		return "", wserrors.NewMissingTokenError()
	}
	if dir == "" {
		dir = "/"
	}

	ctx, span := tracing.StartClientSpan(ctx, "moodle.upload", "", c.site)
	defer span.End()

	start := time.Now()
	body, size, err := c.upload(ctx, path, dir, token)
	metrics.RecordUpload(size, err == nil)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}

	c.Logger.Debug("File uploaded",
		"file", filepath.Base(path),
		"filepath", dir,
		"bytes", size,
		"duration", time.Since(start))
	return body, nil
}

func (c *Client) upload(ctx context.Context, path, dir, token string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat upload file: %w", err)
	}
	if info.IsDir() {
		return "", 0, wserrors.NewValidationError("path", path, "is a directory")
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, f, filepath.Base(path), dir, token))
	}()

	payload, _, err := c.DoRequest(ctx, base.RequestConfig{
		Method:      http.MethodPost,
		URL:         c.site + UploadPath,
		Body:        pr,
		ContentType: mw.FormDataContentType(),
		Operation:   "upload",
	})
	if err != nil {
		return "", info.Size(), err
	}

	return string(payload), info.Size(), nil
}

// writeUploadForm writes the upload fields in the order the upload script
// documents them: file_box, filepath, token.
func writeUploadForm(mw *multipart.Writer, file io.Reader, name, dir, token string) error {
	part, err := mw.CreateFormFile("file_box", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to stream upload file: %w", err)
	}
	if err := mw.WriteField("filepath", dir); err != nil {
		return err
	}
	if err := mw.WriteField("token", token); err != nil {
		return err
	}
	return mw.Close()
}

// ParseUploadResponse decodes the body returned by Upload. An error envelope
// becomes a *RemoteError.
func ParseUploadResponse(raw string) ([]DraftFile, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &DecodeError{Message: "failed to parse upload response", Err: err}
	}

	if remoteErr, _ := remoteErrorFrom(v, true); remoteErr != nil {
		return nil, remoteErr
	}

	if _, ok := v.([]any); !ok {
		return nil, &DecodeError{Message: fmt.Sprintf("unexpected upload response: %s", raw)}
	}

	var files []DraftFile
	if err := NewResult(v).Decode(&files); err != nil {
		return nil, err
	}
	return files, nil
}
