package files_api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
)

// FileID is the identifier the file store assigns to a file.
type FileID string

// File describes a stored file.
type File struct {
	ID          FileID            `json:"id"`
	Key         string            `json:"key"`
	Size        int64             `json:"size"`
	ContentType string            `json:"contentType"`
	Tags        map[string]string `json:"tags,omitempty"`
	Index       bool              `json:"index"`
	UploadURL   string            `json:"uploadUrl,omitempty"`
}

// UploadRequest describes the file being created or replaced.
// Files are identified by Key, so uploading the same key again replaces the content.
type UploadRequest struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size"`
	ContentType string            `json:"contentType"`
	Tags        map[string]string `json:"tags,omitempty"`
	Index       bool              `json:"index"`
}

// listFilesResponse is one page of ListFiles.
type listFilesResponse struct {
	Files     []File `json:"files"`
	NextToken string `json:"nextToken"`
}

// UpsertFile registers the file and returns it with the URL its content must be uploaded to.
func (c *Client) UpsertFile(ctx context.Context, req UploadRequest) (*File, error) {
	if req.Key == "" {
		return nil, errors.New("file key is required")
	}
	var file File
	if err := c.doJSON(ctx, http.MethodPut, "v1/files", nil, req, &file); err != nil {
		return nil, err
	}
	if file.ID == "" {
		return nil, fmt.Errorf("file store returned no id for %s", req.Key)
	}
	return &file, nil
}

// UploadContent sends the file content to an upload URL returned by UpsertFile.
func (c *Client) UploadContent(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return HttpError(err.Error())
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	res, err := c.http_client.Do(req)
	if err != nil {
		return HttpError(err.Error())
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Message: "content upload failed"}
	}
	return nil
}

// UploadFile registers the file and uploads its content. When the store returns
// no upload URL the content is considered already present.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest, body io.Reader) (FileID, error) {
	file, err := c.UpsertFile(ctx, req)
	if err != nil {
		return "", err
	}
	if file.UploadURL == "" {
		return file.ID, nil
	}
	if err := c.UploadContent(ctx, file.UploadURL, body, req.Size, req.ContentType); err != nil {
		return "", err
	}
	return file.ID, nil
}

// DeleteFile removes a file from the store.
func (c *Client) DeleteFile(ctx context.Context, id FileID) error {
	if id == "" {
		return errors.New("file id is required")
	}
	return c.doJSON(ctx, http.MethodDelete, "v1/files/"+url.PathEscape(string(id)), nil, nil, nil)
}

// ListFiles returns every file carrying all of the given tags, following pagination.
func (c *Client) ListFiles(ctx context.Context, tags map[string]string) ([]File, error) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var files []File
	nextToken := ""
	for {
		query := url.Values{}
		for _, k := range keys {
			query.Add("tag", k+"="+tags[k])
		}
		if nextToken != "" {
			query.Set("nextToken", nextToken)
		}

		var page listFilesResponse
		if err := c.doJSON(ctx, http.MethodGet, "v1/files", query, nil, &page); err != nil {
			return nil, err
		}
		files = append(files, page.Files...)
		if page.NextToken == "" || page.NextToken == nextToken {
			return files, nil
		}
		nextToken = page.NextToken
	}
}
