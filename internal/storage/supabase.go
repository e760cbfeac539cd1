// Package storage is a thin client for the Supabase storage and REST
// surfaces: named upload/download/list/delete of byte payloads plus row
// inserts for job metadata. No retries live here; callers own that policy.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"earnings-insights-go/internal/logger"
	"github.com/sirupsen/logrus"
)

type Client struct {
	baseURL string
	key     string
	http    *http.Client
	log     *logrus.Entry
}

func New(baseURL, key string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     logger.Component("storage"),
	}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
}

func (c *Client) objectURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, url.PathEscape(bucket), path)
}

// Upload stores data under bucket/path, overwriting any existing object
// (last write wins, by design of the results bucket).
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(bucket, path), bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.auth(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload %s/%s: %s: %s", bucket, path, resp.Status, strings.TrimSpace(string(body)))
	}
	c.log.WithFields(logrus.Fields{"bucket": bucket, "path": path, "bytes": len(data)}).Info("uploaded object")
	return nil
}

// Download fetches the object bytes at bucket/path.
func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(bucket, path), nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download %s/%s: %s: %s", bucket, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// FileInfo describes one stored object as the storage API lists it.
type FileInfo struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Metadata  struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// List returns the objects in a bucket (top level, up to 1000).
func (c *Client) List(ctx context.Context, bucket string) ([]FileInfo, error) {
	payload, _ := json.Marshal(listRequest{Prefix: "", Limit: 1000})
	u := fmt.Sprintf("%s/storage/v1/object/list/%s", c.baseURL, url.PathEscape(bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list %s: %s: %s", bucket, resp.Status, strings.TrimSpace(string(body)))
	}
	var out []FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("list %s decode: %w", bucket, err)
	}
	return out, nil
}

type removeRequest struct {
	Prefixes []string `json:"prefixes"`
}

// Remove deletes the named objects from a bucket.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	payload, _ := json.Marshal(removeRequest{Prefixes: paths})
	u := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, url.PathEscape(bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove %s: %w", bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remove %s: %s: %s", bucket, resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// Insert adds one row to a database table through the REST surface.
func (c *Client) Insert(ctx context.Context, table string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("insert %s marshal: %w", table, err)
	}
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("insert %s: %s: %s", table, resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
