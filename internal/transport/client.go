// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transport talks to the remote conversion service. Every failure
// leaves this package as an *apierr.Error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/pdiddy/pdfnmd/internal/apierr"
	"github.com/pdiddy/pdfnmd/internal/httputil"
	"github.com/pdiddy/pdfnmd/internal/logging"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// ProgressFunc receives upload progress as a percentage 0-100.
type ProgressFunc func(percent int)

// Client is the HTTP client for the conversion service API.
type Client struct {
	http      *retryablehttp.Client
	baseURL   string
	healthURL string
	cfg       types.HTTPConfig
	token     string
	language  string
	log       *logging.Logger
}

// NewClient creates a client for cfg.APIURL. base may be nil.
func NewClient(cfg types.ClientConfig, base *http.Client, log *logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.Nop()
	}
	baseURL := strings.TrimSuffix(cfg.APIURL, "/")
	healthURL, err := healthURLFor(baseURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:      httputil.NewRetryClient(base, cfg.HTTP.MaxRetries, logging.RetryLogger{L: log}),
		baseURL:   baseURL,
		healthURL: healthURL,
		cfg:       cfg.HTTP,
		token:     cfg.APIToken,
		language:  cfg.Language,
		log:       log,
	}, nil
}

// healthURLFor places /health at the origin of the API base URL, dropping
// any path such as /api.
func healthURLFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing API URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("API URL %q must be absolute", baseURL)
	}
	u.Path = "/health"
	u.RawQuery = ""
	return u.String(), nil
}

// Convert uploads file for conversion in mode. onProgress, if non-nil,
// receives upload progress as the body is sent.
func (c *Client) Convert(ctx context.Context, file types.SourceFile, mode types.ConversionMode, onProgress ProgressFunc) (*types.ConvertResponse, error) {
	body, contentType, err := multipartBody(file, mode)
	if err != nil {
		return nil, apierr.FromTransport(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	reader := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		return newProgressReader(body, onProgress), nil
	})
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/convert", reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var out types.ConvertResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the current state of a conversion task.
func (c *Client) Status(ctx context.Context, taskID string) (*types.TaskStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/status/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var out types.TaskStatusResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Content returns the converted text of a completed task.
func (c *Client) Content(ctx context.Context, taskID string) (*types.ContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/content/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var out types.ContentResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download returns the result file of a completed task.
func (c *Client) Download(ctx context.Context, taskID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.DownloadURL(taskID), nil)
	if err != nil {
		return nil, err
	}
	return c.doBytes(req)
}

// DownloadBatch returns a server-built archive holding the results of all
// taskIDs.
func (c *Client) DownloadBatch(ctx context.Context, taskIDs []string) ([]byte, error) {
	payload, err := json.Marshal(types.BatchDownloadRequest{TaskIDs: taskIDs})
	if err != nil {
		return nil, apierr.FromTransport(fmt.Errorf("encoding batch request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/download/batch", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doBytes(req)
}

// Health queries the service health endpoint.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return nil, err
	}
	var out types.HealthResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadURL is the reference under which a task's result is served.
func (c *Client) DownloadURL(taskID string) string {
	return c.baseURL + "/download/" + url.PathEscape(taskID)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body interface{}) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, apierr.FromTransport(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *retryablehttp.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Err(err).Msg("request failed")
		return nil, apierr.FromTransport(err)
	}
	c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("response")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, apierr.FromResponse(resp.StatusCode, readDetail(resp.Body))
}

func (c *Client) doJSON(req *retryablehttp.Request, out interface{}) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.FromTransport(fmt.Errorf("decoding %s response: %w", req.URL.Path, err))
	}
	return nil
}

func (c *Client) doBytes(req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.FromTransport(fmt.Errorf("reading %s response: %w", req.URL.Path, err))
	}
	return data, nil
}

// readDetail extracts the "detail" field of an error body. The service
// sends either a string or a list of validation objects.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}

func multipartBody(file types.SourceFile, mode types.ConversionMode) ([]byte, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", file.Name, err)
	}
	defer src.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", file.Name, err)
	}
	if err := mw.WriteField("mode", string(mode)); err != nil {
		return nil, "", fmt.Errorf("writing mode field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
