// Package backend is the HTTP client for the graph RAG service: ingestion, answer synthesis and semantic search.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphrag/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	uploadPath     = "/ingest/upload"
	collectionPath = "/ingest/collection"
	answerPath     = "/rag/answer"
	searchPath     = "/rag/search"
	healthPath     = "/"

	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 4096
)

// ErrMalformedResponse is returned when a success response lacks required fields or is not JSON.
var ErrMalformedResponse = errors.New("malformed response body")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Config configures the backend client. A zero Timeout means requests never time out.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the backend over HTTP. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// NewClient builds a client bound to one base URL for the lifetime of the process.
func NewClient(cfg Config, log *zap.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.Named("backend"),
	}
}

// BaseURL returns the resolved backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload posts one document as multipart form data to the ingestion endpoint.
func (c *Client) Upload(ctx context.Context, req domain.UploadRequest) (*domain.IngestSummary, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile("file", req.Document.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.WriteString(part, req.Document.Content); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}

	fields := [][2]string{
		{"workspace_id", req.Identifiers.WorkspaceID},
		{"collection_id", req.Identifiers.CollectionID},
		{"collection_name", req.Identifiers.DisplayName()},
	}
	if len(req.Metadata) > 0 {
		meta, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		fields = append(fields, [2]string{"metadata", string(meta)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	var raw struct {
		Status        string `json:"status"`
		WorkspaceID   string `json:"workspace_id"`
		CollectionID  string `json:"collection_id"`
		Chunks        *int   `json:"chunks"`
		Entities      *int   `json:"entities"`
		Relationships int    `json:"relationships"`
	}
	if err := c.do(httpReq, &raw); err != nil {
		return nil, err
	}
	if raw.Chunks == nil || raw.Entities == nil {
		return nil, fmt.Errorf("%w: missing chunk or entity counts", ErrMalformedResponse)
	}
	return &domain.IngestSummary{
		Status:        raw.Status,
		WorkspaceID:   raw.WorkspaceID,
		CollectionID:  raw.CollectionID,
		Chunks:        *raw.Chunks,
		Entities:      *raw.Entities,
		Relationships: raw.Relationships,
	}, nil
}

// CreateCollection registers a collection (and its workspace) without uploading anything.
func (c *Client) CreateCollection(ctx context.Context, ids domain.Identifiers) error {
	form := url.Values{}
	form.Set("workspace_id", ids.WorkspaceID)
	form.Set("collection_id", ids.CollectionID)
	form.Set("collection_name", ids.DisplayName())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+collectionPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(httpReq, nil)
}

// Answer asks the backend to synthesize an answer for the query.
func (c *Client) Answer(ctx context.Context, req domain.QueryRequest) (*domain.AnswerResult, error) {
	var out domain.AnswerResult
	if err := c.get(ctx, answerPath, queryValues(req), &out); err != nil {
		return nil, err
	}
	if out.KeyEntities == nil {
		out.KeyEntities = []string{}
	}
	return &out, nil
}

// Search returns raw ranked chunks in backend order.
func (c *Client) Search(ctx context.Context, req domain.QueryRequest) ([]domain.SearchResult, error) {
	params := queryValues(req)
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	var out struct {
		Results *[]domain.SearchResult `json:"results"`
	}
	if err := c.get(ctx, searchPath, params, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}
	return *out.Results, nil
}

// Health reports the backend root status.
type Health struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Health calls the backend root endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, healthPath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func queryValues(req domain.QueryRequest) url.Values {
	v := url.Values{}
	v.Set("query", req.Query)
	v.Set("workspace_id", req.WorkspaceID)
	v.Set("collection_id", req.CollectionID)
	return v
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")

	log := c.log.With(
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)
	started := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// StatusCode extracts the HTTP status from an error chain, or 0 when there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
