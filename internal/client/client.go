// Package client talks to the WorldScars REST API.
package client

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
)

const defaultTimeout = 30 * time.Second

var (
	// ErrMissingTitle is returned before any request is sent when the title is blank.
	ErrMissingTitle = errors.New("title is required")
	// ErrMissingImage is returned before any request is sent when neither a file nor a URL is given.
	ErrMissingImage = errors.New("image is required")
)

// Image mirrors the JSON representation served by the API.
type Image struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"imageUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Location     string    `json:"location"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// ListOptions filter and page a listing. Zero values are omitted.
type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// CreateImageRequest registers an image hosted elsewhere.
type CreateImageRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl"`
	Location    string `json:"location,omitempty"`
}

// UploadImageRequest uploads image bytes read from Content.
type UploadImageRequest struct {
	Title       string
	Description string
	Location    string
	Filename    string
	Content     io.Reader
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.httpClient = &http.Client{Timeout: timeout}
	}
}

// New creates a client for the API served at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListImages returns images newest first.
func (c *Client) ListImages(ctx context.Context, opts ListOptions) ([]Image, error) {
	query := url.Values{}
	if opts.Query != "" {
		query.Set("q", opts.Query)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/images"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var images []Image
	if err := c.do(req, &images); err != nil {
		return nil, err
	}
	if images == nil {
		images = []Image{}
	}
	return images, nil
}

// GetImage fetches a single image; unknown ids yield an error for which IsNotFound is true.
func (c *Client) GetImage(ctx context.Context, id int64) (*Image, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/images/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	var image Image
	if err := c.do(req, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// CreateImage registers an image by URL.
func (c *Client) CreateImage(ctx context.Context, request CreateImageRequest) (*Image, error) {
	request.Title = strings.TrimSpace(request.Title)
	request.Description = strings.TrimSpace(request.Description)
	request.Location = strings.TrimSpace(request.Location)
	request.ImageURL = strings.TrimSpace(request.ImageURL)
	if request.Title == "" {
		return nil, ErrMissingTitle
	}
	if request.ImageURL == "" {
		return nil, ErrMissingImage
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/images", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var image Image
	if err := c.do(req, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// UploadImage sends the image as multipart form data.
func (c *Client) UploadImage(ctx context.Context, request UploadImageRequest) (*Image, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	if request.Content == nil {
		return nil, ErrMissingImage
	}
	filename := request.Filename
	if filename == "" {
		filename = "image"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := []struct{ key, value string }{
		{"title", title},
		{"description", strings.TrimSpace(request.Description)},
		{"location", strings.TrimSpace(request.Location)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field.key, field.value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", field.key, err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, request.Content); err != nil {
		return nil, fmt.Errorf("failed to read image content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/images/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var image Image
	if err := c.do(req, &image); err != nil {
		return nil, err
	}
	return &image, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
