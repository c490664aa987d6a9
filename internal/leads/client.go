package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"leadchat/internal/models"
)

// Client talks to the CRM REST backend. It is a plain request/response
// boundary: no caching, no retries, no state.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Filter narrows GetLeads. Zero value returns the full accessible set.
type Filter struct {
	AssignedToID string
	Category     string
	Search       string
}

func (f Filter) query() string {
	q := url.Values{}
	if f.AssignedToID != "" {
		q.Set("assignedToId", f.AssignedToID)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) GetLead(ctx context.Context, id string) (models.Lead, error) {
	var lead models.Lead
	err := c.do(ctx, http.MethodGet, "/api/leads/"+url.PathEscape(id), nil, "", &lead)
	return lead, err
}

func (c *Client) GetLeads(ctx context.Context, filter Filter) ([]models.Lead, error) {
	var leads []models.Lead
	err := c.do(ctx, http.MethodGet, "/api/leads"+filter.query(), nil, "", &leads)
	return leads, err
}

func (c *Client) SendMessage(ctx context.Context, leadID, content string) (models.Message, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	err = c.do(ctx, http.MethodPost, "/api/leads/"+url.PathEscape(leadID)+"/messages",
		bytes.NewReader(body), "application/json", &msg)
	return msg, err
}

// SendAttachment uploads a media message. The caller is responsible for
// validating the payload type first.
func (c *Client) SendAttachment(ctx context.Context, leadID, fileName, mimeType string, data []byte) (models.Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return models.Message{}, err
	}
	if _, err := part.Write(data); err != nil {
		return models.Message{}, err
	}
	if err := w.WriteField("mimeType", mimeType); err != nil {
		return models.Message{}, err
	}
	if err := w.Close(); err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	err = c.do(ctx, http.MethodPost, "/api/leads/"+url.PathEscape(leadID)+"/attachments",
		&buf, w.FormDataContentType(), &msg)
	return msg, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
