package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client talks to the content-pinning collaborator. The returned hash is
// opaque: this service stores and relays it, never interprets the bytes
// behind it.
type Client interface {
	Pin(ctx context.Context, content io.Reader, filename string) (string, error)
	GatewayURL(hash string) string
}

type Config struct {
	Endpoint   string
	GatewayURL string
	APIKey     string
}

type httpClient struct {
	config Config
	client *http.Client
}

func NewClient(config Config) Client {
	return &httpClient{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *httpClient) Pin(ctx context.Context, content io.Reader, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build pin request: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinning request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pinning service returned %d", resp.StatusCode)
	}

	var result struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if result.Hash == "" {
		return "", fmt.Errorf("pinning service returned empty hash")
	}
	return result.Hash, nil
}

func (c *httpClient) GatewayURL(hash string) string {
	return c.config.GatewayURL + hash
}
