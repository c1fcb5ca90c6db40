package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *Client) Health(ctx context.Context) (bool, string) {
	body, status, err := c.admin(ctx, http.MethodGet, "/admin/health", nil)
	if err != nil {
		return false, err.Error()
	}
	if status == http.StatusOK {
		return true, body
	}
	return false, fmt.Sprintf("status %d: %s", status, body)
}

// Reset calls POST /admin/reset, restoring the server's seed data.
func (c *Client) Reset(ctx context.Context) (string, error) {
	body, status, err := c.admin(ctx, http.MethodPost, "/admin/reset", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("reset returned status %d: %s", status, body)
	}
	return body, nil
}

// Seed POSTs the contents of a JSON state file to /admin/state.
func (c *Client) Seed(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	body, status, err := c.admin(ctx, http.MethodPost, "/admin/state", data)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("seed failed (status %d): %s", status, body)
	}
	return body, nil
}

func (c *Client) admin(ctx context.Context, method, path string, payload []byte) (string, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(body)), resp.StatusCode, nil
}
