package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ragchat/pkg/domain"
)

// AnswerEngine produces an answer with provenance for a raw query.
// Implementations are expected to be slow network calls; callers own
// timeout and cancellation policy via ctx, and no retries happen here.
type AnswerEngine interface {
	Query(ctx context.Context, text string) (Result, error)
}

// Result is the opaque payload returned by the answer engine.
type Result struct {
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources"`
}

// Client calls the answer-generation service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs an answer engine client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

// Query posts the raw text and decodes {answer, sources}.
func (c *Client) Query(ctx context.Context, text string) (Result, error) {
	body, err := json.Marshal(queryRequest{Query: text})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Result{}, &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode answer: %w", err)
	}
	if result.Answer == "" {
		return Result{}, fmt.Errorf("answer engine returned empty answer")
	}
	return result, nil
}

// APIError represents an answer engine error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}
