// Package aiclient talks to the external AI generation service that turns a
// note into a summary or a flashcard set.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eduguardian/guardian/internal/domain"
)

var _ domain.AIGenerator = (*Client)(nil)

// Client is an HTTP JSON client for the generation service.
//
//	POST {endpoint}/summarize   {"note_id": "..."} -> {"text": "..."}
//	POST {endpoint}/flashcards  {"note_id": "..."} -> {"flashcards": [{"front","back"}]}
type Client struct {
	endpoint string
	client   *http.Client
}

// New creates a client. timeout bounds each request.
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type noteRequest struct {
	NoteID string `json:"note_id"`
}

type summaryResponse struct {
	Text string `json:"text"`
}

type flashcardsResponse struct {
	Flashcards []domain.Flashcard `json:"flashcards"`
}

// Summarize asks the service for a note summary.
func (c *Client) Summarize(ctx context.Context, noteID string) (domain.Summary, error) {
	var resp summaryResponse
	if err := c.post(ctx, "/summarize", noteRequest{NoteID: noteID}, &resp); err != nil {
		return domain.Summary{}, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return domain.Summary{}, fmt.Errorf("ai service returned an empty summary")
	}
	return domain.Summary{NoteID: noteID, Text: resp.Text}, nil
}

// GenerateFlashcards asks the service for a flashcard set.
func (c *Client) GenerateFlashcards(ctx context.Context, noteID string) ([]domain.Flashcard, error) {
	var resp flashcardsResponse
	if err := c.post(ctx, "/flashcards", noteRequest{NoteID: noteID}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Flashcards) == 0 {
		return nil, fmt.Errorf("ai service returned no flashcards")
	}
	return resp.Flashcards, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ai service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ai service error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ai response: %w", err)
	}
	return nil
}
