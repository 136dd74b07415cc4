// Package surge sends and verifies SMS traffic through the Surge API.
package surge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.surge.app"

type Client struct {
	BaseURL    string
	accountID  string
	apiKey     string
	httpClient *http.Client
}

func NewClient(accountID, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		accountID:  accountID,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send texts body to a phone number. Failures are reported in the result
// rather than as an error.
func (c *Client) Send(ctx context.Context, to, body string) SendResult {
	id, err := c.send(ctx, to, body)
	if err != nil {
		log.Printf("surge: send failed: %v", err)
		return SendResult{Error: err.Error()}
	}
	return SendResult{Success: true, MessageID: id}
}

func (c *Client) send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		Conversation: Conversation{Contact: Contact{PhoneNumber: normalizePhone(to)}},
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/messages", strings.TrimRight(c.BaseURL, "/"), c.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("surge returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.ID, nil
}

// normalizePhone assumes a US number when no country code is given.
func normalizePhone(p string) string {
	if strings.HasPrefix(p, "+") {
		return p
	}
	return "+1" + p
}
