package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"payflo/config"
	"payflo/db/db"
)

// ErrRequestFailed wraps any failure to get a usable answer out of the model.
var ErrRequestFailed = errors.New("llm request failed")

// BillDataItem is one extracted line of a scanned receipt.
type BillDataItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"totalPrice"`
}

// BillData is the structured result of a receipt scan.
type BillData struct {
	Total float64        `json:"total"`
	Items []BillDataItem `json:"items"`
}

// BillAnalyzer is the model-backed part of the bill workflow. The HTTP layer
// depends on this interface so tests can swap in a canned implementation.
type BillAnalyzer interface {
	// ProcessBillImage extracts the total and line items from a base64
	// encoded receipt photo.
	ProcessBillImage(ctx context.Context, base64Image string) (*BillData, error)
	// AnalyzeOrder matches a free-text order description against the bill
	// items and returns the ids of the matching ones.
	AnalyzeOrder(ctx context.Context, orderDescription string, items []db.BillItem) ([]string, error)
}

type messageContent struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL map[string]string `json:"image_url,omitempty"`
}

type message struct {
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatGPTClient talks to an OpenAI-compatible chat completions endpoint.
type ChatGPTClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

func NewChatGPTClient() *ChatGPTClient {
	return &ChatGPTClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    config.OpenAIBaseURL(),
		model:      config.OpenAIModel(),
		apiKey:     config.OpenAIKey(),
	}
}

// NewChatGPTClientWithBaseURL is used by tests to point the client at a stub server.
func NewChatGPTClientWithBaseURL(baseURL, model, apiKey string) *ChatGPTClient {
	return &ChatGPTClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
	}
}

func (c *ChatGPTClient) complete(ctx context.Context, request chatRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d, body: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrRequestFailed, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrRequestFailed)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// stripJSONFence removes the markdown code fence the model tends to wrap its
// JSON answers in.
func stripJSONFence(s string) string {
	s = strings.TrimPrefix(s, "```json\n")
	s = strings.TrimSuffix(s, "\n```")
	return strings.TrimSpace(s)
}

func (c *ChatGPTClient) ProcessBillImage(ctx context.Context, base64Image string) (*BillData, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []message{
			{
				Role: "user",
				Content: []messageContent{
					{Type: "text", Text: systemMessageBillProcessing},
					{Type: "image_url", ImageURL: map[string]string{
						"url": "data:image/jpeg;base64," + base64Image,
					}},
				},
			},
		},
		MaxTokens: 300,
	}

	content, err := c.complete(ctx, request)
	if err != nil {
		return nil, err
	}

	var billData BillData
	if err := json.Unmarshal([]byte(stripJSONFence(content)), &billData); err != nil {
		return nil, fmt.Errorf("%w: failed to parse bill data: %v", ErrRequestFailed, err)
	}
	return &billData, nil
}

func (c *ChatGPTClient) AnalyzeOrder(ctx context.Context, orderDescription string, items []db.BillItem) ([]string, error) {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- %s (%dx %.2f) [ID: %s]", item.Name, item.Quantity, item.Price, item.ID))
	}

	request := chatRequest{
		Model: c.model,
		Messages: []message{
			{
				Role: "system",
				Content: []messageContent{
					{Type: "text", Text: systemMessageOrderAnalysis},
				},
			},
			{
				Role: "user",
				Content: []messageContent{
					{Type: "text", Text: fmt.Sprintf("Order description: %q\n\nAvailable bill items:\n%s\n\nReturn only a JSON array of matching item IDs.", orderDescription, strings.Join(lines, "\n"))},
				},
			},
		},
		MaxTokens: 150,
	}

	content, err := c.complete(ctx, request)
	if err != nil {
		return nil, err
	}

	var itemIDs []string
	if err := json.Unmarshal([]byte(stripJSONFence(content)), &itemIDs); err != nil {
		return nil, fmt.Errorf("%w: failed to parse item ids: %v", ErrRequestFailed, err)
	}
	return itemIDs, nil
}
