package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflo/db/db"
)

func chatStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		response := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("failed to encode stub response: %v", err)
		}
	}))
}

func TestProcessBillImage(t *testing.T) {
	server := chatStub(t, "```json\n{\"total\": 42.5, \"items\": [{\"name\": \"pizza\", \"price\": 21.25, \"quantity\": 2, \"totalPrice\": 42.5}]}\n```")
	defer server.Close()

	client := NewChatGPTClientWithBaseURL(server.URL, "gpt-4o-mini", "test-key")
	billData, err := client.ProcessBillImage(context.Background(), "aGVsbG8=")
	require.NoError(t, err)

	assert.Equal(t, 42.5, billData.Total)
	require.Len(t, billData.Items, 1)
	assert.Equal(t, "pizza", billData.Items[0].Name)
	assert.Equal(t, 2, billData.Items[0].Quantity)
}

func TestProcessBillImageWithoutFence(t *testing.T) {
	server := chatStub(t, `{"total": 10, "items": []}`)
	defer server.Close()

	client := NewChatGPTClientWithBaseURL(server.URL, "gpt-4o-mini", "test-key")
	billData, err := client.ProcessBillImage(context.Background(), "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, 10.0, billData.Total)
	assert.Empty(t, billData.Items)
}

func TestProcessBillImageBadJSON(t *testing.T) {
	server := chatStub(t, "sorry, I cannot read this image")
	defer server.Close()

	client := NewChatGPTClientWithBaseURL(server.URL, "gpt-4o-mini", "test-key")
	_, err := client.ProcessBillImage(context.Background(), "aGVsbG8=")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestProcessBillImageServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewChatGPTClientWithBaseURL(server.URL, "gpt-4o-mini", "test-key")
	_, err := client.ProcessBillImage(context.Background(), "aGVsbG8=")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestAnalyzeOrder(t *testing.T) {
	server := chatStub(t, "```json\n[\"item-1\", \"item-3\"]\n```")
	defer server.Close()

	client := NewChatGPTClientWithBaseURL(server.URL, "gpt-4o-mini", "test-key")
	itemIDs, err := client.AnalyzeOrder(context.Background(), "I had the pizza and a coke", []db.BillItem{
		{ID: "item-1", Name: "Pizza Margherita", Price: 12.5, Quantity: 1},
		{ID: "item-2", Name: "Beer", Price: 4, Quantity: 2},
		{ID: "item-3", Name: "Coca-Cola", Price: 3, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"item-1", "item-3"}, itemIDs)
}
