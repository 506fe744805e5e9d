package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Client.Plan talks directly to bedrockruntime.Client with no interface
// seam, so it cannot be exercised without a live AWS call. These tests
// cover what's reachable without the network: config defaults and the
// wire shapes Plan builds and parses.

func TestDefaultConfigIsConservative(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.NotEmpty(t, cfg.ModelID)
	assert.Greater(t, cfg.RequestsPerSecond, 0.0)
	assert.Greater(t, cfg.Burst, 0)
}

func TestBedrockRequestMarshalsExpectedShape(t *testing.T) {
	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		System:           systemPrompt,
		Messages:         []bedrockMessage{{Role: "user", Content: "what time is it"}},
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "bedrock-2023-05-31", decoded["anthropic_version"])
	assert.Equal(t, float64(1024), decoded["max_tokens"])
	assert.Contains(t, decoded, "system")
	assert.Contains(t, decoded, "messages")
}

func TestBedrockResponseUnmarshalsTextContent(t *testing.T) {
	raw := `{"content":[{"text":"{\"thinking\":\"ok\",\"tool_calls\":[],\"response\":\"hi\"}"}]}`
	var resp bedrockResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	require.Len(t, resp.Content, 1)
	assert.Contains(t, resp.Content[0].Text, "thinking")
}

func TestSystemPromptDescribesPlannerOutputShape(t *testing.T) {
	assert.Contains(t, systemPrompt, "tool_calls")
	assert.Contains(t, systemPrompt, "response")
}
