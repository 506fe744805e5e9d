// Package llm implements the external Planner collaborator (spec.md §6
// "Planner interface (consumed)"): plan(user_text, context) -> PlannerOutput,
// backed by Amazon Bedrock, since the teacher's ai/ submodule already
// wires a Bedrock-class client for its own agent completions. Requests are
// throttled with a token-bucket rate limiter so a runaway planning loop
// can't exhaust the account's Bedrock quota.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"golang.org/x/time/rate"

	"github.com/nova-labs/jarviscore/logging"
	"github.com/nova-labs/jarviscore/planner"
)

// Config bounds what the client needs to call Bedrock.
type Config struct {
	Region            string
	ModelID           string
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns a conservative client configuration.
func DefaultConfig() Config {
	return Config{
		Region:            "us-east-1",
		ModelID:           "anthropic.claude-3-haiku-20240307-v1:0",
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// Client calls the external planner over Amazon Bedrock.
type Client struct {
	bedrock *bedrockruntime.Client
	modelID string
	limiter *rate.Limiter
	logger  logging.Logger
}

// New builds a Client, loading AWS credentials the default way (env vars,
// shared config, instance role) via aws-sdk-go-v2/config.
func New(ctx context.Context, cfg Config, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("llm: load aws config: %w", err)
	}
	return &Client{
		bedrock: bedrockruntime.NewFromConfig(awsCfg),
		modelID: cfg.ModelID,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}, nil
}

// bedrockRequest is the minimal Anthropic-on-Bedrock message body the
// client sends; the planner's system prompt instructs the model to reply
// with exactly the planner.PlannerOutput JSON shape.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

const systemPrompt = `You are the planning component of a local voice assistant. ` +
	`Reply with a single JSON object matching {"thinking":string,"tool_calls":[{"tool":string,"arguments":object,"reasoning":string}],"response":string} and nothing else.`

// Plan calls the planner with userText and optional contextText, returning
// the raw response bytes for planner.Gate.ParseAndValidate to consume —
// the gate, not this client, owns validating the shape.
func (c *Client) Plan(ctx context.Context, userText, contextText string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limiter: %w", err)
	}

	message := userText
	if contextText != "" {
		message = contextText + "\n\n" + userText
	}

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		System:           systemPrompt,
		Messages:         []bedrockMessage{{Role: "user", Content: message}},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	out, err := c.bedrock.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		c.logger.ErrorWithContext(ctx, "llm: bedrock invoke failed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("llm: invoke model: %w", err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("llm: unmarshal bedrock response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("llm: empty response from model")
	}

	return []byte(resp.Content[0].Text), nil
}

// PlanAndValidate is a convenience combining Plan with gate validation, for
// callers that don't need the raw bytes.
func (c *Client) PlanAndValidate(ctx context.Context, gate *planner.Gate, userText, contextText string) (*planner.Plan, error) {
	raw, err := c.Plan(ctx, userText, contextText)
	if err != nil {
		return nil, err
	}
	return gate.ParseAndValidate(raw), nil
}
