package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used to propose edits.
const DefaultModel = "gemini-3-flash-preview"

// Compile-time interface verification.
var _ GenerativeClient = (*Client)(nil)

// Client sends planner conversations to the Gemini API.
type Client struct {
	client *genai.Client
}

// NewClient creates a Client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: client}, nil
}

// GenerateContent implements GenerativeClient.
func (c *Client) GenerateContent(ctx context.Context, model string, contents []*Content, config *GenerateContentConfig) (*GenerateContentResponse, error) {
	history := make([]*genai.Content, len(contents))
	for i, content := range contents {
		history[i] = toContent(content)
	}

	result, err := c.client.Models.GenerateContent(ctx, model, history, toConfig(config))
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return fromResult(result), nil
}

func toContent(c *Content) *genai.Content {
	role := c.Role
	if role == "" {
		role = genai.RoleUser
	}
	parts := make([]*genai.Part, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = genai.NewPartFromText(p.Text)
	}
	return &genai.Content{Role: role, Parts: parts}
}

func toConfig(config *GenerateContentConfig) *genai.GenerateContentConfig {
	if config == nil {
		return nil
	}
	out := &genai.GenerateContentConfig{
		Temperature:      config.Temperature,
		ResponseMIMEType: config.ResponseMIMEType,
		ResponseSchema:   convertSchema(config.ResponseSchema),
		MaxOutputTokens:  config.MaxOutputTokens,
	}
	if config.SystemInstruction != nil {
		out.SystemInstruction = toContent(config.SystemInstruction)
		out.SystemInstruction.Role = ""
	}
	if config.ThinkingLevel != "" {
		out.ThinkingConfig = &genai.ThinkingConfig{ThinkingLevel: genai.ThinkingLevel(config.ThinkingLevel)}
	}
	return out
}

func fromResult(result *genai.GenerateContentResponse) *GenerateContentResponse {
	resp := &GenerateContentResponse{Text: result.Text()}
	if len(result.Candidates) > 0 && result.Candidates[0] != nil {
		resp.FinishReason = string(result.Candidates[0].FinishReason)
	}
	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" {
		resp.BlockReason = string(fb.BlockReason)
	}
	if u := result.UsageMetadata; u != nil {
		resp.PromptTokens = int(u.PromptTokenCount)
		resp.OutputTokens = int(u.CandidatesTokenCount)
	}
	return resp
}

// wrapAPIError converts genai.APIError to APIError so the planner can retry.
func wrapAPIError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.Code,
			Message:    fmt.Sprintf("gemini API error (HTTP %d): %s", apiErr.Code, apiErr.Message),
		}
	}
	return err
}

func convertSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	gs := &genai.Schema{
		Type:             genai.Type(s.Type),
		Enum:             s.Enum,
		Required:         s.Required,
		PropertyOrdering: s.PropertyOrdering,
		Description:      s.Description,
		Items:            convertSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		gs.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			gs.Properties[k] = convertSchema(v)
		}
	}
	return gs
}
