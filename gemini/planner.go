package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Planner = (*Planner)(nil)

// DefaultTimeout is the default timeout for a single propose call.
const DefaultTimeout = 90 * time.Second

// maxOutputTokens caps one reply. Longer answers are asked to be smaller.
const maxOutputTokens = 32768

// ErrBlocked is returned when the model refuses the prompt or its answer.
var ErrBlocked = errors.New("gemini: request blocked")

// Planner implements codeshell.Planner using Google Gemini.
type Planner struct {
	client   GenerativeClient
	model    string
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithTimeout sets the timeout for a whole propose call, retries included.
func WithTimeout(d time.Duration) PlannerOption {
	return func(p *Planner) {
		p.timeout = d
	}
}

// WithRetries sets how many times a rate-limited or failed request, or a
// reply that is not valid JSON, is retried, waiting backoff times the
// attempt number in between.
func WithRetries(n int, backoff time.Duration) PlannerOption {
	return func(p *Planner) {
		p.attempts = n + 1
		p.backoff = backoff
	}
}

// NewPlanner creates a new Planner.
func NewPlanner(client GenerativeClient, model string, opts ...PlannerOption) *Planner {
	p := &Planner{
		client:   client,
		model:    model,
		timeout:  DefaultTimeout,
		attempts: 3,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type proposal struct {
	Operations []codeshell.Operation `json:"operations"`
}

// Propose asks the model for operations carrying out instruction on files.
func (p *Planner) Propose(ctx context.Context, instruction string, files []codeshell.FileSnapshot) ([]codeshell.Operation, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents := []*Content{{
		Role:  "user",
		Parts: []*Part{{Text: BuildPrompt(instruction, files)}},
	}}
	config := BuildConfig()

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * p.backoff):
			}
		}

		resp, err := p.client.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Retryable() {
				lastErr = err
				continue
			}
			return nil, err
		}
		if resp == nil {
			return nil, fmt.Errorf("gemini: returned nil response")
		}
		switch {
		case resp.BlockReason != "":
			return nil, fmt.Errorf("%w: prompt %s", ErrBlocked, strings.ToLower(resp.BlockReason))
		case resp.FinishReason == FinishSafety:
			return nil, fmt.Errorf("%w: reply stopped for safety", ErrBlocked)
		case resp.FinishReason == FinishMaxTokens:
			lastErr = fmt.Errorf("gemini: reply cut off after %d tokens", resp.OutputTokens)
			contents = append(contents,
				&Content{Role: "model", Parts: []*Part{{Text: resp.Text}}},
				&Content{Role: "user", Parts: []*Part{{Text: "Your reply was cut off. Answer again with smaller operations: prefer search and line selectors over whole-file writes."}}},
			)
			continue
		}

		var out proposal
		if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
			lastErr = fmt.Errorf("gemini: failed to parse response: %w", err)
			// Show the model its reply and ask again.
			contents = append(contents,
				&Content{Role: "model", Parts: []*Part{{Text: resp.Text}}},
				&Content{Role: "user", Parts: []*Part{{Text: "That was not valid JSON (" + err.Error() + "). Reply with the JSON object only."}}},
			)
			continue
		}
		return out.Operations, nil
	}
	return nil, lastErr
}

// BuildPrompt creates the user prompt for the Gemini API.
func BuildPrompt(instruction string, files []codeshell.FileSnapshot) string {
	var sb strings.Builder
	sb.WriteString("## Files\n\n")
	if len(files) == 0 {
		sb.WriteString("(none)\n\n")
	}
	for _, f := range files {
		fmt.Fprintf(&sb, "### %s\n\n", f.Path)
		for i, line := range strings.Split(strings.TrimSuffix(f.Text, "\n"), "\n") {
			fmt.Fprintf(&sb, "%4d| %s\n", i+1, line)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Instruction\n\n")
	sb.WriteString(instruction)
	sb.WriteString("\n\n## Task\n\n")
	sb.WriteString("Propose the file operations that carry out the instruction.\n\n")
	sb.WriteString(`Respond with JSON matching this schema:
{
  "operations": [{
    "type": "edit|write|create|delete|rename|patch",
    "path": "relative/path",
    "newPath": "target of a rename",
    "selector": {"type": "full|line|search", "startLine": 1, "endLine": 2, "pattern": "literal text", "occurrence": 1},
    "content": "replacement text",
    "diff": "unified diff for patch"
  }]
}

Rules:
- Line numbers are 1-based and inclusive, as shown in the file listings (without the "NNNN| " prefix)
- Prefer search selectors for small edits and line selectors for larger ones
- Use write with a full selector only to replace a whole file
- Paths are relative to the workspace root
`)
	return sb.String()
}

// BuildConfig returns the GenerateContentConfig for Gemini API calls.
func BuildConfig() *GenerateContentConfig {
	temp := float32(0.2)
	return &GenerateContentConfig{
		SystemInstruction: &Content{
			Parts: []*Part{{
				Text: `You are a careful programming assistant working inside a code editor.

You change files only through structured operations that the user reviews before they are applied. Keep every edit as small as the instruction allows and never touch files the instruction does not concern.`,
			}},
		},
		Temperature:      &temp,
		MaxOutputTokens:  maxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   operationsSchema(),
	}
}

func operationsSchema() *Schema {
	str := func(desc string) *Schema { return &Schema{Type: "string", Description: desc} }
	num := func(desc string) *Schema { return &Schema{Type: "integer", Description: desc} }
	selector := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"type":       {Type: "string", Enum: []string{"full", "line", "search"}},
			"startLine":  num("first line of a line selector"),
			"endLine":    num("last line of a line selector, inclusive"),
			"pattern":    str("literal text of a search selector"),
			"occurrence": num("which match of the pattern, starting at 1"),
		},
		Required:         []string{"type"},
		PropertyOrdering: []string{"type", "startLine", "endLine", "pattern", "occurrence"},
	}
	op := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"type":     {Type: "string", Enum: []string{"edit", "write", "create", "delete", "rename", "patch"}},
			"path":     str("file the operation targets"),
			"newPath":  str("destination of a rename"),
			"selector": selector,
			"content":  str("new text for edit, write and create"),
			"diff":     str("unified diff for patch"),
		},
		Required:         []string{"type", "path"},
		PropertyOrdering: []string{"type", "path", "newPath", "selector", "content", "diff"},
	}
	return &Schema{
		Type:       "object",
		Properties: map[string]*Schema{"operations": {Type: "array", Items: op}},
		Required:   []string{"operations"},
	}
}
